package validator

import (
	"fmt"
	"strings"
)

// When applies r only if cond holds.
func When(cond bool, r Rule) Rule {
	check := r.Check
	return Rule{
		Check: func() bool {
			return !cond || check == nil || check()
		},
		Error: r.Error,
	}
}

// RequiredString validates that a string is not empty after trimming whitespace.
func RequiredString(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.TrimSpace(value) != ""
		},
		Error: ValidationError{
			Field:             field,
			Message:           "field is required",
			TranslationKey:    "validation.required",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

func LenString(field, value string, exact int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) == exact
		},
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("must be exactly %d characters long", exact),
			TranslationKey:    "validation.exact_length",
			TranslationValues: map[string]any{"field": field, "length": exact},
		},
	}
}

// Digits validates that value consists of exactly n ASCII digits.
func Digits(field, value string, n int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) == n && IsDigits(value)
		},
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("must be %d digits", n),
			TranslationKey:    "validation.digits",
			TranslationValues: map[string]any{"field": field, "digits": n},
		},
	}
}

// MinNum validates that a numeric value is greater than or equal to min.
func MinNum[T Numeric](field string, value T, min T) Rule {
	return Rule{
		Check: func() bool {
			return value >= min
		},
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("must be at least %v", min),
			TranslationKey:    "validation.min",
			TranslationValues: map[string]any{"field": field, "min": min},
		},
	}
}

// MaxNum validates that a numeric value is less than or equal to max.
func MaxNum[T Numeric](field string, value T, max T) Rule {
	return Rule{
		Check: func() bool {
			return value <= max
		},
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("must be at most %v", max),
			TranslationKey:    "validation.max",
			TranslationValues: map[string]any{"field": field, "max": max},
		},
	}
}

// InListString validates that value is one of allowed.
func InListString(field, value string, allowed []string) Rule {
	return Rule{
		Check: func() bool {
			for _, a := range allowed {
				if a == value {
					return true
				}
			}
			return false
		},
		Error: ValidationError{
			Field:             field,
			Message:           "must be one of: " + strings.Join(allowed, ", "),
			TranslationKey:    "validation.in_list",
			TranslationValues: map[string]any{"field": field, "values": allowed},
		},
	}
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
