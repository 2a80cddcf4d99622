package subscription

import (
	"errors"
	"strings"

	"github.com/dmitrymomot/billingkit/pkg/validator"
)

const cpfLength = 11

// ValidateTaxID normalizes a CPF to its 11 digits and verifies both check
// digits. Formatting characters are ignored and short inputs are left padded
// with zeros.
func ValidateTaxID(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", taxIDError("tax id is required")
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < cpfLength {
		digits = strings.Repeat("0", cpfLength-len(digits)) + digits
	}
	if len(digits) != cpfLength {
		return "", taxIDError("tax id must have 11 digits")
	}
	if strings.Count(digits, digits[:1]) == cpfLength {
		return "", taxIDError("tax id is invalid")
	}

	for t := 9; t < cpfLength; t++ {
		sum := 0
		for c := 0; c < t; c++ {
			sum += int(digits[c]-'0') * (t + 1 - c)
		}
		check := ((10 * sum) % 11) % 10
		if int(digits[t]-'0') != check {
			return "", taxIDError("tax id is invalid")
		}
	}
	return digits, nil
}

func taxIDError(msg string) error {
	return errors.Join(ErrValidation, validator.Fail("cpf", msg, "validation.cpf"))
}
