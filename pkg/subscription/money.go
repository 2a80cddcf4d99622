package subscription

import (
	"errors"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MoneyFormatter renders integer cent amounts for display.
type MoneyFormatter struct {
	currency currency.Unit
	symbol   string
	custom   func(cents int64) string
	printer  *message.Printer
}

// MoneyOption configures a MoneyFormatter.
type MoneyOption func(*MoneyFormatter)

// WithSymbol sets the symbol instead of guessing it from the currency.
func WithSymbol(symbol string) MoneyOption {
	return func(f *MoneyFormatter) {
		f.symbol = symbol
	}
}

// WithFormatter replaces the built-in rendering entirely.
func WithFormatter(fn func(cents int64) string) MoneyOption {
	return func(f *MoneyFormatter) {
		f.custom = fn
	}
}

// NewMoneyFormatter builds a formatter for an ISO 4217 code, case
// insensitive. Without WithSymbol the symbol must be guessable.
func NewMoneyFormatter(code string, opts ...MoneyOption) (*MoneyFormatter, error) {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return nil, errors.Join(ErrInvalidCurrency, err)
	}
	f := &MoneyFormatter{
		currency: unit,
		printer:  message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.symbol == "" && f.custom == nil {
		if f.symbol, err = GuessCurrencySymbol(code); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewMoneyFormatterFromConfig uses the configured currency and symbol.
func NewMoneyFormatterFromConfig(cfg Config) (*MoneyFormatter, error) {
	var opts []MoneyOption
	if cfg.CurrencySymbol != "" {
		opts = append(opts, WithSymbol(cfg.CurrencySymbol))
	}
	return NewMoneyFormatter(cfg.Currency, opts...)
}

// GuessCurrencySymbol knows the symbols of a few common currencies.
func GuessCurrencySymbol(code string) (string, error) {
	switch strings.ToLower(code) {
	case "usd", "aud", "cad":
		return "$", nil
	case "eur":
		return "€", nil
	case "gbp":
		return "£", nil
	case "brl":
		return "R$", nil
	default:
		return "", ErrUnknownCurrency
	}
}

// Currency returns the lower-case ISO code.
func (f *MoneyFormatter) Currency() string {
	return strings.ToLower(f.currency.String())
}

func (f *MoneyFormatter) Symbol() string { return f.symbol }

// FormatAmount renders cents as symbol, grouped units and two decimals,
// e.g. 123456 as "R$1,234.56" and -500 as "-R$5.00".
func (f *MoneyFormatter) FormatAmount(cents int64) string {
	if f.custom != nil {
		return f.custom(cents)
	}
	abs := cents
	sign := ""
	if cents < 0 {
		abs = -cents
		sign = "-"
	}
	amount := f.printer.Sprintf("%v", number.Decimal(float64(abs)/100, number.Scale(2)))
	return sign + f.symbol + amount
}
