package subscription

import (
	"slices"

	"github.com/dmitrymomot/billingkit/pkg/environment"
)

// Config holds the billing settings read from the environment.
type Config struct {
	Env             environment.Environment `env:"BILLING_ENV" envDefault:"testing"`
	AllowedEvents   []string                `env:"BILLING_ALLOWED_EVENTS" envDefault:"subscription_canceled,subscription_created,subscription_reactivated,charge_created,charge_refunded,bill_created,bill_canceled"`
	Model           string                  `env:"BILLING_MODEL" envDefault:"App\\User"`
	CreditCardLabel string                  `env:"CREDIT_CARD_LABEL" envDefault:"credit_card"`
	TrialDays       int                     `env:"BILLING_TRIAL_DAYS" envDefault:"7"`
	Currency        string                  `env:"BILLING_CURRENCY" envDefault:"brl"`
	CurrencySymbol  string                  `env:"BILLING_CURRENCY_SYMBOL"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Env: environment.Testing,
		AllowedEvents: []string{
			"subscription_canceled",
			"subscription_created",
			"subscription_reactivated",
			"charge_created",
			"charge_refunded",
			"bill_created",
			"bill_canceled",
		},
		Model:           `App\User`,
		CreditCardLabel: string(PaymentCreditCard),
		TrialDays:       7,
		Currency:        "brl",
	}
}

func (c Config) eventAllowed(eventType string) bool {
	return slices.Contains(c.AllowedEvents, eventType)
}

func (c Config) isCreditCard(t PaymentType) bool {
	label := c.CreditCardLabel
	if label == "" {
		label = string(PaymentCreditCard)
	}
	return string(t) == label
}
