package subscription_test

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/pkg/validator"
)

func TestValidatePaymentData(t *testing.T) {
	t.Parallel()

	t.Run("valid card", func(t *testing.T) {
		t.Parallel()
		got, err := subscription.ValidatePaymentData(cardPayment(), testNow)
		require.NoError(t, err)
		assert.Equal(t, "1111", got.CardLastFour())
	})

	t.Run("bank slip needs only the type", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.ValidatePaymentData(subscription.PaymentData{PaymentType: subscription.PaymentBankSlip}, testNow)
		require.NoError(t, err)
	})

	t.Run("missing payment type", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.ValidatePaymentData(subscription.PaymentData{}, testNow)
		require.ErrorIs(t, err, subscription.ErrValidation)
		errs := validator.ExtractValidationErrors(err)
		assert.True(t, errs.Has("payment_type"))
	})

	tests := []struct {
		name   string
		mutate func(*subscription.PaymentData)
		field  string
	}{
		{"holder name", func(p *subscription.PaymentData) { p.HolderName = " " }, "holder_name"},
		{"one digit month", func(p *subscription.PaymentData) { p.CardExpirationMonth = "5" }, "card_expiration_month"},
		{"month above twelve", func(p *subscription.PaymentData) { p.CardExpirationMonth = "13" }, "card_expiration_month"},
		{"two digit year", func(p *subscription.PaymentData) { p.CardExpirationYear = "30" }, "card_expiration_year"},
		{"year in the past", func(p *subscription.PaymentData) { p.CardExpirationYear = "2025" }, "card_expiration_year"},
		{"month already passed this year", func(p *subscription.PaymentData) {
			p.CardExpirationYear = "2026"
			p.CardExpirationMonth = "02"
		}, "card_expiration_month"},
		{"short card number", func(p *subscription.PaymentData) { p.CardNumber = "411111111111" }, "card_number"},
		{"card number with letters", func(p *subscription.PaymentData) { p.CardNumber = "4111x11111111111" }, "card_number"},
		{"cvv", func(p *subscription.PaymentData) { p.CardCVV = "" }, "card_cvv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := cardPayment()
			tt.mutate(&p)
			_, err := subscription.ValidatePaymentData(p, testNow)
			require.ErrorIs(t, err, subscription.ErrValidation)
			assert.True(t, validator.ExtractValidationErrors(err).Has(tt.field), "expected error on %s", tt.field)
		})
	}

	t.Run("current month of current year is accepted", func(t *testing.T) {
		t.Parallel()
		p := cardPayment()
		p.CardExpirationYear = "2026"
		p.CardExpirationMonth = "03"
		_, err := subscription.ValidatePaymentData(p, testNow)
		require.NoError(t, err)
	})
}

func TestValidateTaxID(t *testing.T) {
	t.Parallel()

	t.Run("normalizes formatted input", func(t *testing.T) {
		t.Parallel()
		got, err := subscription.ValidateTaxID("111.444.777-35")
		require.NoError(t, err)
		assert.Equal(t, "11144477735", got)
	})

	t.Run("left pads short input", func(t *testing.T) {
		t.Parallel()
		got, err := subscription.ValidateTaxID("1234567890")
		require.NoError(t, err)
		assert.Equal(t, "01234567890", got)
	})

	for _, raw := range []string{"", "   ", "111.444.777-36", "123456789012", "000.000.000-00", "99999999999"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			t.Parallel()
			_, err := subscription.ValidateTaxID(raw)
			require.ErrorIs(t, err, subscription.ErrValidation)
			assert.True(t, validator.ExtractValidationErrors(err).Has("cpf"))
		})
	}

	t.Run("accepts exactly the sequences with matching check digits", func(t *testing.T) {
		t.Parallel()
		rng := rand.New(rand.NewPCG(1, 2))
		for range 500 {
			var base [9]int
			for i := range base {
				base[i] = rng.IntN(10)
			}
			d1 := checkDigit(base[:], 10)
			d2 := checkDigit(append(base[:], d1), 11)
			valid := join(append(base[:], d1, d2))
			if strings.Count(valid, valid[:1]) == 11 {
				continue
			}

			got, err := subscription.ValidateTaxID(valid)
			require.NoError(t, err, valid)
			assert.Equal(t, valid, got)

			wrong := join(append(base[:], d1, (d2+1+rng.IntN(9))%10))
			_, err = subscription.ValidateTaxID(wrong)
			assert.ErrorIs(t, err, subscription.ErrValidation, wrong)
		}
	})
}

func checkDigit(digits []int, topWeight int) int {
	sum := 0
	for i, d := range digits {
		sum += d * (topWeight - i)
	}
	return ((10 * sum) % 11) % 10
}

func join(digits []int) string {
	var b strings.Builder
	for _, d := range digits {
		fmt.Fprint(&b, d)
	}
	return b.String()
}
