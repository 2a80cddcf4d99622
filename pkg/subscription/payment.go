package subscription

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/validator"
)

// PaymentData is raw payment input as submitted by the owner.
type PaymentData struct {
	PaymentType         PaymentType `json:"payment_type"`
	HolderName          string      `json:"holder_name,omitempty"`
	CardExpirationMonth string      `json:"card_expiration_month,omitempty"`
	CardExpirationYear  string      `json:"card_expiration_year,omitempty"`
	CardNumber          string      `json:"card_number,omitempty"`
	CardCVV             string      `json:"card_cvv,omitempty"`
	CPF                 string      `json:"cpf,omitempty"`
	Installments        int         `json:"installments,omitempty"`
}

// ValidatedPaymentData can only be obtained from ValidatePaymentData.
type ValidatedPaymentData struct {
	PaymentData
}

// CardLastFour returns the last four digits of the card number.
func (v ValidatedPaymentData) CardLastFour() string {
	n := v.CardNumber
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// ValidatePaymentData checks raw against the rules for its payment type as of
// now. Failures are returned as ErrValidation joined with
// validator.ValidationErrors.
func ValidatePaymentData(raw PaymentData, now time.Time) (ValidatedPaymentData, error) {
	isCard := raw.PaymentType == PaymentCreditCard

	month, monthErr := strconv.Atoi(raw.CardExpirationMonth)
	year, yearErr := strconv.Atoi(raw.CardExpirationYear)
	minMonth := 1
	if yearErr == nil && year == now.Year() {
		minMonth = int(now.Month())
	}

	err := validator.Apply(
		validator.RequiredString("payment_type", string(raw.PaymentType)),
		validator.When(isCard, validator.RequiredString("holder_name", raw.HolderName)),
		validator.When(isCard, validator.Digits("card_expiration_month", raw.CardExpirationMonth, 2)),
		validator.When(isCard && monthErr == nil, validator.MinNum("card_expiration_month", month, minMonth)),
		validator.When(isCard && monthErr == nil, validator.MaxNum("card_expiration_month", month, 12)),
		validator.When(isCard, validator.Digits("card_expiration_year", raw.CardExpirationYear, 4)),
		validator.When(isCard && yearErr == nil, validator.MinNum("card_expiration_year", year, now.Year())),
		validator.When(isCard, validator.Digits("card_number", raw.CardNumber, 16)),
		validator.When(isCard, validator.RequiredString("card_cvv", raw.CardCVV)),
	)
	if err != nil {
		return ValidatedPaymentData{}, errors.Join(ErrValidation, err)
	}
	return ValidatedPaymentData{PaymentData: raw}, nil
}
