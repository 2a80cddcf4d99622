package subscription

import "time"

// Status is the persisted lifecycle status of a subscription.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

// PaymentType identifies how an owner pays.
type PaymentType string

const (
	PaymentCreditCard PaymentType = "credit_card"
	PaymentBankSlip   PaymentType = "bank_slip"
)

// DiscountType is the provider discount kind.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
	DiscountQuantity   DiscountType = "quantity"
)

const (
	// DefaultName is the slot used when a subscription has no name.
	DefaultName = "default"

	// BankSlipCardLabel is stored as the owner's card brand for bank slip payers.
	BankSlipCardLabel = "BOLETO"

	// Remote subscription status reported by the provider.
	remoteStatusActive   = "active"
	remoteStatusCanceled = "canceled"

	creditCardTriggerDay = 0
	bankSlipTriggerDay   = -10
)

// Clock returns the current time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func normalizeName(name string) string {
	if name == "" {
		return DefaultName
	}
	return name
}
