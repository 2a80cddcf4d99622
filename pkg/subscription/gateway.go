package subscription

import (
	"context"
	"encoding/json"
	"time"
)

// BillingGateway is the provider API the package drives. Implementations
// must honor ctx and report provider failures as *GatewayError.
type BillingGateway interface {
	// GetPlanID resolves a plan name to its id. Numeric input is returned as is.
	GetPlanID(ctx context.Context, nameOrID string) (int64, error)

	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) ([]Customer, error)
	CreateCustomer(ctx context.Context, payload CustomerPayload) (*Customer, error)
	UpdateCustomer(ctx context.Context, id int64, payload CustomerPayload) error

	// GetPaymentProfile creates or refreshes the customer's card profile and
	// verifies it. A verification status other than success is a GatewayError
	// carrying the provider message.
	GetPaymentProfile(ctx context.Context, customerID int64, data ValidatedPaymentData) (*PaymentProfile, error)

	GetSubscription(ctx context.Context, id int64) (*RemoteSubscription, error)
	// GetSubscriptions lists the customer's active subscriptions.
	GetSubscriptions(ctx context.Context, customerID int64) ([]RemoteSubscription, error)
	// DeleteSubscription cancels the subscription at the provider.
	DeleteSubscription(ctx context.Context, id int64) error
	ReactivateSubscription(ctx context.Context, id int64, payload ReactivatePayload) (*RemoteSubscription, error)
	CreateSubscription(ctx context.Context, payload SubscriptionPayload) (*CreatedSubscription, error)

	CreateBill(ctx context.Context, payload BillPayload) (*Bill, error)
	CreateDiscount(ctx context.Context, payload DiscountPayload) (*Discount, error)
}

type Customer struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name,omitempty"`
	Email    string         `json:"email,omitempty"`
	Code     string         `json:"code,omitempty"`
	Status   string         `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type CustomerPayload struct {
	Name     string         `json:"name,omitempty"`
	Email    string         `json:"email,omitempty"`
	Code     string         `json:"code,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type PaymentCompany struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type PaymentProfile struct {
	ID                 int64           `json:"id"`
	Status             string          `json:"status"`
	HolderName         string          `json:"holder_name"`
	CardNumberLastFour string          `json:"card_number_last_four"`
	PaymentCompany     *PaymentCompany `json:"payment_company"`
}

type Period struct {
	ID      int64      `json:"id"`
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
	Cycle   int        `json:"cycle"`
}

type ProductItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
	Product  *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"product,omitempty"`
}

type RemotePlan struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// RemoteSubscription is the provider's view of a subscription.
type RemoteSubscription struct {
	ID            int64         `json:"id"`
	Status        string        `json:"status"`
	StartAt       *time.Time    `json:"start_at"`
	EndAt         *time.Time    `json:"end_at"`
	CurrentPeriod *Period       `json:"current_period"`
	ProductItems  []ProductItem `json:"product_items"`
	Customer      *Customer     `json:"customer"`
	Plan          *RemotePlan   `json:"plan"`
}

func (r *RemoteSubscription) canceled() bool { return r.Status == remoteStatusCanceled }

type Charge struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	PrintURL string `json:"print_url"`
}

type Bill struct {
	ID       int64     `json:"id"`
	Code     string    `json:"code,omitempty"`
	Amount   string    `json:"amount,omitempty"`
	Status   string    `json:"status"`
	Charges  []Charge  `json:"charges"`
	Customer *Customer `json:"customer"`
	Period   *Period   `json:"period"`
}

// CreatedSubscription is returned by subscription creation.
type CreatedSubscription struct {
	Subscription RemoteSubscription `json:"subscription"`
	Bill         *Bill              `json:"bill"`
}

type DiscountPayload struct {
	ProductItemID int64        `json:"product_item_id,omitempty"`
	DiscountType  DiscountType `json:"discount_type"`
	Amount        float64      `json:"amount"`
	Cycles        int          `json:"cycles,omitempty"`
}

type Discount struct {
	ID           int64        `json:"id"`
	DiscountType DiscountType `json:"discount_type"`
	Amount       json.Number  `json:"amount"`
	Cycles       int          `json:"cycles"`
}

type ProductItemPayload struct {
	ProductID int64             `json:"product_id"`
	Quantity  int               `json:"quantity,omitempty"`
	Discounts []DiscountPayload `json:"discounts"`
}

type PeriodPayload struct {
	StartAt time.Time `json:"start_at"`
}

type SubscriptionPayload struct {
	PlanID            int64                `json:"plan_id"`
	CustomerID        int64                `json:"customer_id"`
	PaymentMethodCode string               `json:"payment_method_code"`
	BillingTriggerDay int                  `json:"billing_trigger_day"`
	ProductItems      []ProductItemPayload `json:"product_items"`
	StartAt           *time.Time           `json:"start_at,omitempty"`
	Period            *PeriodPayload       `json:"period,omitempty"`
	Metadata          map[string]any       `json:"metadata,omitempty"`
}

type ReactivatePayload struct {
	PlanID   int64      `json:"plan_id,omitempty"`
	TrialEnd *time.Time `json:"trial_end,omitempty"` // nil ends the trial immediately
}

type BillItem struct {
	ProductID   int64   `json:"product_id"`
	Amount      float64 `json:"amount,omitempty"`
	Quantity    int     `json:"quantity,omitempty"`
	Description string  `json:"description,omitempty"`
}

type PaymentProfileRef struct {
	ID int64 `json:"id"`
}

type BillPayload struct {
	CustomerID        int64              `json:"customer_id"`
	PaymentMethodCode string             `json:"payment_method_code"`
	BillItems         []BillItem         `json:"bill_items"`
	Installments      int                `json:"installments"`
	PaymentProfile    *PaymentProfileRef `json:"payment_profile,omitempty"`
}
