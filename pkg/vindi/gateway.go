package vindi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const verifySuccess = "success"

// GetPlanID returns numeric input unchanged and otherwise looks the plan up
// by name. Resolved names are cached.
func (c *Client) GetPlanID(ctx context.Context, nameOrID string) (int64, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	if id, err := strconv.ParseInt(nameOrID, 10, 64); err == nil {
		return id, nil
	}
	if id, ok := c.plans.Get(nameOrID); ok {
		return id, nil
	}

	var out struct {
		Plans []subscription.RemotePlan `json:"plans"`
	}
	err := c.do(ctx, request{
		op:     "get_plan",
		method: http.MethodGet,
		path:   "plans",
		query:  "name=" + nameOrID,
	}, &out)
	if err != nil {
		return 0, err
	}
	if len(out.Plans) == 0 {
		return 0, &subscription.GatewayError{
			Op:         "get_plan",
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("plan %q not found", nameOrID),
			Err:        ErrPlanNotFound,
		}
	}

	id := out.Plans[0].ID
	c.plans.Add(nameOrID, id)
	return id, nil
}

func (c *Client) GetCustomer(ctx context.Context, id int64) (*subscription.Customer, error) {
	var out struct {
		Customer subscription.Customer `json:"customer"`
	}
	err := c.do(ctx, request{
		op:     "get_customer",
		method: http.MethodGet,
		path:   "customers/" + strconv.FormatInt(id, 10),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Customer, nil
}

func (c *Client) GetCustomerByEmail(ctx context.Context, email string) ([]subscription.Customer, error) {
	var out struct {
		Customers []subscription.Customer `json:"customers"`
	}
	err := c.do(ctx, request{
		op:     "find_customer",
		method: http.MethodGet,
		path:   "customers",
		query:  "email=" + email,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Customers, nil
}

func (c *Client) CreateCustomer(ctx context.Context, payload subscription.CustomerPayload) (*subscription.Customer, error) {
	var out struct {
		Customer subscription.Customer `json:"customer"`
	}
	err := c.do(ctx, request{
		op:     "create_customer",
		method: http.MethodPost,
		path:   "customers",
		body:   payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Customer, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, id int64, payload subscription.CustomerPayload) error {
	return c.do(ctx, request{
		op:     "update_customer",
		method: http.MethodPut,
		path:   "customers/" + strconv.FormatInt(id, 10),
		body:   payload,
	}, nil)
}

type paymentProfilePayload struct {
	HolderName        string `json:"holder_name"`
	CardExpiration    string `json:"card_expiration"`
	CardNumber        string `json:"card_number"`
	CardCVV           string `json:"card_cvv"`
	PaymentMethodCode string `json:"payment_method_code"`
	CustomerID        int64  `json:"customer_id"`
}

type transaction struct {
	ID             int64  `json:"id"`
	Status         string `json:"status"`
	GatewayMessage string `json:"gateway_message"`
}

// GetPaymentProfile registers the card as a payment profile of the customer
// and verifies it. An active card profile with the same last four digits is
// reused instead of registering the card again.
func (c *Client) GetPaymentProfile(ctx context.Context, customerID int64, data subscription.ValidatedPaymentData) (*subscription.PaymentProfile, error) {
	profile, err := c.findCardProfile(ctx, customerID, data.CardLastFour())
	if err != nil {
		return nil, err
	}
	if profile == nil {
		if profile, err = c.createCardProfile(ctx, customerID, data); err != nil {
			return nil, err
		}
	}

	tx, err := c.verify(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	if tx.Status != verifySuccess {
		return nil, &subscription.GatewayError{
			Op:      "verify_payment_profile",
			Message: tx.GatewayMessage,
			Err:     ErrUnverified,
		}
	}
	return profile, nil
}

func (c *Client) findCardProfile(ctx context.Context, customerID int64, lastFour string) (*subscription.PaymentProfile, error) {
	var out struct {
		PaymentProfiles []subscription.PaymentProfile `json:"payment_profiles"`
	}
	err := c.do(ctx, request{
		op:     "list_payment_profiles",
		method: http.MethodGet,
		path:   "payment_profiles",
		query:  "customer_id=" + strconv.FormatInt(customerID, 10) + " status=active type=PaymentProfile::CreditCard",
	}, &out)
	if err != nil {
		return nil, err
	}
	for i := range out.PaymentProfiles {
		if out.PaymentProfiles[i].CardNumberLastFour == lastFour {
			return &out.PaymentProfiles[i], nil
		}
	}
	return nil, nil
}

func (c *Client) createCardProfile(ctx context.Context, customerID int64, data subscription.ValidatedPaymentData) (*subscription.PaymentProfile, error) {
	payload := paymentProfilePayload{
		HolderName:        data.HolderName,
		CardExpiration:    cardExpiration(data.CardExpirationMonth, data.CardExpirationYear),
		CardNumber:        data.CardNumber,
		CardCVV:           data.CardCVV,
		PaymentMethodCode: string(subscription.PaymentCreditCard),
		CustomerID:        customerID,
	}

	var out struct {
		PaymentProfile subscription.PaymentProfile `json:"payment_profile"`
	}
	err := c.do(ctx, request{
		op:     "create_payment_profile",
		method: http.MethodPost,
		path:   "payment_profiles",
		body:   payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.PaymentProfile, nil
}

func (c *Client) verify(ctx context.Context, profileID int64) (*transaction, error) {
	var out struct {
		Transaction transaction `json:"transaction"`
	}
	err := c.do(ctx, request{
		op:     "verify_payment_profile",
		method: http.MethodPost,
		path:   "payment_profiles/" + strconv.FormatInt(profileID, 10) + "/verify",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Transaction, nil
}

// cardExpiration formats the expiry as MM/YYYY.
func cardExpiration(month, year string) string {
	if m, err := strconv.Atoi(month); err == nil {
		month = fmt.Sprintf("%02d", m)
	}
	return month + "/" + year
}

func (c *Client) GetSubscription(ctx context.Context, id int64) (*subscription.RemoteSubscription, error) {
	var out struct {
		Subscription subscription.RemoteSubscription `json:"subscription"`
	}
	err := c.do(ctx, request{
		op:     "get_subscription",
		method: http.MethodGet,
		path:   "subscriptions/" + strconv.FormatInt(id, 10),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Subscription, nil
}

func (c *Client) GetSubscriptions(ctx context.Context, customerID int64) ([]subscription.RemoteSubscription, error) {
	var out struct {
		Subscriptions []subscription.RemoteSubscription `json:"subscriptions"`
	}
	err := c.do(ctx, request{
		op:     "list_subscriptions",
		method: http.MethodGet,
		path:   "subscriptions",
		query:  "status=active customer_id=" + strconv.FormatInt(customerID, 10),
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Subscriptions, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		op:     "delete_subscription",
		method: http.MethodDelete,
		path:   "subscriptions/" + strconv.FormatInt(id, 10),
	}, nil)
}

func (c *Client) ReactivateSubscription(ctx context.Context, id int64, payload subscription.ReactivatePayload) (*subscription.RemoteSubscription, error) {
	var out struct {
		Subscription subscription.RemoteSubscription `json:"subscription"`
	}
	err := c.do(ctx, request{
		op:     "reactivate_subscription",
		method: http.MethodPost,
		path:   "subscriptions/" + strconv.FormatInt(id, 10) + "/reactivate",
		body:   payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Subscription, nil
}

func (c *Client) CreateSubscription(ctx context.Context, payload subscription.SubscriptionPayload) (*subscription.CreatedSubscription, error) {
	var out subscription.CreatedSubscription
	err := c.do(ctx, request{
		op:     "create_subscription",
		method: http.MethodPost,
		path:   "subscriptions",
		body:   payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBill(ctx context.Context, payload subscription.BillPayload) (*subscription.Bill, error) {
	var out struct {
		Bill subscription.Bill `json:"bill"`
	}
	err := c.do(ctx, request{
		op:     "create_bill",
		method: http.MethodPost,
		path:   "bills",
		body:   payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Bill, nil
}

func (c *Client) CreateDiscount(ctx context.Context, payload subscription.DiscountPayload) (*subscription.Discount, error) {
	var out struct {
		Discount subscription.Discount `json:"discount"`
	}
	err := c.do(ctx, request{
		op:     "create_discount",
		method: http.MethodPost,
		path:   "discounts",
		body:   payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Discount, nil
}
