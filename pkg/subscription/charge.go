package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ensureCustomer returns the owner's provider customer, reusing BillerID,
// then an existing customer with the owner's email, and creating one as a
// last resort. The owner is saved with both identifiers set.
func (s *service) ensureCustomer(ctx context.Context, owner *Owner) (*Customer, error) {
	if owner.BillerID != nil {
		c, err := s.gateway.GetCustomer(ctx, *owner.BillerID)
		if err != nil {
			return nil, asGatewayError("get_customer", err)
		}
		return c, nil
	}

	existing, err := s.gateway.GetCustomerByEmail(ctx, owner.Email)
	if err != nil {
		return nil, errors.Join(ErrIllegalArgument, asGatewayError("get_customer_by_email", err))
	}

	var customer *Customer
	if len(existing) > 0 {
		customer = &existing[0]
	} else {
		customer, err = s.gateway.CreateCustomer(ctx, CustomerPayload{
			Name:  owner.Name,
			Email: owner.Email,
			Code:  owner.ID.String(),
		})
		if err != nil {
			return nil, errors.Join(ErrIllegalArgument, asGatewayError("create_customer", err))
		}
	}

	id := customer.ID
	owner.BillerID = &id
	owner.CustomerID = &id
	if err := s.repo.SaveOwner(ctx, owner); err != nil {
		return nil, err
	}
	return customer, nil
}

// attachCard verifies the card at the provider and records its brand and
// last digits on the owner. The owner is not saved.
func (s *service) attachCard(ctx context.Context, owner *Owner, data ValidatedPaymentData) (*PaymentProfile, error) {
	profile, err := s.gateway.GetPaymentProfile(ctx, *owner.BillerID, data)
	if err != nil {
		return nil, asGatewayError("payment_profile", err)
	}
	owner.CardLastFour = data.CardLastFour()
	if profile.PaymentCompany != nil {
		owner.Card = profile.PaymentCompany.Name
	}
	return profile, nil
}

// CreatePaymentProfile stores a verified card for an owner that is already
// a provider customer.
func (s *service) CreatePaymentProfile(ctx context.Context, ownerID uuid.UUID, data PaymentData) (*PaymentProfile, error) {
	valid, err := ValidatePaymentData(data, s.now())
	if err != nil {
		return nil, err
	}
	owner, err := s.billingOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	profile, err := s.attachCard(ctx, owner, valid)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveOwner(ctx, owner); err != nil {
		return nil, err
	}
	return profile, nil
}

// Tab bills the owner once for items.
func (s *service) Tab(ctx context.Context, ownerID uuid.UUID, data PaymentData, items ...BillItem) (bill *Bill, err error) {
	defer func() { s.metrics.operation("tab", err) }()

	valid, err := ValidatePaymentData(data, s.now())
	if err != nil {
		return nil, err
	}
	owner, err := s.billingOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	installments := valid.Installments
	if installments <= 0 {
		installments = 1
	}
	payload := BillPayload{
		CustomerID:        *owner.BillerID,
		PaymentMethodCode: string(valid.PaymentType),
		BillItems:         items,
		Installments:      installments,
	}
	if s.cfg.isCreditCard(valid.PaymentType) {
		profile, err := s.gateway.GetPaymentProfile(ctx, *owner.BillerID, valid)
		if err != nil {
			return nil, asGatewayError("payment_profile", err)
		}
		payload.PaymentProfile = &PaymentProfileRef{ID: profile.ID}
	}

	bill, err = s.gateway.CreateBill(ctx, payload)
	if err != nil {
		return nil, asGatewayError("create_bill", err)
	}
	return bill, nil
}

// InvoiceFor is Tab.
func (s *service) InvoiceFor(ctx context.Context, ownerID uuid.UUID, data PaymentData, items ...BillItem) (*Bill, error) {
	return s.Tab(ctx, ownerID, data, items...)
}

// BillerSubscriptions lists the owner's active provider subscriptions.
func (s *service) BillerSubscriptions(ctx context.Context, ownerID uuid.UUID) ([]RemoteSubscription, error) {
	owner, err := s.billingOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	subs, err := s.gateway.GetSubscriptions(ctx, *owner.BillerID)
	if err != nil {
		return nil, asGatewayError("get_subscriptions", err)
	}
	if subs == nil {
		subs = []RemoteSubscription{}
	}
	return subs, nil
}

func (s *service) AsBillerCustomer(ctx context.Context, ownerID uuid.UUID) (*Customer, error) {
	owner, err := s.billingOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	c, err := s.gateway.GetCustomer(ctx, *owner.BillerID)
	if err != nil {
		return nil, asGatewayError("get_customer", err)
	}
	return c, nil
}
