package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Builder collects the options of a new subscription. Obtain one from
// Service.NewSubscription and finish it with Create.
type Builder struct {
	svc        *service
	ownerID    uuid.UUID
	name       string
	planName   string
	planID     int64
	quantity   int
	trialDays  int
	trialSet   bool
	skipTrial  bool
	triggerDay *int
	metadata   map[string]any
	discount   *DiscountPayload
}

// NewSubscription resolves plan at the provider and starts a builder for the
// named slot.
func (s *service) NewSubscription(ctx context.Context, ownerID uuid.UUID, plan, name string) (*Builder, error) {
	planID, err := s.gateway.GetPlanID(ctx, plan)
	if err != nil {
		return nil, asGatewayError("get_plan", err)
	}
	return &Builder{
		svc:      s,
		ownerID:  ownerID,
		name:     normalizeName(name),
		planName: plan,
		planID:   planID,
		quantity: 1,
	}, nil
}

func (b *Builder) Quantity(n int) *Builder {
	b.quantity = n
	return b
}

// TrialDays overrides the configured trial length for card payments.
func (b *Builder) TrialDays(days int) *Builder {
	b.trialDays = days
	b.trialSet = true
	return b
}

func (b *Builder) SkipTrial() *Builder {
	b.skipTrial = true
	return b
}

// BillingTriggerDay overrides the day offset derived from the payment type.
func (b *Builder) BillingTriggerDay(day int) *Builder {
	b.triggerDay = &day
	return b
}

func (b *Builder) WithCoupon(code string) *Builder {
	if b.metadata == nil {
		b.metadata = make(map[string]any)
	}
	b.metadata["coupon"] = code
	return b
}

func (b *Builder) WithMetadata(md map[string]any) *Builder {
	if b.metadata == nil {
		b.metadata = make(map[string]any, len(md))
	}
	maps.Copy(b.metadata, md)
	return b
}

// WithDiscount attaches a discount to the first product item.
func (b *Builder) WithDiscount(kind DiscountType, amount float64, cycles int) *Builder {
	b.discount = &DiscountPayload{DiscountType: kind, Amount: amount, Cycles: cycles}
	return b
}

// Create runs the creation workflow. Payment data is validated before any
// provider call. Prior subscriptions in the same slot end up canceled, and on
// success the slot holds exactly one open subscription.
func (b *Builder) Create(ctx context.Context, data PaymentData, productIDs ...int64) (sub *Subscription, err error) {
	s := b.svc
	defer func() { s.metrics.operation("create", err) }()

	now := s.now()
	valid, err := ValidatePaymentData(data, now)
	if err != nil {
		return nil, err
	}
	isCard := s.cfg.isCreditCard(valid.PaymentType)

	var cpf string
	if !isCard {
		if cpf, err = ValidateTaxID(valid.CPF); err != nil {
			return nil, err
		}
	}

	billable, err := s.LoadBillable(ctx, b.ownerID)
	if err != nil {
		return nil, err
	}
	owner := billable.Owner
	log := s.log.With(logger.OwnerID(owner.ID), slog.Int64("plan_id", b.planID))

	customer, err := s.ensureCustomer(ctx, owner)
	if err != nil {
		return nil, err
	}

	bankSlip := 0
	if valid.PaymentType == PaymentBankSlip {
		bankSlip = 1
	}
	if err := s.gateway.UpdateCustomer(ctx, customer.ID, CustomerPayload{
		Metadata: map[string]any{"boleto": bankSlip},
	}); err != nil {
		return nil, asGatewayError("update_customer", err)
	}

	trialDays := b.trialDays
	skip := b.skipTrial
	var triggerDay int
	if isCard {
		if billable.HasSubscription() {
			skip = true
		} else if !b.trialSet {
			trialDays = s.cfg.TrialDays
		}
		triggerDay = creditCardTriggerDay
		if _, err := s.attachCard(ctx, owner, valid); err != nil {
			return nil, err
		}
	} else {
		skip = true
		owner.CPF = cpf
		owner.Card = BankSlipCardLabel
		triggerDay = bankSlipTriggerDay
	}
	if b.triggerDay != nil {
		triggerDay = *b.triggerDay
	}
	if err := s.repo.SaveOwner(ctx, owner); err != nil {
		return nil, err
	}

	if err := b.clearSubscriptions(ctx, log, owner.ID, customer.ID, now); err != nil {
		return nil, err
	}

	granted := !skip && trialDays > 0
	payload := b.payload(customer.ID, valid.PaymentType, triggerDay, productIDs)
	var trialEndsAt *time.Time
	if granted {
		start := now.AddDate(0, 0, trialDays)
		trialEndsAt = timePtr(start)
		payload.StartAt = timePtr(start)
		payload.Period = &PeriodPayload{StartAt: start}
	}

	created, err := s.gateway.CreateSubscription(ctx, payload)
	if err != nil {
		return nil, asGatewayError("create_subscription", err)
	}
	remote := created.Subscription

	sub = &Subscription{
		OwnerID:       owner.ID,
		Name:          b.name,
		BillerID:      remote.ID,
		BillerPlan:    b.planName,
		BillerPlanID:  b.planID,
		Status:        StatusPending,
		PaymentMethod: valid.PaymentType,
		TrialEndsAt:   trialEndsAt,
		EndsAt:        timePtr(now),
		BillingAt:     cloneTime(remote.StartAt),
	}
	if isCard && remote.Status == remoteStatusActive {
		sub.Status = StatusActive
	}
	if remote.CurrentPeriod != nil && remote.CurrentPeriod.EndAt != nil {
		sub.EndsAt = cloneTime(remote.CurrentPeriod.EndAt)
	}
	if valid.PaymentType == PaymentBankSlip {
		sub.BankSlipURL = printURL(created.Bill)
	}

	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	if granted {
		owner.TrialEndsAt = cloneTime(trialEndsAt)
		if err := s.repo.SaveOwner(ctx, owner); err != nil {
			return nil, err
		}
	}

	log.InfoContext(ctx, "subscription created",
		logger.SubscriptionID(sub.ID),
		logger.BillerID(sub.BillerID),
		logger.Result(string(sub.Status)),
	)
	return sub, nil
}

// clearSubscriptions cancels the owner's open provider subscriptions and then
// every open local subscription in the builder's slot. Provider failures are
// logged and skipped.
func (b *Builder) clearSubscriptions(ctx context.Context, log *slog.Logger, ownerID uuid.UUID, customerID int64, now time.Time) error {
	s := b.svc

	remote, err := s.gateway.GetSubscriptions(ctx, customerID)
	if err != nil {
		log.WarnContext(ctx, "listing provider subscriptions failed", logger.Error(err))
	}
	for _, r := range remote {
		if r.canceled() {
			continue
		}
		if err := s.gateway.DeleteSubscription(ctx, r.ID); err != nil {
			log.WarnContext(ctx, "cancelling prior provider subscription failed",
				logger.BillerID(r.ID),
				logger.Error(err),
			)
		}
	}

	if _, err := s.repo.CancelOwnerSubscriptions(ctx, ownerID, b.name, now); err != nil {
		return fmt.Errorf("cancel prior subscriptions: %w", err)
	}
	return nil
}

func (b *Builder) payload(customerID int64, method PaymentType, triggerDay int, productIDs []int64) SubscriptionPayload {
	p := SubscriptionPayload{
		PlanID:            b.planID,
		CustomerID:        customerID,
		PaymentMethodCode: string(method),
		BillingTriggerDay: triggerDay,
		ProductItems:      make([]ProductItemPayload, 0, len(productIDs)),
	}
	for i, id := range productIDs {
		item := ProductItemPayload{ProductID: id, Quantity: b.quantity, Discounts: []DiscountPayload{}}
		if i == 0 && b.discount != nil {
			item.Discounts = append(item.Discounts, *b.discount)
		}
		p.ProductItems = append(p.ProductItems, item)
	}
	if len(b.metadata) > 0 {
		p.Metadata = maps.Clone(b.metadata)
	}
	return p
}

func printURL(bill *Bill) string {
	if bill == nil || len(bill.Charges) == 0 {
		return ""
	}
	return bill.Charges[0].PrintURL
}
