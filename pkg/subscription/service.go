package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Service defines the public interface for subscription billing.
type Service interface {
	// Owner views
	LoadBillable(ctx context.Context, ownerID uuid.UUID) (*BillableOwner, error)
	Periodicity(sub *Subscription) string

	// Creation
	NewSubscription(ctx context.Context, ownerID uuid.UUID, plan, name string) (*Builder, error)

	// Lifecycle
	Cancel(ctx context.Context, id uuid.UUID) (*Subscription, error)
	CancelNow(ctx context.Context, id uuid.UUID) (*Subscription, error)
	MarkAsCancelled(ctx context.Context, id uuid.UUID) (*Subscription, error)
	Resume(ctx context.Context, id uuid.UUID) (*Subscription, error)
	SetDiscount(ctx context.Context, id uuid.UUID, kind DiscountType, amount float64, cycles int) (*Discount, error)

	// Provider side of the owner
	CreatePaymentProfile(ctx context.Context, ownerID uuid.UUID, data PaymentData) (*PaymentProfile, error)
	Tab(ctx context.Context, ownerID uuid.UUID, data PaymentData, items ...BillItem) (*Bill, error)
	InvoiceFor(ctx context.Context, ownerID uuid.UUID, data PaymentData, items ...BillItem) (*Bill, error)
	BillerSubscriptions(ctx context.Context, ownerID uuid.UUID) ([]RemoteSubscription, error)
	AsBillerCustomer(ctx context.Context, ownerID uuid.UUID) (*Customer, error)

	// Reconciliation
	Handle(ctx context.Context, event ProviderEvent) (HandlingResult, error)
	ResolveOwner(ctx context.Context, billerID int64) (*Owner, error)
	ReconcileIfStale(ctx context.Context, ownerID uuid.UUID) (int, error)
}

type service struct {
	repo     Repository
	gateway  BillingGateway
	cfg      Config
	plans    *PlanCatalog
	now      Clock
	log      *slog.Logger
	emitter  Emitter
	metrics  *Metrics
	handlers map[EventKind]eventHandler
}

// NewService creates a Service backed by repo and gateway.
// Panics if either is nil.
func NewService(repo Repository, gateway BillingGateway, opts ...ServiceOption) Service {
	if repo == nil {
		panic("subscription: Repository is required")
	}
	if gateway == nil {
		panic("subscription: BillingGateway is required")
	}

	s := &service{
		repo:    repo,
		gateway: gateway,
		cfg:     DefaultConfig(),
		plans:   DefaultPlanCatalog(),
		now:     systemClock,
		log:     logger.Discard(),
		emitter: nopEmitter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("subscription"))
	s.handlers = map[EventKind]eventHandler{
		EventSubscriptionCanceled: s.handleSubscriptionCanceled,
		EventBillPaid:             s.handleBillPaid,
	}
	return s
}

// LoadBillable returns the owner with its subscriptions evaluated at the
// service clock.
func (s *service) LoadBillable(ctx context.Context, ownerID uuid.UUID) (*BillableOwner, error) {
	owner, err := s.repo.GetOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	subs, err := s.repo.ListSubscriptions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return NewBillableOwner(owner, subs, s.now()), nil
}

func (s *service) Periodicity(sub *Subscription) string {
	return sub.Periodicity(s.plans)
}

// billingOwner loads an owner that must already be a provider customer.
func (s *service) billingOwner(ctx context.Context, ownerID uuid.UUID) (*Owner, error) {
	owner, err := s.repo.GetOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.BillerID == nil {
		return nil, errors.Join(ErrIllegalArgument, ErrNoBillingIdentity)
	}
	return owner, nil
}
