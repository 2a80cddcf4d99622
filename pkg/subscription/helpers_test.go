package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) GetPlanID(ctx context.Context, nameOrID string) (int64, error) {
	args := m.Called(ctx, nameOrID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockGateway) GetCustomer(ctx context.Context, id int64) (*subscription.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Customer), args.Error(1)
}

func (m *mockGateway) GetCustomerByEmail(ctx context.Context, email string) ([]subscription.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]subscription.Customer), args.Error(1)
}

func (m *mockGateway) CreateCustomer(ctx context.Context, payload subscription.CustomerPayload) (*subscription.Customer, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Customer), args.Error(1)
}

func (m *mockGateway) UpdateCustomer(ctx context.Context, id int64, payload subscription.CustomerPayload) error {
	args := m.Called(ctx, id, payload)
	return args.Error(0)
}

func (m *mockGateway) GetPaymentProfile(ctx context.Context, customerID int64, data subscription.ValidatedPaymentData) (*subscription.PaymentProfile, error) {
	args := m.Called(ctx, customerID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.PaymentProfile), args.Error(1)
}

func (m *mockGateway) GetSubscription(ctx context.Context, id int64) (*subscription.RemoteSubscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.RemoteSubscription), args.Error(1)
}

func (m *mockGateway) GetSubscriptions(ctx context.Context, customerID int64) ([]subscription.RemoteSubscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]subscription.RemoteSubscription), args.Error(1)
}

func (m *mockGateway) DeleteSubscription(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockGateway) ReactivateSubscription(ctx context.Context, id int64, payload subscription.ReactivatePayload) (*subscription.RemoteSubscription, error) {
	args := m.Called(ctx, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.RemoteSubscription), args.Error(1)
}

func (m *mockGateway) CreateSubscription(ctx context.Context, payload subscription.SubscriptionPayload) (*subscription.CreatedSubscription, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CreatedSubscription), args.Error(1)
}

func (m *mockGateway) CreateBill(ctx context.Context, payload subscription.BillPayload) (*subscription.Bill, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Bill), args.Error(1)
}

func (m *mockGateway) CreateDiscount(ctx context.Context, payload subscription.DiscountPayload) (*subscription.Discount, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Discount), args.Error(1)
}

// recordingEmitter keeps emitted events in order.
type recordingEmitter struct {
	mu     sync.Mutex
	events []subscription.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e subscription.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) Events() []subscription.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]subscription.Event(nil), r.events...)
}

// setClaimer is a Claimer backed by a set.
type setClaimer struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (c *setClaimer) Claim(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if c.seen[key] {
		return false, nil
	}
	c.seen[key] = true
	return true, nil
}

func (c *setClaimer) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, key)
	return nil
}

// flakyEmitter fails the first n calls, n being failures, and records
// afterwards.
type flakyEmitter struct {
	recordingEmitter
	failures int
	calls    int
}

func (f *flakyEmitter) Emit(ctx context.Context, e subscription.Event) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("broker down")
	}
	return f.recordingEmitter.Emit(ctx, e)
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func seedOwner(t *testing.T, repo *subscription.MemoryRepository, mutate func(*subscription.Owner)) *subscription.Owner {
	t.Helper()
	o := &subscription.Owner{
		Name:  "Maria Silva",
		Email: "maria@example.com",
	}
	if mutate != nil {
		mutate(o)
	}
	require.NoError(t, repo.SaveOwner(context.Background(), o))
	return o
}

func seedSubscription(t *testing.T, repo *subscription.MemoryRepository, ownerID uuid.UUID, mutate func(*subscription.Subscription)) *subscription.Subscription {
	t.Helper()
	s := &subscription.Subscription{
		OwnerID:       ownerID,
		Name:          subscription.DefaultName,
		BillerID:      9001,
		BillerPlan:    "plano-mensal",
		BillerPlanID:  14649,
		Status:        subscription.StatusActive,
		PaymentMethod: subscription.PaymentCreditCard,
		EndsAt:        timePtr(testNow.AddDate(0, 0, 20)),
		CreatedAt:     testNow.AddDate(0, -1, 0),
	}
	if mutate != nil {
		mutate(s)
	}
	require.NoError(t, repo.CreateSubscription(context.Background(), s))
	return s
}

func cardPayment() subscription.PaymentData {
	return subscription.PaymentData{
		PaymentType:         subscription.PaymentCreditCard,
		HolderName:          "MARIA SILVA",
		CardExpirationMonth: "12",
		CardExpirationYear:  "2030",
		CardNumber:          "4111111111111111",
		CardCVV:             "123",
	}
}

func bankSlipPayment() subscription.PaymentData {
	return subscription.PaymentData{
		PaymentType: subscription.PaymentBankSlip,
		CPF:         "111.444.777-35",
	}
}

func newTestService(repo subscription.Repository, gw subscription.BillingGateway, opts ...subscription.ServiceOption) subscription.Service {
	base := []subscription.ServiceOption{subscription.WithClock(fixedClock)}
	return subscription.NewService(repo, gw, append(base, opts...)...)
}
