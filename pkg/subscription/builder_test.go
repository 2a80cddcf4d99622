package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

func openSubscriptions(t *testing.T, repo *subscription.MemoryRepository, owner *subscription.Owner, name string) []subscription.Subscription {
	t.Helper()
	subs, err := repo.ListSubscriptions(context.Background(), owner.ID)
	require.NoError(t, err)
	var open []subscription.Subscription
	for _, s := range subs {
		if s.Name == name && s.Status != subscription.StatusCanceled {
			open = append(open, s)
		}
	}
	return open
}

func TestCreateCreditCardGrantsTrial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := subscription.NewMemoryRepository(fixedClock)
	owner := seedOwner(t, repo, nil)
	periodEnd := testNow.AddDate(0, 1, 7)
	trialEnd := testNow.AddDate(0, 0, 7)

	gw := &mockGateway{}
	gw.On("GetPlanID", mock.Anything, "plano-mensal").Return(int64(14649), nil)
	gw.On("GetCustomerByEmail", mock.Anything, "maria@example.com").Return([]subscription.Customer{}, nil)
	gw.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(p subscription.CustomerPayload) bool {
		return p.Email == "maria@example.com" && p.Name == "Maria Silva"
	})).Return(&subscription.Customer{ID: 321}, nil)
	gw.On("UpdateCustomer", mock.Anything, int64(321), subscription.CustomerPayload{Metadata: map[string]any{"boleto": 0}}).Return(nil)
	gw.On("GetPaymentProfile", mock.Anything, int64(321), mock.Anything).Return(&subscription.PaymentProfile{
		ID:             55,
		Status:         "active",
		PaymentCompany: &subscription.PaymentCompany{Name: "Visa"},
	}, nil)
	gw.On("GetSubscriptions", mock.Anything, int64(321)).Return([]subscription.RemoteSubscription{}, nil)

	var sent subscription.SubscriptionPayload
	gw.On("CreateSubscription", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(subscription.SubscriptionPayload)
	}).Return(&subscription.CreatedSubscription{
		Subscription: subscription.RemoteSubscription{
			ID:            9100,
			Status:        "active",
			StartAt:       &trialEnd,
			CurrentPeriod: &subscription.Period{EndAt: &periodEnd},
		},
	}, nil)

	svc := newTestService(repo, gw)
	b, err := svc.NewSubscription(ctx, owner.ID, "plano-mensal", "")
	require.NoError(t, err)

	sub, err := b.Create(ctx, cardPayment(), 11)
	require.NoError(t, err)

	assert.Equal(t, subscription.DefaultName, sub.Name)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, int64(9100), sub.BillerID)
	assert.Equal(t, int64(14649), sub.BillerPlanID)
	assert.Equal(t, "plano-mensal", sub.BillerPlan)
	require.NotNil(t, sub.TrialEndsAt)
	assert.WithinDuration(t, testNow.Add(7*24*time.Hour), *sub.TrialEndsAt, time.Second)
	assert.True(t, sub.EndsAt.Equal(periodEnd))
	assert.Empty(t, sub.BankSlipURL)

	assert.Equal(t, 0, sent.BillingTriggerDay)
	assert.Equal(t, "credit_card", sent.PaymentMethodCode)
	assert.Equal(t, int64(321), sent.CustomerID)
	require.NotNil(t, sent.StartAt)
	assert.True(t, sent.StartAt.Equal(trialEnd))
	require.NotNil(t, sent.Period)
	assert.True(t, sent.Period.StartAt.Equal(trialEnd))
	require.Len(t, sent.ProductItems, 1)
	assert.Equal(t, int64(11), sent.ProductItems[0].ProductID)
	assert.Empty(t, sent.ProductItems[0].Discounts)

	stored, err := repo.GetOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BillerID)
	assert.Equal(t, int64(321), *stored.BillerID)
	assert.Equal(t, int64(321), *stored.CustomerID)
	assert.Equal(t, "1111", stored.CardLastFour)
	assert.Equal(t, "Visa", stored.Card)
	require.NotNil(t, stored.TrialEndsAt)
	assert.True(t, stored.TrialEndsAt.Equal(*sub.TrialEndsAt))

	gw.AssertExpectations(t)
}

func TestCreateCreditCardWithOpenSubscriptionSkipsTrial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := subscription.NewMemoryRepository(fixedClock)
	owner := seedOwner(t, repo, func(o *subscription.Owner) { o.BillerID = int64Ptr(321) })
	prior := seedSubscription(t, repo, owner.ID, nil)

	gw := &mockGateway{}
	gw.On("GetPlanID", mock.Anything, "14652").Return(int64(14652), nil)
	gw.On("GetCustomer", mock.Anything, int64(321)).Return(&subscription.Customer{ID: 321}, nil)
	gw.On("UpdateCustomer", mock.Anything, int64(321), mock.Anything).Return(nil)
	gw.On("GetPaymentProfile", mock.Anything, int64(321), mock.Anything).Return(&subscription.PaymentProfile{ID: 55}, nil)
	gw.On("GetSubscriptions", mock.Anything, int64(321)).Return([]subscription.RemoteSubscription{
		{ID: 9001, Status: "active"},
		{ID: 8000, Status: "canceled"},
	}, nil)
	gw.On("DeleteSubscription", mock.Anything, int64(9001)).Return(errors.New("provider unavailable"))
	gw.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p subscription.SubscriptionPayload) bool {
		return p.StartAt == nil && p.Period == nil
	})).Return(&subscription.CreatedSubscription{
		Subscription: subscription.RemoteSubscription{ID: 9200, Status: "pending"},
	}, nil)

	b, err := newTestService(repo, gw).NewSubscription(ctx, owner.ID, "14652", "default")
	require.NoError(t, err)
	sub, err := b.Create(ctx, cardPayment(), 11)
	require.NoError(t, err, "remote cancellation failures are not fatal")

	assert.Nil(t, sub.TrialEndsAt)
	assert.Equal(t, subscription.StatusPending, sub.Status, "remote status is not active")
	assert.True(t, sub.EndsAt.Equal(testNow))

	open := openSubscriptions(t, repo, owner, subscription.DefaultName)
	require.Len(t, open, 1)
	assert.Equal(t, sub.ID, open[0].ID)

	old, err := repo.GetSubscription(ctx, prior.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCanceled, old.Status)
	assert.True(t, old.Cancelled())

	gw.AssertNotCalled(t, "DeleteSubscription", mock.Anything, int64(8000))
}

func TestCreateBankSlip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := subscription.NewMemoryRepository(fixedClock)
	owner := seedOwner(t, repo, nil)

	gw := &mockGateway{}
	gw.On("GetPlanID", mock.Anything, "plano-anual").Return(int64(14652), nil)
	gw.On("GetCustomerByEmail", mock.Anything, "maria@example.com").Return([]subscription.Customer{{ID: 400}}, nil)
	gw.On("UpdateCustomer", mock.Anything, int64(400), subscription.CustomerPayload{Metadata: map[string]any{"boleto": 1}}).Return(nil)
	gw.On("GetSubscriptions", mock.Anything, int64(400)).Return([]subscription.RemoteSubscription{}, nil)

	var sent subscription.SubscriptionPayload
	gw.On("CreateSubscription", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(subscription.SubscriptionPayload)
	}).Return(&subscription.CreatedSubscription{
		Subscription: subscription.RemoteSubscription{ID: 9300, Status: "active"},
		Bill: &subscription.Bill{
			ID:      12,
			Charges: []subscription.Charge{{ID: 1, PrintURL: "https://billing.example.com/slip/12"}},
		},
	}, nil)

	b, err := newTestService(repo, gw).NewSubscription(ctx, owner.ID, "plano-anual", "")
	require.NoError(t, err)
	sub, err := b.WithDiscount(subscription.DiscountPercentage, 10, 3).Create(ctx, bankSlipPayment(), 11, 12)
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusPending, sub.Status, "bank slip waits for the first payment")
	assert.Nil(t, sub.TrialEndsAt)
	assert.Equal(t, "https://billing.example.com/slip/12", sub.BankSlipURL)
	assert.Equal(t, subscription.PaymentBankSlip, sub.PaymentMethod)

	assert.Equal(t, -10, sent.BillingTriggerDay)
	assert.Nil(t, sent.StartAt)
	require.Len(t, sent.ProductItems, 2)
	assert.Equal(t, []subscription.DiscountPayload{{DiscountType: subscription.DiscountPercentage, Amount: 10, Cycles: 3}}, sent.ProductItems[0].Discounts)
	assert.Empty(t, sent.ProductItems[1].Discounts)

	stored, err := repo.GetOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "11144477735", stored.CPF)
	assert.Equal(t, subscription.BankSlipCardLabel, stored.Card)
	assert.Nil(t, stored.TrialEndsAt)
	gw.AssertNotCalled(t, "GetPaymentProfile", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestCreateFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("invalid payment data stops before the provider", func(t *testing.T) {
		t.Parallel()
		repo := subscription.NewMemoryRepository(fixedClock)
		owner := seedOwner(t, repo, nil)
		gw := &mockGateway{}
		gw.On("GetPlanID", mock.Anything, "x").Return(int64(1), nil)

		b, err := newTestService(repo, gw).NewSubscription(ctx, owner.ID, "x", "")
		require.NoError(t, err)
		p := cardPayment()
		p.CardNumber = "123"
		_, err = b.Create(ctx, p)
		require.ErrorIs(t, err, subscription.ErrValidation)
		gw.AssertNumberOfCalls(t, "GetCustomerByEmail", 0)
	})

	t.Run("invalid tax id", func(t *testing.T) {
		t.Parallel()
		repo := subscription.NewMemoryRepository(fixedClock)
		owner := seedOwner(t, repo, nil)
		gw := &mockGateway{}
		gw.On("GetPlanID", mock.Anything, "x").Return(int64(1), nil)

		b, err := newTestService(repo, gw).NewSubscription(ctx, owner.ID, "x", "")
		require.NoError(t, err)
		_, err = b.Create(ctx, subscription.PaymentData{PaymentType: subscription.PaymentBankSlip, CPF: "111.444.777-00"})
		require.ErrorIs(t, err, subscription.ErrValidation)
	})

	t.Run("customer creation failure is an illegal argument", func(t *testing.T) {
		t.Parallel()
		repo := subscription.NewMemoryRepository(fixedClock)
		owner := seedOwner(t, repo, nil)
		gw := &mockGateway{}
		gw.On("GetPlanID", mock.Anything, "x").Return(int64(1), nil)
		gw.On("GetCustomerByEmail", mock.Anything, mock.Anything).Return([]subscription.Customer{}, nil)
		gw.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil, &subscription.GatewayError{Op: "create_customer", StatusCode: 422, Message: "email invalid"})

		b, err := newTestService(repo, gw).NewSubscription(ctx, owner.ID, "x", "")
		require.NoError(t, err)
		_, err = b.Create(ctx, cardPayment())
		require.ErrorIs(t, err, subscription.ErrIllegalArgument)
		assert.ErrorIs(t, err, subscription.ErrGateway)
	})

	t.Run("remote creation failure persists nothing", func(t *testing.T) {
		t.Parallel()
		repo := subscription.NewMemoryRepository(fixedClock)
		owner := seedOwner(t, repo, func(o *subscription.Owner) { o.BillerID = int64Ptr(321) })
		gw := &mockGateway{}
		gw.On("GetPlanID", mock.Anything, "x").Return(int64(1), nil)
		gw.On("GetCustomer", mock.Anything, int64(321)).Return(&subscription.Customer{ID: 321}, nil)
		gw.On("UpdateCustomer", mock.Anything, int64(321), mock.Anything).Return(nil)
		gw.On("GetSubscriptions", mock.Anything, int64(321)).Return(nil, errors.New("timeout"))
		gw.On("CreateSubscription", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		b, err := newTestService(repo, gw).NewSubscription(ctx, owner.ID, "x", "")
		require.NoError(t, err)
		_, err = b.Create(ctx, bankSlipPayment())
		require.ErrorIs(t, err, subscription.ErrGateway)

		subs, err := repo.ListSubscriptions(ctx, owner.ID)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		gw := &mockGateway{}
		gw.On("GetPlanID", mock.Anything, "ghost").Return(int64(0), &subscription.GatewayError{Op: "get_plan", StatusCode: 404})
		_, err := newTestService(subscription.NewMemoryRepository(fixedClock), gw).
			NewSubscription(ctx, uuid.New(), "ghost", "")
		require.ErrorIs(t, err, subscription.ErrGateway)
	})
}

func TestBuilderOptions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := subscription.NewMemoryRepository(fixedClock)
	owner := seedOwner(t, repo, func(o *subscription.Owner) { o.BillerID = int64Ptr(321) })

	gw := &mockGateway{}
	gw.On("GetPlanID", mock.Anything, "pro").Return(int64(5), nil)
	gw.On("GetCustomer", mock.Anything, int64(321)).Return(&subscription.Customer{ID: 321}, nil)
	gw.On("UpdateCustomer", mock.Anything, int64(321), mock.Anything).Return(nil)
	gw.On("GetPaymentProfile", mock.Anything, int64(321), mock.Anything).Return(&subscription.PaymentProfile{ID: 55}, nil)
	gw.On("GetSubscriptions", mock.Anything, int64(321)).Return([]subscription.RemoteSubscription{}, nil)

	var sent subscription.SubscriptionPayload
	gw.On("CreateSubscription", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(subscription.SubscriptionPayload)
	}).Return(&subscription.CreatedSubscription{Subscription: subscription.RemoteSubscription{ID: 1, Status: "active"}}, nil)

	b, err := newTestService(repo, gw).NewSubscription(ctx, owner.ID, "pro", "team")
	require.NoError(t, err)
	sub, err := b.Quantity(3).
		TrialDays(14).
		BillingTriggerDay(5).
		WithCoupon("WELCOME").
		WithMetadata(map[string]any{"source": "landing"}).
		Create(ctx, cardPayment(), 99)
	require.NoError(t, err)

	assert.Equal(t, "team", sub.Name)
	assert.WithinDuration(t, testNow.AddDate(0, 0, 14), *sub.TrialEndsAt, time.Second)
	assert.Equal(t, 5, sent.BillingTriggerDay)
	assert.Equal(t, 3, sent.ProductItems[0].Quantity)
	assert.Equal(t, map[string]any{"coupon": "WELCOME", "source": "landing"}, sent.Metadata)
}
