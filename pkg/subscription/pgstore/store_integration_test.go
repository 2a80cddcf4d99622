//go:build integration

package pgstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/pkg/subscription/pgstore"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("docker not available, skipping integration tests")
	}
	_ = provider.Close()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("billing_test"),
		postgres.WithUsername("billing"),
		postgres.WithPassword("billing"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString: dsn,
		MaxOpenConns:     10,
		MinConns:         1,
		RetryAttempts:    3,
		RetryInterval:    time.Second,
		MigrationsTable:  "billing_schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, nil))
	return pool
}

func TestStore(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	store := pgstore.New(pool, pgstore.WithClock(func() time.Time { return testNow }))

	billerID := int64(77)
	owner := &subscription.Owner{Name: "Maria Silva", Email: "Maria@Example.com", BillerID: &billerID}
	require.NoError(t, store.SaveOwner(ctx, owner))
	require.NotEqual(t, uuid.Nil, owner.ID)

	t.Run("owner lookups", func(t *testing.T) {
		got, err := store.GetOwner(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "Maria Silva", got.Name)
		require.NotNil(t, got.BillerID)
		assert.Equal(t, billerID, *got.BillerID)
		assert.Empty(t, got.CPF)

		got, err = store.FindOwnerByEmail(ctx, "maria@example.com")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, got.ID)

		got, err = store.FindOwnerByBillerID(ctx, billerID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, got.ID)

		_, err = store.FindOwnerByCustomerID(ctx, 404)
		assert.ErrorIs(t, err, subscription.ErrOwnerNotFound)

		_, err = store.GetOwner(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrOwnerNotFound)
	})

	t.Run("owner update", func(t *testing.T) {
		owner.CPF = "11144477735"
		owner.Card = subscription.BankSlipCardLabel
		require.NoError(t, store.SaveOwner(ctx, owner))

		got, err := store.GetOwner(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "11144477735", got.CPF)
		assert.Equal(t, "BOLETO", got.Card)
	})

	endsAt := testNow.Add(20 * 24 * time.Hour)
	older := &subscription.Subscription{
		OwnerID:       owner.ID,
		BillerID:      9000,
		BillerPlanID:  14649,
		Status:        subscription.StatusActive,
		PaymentMethod: subscription.PaymentCreditCard,
		CreatedAt:     testNow.Add(-48 * time.Hour),
	}
	require.NoError(t, store.CreateSubscription(ctx, older))
	assert.Equal(t, subscription.DefaultName, older.Name)

	newer := &subscription.Subscription{
		OwnerID:       owner.ID,
		Name:          subscription.DefaultName,
		BillerID:      9001,
		BillerPlan:    "plano-mensal",
		BillerPlanID:  14649,
		Status:        subscription.StatusActive,
		PaymentMethod: subscription.PaymentCreditCard,
		EndsAt:        &endsAt,
		CreatedAt:     testNow.Add(-24 * time.Hour),
	}
	require.NoError(t, store.CreateSubscription(ctx, newer))

	t.Run("list newest first", func(t *testing.T) {
		subs, err := store.ListSubscriptions(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, newer.ID, subs[0].ID)
		assert.Equal(t, "plano-mensal", subs[0].BillerPlan)
		require.NotNil(t, subs[0].EndsAt)
		assert.True(t, endsAt.Equal(*subs[0].EndsAt))
		assert.Empty(t, subs[1].BillerPlan)
	})

	t.Run("create requires owner", func(t *testing.T) {
		err := store.CreateSubscription(ctx, &subscription.Subscription{
			OwnerID:       uuid.New(),
			BillerID:      1,
			BillerPlanID:  1,
			Status:        subscription.StatusPending,
			PaymentMethod: subscription.PaymentBankSlip,
		})
		assert.ErrorIs(t, err, subscription.ErrOwnerNotFound)
	})

	t.Run("update and no change", func(t *testing.T) {
		got, err := store.UpdateSubscription(ctx, newer.ID, func(s *subscription.Subscription) error {
			s.Status = subscription.StatusCanceled
			s.CanceledAt = &endsAt
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, got.Status)

		got, err = store.UpdateSubscription(ctx, newer.ID, func(s *subscription.Subscription) error {
			s.Status = subscription.StatusActive
			return subscription.ErrNoChange
		})
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, got.Status)

		stored, err := store.GetSubscription(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, stored.Status)

		_, err = store.UpdateSubscription(ctx, uuid.New(), func(*subscription.Subscription) error { return nil })
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("cancel owner subscriptions", func(t *testing.T) {
		n, err := store.CancelOwnerSubscriptions(ctx, owner.ID, "", testNow)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "only the still open row changes")

		got, err := store.GetSubscription(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, got.Status)
		require.NotNil(t, got.CanceledAt)
		assert.True(t, testNow.Equal(*got.CanceledAt))

		got, err = store.GetSubscription(ctx, newer.ID)
		require.NoError(t, err)
		assert.True(t, endsAt.Equal(*got.CanceledAt), "existing cancellation time is kept")
	})
}

func TestUpdateSubscriptionSerializes(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	store := pgstore.New(pool)

	owner := &subscription.Owner{Name: "Ana", Email: "ana@example.com"}
	require.NoError(t, store.SaveOwner(ctx, owner))
	sub := &subscription.Subscription{
		OwnerID:       owner.ID,
		BillerID:      1,
		BillerPlanID:  14649,
		Status:        subscription.StatusActive,
		PaymentMethod: subscription.PaymentCreditCard,
	}
	require.NoError(t, store.CreateSubscription(ctx, sub))

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			_, err := store.UpdateSubscription(ctx, sub.ID, func(s *subscription.Subscription) error {
				s.BillerPlanID++
				return nil
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	got, err := store.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(14649+workers), got.BillerPlanID)
}
