package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

var _ subscription.Repository = (*Store)(nil)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists owners and subscriptions in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  subscription.Clock
}

type Option func(*Store)

// WithClock sets the time source for created_at and updated_at.
func WithClock(c subscription.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.now = c
		}
	}
}

func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const ownerColumns = `id, name, email, biller_id, customer_id, cpf, cartao, cartao_numero, trial_ends_at, created_at, updated_at`

func scanOwner(row pgx.Row) (*subscription.Owner, error) {
	var (
		o                       subscription.Owner
		cpf, card, cardLastFour *string
	)
	err := row.Scan(&o.ID, &o.Name, &o.Email, &o.BillerID, &o.CustomerID, &cpf, &card, &cardLastFour,
		&o.TrialEndsAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrOwnerNotFound
		}
		return nil, err
	}
	o.CPF = deref(cpf)
	o.Card = deref(card)
	o.CardLastFour = deref(cardLastFour)
	o.TrialEndsAt = utc(o.TrialEndsAt)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

func (s *Store) GetOwner(ctx context.Context, id uuid.UUID) (*subscription.Owner, error) {
	return scanOwner(s.pool.QueryRow(ctx, `SELECT `+ownerColumns+` FROM billing_owners WHERE id = $1`, id))
}

func (s *Store) FindOwnerByBillerID(ctx context.Context, billerID int64) (*subscription.Owner, error) {
	return scanOwner(s.pool.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM billing_owners WHERE biller_id = $1 LIMIT 1`, billerID))
}

func (s *Store) FindOwnerByCustomerID(ctx context.Context, customerID int64) (*subscription.Owner, error) {
	return scanOwner(s.pool.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM billing_owners WHERE customer_id = $1 ORDER BY created_at LIMIT 1`, customerID))
}

func (s *Store) FindOwnerByEmail(ctx context.Context, email string) (*subscription.Owner, error) {
	if email == "" {
		return nil, subscription.ErrOwnerNotFound
	}
	return scanOwner(s.pool.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM billing_owners WHERE lower(email) = lower($1) ORDER BY created_at LIMIT 1`, email))
}

// SaveOwner upserts the owner. A zero ID is assigned a new one.
func (s *Store) SaveOwner(ctx context.Context, owner *subscription.Owner) error {
	if owner == nil {
		return subscription.ErrIllegalArgument
	}
	now := s.now()
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = now
	}
	owner.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO billing_owners (`+ownerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			biller_id = EXCLUDED.biller_id,
			customer_id = EXCLUDED.customer_id,
			cpf = EXCLUDED.cpf,
			cartao = EXCLUDED.cartao,
			cartao_numero = EXCLUDED.cartao_numero,
			trial_ends_at = EXCLUDED.trial_ends_at,
			updated_at = EXCLUDED.updated_at`,
		owner.ID, owner.Name, owner.Email, owner.BillerID, owner.CustomerID,
		nullable(owner.CPF), nullable(owner.Card), nullable(owner.CardLastFour),
		owner.TrialEndsAt, owner.CreatedAt, owner.UpdatedAt,
	)
	return err
}

const subscriptionColumns = `id, user_id, name, biller_id, biller_plan, biller_plan_id, trial_ends_at, ends_at,
	payment_method, status, bank_slip_url, canceled_at, billing_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub                 subscription.Subscription
		plan, bankSlipURL   *string
		status, paymentType string
	)
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Name, &sub.BillerID, &plan, &sub.BillerPlanID,
		&sub.TrialEndsAt, &sub.EndsAt, &paymentType, &status, &bankSlipURL, &sub.CanceledAt,
		&sub.BillingAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, err
	}
	sub.BillerPlan = deref(plan)
	sub.BankSlipURL = deref(bankSlipURL)
	sub.Status = subscription.Status(status)
	sub.PaymentMethod = subscription.PaymentType(paymentType)
	sub.TrialEndsAt = utc(sub.TrialEndsAt)
	sub.EndsAt = utc(sub.EndsAt)
	sub.CanceledAt = utc(sub.CanceledAt)
	sub.BillingAt = utc(sub.BillingAt)
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return getSubscription(ctx, s.pool, id, false)
}

func getSubscription(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM billing_subscriptions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanSubscription(q.QueryRow(ctx, query, id))
}

func (s *Store) ListSubscriptions(ctx context.Context, ownerID uuid.UUID) ([]subscription.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM billing_subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]subscription.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// CreateSubscription inserts sub. The owner must exist.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return subscription.ErrIllegalArgument
	}
	now := s.now()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.Name == "" {
		sub.Name = subscription.DefaultName
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO billing_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sub.ID, sub.OwnerID, sub.Name, sub.BillerID, nullable(sub.BillerPlan), sub.BillerPlanID,
		sub.TrialEndsAt, sub.EndsAt, string(sub.PaymentMethod), string(sub.Status),
		nullable(sub.BankSlipURL), sub.CanceledAt, sub.BillingAt, sub.CreatedAt, sub.UpdatedAt,
	)
	if pg.IsForeignKeyViolationError(err) {
		return errors.Join(subscription.ErrOwnerNotFound, err)
	}
	return err
}

// UpdateSubscription locks the row for the duration of fn.
func (s *Store) UpdateSubscription(ctx context.Context, id uuid.UUID, fn func(*subscription.Subscription) error) (*subscription.Subscription, error) {
	var result *subscription.Subscription
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := getSubscription(ctx, tx, id, true)
		if err != nil {
			return err
		}
		snapshot := *current

		if err := fn(current); err != nil {
			if errors.Is(err, subscription.ErrNoChange) {
				result = &snapshot
				return nil
			}
			return err
		}
		current.ID = id
		if current.Name == "" {
			current.Name = subscription.DefaultName
		}
		current.UpdatedAt = s.now()

		_, err = tx.Exec(ctx, `
			UPDATE billing_subscriptions SET
				name = $2,
				biller_id = $3,
				biller_plan = $4,
				biller_plan_id = $5,
				trial_ends_at = $6,
				ends_at = $7,
				payment_method = $8,
				status = $9,
				bank_slip_url = $10,
				canceled_at = $11,
				billing_at = $12,
				updated_at = $13
			WHERE id = $1`,
			id, current.Name, current.BillerID, nullable(current.BillerPlan), current.BillerPlanID,
			current.TrialEndsAt, current.EndsAt, string(current.PaymentMethod), string(current.Status),
			nullable(current.BankSlipURL), current.CanceledAt, current.BillingAt, current.UpdatedAt,
		)
		if err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CancelOwnerSubscriptions(ctx context.Context, ownerID uuid.UUID, name string, now time.Time) (int, error) {
	if name == "" {
		name = subscription.DefaultName
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE billing_subscriptions SET
			status = $3,
			canceled_at = COALESCE(canceled_at, $4),
			updated_at = $5
		WHERE user_id = $1 AND name = $2 AND status <> $3`,
		ownerID, name, string(subscription.StatusCanceled), now, s.now(),
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
