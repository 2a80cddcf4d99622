package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OwnerRepository persists billable owners. Lookups return ErrOwnerNotFound
// when nothing matches.
type OwnerRepository interface {
	GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error)
	FindOwnerByBillerID(ctx context.Context, billerID int64) (*Owner, error)
	FindOwnerByCustomerID(ctx context.Context, customerID int64) (*Owner, error)
	FindOwnerByEmail(ctx context.Context, email string) (*Owner, error)
	SaveOwner(ctx context.Context, owner *Owner) error
}

// SubscriptionRepository persists subscriptions. Lookups return
// ErrSubscriptionNotFound when nothing matches.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// ListSubscriptions returns the owner's subscriptions, newest first.
	ListSubscriptions(ctx context.Context, ownerID uuid.UUID) ([]Subscription, error)
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// UpdateSubscription loads the row, passes it to fn and stores the result
	// while holding an exclusive lock on the row, so concurrent updates of the
	// same subscription are serialized. Nothing is written when fn fails or
	// returns ErrNoChange.
	UpdateSubscription(ctx context.Context, id uuid.UUID, fn func(*Subscription) error) (*Subscription, error)

	// CancelOwnerSubscriptions marks every non-cancelled subscription of the
	// owner in the named slot as canceled at now and returns how many rows
	// changed.
	CancelOwnerSubscriptions(ctx context.Context, ownerID uuid.UUID, name string, now time.Time) (int, error)
}

// Repository is the persistence capability the service needs.
type Repository interface {
	OwnerRepository
	SubscriptionRepository
}
