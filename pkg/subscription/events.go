package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/broadcast"
)

// Event is a domain event produced by the reconciler.
type Event interface {
	EventName() string
	// DedupeKey identifies the fact the event reports, so redelivered
	// webhooks map to the same key.
	DedupeKey() string
}

// SubscriptionCancelled reports that a subscription reached the canceled
// status because the provider cancelled it.
type SubscriptionCancelled struct {
	Owner        *Owner
	Subscription *Subscription
	OccurredAt   time.Time
}

func (SubscriptionCancelled) EventName() string { return "subscription.cancelled" }

func (e SubscriptionCancelled) DedupeKey() string {
	var at int64
	if e.Subscription.CanceledAt != nil {
		at = e.Subscription.CanceledAt.Unix()
	}
	return fmt.Sprintf("subscription_cancelled:%s:%d", e.Subscription.ID, at)
}

// BillPaid reports a paid provider bill. Raw holds the bill exactly as
// delivered.
type BillPaid struct {
	Owner      *Owner
	Bill       *Bill
	Raw        json.RawMessage
	OccurredAt time.Time
}

func (BillPaid) EventName() string { return "bill.paid" }

func (e BillPaid) DedupeKey() string {
	return "bill_paid:" + strconv.FormatInt(e.Bill.ID, 10)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, event Event) error

func (f EmitterFunc) Emit(ctx context.Context, event Event) error { return f(ctx, event) }

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, Event) error { return nil }

// NewBroadcastEmitter publishes events to every subscriber of b.
func NewBroadcastEmitter(b broadcast.Broadcaster[Event]) Emitter {
	return EmitterFunc(func(ctx context.Context, event Event) error {
		return b.Broadcast(ctx, broadcast.Message[Event]{Data: event})
	})
}

// Claimer records keys. Claim reports true only for the first caller of a key
// within the claimer's retention window. Release drops a claim.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// NewDedupEmitter forwards an event to next only when its dedupe key has not
// been claimed yet. A failed forward releases the key, so a redelivery gets
// another chance to publish.
func NewDedupEmitter(next Emitter, claimer Claimer) Emitter {
	return EmitterFunc(func(ctx context.Context, event Event) error {
		key := event.DedupeKey()
		first, err := claimer.Claim(ctx, key)
		if err != nil {
			return fmt.Errorf("claim event %s: %w", event.EventName(), err)
		}
		if !first {
			return nil
		}
		if err := next.Emit(ctx, event); err != nil {
			if rerr := claimer.Release(context.WithoutCancel(ctx), key); rerr != nil {
				return errors.Join(err, fmt.Errorf("release event %s: %w", event.EventName(), rerr))
			}
			return err
		}
		return nil
	})
}
