package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/statemachine"
)

type lifecycleEvent string

const (
	eventCancel        lifecycleEvent = "cancel"
	eventMarkCancelled lifecycleEvent = "mark_cancelled"
	eventResume        lifecycleEvent = "resume"
	eventRestore       lifecycleEvent = "restore"
)

// transitionInput is the data passed to lifecycle guards.
type transitionInput struct {
	sub *Subscription
	now time.Time
}

func inGracePeriod(_ context.Context, _ Status, _ lifecycleEvent, data any) bool {
	in, ok := data.(transitionInput)
	return ok && in.sub.OnGracePeriodAt(in.now)
}

// lifecycle lists the persisted status transitions. Cancellation is allowed
// from every status so out-of-band rows can be brought back in line; resume
// only leaves canceled while the grace period is open. Restore is driven by
// provider state and has no local guard.
var lifecycle = statemachine.MustNew(
	statemachine.WithTransition[Status, lifecycleEvent](StatusPending, StatusCanceled, eventCancel),
	statemachine.WithTransition[Status, lifecycleEvent](StatusActive, StatusCanceled, eventCancel),
	statemachine.WithTransition[Status, lifecycleEvent](StatusCanceled, StatusCanceled, eventCancel),
	statemachine.WithTransition[Status, lifecycleEvent](StatusPending, StatusCanceled, eventMarkCancelled),
	statemachine.WithTransition[Status, lifecycleEvent](StatusActive, StatusCanceled, eventMarkCancelled),
	statemachine.WithTransition[Status, lifecycleEvent](StatusCanceled, StatusCanceled, eventMarkCancelled),
	statemachine.WithTransition(StatusCanceled, StatusActive, eventResume,
		statemachine.WithGuard[Status, lifecycleEvent](inGracePeriod)),
	statemachine.WithTransition[Status, lifecycleEvent](StatusCanceled, StatusActive, eventRestore),
)

func fire(ctx context.Context, sub *Subscription, event lifecycleEvent, now time.Time) (Status, error) {
	to, err := lifecycle.Fire(ctx, sub.Status, event, transitionInput{sub: sub, now: now})
	if err != nil {
		return sub.Status, errors.Join(ErrIllegalState, err)
	}
	return to, nil
}

// Cancel cancels the subscription at the provider and schedules the local
// cancellation for the end of the trial or the paid period.
func (s *service) Cancel(ctx context.Context, id uuid.UUID) (sub *Subscription, err error) {
	defer func() { s.metrics.operation("cancel", err) }()

	current, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	remote, err := s.gateway.GetSubscription(ctx, current.BillerID)
	if err != nil {
		return nil, asGatewayError("get_subscription", err)
	}
	if !remote.canceled() {
		if err := s.gateway.DeleteSubscription(ctx, current.BillerID); err != nil {
			return nil, asGatewayError("delete_subscription", err)
		}
	}

	now := s.now()
	sub, err = s.repo.UpdateSubscription(ctx, id, func(cur *Subscription) error {
		if cur.Status == StatusCanceled && cur.CanceledAt != nil {
			return ErrNoChange
		}
		to, err := fire(ctx, cur, eventCancel, now)
		if err != nil {
			return err
		}
		switch {
		case cur.OnTrialAt(now):
			cur.CanceledAt = cloneTime(cur.TrialEndsAt)
		case cur.Status == StatusActive && cur.EndsAt != nil:
			cur.CanceledAt = cloneTime(cur.EndsAt)
		default:
			cur.CanceledAt = timePtr(now)
		}
		cur.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription cancelled",
		logger.SubscriptionID(id),
		slog.Time("canceled_at", *sub.CanceledAt),
	)
	return sub, nil
}

// CancelNow cancels at the provider and ends the subscription immediately.
func (s *service) CancelNow(ctx context.Context, id uuid.UUID) (sub *Subscription, err error) {
	defer func() { s.metrics.operation("cancel_now", err) }()

	current, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.DeleteSubscription(ctx, current.BillerID); err != nil {
		return nil, asGatewayError("delete_subscription", err)
	}
	sub, _, err = s.markCancelled(ctx, id)
	return sub, err
}

// MarkAsCancelled ends the subscription locally without a grace period.
func (s *service) MarkAsCancelled(ctx context.Context, id uuid.UUID) (sub *Subscription, err error) {
	defer func() { s.metrics.operation("mark_cancelled", err) }()

	sub, _, err = s.markCancelled(ctx, id)
	return sub, err
}

// markCancelled reports whether the row changed. A row already cancelled
// with an effective time at or before now is left alone, which makes
// redelivered cancellations a no-op.
func (s *service) markCancelled(ctx context.Context, id uuid.UUID) (*Subscription, bool, error) {
	now := s.now()
	changed := false
	sub, err := s.repo.UpdateSubscription(ctx, id, func(cur *Subscription) error {
		if cur.Status == StatusCanceled && cur.CanceledAt != nil && !cur.CanceledAt.After(now) {
			return ErrNoChange
		}
		to, err := fire(ctx, cur, eventMarkCancelled, now)
		if err != nil {
			return err
		}
		cur.Status = to
		cur.CanceledAt = timePtr(now)
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return sub, changed, nil
}

// Resume reactivates a subscription whose cancellation has not taken effect.
func (s *service) Resume(ctx context.Context, id uuid.UUID) (sub *Subscription, err error) {
	defer func() { s.metrics.operation("resume", err) }()

	current, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !lifecycle.CanFire(ctx, current.Status, eventResume, transitionInput{sub: current, now: now}) {
		return nil, errors.Join(ErrIllegalState, ErrNotInGracePeriod)
	}

	payload := ReactivatePayload{PlanID: current.BillerPlanID}
	if current.OnTrialAt(now) {
		payload.TrialEnd = cloneTime(current.TrialEndsAt)
	}
	if _, err := s.gateway.ReactivateSubscription(ctx, current.BillerID, payload); err != nil {
		return nil, asGatewayError("reactivate_subscription", err)
	}

	sub, err = s.repo.UpdateSubscription(ctx, id, func(cur *Subscription) error {
		to, err := fire(ctx, cur, eventResume, now)
		if err != nil {
			return errors.Join(err, ErrNotInGracePeriod)
		}
		cur.Status = to
		cur.CanceledAt = nil
		cur.EndsAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription resumed", logger.SubscriptionID(id))
	return sub, nil
}

// SetDiscount applies a discount to the first product item of the remote
// subscription. The local row is not touched.
func (s *service) SetDiscount(ctx context.Context, id uuid.UUID, kind DiscountType, amount float64, cycles int) (d *Discount, err error) {
	defer func() { s.metrics.operation("set_discount", err) }()

	current, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	remote, err := s.gateway.GetSubscription(ctx, current.BillerID)
	if err != nil {
		return nil, asGatewayError("get_subscription", err)
	}
	if len(remote.ProductItems) == 0 {
		return nil, errors.Join(ErrIllegalState, ErrNoProductItems)
	}

	d, err = s.gateway.CreateDiscount(ctx, DiscountPayload{
		ProductItemID: remote.ProductItems[0].ID,
		DiscountType:  kind,
		Amount:        amount,
		Cycles:        cycles,
	})
	if err != nil {
		return nil, asGatewayError("create_discount", err)
	}
	return d, nil
}
