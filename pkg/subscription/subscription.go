package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is an owner's local record of a provider subscription.
type Subscription struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	BillerID      int64  // provider subscription id
	BillerPlan    string // plan name as requested at creation, may be empty
	BillerPlanID  int64
	Status        Status
	PaymentMethod PaymentType
	TrialEndsAt   *time.Time
	EndsAt        *time.Time // billing period end, nil means open-ended
	CanceledAt    *time.Time // effective cancellation time, may be in the future
	BankSlipURL   string
	BillingAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OnTrialAt reports whether the trial is still running at now.
func (s *Subscription) OnTrialAt(now time.Time) bool {
	return s.TrialEndsAt != nil && now.Before(*s.TrialEndsAt)
}

// OnGracePeriodAt reports whether a deferred cancellation has not taken
// effect yet at now. The cancellation is effective at CanceledAt itself.
func (s *Subscription) OnGracePeriodAt(now time.Time) bool {
	return s.CanceledAt != nil && s.Status == StatusCanceled && now.Before(*s.CanceledAt)
}

// ActiveAt reports whether the subscription grants access at now. An active
// subscription without EndsAt is open-ended.
func (s *Subscription) ActiveAt(now time.Time) bool {
	if s.Status == StatusActive && (s.EndsAt == nil || !now.After(*s.EndsAt)) {
		return true
	}
	return s.OnGracePeriodAt(now)
}

// ValidAt is ActiveAt or OnTrialAt or OnGracePeriodAt.
func (s *Subscription) ValidAt(now time.Time) bool {
	return s.ActiveAt(now) || s.OnTrialAt(now) || s.OnGracePeriodAt(now)
}

// Cancelled reports whether a cancellation was recorded. Either signal is
// sufficient, so rows written out of band with only one of them still count.
func (s *Subscription) Cancelled() bool {
	return s.CanceledAt != nil || s.Status == StatusCanceled
}

func (s *Subscription) OnTrial() bool       { return s.OnTrialAt(systemClock()) }
func (s *Subscription) OnGracePeriod() bool { return s.OnGracePeriodAt(systemClock()) }
func (s *Subscription) Active() bool        { return s.ActiveAt(systemClock()) }
func (s *Subscription) Valid() bool         { return s.ValidAt(systemClock()) }

// Periodicity returns the billing period label of the plan, or "" when the
// catalog does not know the plan.
func (s *Subscription) Periodicity(c *PlanCatalog) string {
	if c == nil || s.BillerPlanID == 0 {
		return ""
	}
	return c.Periodicity(s.BillerPlanID)
}

// normalize fills defaults that must hold for every persisted row.
func (s *Subscription) normalize() {
	s.Name = normalizeName(s.Name)
}

func (s *Subscription) clone() *Subscription {
	c := *s
	c.TrialEndsAt = cloneTime(s.TrialEndsAt)
	c.EndsAt = cloneTime(s.EndsAt)
	c.CanceledAt = cloneTime(s.CanceledAt)
	c.BillingAt = cloneTime(s.BillingAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }
