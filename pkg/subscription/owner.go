package subscription

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Owner is the billable entity holding subscriptions.
type Owner struct {
	ID           uuid.UUID
	Name         string
	Email        string
	BillerID     *int64 // provider customer id, nil until the first billing action
	CustomerID   *int64 // legacy customer id used to backfill BillerID
	TrialEndsAt  *time.Time
	CPF          string
	Card         string // card brand label, BOLETO for bank slip payers
	CardLastFour string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (o *Owner) clone() *Owner {
	c := *o
	if o.BillerID != nil {
		v := *o.BillerID
		c.BillerID = &v
	}
	if o.CustomerID != nil {
		v := *o.CustomerID
		c.CustomerID = &v
	}
	c.TrialEndsAt = cloneTime(o.TrialEndsAt)
	return &c
}

// BillableOwner answers subscription questions about an owner from its
// locally stored subscriptions, evaluated at a fixed instant.
type BillableOwner struct {
	*Owner
	Subscriptions []Subscription
	Now           time.Time
}

// NewBillableOwner orders subs newest first and normalizes their names.
func NewBillableOwner(owner *Owner, subs []Subscription, now time.Time) *BillableOwner {
	sorted := slices.Clone(subs)
	for i := range sorted {
		sorted[i].normalize()
	}
	slices.SortStableFunc(sorted, func(a, b Subscription) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return &BillableOwner{Owner: owner, Subscriptions: sorted, Now: now}
}

// Subscription returns the most recent subscription in the named slot.
func (b *BillableOwner) Subscription(name string) *Subscription {
	name = normalizeName(name)
	for i := range b.Subscriptions {
		if b.Subscriptions[i].Name == name {
			return &b.Subscriptions[i]
		}
	}
	return nil
}

// Subscribed reports whether the named slot holds a valid subscription,
// optionally restricted to plan.
func (b *BillableOwner) Subscribed(name, plan string) bool {
	sub := b.Subscription(name)
	if sub == nil || !sub.ValidAt(b.Now) {
		return false
	}
	return plan == "" || sub.BillerPlan == plan
}

// OnTrial reports whether the named slot is on trial, optionally restricted
// to plan.
func (b *BillableOwner) OnTrial(name, plan string) bool {
	sub := b.Subscription(name)
	if sub == nil || !sub.OnTrialAt(b.Now) {
		return false
	}
	return plan == "" || sub.BillerPlan == plan
}

// OnAnyTrial is OnGenericTrial or a trial on the default slot.
func (b *BillableOwner) OnAnyTrial() bool {
	return b.OnGenericTrial() || b.OnTrial(DefaultName, "")
}

// OnGenericTrial reports the account-level trial marker.
func (b *BillableOwner) OnGenericTrial() bool {
	return b.TrialEndsAt != nil && b.Now.Before(*b.TrialEndsAt)
}

// SubscribedToPlan reports whether the named slot is valid and on one of plans.
func (b *BillableOwner) SubscribedToPlan(plans []string, name string) bool {
	sub := b.Subscription(name)
	if sub == nil || !sub.ValidAt(b.Now) {
		return false
	}
	return slices.Contains(plans, sub.BillerPlan)
}

// OnPlan reports whether any valid subscription is on plan.
func (b *BillableOwner) OnPlan(plan string) bool {
	for i := range b.Subscriptions {
		if b.Subscriptions[i].BillerPlan == plan && b.Subscriptions[i].ValidAt(b.Now) {
			return true
		}
	}
	return false
}

// Cancelled reports whether the named slot's latest subscription is cancelled.
// An empty slot is not cancelled.
func (b *BillableOwner) Cancelled(name string) bool {
	sub := b.Subscription(name)
	return sub != nil && sub.Cancelled()
}

// HasSubscription reports whether any subscription is still open, that is
// not in the canceled status.
func (b *BillableOwner) HasSubscription() bool {
	for i := range b.Subscriptions {
		if b.Subscriptions[i].Status != StatusCanceled {
			return true
		}
	}
	return false
}

func (b *BillableOwner) HasCardOnFile() bool { return b.CardLastFour != "" }

func (b *BillableOwner) HasBillerID() bool { return b.BillerID != nil }
