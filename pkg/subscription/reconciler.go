package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// EventKind is the closed set of provider event types.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventSubscriptionCanceled
	EventSubscriptionCreated
	EventSubscriptionReactivated
	EventChargeCreated
	EventChargeRefunded
	EventBillCreated
	EventBillCanceled
	EventBillPaid
)

var eventKindNames = map[EventKind]string{
	EventSubscriptionCanceled:    "subscription_canceled",
	EventSubscriptionCreated:     "subscription_created",
	EventSubscriptionReactivated: "subscription_reactivated",
	EventChargeCreated:           "charge_created",
	EventChargeRefunded:          "charge_refunded",
	EventBillCreated:             "bill_created",
	EventBillCanceled:            "bill_canceled",
	EventBillPaid:                "bill_paid",
}

// ParseEventKind maps a provider type string to its kind. Unrecognized
// strings yield EventUnknown.
func ParseEventKind(s string) EventKind {
	for k, name := range eventKindNames {
		if name == s {
			return k
		}
	}
	return EventUnknown
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Outcome classifies how an event was handled.
type Outcome string

const (
	OutcomeHandled       Outcome = "handled"
	OutcomeOwnerNotFound Outcome = "owner_not_found"
	OutcomeIgnored       Outcome = "ignored"
	OutcomeNotHandled    Outcome = "not_handled"
	OutcomeInvalid       Outcome = "invalid"
)

// HandlingResult is the non-error result of Handle.
type HandlingResult struct {
	Outcome  Outcome
	Kind     EventKind
	Type     string
	Affected int    // local subscriptions changed
	Reason   string // set for invalid and not-found outcomes
}

// Envelope is the webhook body: {"event": {"type": ..., "data": {...}}}.
type Envelope struct {
	Event ProviderEvent `json:"event"`
}

type ProviderEvent struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData holds the parts of the payload the handlers read. RawBill keeps
// the bill bytes for downstream consumers.
type EventData struct {
	Subscription *RemoteSubscription
	Bill         *Bill
	RawBill      json.RawMessage
}

func (d *EventData) UnmarshalJSON(b []byte) error {
	var aux struct {
		Subscription *RemoteSubscription `json:"subscription"`
		Bill         json.RawMessage     `json:"bill"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.Subscription = aux.Subscription
	d.Bill = nil
	d.RawBill = nil
	if len(aux.Bill) > 0 && !bytes.Equal(aux.Bill, []byte("null")) {
		var bill Bill
		if err := json.Unmarshal(aux.Bill, &bill); err != nil {
			return err
		}
		d.Bill = &bill
		d.RawBill = aux.Bill
	}
	return nil
}

// ParseEnvelope decodes a webhook body. An empty body, an empty object or a
// body without an event type is ErrInvalidEventEnvelope.
func ParseEnvelope(body []byte) (ProviderEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return ProviderEvent{}, ErrInvalidEventEnvelope
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return ProviderEvent{}, errors.Join(ErrInvalidEventEnvelope, err)
	}
	if env.Event.Type == "" {
		return ProviderEvent{}, ErrInvalidEventEnvelope
	}
	return env.Event, nil
}

type eventHandler func(ctx context.Context, ev ProviderEvent, res HandlingResult) (HandlingResult, error)

// Handle reconciles local state with a provider event. Every business
// outcome, including unknown owners and unsupported types, is reported in
// the result. The error is reserved for storage and emitter failures.
func (s *service) Handle(ctx context.Context, ev ProviderEvent) (res HandlingResult, err error) {
	kind := ParseEventKind(ev.Type)
	res = HandlingResult{Kind: kind, Type: ev.Type}
	log := s.log.With(logger.EventType(ev.Type))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "webhook handling failed", logger.Error(err))
			s.metrics.webhook(kind, "error")
			return
		}
		log.DebugContext(ctx, "webhook handled",
			logger.Result(string(res.Outcome)),
			slog.Int("affected", res.Affected),
		)
		s.metrics.webhook(kind, res.Outcome)
	}()

	if !s.cfg.Env.IsTesting() && !s.cfg.eventAllowed(ev.Type) {
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	h, ok := s.handlers[kind]
	if !ok {
		res.Outcome = OutcomeNotHandled
		return res, nil
	}
	return h(ctx, ev, res)
}

func (s *service) handleSubscriptionCanceled(ctx context.Context, ev ProviderEvent, res HandlingResult) (HandlingResult, error) {
	remote := ev.Data.Subscription
	if remote == nil || remote.ID == 0 || remote.Customer == nil || remote.Customer.ID == 0 {
		res.Outcome = OutcomeInvalid
		res.Reason = "subscription id and customer id are required"
		return res, nil
	}

	owner, err := s.ResolveOwner(ctx, remote.Customer.ID)
	if errors.Is(err, ErrOwnerNotFound) {
		res.Outcome = OutcomeOwnerNotFound
		res.Reason = "no owner for customer"
		return res, nil
	}
	if err != nil {
		return res, err
	}

	subs, err := s.repo.ListSubscriptions(ctx, owner.ID)
	if err != nil {
		return res, err
	}
	for i := range subs {
		if subs[i].BillerID != remote.ID {
			continue
		}
		sub, changed, err := s.markCancelled(ctx, subs[i].ID)
		if err != nil {
			return res, err
		}
		if changed {
			res.Affected++
		}
		// Redeliveries emit again: the row may have been committed by a
		// delivery whose emit failed. The dedupe key suppresses repeats.
		if err := s.emit(ctx, SubscriptionCancelled{Owner: owner, Subscription: sub, OccurredAt: s.now()}); err != nil {
			return res, err
		}
	}

	res.Outcome = OutcomeHandled
	return res, nil
}

func (s *service) handleBillPaid(ctx context.Context, ev ProviderEvent, res HandlingResult) (HandlingResult, error) {
	bill := ev.Data.Bill
	if bill == nil || bill.Period == nil || bill.Customer == nil {
		res.Outcome = OutcomeInvalid
		res.Reason = "bill period and customer are required"
		return res, nil
	}

	owner, err := s.ResolveOwner(ctx, bill.Customer.ID)
	if errors.Is(err, ErrOwnerNotFound) {
		owner, err = s.repo.FindOwnerByEmail(ctx, bill.Customer.Email)
	}
	if errors.Is(err, ErrOwnerNotFound) {
		res.Outcome = OutcomeOwnerNotFound
		res.Reason = "no owner for customer id or email"
		return res, nil
	}
	if err != nil {
		return res, err
	}

	if err := s.emit(ctx, BillPaid{Owner: owner, Bill: bill, Raw: ev.Data.RawBill, OccurredAt: s.now()}); err != nil {
		return res, err
	}
	res.Outcome = OutcomeHandled
	return res, nil
}

func (s *service) emit(ctx context.Context, e Event) error {
	if err := s.emitter.Emit(ctx, e); err != nil {
		return err
	}
	s.metrics.event(e)
	return nil
}

// ResolveOwner finds the owner of a provider customer id. An owner without
// open subscriptions is reconciled against the provider first. Owners known
// only by the legacy customer id get their BillerID backfilled.
func (s *service) ResolveOwner(ctx context.Context, billerID int64) (*Owner, error) {
	owner, err := s.repo.FindOwnerByBillerID(ctx, billerID)
	if err == nil {
		subs, err := s.repo.ListSubscriptions(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		if NewBillableOwner(owner, subs, s.now()).HasSubscription() {
			return owner, nil
		}
		if _, err := s.ReconcileIfStale(ctx, owner.ID); err != nil {
			s.log.WarnContext(ctx, "owner reconciliation failed",
				logger.OwnerID(owner.ID),
				logger.Error(err),
			)
		}
		return s.repo.GetOwner(ctx, owner.ID)
	}
	if !errors.Is(err, ErrOwnerNotFound) {
		return nil, err
	}

	owner, err = s.repo.FindOwnerByCustomerID(ctx, billerID)
	if err != nil {
		return nil, err
	}
	owner.BillerID = &billerID
	if err := s.repo.SaveOwner(ctx, owner); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "biller id backfilled",
		logger.OwnerID(owner.ID),
		logger.BillerID(billerID),
	)
	return owner, nil
}

// ReconcileIfStale restores local subscriptions that are cancelled outside
// a grace period while the provider still reports them active. It returns
// the number of restored rows.
func (s *service) ReconcileIfStale(ctx context.Context, ownerID uuid.UUID) (restored int, err error) {
	defer func() { s.metrics.operation("reconcile", err) }()

	owner, err := s.repo.GetOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if owner.BillerID == nil {
		return 0, nil
	}
	subs, err := s.repo.ListSubscriptions(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	var stale []Subscription
	for _, sub := range subs {
		if sub.Status == StatusCanceled && sub.BillerID != 0 && !sub.OnGracePeriodAt(now) {
			stale = append(stale, sub)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	remote, err := s.gateway.GetSubscriptions(ctx, *owner.BillerID)
	if err != nil {
		return 0, asGatewayError("get_subscriptions", err)
	}
	active := make(map[int64]RemoteSubscription, len(remote))
	for _, r := range remote {
		if r.Status == remoteStatusActive {
			active[r.ID] = r
		}
	}

	for _, sub := range stale {
		r, ok := active[sub.BillerID]
		if !ok {
			continue
		}
		_, err := s.repo.UpdateSubscription(ctx, sub.ID, func(cur *Subscription) error {
			if cur.Status != StatusCanceled {
				return ErrNoChange
			}
			to, err := fire(ctx, cur, eventRestore, now)
			if err != nil {
				return err
			}
			cur.Status = to
			cur.CanceledAt = nil
			cur.EndsAt = nil
			if r.CurrentPeriod != nil {
				cur.EndsAt = cloneTime(r.CurrentPeriod.EndAt)
			}
			return nil
		})
		if err != nil {
			return restored, err
		}
		restored++
		s.log.InfoContext(ctx, "subscription restored from provider state",
			logger.OwnerID(ownerID),
			logger.SubscriptionID(sub.ID),
		)
	}
	return restored, nil
}
