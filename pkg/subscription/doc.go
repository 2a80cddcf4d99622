// Package subscription manages provider-billed subscriptions for billable
// owners.
//
// The package keeps a local record of every subscription an owner holds at
// the billing provider and drives it through its lifecycle:
//
//	pending --cancel/mark_cancelled--> canceled
//	active  --cancel/mark_cancelled--> canceled
//	canceled --resume (grace period only)--> active
//
// Temporal predicates (on trial, grace period, valid) are evaluated against
// an injected Clock, never stored.
//
// # Creating subscriptions
//
//	b, err := svc.NewSubscription(ctx, ownerID, "plano-mensal", "")
//	if err != nil {
//		return err
//	}
//	sub, err := b.WithDiscount(subscription.DiscountPercentage, 10, 3).
//		Create(ctx, paymentData, productID)
//
// Create validates the payment data, resolves the provider customer, cancels
// any prior subscription in the same slot and persists the new one. Card
// payers without an open subscription get a trial, bank slip payers never do.
//
// # Webhooks
//
// Handle reconciles provider events. Unknown owners and unsupported event
// types are results, not errors, so the HTTP layer can always acknowledge
// delivery:
//
//	ev, err := subscription.ParseEnvelope(body)
//	res, err := svc.Handle(ctx, ev)
//
// Domain events (SubscriptionCancelled, BillPaid) go to the configured
// Emitter. Wrap it with NewDedupEmitter to suppress duplicates from
// redelivered webhooks.
//
// # Storage
//
// Repository implementations must serialize UpdateSubscription per row.
// MemoryRepository is provided for tests and single-process use; pgstore
// provides the Postgres implementation.
package subscription
