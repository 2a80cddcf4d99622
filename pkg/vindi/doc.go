// Package vindi is an HTTP client for the Vindi recurring billing API. It
// implements subscription.BillingGateway.
//
//	client, err := vindi.New(cfg, vindi.WithLogger(log), vindi.WithMetrics(m))
//	planID, err := client.GetPlanID(ctx, "plano-mensal")
//
// Every request is bounded by Config.Timeout. When the provider reports that
// the remaining rate-limit budget is at or below Config.RateLimitThreshold,
// the next request waits until the reported reset time; the wait ends early
// if the caller's context is cancelled. Consecutive transport or 5xx failures
// open a circuit breaker that fails requests fast with ErrCircuitOpen until
// the recovery timeout elapses.
//
// Plan name lookups are cached in a bounded LRU with expiry.
package vindi
