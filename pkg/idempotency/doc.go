// Package idempotency records processed keys so repeated deliveries of the
// same fact can be detected.
//
// A Store answers a single question: is this the first time key is claimed
// within the retention window? Two implementations are provided:
//
//	store := idempotency.NewRedisStore(client, idempotency.WithTTL(24*time.Hour))
//	store := idempotency.NewMemoryStore(idempotency.WithTTL(time.Hour), idempotency.WithSize(10_000))
//
//	first, err := store.Claim(ctx, "bill_paid:777")
//
// The Redis store is safe across processes. The memory store evicts the least
// recently claimed keys once it is full, so it only deduplicates within one
// process and within its capacity.
package idempotency
