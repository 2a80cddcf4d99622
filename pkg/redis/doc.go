// Package redis opens go-redis clients from a URL with connection retries and
// exposes a readiness probe.
package redis
