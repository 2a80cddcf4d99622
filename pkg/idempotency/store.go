package idempotency

import (
	"context"
	"time"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultPrefix = "billing:dedupe:"
	defaultSize   = 10_000
)

// Store claims keys. Claim reports true only for the first claim of a key
// within the TTL. Release forgets a claim so the key can be claimed again.
type Store interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type options struct {
	ttl    time.Duration
	prefix string
	size   int
}

// Option configures a store.
type Option func(*options)

// WithTTL sets how long a claim is remembered.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithPrefix namespaces the stored keys.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithSize bounds the number of keys kept by the memory store.
func WithSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.size = size
		}
	}
}

func newOptions(opts []Option) options {
	o := options{ttl: defaultTTL, prefix: defaultPrefix, size: defaultSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
