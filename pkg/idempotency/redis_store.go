package idempotency

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore claims keys with SET NX and an expiry.
type RedisStore struct {
	client redis.UniversalClient
	opts   options
}

func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	if client == nil {
		panic("idempotency: redis client is required")
	}
	return &RedisStore{client: client, opts: newOptions(opts)}
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	ok, err := s.client.SetNX(ctx, s.opts.prefix+key, 1, s.opts.ttl).Result()
	if err != nil {
		return false, errors.Join(ErrClaimFailed, err)
	}
	return ok, nil
}

// Release forgets a claim so the key can be processed again.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.opts.prefix+key).Err(); err != nil {
		return errors.Join(ErrClaimFailed, err)
	}
	return nil
}
