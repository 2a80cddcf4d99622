package idempotency

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps claims in a bounded LRU with per-entry expiry.
type MemoryStore struct {
	mu   sync.Mutex
	lru  *expirable.LRU[string, struct{}]
	opts options
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions(opts)
	return &MemoryStore{
		lru:  expirable.NewLRU[string, struct{}](o.size, nil, o.ttl),
		opts: o,
	}
}

func (s *MemoryStore) Claim(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	k := s.opts.prefix + key

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lru.Contains(k) {
		return false, nil
	}
	s.lru.Add(k, struct{}{})
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.lru.Remove(s.opts.prefix + key)
	return nil
}

// Len returns the number of live claims.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}
