package subscription

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository kept in process memory. Values are copied
// in and out so callers never share state with the store.
type MemoryRepository struct {
	mu     sync.RWMutex
	owners map[uuid.UUID]*Owner
	subs   map[uuid.UUID]*Subscription
	locks  map[uuid.UUID]*sync.Mutex
	now    Clock
}

// NewMemoryRepository returns an empty repository. A nil clock uses UTC wall time.
func NewMemoryRepository(clock Clock) *MemoryRepository {
	if clock == nil {
		clock = systemClock
	}
	return &MemoryRepository{
		owners: make(map[uuid.UUID]*Owner),
		subs:   make(map[uuid.UUID]*Subscription),
		locks:  make(map[uuid.UUID]*sync.Mutex),
		now:    clock,
	}
}

func (r *MemoryRepository) GetOwner(_ context.Context, id uuid.UUID) (*Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.owners[id]
	if !ok {
		return nil, ErrOwnerNotFound
	}
	return o.clone(), nil
}

func (r *MemoryRepository) FindOwnerByBillerID(_ context.Context, billerID int64) (*Owner, error) {
	return r.findOwner(func(o *Owner) bool { return o.BillerID != nil && *o.BillerID == billerID })
}

func (r *MemoryRepository) FindOwnerByCustomerID(_ context.Context, customerID int64) (*Owner, error) {
	return r.findOwner(func(o *Owner) bool { return o.CustomerID != nil && *o.CustomerID == customerID })
}

func (r *MemoryRepository) FindOwnerByEmail(_ context.Context, email string) (*Owner, error) {
	if email == "" {
		return nil, ErrOwnerNotFound
	}
	return r.findOwner(func(o *Owner) bool { return strings.EqualFold(o.Email, email) })
}

func (r *MemoryRepository) findOwner(match func(*Owner) bool) (*Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.owners {
		if match(o) {
			return o.clone(), nil
		}
	}
	return nil, ErrOwnerNotFound
}

// SaveOwner inserts or replaces the owner. A zero ID is assigned a new one.
func (r *MemoryRepository) SaveOwner(_ context.Context, owner *Owner) error {
	if owner == nil {
		return ErrIllegalArgument
	}
	now := r.now()
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = now
	}
	owner.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[owner.ID] = owner.clone()
	return nil
}

func (r *MemoryRepository) GetSubscription(_ context.Context, id uuid.UUID) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return s.clone(), nil
}

func (r *MemoryRepository) ListSubscriptions(_ context.Context, ownerID uuid.UUID) ([]Subscription, error) {
	r.mu.RLock()
	out := make([]Subscription, 0)
	for _, s := range r.subs {
		if s.OwnerID == ownerID {
			out = append(out, *s.clone())
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Subscription) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) CreateSubscription(_ context.Context, sub *Subscription) error {
	if sub == nil {
		return ErrIllegalArgument
	}
	now := r.now()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	sub.normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[sub.OwnerID]; !ok {
		return ErrOwnerNotFound
	}
	r.subs[sub.ID] = sub.clone()
	r.locks[sub.ID] = &sync.Mutex{}
	return nil
}

func (r *MemoryRepository) UpdateSubscription(_ context.Context, id uuid.UUID, fn func(*Subscription) error) (*Subscription, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSubscriptionNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current := r.subs[id].clone()
	r.mu.RUnlock()

	if err := fn(current); err != nil {
		if errors.Is(err, ErrNoChange) {
			r.mu.RLock()
			defer r.mu.RUnlock()
			return r.subs[id].clone(), nil
		}
		return nil, err
	}
	current.ID = id
	current.normalize()
	current.UpdatedAt = r.now()

	r.mu.Lock()
	r.subs[id] = current.clone()
	r.mu.Unlock()
	return current, nil
}

// CancelOwnerSubscriptions takes each row lock before the store lock, the
// same order UpdateSubscription uses.
func (r *MemoryRepository) CancelOwnerSubscriptions(_ context.Context, ownerID uuid.UUID, name string, now time.Time) (int, error) {
	name = normalizeName(name)

	r.mu.RLock()
	var ids []uuid.UUID
	for id, s := range r.subs {
		if s.OwnerID == ownerID && s.Name == name {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range ids {
		r.mu.RLock()
		lock := r.locks[id]
		r.mu.RUnlock()

		lock.Lock()
		r.mu.Lock()
		if s := r.subs[id]; s.Status != StatusCanceled {
			s.Status = StatusCanceled
			if s.CanceledAt == nil {
				s.CanceledAt = timePtr(now)
			}
			s.UpdatedAt = r.now()
			n++
		}
		r.mu.Unlock()
		lock.Unlock()
	}
	return n, nil
}
