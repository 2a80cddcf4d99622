package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("broadcaster is closed")

// Message wraps a payload of type T.
type Message[T any] struct {
	Data T
}

// Subscriber receives broadcast messages.
type Subscriber[T any] interface {
	Receive() <-chan Message[T]
	Close() error
}

// Broadcaster delivers each message to every active subscriber.
type Broadcaster[T any] interface {
	Subscribe(ctx context.Context) Subscriber[T]
	Broadcast(ctx context.Context, msg Message[T]) error
	Close() error
}

type subscriber[T any] struct {
	ch     chan Message[T]
	mu     sync.Mutex
	closed bool
	onDone func()
}

func (s *subscriber[T]) Receive() <-chan Message[T] { return s.ch }

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if s.onDone != nil {
		s.onDone()
	}
	return nil
}

// offer delivers msg without blocking. It reports false when the buffer is
// full or the subscriber is closed.
func (s *subscriber[T]) offer(msg Message[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// MemoryBroadcaster is an in-process Broadcaster. Safe for concurrent use.
type MemoryBroadcaster[T any] struct {
	mu      sync.RWMutex
	subs    map[*subscriber[T]]struct{}
	buffer  int
	closed  bool
	dropped uint64
}

// NewMemoryBroadcaster creates a broadcaster whose subscribers buffer up to
// bufferSize messages (at least 1).
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	return &MemoryBroadcaster[T]{
		subs:   make(map[*subscriber[T]]struct{}),
		buffer: max(bufferSize, 1),
	}
}

func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := &subscriber[T]{ch: make(chan Message[T], b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = sub.Close()
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	sub.onDone = func() { b.remove(sub) }

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			_ = sub.Close()
		}()
	}
	return sub
}

func (b *MemoryBroadcaster[T]) Broadcast(_ context.Context, msg Message[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs {
		if !sub.offer(msg) {
			b.dropped++
		}
	}
	return nil
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *MemoryBroadcaster[T]) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Subscribers returns the number of active subscribers.
func (b *MemoryBroadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscriber[T], 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	clear(b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (b *MemoryBroadcaster[T]) remove(sub *subscriber[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}
