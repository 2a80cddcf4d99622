package vindi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	headerRateRemaining = "Rate-Limit-Remaining"
	headerRateReset     = "Rate-Limit-Reset"
)

// rateGate holds requests back after the provider reports a nearly
// exhausted budget.
type rateGate struct {
	mu        sync.Mutex
	threshold int
	until     time.Time
	now       func() time.Time
}

// observe records the budget headers of a response. Missing or malformed
// headers are ignored.
func (g *rateGate) observe(h http.Header) {
	remaining, err := strconv.Atoi(h.Get(headerRateRemaining))
	if err != nil || remaining > g.threshold {
		return
	}
	reset, err := strconv.ParseInt(h.Get(headerRateReset), 10, 64)
	if err != nil {
		return
	}
	until := time.Unix(reset, 0).Add(time.Second)

	g.mu.Lock()
	if until.After(g.until) {
		g.until = until
	}
	g.mu.Unlock()
}

// delay returns how long the next request must wait.
func (g *rateGate) delay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.until.Sub(g.now())
}

// wait blocks until the gate opens or ctx is done.
func (g *rateGate) wait(ctx context.Context) error {
	d := g.delay()
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
