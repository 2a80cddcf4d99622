package subscription

import "log/slog"

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) ServiceOption {
	return func(s *service) {
		s.cfg = cfg
	}
}

// WithClock sets the time source used for trials, grace periods and
// cancellation stamps.
func WithClock(clock Clock) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEmitter sets where reconciler domain events go. Events are dropped
// by default.
func WithEmitter(e Emitter) ServiceOption {
	return func(s *service) {
		if e != nil {
			s.emitter = e
		}
	}
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *service) {
		s.metrics = m
	}
}

// WithPlanCatalog sets the catalog used for periodicity lookups.
func WithPlanCatalog(c *PlanCatalog) ServiceOption {
	return func(s *service) {
		if c != nil {
			s.plans = c
		}
	}
}
