package statemachine

import (
	"context"
	"errors"
	"fmt"
)

// Guard decides whether a transition may proceed.
type Guard[S, E comparable] func(ctx context.Context, from S, event E, data any) bool

// Action runs a side effect during a transition. A non-nil error aborts it.
type Action[S, E comparable] func(ctx context.Context, from, to S, event E, data any) error

// Transition is one edge of the machine.
type Transition[S, E comparable] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]
	Actions []Action[S, E]
}

// Machine is a read-only transition table. Safe for concurrent use.
type Machine[S, E comparable] struct {
	edges map[S]map[E][]Transition[S, E]
}

// Option registers transitions during construction.
type Option[S, E comparable] func(*Machine[S, E]) error

// TransitionOption attaches guards and actions to a transition.
type TransitionOption[S, E comparable] func(*Transition[S, E])

// New builds a machine from the given options.
func New[S, E comparable](opts ...Option[S, E]) (*Machine[S, E], error) {
	m := &Machine[S, E]{edges: make(map[S]map[E][]Transition[S, E])}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if len(m.edges) == 0 {
		return nil, ErrEmptyMachine
	}
	return m, nil
}

// MustNew is New that panics on error.
func MustNew[S, E comparable](opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition registers from --event--> to.
func WithTransition[S, E comparable](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		t := Transition[S, E]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		m.add(t)
		return nil
	}
}

// WithTransitions registers several prepared transitions.
func WithTransitions[S, E comparable](ts ...Transition[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		for _, t := range ts {
			m.add(t)
		}
		return nil
	}
}

func WithGuard[S, E comparable](g Guard[S, E]) TransitionOption[S, E] {
	return func(t *Transition[S, E]) {
		if g != nil {
			t.Guards = append(t.Guards, g)
		}
	}
}

func WithAction[S, E comparable](a Action[S, E]) TransitionOption[S, E] {
	return func(t *Transition[S, E]) {
		if a != nil {
			t.Actions = append(t.Actions, a)
		}
	}
}

func (m *Machine[S, E]) add(t Transition[S, E]) {
	byEvent, ok := m.edges[t.From]
	if !ok {
		byEvent = make(map[E][]Transition[S, E])
		m.edges[t.From] = byEvent
	}
	byEvent[t.Event] = append(byEvent[t.Event], t)
}

// Fire resolves the transition for (from, event), runs its actions and
// returns the target state. On error the returned state equals from.
func (m *Machine[S, E]) Fire(ctx context.Context, from S, event E, data any) (S, error) {
	t, err := m.resolve(ctx, from, event, data)
	if err != nil {
		return from, err
	}
	for _, action := range t.Actions {
		if err := action(ctx, from, t.To, event, data); err != nil {
			return from, errors.Join(ErrActionFailed, err)
		}
	}
	return t.To, nil
}

// CanFire reports whether Fire would find a permitted transition.
func (m *Machine[S, E]) CanFire(ctx context.Context, from S, event E, data any) bool {
	_, err := m.resolve(ctx, from, event, data)
	return err == nil
}

func (m *Machine[S, E]) resolve(ctx context.Context, from S, event E, data any) (*Transition[S, E], error) {
	candidates := m.edges[from][event]
	if len(candidates) == 0 {
		return nil, &NoTransitionError{State: fmt.Sprint(from), Event: fmt.Sprint(event)}
	}
	for i := range candidates {
		if passes(ctx, candidates[i], data) {
			return &candidates[i], nil
		}
	}
	return nil, &TransitionRejectedError{State: fmt.Sprint(from), Event: fmt.Sprint(event)}
}

func passes[S, E comparable](ctx context.Context, t Transition[S, E], data any) bool {
	for _, g := range t.Guards {
		if !g(ctx, t.From, t.Event, data) {
			return false
		}
	}
	return true
}
