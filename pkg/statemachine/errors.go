package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMachine = errors.New("state machine has no transitions")
	ErrActionFailed = errors.New("transition action failed")
)

// NoTransitionError means nothing is registered for the state/event pair.
type NoTransitionError struct {
	State string
	Event string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition from state %q on event %q", e.State, e.Event)
}

// TransitionRejectedError means every candidate transition was blocked by a guard.
type TransitionRejectedError struct {
	State string
	Event string
}

func (e *TransitionRejectedError) Error() string {
	return fmt.Sprintf("transition from state %q on event %q rejected by guards", e.State, e.Event)
}

func IsNoTransition(err error) bool {
	var e *NoTransitionError
	return errors.As(err, &e)
}

func IsRejected(err error) bool {
	var e *TransitionRejectedError
	return errors.As(err, &e)
}
