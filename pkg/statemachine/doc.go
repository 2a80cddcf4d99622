// Package statemachine provides an immutable, generic transition table for
// finite state machines whose current state lives elsewhere (typically in a
// database row).
//
// A Machine is built once with New and a set of transitions. It holds no
// current state, so a single Machine can validate transitions for any number
// of entities concurrently:
//
//	type Status string
//	type Event string
//
//	m := statemachine.MustNew(
//	    statemachine.WithTransition[Status, Event]("active", "canceled", "cancel"),
//	    statemachine.WithTransition[Status, Event]("canceled", "active", "resume",
//	        statemachine.WithGuard(func(ctx context.Context, from Status, ev Event, data any) bool {
//	            return data.(*Subscription).OnGracePeriod()
//	        }),
//	    ),
//	)
//
//	next, err := m.Fire(ctx, sub.Status, "resume", sub)
//
// Several transitions may share the same (from, event) pair; the first whose
// guards all pass is taken. Actions run in order before Fire returns the new
// state, and the first failing action aborts the transition.
//
// # Errors
//
// Fire returns *NoTransitionError when nothing is registered for the pair and
// *TransitionRejectedError when every candidate was blocked by a guard. Use
// IsNoTransition and IsRejected to check for them.
package statemachine
