package dex

import (
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Embedder lifts an inner saga into the state type S of an enclosing workflow
type Embedder[T Task, S any] interface {
	// OnInnerContinue wraps the next inner state into the outer state
	OnInnerContinue(inner State[T]) S
	// OnInner runs the outer workflow's next step once the inner saga completed.
	// Its messages are emitted after the inner saga's.
	OnInner(res Result[T], env Env) (S, platform.Batch, error)
}

// ForwardToInner dispatches ev to the embedded saga and maps the transition onto the
// enclosing workflow. Errors from either side leave the outer state unchanged.
func ForwardToInner[T Task, S any](inner State[T], ev Event, env Env, outer Embedder[T, S]) (S, platform.Batch, error) {
	var zero S

	t, err := Dispatch(inner, ev, env)
	if err != nil {
		return zero, platform.Batch{}, err
	}
	if !t.Finished() {
		return outer.OnInnerContinue(t.Next), t.Messages, nil
	}

	next, msgs, err := outer.OnInner(*t.Result, env)
	if err != nil {
		return zero, platform.Batch{}, err
	}
	return next, t.Messages.Merge(msgs), nil
}
