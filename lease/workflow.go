package lease

import (
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Workflow adapts the lease lifecycle to the orchestrator engine
type Workflow struct {
	// Due is the expected duration of a saga step without a deadline
	Due time.Duration
}

func (Workflow) Name() string { return "lease" }

// Handle delivers ev and reports whether the lease reached its terminal phase
func (Workflow) Handle(s State, ev dex.Event, env dex.Env) (State, bool, platform.Batch, error) {
	next, msgs, err := Handle(s, ev, env)
	if err != nil {
		return nil, false, platform.Batch{}, err
	}
	return next, next.Phase() == PhaseClosed, msgs, nil
}

// Idle reports whether the lease waits for a customer request rather than for the host
func (Workflow) Idle(s State) bool {
	switch s.Phase() {
	case PhaseOpened, PhaseClosed:
		return true
	default:
		return false
	}
}

func (w Workflow) Status(s State, now time.Time) any {
	return s.Status(now, w.Due)
}

func (Workflow) Marshal(s State) ([]byte, error) { return Marshal(s) }

func (Workflow) Unmarshal(data []byte) (State, error) { return Unmarshal(data) }
