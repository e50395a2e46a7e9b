package profit

import (
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Workflow adapts the profit distribution to the orchestrator engine. It never
// completes, every cycle returns to Idle.
type Workflow struct {
	Due time.Duration
}

func (Workflow) Name() string { return "profit" }

func (Workflow) Handle(s State, ev dex.Event, env dex.Env) (State, bool, platform.Batch, error) {
	next, msgs, err := Handle(s, ev, env)
	if err != nil {
		return nil, false, platform.Batch{}, err
	}
	return next, false, msgs, nil
}

func (Workflow) Idle(s State) bool { return s.Phase() == PhaseIdle }

func (w Workflow) Status(s State, now time.Time) any {
	return s.Status(now, w.Due)
}

func (Workflow) Marshal(s State) ([]byte, error) { return Marshal(s) }

func (Workflow) Unmarshal(data []byte) (State, error) { return Unmarshal(data) }
