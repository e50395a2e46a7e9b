package profit

import (
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Status is the read-only view of the profit workflow
type Status struct {
	Phase    Phase  `json:"phase"`
	Cycle    int    `json:"cycle"`
	Treasury string `json:"treasury"`
	Reward   string `json:"reward"`
	// Last is the reward sent by the most recent completed cycle
	Last    *platform.Coin `json:"last,omitempty"`
	LastAt  *time.Time     `json:"last_at,omitempty"`
	Account string         `json:"dex_account,omitempty"`
	Saga    *dex.Progress  `json:"saga,omitempty"`
}

func (s Idle) Status(now time.Time, due time.Duration) Status {
	st := Status{
		Phase:    PhaseIdle,
		Cycle:    s.Cycle,
		Treasury: s.Config.Treasury,
		Reward:   s.Config.Reward,
		Last:     s.Last,
	}
	if !s.LastAt.IsZero() {
		st.LastAt = &s.LastAt
	}
	if s.Account != nil {
		st.Account = s.Account.Address
	}
	return st
}

func (s BuyingBack) Status(now time.Time, due time.Duration) Status {
	p := s.Saga.Progress(now, due)
	return Status{
		Phase:    PhaseBuyingBack,
		Cycle:    s.Cycle,
		Treasury: s.Config.Treasury,
		Reward:   s.Config.Reward,
		Account:  p.Account,
		Saga:     &p,
	}
}
