package lease

import (
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Status is the read-only view of a lease
type Status struct {
	ID       string         `json:"id"`
	Phase    Phase          `json:"phase"`
	Customer string         `json:"customer"`
	Asset    *platform.Coin `json:"asset,omitempty"`
	Proceeds *platform.Coin `json:"proceeds,omitempty"`
	Account  string         `json:"dex_account,omitempty"`
	// Saga reports the swap in progress while opening or closing
	Saga *dex.Progress `json:"saga,omitempty"`
}

func (s Opening) Status(now time.Time, due time.Duration) Status {
	p := s.Saga.Progress(now, due)
	return Status{ID: s.Spec.ID, Phase: PhaseOpening, Customer: s.Spec.Customer, Account: p.Account, Saga: &p}
}

func (s Opened) Status(now time.Time, due time.Duration) Status {
	return Status{
		ID:       s.Spec.ID,
		Phase:    PhaseOpened,
		Customer: s.Spec.Customer,
		Asset:    &s.Asset,
		Account:  s.Account.Address,
	}
}

func (s Closing) Status(now time.Time, due time.Duration) Status {
	p := s.Saga.Progress(now, due)
	return Status{ID: s.Spec.ID, Phase: PhaseClosing, Customer: s.Spec.Customer, Account: p.Account, Saga: &p}
}

func (s Closed) Status(now time.Time, due time.Duration) Status {
	return Status{ID: s.Spec.ID, Phase: PhaseClosed, Customer: s.Spec.Customer, Proceeds: &s.Proceeds}
}
