package dex

import (
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Progress is a read-only projection of a saga for status queries
type Progress struct {
	Label string `json:"label"`
	Stage Kind   `json:"stage"`
	// Interrupted is the stage a recovery resumes at
	Interrupted Kind            `json:"interrupted,omitempty"`
	InFlight    platform.TxID   `json:"in_flight,omitempty"`
	Attempt     int             `json:"attempt,omitempty"`
	Account     string          `json:"dex_account,omitempty"`
	Coins       []platform.Coin `json:"coins,omitempty"`
	// Remaining estimates the time left in the current stage
	Remaining time.Duration `json:"remaining"`
}

func remaining(deadline, now time.Time, due time.Duration) time.Duration {
	if deadline.IsZero() {
		return due
	}
	if left := deadline.Sub(now); left > 0 {
		return left
	}
	return 0
}
