package dex

import (
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Task describes what a swap saga moves and trades. Implementations are plain data,
// they are persisted with every state and must round trip through encoding/json.
// Denoms are those of the local chain, Env.Denoms names them on the dex.
type Task interface {
	// Label identifies the business operation in logs and progress reports
	Label() string
	// CoinsToTransferOut lists the coins sent from the owner to the dex account
	CoinsToTransferOut() []platform.Coin
	// CoinsToSwap lists the coins sold on the dex. The dex account holds them once
	// the transfer-out completed.
	CoinsToSwap() []platform.Coin
	// OutDenom is the denom every swapped coin is sold for
	OutDenom() string
}

// Account is the interchain account record of an owner on the dex chain.
// It is never mutated, a reopened channel produces a new record.
type Account struct {
	Owner        string `json:"owner"`
	Address      string `json:"address"`
	ConnectionID string `json:"connection_id"`
	ChannelID    string `json:"channel_id"`
}

// Result is the terminal value of a completed saga
type Result[T Task] struct {
	Task     T             `json:"task"`
	Account  Account       `json:"account"`
	Received platform.Coin `json:"received"`
}
