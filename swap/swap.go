// Package swap defines the contracts of a dex venue the swap saga trades on.
// Each supported venue (Osmosis, ...) implements Resolver and Venue.
package swap

import (
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Hop is one pool a swap passes through
type Hop struct {
	PoolID        uint64 `json:"pool_id"`
	TokenOutDenom string `json:"token_out_denom"`
}

// Path is a resolved swap route with the quoted output
type Path struct {
	Hops        []Hop
	ExpectedOut decimal.Decimal
	// PriceImpact is the price impact as string (e.g., "0.02" for 2%)
	PriceImpact  string
	EffectiveFee string
}

// Resolver finds the swap path for selling in against outDenom.
type Resolver interface {
	Resolve(in platform.Coin, outDenom string) (Path, error)
}

// Venue builds the swap messages executed through the interchain account and reads
// their responses back out of the tx acknowledgement.
type Venue interface {
	// Name returns the venue identifier (e.g., "osmosis-poolmanager")
	Name() string

	// SwapMsg builds a swap-exact-amount-in message sent by sender
	SwapMsg(sender string, in platform.Coin, path Path, minOut decimal.Decimal) (platform.Any, error)

	// ParseSwapResponses returns the amount out of every swap response in order.
	// Responses of other message types are ignored.
	ParseSwapResponses(responses []platform.Any) ([]decimal.Decimal, error)
}
