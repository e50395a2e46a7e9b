// Package platform holds the host primitives the swap saga talks to: coins, outgoing
// chain messages, acknowledgement payloads and the batch a handler hands back to the host.
package platform

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Coin is an amount of a single denom. Amounts are integral base units.
type Coin struct {
	Amount decimal.Decimal `json:"amount"`
	Denom  string          `json:"denom"`
}

// NewCoin creates a coin from an integer amount
func NewCoin(amount int64, denom string) Coin {
	return Coin{Amount: decimal.NewFromInt(amount), Denom: denom}
}

// ParseCoin parses an amount string in base units
func ParseCoin(amount, denom string) (Coin, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Coin{}, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return Coin{}, fmt.Errorf("negative amount %s%s", amount, denom)
	}
	if !d.Equal(d.Truncate(0)) {
		return Coin{}, fmt.Errorf("fractional amount %s%s", amount, denom)
	}
	return Coin{Amount: d, Denom: denom}, nil
}

// IsZero reports whether the coin carries no value
func (c Coin) IsZero() bool {
	return c.Amount.IsZero()
}

// String renders the coin the way the cosmos sdk does, e.g. 1000uosmo
func (c Coin) String() string {
	return c.Amount.String() + c.Denom
}

// Equal compares denom and amount
func (c Coin) Equal(o Coin) bool {
	return c.Denom == o.Denom && c.Amount.Equal(o.Amount)
}
