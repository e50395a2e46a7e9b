package swap

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const maxBps = 10000

// MinOutput calculates minimum output with slippage tolerance.
// slippageBps is basis points (e.g., 100 = 1%)
// minOutput = expected * (10000 - slippageBps) / 10000, rounded down
func MinOutput(expected decimal.Decimal, slippageBps uint32) (decimal.Decimal, error) {
	if slippageBps > maxBps {
		return decimal.Decimal{}, fmt.Errorf("slippage of %d bps exceeds 100%%", slippageBps)
	}
	if expected.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative expected output %s", expected)
	}

	factor := decimal.NewFromInt(int64(maxBps - slippageBps))
	return expected.Mul(factor).Div(decimal.NewFromInt(maxBps)).Floor(), nil
}
