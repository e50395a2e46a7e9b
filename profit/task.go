package profit

import (
	"fmt"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// BuyBack sells the collected margin for the reward denom
type BuyBack struct {
	Cycle     int             `json:"cycle"`
	Collected []platform.Coin `json:"collected"`
	Reward    string          `json:"reward"`
}

func (b BuyBack) Label() string { return fmt.Sprintf("buy-back/%d", b.Cycle) }

func (b BuyBack) CoinsToTransferOut() []platform.Coin {
	var out []platform.Coin
	for _, c := range b.Collected {
		if c.Denom != b.Reward {
			out = append(out, c)
		}
	}
	return out
}

func (b BuyBack) CoinsToSwap() []platform.Coin {
	return b.CoinsToTransferOut()
}

func (b BuyBack) OutDenom() string { return b.Reward }

// held is the part of the collected margin already in the reward denom. It never
// leaves the local chain.
func (b BuyBack) held() platform.Coin {
	held := platform.NewCoin(0, b.Reward)
	for _, c := range b.Collected {
		if c.Denom == b.Reward {
			held.Amount = held.Amount.Add(c.Amount)
		}
	}
	return held
}
