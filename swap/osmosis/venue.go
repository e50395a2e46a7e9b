package osmosis

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/swap"
)

// Venue implements swap.Venue for the Osmosis poolmanager module
type Venue struct{}

// NewVenue creates the Osmosis swap venue
func NewVenue() *Venue {
	return &Venue{}
}

func (v *Venue) Name() string {
	return VenueName
}

// SwapMsg implements swap.Venue
func (v *Venue) SwapMsg(sender string, in platform.Coin, path swap.Path, minOut decimal.Decimal) (platform.Any, error) {
	if len(path.Hops) == 0 {
		return platform.Any{}, errors.New("swap path has no hops")
	}
	if in.IsZero() {
		return platform.Any{}, fmt.Errorf("cannot swap zero %s", in.Denom)
	}

	routes := make([]SwapAmountInRoute, len(path.Hops))
	for i, hop := range path.Hops {
		routes[i] = SwapAmountInRoute{PoolID: hop.PoolID, TokenOutDenom: hop.TokenOutDenom}
	}

	msg := MsgSwapExactAmountIn{
		Sender:            sender,
		Routes:            routes,
		TokenIn:           Coin{Denom: in.Denom, Amount: in.Amount.String()},
		TokenOutMinAmount: minOut.Floor().String(),
	}
	return platform.NewAny(TypeMsgSwapExactAmountIn, msg)
}

// ParseSwapResponses implements swap.Venue
func (v *Venue) ParseSwapResponses(responses []platform.Any) ([]decimal.Decimal, error) {
	amounts := make([]decimal.Decimal, 0, len(responses))
	for i, resp := range responses {
		if resp.TypeURL != TypeMsgSwapExactAmountInResponse {
			continue
		}

		var decoded MsgSwapExactAmountInResponse
		if err := json.Unmarshal(resp.Value, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode swap response %d: %w", i, err)
		}
		amount, err := decimal.NewFromString(decoded.TokenOutAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse swap response %d amount: %w", i, err)
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}
