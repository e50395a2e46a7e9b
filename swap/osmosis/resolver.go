package osmosis

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/swap"
	sqsquery "github.com/Cogwheel-Validator/spectra-lease/swap/sqs_query"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "osmosis-resolver").Logger()
}

// Quoter is the subset of the SQS client the resolver needs
type Quoter interface {
	QuoteExactIn(tokenIn sqsquery.TokenRequest, tokenOutDenom string, singleRoute bool) (sqsquery.RouteTokenResponse, error)
}

// Resolver implements swap.Resolver on top of the SQS router
type Resolver struct {
	quoter Quoter
}

// NewResolver creates a resolver backed by the given SQS quoter
func NewResolver(quoter Quoter) *Resolver {
	return &Resolver{quoter: quoter}
}

// Resolve implements swap.Resolver. It always asks for a single route so the
// quote maps onto one poolmanager message.
func (r *Resolver) Resolve(in platform.Coin, outDenom string) (swap.Path, error) {
	log.Debug().
		Str("tokenIn", in.Denom).
		Str("amount", in.Amount.String()).
		Str("tokenOut", outDenom).
		Msg("Querying SQS for swap route")

	response, err := r.quoter.QuoteExactIn(sqsquery.TokenRequest{
		Denom:  in.Denom,
		Amount: in.Amount.String(),
	}, outDenom, true)
	if err != nil {
		log.Error().Err(err).
			Str("tokenIn", in.Denom).
			Str("tokenOut", outDenom).
			Msg("SQS query failed")
		return swap.Path{}, fmt.Errorf("failed to quote %s -> %s: %w", in, outDenom, err)
	}

	hops := ConvertSqsResponseToRouteData(response).Hops()
	if len(hops) == 0 {
		return swap.Path{}, fmt.Errorf("no route from %s to %s", in.Denom, outDenom)
	}
	if last := hops[len(hops)-1].TokenOutDenom; last != outDenom {
		return swap.Path{}, fmt.Errorf("route from %s ends in %s, expected %s", in.Denom, last, outDenom)
	}

	expected, err := decimal.NewFromString(response.AmountOut)
	if err != nil {
		return swap.Path{}, fmt.Errorf("failed to parse quoted amount out: %w", err)
	}

	log.Debug().
		Str("amountOut", response.AmountOut).
		Str("priceImpact", response.PriceImpact).
		Int("hops", len(hops)).
		Msg("SQS query successful")

	return swap.Path{
		Hops:         hops,
		ExpectedOut:  expected,
		PriceImpact:  response.PriceImpact,
		EffectiveFee: response.EffectiveFee,
	}, nil
}
