// Package osmosis provides the Osmosis implementation of the swap venue contracts.
package osmosis

import (
	"github.com/Cogwheel-Validator/spectra-lease/swap"
	sqsquery "github.com/Cogwheel-Validator/spectra-lease/swap/sqs_query"
)

const (
	// VenueName is the swap venue identifier for Osmosis poolmanager
	VenueName = "osmosis-poolmanager"

	TypeMsgSwapExactAmountIn         = "/osmosis.poolmanager.v1beta1.MsgSwapExactAmountIn"
	TypeMsgSwapExactAmountInResponse = "/osmosis.poolmanager.v1beta1.MsgSwapExactAmountInResponse"
)

// SwapAmountInRoute is one hop of a poolmanager swap
type SwapAmountInRoute struct {
	PoolID        uint64 `json:"pool_id,string"`
	TokenOutDenom string `json:"token_out_denom"`
}

// MsgSwapExactAmountIn mirrors the poolmanager message in its proto3 json form
type MsgSwapExactAmountIn struct {
	Sender            string              `json:"sender"`
	Routes            []SwapAmountInRoute `json:"routes"`
	TokenIn           Coin                `json:"token_in"`
	TokenOutMinAmount string              `json:"token_out_min_amount"`
}

// MsgSwapExactAmountInResponse is the per-message response in the ICA tx ack
type MsgSwapExactAmountInResponse struct {
	TokenOutAmount string `json:"token_out_amount"`
}

// Coin is the sdk coin json form, amounts as integer strings
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// RouteData contains the Osmosis routing information of a quote
type RouteData struct {
	Routes               []Route `json:"routes"`
	LiquidityCap         string  `json:"liquidity_cap"`
	LiquidityCapOverflow bool    `json:"liquidity_cap_overflow"`
}

// Route represents a single swap route on Osmosis
type Route struct {
	Pools     []Pool `json:"pools"`
	HasCwPool bool   `json:"has_cw_pool"`
	OutAmount string `json:"out_amount"`
	InAmount  string `json:"in_amount"`
}

// Pool represents a single pool in a swap route
type Pool struct {
	ID            uint64 `json:"id"`
	Type          int    `json:"type"`
	SpreadFactor  string `json:"spread_factor"`
	TokenOutDenom string `json:"token_out_denom"`
	TakerFee      string `json:"taker_fee"`
}

// Hops converts the best route into swap hops.
// This assumes the quote was requested with single route set to true.
func (r *RouteData) Hops() []swap.Hop {
	if len(r.Routes) == 0 || len(r.Routes[0].Pools) == 0 {
		return nil
	}

	route := r.Routes[0]
	hops := make([]swap.Hop, len(route.Pools))
	for i, pool := range route.Pools {
		hops[i] = swap.Hop{
			PoolID:        pool.ID,
			TokenOutDenom: pool.TokenOutDenom,
		}
	}
	return hops
}

// ConvertSqsResponseToRouteData converts the SQS API response to typed RouteData
func ConvertSqsResponseToRouteData(sqsResponse sqsquery.RouteTokenResponse) *RouteData {
	routes := make([]Route, 0, len(sqsResponse.Route))

	for _, sqsRoute := range sqsResponse.Route {
		pools := make([]Pool, 0, len(sqsRoute.Pools))
		for _, sqsPool := range sqsRoute.Pools {
			pools = append(pools, Pool{
				ID:            sqsPool.ID,
				Type:          sqsPool.Type,
				SpreadFactor:  sqsPool.SpreadFactor,
				TokenOutDenom: sqsPool.TokenOutDenom,
				TakerFee:      sqsPool.TakerFee,
			})
		}

		routes = append(routes, Route{
			Pools:     pools,
			HasCwPool: sqsRoute.HasCwPool,
			OutAmount: sqsRoute.OutAmount,
			InAmount:  sqsRoute.InAmount,
		})
	}

	return &RouteData{
		Routes:               routes,
		LiquidityCap:         sqsResponse.LiquidityCap,
		LiquidityCapOverflow: sqsResponse.LiquidityCapOverflow,
	}
}
