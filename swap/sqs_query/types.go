package sqsquery

// TokenRequest is an amount of a denom in the form SQS expects, amounts in base units
type TokenRequest struct {
	Denom  string
	Amount string
}

type RouteTokenResponse struct {
	AmountIn struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"amount_in"`
	AmountOut               string  `json:"amount_out"`
	Route                   []Route `json:"route"`
	EffectiveFee            string  `json:"effective_fee"`
	PriceImpact             string  `json:"price_impact"`
	LiquidityCap            string  `json:"liquidity_cap"`
	LiquidityCapOverflow    bool    `json:"liquidity_cap_overflow"`
	InBaseOutQuoteSpotPrice string  `json:"in_base_out_quote_spot_price"`
}

type Route struct {
	Pools     []Pool `json:"pools"`
	HasCwPool bool   `json:"has-cw-pool"`
	OutAmount string `json:"out_amount"`
	InAmount  string `json:"in_amount"`
}

type Pool struct {
	ID            uint64 `json:"id"`
	Type          int    `json:"type"`
	SpreadFactor  string `json:"spread_factor"`
	TokenOutDenom string `json:"token_out_denom"`
	TakerFee      string `json:"taker_fee"`
}
