package dex

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/swap"
)

// SwapExactIn sells the task's coins for the out denom in a single ICA tx.
// Coins already in the out denom pass through unswapped.
type SwapExactIn[T Task] struct {
	unsupported[T]
	Task    T       `json:"task"`
	Account Account `json:"account"`
	// Direct is the part of the output that needed no swap
	Direct decimal.Decimal `json:"direct"`
	// Swaps is the number of swap messages in the submitted tx
	Swaps int `json:"swaps"`
}

func (s SwapExactIn[T]) Kind() Kind { return KindSwapExactIn }

func (s SwapExactIn[T]) prepare(env Env) (stage[T], platform.Msg, error) {
	out, err := env.Denoms.DexDenom(s.Task.OutDenom())
	if err != nil {
		return s, nil, fmt.Errorf("failed to translate out denom: %w", err)
	}
	s.Direct = decimal.Zero
	s.Swaps = 0

	var msgs []platform.Any
	for _, local := range s.Task.CoinsToSwap() {
		if local.IsZero() {
			continue
		}
		// the dex account holds the voucher of the transferred coin
		denom, err := env.Denoms.DexDenom(local.Denom)
		if err != nil {
			return s, nil, fmt.Errorf("failed to translate %s: %w", local, err)
		}
		coin := platform.Coin{Amount: local.Amount, Denom: denom}
		if coin.Denom == out {
			s.Direct = s.Direct.Add(coin.Amount)
			continue
		}

		path, err := env.Paths.Resolve(coin, out)
		if err != nil {
			return s, nil, fmt.Errorf("failed to resolve swap path for %s: %w", coin, err)
		}
		minOut, err := swap.MinOutput(path.ExpectedOut, env.Policy.SlippageBps)
		if err != nil {
			return s, nil, fmt.Errorf("failed to compute min output for %s: %w", coin, err)
		}
		msg, err := env.Swap.SwapMsg(s.Account.Address, coin, path, minOut)
		if err != nil {
			return s, nil, fmt.Errorf("failed to build swap of %s: %w", coin, err)
		}
		msgs = append(msgs, msg)
	}

	s.Swaps = len(msgs)
	if len(msgs) == 0 {
		return s, nil, nil
	}
	return s, platform.NewSubmitTx(s.Account.Owner, s.Account.ConnectionID, msgs, env.Policy.PacketTimeout), nil
}

func (s SwapExactIn[T]) skip(env Env) (Transition[T], error) {
	return s.received(s.Direct, env)
}

func (s SwapExactIn[T]) advance(payload []byte, env Env) (Transition[T], error) {
	data, err := platform.DecodeTxMsgData(payload)
	if err != nil {
		return Transition[T]{}, &PayloadError{Stage: KindSwapExactIn, Err: err}
	}
	amounts, err := env.Swap.ParseSwapResponses(data.MsgResponses)
	if err != nil {
		return Transition[T]{}, &PayloadError{Stage: KindSwapExactIn, Err: err}
	}
	if len(amounts) != s.Swaps {
		return Transition[T]{}, &PayloadError{
			Stage: KindSwapExactIn,
			Err:   fmt.Errorf("expected %d swap responses, got %d", s.Swaps, len(amounts)),
		}
	}

	total := s.Direct
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	env.Log.Info().
		Str("label", s.Task.Label()).
		Str("out", total.String()+s.Task.OutDenom()).
		Int("swaps", s.Swaps).
		Msg("Swap completed")
	return s.received(total, env)
}

func (s SwapExactIn[T]) received(amount decimal.Decimal, env Env) (Transition[T], error) {
	return enter[T](TransferInInit[T]{
		Task:     s.Task,
		Account:  s.Account,
		Received: platform.Coin{Amount: amount, Denom: s.Task.OutDenom()},
	}, env)
}

func (s SwapExactIn[T]) account() Account { return s.Account }

func (s SwapExactIn[T]) withAccount(acc Account) stage[T] {
	s.Account = acc
	return s
}

func (s SwapExactIn[T]) overIca() bool { return true }

func (s SwapExactIn[T]) Heal(env Env) (Transition[T], error) {
	return submit[T](s, 0, env)
}

func (s SwapExactIn[T]) OnTimeAlarm(env Env) (Transition[T], error) {
	return enter[T](s, env)
}

func (s SwapExactIn[T]) Progress(now time.Time, due time.Duration) Progress {
	return Progress{
		Label:     s.Task.Label(),
		Stage:     KindSwapExactIn,
		Account:   s.Account.Address,
		Coins:     s.Task.CoinsToSwap(),
		Remaining: due,
	}
}
