package dex

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// TransferInInit sends the swap proceeds from the dex account back to the owner.
// Received is in the local denom, the transfer carries its dex counterpart.
type TransferInInit[T Task] struct {
	unsupported[T]
	Task     T             `json:"task"`
	Account  Account       `json:"account"`
	Received platform.Coin `json:"received"`
	// Baseline is the owner balance of the received denom before the transfer was sent
	Baseline decimal.Decimal `json:"baseline"`
}

func (s TransferInInit[T]) Kind() Kind { return KindTransferInInit }

func (s TransferInInit[T]) prepare(env Env) (stage[T], platform.Msg, error) {
	if s.Received.IsZero() {
		return s, nil, nil
	}

	dexDenom, err := env.Denoms.DexDenom(s.Received.Denom)
	if err != nil {
		return s, nil, fmt.Errorf("failed to translate received denom: %w", err)
	}
	baseline, err := env.Balances.Balance(s.Account.Owner, s.Received.Denom)
	if err != nil {
		return s, nil, fmt.Errorf("failed to query owner balance: %w", err)
	}
	s.Baseline = baseline

	transfer := platform.NewTransfer(
		env.Connection.DexTransferChannel,
		s.Account.Address,
		s.Account.Owner,
		platform.Coin{Amount: s.Received.Amount, Denom: dexDenom},
		env.Now.Add(env.Policy.PacketTimeout),
	)
	msg, err := platform.NewAny(platform.TypeMsgTransfer, transfer)
	if err != nil {
		return s, nil, err
	}
	return s, platform.NewSubmitTx(s.Account.Owner, s.Account.ConnectionID, []platform.Any{msg}, env.Policy.PacketTimeout), nil
}

func (s TransferInInit[T]) skip(env Env) (Transition[T], error) {
	return finish(Result[T]{Task: s.Task, Account: s.Account, Received: s.Received}, platform.Batch{}), nil
}

func (s TransferInInit[T]) advance(payload []byte, env Env) (Transition[T], error) {
	if _, err := platform.DecodeTxMsgData(payload); err != nil {
		return Transition[T]{}, &PayloadError{Stage: KindTransferInInit, Err: err}
	}
	f := TransferInFinish[T]{
		Task:     s.Task,
		Account:  s.Account,
		Received: s.Received,
		Baseline: s.Baseline,
		Deadline: env.Now.Add(env.Policy.TransferInTimeout),
	}
	return f.check(env, false)
}

func (s TransferInInit[T]) account() Account { return s.Account }

func (s TransferInInit[T]) withAccount(acc Account) stage[T] {
	s.Account = acc
	return s
}

func (s TransferInInit[T]) overIca() bool { return true }

func (s TransferInInit[T]) Heal(env Env) (Transition[T], error) {
	return submit[T](s, 0, env)
}

func (s TransferInInit[T]) OnTimeAlarm(env Env) (Transition[T], error) {
	return enter[T](s, env)
}

func (s TransferInInit[T]) Progress(now time.Time, due time.Duration) Progress {
	return Progress{
		Label:     s.Task.Label(),
		Stage:     KindTransferInInit,
		Account:   s.Account.Address,
		Coins:     []platform.Coin{s.Received},
		Remaining: due,
	}
}

// TransferInFinish waits for the proceeds to land on the owner account
type TransferInFinish[T Task] struct {
	unsupported[T]
	Task     T               `json:"task"`
	Account  Account         `json:"account"`
	Received platform.Coin   `json:"received"`
	Baseline decimal.Decimal `json:"baseline"`
	Deadline time.Time       `json:"deadline"`
	// NextPoll is the instant of the pending balance check, alarms before it are stale
	NextPoll time.Time `json:"next_poll"`
}

func (s TransferInFinish[T]) Kind() Kind { return KindTransferInFinish }

func (s TransferInFinish[T]) Heal(env Env) (Transition[T], error) {
	return s.check(env, true)
}

func (s TransferInFinish[T]) OnTimeAlarm(env Env) (Transition[T], error) {
	if env.Now.Before(s.NextPoll) {
		return continueWith[T](s, platform.Batch{}), nil
	}
	return s.check(env, false)
}

// check finishes the saga once the owner balance grew by the received amount. Past
// the deadline the transfer is sent again.
func (s TransferInFinish[T]) check(env Env, strict bool) (Transition[T], error) {
	balance, err := env.Balances.Balance(s.Account.Owner, s.Received.Denom)
	if err != nil {
		if strict {
			return Transition[T]{}, fmt.Errorf("failed to query owner balance: %w", err)
		}
		env.Log.Warn().Err(err).Str("label", s.Task.Label()).Msg("Balance query failed, polling again")
		return s.poll(env), nil
	}

	if balance.GreaterThanOrEqual(s.Baseline.Add(s.Received.Amount)) {
		env.Log.Info().
			Str("label", s.Task.Label()).
			Str("received", s.Received.String()).
			Msg("Transfer in completed")
		return finish(Result[T]{Task: s.Task, Account: s.Account, Received: s.Received}, platform.Batch{}), nil
	}

	if !env.Now.Before(s.Deadline) {
		env.Log.Warn().
			Str("label", s.Task.Label()).
			Time("deadline", s.Deadline).
			Msg("Transfer in not received before deadline, sending again")
		return enter[T](TransferInInit[T]{Task: s.Task, Account: s.Account, Received: s.Received}, env)
	}
	return s.poll(env), nil
}

func (s TransferInFinish[T]) poll(env Env) Transition[T] {
	at := env.Now.Add(env.Policy.TransferInPoll)
	if at.After(s.Deadline) {
		at = s.Deadline
	}
	s.NextPoll = at
	var msgs platform.Batch
	msgs.Schedule(at)
	return continueWith[T](s, msgs)
}

func (s TransferInFinish[T]) Progress(now time.Time, due time.Duration) Progress {
	return Progress{
		Label:     s.Task.Label(),
		Stage:     KindTransferInFinish,
		Account:   s.Account.Address,
		Coins:     []platform.Coin{s.Received},
		Remaining: remaining(s.Deadline, now, due),
	}
}
