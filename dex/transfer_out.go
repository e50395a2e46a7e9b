package dex

import (
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// TransferOut sends the task's coins from the owner to the dex account, one ICS-20
// transfer per non-zero coin.
type TransferOut[T Task] struct {
	unsupported[T]
	Task    T       `json:"task"`
	Account Account `json:"account"`
	// Next is the index of the first coin not yet acknowledged
	Next int `json:"next"`
}

func (s TransferOut[T]) Kind() Kind { return KindTransferOut }

func (s TransferOut[T]) prepare(env Env) (stage[T], platform.Msg, error) {
	coins := s.Task.CoinsToTransferOut()
	for s.Next < len(coins) && coins[s.Next].IsZero() {
		s.Next++
	}
	if s.Next >= len(coins) {
		return s, nil, nil
	}

	msg := platform.NewTransfer(
		env.Connection.TransferChannel,
		s.Account.Owner,
		s.Account.Address,
		coins[s.Next],
		env.Now.Add(env.Policy.PacketTimeout),
	)
	return s, msg, nil
}

func (s TransferOut[T]) skip(env Env) (Transition[T], error) {
	return enter[T](SwapExactIn[T]{Task: s.Task, Account: s.Account}, env)
}

func (s TransferOut[T]) advance(payload []byte, env Env) (Transition[T], error) {
	if err := platform.DecodeTransferAck(payload); err != nil {
		return Transition[T]{}, &PayloadError{Stage: KindTransferOut, Err: err}
	}
	s.Next++
	return enter[T](s, env)
}

func (s TransferOut[T]) account() Account { return s.Account }

func (s TransferOut[T]) withAccount(acc Account) stage[T] {
	s.Account = acc
	return s
}

func (s TransferOut[T]) overIca() bool { return false }

func (s TransferOut[T]) Heal(env Env) (Transition[T], error) {
	return submit[T](s, 0, env)
}

func (s TransferOut[T]) OnTimeAlarm(env Env) (Transition[T], error) {
	return enter[T](s, env)
}

func (s TransferOut[T]) Progress(now time.Time, due time.Duration) Progress {
	var pending []platform.Coin
	if coins := s.Task.CoinsToTransferOut(); s.Next < len(coins) {
		pending = coins[s.Next:]
	}
	return Progress{
		Label:     s.Task.Label(),
		Stage:     KindTransferOut,
		Account:   s.Account.Address,
		Coins:     pending,
		Remaining: due,
	}
}
