package dex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// handshake tracks one ICA registration until the channel open acknowledgement
type handshake struct {
	TxID      platform.TxID `json:"tx_id"`
	ChannelID string        `json:"channel_id,omitempty"`
	Deadline  time.Time     `json:"deadline"`
	// Failure is the reason an error or timeout of the registration reported
	Failure string `json:"failure,omitempty"`
}

func register(owner string, env Env) (handshake, platform.Batch, error) {
	msg, err := platform.NewRegisterIca(owner, env.Connection.ConnectionID, env.Connection.HostConnectionID)
	if err != nil {
		return handshake{}, platform.Batch{}, err
	}
	h := handshake{
		TxID:     env.IDs.NextTxID(),
		Deadline: env.Now.Add(env.Policy.StepTimeout),
	}

	var msgs platform.Batch
	msgs.Track(h.TxID, env.Forward, msg)
	msgs.Schedule(h.Deadline)

	env.Log.Info().
		Str("owner", owner).
		Str("connection", env.Connection.ConnectionID).
		Str("tx_id", string(h.TxID)).
		Msg("Registering interchain account")
	return h, msgs, nil
}

// replied records the channel the local chain allocated for the registration
func (h handshake) replied(kind Kind, ev Reply) (handshake, error) {
	if ev.TxID != h.TxID {
		return h, fmt.Errorf("%s, registering %s: %w", ev.TxID, h.TxID, ErrStaleDelivery)
	}
	var resp platform.RegisterIcaResponse
	if err := json.Unmarshal(ev.Payload, &resp); err != nil {
		return h, &PayloadError{Stage: kind, Err: err}
	}
	if resp.ChannelID == "" {
		return h, &PayloadError{Stage: kind, Err: errors.New("reply without channel id")}
	}
	h.ChannelID = resp.ChannelID
	return h, nil
}

func (h handshake) opened(owner string, ev IcaOpened, env Env) (Account, error) {
	if ev.ChannelID == "" {
		return Account{}, fmt.Errorf("channel open without channel id: %w", ErrIcaHandshake)
	}
	if h.ChannelID != "" && ev.ChannelID != h.ChannelID {
		return Account{}, fmt.Errorf("channel %s opened, registered %s: %w", ev.ChannelID, h.ChannelID, ErrStaleDelivery)
	}
	if err := platform.ValidateAddress(ev.Address, env.Connection.Bech32Prefix); err != nil {
		return Account{}, fmt.Errorf("invalid account address: %v: %w", err, ErrIcaHandshake)
	}

	env.Log.Info().
		Str("owner", owner).
		Str("address", ev.Address).
		Str("channel", ev.ChannelID).
		Msg("Interchain account opened")
	return Account{
		Owner:        owner,
		Address:      ev.Address,
		ConnectionID: env.Connection.ConnectionID,
		ChannelID:    ev.ChannelID,
	}, nil
}

// failed records a failed registration so a heal may register again at once
func (h handshake) failed(kind Kind, txID platform.TxID, reason string, env Env) (handshake, error) {
	if txID != h.TxID {
		return h, fmt.Errorf("%s, registering %s: %w", txID, h.TxID, ErrStaleDelivery)
	}
	env.Log.Warn().
		Str("stage", string(kind)).
		Str("tx_id", string(txID)).
		Str("reason", reason).
		Msg("Interchain account registration failed, awaiting heal")
	h.Failure = reason
	return h, nil
}

// dead reports why the handshake can no longer complete, nil while it still may
func (h handshake) dead(now time.Time) error {
	if h.Failure != "" {
		return fmt.Errorf("registration %s: %s: %w", h.TxID, h.Failure, ErrIcaHandshake)
	}
	if now.Before(h.Deadline) {
		return nil
	}
	return fmt.Errorf("no channel open acknowledgement before %s: %w", h.Deadline.Format(time.RFC3339), ErrIcaHandshake)
}

// OpenIca registers the owner's interchain account before the first stage runs.
// A failed or expired handshake is healed by registering again.
type OpenIca[T Task] struct {
	unsupported[T]
	Task      T         `json:"task"`
	Handshake handshake `json:"handshake"`
}

func connect[T Task](task T, env Env) (Transition[T], error) {
	h, msgs, err := register(env.Owner, env)
	if err != nil {
		return Transition[T]{}, err
	}
	return continueWith[T](OpenIca[T]{Task: task, Handshake: h}, msgs), nil
}

func (s OpenIca[T]) Kind() Kind { return KindOpenIca }

func (s OpenIca[T]) Reply(ev Reply, env Env) (Transition[T], error) {
	h, err := s.Handshake.replied(KindOpenIca, ev)
	if err != nil {
		return Transition[T]{}, err
	}
	s.Handshake = h
	return continueWith[T](s, platform.Batch{}), nil
}

func (s OpenIca[T]) OnOpenIca(ev IcaOpened, env Env) (Transition[T], error) {
	acc, err := s.Handshake.opened(env.Owner, ev, env)
	if err != nil {
		return Transition[T]{}, err
	}
	return enter[T](TransferOut[T]{Task: s.Task, Account: acc}, env)
}

func (s OpenIca[T]) OnError(ev ErrorAck, env Env) (Transition[T], error) {
	return s.fail(ev.TxID, ev.Details, env)
}

func (s OpenIca[T]) OnTimeout(ev Timeout, env Env) (Transition[T], error) {
	return s.fail(ev.TxID, "handshake timed out", env)
}

func (s OpenIca[T]) fail(txID platform.TxID, reason string, env Env) (Transition[T], error) {
	h, err := s.Handshake.failed(KindOpenIca, txID, reason, env)
	if err != nil {
		return Transition[T]{}, err
	}
	s.Handshake = h
	return continueWith[T](s, platform.Batch{}), nil
}

// OnTimeAlarm reports an expired handshake. A failed one already waits for a heal.
func (s OpenIca[T]) OnTimeAlarm(env Env) (Transition[T], error) {
	if err := s.Handshake.dead(env.Now); err != nil && s.Handshake.Failure == "" {
		return Transition[T]{}, err
	}
	return continueWith[T](s, platform.Batch{}), nil
}

func (s OpenIca[T]) Heal(env Env) (Transition[T], error) {
	if s.Handshake.dead(env.Now) == nil {
		return Transition[T]{}, fmt.Errorf("registration %s: %w", s.Handshake.TxID, ErrStillInFlight)
	}
	return connect(s.Task, env)
}

func (s OpenIca[T]) Progress(now time.Time, due time.Duration) Progress {
	return Progress{
		Label:     s.Task.Label(),
		Stage:     KindOpenIca,
		InFlight:  s.Handshake.TxID,
		Coins:     s.Task.CoinsToTransferOut(),
		Remaining: remaining(s.Handshake.Deadline, now, due),
	}
}
