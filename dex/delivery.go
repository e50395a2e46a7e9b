package dex

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// ResponseDelivery is a stage whose message was submitted and is awaiting its
// acknowledgement. At most one of response, error or timeout is honoured for TxID,
// any later delivery for it is stale.
type ResponseDelivery[T Task] struct {
	unsupported[T]
	Stage     stage[T]
	TxID      platform.TxID
	ForwardTo platform.ForwardTo
	Attempt   int
	Deadline  time.Time
	// Sequence is the packet sequence reported by the local reply, zero until then
	Sequence uint64
}

func (d ResponseDelivery[T]) Kind() Kind { return KindResponseDelivery }

func (d ResponseDelivery[T]) matches(txID platform.TxID) error {
	if txID != d.TxID {
		return fmt.Errorf("%s, in flight %s: %w", txID, d.TxID, ErrStaleDelivery)
	}
	return nil
}

func (d ResponseDelivery[T]) OnResponse(ev Ack, env Env) (Transition[T], error) {
	if err := d.matches(ev.TxID); err != nil {
		return Transition[T]{}, err
	}
	return d.Stage.advance(ev.Payload, env)
}

func (d ResponseDelivery[T]) OnError(ev ErrorAck, env Env) (Transition[T], error) {
	if err := d.matches(ev.TxID); err != nil {
		return Transition[T]{}, err
	}
	return d.fail(classifyError(d.Stage.overIca(), ev.Details), ev.Details, env)
}

func (d ResponseDelivery[T]) OnTimeout(ev Timeout, env Env) (Transition[T], error) {
	if err := d.matches(ev.TxID); err != nil {
		return Transition[T]{}, err
	}
	return d.fail(classifyTimeout(d.Stage.overIca()), "packet timed out", env)
}

func (d ResponseDelivery[T]) Reply(ev Reply, env Env) (Transition[T], error) {
	if err := d.matches(ev.TxID); err != nil {
		return Transition[T]{}, err
	}
	var resp platform.TransferResponse
	if err := json.Unmarshal(ev.Payload, &resp); err != nil {
		return Transition[T]{}, &PayloadError{Stage: d.Stage.Kind(), Err: err}
	}
	d.Sequence = resp.Sequence
	return continueWith[T](d, platform.Batch{}), nil
}

// OnTimeAlarm treats a submission left unacknowledged past its deadline as timed out.
// Earlier alarms are no-ops.
func (d ResponseDelivery[T]) OnTimeAlarm(env Env) (Transition[T], error) {
	if env.Now.Before(d.Deadline) {
		return continueWith[T](d, platform.Batch{}), nil
	}
	return d.expire(env)
}

// Heal resubmits a stage left unacknowledged past its deadline. A heal is an operator
// retry, it starts a new round of attempts even after the automatic ones ran out.
func (d ResponseDelivery[T]) Heal(env Env) (Transition[T], error) {
	if env.Now.Before(d.Deadline) {
		return Transition[T]{}, fmt.Errorf("%s until %s: %w", d.TxID, d.Deadline.Format(time.RFC3339), ErrStillInFlight)
	}
	if classifyTimeout(d.Stage.overIca()) == failureChannelBroken {
		return d.expire(env)
	}

	env.Log.Info().
		Str("stage", string(d.Stage.Kind())).
		Str("tx_id", string(d.TxID)).
		Int("attempts", d.Attempt+1).
		Msg("Healing unacknowledged submission")
	t, err := submit(d.Stage, 0, env)
	if err != nil {
		return park(d.Stage, err, env), nil
	}
	return t, nil
}

func (d ResponseDelivery[T]) expire(env Env) (Transition[T], error) {
	env.Log.Warn().
		Str("stage", string(d.Stage.Kind())).
		Str("tx_id", string(d.TxID)).
		Time("deadline", d.Deadline).
		Msg("Submission not acknowledged before deadline")
	return d.fail(classifyTimeout(d.Stage.overIca()), "deadline elapsed", env)
}

func (d ResponseDelivery[T]) fail(f failure, reason string, env Env) (Transition[T], error) {
	switch f {
	case failureChannelBroken:
		return preRecover(d.Stage, env), nil
	case failureTransient:
		if d.Attempt+1 >= env.Policy.MaxAttempts {
			return Transition[T]{}, fmt.Errorf("%s after %d attempts: %w", reason, d.Attempt+1, ErrRetriesExhausted)
		}
		env.Log.Warn().
			Str("stage", string(d.Stage.Kind())).
			Str("reason", reason).
			Int("attempt", d.Attempt+1).
			Msg("Transient failure, resubmitting")
		t, err := submit(d.Stage, d.Attempt+1, env)
		if err != nil {
			return park(d.Stage, err, env), nil
		}
		return t, nil
	default:
		return Transition[T]{}, fmt.Errorf("%s: %w", reason, ErrChannelClosed)
	}
}

func (d ResponseDelivery[T]) Progress(now time.Time, due time.Duration) Progress {
	p := d.Stage.Progress(now, due)
	p.InFlight = d.TxID
	p.Attempt = d.Attempt
	p.Remaining = remaining(d.Deadline, now, due)
	return p
}

type deliveryJSON struct {
	Stage     json.RawMessage    `json:"stage"`
	TxID      platform.TxID      `json:"tx_id"`
	ForwardTo platform.ForwardTo `json:"forward_to,omitempty"`
	Attempt   int                `json:"attempt"`
	Deadline  time.Time          `json:"deadline"`
	Sequence  uint64             `json:"sequence,omitempty"`
}

func (d ResponseDelivery[T]) MarshalJSON() ([]byte, error) {
	stage, err := Encode[T](d.Stage)
	if err != nil {
		return nil, err
	}
	return json.Marshal(deliveryJSON{
		Stage:     stage,
		TxID:      d.TxID,
		ForwardTo: d.ForwardTo,
		Attempt:   d.Attempt,
		Deadline:  d.Deadline,
		Sequence:  d.Sequence,
	})
}

func (d *ResponseDelivery[T]) UnmarshalJSON(data []byte) error {
	var raw deliveryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, err := decodeStage[T](raw.Stage)
	if err != nil {
		return err
	}
	*d = ResponseDelivery[T]{
		Stage:     s,
		TxID:      raw.TxID,
		ForwardTo: raw.ForwardTo,
		Attempt:   raw.Attempt,
		Deadline:  raw.Deadline,
		Sequence:  raw.Sequence,
	}
	return nil
}
