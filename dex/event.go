package dex

import (
	"fmt"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Event is a host callback delivered to a saga. The set is closed.
type Event interface {
	event()
}

// IcaOpened reports the channel open acknowledgement of an ICA registration
type IcaOpened struct {
	ChannelID string `json:"channel_id"`
	Address   string `json:"address"`
}

// Ack delivers the acknowledgement of a submission
type Ack struct {
	TxID    platform.TxID `json:"tx_id"`
	Payload []byte        `json:"payload"`
}

// ErrorAck delivers an error acknowledgement of a submission
type ErrorAck struct {
	TxID    platform.TxID `json:"tx_id"`
	Details string        `json:"details"`
}

// Timeout reports a submission whose packet timed out
type Timeout struct {
	TxID platform.TxID `json:"tx_id"`
}

// Reply delivers the local chain's response to a submitted message
type Reply struct {
	TxID    platform.TxID `json:"tx_id"`
	Payload []byte        `json:"payload"`
}

// HealRequest is an operator triggered retry of the current step
type HealRequest struct{}

// TimeAlarm is a scheduled wake-up
type TimeAlarm struct{}

func (IcaOpened) event()   {}
func (Ack) event()         {}
func (ErrorAck) event()    {}
func (Timeout) event()     {}
func (Reply) event()       {}
func (HealRequest) event() {}
func (TimeAlarm) event()   {}

// EventName returns a short name of the event for logs and metrics
func EventName(ev Event) string {
	switch ev.(type) {
	case IcaOpened:
		return "open_ica"
	case Ack:
		return "response"
	case ErrorAck:
		return "error"
	case Timeout:
		return "timeout"
	case Reply:
		return "reply"
	case HealRequest:
		return "heal"
	case TimeAlarm:
		return "time_alarm"
	default:
		return "unknown"
	}
}

// Dispatch routes ev to the matching handler of s.
// A returned error leaves s as the current state.
func Dispatch[T Task](s State[T], ev Event, env Env) (Transition[T], error) {
	if err := env.validate(); err != nil {
		return Transition[T]{}, err
	}

	var (
		t   Transition[T]
		err error
	)
	switch ev := ev.(type) {
	case IcaOpened:
		t, err = s.OnOpenIca(ev, env)
	case Ack:
		t, err = s.OnResponse(ev, env)
	case ErrorAck:
		t, err = s.OnError(ev, env)
	case Timeout:
		t, err = s.OnTimeout(ev, env)
	case Reply:
		t, err = s.Reply(ev, env)
	case HealRequest:
		t, err = s.Heal(env)
	case TimeAlarm:
		t, err = s.OnTimeAlarm(env)
	default:
		return Transition[T]{}, fmt.Errorf("unknown event %T", ev)
	}
	if err != nil {
		return Transition[T]{}, fmt.Errorf("%s on %s: %w", EventName(ev), s.Kind(), err)
	}

	env.Log.Debug().
		Str("from", string(s.Kind())).
		Str("event", EventName(ev)).
		Bool("finished", t.Finished()).
		Int("messages", t.Messages.Len()).
		Msg("Event dispatched")
	return t, nil
}
