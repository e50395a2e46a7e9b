package dex

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// PreRecoverIca holds a stage interrupted by a broken ICA channel until the
// channel is reopened.
type PreRecoverIca[T Task] struct {
	unsupported[T]
	Interrupted stage[T]
	RetryAt     time.Time
}

func preRecover[T Task](s stage[T], env Env) Transition[T] {
	p := PreRecoverIca[T]{Interrupted: s, RetryAt: env.Now.Add(env.Policy.RecoveryDelay)}
	env.Log.Warn().
		Str("stage", string(s.Kind())).
		Str("channel", s.account().ChannelID).
		Time("retry_at", p.RetryAt).
		Msg("ICA channel broken, recovering")

	var msgs platform.Batch
	msgs.Schedule(p.RetryAt)
	return continueWith[T](p, msgs)
}

func (p PreRecoverIca[T]) Kind() Kind { return KindPreRecoverIca }

// Marker returns the stage the saga resumes at after recovery
func (p PreRecoverIca[T]) Marker() Kind { return p.Interrupted.Kind() }

func (p PreRecoverIca[T]) OnTimeAlarm(env Env) (Transition[T], error) {
	if env.Now.Before(p.RetryAt) {
		return continueWith[T](p, platform.Batch{}), nil
	}
	return p.recover(env)
}

func (p PreRecoverIca[T]) Heal(env Env) (Transition[T], error) {
	return p.recover(env)
}

func (p PreRecoverIca[T]) recover(env Env) (Transition[T], error) {
	h, msgs, err := register(p.Interrupted.account().Owner, env)
	if err != nil {
		return Transition[T]{}, err
	}
	return continueWith[T](RecoverIca[T]{Interrupted: p.Interrupted, Handshake: h}, msgs), nil
}

func (p PreRecoverIca[T]) Progress(now time.Time, due time.Duration) Progress {
	progress := p.Interrupted.Progress(now, due)
	progress.Interrupted = progress.Stage
	progress.Stage = KindPreRecoverIca
	progress.Remaining = remaining(p.RetryAt, now, due)
	return progress
}

// RecoverIca reopens the interchain account of an interrupted stage. On success the
// stale account record is dropped and the stage is resubmitted with the new one.
type RecoverIca[T Task] struct {
	unsupported[T]
	Interrupted stage[T]
	Handshake   handshake
}

func (r RecoverIca[T]) Kind() Kind { return KindRecoverIca }

// Marker returns the stage the saga resumes at after recovery
func (r RecoverIca[T]) Marker() Kind { return r.Interrupted.Kind() }

func (r RecoverIca[T]) Reply(ev Reply, env Env) (Transition[T], error) {
	h, err := r.Handshake.replied(KindRecoverIca, ev)
	if err != nil {
		return Transition[T]{}, err
	}
	r.Handshake = h
	return continueWith[T](r, platform.Batch{}), nil
}

func (r RecoverIca[T]) OnOpenIca(ev IcaOpened, env Env) (Transition[T], error) {
	acc, err := r.Handshake.opened(r.Interrupted.account().Owner, ev, env)
	if err != nil {
		return Transition[T]{}, err
	}
	resumed := r.Interrupted.withAccount(acc)
	env.Log.Info().
		Str("stage", string(resumed.Kind())).
		Str("channel", acc.ChannelID).
		Msg("ICA recovered, resubmitting interrupted stage")
	return enter(resumed, env)
}

func (r RecoverIca[T]) OnError(ev ErrorAck, env Env) (Transition[T], error) {
	return r.fail(ev.TxID, ev.Details, env)
}

func (r RecoverIca[T]) OnTimeout(ev Timeout, env Env) (Transition[T], error) {
	return r.fail(ev.TxID, "handshake timed out", env)
}

func (r RecoverIca[T]) fail(txID platform.TxID, reason string, env Env) (Transition[T], error) {
	h, err := r.Handshake.failed(KindRecoverIca, txID, reason, env)
	if err != nil {
		return Transition[T]{}, err
	}
	r.Handshake = h
	return continueWith[T](r, platform.Batch{}), nil
}

// OnTimeAlarm reports an expired handshake. A failed one already waits for a heal.
func (r RecoverIca[T]) OnTimeAlarm(env Env) (Transition[T], error) {
	if err := r.Handshake.dead(env.Now); err != nil && r.Handshake.Failure == "" {
		return Transition[T]{}, err
	}
	return continueWith[T](r, platform.Batch{}), nil
}

func (r RecoverIca[T]) Heal(env Env) (Transition[T], error) {
	if r.Handshake.dead(env.Now) == nil {
		return Transition[T]{}, fmt.Errorf("registration %s: %w", r.Handshake.TxID, ErrStillInFlight)
	}
	return PreRecoverIca[T]{Interrupted: r.Interrupted}.recover(env)
}

func (r RecoverIca[T]) Progress(now time.Time, due time.Duration) Progress {
	progress := r.Interrupted.Progress(now, due)
	progress.Interrupted = progress.Stage
	progress.Stage = KindRecoverIca
	progress.InFlight = r.Handshake.TxID
	progress.Remaining = remaining(r.Handshake.Deadline, now, due)
	return progress
}

type preRecoverJSON struct {
	Interrupted json.RawMessage `json:"interrupted"`
	RetryAt     time.Time       `json:"retry_at"`
}

func (p PreRecoverIca[T]) MarshalJSON() ([]byte, error) {
	interrupted, err := Encode[T](p.Interrupted)
	if err != nil {
		return nil, err
	}
	return json.Marshal(preRecoverJSON{Interrupted: interrupted, RetryAt: p.RetryAt})
}

func (p *PreRecoverIca[T]) UnmarshalJSON(data []byte) error {
	var raw preRecoverJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, err := decodeStage[T](raw.Interrupted)
	if err != nil {
		return err
	}
	*p = PreRecoverIca[T]{Interrupted: s, RetryAt: raw.RetryAt}
	return nil
}

type recoverJSON struct {
	Interrupted json.RawMessage `json:"interrupted"`
	Handshake   handshake       `json:"handshake"`
}

func (r RecoverIca[T]) MarshalJSON() ([]byte, error) {
	interrupted, err := Encode[T](r.Interrupted)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recoverJSON{Interrupted: interrupted, Handshake: r.Handshake})
}

func (r *RecoverIca[T]) UnmarshalJSON(data []byte) error {
	var raw recoverJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, err := decodeStage[T](raw.Interrupted)
	if err != nil {
		return err
	}
	*r = RecoverIca[T]{Interrupted: s, Handshake: raw.Handshake}
	return nil
}
