// Package lease runs the lease lifecycle on top of the dex swap saga. Opening a lease
// buys the asset with the downpayment and the loan, closing it sells the asset back
// into the lpn. Each of them embeds a dex saga as its in-progress step.
package lease

import (
	"errors"
	"fmt"
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Phase names a lease state
type Phase string

const (
	PhaseOpening Phase = "opening"
	PhaseOpened  Phase = "opened"
	PhaseClosing Phase = "closing"
	PhaseClosed  Phase = "closed"
)

// ErrWrongPhase rejects a request the lease cannot serve in its current phase
var ErrWrongPhase = errors.New("request not valid in current lease phase")

// State is the persisted state of a lease
type State interface {
	Phase() Phase
	// Status projects the state for status queries
	Status(now time.Time, due time.Duration) Status
	lease()
}

// Opening buys the asset
type Opening struct {
	Spec Spec                `json:"spec"`
	Saga dex.State[BuyAsset] `json:"-"`
}

// Opened holds the asset on the lease owner account
type Opened struct {
	Spec     Spec          `json:"spec"`
	Account  dex.Account   `json:"account"`
	Asset    platform.Coin `json:"asset"`
	OpenedAt time.Time     `json:"opened_at"`
}

// Closing sells the asset
type Closing struct {
	Spec     Spec                 `json:"spec"`
	OpenedAt time.Time            `json:"opened_at"`
	Saga     dex.State[SellAsset] `json:"-"`
}

// Closed is terminal. Proceeds are the lpn returned to the lease owner.
type Closed struct {
	Spec     Spec          `json:"spec"`
	Proceeds platform.Coin `json:"proceeds"`
	ClosedAt time.Time     `json:"closed_at"`
}

func (Opening) Phase() Phase { return PhaseOpening }
func (Opened) Phase() Phase  { return PhaseOpened }
func (Closing) Phase() Phase { return PhaseClosing }
func (Closed) Phase() Phase  { return PhaseClosed }

func (Opening) lease() {}
func (Opened) lease()  {}
func (Closing) lease() {}
func (Closed) lease()  {}

// Open starts buying the asset for spec. account is the dex account of a previous
// lease of the same owner, nil opens a new one.
func Open(spec Spec, account *dex.Account, env dex.Env) (State, platform.Batch, error) {
	if err := spec.Validate(); err != nil {
		return nil, platform.Batch{}, fmt.Errorf("invalid lease spec: %w", err)
	}
	t, err := dex.Start(BuyAsset{Spec: spec}, account, env)
	if err != nil {
		return nil, platform.Batch{}, fmt.Errorf("failed to open lease %s: %w", spec.ID, err)
	}
	if t.Finished() {
		next, msgs, err := opening{spec}.OnInner(*t.Result, env)
		return next, t.Messages.Merge(msgs), err
	}
	return Opening{Spec: spec, Saga: t.Next}, t.Messages, nil
}

// Close starts selling the asset of an opened lease
func Close(s State, env dex.Env) (State, platform.Batch, error) {
	opened, ok := s.(Opened)
	if !ok {
		return nil, platform.Batch{}, fmt.Errorf("close %s lease: %w", s.Phase(), ErrWrongPhase)
	}

	c := closing{spec: opened.Spec, openedAt: opened.OpenedAt}
	t, err := dex.Start(SellAsset{Spec: opened.Spec, Asset: opened.Asset}, &opened.Account, env)
	if err != nil {
		return nil, platform.Batch{}, fmt.Errorf("failed to close lease %s: %w", opened.Spec.ID, err)
	}
	if t.Finished() {
		next, msgs, err := c.OnInner(*t.Result, env)
		return next, t.Messages.Merge(msgs), err
	}
	return c.OnInnerContinue(t.Next), t.Messages, nil
}

// Handle delivers a host callback to the saga in progress. An alarm scheduled by a
// saga that has since completed finds the lease idle and is dropped.
func Handle(s State, ev dex.Event, env dex.Env) (State, platform.Batch, error) {
	switch s := s.(type) {
	case Opening:
		return dex.ForwardToInner(s.Saga, ev, env, opening{s.Spec})
	case Closing:
		return dex.ForwardToInner(s.Saga, ev, env, closing{spec: s.Spec, openedAt: s.OpenedAt})
	default:
		if _, ok := ev.(dex.TimeAlarm); ok {
			return s, platform.Batch{}, nil
		}
		return nil, platform.Batch{}, fmt.Errorf("%s on %s lease: %w", dex.EventName(ev), s.Phase(), ErrWrongPhase)
	}
}

type opening struct {
	spec Spec
}

func (o opening) OnInnerContinue(inner dex.State[BuyAsset]) State {
	return Opening{Spec: o.spec, Saga: inner}
}

func (o opening) OnInner(res dex.Result[BuyAsset], env dex.Env) (State, platform.Batch, error) {
	env.Log.Info().
		Str("lease", o.spec.ID).
		Str("asset", res.Received.String()).
		Msg("Lease opened")
	return Opened{Spec: o.spec, Account: res.Account, Asset: res.Received, OpenedAt: env.Now}, platform.Batch{}, nil
}

type closing struct {
	spec     Spec
	openedAt time.Time
}

func (c closing) OnInnerContinue(inner dex.State[SellAsset]) State {
	return Closing{Spec: c.spec, OpenedAt: c.openedAt, Saga: inner}
}

func (c closing) OnInner(res dex.Result[SellAsset], env dex.Env) (State, platform.Batch, error) {
	env.Log.Info().
		Str("lease", c.spec.ID).
		Str("proceeds", res.Received.String()).
		Msg("Lease closed")
	return Closed{Spec: c.spec, Proceeds: res.Received, ClosedAt: env.Now}, platform.Batch{}, nil
}
