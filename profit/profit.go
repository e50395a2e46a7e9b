// Package profit distributes the margin collected by leases. Every cycle sells the
// collected coins for the reward denom on the dex and sends the proceeds, together
// with what was already collected in the reward denom, to the treasury. The sale
// embeds a dex swap saga as the in-progress step.
package profit

import (
	"errors"
	"fmt"
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Phase names a profit state
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseBuyingBack Phase = "buying_back"
)

var (
	// ErrWrongPhase rejects a request the profit workflow cannot serve in its current phase
	ErrWrongPhase = errors.New("request not valid in current profit phase")
	// ErrNothingCollected rejects a distribution without any margin
	ErrNothingCollected = errors.New("no margin collected")
)

// Config names where the rewards go
type Config struct {
	Treasury string `json:"treasury"`
	Reward   string `json:"reward"`
}

// Validate checks the config before the first cycle
func (c Config) Validate() error {
	var errs []error
	if err := platform.ValidateAddress(c.Treasury, ""); err != nil {
		errs = append(errs, fmt.Errorf("treasury: %w", err))
	}
	if c.Reward == "" {
		errs = append(errs, errors.New("reward denom is required"))
	}
	return errors.Join(errs...)
}

// State is the persisted state of the profit workflow
type State interface {
	Phase() Phase
	// Status projects the state for status queries
	Status(now time.Time, due time.Duration) Status
	profit()
}

// Idle waits for the next distribution
type Idle struct {
	Config Config `json:"config"`
	// Cycle counts completed distributions
	Cycle int `json:"cycle"`
	// Account is the dex account of the previous cycle, reused by the next one
	Account *dex.Account   `json:"account,omitempty"`
	Last    *platform.Coin `json:"last,omitempty"`
	LastAt  time.Time      `json:"last_at,omitempty"`
}

// BuyingBack sells the collected margin
type BuyingBack struct {
	Config Config             `json:"config"`
	Cycle  int                `json:"cycle"`
	Held   platform.Coin      `json:"held"`
	Saga   dex.State[BuyBack] `json:"-"`
}

func (Idle) Phase() Phase       { return PhaseIdle }
func (BuyingBack) Phase() Phase { return PhaseBuyingBack }

func (Idle) profit()       {}
func (BuyingBack) profit() {}

// New returns the state before the first distribution
func New(cfg Config) (State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profit config: %w", err)
	}
	return Idle{Config: cfg}, nil
}

// Distribute starts a cycle selling collected
func Distribute(s State, collected []platform.Coin, env dex.Env) (State, platform.Batch, error) {
	idle, ok := s.(Idle)
	if !ok {
		return nil, platform.Batch{}, fmt.Errorf("distribute while %s: %w", s.Phase(), ErrWrongPhase)
	}
	for _, c := range collected {
		if c.Amount.IsNegative() {
			return nil, platform.Batch{}, fmt.Errorf("negative margin %s", c)
		}
	}

	task := BuyBack{Cycle: idle.Cycle + 1, Collected: collected, Reward: idle.Config.Reward}
	b := buyingBack{config: idle.Config, cycle: task.Cycle, held: task.held()}
	if !carries(task.CoinsToSwap()) {
		if b.held.IsZero() {
			return nil, platform.Batch{}, ErrNothingCollected
		}
		// all of it is in the reward denom already
		var account dex.Account
		if idle.Account != nil {
			account = *idle.Account
		}
		return b.OnInner(dex.Result[BuyBack]{Task: task, Account: account, Received: platform.NewCoin(0, task.Reward)}, env)
	}

	t, err := dex.Start(task, idle.Account, env)
	if err != nil {
		return nil, platform.Batch{}, fmt.Errorf("failed to start buy-back %d: %w", task.Cycle, err)
	}
	env.Log.Info().
		Int("cycle", task.Cycle).
		Int("coins", len(task.CoinsToSwap())).
		Str("held", b.held.String()).
		Msg("Profit distribution started")
	if t.Finished() {
		next, msgs, err := b.OnInner(*t.Result, env)
		return next, t.Messages.Merge(msgs), err
	}
	return b.OnInnerContinue(t.Next), t.Messages, nil
}

// carries reports whether any of coins is non-zero
func carries(coins []platform.Coin) bool {
	for _, c := range coins {
		if !c.IsZero() {
			return true
		}
	}
	return false
}

// Handle delivers a host callback to the buy-back in progress. Alarms left behind by
// a finished cycle are ignored while idle.
func Handle(s State, ev dex.Event, env dex.Env) (State, platform.Batch, error) {
	switch s := s.(type) {
	case BuyingBack:
		return dex.ForwardToInner(s.Saga, ev, env, buyingBack{config: s.Config, cycle: s.Cycle, held: s.Held})
	default:
		if _, ok := ev.(dex.TimeAlarm); ok {
			return s, platform.Batch{}, nil
		}
		return nil, platform.Batch{}, fmt.Errorf("%s while %s: %w", dex.EventName(ev), s.Phase(), ErrWrongPhase)
	}
}

type buyingBack struct {
	config Config
	cycle  int
	held   platform.Coin
}

func (b buyingBack) OnInnerContinue(inner dex.State[BuyBack]) State {
	return BuyingBack{Config: b.config, Cycle: b.cycle, Held: b.held, Saga: inner}
}

// OnInner sends the bought reward and the reward already held to the treasury
func (b buyingBack) OnInner(res dex.Result[BuyBack], env dex.Env) (State, platform.Batch, error) {
	reward := platform.Coin{Amount: res.Received.Amount.Add(b.held.Amount), Denom: b.config.Reward}

	var msgs platform.Batch
	if !reward.IsZero() {
		msgs.Add(platform.NewBankSend(env.Owner, b.config.Treasury, reward))
	}
	env.Log.Info().
		Int("cycle", b.cycle).
		Str("bought", res.Received.String()).
		Str("distributed", reward.String()).
		Str("treasury", b.config.Treasury).
		Msg("Profit distributed")

	next := Idle{Config: b.config, Cycle: b.cycle, Last: &reward, LastAt: env.Now}
	if res.Account.Address != "" {
		account := res.Account
		next.Account = &account
	}
	return next, msgs, nil
}
