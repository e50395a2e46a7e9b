package dex

import (
	"errors"
	"time"

	"github.com/Cogwheel-Validator/spectra-lease/platform"
)

// Kind tags a state variant in logs, progress reports and the persisted form
type Kind string

const (
	KindOpenIca          Kind = "open_ica"
	KindTransferOut      Kind = "transfer_out"
	KindSwapExactIn      Kind = "swap_exact_in"
	KindTransferInInit   Kind = "transfer_in_init"
	KindTransferInFinish Kind = "transfer_in_finish"
	KindResponseDelivery Kind = "response_delivery"
	KindPreRecoverIca    Kind = "pre_recover_ica"
	KindRecoverIca       Kind = "recover_ica"
)

// State is the persisted state of a saga. Every variant handles every callback,
// callbacks a variant has no use for are rejected with ErrUnsupportedOperation.
// Implementations live in this package only.
type State[T Task] interface {
	Kind() Kind
	OnOpenIca(ev IcaOpened, env Env) (Transition[T], error)
	OnResponse(ev Ack, env Env) (Transition[T], error)
	OnError(ev ErrorAck, env Env) (Transition[T], error)
	OnTimeout(ev Timeout, env Env) (Transition[T], error)
	Reply(ev Reply, env Env) (Transition[T], error)
	Heal(env Env) (Transition[T], error)
	OnTimeAlarm(env Env) (Transition[T], error)
	// Progress projects the state for status queries. due is the expected duration
	// of a step that has no deadline of its own.
	Progress(now time.Time, due time.Duration) Progress
	sealed()
}

// Transition is the outcome of a handler: either the next state or the final result,
// plus the messages to emit.
type Transition[T Task] struct {
	Next     State[T]
	Result   *Result[T]
	Messages platform.Batch
}

// Finished reports whether the saga completed
func (t Transition[T]) Finished() bool {
	return t.Result != nil
}

func continueWith[T Task](next State[T], msgs platform.Batch) Transition[T] {
	return Transition[T]{Next: next, Messages: msgs}
}

func finish[T Task](res Result[T], msgs platform.Batch) Transition[T] {
	return Transition[T]{Result: &res, Messages: msgs}
}

// unsupported rejects every callback. Variants embed it and override what they accept.
type unsupported[T Task] struct{}

func (unsupported[T]) OnOpenIca(IcaOpened, Env) (Transition[T], error) {
	return Transition[T]{}, ErrUnsupportedOperation
}

func (unsupported[T]) OnResponse(Ack, Env) (Transition[T], error) {
	return Transition[T]{}, ErrUnsupportedOperation
}

func (unsupported[T]) OnError(ErrorAck, Env) (Transition[T], error) {
	return Transition[T]{}, ErrUnsupportedOperation
}

func (unsupported[T]) OnTimeout(Timeout, Env) (Transition[T], error) {
	return Transition[T]{}, ErrUnsupportedOperation
}

func (unsupported[T]) Reply(Reply, Env) (Transition[T], error) {
	return Transition[T]{}, ErrUnsupportedOperation
}

func (unsupported[T]) Heal(Env) (Transition[T], error) {
	return Transition[T]{}, ErrUnsupportedOperation
}

func (unsupported[T]) OnTimeAlarm(Env) (Transition[T], error) {
	return Transition[T]{}, ErrUnsupportedOperation
}

func (unsupported[T]) sealed() {}

// stage is a pipeline step that submits one message and advances on its acknowledgement
type stage[T Task] interface {
	State[T]
	// prepare builds the outgoing message. A nil message means there is nothing to
	// send and skip yields the successor. The returned stage carries any bookkeeping
	// recorded while preparing.
	prepare(env Env) (stage[T], platform.Msg, error)
	skip(env Env) (Transition[T], error)
	advance(payload []byte, env Env) (Transition[T], error)
	account() Account
	withAccount(acc Account) stage[T]
	// overIca reports whether the message travels over the ICA channel
	overIca() bool
}

// submit sends the stage's message and waits for its acknowledgement, or moves on
// synchronously when the stage has nothing to send.
func submit[T Task](s stage[T], attempt int, env Env) (Transition[T], error) {
	prepared, msg, err := s.prepare(env)
	if err != nil {
		return Transition[T]{}, err
	}
	if msg == nil {
		return prepared.skip(env)
	}

	d := ResponseDelivery[T]{
		Stage:     prepared,
		TxID:      env.IDs.NextTxID(),
		ForwardTo: env.Forward,
		Attempt:   attempt,
		Deadline:  env.Now.Add(env.Policy.StepTimeout),
	}
	var msgs platform.Batch
	msgs.Track(d.TxID, d.ForwardTo, msg)
	msgs.Schedule(d.Deadline)

	env.Log.Info().
		Str("stage", string(s.Kind())).
		Str("tx_id", string(d.TxID)).
		Int("attempt", attempt).
		Msg("Submitted")
	return continueWith[T](d, msgs), nil
}

// enter submits s. A submission that cannot be built parks the stage behind a retry
// alarm instead of failing the call.
func enter[T Task](s stage[T], env Env) (Transition[T], error) {
	t, err := submit(s, 0, env)
	if err == nil {
		return t, nil
	}
	return park(s, err, env), nil
}

func park[T Task](s stage[T], cause error, env Env) Transition[T] {
	retryAt := env.Now.Add(env.Policy.RetryDelay)
	env.Log.Warn().
		Err(cause).
		Str("stage", string(s.Kind())).
		Time("retry_at", retryAt).
		Msg("Submission failed, parked until next alarm")

	var msgs platform.Batch
	msgs.Schedule(retryAt)
	return continueWith[T](s, msgs)
}

// Start begins a saga for task. Without an account record the saga first opens the
// interchain account.
func Start[T Task](task T, account *Account, env Env) (Transition[T], error) {
	if err := env.validate(); err != nil {
		return Transition[T]{}, err
	}
	if err := translatable(task, env.Denoms); err != nil {
		return Transition[T]{}, err
	}
	if account == nil {
		return connect(task, env)
	}
	return enter[T](TransferOut[T]{Task: task, Account: *account}, env)
}

// translatable checks that every asset of task is known on the dex
func translatable(task Task, denoms DenomTranslator) error {
	local := []string{task.OutDenom()}
	for _, c := range task.CoinsToSwap() {
		if !c.IsZero() {
			local = append(local, c.Denom)
		}
	}
	var errs []error
	for _, d := range local {
		if _, err := denoms.DexDenom(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
