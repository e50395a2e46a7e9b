// Package engine drives persisted workflows: it loads the state of a saga, dispatches
// one host callback, persists the outcome and hands the requested wake-ups to a
// scheduler. Calls for the same saga id are serialised.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/store"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "engine").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l
}

// ErrAlreadyRunning rejects starting a saga in an occupied slot
var ErrAlreadyRunning = errors.New("saga already running")

// Workflow is a persisted state machine driven by host callbacks
type Workflow[S any] interface {
	Name() string
	// Handle applies ev. done reports that the workflow reached its terminal state.
	Handle(state S, ev dex.Event, env dex.Env) (next S, done bool, msgs platform.Batch, err error)
	// Idle reports a state that expects no host callback
	Idle(state S) bool
	Status(state S, now time.Time) any
	Marshal(state S) ([]byte, error)
	Unmarshal(data []byte) (S, error)
}

// Scheduler receives the wake-ups requested by a transition
type Scheduler interface {
	Schedule(id string, at time.Time)
}

// Engine runs one workflow type on top of a state store
type Engine[S any] struct {
	workflow  Workflow[S]
	store     store.StateStore
	env       dex.Env
	clock     func() time.Time
	scheduler Scheduler
	locks     *keyedMutex
	metrics   *metrics
	tracer    trace.Tracer
}

type Option[S any] func(*Engine[S])

// WithClock replaces time.Now
func WithClock[S any](clock func() time.Time) Option[S] {
	return func(e *Engine[S]) {
		e.clock = clock
	}
}

// WithScheduler sets where requested wake-ups go. Without one they are dropped.
func WithScheduler[S any](s Scheduler) Option[S] {
	return func(e *Engine[S]) {
		e.scheduler = s
	}
}

// WithRegisterer registers the engine metrics on reg instead of the default registry
func WithRegisterer[S any](reg prometheus.Registerer) Option[S] {
	return func(e *Engine[S]) {
		e.metrics = newMetrics(reg)
	}
}

// New creates an engine. env is the template of every handler environment, Now,
// Forward and Log are set per call.
func New[S any](wf Workflow[S], st store.StateStore, env dex.Env, opts ...Option[S]) *Engine[S] {
	e := &Engine[S]{
		workflow: wf,
		store:    st,
		env:      env,
		clock:    time.Now,
		locks:    newKeyedMutex(),
		tracer:   otel.Tracer("github.com/Cogwheel-Validator/spectra-lease/orchestrator/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = newMetrics(prometheus.DefaultRegisterer)
	}
	return e
}

// SetScheduler sets the scheduler after construction, the scheduler usually needs
// the engine to deliver its alarms
func (e *Engine[S]) SetScheduler(s Scheduler) {
	e.scheduler = s
}

func (e *Engine[S]) envFor(id string) dex.Env {
	env := e.env
	env.Now = e.clock().UTC()
	env.Forward = platform.ForwardTo(id)
	env.Log = e.env.Log.With().Str("workflow", e.workflow.Name()).Str("saga", id).Logger()
	return env
}

// Start creates the saga id with the state returned by begin
func (e *Engine[S]) Start(ctx context.Context, id string, begin func(env dex.Env) (S, platform.Batch, error)) (platform.Batch, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Start", trace.WithAttributes(
		attribute.String("workflow", e.workflow.Name()),
		attribute.String("saga.id", id),
	))
	defer span.End()

	unlock := e.locks.Lock(id)
	defer unlock()

	start := time.Now()
	msgs, err := e.start(ctx, id, begin)
	e.observe(span, "start", start, err)
	return msgs, err
}

func (e *Engine[S]) start(ctx context.Context, id string, begin func(env dex.Env) (S, platform.Batch, error)) (platform.Batch, error) {
	if _, err := e.store.Load(ctx, id); err == nil {
		return platform.Batch{}, fmt.Errorf("%s: %w", id, ErrAlreadyRunning)
	} else if !errors.Is(err, store.ErrNotFound) {
		return platform.Batch{}, fmt.Errorf("failed to load saga %s: %w", id, err)
	}

	state, msgs, err := begin(e.envFor(id))
	if err != nil {
		return platform.Batch{}, err
	}
	if err := e.persist(ctx, id, state, false); err != nil {
		return platform.Batch{}, err
	}
	e.schedule(id, msgs)

	log.Info().Str("workflow", e.workflow.Name()).Str("saga", id).Int("messages", msgs.Len()).Msg("Saga started")
	return msgs, nil
}

// Deliver dispatches a host callback to the saga id
func (e *Engine[S]) Deliver(ctx context.Context, id string, ev dex.Event) (platform.Batch, error) {
	return e.Act(ctx, id, dex.EventName(ev), func(state S, env dex.Env) (S, bool, platform.Batch, error) {
		return e.workflow.Handle(state, ev, env)
	})
}

// Wake delivers a fired alarm to the saga id. An alarm that outlived its saga is
// dropped without error.
func (e *Engine[S]) Wake(ctx context.Context, id string) error {
	_, err := e.Deliver(ctx, id, dex.TimeAlarm{})
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Str("workflow", e.workflow.Name()).Str("saga", id).Msg("Alarm for a completed saga")
		return nil
	}
	return err
}

// Act applies act to the stored state of id. A returned error leaves the stored
// state untouched, a done transition removes it.
func (e *Engine[S]) Act(ctx context.Context, id, name string, act func(state S, env dex.Env) (S, bool, platform.Batch, error)) (platform.Batch, error) {
	ctx, span := e.tracer.Start(ctx, "engine."+name, trace.WithAttributes(
		attribute.String("workflow", e.workflow.Name()),
		attribute.String("saga.id", id),
	))
	defer span.End()

	unlock := e.locks.Lock(id)
	defer unlock()

	start := time.Now()
	msgs, err := e.act(ctx, id, act)
	e.observe(span, name, start, err)
	return msgs, err
}

func (e *Engine[S]) act(ctx context.Context, id string, act func(state S, env dex.Env) (S, bool, platform.Batch, error)) (platform.Batch, error) {
	state, err := e.load(ctx, id)
	if err != nil {
		return platform.Batch{}, err
	}

	next, done, msgs, err := act(state, e.envFor(id))
	if err != nil {
		return platform.Batch{}, err
	}
	if err := e.persist(ctx, id, next, done); err != nil {
		return platform.Batch{}, err
	}
	if done {
		e.metrics.completed.WithLabelValues(e.workflow.Name()).Inc()
		log.Info().Str("workflow", e.workflow.Name()).Str("saga", id).Msg("Saga completed")
		return msgs, nil
	}
	e.schedule(id, msgs)
	return msgs, nil
}

// Status projects the stored state of id
func (e *Engine[S]) Status(ctx context.Context, id string) (any, error) {
	state, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.workflow.Status(state, e.clock().UTC()), nil
}

// Resume wakes every stored saga that waits on the host. Wake-ups scheduled before
// a restart are lost, an early alarm is harmless.
func (e *Engine[S]) Resume(ctx context.Context) (int, error) {
	ids, err := e.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sagas: %w", err)
	}

	resumed := 0
	for _, id := range ids {
		state, err := e.load(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("saga", id).Msg("Skipping unreadable saga")
			continue
		}
		if e.workflow.Idle(state) {
			continue
		}
		if _, err := e.Deliver(ctx, id, dex.TimeAlarm{}); err != nil {
			log.Warn().Err(err).Str("saga", id).Msg("Failed to resume saga")
			continue
		}
		resumed++
	}

	log.Info().Int("sagas", len(ids)).Int("resumed", resumed).Msg("Resumed sagas")
	return resumed, nil
}

func (e *Engine[S]) load(ctx context.Context, id string) (S, error) {
	var zero S
	data, err := e.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, fmt.Errorf("saga %s: %w", id, err)
		}
		return zero, fmt.Errorf("failed to load saga %s: %w", id, err)
	}
	state, err := e.workflow.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("failed to decode saga %s: %w", id, err)
	}
	return state, nil
}

func (e *Engine[S]) persist(ctx context.Context, id string, state S, done bool) error {
	if done {
		if err := e.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete saga %s: %w", id, err)
		}
		return nil
	}
	data, err := e.workflow.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode saga %s: %w", id, err)
	}
	if err := e.store.Save(ctx, id, data); err != nil {
		return fmt.Errorf("failed to save saga %s: %w", id, err)
	}
	return nil
}

func (e *Engine[S]) schedule(id string, msgs platform.Batch) {
	if e.scheduler == nil {
		return
	}
	for _, at := range msgs.Alarms() {
		e.scheduler.Schedule(id, at)
	}
}

func (e *Engine[S]) observe(span trace.Span, name string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug().Err(err).Str("workflow", e.workflow.Name()).Str("call", name).Msg("Call rejected")
	}
	e.metrics.calls.WithLabelValues(e.workflow.Name(), name, outcome).Inc()
	e.metrics.duration.WithLabelValues(e.workflow.Name(), name).Observe(time.Since(start).Seconds())
}
