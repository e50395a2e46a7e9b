// Package alarms delivers the time alarms requested by sagas. Alarms live in memory,
// the engine resumes pending sagas after a restart.
package alarms

import (
	"container/heap"
	"context"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "alarms").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l
}

// DeliverFunc wakes the saga id up
type DeliverFunc func(ctx context.Context, id string) error

// Config controls redelivery of alarms whose delivery failed
type Config struct {
	// MaxAttempts is the number of deliveries of one alarm, zero means one
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the redelivery defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
	}
}

type alarm struct {
	id      string
	at      time.Time
	attempt int
}

type alarmHeap []alarm

func (h alarmHeap) Len() int           { return len(h) }
func (h alarmHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h alarmHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *alarmHeap) Push(x any)        { *h = append(*h, x.(alarm)) }
func (h *alarmHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	*h = old[:n-1]
	return a
}

type key struct {
	id string
	at int64
}

// Scheduler fires alarms at their instant. One alarm per id and instant is kept.
type Scheduler struct {
	deliver DeliverFunc
	config  Config
	clock   func() time.Time

	mu      sync.Mutex
	pending alarmHeap
	known   map[key]struct{}
	wake    chan struct{}
}

// New creates a scheduler delivering through deliver
func New(deliver DeliverFunc, config Config) *Scheduler {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Scheduler{
		deliver: deliver,
		config:  config,
		clock:   time.Now,
		known:   make(map[key]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Schedule implements engine.Scheduler
func (s *Scheduler) Schedule(id string, at time.Time) {
	s.push(alarm{id: id, at: at})
}

func (s *Scheduler) push(a alarm) {
	s.mu.Lock()
	k := key{a.id, a.at.UnixNano()}
	if _, ok := s.known[k]; ok {
		s.mu.Unlock()
		return
	}
	s.known[k] = struct{}{}
	heap.Push(&s.pending, a)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of alarms not yet delivered
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Run delivers due alarms until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Msg("Alarm scheduler started")
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		for _, a := range s.due() {
			s.fire(ctx, a)
		}

		timer.Reset(s.untilNext())
		select {
		case <-ctx.Done():
			log.Info().Int("pending", s.Pending()).Msg("Alarm scheduler stopped")
			return ctx.Err()
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) due() []alarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var out []alarm
	for s.pending.Len() > 0 && !s.pending[0].at.After(now) {
		a := heap.Pop(&s.pending).(alarm)
		delete(s.known, key{a.id, a.at.UnixNano()})
		out = append(out, a)
	}
	return out
}

func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Len() == 0 {
		return time.Hour
	}
	if d := s.pending[0].at.Sub(s.clock()); d > 0 {
		return d
	}
	return 0
}

func (s *Scheduler) fire(ctx context.Context, a alarm) {
	err := s.deliver(ctx, a.id)
	if err == nil {
		log.Debug().Str("saga", a.id).Time("at", a.at).Msg("Alarm delivered")
		return
	}

	a.attempt++
	if a.attempt >= s.config.MaxAttempts {
		log.Error().Err(err).Str("saga", a.id).Int("attempts", a.attempt).Msg("Alarm dropped")
		return
	}
	a.at = s.clock().Add(s.retryDelay(a.attempt))
	log.Warn().Err(err).Str("saga", a.id).Time("retry_at", a.at).Msg("Alarm delivery failed, retrying")
	s.push(a)
}

func (s *Scheduler) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialInterval
	b.MaxInterval = s.config.MaxInterval
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
