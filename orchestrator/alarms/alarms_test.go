package alarms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zeebo/assert"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  int
	done  chan struct{}
	want  int
}

func (r *recorder) deliver(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
	if len(r.calls) == r.want {
		close(r.done)
	}
	if r.fail > 0 {
		r.fail--
		return errors.New("store unavailable")
	}
	return nil
}

func TestSchedulerOrdersAndDeduplicates(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(func(context.Context, string) error { return nil }, DefaultConfig())
	s.clock = func() time.Time { return base.Add(time.Minute) }

	s.Schedule("late", base.Add(time.Hour))
	s.Schedule("b", base.Add(30*time.Second))
	s.Schedule("a", base.Add(10*time.Second))
	s.Schedule("a", base.Add(10*time.Second))
	assert.Equal(t, s.Pending(), 3)

	due := s.due()
	assert.Equal(t, len(due), 2)
	assert.Equal(t, due[0].id, "a")
	assert.Equal(t, due[1].id, "b")
	assert.Equal(t, s.Pending(), 1)
	assert.Equal(t, s.untilNext(), 59*time.Minute)
}

func TestSchedulerRunDelivers(t *testing.T) {
	r := &recorder{done: make(chan struct{}), want: 2}
	s := New(r.deliver, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	s.Schedule("lease-1", time.Now())
	s.Schedule("lease-2", time.Now().Add(20*time.Millisecond))

	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("alarms not delivered")
	}
	cancel()
	assert.True(t, errors.Is(<-errCh, context.Canceled))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, r.calls[0], "lease-1")
	assert.Equal(t, r.calls[1], "lease-2")
}

func TestSchedulerRetriesFailedDelivery(t *testing.T) {
	r := &recorder{fail: 1}
	s := New(r.deliver, Config{MaxAttempts: 2, InitialInterval: time.Second, MaxInterval: time.Second})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	s.fire(context.Background(), alarm{id: "lease-1", at: now})
	assert.Equal(t, s.Pending(), 1)
	assert.True(t, s.pending[0].at.After(now))
	assert.Equal(t, s.pending[0].attempt, 1)

	// the second failure is the last attempt
	now = now.Add(time.Minute)
	due := s.due()
	assert.Equal(t, len(due), 1)
	r.fail = 1
	s.fire(context.Background(), due[0])
	assert.Equal(t, s.Pending(), 0)
	assert.Equal(t, len(r.calls), 2)
}
