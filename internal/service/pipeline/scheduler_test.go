package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("06:30")
	require.NoError(t, err)
	assert.Equal(t, 6, h)
	assert.Equal(t, 30, m)

	_, _, err = ParseClock("6am")
	assert.Error(t, err)
}

func TestNextRun(t *testing.T) {
	ist := time.FixedZone("IST", 19800)

	before := time.Date(2026, 3, 2, 5, 59, 0, 0, ist)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, ist), NextRun(before, 6, 0, ist))

	exactly := time.Date(2026, 3, 2, 6, 0, 0, 0, ist)
	assert.Equal(t, time.Date(2026, 3, 3, 6, 0, 0, 0, ist), NextRun(exactly, 6, 0, ist))

	// 01:00 UTC - это 06:30 IST, запуск уже прошел
	utc := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	assert.True(t, NextRun(utc, 6, 0, ist).Equal(time.Date(2026, 3, 3, 6, 0, 0, 0, ist)))
}

func TestNewSchedulerRejectsBadTime(t *testing.T) {
	_, err := NewScheduler(nil, "25:00", time.UTC)
	assert.Error(t, err)
}

// blockingRunner держит запуск, пока тест его не отпустит
type blockingRunner struct {
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	runs   int
	ctxErr error
}

func (r *blockingRunner) Run(ctx context.Context, opts RunOptions) *Result {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	r.started <- struct{}{}
	<-r.release

	r.mu.Lock()
	r.ctxErr = ctx.Err()
	r.mu.Unlock()
	return &Result{RunID: "scheduled", Status: StatusSuccess}
}

func TestSchedulerFinishesRunningPipelineOnStop(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := NewScheduler(runner, "06:00", time.UTC)
	require.NoError(t, err)
	s.until = func(time.Time) time.Duration { return 0 }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not start")
	}

	cancel()
	select {
	case <-done:
		t.Fatal("scheduler returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after the run finished")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 1, runner.runs)
	assert.NoError(t, runner.ctxErr)
}

func TestSchedulerStopsWhileWaiting(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := NewScheduler(runner, "06:00", time.UTC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Start(ctx)
	assert.Equal(t, 0, runner.runs)
}

func TestSchedulerRunUsesRunContext(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := NewScheduler(runner, "06:00", time.UTC)
	require.NoError(t, err)
	s.until = func(time.Time) time.Duration { return 0 }

	runCtx, cancelRuns := context.WithCancel(context.Background())
	s.WithRunContext(runCtx)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()

	<-runner.started
	cancel()
	cancelRuns()
	close(runner.release)
	<-done

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.ErrorIs(t, runner.ctxErr, context.Canceled)
}
