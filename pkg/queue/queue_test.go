package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "notionx/pkg/errors"
	"notionx/pkg/logger"
)

// recorder logs dispatch labels and start times in order
type recorder struct {
	mu     sync.Mutex
	labels []string
	starts []time.Time
}

func (r *recorder) record(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.labels = append(r.labels, label)
	r.starts = append(r.starts, time.Now())
}

func (r *recorder) snapshot() ([]string, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.labels...), append([]time.Time(nil), r.starts...)
}

func fastQueue(cfg Config) *Queue {
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 200
	}
	if cfg.DefaultRetryAfter == 0 {
		cfg.DefaultRetryAfter = 20 * time.Millisecond
	}
	return New(cfg, logger.NewNopLogger())
}

func throttled(after time.Duration) error {
	return &errs.Rejection{Kind: errs.KindRateLimited, Code: 429, RetryAfter: after}
}

func TestFIFOWithRetry(t *testing.T) {
	q := fastQueue(Config{})
	defer q.Close()

	rec := &recorder{}
	ctx := context.Background()
	attemptsA := 0

	a := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		attemptsA++
		rec.record("A" + string(rune('0'+attemptsA)))
		if attemptsA == 1 {
			return nil, throttled(60 * time.Millisecond)
		}
		return "a", nil
	})
	b := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		rec.record("B")
		return "b", nil
	})
	c := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		rec.record("C")
		return "c", nil
	})

	for want, h := range map[string]*Handle{"a": a, "b": b, "c": c} {
		v, err := h.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	labels, starts := rec.snapshot()
	assert.Equal(t, []string{"A1", "A2", "B", "C"}, labels)
	// B waits for the queue-wide backoff, not just A
	assert.GreaterOrEqual(t, starts[2].Sub(starts[0]), 60*time.Millisecond)

	stats := q.Stats()
	assert.Equal(t, int64(4), stats.Dispatched)
	assert.Equal(t, int64(3), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Throttled)
}

func TestDefaultRetryAfterIsUsedWhenMissing(t *testing.T) {
	q := fastQueue(Config{DefaultRetryAfter: 80 * time.Millisecond})
	defer q.Close()

	rec := &recorder{}
	calls := 0
	_, err := q.Submit(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		rec.record("A")
		if calls == 1 {
			return nil, throttled(0)
		}
		return nil, nil
	})
	require.NoError(t, err)

	_, starts := rec.snapshot()
	require.Len(t, starts, 2)
	assert.GreaterOrEqual(t, starts[1].Sub(starts[0]), 80*time.Millisecond)
}

func TestFatalRejectionDoesNotBlockQueue(t *testing.T) {
	q := fastQueue(Config{})
	defer q.Close()

	ctx := context.Background()
	denied := &errs.Rejection{Kind: errs.KindUnauthorized, Code: 401, Message: "API token is invalid."}

	a := q.Enqueue(ctx, func(ctx context.Context) (any, error) { return nil, denied })
	b := q.Enqueue(ctx, func(ctx context.Context) (any, error) { return "ok", nil })

	_, err := a.Wait(ctx)
	assert.Same(t, denied, err)

	v, err := b.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int64(1), q.Stats().Failed)
}

func TestThrottleRetryCap(t *testing.T) {
	q := fastQueue(Config{MaxThrottleRetries: 2})
	defer q.Close()

	calls := 0
	_, err := q.Submit(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, throttled(time.Millisecond)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrThrottleExhausted)
	assert.Equal(t, errs.KindRateLimited, errs.KindOf(err))
	assert.Equal(t, 3, calls)
}

func TestUnlimitedThrottleRetries(t *testing.T) {
	q := fastQueue(Config{MaxThrottleRetries: 0})
	defer q.Close()

	calls := 0
	_, err := q.Submit(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		if calls < 30 {
			return nil, throttled(time.Millisecond)
		}
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 30, calls)
}

func TestRateCeiling(t *testing.T) {
	if testing.Short() {
		t.Skip("takes about three seconds")
	}

	q := New(Config{RequestsPerSecond: 3}, logger.NewNopLogger())
	defer q.Close()

	rec := &recorder{}
	ctx := context.Background()
	handles := make([]*Handle, 10)
	for i := range handles {
		handles[i] = q.Enqueue(ctx, func(ctx context.Context) (any, error) {
			rec.record("x")
			return nil, nil
		})
	}
	for _, h := range handles {
		_, err := h.Wait(ctx)
		require.NoError(t, err)
	}

	_, starts := rec.snapshot()
	require.Len(t, starts, 10)
	for i := 0; i+3 < len(starts); i++ {
		// a fourth start inside the same second would break the ceiling
		assert.GreaterOrEqual(t, starts[i+3].Sub(starts[i]), 990*time.Millisecond, "window starting at %d", i)
	}
}

func TestAbandonedRequestIsSkipped(t *testing.T) {
	q := fastQueue(Config{})
	defer q.Close()

	ctx := context.Background()
	calls := 0
	a := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, throttled(50 * time.Millisecond)
		}
		return nil, nil
	})

	bctx, cancel := context.WithCancel(ctx)
	ran := false
	b := q.Enqueue(bctx, func(ctx context.Context) (any, error) {
		ran = true
		return nil, nil
	})
	cancel()

	_, err := a.Wait(ctx)
	require.NoError(t, err)

	_, err = b.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestCloseRejectsQueuedRequests(t *testing.T) {
	q := fastQueue(Config{})
	ctx := context.Background()

	started := make(chan struct{})
	var once sync.Once
	a := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		once.Do(func() { close(started) })
		return nil, throttled(10 * time.Second)
	})
	b := q.Enqueue(ctx, func(ctx context.Context) (any, error) { return nil, nil })

	<-started
	require.Eventually(t, func() bool { return q.Len() == 2 }, time.Second, 5*time.Millisecond)

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not abort the backoff")
	}

	_, err := a.Wait(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Wait(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = q.Submit(ctx, func(ctx context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StateIdle, q.State())
}

func TestStateReturnsToIdle(t *testing.T) {
	q := fastQueue(Config{})
	defer q.Close()

	assert.Equal(t, StateIdle, q.State())

	release := make(chan struct{})
	h := q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	assert.Equal(t, StateDraining, q.State())

	close(release)
	_, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return q.State() == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestSubmitContextEndsWait(t *testing.T) {
	q := fastQueue(Config{})
	defer q.Close()

	release := make(chan struct{})
	defer close(release)
	q.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Submit(ctx, func(ctx context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoTyped(t *testing.T) {
	q := fastQueue(Config{})
	defer q.Close()

	id, err := Do(context.Background(), q, func(ctx context.Context) (string, error) {
		return "page-123", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "page-123", id)

	_, err = Do(context.Background(), q, func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}
