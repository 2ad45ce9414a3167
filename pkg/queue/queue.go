// Package queue serializes requests to a rate-limited remote API.
//
// One drain goroutine dispatches requests in FIFO order with at most one in
// flight. Request starts are spaced by at least 1/RequestsPerSecond. When a
// request is rejected as rate limited it goes back to the head of the queue
// and the whole queue waits for the retry-after period before dispatching
// anything else. Any other failure resolves that request only.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	errs "notionx/pkg/errors"
	"notionx/pkg/logger"
	"notionx/pkg/ratelimit"
	"notionx/pkg/retry"
)

// ErrClosed is returned for requests that were still queued when the queue closed
var ErrClosed = errors.New("queue closed")

// Task is one unit of work. It may be invoked more than once if it is rate limited.
type Task func(ctx context.Context) (any, error)

// Config controls pacing and throttle handling
type Config struct {
	RequestsPerSecond float64
	// DefaultRetryAfter applies when a rate-limit rejection carries no retry-after
	DefaultRetryAfter time.Duration
	// MaxThrottleRetries turns the next rate-limit rejection into a fatal
	// ErrThrottleExhausted once exceeded, 0 means retry forever
	MaxThrottleRetries int
}

// DefaultConfig returns 3 requests per second with a 5 second fallback backoff
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond:  3,
		DefaultRetryAfter:  5 * time.Second,
		MaxThrottleRetries: 20,
	}
}

// State of the drain loop
type State int

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	if s == StateDraining {
		return "draining"
	}
	return "idle"
}

// Stats counts dispatches since the queue was created
type Stats struct {
	Dispatched int64
	Succeeded  int64
	Failed     int64
	Throttled  int64
}

type request struct {
	id         string
	ctx        context.Context
	task       Task
	enqueuedAt time.Time
	attempts   int
	throttled  int
	handle     *Handle
}

// Handle resolves when its request succeeds or fails for good
type Handle struct {
	id    string
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// ID returns the request id
func (h *Handle) ID() string { return h.id }

// Done is closed once the request is resolved
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the request resolves or ctx ends. A request abandoned by
// its waiter stays queued and is dropped before dispatch only if the context
// it was enqueued with has ended.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) resolve(value any, err error) {
	h.once.Do(func() {
		h.value, h.err = value, err
		close(h.done)
	})
}

// Queue is a FIFO of tasks drained by a single goroutine
type Queue struct {
	cfg    Config
	pacer  ratelimit.Limiter
	logger logger.Logger

	mu       sync.Mutex
	pending  []*request
	draining bool
	closed   bool

	stop   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dispatched atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	throttled  atomic.Int64
}

// New creates an idle queue
func New(cfg Config, log logger.Logger) *Queue {
	def := DefaultConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = def.DefaultRetryAfter
	}

	stop, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:    cfg,
		pacer:  ratelimit.NewPacer(cfg.RequestsPerSecond),
		logger: logger.OrGlobal(log).WithField("component", "queue"),
		stop:   stop,
		cancel: cancel,
	}
}

// Enqueue appends task to the queue and starts the drain loop if it is idle
func (q *Queue) Enqueue(ctx context.Context, task Task) *Handle {
	req := &request{
		id:         uuid.NewString(),
		ctx:        ctx,
		task:       task,
		enqueuedAt: time.Now(),
	}
	req.handle = &Handle{id: req.id, done: make(chan struct{})}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		req.handle.resolve(nil, ErrClosed)
		return req.handle
	}

	q.pending = append(q.pending, req)
	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		go q.drain()
	}
	return req.handle
}

// Submit enqueues task and waits for its outcome
func (q *Queue) Submit(ctx context.Context, task Task) (any, error) {
	return q.Enqueue(ctx, task).Wait(ctx)
}

// Do submits a typed task
func Do[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok && v != nil {
		return zero, fmt.Errorf("queue: unexpected result type %T", v)
	}
	return out, nil
}

// State reports whether the drain loop is running
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		return StateDraining
	}
	return StateIdle
}

// Len returns the number of requests waiting for dispatch
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Stats returns dispatch counters
func (q *Queue) Stats() Stats {
	return Stats{
		Dispatched: q.dispatched.Load(),
		Succeeded:  q.succeeded.Load(),
		Failed:     q.failed.Load(),
		Throttled:  q.throttled.Load(),
	}
}

// Close rejects every queued request with ErrClosed, aborts a pending
// backoff and waits for an in-flight task to return.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	q.cancel()
	for _, req := range pending {
		req.handle.resolve(nil, ErrClosed)
	}
	q.wg.Wait()
}

// next pops the head request, or marks the loop idle when there is none
func (q *Queue) next() (*request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.pending) == 0 {
		q.draining = false
		return nil, false
	}
	req := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return req, true
}

// requeue puts req back at the head
func (q *Queue) requeue(req *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.pending = append([]*request{req}, q.pending...)
	return true
}

func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		req, ok := q.next()
		if !ok {
			return
		}

		if err := req.ctx.Err(); err != nil {
			q.logger.DebugWithFields("dropping abandoned request", map[string]interface{}{
				"request_id": req.id,
			})
			req.handle.resolve(nil, err)
			continue
		}

		if err := q.pacer.Wait(q.stop); err != nil {
			req.handle.resolve(nil, ErrClosed)
			continue
		}

		req.attempts++
		q.dispatched.Add(1)
		q.logger.DebugWithFields("dispatching request", map[string]interface{}{
			"request_id": req.id,
			"attempt":    req.attempts,
			"queued_for": time.Since(req.enqueuedAt),
		})

		value, err := req.task(ratelimit.WithLimiter(req.ctx, q.pacer))
		if err == nil {
			q.succeeded.Add(1)
			req.handle.resolve(value, nil)
			continue
		}

		directive := errs.DirectiveFor(err)
		if directive.Kind != errs.DirectiveRateLimited {
			q.failed.Add(1)
			req.handle.resolve(nil, err)
			continue
		}

		q.throttled.Add(1)
		req.throttled++
		if q.cfg.MaxThrottleRetries > 0 && req.throttled > q.cfg.MaxThrottleRetries {
			q.failed.Add(1)
			req.handle.resolve(nil, fmt.Errorf("%w after %d attempts: %w", errs.ErrThrottleExhausted, req.attempts, err))
			continue
		}

		wait := q.cfg.DefaultRetryAfter
		if directive.HasRetryAfter {
			wait = directive.RetryAfter
		}
		if !q.requeue(req) {
			req.handle.resolve(nil, ErrClosed)
			continue
		}
		logger.LogRateLimit(q.logger, req.id, wait, req.attempts)

		// the whole queue is suspended, not only this request
		if err := retry.Wait(q.stop, wait); err != nil {
			continue
		}
	}
}
