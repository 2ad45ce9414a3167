// Package batch fans a list of URLs out to a fixed number of workers.
package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"notionx/pkg/logger"
)

// Job is a single URL to process
type Job struct {
	URL   string
	Index int
}

// Result is the outcome of a job
type Result[R any] struct {
	Job      Job
	Value    R
	Error    error
	Duration time.Duration
}

// ProcessFunc handles one URL
type ProcessFunc[R any] func(ctx context.Context, url string) (R, error)

// WorkerPool runs ProcessFunc on submitted jobs concurrently
type WorkerPool[R any] struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result[R]
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	process     ProcessFunc[R]
	active      atomic.Int32
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx. Cancelling ctx stops the workers
// after their current job.
func NewWorkerPool[R any](ctx context.Context, numWorkers int, process ProcessFunc[R], log logger.Logger) *WorkerPool[R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool[R]{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result[R], numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		process:     process,
		logger:      logger.OrGlobal(log),
	}
}

// Start launches the workers
func (wp *WorkerPool[R]) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers and closes Results
func (wp *WorkerPool[R]) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job
func (wp *WorkerPool[R]) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel
func (wp *WorkerPool[R]) Results() <-chan Result[R] {
	return wp.resultQueue
}

func (wp *WorkerPool[R]) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result Result[R]
		if err := wp.ctx.Err(); err != nil {
			// drain remaining jobs so Run still sees one result per URL
			result = Result[R]{Job: job, Error: err}
		} else {
			result = wp.processJob(job, id)
		}

		// results are buffered by the consumer, never dropped
		wp.resultQueue <- result
	}
}

func (wp *WorkerPool[R]) processJob(job Job, workerID int) Result[R] {
	wp.active.Add(1)
	defer wp.active.Add(-1)

	start := time.Now()
	value, err := wp.process(wp.ctx, job.URL)
	result := Result[R]{Job: job, Value: value, Error: err, Duration: time.Since(start)}

	fields := map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
		"duration":  result.Duration,
	}
	if err != nil {
		fields["error"] = err.Error()
		wp.logger.WarnWithFields("Job failed", fields)
	} else {
		wp.logger.DebugWithFields("Job completed", fields)
	}
	return result
}

// GetQueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool[R]) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers currently processing a job
func (wp *WorkerPool[R]) GetActiveWorkers() int {
	return int(wp.active.Load())
}

// Run processes urls with numWorkers workers and returns the results in input
// order. onResult, when set, is called as each result arrives.
func Run[R any](ctx context.Context, urls []string, numWorkers int, process ProcessFunc[R], onResult func(Result[R]), log logger.Logger) []Result[R] {
	pool := NewWorkerPool(ctx, numWorkers, process, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, u := range urls {
			if err := pool.Submit(Job{URL: u, Index: i}); err != nil {
				// the pool is cancelled; report the rest without queueing them
				for j := i; j < len(urls); j++ {
					pool.resultQueue <- Result[R]{Job: Job{URL: urls[j], Index: j}, Error: err}
				}
				return
			}
		}
	}()

	results := make([]Result[R], len(urls))
	for r := range pool.Results() {
		results[r.Job.Index] = r
		if onResult != nil {
			onResult(r)
		}
	}
	return results
}
