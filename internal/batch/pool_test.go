package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"notionx/pkg/logger"
)

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	var calls int32
	process := func(ctx context.Context, url string) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return "saved " + url, nil
	}

	pool := NewWorkerPool(context.Background(), 3, process, logger.NewNopLogger())
	pool.Start()

	go func() {
		for i := 0; i < 10; i++ {
			if err := pool.Submit(Job{URL: fmt.Sprintf("https://x.com/a/status/%d", i), Index: i}); err != nil {
				t.Errorf("Submit failed: %v", err)
			}
		}
		pool.Stop()
	}()

	count := 0
	for r := range pool.Results() {
		if r.Error != nil {
			t.Errorf("Unexpected error for %s: %v", r.Job.URL, r.Error)
		}
		if r.Value != "saved "+r.Job.URL {
			t.Errorf("Unexpected value %q", r.Value)
		}
		count++
	}

	if count != 10 {
		t.Errorf("Expected 10 results, got %d", count)
	}
	if atomic.LoadInt32(&calls) != 10 {
		t.Errorf("Expected 10 calls, got %d", calls)
	}
}

func TestRunPreservesOrder(t *testing.T) {
	urls := []string{"u0", "u1", "u2", "u3", "u4"}
	process := func(ctx context.Context, url string) (int, error) {
		// later URLs finish first
		time.Sleep(time.Duration(len(urls)-int(url[1]-'0')) * 3 * time.Millisecond)
		if url == "u2" {
			return 0, errors.New("boom")
		}
		return int(url[1] - '0'), nil
	}

	var seen int32
	results := Run(context.Background(), urls, 4, process, func(Result[int]) {
		atomic.AddInt32(&seen, 1)
	}, logger.NewNopLogger())

	if len(results) != len(urls) {
		t.Fatalf("Expected %d results, got %d", len(urls), len(results))
	}
	for i, r := range results {
		if r.Job.URL != urls[i] {
			t.Errorf("Result %d has URL %s", i, r.Job.URL)
		}
		if i == 2 {
			if r.Error == nil {
				t.Error("Expected error for u2")
			}
			continue
		}
		if r.Error != nil || r.Value != i {
			t.Errorf("Unexpected result %d: %+v", i, r)
		}
	}
	if seen != int32(len(urls)) {
		t.Errorf("Expected callback for every result, got %d", seen)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	process := func(ctx context.Context, url string) (struct{}, error) {
		return struct{}{}, nil
	}

	results := Run(ctx, []string{"a", "b", "c", "d", "e", "f", "g"}, 1, process, nil, logger.NewNopLogger())
	for _, r := range results {
		if r.Error == nil {
			t.Errorf("Expected cancellation error for %s", r.Job.URL)
		}
	}
}

func TestWorkerPoolCounters(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	process := func(ctx context.Context, url string) (int, error) {
		started <- struct{}{}
		<-release
		return 1, nil
	}

	pool := NewWorkerPool(context.Background(), 2, process, logger.NewNopLogger())
	pool.Start()
	for i := 0; i < 3; i++ {
		if err := pool.Submit(Job{URL: fmt.Sprint(i), Index: i}); err != nil {
			t.Fatal(err)
		}
	}
	<-started
	<-started

	if got := pool.GetActiveWorkers(); got != 2 {
		t.Errorf("Expected 2 active workers, got %d", got)
	}
	if got := pool.GetQueueSize(); got != 1 {
		t.Errorf("Expected 1 queued job, got %d", got)
	}

	close(release)
	go pool.Stop()
	n := 0
	for range pool.Results() {
		n++
	}
	if n != 3 {
		t.Errorf("Expected 3 results, got %d", n)
	}
}
