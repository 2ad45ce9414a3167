package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker counts the outcomes of a batch of saves
type StatusTracker struct {
	mu        sync.Mutex
	Total     int
	Saved     int
	Skipped   int
	Failed    int
	StartTime time.Time
}

// NewStatusTracker creates a tracker for total URLs
func NewStatusTracker(total int) *StatusTracker {
	return &StatusTracker{Total: total, StartTime: time.Now()}
}

// RecordSaved counts a URL delivered to at least one sink
func (st *StatusTracker) RecordSaved() { st.add(&st.Saved) }

// RecordSkipped counts a URL that was already saved everywhere
func (st *StatusTracker) RecordSkipped() { st.add(&st.Skipped) }

// RecordFailed counts a URL that could not be saved
func (st *StatusTracker) RecordFailed() { st.add(&st.Failed) }

func (st *StatusTracker) add(counter *int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	*counter++
}

// Done returns the number of finished URLs
func (st *StatusTracker) Done() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Saved + st.Skipped + st.Failed
}

// GetProgress returns a formatted progress bar
func (st *StatusTracker) GetProgress() string {
	const width = 20
	done := st.Done()
	filled := 0
	if st.Total > 0 {
		filled = min(width, done*width/st.Total)
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, done, st.Total)
}

// PrintProgress prints the progress bar on one line
func (st *StatusTracker) PrintProgress() {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(out, "\r%s %s", Cyan("Saving"), st.GetProgress())
}

// Summary describes the finished batch
func (st *StatusTracker) Summary() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return fmt.Sprintf("%d saved, %d skipped, %d failed in %s",
		st.Saved, st.Skipped, st.Failed, time.Since(st.StartTime).Round(time.Second))
}
