package extractor

import (
	"context"
	"errors"
	"sync"

	"notionx/pkg/models"
)

var (
	// ErrSessionBusy is returned when an extraction is already running on the page
	ErrSessionBusy = errors.New("extraction already in progress")
	// ErrSessionClosed is returned after Close
	ErrSessionClosed = errors.New("extraction session closed")
)

// Session guards one page so that only one extraction walks it at a time.
// Create one per page and Close it when the page goes away.
type Session struct {
	page     Page
	registry *Registry

	mu     sync.Mutex
	busy   bool
	closed bool
}

// NewSession binds a page to a registry
func NewSession(page Page, registry *Registry) *Session {
	return &Session{page: page, registry: registry}
}

// Extract runs the extractor for the page URL. A second call while one is
// running fails with ErrSessionBusy instead of waiting.
func (s *Session) Extract(ctx context.Context) (*models.Content, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.busy:
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	ex, err := s.registry.For(s.page.URL())
	if err != nil {
		return nil, err
	}
	return ex.Extract(ctx, s.page)
}

// Close ends the session. Later calls to Extract fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
