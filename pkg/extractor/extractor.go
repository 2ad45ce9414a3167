// Package extractor turns an open page into a content bundle.
//
// Extractors are tried in registration order and the first one whose
// CanHandle accepts the page URL wins. The thread extractor walks a status
// page with thread.Walker; the page extractor is the fallback for anything
// else and keeps the title and visible text.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"notionx/pkg/models"
	"notionx/pkg/thread"
)

var (
	// ErrNoContent is returned when a page yields nothing worth saving
	ErrNoContent = errors.New("no content on page")
	// ErrUnsupported is returned when no registered extractor handles a URL
	ErrUnsupported = errors.New("no extractor for url")
)

// Page is an open document that can be walked and read
type Page interface {
	thread.ItemLocator
	thread.ScrollDriver

	URL() string
	Title(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	// Anchor returns the item a status URL points at, nil when the page has no items
	Anchor(ctx context.Context, statusURL string) (thread.RenderedItem, error)
	StatsOf(ctx context.Context, item thread.RenderedItem) models.Stats
	CoverOf(ctx context.Context, item thread.RenderedItem) string
}

// Extractor produces content from one kind of page
type Extractor interface {
	Name() string
	CanHandle(u *url.URL) bool
	Extract(ctx context.Context, page Page) (*models.Content, error)
}

// Registry selects an extractor by URL
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry trying extractors in the given order
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Register appends an extractor
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// For returns the first extractor that handles rawURL
func (r *Registry) For(rawURL string) (Extractor, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	for _, e := range r.extractors {
		if e.CanHandle(u) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, rawURL)
}

// Names lists the registered extractors in order
func (r *Registry) Names() []string {
	names := make([]string, len(r.extractors))
	for i, e := range r.extractors {
		names[i] = e.Name()
	}
	return names
}
