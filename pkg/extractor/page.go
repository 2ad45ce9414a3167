package extractor

import (
	"context"
	"net/url"
	"strings"
	"time"

	"notionx/pkg/models"
)

// PageExtractor keeps the title and visible text of any page
type PageExtractor struct{}

// Name implements Extractor
func (PageExtractor) Name() string { return "page" }

// CanHandle implements Extractor
func (PageExtractor) CanHandle(*url.URL) bool { return true }

// Extract implements Extractor
func (e PageExtractor) Extract(ctx context.Context, page Page) (*models.Content, error) {
	title, err := page.Title(ctx)
	if err != nil {
		return nil, err
	}
	text, err := page.Text(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}
	if title == "" {
		title = page.URL()
	}

	return &models.Content{
		URL:         page.URL(),
		Title:       title,
		FirstItem:   title,
		Body:        text,
		Type:        models.TypePage,
		Source:      e.Name(),
		ExtractedAt: time.Now(),
	}, nil
}
