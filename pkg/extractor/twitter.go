package extractor

import (
	"context"
	"errors"
	"net/url"
	"strings"

	errs "notionx/pkg/errors"
	"notionx/pkg/logger"
	"notionx/pkg/models"
	"notionx/pkg/selectors"
	"notionx/pkg/thread"
)

// ThreadExtractor collects same-author threads on twitter.com and x.com status pages
type ThreadExtractor struct {
	walker *thread.Walker
	logger logger.Logger
}

// NewThreadExtractor creates a thread extractor around walker
func NewThreadExtractor(walker *thread.Walker, log logger.Logger) *ThreadExtractor {
	return &ThreadExtractor{
		walker: walker,
		logger: logger.OrGlobal(log).WithField("extractor", "twitter"),
	}
}

// Name implements Extractor
func (e *ThreadExtractor) Name() string { return "twitter" }

// CanHandle implements Extractor
func (e *ThreadExtractor) CanHandle(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	isTwitter := host == "twitter.com" || host == "x.com" ||
		strings.HasSuffix(host, ".twitter.com") || strings.HasSuffix(host, ".x.com")
	return isTwitter && selectors.StatusID(u.Path) != ""
}

// ExtractThread walks the thread the page's status belongs to. It returns
// nil, nil when the page has no anchor item.
func (e *ThreadExtractor) ExtractThread(ctx context.Context, page Page) (*thread.Thread, error) {
	_, th, err := e.walk(ctx, page)
	return th, err
}

func (e *ThreadExtractor) walk(ctx context.Context, page Page) (thread.RenderedItem, *thread.Thread, error) {
	anchor, err := page.Anchor(ctx, page.URL())
	if err != nil || anchor == nil {
		return nil, nil, err
	}

	th, err := e.walker.Walk(ctx, anchor, page, page)
	if errors.Is(err, errs.ErrAnchorUnresolvable) {
		return anchor, nil, err
	}
	th.Classification = thread.Classify(th, page.HasMedia(ctx, anchor))
	return anchor, &th, err
}

// Extract implements Extractor. A walk that cannot resolve the anchor author
// degrades to the anchor alone.
func (e *ThreadExtractor) Extract(ctx context.Context, page Page) (*models.Content, error) {
	anchor, th, err := e.walk(ctx, page)
	switch {
	case errors.Is(err, errs.ErrAnchorUnresolvable):
		e.logger.WithError(err).Warn("Saving the anchor post only")
		th = &thread.Thread{Reason: thread.ReasonAuthorUnresolvable}
		if text := page.TextOf(ctx, anchor); strings.TrimSpace(text) != "" {
			th.Items = []thread.Item{{Text: text}}
		}
		th.Classification = thread.Classify(*th, page.HasMedia(ctx, anchor))
	case err != nil:
		return nil, err
	case anchor == nil:
		return nil, ErrNoContent
	}

	if th.Exhausted() {
		e.logger.WarnWithFields("Thread may be incomplete", map[string]interface{}{
			"reason": string(th.Reason),
			"items":  len(th.Items),
		})
	}

	hasMedia := th.Classification == thread.MediaOnly || page.HasMedia(ctx, anchor)
	content := models.NewThreadContent(page.URL(), th.Texts(), string(th.Classification))
	content.Author = th.AnchorAuthorID
	content.Source = e.Name()
	content.Reason = string(th.Reason)
	content.Stats = page.StatsOf(ctx, anchor)
	if hasMedia {
		content.Cover = page.CoverOf(ctx, anchor)
	}
	if content.Title == "" {
		content.Title, _ = page.Title(ctx)
	}
	if content.Title == "" && len(th.Items) == 0 && !hasMedia {
		return nil, ErrNoContent
	}
	return content, nil
}

// DefaultRegistry tries the thread extractor first and falls back to the page extractor
func DefaultRegistry(walker *thread.Walker, log logger.Logger) *Registry {
	return NewRegistry(NewThreadExtractor(walker, log), PageExtractor{})
}
