package saver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notionx/internal/batch"
	"notionx/pkg/archive"
	"notionx/pkg/delivery"
	"notionx/pkg/extractor"
	"notionx/pkg/logger"
	"notionx/pkg/models"
)

// Journal remembers which URLs were delivered where
type Journal interface {
	Lookup(ctx context.Context, url, destination string) (*archive.Entry, error)
	Record(ctx context.Context, content *models.Content, receipt *delivery.Receipt) error
}

// Notifier reports outcomes to the user
type Notifier interface {
	SendSuccess(title, message string)
	SendError(title, message string)
}

// Deps are the collaborators of a Saver. Journal and Notifier are optional.
type Deps struct {
	Opener   PageOpener
	Registry *extractor.Registry
	Sinks    []delivery.Sink
	Journal  Journal
	Notifier Notifier
	Logger   logger.Logger
}

// Outcome describes one saved URL
type Outcome struct {
	URL      string              `json:"url"`
	Content  *models.Content     `json:"content,omitempty"`
	Receipts []*delivery.Receipt `json:"receipts,omitempty"`
	// Skipped lists sinks that already had the URL
	Skipped []string `json:"skipped,omitempty"`
}

// AlreadySaved reports whether nothing was delivered because every sink had the URL
func (o *Outcome) AlreadySaved() bool {
	return o.Content == nil && len(o.Skipped) > 0
}

// Saver extracts pages and hands the content to the configured sinks
type Saver struct {
	opener   PageOpener
	registry *extractor.Registry
	sinks    []delivery.Sink
	journal  Journal
	notifier Notifier
	logger   logger.Logger
}

// New creates a Saver
func New(deps Deps) (*Saver, error) {
	if deps.Opener == nil {
		return nil, errors.New("saver: page opener is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("saver: extractor registry is required")
	}
	if len(deps.Sinks) == 0 {
		return nil, errors.New("saver: at least one sink is required")
	}
	return &Saver{
		opener:   deps.Opener,
		registry: deps.Registry,
		sinks:    deps.Sinks,
		journal:  deps.Journal,
		notifier: deps.Notifier,
		logger:   logger.OrGlobal(deps.Logger),
	}, nil
}

// Extract opens url and runs the matching extractor on it
func (s *Saver) Extract(ctx context.Context, url string) (*models.Content, error) {
	page, err := s.opener.Open(ctx, url)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	defer page.Close()

	session := extractor.NewSession(page, s.registry)
	defer session.Close()

	start := time.Now()
	content, err := session.Extract(ctx)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}

	s.logger.InfoWithFields("Content extracted", map[string]interface{}{
		"url":      url,
		"type":     content.Type,
		"items":    len(content.Items),
		"reason":   content.Reason,
		"duration": time.Since(start),
	})
	return content, nil
}

// Deliver sends content to every sink not yet holding content.URL, or to all
// of them when force is set. Each successful delivery is journaled. Failures
// of individual sinks are joined; the receipts of the others are still returned.
func (s *Saver) Deliver(ctx context.Context, content *models.Content, force bool) (*Outcome, error) {
	pending, skipped := s.pendingSinks(ctx, content.URL, force)
	outcome := &Outcome{URL: content.URL, Content: content, Skipped: skipped}

	var errs []error
	for _, sink := range pending {
		receipt, err := sink.Deliver(ctx, content)
		logger.LogDelivery(s.logger, sink.Name(), content.URL, err)
		if err != nil {
			errs = append(errs, &DeliveryError{Sink: sink.Name(), Err: err})
			continue
		}
		outcome.Receipts = append(outcome.Receipts, receipt)

		if s.journal != nil {
			if err := s.journal.Record(ctx, content, receipt); err != nil {
				// the delivery itself succeeded
				s.logger.WithError(err).Warn("Failed to journal delivery")
			}
		}
	}
	return outcome, errors.Join(errs...)
}

// Save extracts url and delivers it. Extraction is skipped entirely when
// every sink already holds the URL and force is not set.
func (s *Saver) Save(ctx context.Context, url string, force bool) (*Outcome, error) {
	pending, skipped := s.pendingSinks(ctx, url, force)
	if len(pending) == 0 {
		s.logger.InfoWithFields("Already saved", map[string]interface{}{
			"url":   url,
			"sinks": skipped,
		})
		return &Outcome{URL: url, Skipped: skipped}, nil
	}

	content, err := s.Extract(ctx, url)
	if err != nil {
		s.notifyError(err)
		return nil, err
	}

	outcome, err := s.Deliver(ctx, content, force)
	if err != nil {
		s.notifyError(err)
		return outcome, err
	}

	s.notifySuccess(outcome)
	return outcome, nil
}

// SaveAll saves urls using up to workers concurrent pages. Results are in
// input order.
func (s *Saver) SaveAll(ctx context.Context, urls []string, force bool, workers int, onResult func(batch.Result[*Outcome])) []batch.Result[*Outcome] {
	save := func(ctx context.Context, url string) (*Outcome, error) {
		return s.Save(ctx, url, force)
	}
	return batch.Run(ctx, urls, workers, save, onResult, s.logger)
}

// SinkNames returns the names of the configured sinks
func (s *Saver) SinkNames() []string {
	names := make([]string, len(s.sinks))
	for i, sink := range s.sinks {
		names[i] = sink.Name()
	}
	return names
}

func (s *Saver) pendingSinks(ctx context.Context, url string, force bool) (pending []delivery.Sink, skipped []string) {
	if force || s.journal == nil {
		return s.sinks, nil
	}
	for _, sink := range s.sinks {
		_, err := s.journal.Lookup(ctx, url, sink.Name())
		switch {
		case err == nil:
			skipped = append(skipped, sink.Name())
		case errors.Is(err, archive.ErrNotFound):
			pending = append(pending, sink)
		default:
			s.logger.WithError(err).Warn("Journal lookup failed, delivering anyway")
			pending = append(pending, sink)
		}
	}
	return pending, skipped
}

func (s *Saver) notifySuccess(o *Outcome) {
	if s.notifier == nil {
		return
	}
	c := o.Content
	msg := fmt.Sprintf("%s saved to %d destination(s)", c.Type, len(o.Receipts))
	if handle := c.AuthorHandle(); handle != "" {
		msg = fmt.Sprintf("%s by %s saved to %d destination(s)", c.Type, handle, len(o.Receipts))
	}
	s.notifier.SendSuccess("Saved", msg)
}

func (s *Saver) notifyError(err error) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendError("Save failed", Describe(err))
}
