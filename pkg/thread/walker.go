package thread

import (
	"context"
	"strings"
	"time"

	errs "notionx/pkg/errors"
	"notionx/pkg/logger"
	"notionx/pkg/retry"
)

// Limits bounds a walk. The three Max* counters end the walk when their
// failure mode persists; the delays and pixel distances tune the scrolling.
type Limits struct {
	MaxScrollAttempts           int
	MaxConsecutiveNoNewItem     int
	MaxConsecutiveMissingAuthor int
	// MaxItems caps the thread length, 0 disables the cap
	MaxItems int

	SettleDelay      time.Duration
	AuthorRetryDelay time.Duration
	NudgePixels      int
	FetchMorePixels  int
}

// DefaultLimits returns the stock walk limits
func DefaultLimits() Limits {
	return Limits{
		MaxScrollAttempts:           10,
		MaxConsecutiveNoNewItem:     2,
		MaxConsecutiveMissingAuthor: 3,
		MaxItems:                    200,
		SettleDelay:                 500 * time.Millisecond,
		AuthorRetryDelay:            300 * time.Millisecond,
		NudgePixels:                 300,
		FetchMorePixels:             1200,
	}
}

// Walker collects a same-author thread starting from an anchor item
type Walker struct {
	limits Limits
	logger logger.Logger
}

// NewWalker creates a walker. Zero-valued limits fall back to the defaults.
func NewWalker(limits Limits, log logger.Logger) *Walker {
	def := DefaultLimits()
	if limits.MaxScrollAttempts <= 0 {
		limits.MaxScrollAttempts = def.MaxScrollAttempts
	}
	if limits.MaxConsecutiveNoNewItem <= 0 {
		limits.MaxConsecutiveNoNewItem = def.MaxConsecutiveNoNewItem
	}
	if limits.MaxConsecutiveMissingAuthor <= 0 {
		limits.MaxConsecutiveMissingAuthor = def.MaxConsecutiveMissingAuthor
	}
	if limits.NudgePixels <= 0 {
		limits.NudgePixels = def.NudgePixels
	}
	if limits.FetchMorePixels <= 0 {
		limits.FetchMorePixels = def.FetchMorePixels
	}
	return &Walker{
		limits: limits,
		logger: logger.OrGlobal(log).WithField("component", "walker"),
	}
}

// Limits returns the effective limits
func (w *Walker) Limits() Limits {
	return w.limits
}

// walk holds the mutable state of one Walk call
type walk struct {
	*Walker
	loc ItemLocator
	drv ScrollDriver

	thread    Thread
	collected map[string]bool
	lastText  string

	scrollAttempts      int
	noNewItemStreak     int
	missingAuthorStreak int
}

// Walk collects the thread that anchor belongs to. It returns
// errors.ErrAnchorUnresolvable when the anchor has no author, and the
// context error together with the partial thread when ctx ends. Every other
// termination returns a nil error; inspect Thread.Reason.
func (w *Walker) Walk(ctx context.Context, anchor RenderedItem, loc ItemLocator, drv ScrollDriver) (Thread, error) {
	author, ok := loc.AuthorOf(ctx, anchor)
	if !ok || author == "" {
		return Thread{}, errs.ErrAnchorUnresolvable
	}

	s := &walk{
		Walker:    w,
		loc:       loc,
		drv:       drv,
		thread:    Thread{AnchorAuthorID: author, Items: []Item{}},
		collected: make(map[string]bool),
	}

	reason, err := s.run(ctx, anchor)
	s.thread.Reason = reason
	logger.LogWalk(w.logger, author, len(s.thread.Items), string(reason))
	return s.thread, err
}

func (s *walk) run(ctx context.Context, current RenderedItem) (TerminationReason, error) {
	for {
		if err := ctx.Err(); err != nil {
			return ReasonCancelled, err
		}

		s.collect(ctx, current)
		if s.limits.MaxItems > 0 && len(s.thread.Items) >= s.limits.MaxItems {
			return ReasonMaxItems, nil
		}

		if err := s.drv.ScrollIntoTrailingView(ctx, current); err != nil {
			s.logger.WithError(err).Debug("scroll into view failed")
		}
		if err := retry.Wait(ctx, s.limits.SettleDelay); err != nil {
			return ReasonCancelled, err
		}

		next, reason, err := s.successor(ctx, current)
		if err != nil || reason != "" {
			return reason, err
		}

		nextAuthor, ok := s.loc.AuthorOf(ctx, next)
		if !ok || nextAuthor == "" {
			s.missingAuthorStreak++
			s.logger.DebugWithFields("successor author not resolved", map[string]interface{}{
				"streak": s.missingAuthorStreak,
			})
			if s.missingAuthorStreak >= s.limits.MaxConsecutiveMissingAuthor {
				return ReasonAuthorUnresolvable, nil
			}
			if err := retry.Wait(ctx, s.limits.AuthorRetryDelay); err != nil {
				return ReasonCancelled, err
			}
			continue
		}

		if nextAuthor != s.thread.AnchorAuthorID {
			return ReasonAuthorChanged, nil
		}

		current = next
		s.noNewItemStreak = 0
		s.scrollAttempts = 0
	}
}

// collect appends current unless it was collected before, has no text, or
// repeats the text collected immediately before it.
func (s *walk) collect(ctx context.Context, current RenderedItem) {
	key := current.Key()
	if s.collected[key] {
		return
	}

	text := s.loc.TextOf(ctx, current)
	if strings.TrimSpace(text) == "" {
		return
	}
	s.collected[key] = true
	if len(s.thread.Items) > 0 && text == s.lastText {
		return
	}

	item := Item{
		Index:    len(s.thread.Items),
		Text:     text,
		AuthorID: s.thread.AnchorAuthorID,
	}
	if ts, ok := s.loc.TimestampOf(ctx, current); ok {
		item.Timestamp = ts
	}
	s.thread.Items = append(s.thread.Items, item)
	s.lastText = text
	s.missingAuthorStreak = 0
}

// successor re-reads the view until the item after current is rendered. A
// non-empty reason means the walk is over.
func (s *walk) successor(ctx context.Context, current RenderedItem) (RenderedItem, TerminationReason, error) {
	for {
		items, err := s.loc.CurrentItems(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ReasonCancelled, ctx.Err()
			}
			s.logger.WithError(err).Debug("listing items failed")
		}

		pos := indexOf(items, current.Key())
		switch {
		case pos < 0:
			s.scrollAttempts++
			if s.scrollAttempts >= s.limits.MaxScrollAttempts {
				return nil, ReasonLostAnchor, nil
			}
			if err := s.scroll(ctx, s.limits.NudgePixels); err != nil {
				return nil, ReasonCancelled, err
			}

		case pos+1 >= len(items):
			s.noNewItemStreak++
			if s.noNewItemStreak >= s.limits.MaxConsecutiveNoNewItem {
				return nil, ReasonNoMoreItems, nil
			}
			if err := s.scroll(ctx, s.limits.FetchMorePixels); err != nil {
				return nil, ReasonCancelled, err
			}

		default:
			return items[pos+1], "", nil
		}
	}
}

func (s *walk) scroll(ctx context.Context, px int) error {
	if err := s.drv.ScrollBy(ctx, px); err != nil {
		s.logger.WithError(err).Debug("scroll failed")
	}
	return retry.Wait(ctx, s.limits.SettleDelay)
}

func indexOf(items []RenderedItem, key string) int {
	for i, it := range items {
		if it.Key() == key {
			return i
		}
	}
	return -1
}
