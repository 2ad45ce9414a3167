package thread

import (
	"context"
	"strings"

	errs "notionx/pkg/errors"
)

// RenderedItem is a handle to one item node in the live view. Two handles
// refer to the same node exactly when their keys are equal. Handles are only
// meaningful during the walk that obtained them.
type RenderedItem interface {
	Key() string
}

// ItemLocator reads the rendered state of the view
type ItemLocator interface {
	// CurrentItems returns the visible items in document order
	CurrentItems(ctx context.Context) ([]RenderedItem, error)
	AuthorOf(ctx context.Context, item RenderedItem) (string, bool)
	TextOf(ctx context.Context, item RenderedItem) string
	HasMedia(ctx context.Context, item RenderedItem) bool
	TimestampOf(ctx context.Context, item RenderedItem) (string, bool)
}

// ScrollDriver moves the viewport so more items get rendered
type ScrollDriver interface {
	// ScrollIntoTrailingView scrolls until the bottom edge of item is visible
	ScrollIntoTrailingView(ctx context.Context, item RenderedItem) error
	// ScrollBy scrolls the viewport down by px pixels
	ScrollBy(ctx context.Context, px int) error
}

// Item is one collected message of a thread
type Item struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Classification labels a collected thread
type Classification string

const (
	Unclassified Classification = ""
	Single       Classification = "single"
	Multi        Classification = "thread"
	MediaOnly    Classification = "media_only"
)

// TerminationReason records why a walk stopped
type TerminationReason string

const (
	ReasonAuthorChanged      TerminationReason = "author_changed"
	ReasonNoMoreItems        TerminationReason = "no_more_items"
	ReasonLostAnchor         TerminationReason = "lost_anchor"
	ReasonAuthorUnresolvable TerminationReason = "author_unresolvable"
	ReasonMaxItems           TerminationReason = "max_items"
	ReasonCancelled          TerminationReason = "cancelled"
)

// Thread is the ordered result of a walk. Items are in document order and no
// two adjacent items carry the same text.
type Thread struct {
	Items          []Item            `json:"items"`
	AnchorAuthorID string            `json:"anchor_author_id"`
	Classification Classification    `json:"classification"`
	Reason         TerminationReason `json:"reason"`
}

// Texts returns the text of every item
func (t Thread) Texts() []string {
	out := make([]string, len(t.Items))
	for i, it := range t.Items {
		out[i] = it.Text
	}
	return out
}

// Exhausted reports whether the walk stopped before reaching an author boundary
func (t Thread) Exhausted() bool {
	return t.Reason != ReasonAuthorChanged && t.Reason != ""
}

// Classify labels a thread. It is pure: more than one item is a thread, a
// media anchor without text is media-only, anything else is a single post.
func Classify(t Thread, anchorHasMedia bool) Classification {
	if len(t.Items) > 1 {
		return Multi
	}
	if anchorHasMedia && (len(t.Items) == 0 || strings.TrimSpace(t.Items[0].Text) == "") {
		return MediaOnly
	}
	return Single
}

// Err returns an ExhaustedError when the walk stopped early, nil otherwise
func (t Thread) Err() error {
	if !t.Exhausted() {
		return nil
	}
	return &errs.ExhaustedError{Reason: string(t.Reason)}
}
