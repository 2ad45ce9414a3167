package thread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "notionx/pkg/errors"
	"notionx/pkg/logger"
)

func newTestWalker() *Walker {
	return NewWalker(fastLimits(), logger.NewNopLogger())
}

func TestWalkHelloWorldScenario(t *testing.T) {
	view := newFakeView(
		node("1", "alice", "Hello"),
		node("2", "alice", "Hello"),
		node("3", "alice", "World"),
		node("4", "bob", "Reply"),
	)

	th, err := newTestWalker().Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)

	assert.Equal(t, []Item{
		{Index: 0, Text: "Hello", AuthorID: "alice"},
		{Index: 1, Text: "World", AuthorID: "alice"},
	}, th.Items)
	assert.Equal(t, "alice", th.AnchorAuthorID)
	assert.Equal(t, ReasonAuthorChanged, th.Reason)
	assert.False(t, th.Exhausted())
	assert.NoError(t, th.Err())
	assert.Equal(t, Multi, Classify(th, false))
}

func TestWalkStopsAtAuthorBoundaryWithoutScrolling(t *testing.T) {
	view := newFakeView(
		node("1", "alice", "first"),
		node("2", "bob", "not mine"),
		node("3", "alice", "unrelated later post"),
	)

	th, err := newTestWalker().Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)

	assert.Equal(t, []string{"first"}, th.Texts())
	assert.Equal(t, ReasonAuthorChanged, th.Reason)
	assert.Zero(t, view.scrollBys)
	assert.Zero(t, view.authorCalls["3"])
}

func TestWalkKeepsNonAdjacentRepeats(t *testing.T) {
	view := newFakeView(
		node("1", "alice", "A"),
		node("2", "alice", "B"),
		node("3", "alice", "A"),
		node("4", "bob", "C"),
	)

	th, err := newTestWalker().Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "A"}, th.Texts())
}

func TestWalkSkipsEmptyText(t *testing.T) {
	view := newFakeView(
		node("1", "alice", "caption"),
		node("2", "alice", "   "),
		node("3", "alice", "more"),
		node("4", "bob", "x"),
	)

	th, err := newTestWalker().Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)
	assert.Equal(t, []string{"caption", "more"}, th.Texts())
	assert.Equal(t, 1, th.Items[1].Index)
}

func TestWalkRevealsLazilyRenderedItems(t *testing.T) {
	view := newFakeView(
		node("1", "alice", "one"),
		node("2", "alice", "two"),
		node("3", "alice", "three"),
		node("4", "alice", "four"),
		node("5", "alice", "five"),
	)
	view.visible = 2

	th, err := newTestWalker().Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, th.Texts())
	assert.Equal(t, ReasonNoMoreItems, th.Reason)
	assert.True(t, th.Exhausted())
	assert.True(t, errs.IsExhausted(th.Err()))
	// three reveals, then one failed fetch before the second miss ends the walk
	assert.Equal(t, 4, view.scrollBys)
}

func TestWalkMissingAuthorIsBounded(t *testing.T) {
	stuck := node("2", "alice", "never resolves")
	stuck.authorAfter = -1
	view := newFakeView(node("1", "alice", "anchor"), stuck)

	th, err := newTestWalker().Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)

	assert.Equal(t, ReasonAuthorUnresolvable, th.Reason)
	assert.Equal(t, []string{"anchor"}, th.Texts())
	assert.Equal(t, 3, view.authorCalls["2"])
}

func TestWalkToleratesAuthorRenderLag(t *testing.T) {
	lagging := node("2", "alice", "second")
	lagging.authorAfter = 2
	view := newFakeView(node("1", "alice", "first"), lagging, node("3", "bob", "x"))

	th, err := newTestWalker().Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, th.Texts())
	assert.Equal(t, ReasonAuthorChanged, th.Reason)
}

func TestWalkLostAnchor(t *testing.T) {
	view := newFakeView(node("1", "alice", "anchor"), node("2", "alice", "next"))
	view.dropAfter = 1

	th, err := newTestWalker().Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)

	assert.Equal(t, ReasonLostAnchor, th.Reason)
	assert.Equal(t, []string{"anchor"}, th.Texts())
	assert.Equal(t, 9, view.scrollBys)
}

func TestWalkAnchorUnresolvable(t *testing.T) {
	anchor := node("1", "", "orphan")
	view := newFakeView(anchor)

	th, err := newTestWalker().Walk(context.Background(), anchor, view, view)
	assert.ErrorIs(t, err, errs.ErrAnchorUnresolvable)
	assert.Empty(t, th.Items)
}

func TestWalkMaxItems(t *testing.T) {
	view := newFakeView(
		node("1", "alice", "a"),
		node("2", "alice", "b"),
		node("3", "alice", "c"),
	)
	limits := fastLimits()
	limits.MaxItems = 2

	th, err := NewWalker(limits, logger.NewNopLogger()).Walk(context.Background(), view.nodes[0], view, view)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, th.Texts())
	assert.Equal(t, ReasonMaxItems, th.Reason)
}

func TestWalkCancelled(t *testing.T) {
	view := newFakeView(node("1", "alice", "a"), node("2", "alice", "b"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	th, err := newTestWalker().Walk(ctx, view.nodes[0], view, view)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonCancelled, th.Reason)
}

func TestWalkRecordsTimestamps(t *testing.T) {
	first := node("1", "alice", "a")
	first.timestamp = "2024-05-01T10:00:00.000Z"
	view := newFakeView(first, node("2", "bob", "b"))

	th, err := newTestWalker().Walk(context.Background(), first, view, view)
	require.NoError(t, err)
	require.Len(t, th.Items, 1)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", th.Items[0].Timestamp)
}

func TestNewWalkerFillsDefaults(t *testing.T) {
	w := NewWalker(Limits{}, logger.NewNopLogger())
	assert.Equal(t, 10, w.Limits().MaxScrollAttempts)
	assert.Equal(t, 2, w.Limits().MaxConsecutiveNoNewItem)
	assert.Equal(t, 3, w.Limits().MaxConsecutiveMissingAuthor)
}
