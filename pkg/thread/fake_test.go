package thread

import (
	"context"
	"sync"
)

type fakeNode struct {
	key         string
	author      string
	text        string
	media       bool
	timestamp   string
	authorAfter int // AuthorOf misses before the author resolves, -1 never resolves
}

func (n *fakeNode) Key() string { return n.key }

// fakeView renders nodes[first:visible] and reveals step more per ScrollBy
type fakeView struct {
	mu          sync.Mutex
	nodes       []*fakeNode
	first       int
	visible     int
	step        int
	authorCalls map[string]int
	scrollBys   int
	dropAfter   int // hide the first node once this many CurrentItems calls happened, 0 disables
	listCalls   int
}

func newFakeView(nodes ...*fakeNode) *fakeView {
	return &fakeView{nodes: nodes, visible: len(nodes), step: 1, authorCalls: map[string]int{}}
}

func node(key, author, text string) *fakeNode {
	return &fakeNode{key: key, author: author, text: text}
}

func (v *fakeView) CurrentItems(ctx context.Context) ([]RenderedItem, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.listCalls++
	if v.dropAfter > 0 && v.listCalls >= v.dropAfter {
		v.first = 1
	}
	var out []RenderedItem
	for i := v.first; i < v.visible && i < len(v.nodes); i++ {
		out = append(out, v.nodes[i])
	}
	return out, nil
}

func (v *fakeView) AuthorOf(ctx context.Context, item RenderedItem) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := item.(*fakeNode)
	v.authorCalls[n.key]++
	if n.authorAfter < 0 || v.authorCalls[n.key] <= n.authorAfter {
		return "", false
	}
	return n.author, n.author != ""
}

func (v *fakeView) TextOf(ctx context.Context, item RenderedItem) string {
	return item.(*fakeNode).text
}

func (v *fakeView) HasMedia(ctx context.Context, item RenderedItem) bool {
	return item.(*fakeNode).media
}

func (v *fakeView) TimestampOf(ctx context.Context, item RenderedItem) (string, bool) {
	ts := item.(*fakeNode).timestamp
	return ts, ts != ""
}

func (v *fakeView) ScrollIntoTrailingView(ctx context.Context, item RenderedItem) error {
	return nil
}

func (v *fakeView) ScrollBy(ctx context.Context, px int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.scrollBys++
	v.visible += v.step
	return nil
}

func fastLimits() Limits {
	return Limits{
		MaxScrollAttempts:           10,
		MaxConsecutiveNoNewItem:     2,
		MaxConsecutiveMissingAuthor: 3,
	}
}
