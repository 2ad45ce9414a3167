package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"notionx/pkg/logger"
	"notionx/pkg/models"
	"notionx/pkg/selectors"
	"notionx/pkg/thread"
)

// itemKey is the value of the key attribute of one item node
type itemKey string

func (k itemKey) Key() string { return string(k) }

// Page is an open tab. It implements thread.ItemLocator and thread.ScrollDriver
// over the live DOM, which may change between any two calls.
type Page struct {
	ctx    context.Context
	sel    selectors.Set
	logger logger.Logger
	close  func()
}

// Close closes the tab
func (p *Page) Close() {
	if p.close != nil {
		p.close()
	}
}

// eval runs a script in the tab. The tab context bounds the call, ctx only
// stops it from starting.
func (p *Page) eval(ctx context.Context, js string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(p.ctx, chromedp.Evaluate(js, out))
}

// WaitForItems waits until at least one item is rendered or ctx ends
func (p *Page) WaitForItems(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(waitCtx, chromedp.WaitVisible(p.sel.Item, chromedp.ByQuery))
}

// CurrentItems implements thread.ItemLocator
func (p *Page) CurrentItems(ctx context.Context) ([]thread.RenderedItem, error) {
	var keys []string
	if err := p.eval(ctx, listItemsJS(p.sel.Item), &keys); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := make([]thread.RenderedItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, itemKey(k))
	}
	return items, nil
}

// AuthorOf implements thread.ItemLocator
func (p *Page) AuthorOf(ctx context.Context, item thread.RenderedItem) (string, bool) {
	var hrefs []string
	if err := p.eval(ctx, authorHrefsJS(item.Key(), p.sel.Author), &hrefs); err != nil {
		p.logger.WithError(err).Debug("author lookup failed")
		return "", false
	}
	return authorFromHrefs(hrefs)
}

func authorFromHrefs(hrefs []string) (string, bool) {
	for _, href := range hrefs {
		if selectors.StatusID(href) != "" {
			continue
		}
		if h := selectors.HandleFromHref(href); h != "" {
			return h, true
		}
	}
	return "", false
}

// TextOf implements thread.ItemLocator
func (p *Page) TextOf(ctx context.Context, item thread.RenderedItem) string {
	var text string
	if err := p.eval(ctx, textJS(item.Key(), p.sel.Text), &text); err != nil {
		p.logger.WithError(err).Debug("text lookup failed")
		return ""
	}
	return text
}

// HasMedia implements thread.ItemLocator
func (p *Page) HasMedia(ctx context.Context, item thread.RenderedItem) bool {
	var ok bool
	if err := p.eval(ctx, existsJS(item.Key(), p.sel.Media), &ok); err != nil {
		return false
	}
	return ok
}

// TimestampOf implements thread.ItemLocator
func (p *Page) TimestampOf(ctx context.Context, item thread.RenderedItem) (string, bool) {
	var ts string
	if err := p.eval(ctx, attrJS(item.Key(), p.sel.Time, "datetime"), &ts); err != nil {
		return "", false
	}
	return ts, ts != ""
}

// ScrollIntoTrailingView implements thread.ScrollDriver
func (p *Page) ScrollIntoTrailingView(ctx context.Context, item thread.RenderedItem) error {
	var found bool
	if err := p.eval(ctx, scrollIntoTrailingViewJS(item.Key()), &found); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("item %s is no longer rendered", item.Key())
	}
	return nil
}

// ScrollBy implements thread.ScrollDriver
func (p *Page) ScrollBy(ctx context.Context, px int) error {
	return p.eval(ctx, fmt.Sprintf(`window.scrollBy(0, %d)`, px), nil)
}

// URL returns the current location of the tab
func (p *Page) URL() string {
	var u string
	if err := chromedp.Run(p.ctx, chromedp.Location(&u)); err != nil {
		return ""
	}
	return u
}

// Title returns the document title
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.eval(ctx, `document.title`, &title); err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

// Text returns the rendered text of the body
func (p *Page) Text(ctx context.Context) (string, error) {
	var text string
	if err := p.eval(ctx, `document.body ? document.body.innerText : ''`, &text); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Anchor returns the item whose permalink matches statusURL, the first item
// when none does, nil when the page has no items
func (p *Page) Anchor(ctx context.Context, statusURL string) (thread.RenderedItem, error) {
	// tag nodes before looking one up by key
	if _, err := p.CurrentItems(ctx); err != nil {
		return nil, err
	}
	var key string
	if err := p.eval(ctx, anchorJS(p.sel.Item, p.sel.Permalink, selectors.StatusID(statusURL)), &key); err != nil {
		return nil, fmt.Errorf("find anchor: %w", err)
	}
	if key == "" {
		return nil, nil
	}
	return itemKey(key), nil
}

// StatsOf reads the engagement counters of item
func (p *Page) StatsOf(ctx context.Context, item thread.RenderedItem) models.Stats {
	var raw rawStats
	s := statsSelectors{
		Time:     p.sel.Time,
		Reply:    p.sel.Reply,
		Repost:   p.sel.Repost,
		Like:     p.sel.Like,
		Bookmark: p.sel.Bookmark,
		Views:    p.sel.Views,
	}
	if err := p.eval(ctx, statsJS(item.Key(), s), &raw); err != nil {
		p.logger.WithError(err).Debug("stats lookup failed")
		return models.Stats{}
	}
	return raw.stats()
}

func (r rawStats) stats() models.Stats {
	count := func(s string) int {
		n, _ := models.ParseCount(s)
		return n
	}
	return models.Stats{
		CreatedTime: r.Created,
		Comments:    count(r.Reply),
		Reposts:     count(r.Repost),
		Likes:       count(r.Like),
		Bookmarks:   count(r.Bookmark),
		Views:       r.Views,
	}
}

// CoverOf returns the source of the first image in item
func (p *Page) CoverOf(ctx context.Context, item thread.RenderedItem) string {
	var src string
	if err := p.eval(ctx, attrJS(item.Key(), p.sel.Image, "src"), &src); err != nil {
		return ""
	}
	return src
}
