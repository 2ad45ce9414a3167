// Package snapshot reads a saved HTML page as if it were a live timeline.
//
// A Document exposes only a window of its items at a time and reveals more as
// it is scrolled, the way a virtualized timeline renders. This lets the thread
// walker run offline against pages saved from a browser.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"notionx/pkg/models"
	"notionx/pkg/selectors"
	"notionx/pkg/thread"
)

// Options configures how much of the document is rendered
type Options struct {
	URL       string
	Selectors selectors.Set
	// Initial is the number of items rendered before any scrolling, 0 renders all
	Initial int
	// Window is the most items rendered at once, 0 keeps every revealed item
	Window int
	// ItemHeight is the pixel height assumed per item when scrolling
	ItemHeight int
}

type node struct {
	key string
	sel *goquery.Selection
}

func (n *node) Key() string { return n.key }

// Document is a parsed page with a virtual viewport
type Document struct {
	doc   *goquery.Document
	opts  Options
	nodes []*node

	mu      sync.Mutex
	visible int
}

// Parse reads HTML from r
func Parse(r io.Reader, opts Options) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if opts.Selectors.Item == "" {
		opts.Selectors = selectors.Twitter()
	}
	if opts.ItemHeight <= 0 {
		opts.ItemHeight = 600
	}

	d := &Document{doc: doc, opts: opts}
	doc.Find(opts.Selectors.Item).Each(func(i int, s *goquery.Selection) {
		d.nodes = append(d.nodes, &node{key: "n" + strconv.Itoa(i), sel: s})
	})

	d.visible = len(d.nodes)
	if opts.Initial > 0 && opts.Initial < d.visible {
		d.visible = opts.Initial
	}
	return d, nil
}

// Len returns the number of items in the whole document
func (d *Document) Len() int { return len(d.nodes) }

// CurrentItems implements thread.ItemLocator
func (d *Document) CurrentItems(ctx context.Context) ([]thread.RenderedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	lo := 0
	if d.opts.Window > 0 && d.visible > d.opts.Window {
		lo = d.visible - d.opts.Window
	}
	out := make([]thread.RenderedItem, 0, d.visible-lo)
	for _, n := range d.nodes[lo:d.visible] {
		out = append(out, n)
	}
	return out, nil
}

// AuthorOf implements thread.ItemLocator
func (d *Document) AuthorOf(_ context.Context, item thread.RenderedItem) (string, bool) {
	n, ok := item.(*node)
	if !ok {
		return "", false
	}
	var handle string
	n.sel.Find(d.opts.Selectors.Author).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if selectors.StatusID(href) != "" {
			return true
		}
		handle = selectors.HandleFromHref(href)
		return handle == ""
	})
	return handle, handle != ""
}

// TextOf implements thread.ItemLocator
func (d *Document) TextOf(_ context.Context, item thread.RenderedItem) string {
	n, ok := item.(*node)
	if !ok {
		return ""
	}
	return FormatText(n.sel.Find(d.opts.Selectors.Text).First())
}

// HasMedia implements thread.ItemLocator
func (d *Document) HasMedia(_ context.Context, item thread.RenderedItem) bool {
	n, ok := item.(*node)
	return ok && n.sel.Find(d.opts.Selectors.Media).Length() > 0
}

// TimestampOf implements thread.ItemLocator
func (d *Document) TimestampOf(_ context.Context, item thread.RenderedItem) (string, bool) {
	n, ok := item.(*node)
	if !ok {
		return "", false
	}
	return n.sel.Find(d.opts.Selectors.Time).First().Attr("datetime")
}

// ScrollIntoTrailingView implements thread.ScrollDriver
func (d *Document) ScrollIntoTrailingView(ctx context.Context, item thread.RenderedItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx := d.indexOf(item)
	if idx < 0 {
		return fmt.Errorf("item %s not in document", item.Key())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if idx+1 > d.visible {
		d.visible = idx + 1
	}
	return nil
}

// ScrollBy implements thread.ScrollDriver. Each ItemHeight pixels reveal one more item.
func (d *Document) ScrollBy(ctx context.Context, px int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	reveal := (px + d.opts.ItemHeight - 1) / d.opts.ItemHeight
	if reveal < 1 {
		reveal = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = min(d.visible+reveal, len(d.nodes))
	return nil
}

// URL returns the address the page was saved from
func (d *Document) URL() string {
	if d.opts.URL != "" {
		return d.opts.URL
	}
	if href, ok := d.doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		return href
	}
	content, _ := d.doc.Find(`meta[property="og:url"]`).Attr("content")
	return content
}

// Title returns the document title
func (d *Document) Title(context.Context) (string, error) {
	return strings.TrimSpace(d.doc.Find("title").First().Text()), nil
}

// Text returns the visible body text with whitespace collapsed per line
func (d *Document) Text(context.Context) (string, error) {
	body := d.doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return collapseLines(body.Text()), nil
}

// Anchor returns the item whose permalink carries the status id of statusURL,
// the first item when none matches, nil for a document without items
func (d *Document) Anchor(_ context.Context, statusURL string) (thread.RenderedItem, error) {
	if len(d.nodes) == 0 {
		return nil, nil
	}
	if id := selectors.StatusID(statusURL); id != "" {
		for _, n := range d.nodes {
			found := false
			n.sel.Find(d.opts.Selectors.Permalink).EachWithBreak(func(_ int, a *goquery.Selection) bool {
				href, _ := a.Attr("href")
				found = selectors.StatusID(href) == id
				return !found
			})
			if found {
				d.reveal(n)
				return n, nil
			}
		}
	}
	return d.nodes[0], nil
}

// StatsOf reads the engagement counters of item
func (d *Document) StatsOf(_ context.Context, item thread.RenderedItem) models.Stats {
	n, ok := item.(*node)
	if !ok {
		return models.Stats{}
	}
	sel := d.opts.Selectors
	count := func(css string) int {
		v, _ := models.ParseCount(strings.TrimSpace(n.sel.Find(css).First().Text()))
		return v
	}
	created, _ := n.sel.Find(sel.Time).First().Attr("datetime")
	return models.Stats{
		CreatedTime: created,
		Comments:    count(sel.Reply),
		Reposts:     count(sel.Repost),
		Likes:       count(sel.Like),
		Bookmarks:   count(sel.Bookmark),
		Views:       strings.TrimSpace(n.sel.Find(sel.Views).First().Text()),
	}
}

// CoverOf returns the first image of item
func (d *Document) CoverOf(_ context.Context, item thread.RenderedItem) string {
	n, ok := item.(*node)
	if !ok {
		return ""
	}
	src, _ := n.sel.Find(d.opts.Selectors.Image).First().Attr("src")
	return src
}

func (d *Document) indexOf(item thread.RenderedItem) int {
	for i, n := range d.nodes {
		if n.key == item.Key() {
			return i
		}
	}
	return -1
}

func (d *Document) reveal(n *node) {
	idx := d.indexOf(n)
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx+1 > d.visible {
		d.visible = idx + 1
	}
}

// FormatText renders the text of s the way it reads on screen: text nodes are
// joined, images contribute their alt text and <br> becomes a newline.
func FormatText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				b.WriteString(c.Text())
			case "img":
				alt, _ := c.Attr("alt")
				b.WriteString(alt)
			case "br":
				b.WriteString("\n")
			case "script", "style":
			default:
				walk(c)
			}
		})
	}
	walk(s)
	return strings.TrimSpace(b.String())
}

func collapseLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
