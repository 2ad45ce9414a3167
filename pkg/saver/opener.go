package saver

import (
	"context"
	"fmt"
	"os"
	"time"

	"notionx/pkg/browser"
	"notionx/pkg/extractor"
	"notionx/pkg/selectors"
	"notionx/pkg/snapshot"
)

// OpenedPage is an extractable page that must be closed after use
type OpenedPage interface {
	extractor.Page
	Close()
}

// PageOpener loads a URL into an extractable page
type PageOpener interface {
	Open(ctx context.Context, url string) (OpenedPage, error)
}

// BrowserOpener opens URLs in a browser tab
type BrowserOpener struct {
	Bridge    *browser.Bridge
	Selectors selectors.Set
	// ItemWait bounds the wait for the first list item; pages without items
	// fall back to plain page extraction.
	ItemWait time.Duration
}

func (o *BrowserOpener) Open(ctx context.Context, url string) (OpenedPage, error) {
	sel := o.Selectors
	if sel.Item == "" {
		sel = selectors.Twitter()
	}
	page, err := o.Bridge.Open(ctx, url, sel)
	if err != nil {
		return nil, err
	}

	wait := o.ItemWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	// items may never appear on non-thread pages
	_ = page.WaitForItems(waitCtx)

	return page, nil
}

// SnapshotOpener serves a saved HTML file instead of a live page. The file
// is read once per Open; URL overrides the document's canonical URL.
type SnapshotOpener struct {
	Path    string
	Options snapshot.Options
}

type snapshotPage struct {
	*snapshot.Document
}

func (snapshotPage) Close() {}

func (o *SnapshotOpener) Open(_ context.Context, url string) (OpenedPage, error) {
	f, err := os.Open(o.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	opts := o.Options
	if url != "" {
		opts.URL = url
	}
	doc, err := snapshot.Parse(f, opts)
	if err != nil {
		return nil, err
	}
	return snapshotPage{doc}, nil
}
