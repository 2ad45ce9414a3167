// Package browser drives a Chrome instance through chromedp and exposes open
// tabs as live timelines for the thread walker.
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"notionx/pkg/config"
	"notionx/pkg/logger"
	"notionx/pkg/selectors"
)

// Bridge owns one browser process and opens tabs in it. The profile directory
// persists cookies so a login made with Login is reused by later runs.
type Bridge struct {
	profileDir  string
	headless    bool
	userAgent   string
	pageTimeout time.Duration
	logger      logger.Logger

	mu          sync.Mutex
	browserCtx  context.Context
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
}

// NewBridge creates a bridge. The browser starts on the first Open.
func NewBridge(cfg config.BrowserConfig, log logger.Logger) *Bridge {
	if cfg.ProfileDir == "" {
		cfg.ProfileDir = config.DefaultConfig().Browser.ProfileDir
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 90 * time.Second
	}
	return &Bridge{
		profileDir:  cfg.ProfileDir,
		headless:    cfg.Headless,
		userAgent:   cfg.UserAgent,
		pageTimeout: cfg.PageTimeout,
		logger:      logger.OrGlobal(log).WithField("component", "browser"),
	}
}

func (b *Bridge) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.WindowSize(1280, 2000),
	)
	if b.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.userAgent))
	}
	if headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// start launches the browser once
func (b *Bridge) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		return b.browserCtx, nil
	}
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir %s: %w", b.profileDir, err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions(b.headless)...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		ctxCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b.browserCtx, b.allocCancel, b.ctxCancel = browserCtx, allocCancel, ctxCancel
	logger.LogComponentStart("browser", map[string]interface{}{
		"profile":  b.profileDir,
		"headless": b.headless,
	})
	return browserCtx, nil
}

// Open creates a tab, navigates to url and waits for the body to be ready.
// The caller must Close the page.
func (b *Bridge) Open(ctx context.Context, url string, sel selectors.Set) (*Page, error) {
	browserCtx, err := b.start()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, b.pageTimeout)
	stop := context.AfterFunc(ctx, timeoutCancel)

	page := &Page{
		ctx:    tabCtx,
		sel:    sel,
		logger: b.logger.WithField("url", url),
		close: func() {
			stop()
			timeoutCancel()
			tabCancel()
		},
	}

	start := time.Now()
	if err := chromedp.Run(tabCtx, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	b.logger.DebugWithFields("page loaded", map[string]interface{}{
		"url":      url,
		"duration": time.Since(start),
	})
	return page, nil
}

// Close shuts the browser down
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx == nil {
		return
	}
	b.ctxCancel()
	b.allocCancel()
	b.browserCtx = nil
	logger.LogComponentStop("browser", "closed")
}

// Login opens a visible browser at url so the user can sign in. It returns
// when ctx ends; the session stays in the profile directory.
func (b *Bridge) Login(ctx context.Context, url string) error {
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir %s: %w", b.profileDir, err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions(false)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	if err := chromedp.Run(taskCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}

	b.logger.InfoWithFields("Browser opened, log in and press Ctrl+C when done", map[string]interface{}{
		"url": url,
	})
	<-ctx.Done()

	b.logger.InfoWithFields("Login session saved", map[string]interface{}{
		"profile": b.profileDir,
	})
	return nil
}
