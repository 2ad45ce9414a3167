package main

import (
	"context"
	"errors"
	"fmt"

	"notionx/pkg/archive"
	"notionx/pkg/auth"
	"notionx/pkg/browser"
	"notionx/pkg/config"
	"notionx/pkg/delivery"
	"notionx/pkg/extractor"
	"notionx/pkg/logger"
	"notionx/pkg/models"
	"notionx/pkg/notion"
	"notionx/pkg/queue"
	"notionx/pkg/saver"
	"notionx/pkg/selectors"
	"notionx/pkg/snapshot"
	"notionx/pkg/storage"
	"notionx/pkg/thread"
	"notionx/pkg/ui"
)

// errNoToken is returned when Notion delivery is configured without a token
var errNoToken = errors.New("no Notion token found, run 'notionx auth login' or set " + auth.EnvToken)

// loadConfig loads the configuration, applies command flags and stored
// credentials, and initializes the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if !notifications {
		cfg.Notifications.Enabled = false
	}
	if noColor {
		cfg.Logging.NoColor = true
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if manager, err := auth.NewManager(""); err == nil {
		// missing credentials surface later, only when Notion is used
		_ = manager.Apply(cfg, auth.DefaultProfile)
	}
	return cfg, nil
}

// app holds the components built from a configuration
type app struct {
	cfg     *config.Config
	log     logger.Logger
	queue   *queue.Queue
	client  *notion.Client
	sink    *notion.Sink
	journal *archive.Journal
	bridge  *browser.Bridge
	saver   *saver.Saver
}

// appOptions selects how pages are opened
type appOptions struct {
	// snapshotPath reads a saved HTML file instead of opening a browser
	snapshotPath string
	// extractOnly skips building sinks
	extractOnly bool
}

func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: logger.GetLogger()}

	var sinks []delivery.Sink
	if !opts.extractOnly {
		if cfg.HasTarget(config.TargetNotion) {
			if err := a.initNotion(true); err != nil {
				return nil, err
			}
			sinks = append(sinks, a.sink)
		}
		if cfg.HasTarget(config.TargetMarkdown) {
			md, err := storage.NewManager(cfg.Output.Directory)
			if err != nil {
				a.Close()
				return nil, err
			}
			sinks = append(sinks, md)
		}
	}

	var journal saver.Journal
	if cfg.Archive.Enabled && !opts.extractOnly {
		j, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.journal = j
		journal = j
	}

	walker := thread.NewWalker(thread.Limits{
		MaxScrollAttempts:           cfg.Walk.MaxScrollAttempts,
		MaxConsecutiveNoNewItem:     cfg.Walk.MaxConsecutiveNoNewItem,
		MaxConsecutiveMissingAuthor: cfg.Walk.MaxConsecutiveMissingAuthor,
		MaxItems:                    cfg.Walk.MaxItems,
		SettleDelay:                 cfg.Walk.SettleDelay,
		AuthorRetryDelay:            cfg.Walk.AuthorRetryDelay,
	}, a.log)

	var opener saver.PageOpener
	if opts.snapshotPath != "" {
		opener = &saver.SnapshotOpener{Path: opts.snapshotPath, Options: snapshot.Options{Selectors: selectors.Twitter()}}
	} else {
		a.bridge = browser.NewBridge(cfg.Browser, a.log)
		opener = &saver.BrowserOpener{Bridge: a.bridge, Selectors: selectors.Twitter()}
	}

	if opts.extractOnly {
		// extraction never delivers, any sink satisfies the saver
		sinks = []delivery.Sink{discardSink{}}
	}

	s, err := saver.New(saver.Deps{
		Opener:   opener,
		Registry: extractor.DefaultRegistry(walker, a.log),
		Sinks:    sinks,
		Journal:  journal,
		Notifier: ui.NewNotifierFromConfig(cfg.Notifications),
		Logger:   a.log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.saver = s
	return a, nil
}

// initNotion builds the queue, the client and, when a database is
// configured, the sink
func (a *app) initNotion(requireDatabase bool) error {
	cfg := a.cfg
	if cfg.Notion.Token == "" {
		return errNoToken
	}
	if err := auth.ValidateToken(cfg.Notion.Token); err != nil {
		return err
	}
	if cfg.Notion.DatabaseID == "" && requireDatabase {
		return errors.New("no Notion database configured, pass --database or set notion.database_id")
	}

	a.queue = queue.New(queue.Config{
		RequestsPerSecond:  cfg.Queue.RequestsPerSecond,
		DefaultRetryAfter:  cfg.Queue.DefaultRetryAfter,
		MaxThrottleRetries: cfg.Queue.MaxThrottleRetries,
	}, a.log)

	a.client = notion.NewClient(notion.Options{
		Token:      cfg.Notion.Token,
		BaseURL:    cfg.Notion.BaseURL,
		Version:    cfg.Notion.APIVersion,
		Timeout:    cfg.Notion.Timeout,
		MaxRetries: cfg.Notion.MaxRetries,
		Queue:      a.queue,
		Logger:     a.log,
	})
	if cfg.Notion.DatabaseID != "" {
		a.sink = notion.NewSink(a.client, cfg.Notion.DatabaseID, cfg.Notion.TypeLabels, a.log)
	}
	return nil
}

// notionOnly builds just the Notion client, for commands that do not save
func notionOnly(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.GetLogger()}
	if err := a.initNotion(false); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the browser, the queue and the journal
func (a *app) Close() {
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close history journal")
		}
	}
}

type discardSink struct{}

func (discardSink) Name() string { return "discard" }

func (discardSink) Deliver(context.Context, *models.Content) (*delivery.Receipt, error) {
	return &delivery.Receipt{Sink: "discard"}, nil
}
