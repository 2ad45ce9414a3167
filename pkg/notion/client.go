package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	errs "notionx/pkg/errors"
	"notionx/pkg/logger"
	"notionx/pkg/queue"
	"notionx/pkg/ratelimit"
	"notionx/pkg/retry"
)

const (
	// DefaultBaseURL is the public Notion API endpoint
	DefaultBaseURL = "https://api.notion.com/v1"
	// DefaultVersion is the Notion-Version header sent with every request
	DefaultVersion = "2022-06-28"
)

// Options configures a Client
type Options struct {
	Token      string
	BaseURL    string
	Version    string
	Timeout    time.Duration
	MaxRetries int
	// Queue serializes requests. Without a queue requests go out directly.
	Queue  *queue.Queue
	Logger logger.Logger
	// Backoff between transport retries, mainly for tests
	Backoff retry.BackoffStrategy
}

// Client talks to the Notion REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	version    string
	maxRetries int
	backoff    retry.BackoffStrategy
	queue      *queue.Queue
	logger     logger.Logger
}

// NewClient creates a new Notion API client
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultExponentialBackoff()
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		version:    opts.Version,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		queue:      opts.Queue,
		logger:     logger.OrGlobal(opts.Logger).WithField("component", "notion"),
	}
}

// do sends one API request. When a queue is configured the request waits its
// turn there; transport failures are retried inside the same turn, each retry
// paced by the queue's limiter.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	send := func(ctx context.Context) (any, error) {
		attempt := 0
		return nil, retry.Do(func() error {
			attempt++
			if attempt > 1 {
				if l, ok := ratelimit.FromContext(ctx); ok {
					if err := l.Wait(ctx); err != nil {
						return err
					}
				}
			}
			return c.send(ctx, method, path, body, out)
		}, &retry.Config{
			MaxAttempts: c.maxRetries,
			Backoff:     c.backoff,
			Context:     ctx,
			Logger:      c.logger,
		})
	}

	if c.queue == nil {
		_, err := send(ctx)
		return err
	}
	_, err := c.queue.Submit(ctx, send)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   method,
			"path":     path,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return &errs.Rejection{Kind: errs.KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Rejection{Kind: errs.KindNetwork, Code: resp.StatusCode, Message: fmt.Sprintf("read body: %v", err)}
	}

	if resp.StatusCode >= 300 {
		return c.rejection(resp, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &errs.Rejection{Kind: errs.KindUnknown, Code: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// rejection turns an error response into a typed Rejection
func (c *Client) rejection(resp *http.Response, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	rej := &errs.Rejection{
		Kind:    errs.KindForStatus(resp.StatusCode, apiErr.Code),
		Code:    resp.StatusCode,
		APICode: apiErr.Code,
		Message: apiErr.Message,
	}
	if rej.Message == "" {
		rej.Message = http.StatusText(resp.StatusCode)
	}
	if rej.Kind == errs.KindRateLimited {
		rej.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}

	c.logger.WarnWithFields("Notion API rejected request", map[string]interface{}{
		"status":      rej.Code,
		"code":        rej.APICode,
		"kind":        string(rej.Kind),
		"retry_after": rej.RetryAfter,
	})
	return rej
}

// parseRetryAfter accepts delay seconds or an HTTP date, 0 when absent or invalid
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
