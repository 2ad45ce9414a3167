package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRateLimit logs a queue-wide suspension after a throttled request
func LogRateLimit(l Logger, requestID string, retryAfter time.Duration, attempt int) {
	OrGlobal(l).WarnWithFields("Rate limited, suspending queue", map[string]interface{}{
		"request_id":  requestID,
		"retry_after": retryAfter,
		"attempt":     attempt,
		"action":      "rate_limited",
	})
}

// LogDelivery logs the outcome of handing content to a sink
func LogDelivery(l Logger, sink, url string, err error) {
	fields := map[string]interface{}{
		"sink": sink,
		"url":  url,
	}
	if err != nil {
		OrGlobal(l).WithError(err).ErrorWithFields("Delivery failed", fields)
		return
	}
	OrGlobal(l).InfoWithFields("Delivery completed", fields)
}

// LogWalk logs the end of a thread walk
func LogWalk(l Logger, author string, items int, reason string) {
	OrGlobal(l).InfoWithFields("Thread walk finished", map[string]interface{}{
		"author": author,
		"items":  items,
		"reason": reason,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
