// Package delivery defines where extracted content goes.
package delivery

import (
	"context"
	"time"

	"notionx/pkg/models"
)

// Receipt describes a completed delivery
type Receipt struct {
	Sink        string    `json:"sink"`
	RemoteID    string    `json:"remote_id,omitempty"`
	Location    string    `json:"location,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Sink accepts content
type Sink interface {
	Name() string
	Deliver(ctx context.Context, content *models.Content) (*Receipt, error)
}
