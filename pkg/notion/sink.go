package notion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notionx/pkg/delivery"
	"notionx/pkg/logger"
	"notionx/pkg/models"
)

// TypeProperty is the select column holding the content classification
const TypeProperty = "类型"

var optionColors = map[string]string{
	models.TypeSingle:    "blue",
	models.TypeThread:    "green",
	models.TypeMediaOnly: "red",
	models.TypePage:      "gray",
}

// Sink saves content as pages of one database
type Sink struct {
	client     *Client
	databaseID string
	mapper     *Mapper
	logger     logger.Logger

	mu     sync.Mutex
	schema *Database
}

// NewSink creates a sink for databaseID. labels maps content types to select option names.
func NewSink(client *Client, databaseID string, labels map[string]string, log logger.Logger) *Sink {
	return &Sink{
		client:     client,
		databaseID: databaseID,
		mapper:     &Mapper{Labels: labels},
		logger:     logger.OrGlobal(log).WithField("sink", "notion"),
	}
}

// Name implements delivery.Sink
func (s *Sink) Name() string { return "notion" }

// Deliver creates a page with mapped properties and one paragraph per item
func (s *Sink) Deliver(ctx context.Context, content *models.Content) (*delivery.Receipt, error) {
	db, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}

	req := &CreatePageRequest{
		Parent:     Parent{DatabaseID: s.databaseID},
		Properties: s.mapper.Properties(db, content),
	}
	if content.Cover != "" {
		req.Cover = &File{Type: "external", External: &ExternalFile{URL: content.Cover}}
	}

	page, err := s.client.CreatePage(ctx, req)
	if err != nil {
		return nil, err
	}

	if blocks := TextBlocks(content.Paragraphs()); len(blocks) > 0 {
		if err := s.client.AppendBlocks(ctx, page.ID, blocks); err != nil {
			return nil, fmt.Errorf("page %s created without body: %w", page.ID, err)
		}
	}

	s.logger.InfoWithFields("Saved page", map[string]interface{}{
		"page_id": page.ID,
		"url":     content.URL,
		"items":   len(content.Paragraphs()),
	})

	return &delivery.Receipt{
		Sink:        s.Name(),
		RemoteID:    page.ID,
		Location:    page.URL,
		DeliveredAt: time.Now(),
	}, nil
}

// Schema returns the database schema, fetched once per sink
func (s *Sink) Schema(ctx context.Context) (*Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema != nil {
		return s.schema, nil
	}
	db, err := s.client.RetrieveDatabase(ctx, s.databaseID)
	if err != nil {
		return nil, err
	}
	s.schema = db
	return db, nil
}

// Prepare adds the type select options to the database
func (s *Sink) Prepare(ctx context.Context) error {
	options := make([]SelectOption, 0, len(optionColors))
	for _, t := range []string{models.TypeSingle, models.TypeThread, models.TypeMediaOnly, models.TypePage} {
		options = append(options, SelectOption{Name: s.mapper.label(t), Color: optionColors[t]})
	}
	if err := s.client.EnsureSelectOptions(ctx, s.databaseID, TypeProperty, options); err != nil {
		return err
	}

	s.mu.Lock()
	s.schema = nil
	s.mu.Unlock()
	return nil
}
