package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"unicode/utf8"
)

const (
	// MaxRichTextLength is the longest content a single rich text element may carry
	MaxRichTextLength = 2000
	// MaxBlocksPerRequest is the most children one append call accepts
	MaxBlocksPerRequest = 100
	searchPageSize      = 100
)

// RetrieveDatabase fetches a database and its property schema
func (c *Client) RetrieveDatabase(ctx context.Context, id string) (*Database, error) {
	var db Database
	if err := c.do(ctx, http.MethodGet, "/databases/"+url.PathEscape(id), nil, &db); err != nil {
		return nil, fmt.Errorf("retrieve database %s: %w", id, err)
	}
	return &db, nil
}

// SearchDatabases lists every database shared with the integration, following pagination
func (c *Client) SearchDatabases(ctx context.Context, query string) ([]Database, error) {
	var all []Database
	cursor := ""
	for {
		req := searchRequest{
			Query:    query,
			Filter:   map[string]string{"property": "object", "value": "database"},
			PageSize: searchPageSize,
			Cursor:   cursor,
		}
		var resp searchResponse
		if err := c.do(ctx, http.MethodPost, "/search", req, &resp); err != nil {
			return nil, fmt.Errorf("search databases: %w", err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// CreatePage creates a page. Children beyond the per-request limit must be appended separately.
func (c *Client) CreatePage(ctx context.Context, req *CreatePageRequest) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", req, &page); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &page, nil
}

// AppendBlocks appends children to a block or page in batches of MaxBlocksPerRequest
func (c *Client) AppendBlocks(ctx context.Context, blockID string, blocks []Block) error {
	for start := 0; start < len(blocks); start += MaxBlocksPerRequest {
		end := min(start+MaxBlocksPerRequest, len(blocks))
		body := appendBlocksRequest{Children: blocks[start:end]}
		path := "/blocks/" + url.PathEscape(blockID) + "/children"
		if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
			return fmt.Errorf("append blocks %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// EnsureSelectOptions adds options to a select column, creating the column if needed.
// Notion merges the given options with the existing ones.
func (c *Client) EnsureSelectOptions(ctx context.Context, databaseID, property string, options []SelectOption) error {
	body := updateDatabaseRequest{
		Properties: map[string]any{
			property: map[string]any{
				"select": map[string]any{"options": options},
			},
		},
	}
	path := "/databases/" + url.PathEscape(databaseID)
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("update database %s: %w", databaseID, err)
	}
	return nil
}

// TextBlocks renders each item as a paragraph followed by a divider
func TextBlocks(items []string) []Block {
	blocks := make([]Block, 0, len(items)*2)
	for _, item := range items {
		blocks = append(blocks,
			Block{Object: "block", Type: "paragraph", Paragraph: &Paragraph{RichText: chunkedRichText(item)}},
			Block{Object: "block", Type: "divider", Divider: &struct{}{}},
		)
	}
	return blocks
}

// richText builds a single element, truncated to MaxRichTextLength runes
func richText(s string) []RichText {
	if s == "" {
		return []RichText{}
	}
	return []RichText{{Type: "text", Text: &Text{Content: truncateRunes(s, MaxRichTextLength)}}}
}

// chunkedRichText splits s into elements of at most MaxRichTextLength runes
func chunkedRichText(s string) []RichText {
	out := []RichText{}
	for s != "" {
		chunk := truncateRunes(s, MaxRichTextLength)
		out = append(out, RichText{Type: "text", Text: &Text{Content: chunk}})
		s = s[len(chunk):]
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
