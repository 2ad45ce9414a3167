package notion

// RichText is a Notion rich text element
type RichText struct {
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
}

// Text is the content of a text rich text element
type Text struct {
	Content string `json:"content"`
}

// SelectOption is an option of a select or multi_select property
type SelectOption struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// PropertySchema describes one database column
type PropertySchema struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Select *SelectSchema `json:"select,omitempty"`
}

// SelectSchema lists the options of a select column
type SelectSchema struct {
	Options []SelectOption `json:"options"`
}

// Database is the subset of a Notion database object notionx reads
type Database struct {
	Object     string                    `json:"object"`
	ID         string                    `json:"id"`
	URL        string                    `json:"url"`
	Title      []RichText                `json:"title"`
	Properties map[string]PropertySchema `json:"properties"`
}

// Name returns the plain text title of the database
func (d *Database) Name() string {
	var s string
	for _, t := range d.Title {
		if t.PlainText != "" {
			s += t.PlainText
		} else if t.Text != nil {
			s += t.Text.Content
		}
	}
	return s
}

// Page is a created Notion page
type Page struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	URL    string `json:"url"`
}

// PropertyValue is the JSON value of one page property
type PropertyValue map[string]any

// Parent identifies where a page is created
type Parent struct {
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
}

// File is an external file reference, used for covers
type File struct {
	Type     string        `json:"type"`
	External *ExternalFile `json:"external,omitempty"`
}

// ExternalFile points at a URL outside Notion
type ExternalFile struct {
	URL string `json:"url"`
}

// CreatePageRequest is the body of POST /pages
type CreatePageRequest struct {
	Parent     Parent                   `json:"parent"`
	Properties map[string]PropertyValue `json:"properties"`
	Cover      *File                    `json:"cover,omitempty"`
	Children   []Block                  `json:"children,omitempty"`
}

// Block is a Notion block. Only paragraphs and dividers are produced.
type Block struct {
	Object    string     `json:"object"`
	Type      string     `json:"type"`
	Paragraph *Paragraph `json:"paragraph,omitempty"`
	Divider   *struct{}  `json:"divider,omitempty"`
}

// Paragraph is the payload of a paragraph block
type Paragraph struct {
	RichText []RichText `json:"rich_text"`
}

type appendBlocksRequest struct {
	Children []Block `json:"children"`
}

type searchRequest struct {
	Query    string            `json:"query,omitempty"`
	Filter   map[string]string `json:"filter"`
	PageSize int               `json:"page_size"`
	Cursor   string            `json:"start_cursor,omitempty"`
}

type searchResponse struct {
	Results    []Database `json:"results"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor"`
}

type updateDatabaseRequest struct {
	Properties map[string]any `json:"properties"`
}

// apiError is the error body returned by the Notion API
type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
