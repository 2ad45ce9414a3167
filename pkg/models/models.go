package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ItemSeparator joins thread items in Content.Body
const ItemSeparator = "\n\n---\n\n"

// Content types
const (
	TypeSingle    = "single"
	TypeThread    = "thread"
	TypeMediaOnly = "media_only"
	TypePage      = "page"
)

// Content is the bundle handed to delivery sinks
type Content struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	FirstItem string   `json:"first_item,omitempty"`
	Body      string   `json:"body"`
	Items     []string `json:"items,omitempty"`
	Author    string   `json:"author,omitempty"`
	Cover     string   `json:"cover,omitempty"`
	Type      string   `json:"type"`
	Source    string   `json:"source"`
	Stats     Stats    `json:"stats"`
	Tags      []string `json:"tags,omitempty"`

	ExtractedAt time.Time `json:"extracted_at"`
	// Reason is why the thread walk stopped, empty for pages
	Reason string `json:"reason,omitempty"`
}

// Stats are the engagement counters shown on the anchor post
type Stats struct {
	CreatedTime string `json:"created_time,omitempty"`
	Comments    int    `json:"comments"`
	Reposts     int    `json:"reposts"`
	Likes       int    `json:"likes"`
	Bookmarks   int    `json:"bookmarks"`
	Views       string `json:"views,omitempty"`
	SecondViews string `json:"second_views,omitempty"`
}

// NewThreadContent builds a content bundle from the collected item texts.
// The first item doubles as the title.
func NewThreadContent(url string, items []string, contentType string) *Content {
	c := &Content{
		URL:         url,
		Items:       items,
		Type:        contentType,
		Body:        strings.Join(items, ItemSeparator),
		ExtractedAt: time.Now(),
	}
	if len(items) > 0 {
		c.Title = items[0]
		c.FirstItem = items[0]
	}
	return c
}

// Paragraphs returns the items, or the body split on the item separator
func (c *Content) Paragraphs() []string {
	if len(c.Items) > 0 {
		return c.Items
	}
	if c.Body == "" {
		return nil
	}
	return strings.Split(c.Body, ItemSeparator)
}

var handlePattern = regexp.MustCompile(`(?:twitter|x)\.com/([^/?#]+)`)

// AuthorHandle returns "@name" taken from a status URL, falling back to Author
func (c *Content) AuthorHandle() string {
	if m := handlePattern.FindStringSubmatch(c.URL); m != nil {
		return "@" + m[1]
	}
	return c.Author
}

// Lead returns the first item with blank lines removed
func (c *Content) Lead() string {
	var lines []string
	for _, line := range strings.Split(c.FirstItem, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ParseCount reads counters as rendered on a page: "1,234", "1.2K", "3M"
func ParseCount(s string) (int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, nil
	}
	mult := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		mult = 1e3
	case "M":
		mult = 1e6
	case "B":
		mult = 1e9
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f*mult + 0.5), nil
}
