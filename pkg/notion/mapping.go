package notion

import (
	"strconv"
	"strings"
	"time"

	"notionx/pkg/models"
)

// Mapper turns a content bundle into page properties that fit a database schema.
// Columns are matched by name through the field table; unmatched columns get the
// empty value of their type.
type Mapper struct {
	Labels map[string]string
	Now    func() time.Time
}

// MappingFunc extracts the raw value for one named column. The value is one of
// string, int, time.Time, []string, bool or nil, and is encoded according to
// the column type.
type MappingFunc func(m *Mapper, c *models.Content) any

// fieldMappers maps column names to extractors. English aliases cover databases
// created outside the Chinese template.
var fieldMappers = map[string]MappingFunc{
	"标题":       func(_ *Mapper, c *models.Content) any { return c.Title },
	"内容":       func(_ *Mapper, c *models.Content) any { return c.Body },
	"作者":       func(_ *Mapper, c *models.Content) any { return c.AuthorHandle() },
	"链接":       func(_ *Mapper, c *models.Content) any { return c.URL },
	"评论数":      func(_ *Mapper, c *models.Content) any { return c.Stats.Comments },
	"转发数":      func(_ *Mapper, c *models.Content) any { return c.Stats.Reposts },
	"点赞数":      func(_ *Mapper, c *models.Content) any { return c.Stats.Likes },
	"收藏数":      func(_ *Mapper, c *models.Content) any { return c.Stats.Bookmarks },
	"主推文浏览量":   func(_ *Mapper, c *models.Content) any { return c.Stats.Views },
	"第二条推文浏览量": func(_ *Mapper, c *models.Content) any { return c.Stats.SecondViews },
	"发推时间":     func(_ *Mapper, c *models.Content) any { return formatPostTime(c.Stats.CreatedTime) },
	"推文开头":     func(_ *Mapper, c *models.Content) any { return c.Lead() },
	"类型":       func(m *Mapper, c *models.Content) any { return m.label(c.Type) },
	"标签":       func(_ *Mapper, c *models.Content) any { return c.Tags },
	"Created":  func(m *Mapper, _ *models.Content) any { return m.now() },

	"Title":   func(_ *Mapper, c *models.Content) any { return c.Title },
	"Content": func(_ *Mapper, c *models.Content) any { return c.Body },
	"Author":  func(_ *Mapper, c *models.Content) any { return c.AuthorHandle() },
	"URL":     func(_ *Mapper, c *models.Content) any { return c.URL },
	"Type":    func(m *Mapper, c *models.Content) any { return m.label(c.Type) },
	"Tags":    func(_ *Mapper, c *models.Content) any { return c.Tags },
}

// readOnly column types are computed by Notion and must not be sent
var readOnly = map[string]bool{
	"created_time":     true,
	"last_edited_time": true,
	"created_by":       true,
	"last_edited_by":   true,
	"formula":          true,
	"rollup":           true,
	"unique_id":        true,
	"button":           true,
	"verification":     true,
}

// Properties builds the property map for a new page in db
func (m *Mapper) Properties(db *Database, c *models.Content) map[string]PropertyValue {
	props := make(map[string]PropertyValue, len(db.Properties))
	for name, schema := range db.Properties {
		if readOnly[schema.Type] {
			continue
		}

		var raw any
		if fn, ok := fieldMappers[name]; ok {
			raw = fn(m, c)
		} else if schema.Type == "title" {
			raw = c.Title
		}

		if v := encode(schema.Type, raw); v != nil {
			props[name] = v
		}
	}
	return props
}

func (m *Mapper) label(contentType string) string {
	if l, ok := m.Labels[contentType]; ok {
		return l
	}
	return contentType
}

func (m *Mapper) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// typeDefaults is the value written to a column the content has nothing for
var typeDefaults = map[string]any{
	"title":        []RichText{},
	"rich_text":    []RichText{},
	"url":          nil,
	"number":       0,
	"select":       nil,
	"multi_select": []map[string]string{},
	"date":         nil,
	"people":       []any{},
	"files":        []any{},
	"checkbox":     false,
	"email":        nil,
	"phone_number": nil,
	"status":       nil,
	"relation":     []any{},
}

// encode renders raw as a value of the given column type. A nil raw value
// yields the type's default. Unknown types return nil.
func encode(propType string, raw any) PropertyValue {
	def, known := typeDefaults[propType]
	if !known {
		return nil
	}
	if raw == nil {
		return PropertyValue{propType: def}
	}

	switch propType {
	case "title", "rich_text":
		return PropertyValue{propType: richText(asString(raw))}
	case "url", "email", "phone_number":
		if s := asString(raw); s != "" {
			return PropertyValue{propType: s}
		}
	case "number":
		if n, ok := asNumber(raw); ok {
			return PropertyValue{propType: n}
		}
	case "select", "status":
		if s := asString(raw); s != "" {
			return PropertyValue{propType: map[string]string{"name": s}}
		}
	case "multi_select":
		names := asStrings(raw)
		opts := make([]map[string]string, 0, len(names))
		for _, n := range names {
			opts = append(opts, map[string]string{"name": n})
		}
		return PropertyValue{propType: opts}
	case "date":
		if t, ok := asTime(raw); ok {
			return PropertyValue{propType: map[string]string{"start": t.Format(time.RFC3339)}}
		}
	case "checkbox":
		if b, ok := raw.(bool); ok {
			return PropertyValue{propType: b}
		}
	}
	return PropertyValue{propType: def}
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case time.Time:
		return v.Format(postTimeLayout)
	case []string:
		return strings.Join(v, ", ")
	default:
		return ""
	}
}

func asStrings(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func asNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	case string:
		n, err := models.ParseCount(v)
		return float64(n), err == nil
	default:
		return 0, false
	}
}

func asTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		t, err := time.Parse(time.RFC3339, v)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

const postTimeLayout = "2006/01/02 15:04"

// formatPostTime renders an RFC 3339 timestamp in local time, other input passes through
func formatPostTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format(postTimeLayout)
}
