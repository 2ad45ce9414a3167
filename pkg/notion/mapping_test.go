package notion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notionx/pkg/config"
	"notionx/pkg/models"
)

func schemaOf(cols map[string]string) *Database {
	db := &Database{ID: "db1", Properties: map[string]PropertySchema{}}
	for name, typ := range cols {
		db.Properties[name] = PropertySchema{Name: name, Type: typ}
	}
	return db
}

func sampleContent() *models.Content {
	c := models.NewThreadContent("https://x.com/alice/status/1", []string{"first\n\nline", "second"}, models.TypeThread)
	c.Author = "Alice"
	c.Stats = models.Stats{Comments: 3, Reposts: 4, Likes: 5, Bookmarks: 6, Views: "1.2K", CreatedTime: "2024-05-01T10:00:00Z"}
	c.Tags = []string{"go"}
	return c
}

func TestPropertiesTemplateDatabase(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := &Mapper{Labels: config.DefaultTypeLabels(), Now: func() time.Time { return now }}

	db := schemaOf(map[string]string{
		"推文开头":    "title",
		"内容":      "rich_text",
		"作者":      "rich_text",
		"链接":      "url",
		"点赞数":     "number",
		"主推文浏览量":  "rich_text",
		"类型":      "select",
		"标签":      "multi_select",
		"Created": "date",
	})

	props := m.Properties(db, sampleContent())

	assert.Equal(t, richText("first\nline"), props["推文开头"]["title"])
	assert.Equal(t, richText("first\n\nline"+models.ItemSeparator+"second"), props["内容"]["rich_text"])
	assert.Equal(t, richText("@alice"), props["作者"]["rich_text"])
	assert.Equal(t, "https://x.com/alice/status/1", props["链接"]["url"])
	assert.Equal(t, float64(5), props["点赞数"]["number"])
	assert.Equal(t, richText("1.2K"), props["主推文浏览量"]["rich_text"])
	assert.Equal(t, map[string]string{"name": "线程"}, props["类型"]["select"])
	assert.Equal(t, []map[string]string{{"name": "go"}}, props["标签"]["multi_select"])
	assert.Equal(t, map[string]string{"start": "2024-06-01T12:00:00Z"}, props["Created"]["date"])
}

func TestPropertiesUnknownColumnsGetDefaults(t *testing.T) {
	m := &Mapper{}
	db := schemaOf(map[string]string{
		"Name":     "title",
		"Notes":    "rich_text",
		"Source":   "url",
		"Score":    "number",
		"Stage":    "select",
		"Labels":   "multi_select",
		"Due":      "date",
		"Owner":    "people",
		"Done":     "checkbox",
		"Formula":  "formula",
		"Modified": "last_edited_time",
	})

	props := m.Properties(db, sampleContent())

	assert.Equal(t, richText("first\n\nline"), props["Name"]["title"], "title column falls back to the content title")
	assert.Equal(t, []RichText{}, props["Notes"]["rich_text"])
	assert.Nil(t, props["Source"]["url"])
	assert.Equal(t, 0, props["Score"]["number"])
	assert.Nil(t, props["Stage"]["select"])
	assert.Equal(t, []map[string]string{}, props["Labels"]["multi_select"])
	assert.Nil(t, props["Due"]["date"])
	assert.Equal(t, []any{}, props["Owner"]["people"])
	assert.Equal(t, false, props["Done"]["checkbox"])
	assert.NotContains(t, props, "Formula")
	assert.NotContains(t, props, "Modified")
}

func TestPropertiesNumberFromCounterText(t *testing.T) {
	db := schemaOf(map[string]string{"主推文浏览量": "number"})
	props := (&Mapper{}).Properties(db, sampleContent())
	assert.Equal(t, float64(1200), props["主推文浏览量"]["number"])
}

func TestRichTextTruncatesProperty(t *testing.T) {
	long := make([]rune, MaxRichTextLength+50)
	for i := range long {
		long[i] = '字'
	}
	rt := richText(string(long))
	require.Len(t, rt, 1)
	assert.Len(t, []rune(rt[0].Text.Content), MaxRichTextLength)
}

func TestTextBlocksChunkLongItems(t *testing.T) {
	long := make([]byte, MaxRichTextLength*2+10)
	for i := range long {
		long[i] = 'a'
	}
	blocks := TextBlocks([]string{string(long), "short"})
	require.Len(t, blocks, 4)
	assert.Equal(t, "paragraph", blocks[0].Type)
	assert.Len(t, blocks[0].Paragraph.RichText, 3)
	assert.Equal(t, "divider", blocks[1].Type)
	assert.Equal(t, "short", blocks[2].Paragraph.RichText[0].Text.Content)
}

func TestFormatPostTimePassesThroughUnparsed(t *testing.T) {
	assert.Equal(t, "yesterday", formatPostTime("yesterday"))
	assert.NotEqual(t, "2024-05-01T10:00:00Z", formatPostTime("2024-05-01T10:00:00Z"))
}
