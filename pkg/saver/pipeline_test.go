package saver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notionx/pkg/archive"
	"notionx/pkg/config"
	"notionx/pkg/delivery"
	"notionx/pkg/extractor"
	"notionx/pkg/logger"
	"notionx/pkg/notion"
	"notionx/pkg/queue"
	"notionx/pkg/retry"
	"notionx/pkg/storage"
	"notionx/pkg/thread"
)

const schemaJSON = `{
  "object": "database",
  "id": "db-1",
  "title": [{"type": "text", "plain_text": "Reading list"}],
  "properties": {
    "标题": {"id": "title", "name": "标题", "type": "title"},
    "作者": {"id": "a", "name": "作者", "type": "rich_text"},
    "链接": {"id": "b", "name": "链接", "type": "url"},
    "类型": {"id": "c", "name": "类型", "type": "select"},
    "点赞数": {"id": "d", "name": "点赞数", "type": "number"}
  }
}`

// TestPipelineSnapshotToNotion runs a saved thread through the walker, the
// Notion sink behind the request queue, the markdown export and the journal.
// The first page creation is throttled and must be retried by the queue alone.
func TestPipelineSnapshotToNotion(t *testing.T) {
	var (
		mu        sync.Mutex
		pageBody  map[string]any
		appended  int
		pageCalls atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		data, _ := io.ReadAll(r.Body)

		switch r.Method + " " + r.URL.Path {
		case "GET /databases/db-1":
			_, _ = w.Write([]byte(schemaJSON))
		case "POST /pages":
			if pageCalls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0.02")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`))
				return
			}
			mu.Lock()
			_ = json.Unmarshal(data, &pageBody)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"object":"page","id":"page-1","url":"https://www.notion.so/page-1"}`))
		case "PATCH /blocks/page-1/children":
			var body struct {
				Children []any `json:"children"`
			}
			_ = json.Unmarshal(data, &body)
			mu.Lock()
			appended += len(body.Children)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"object":"list","results":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","status":404,"code":"object_not_found","message":"not found"}`))
		}
	}))
	defer srv.Close()

	log := logger.NewNopLogger()
	q := queue.New(queue.Config{RequestsPerSecond: 100, DefaultRetryAfter: 10 * time.Millisecond, MaxThrottleRetries: 3}, log)
	defer q.Close()

	client := notion.NewClient(notion.Options{
		Token:   "ntn_test",
		BaseURL: srv.URL,
		Queue:   q,
		Logger:  log,
		Backoff: &retry.ConstantBackoff{Delay: time.Millisecond},
	})
	sink := notion.NewSink(client, "db-1", config.DefaultTypeLabels(), log)

	md, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	journal, err := archive.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer journal.Close()

	s, err := New(Deps{
		Opener:   snapshotOpener(),
		Registry: extractor.DefaultRegistry(thread.NewWalker(thread.Limits{}, log), log),
		Sinks:    []delivery.Sink{sink, md},
		Journal:  journal,
		Logger:   log,
	})
	require.NoError(t, err)

	out, err := s.Save(context.Background(), threadURL, false)
	require.NoError(t, err)
	require.Len(t, out.Receipts, 2)
	assert.Equal(t, "page-1", out.Receipts[0].RemoteID)
	assert.Equal(t, int32(2), pageCalls.Load(), "throttled create is retried once")

	mu.Lock()
	props := pageBody["properties"].(map[string]any)
	mu.Unlock()
	sel := props["类型"].(map[string]any)["select"].(map[string]any)
	assert.Equal(t, "线程", sel["name"])
	assert.Equal(t, threadURL, props["链接"].(map[string]any)["url"])
	// one paragraph and one divider per item
	assert.Equal(t, 6, appended)

	entries, err := journal.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, md.GetSavedCount())
}
