package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "notionx/pkg/errors"
	"notionx/pkg/logger"
	"notionx/pkg/queue"
	"notionx/pkg/retry"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
	Header http.Header
}

// fakeNotion records requests and answers from a handler table keyed by "METHOD path"
type fakeNotion struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]http.HandlerFunc
}

func newFakeNotion(t *testing.T) (*fakeNotion, *httptest.Server) {
	f := &fakeNotion{routes: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)

		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body, Header: r.Header.Clone()})
		h, ok := f.routes[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","status":404,"code":"object_not_found","message":"not found"}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeNotion) handle(route string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = h
}

func (f *fakeNotion) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func testClient(srv *httptest.Server, q *queue.Queue) *Client {
	return NewClient(Options{
		Token:   "ntn_test",
		BaseURL: srv.URL,
		Queue:   q,
		Logger:  logger.NewNopLogger(),
		Backoff: &retry.ConstantBackoff{Delay: time.Millisecond},
	})
}

func TestClientSendsHeaders(t *testing.T) {
	f, srv := newFakeNotion(t)
	f.handle("GET /databases/db1", jsonReply(200, `{"object":"database","id":"db1","title":[{"plain_text":"Inbox"}],"properties":{}}`))

	db, err := testClient(srv, nil).RetrieveDatabase(context.Background(), "db1")
	require.NoError(t, err)
	assert.Equal(t, "db1", db.ID)
	assert.Equal(t, "Inbox", db.Name())

	reqs := f.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer ntn_test", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, DefaultVersion, reqs[0].Header.Get("Notion-Version"))
}

func TestClientErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errs.Kind
	}{
		{"unauthorized", 401, `{"code":"unauthorized","message":"API token is invalid."}`, errs.KindUnauthorized},
		{"restricted", 404, `{"code":"restricted_resource","message":"no access"}`, errs.KindPermission},
		{"forbidden", 403, `{}`, errs.KindPermission},
		{"validation", 400, `{"code":"validation_error","message":"bad"}`, errs.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, srv := newFakeNotion(t)
			f.handle("GET /databases/db1", jsonReply(tt.status, tt.body))

			_, err := testClient(srv, nil).RetrieveDatabase(context.Background(), "db1")
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.KindOf(err))
			assert.Len(t, f.recorded(), 1, "non-transient failures are not retried")
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	f, srv := newFakeNotion(t)
	var calls atomic.Int32
	f.handle("GET /databases/db1", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			jsonReply(502, `{"code":"internal_server_error","message":"oops"}`)(w, r)
			return
		}
		jsonReply(200, `{"object":"database","id":"db1","properties":{}}`)(w, r)
	})

	db, err := testClient(srv, nil).RetrieveDatabase(context.Background(), "db1")
	require.NoError(t, err)
	assert.Equal(t, "db1", db.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientServerErrorRetryKeepsQueuePace(t *testing.T) {
	f, srv := newFakeNotion(t)
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	f.handle("GET /databases/db1", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		first := len(starts) == 1
		mu.Unlock()
		if first {
			jsonReply(503, `{"code":"service_unavailable","message":"busy"}`)(w, r)
			return
		}
		jsonReply(200, `{"object":"database","id":"db1","properties":{}}`)(w, r)
	})

	q := queue.New(queue.Config{RequestsPerSecond: 3}, logger.NewNopLogger())
	defer q.Close()
	client := testClient(srv, q)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.RetrieveDatabase(context.Background(), "db1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 5, "one retry plus four requests")
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, 300*time.Millisecond, "start %d followed the previous one after %v", i, gap)
	}
	for i := range starts {
		inWindow := 0
		for _, s := range starts[i:] {
			if s.Sub(starts[i]) < time.Second {
				inWindow++
			}
		}
		assert.LessOrEqual(t, inWindow, 3, "HTTP starts in the second after start %d", i)
	}
}

func TestClientRateLimitCarriesRetryAfter(t *testing.T) {
	f, srv := newFakeNotion(t)
	f.handle("GET /databases/db1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		jsonReply(429, `{"code":"rate_limited","message":"slow down"}`)(w, r)
	})

	_, err := testClient(srv, nil).RetrieveDatabase(context.Background(), "db1")
	require.Error(t, err)

	d := errs.DirectiveFor(err)
	assert.Equal(t, errs.DirectiveRateLimited, d.Kind)
	assert.Equal(t, 7*time.Second, d.RetryAfter)
	assert.Len(t, f.recorded(), 1)
}

func TestClientThroughQueueRetriesRateLimit(t *testing.T) {
	f, srv := newFakeNotion(t)
	var calls atomic.Int32
	f.handle("POST /pages", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.03")
			jsonReply(429, `{"code":"rate_limited"}`)(w, r)
			return
		}
		jsonReply(200, `{"object":"page","id":"p1","url":"https://notion.so/p1"}`)(w, r)
	})

	q := queue.New(queue.Config{RequestsPerSecond: 100}, logger.NewNopLogger())
	defer q.Close()

	page, err := testClient(srv, q).CreatePage(context.Background(), &CreatePageRequest{Parent: Parent{DatabaseID: "db1"}})
	require.NoError(t, err)
	assert.Equal(t, "p1", page.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchDatabasesFollowsCursor(t *testing.T) {
	f, srv := newFakeNotion(t)
	f.handle("POST /search", func(w http.ResponseWriter, r *http.Request) {
		reqs := f.recorded()
		last := reqs[len(reqs)-1]
		if last.Body["start_cursor"] == nil {
			jsonReply(200, `{"results":[{"id":"a"}],"has_more":true,"next_cursor":"c2"}`)(w, r)
			return
		}
		jsonReply(200, `{"results":[{"id":"b"}],"has_more":false}`)(w, r)
	})

	dbs, err := testClient(srv, nil).SearchDatabases(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, dbs, 2)
	assert.Equal(t, "a", dbs[0].ID)
	assert.Equal(t, "b", dbs[1].ID)

	first := f.recorded()[0].Body
	assert.Equal(t, map[string]any{"property": "object", "value": "database"}, first["filter"])
	assert.Equal(t, float64(100), first["page_size"])
}

func TestAppendBlocksBatches(t *testing.T) {
	f, srv := newFakeNotion(t)
	f.handle("PATCH /blocks/p1/children", jsonReply(200, `{}`))

	items := make([]string, 60)
	for i := range items {
		items[i] = "item"
	}
	blocks := TextBlocks(items)
	require.Len(t, blocks, 120)

	require.NoError(t, testClient(srv, nil).AppendBlocks(context.Background(), "p1", blocks))

	reqs := f.recorded()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Body["children"], 100)
	assert.Len(t, reqs[1].Body["children"], 20)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Equal(t, 500*time.Millisecond, parseRetryAfter("0.5"))
}
