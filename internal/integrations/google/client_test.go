package google

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"sr-chatbot/internal/infra/resilience"
	"sr-chatbot/internal/statement"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

type recorded struct {
	method string
	path   string
	query  string
	body   string
	ctype  string
}

// fakeGoogle records every request and answers from handlers keyed by
// "METHOD path".
type fakeGoogle struct {
	mu       sync.Mutex
	requests []recorded
	handlers map[string]http.HandlerFunc
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(body), r.Header.Get("Content-Type")})
	f.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if h, ok := f.handlers[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *fakeGoogle) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeGoogle) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.method == method && r.path == path {
			n++
		}
	}
	return n
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

const metaBody = `{"sheets":[{"properties":{"sheetId":0,"title":"Single"}},{"properties":{"sheetId":77,"title":"Multi"}}]}`

func newFakeClient(t *testing.T, handlers map[string]http.HandlerFunc) (*Client, *fakeGoogle) {
	t.Helper()
	fake := &fakeGoogle{handlers: handlers}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(staticTokens("test-token"), "folder-1", resilience.Config{MaxRetries: 2}, nil,
		WithBaseURLs(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, fake
}

func TestNewClient_RequiresTokens(t *testing.T) {
	_, err := NewClient(nil, "", resilience.Config{}, nil)
	require.Error(t, err)
}

func TestReadRange(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"GET /sheets/spreadsheets/book-1/values/Contract Report!A:M": reply(200,
			`{"range":"'Contract Report'!A1:M3","values":[["Contract ID","Company Name"],["C-1","Acme"]]}`),
	})
	rows, err := c.ReadRange(context.Background(), "book-1", "Contract Report!A:M")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Contract ID", "Company Name"}, {"C-1", "Acme"}}, rows)
	require.Equal(t, http.MethodGet, fake.last().method)
}

func TestReadRange_MissingTabIsTableNotFound(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"GET /sheets/spreadsheets/book-1/values/Account Statement (3)!A:Z": reply(400,
			`{"error":{"code":400,"message":"Unable to parse range: 'Account Statement (3)'!A:Z"}}`),
	})
	_, err := c.ReadRange(context.Background(), "book-1", "Account Statement (3)!A:Z")
	require.ErrorIs(t, err, statement.ErrTableNotFound)
	require.Equal(t, 1, fake.count(http.MethodGet, "/sheets/spreadsheets/book-1/values/Account Statement (3)!A:Z"))
}

func TestReadRange_RetriesServerErrors(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"GET /sheets/spreadsheets/book-1/values/X!A:B": reply(503, `unavailable`),
	})
	_, err := c.ReadRange(context.Background(), "book-1", "X!A:B")
	require.Error(t, err)
	require.NotErrorIs(t, err, statement.ErrTableNotFound)
	require.Equal(t, 3, fake.count(http.MethodGet, "/sheets/spreadsheets/book-1/values/X!A:B"))
}

func TestReadRange_ForbiddenIsNotRetried(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"GET /sheets/spreadsheets/book-1/values/X!A:B": reply(403, `forbidden`),
	})
	_, err := c.ReadRange(context.Background(), "book-1", "X!A:B")
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 403, se.HTTPStatusCode())
	require.Equal(t, 1, fake.count(http.MethodGet, "/sheets/spreadsheets/book-1/values/X!A:B"))
}

func TestWriteCells(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"POST /sheets/spreadsheets/doc-1/values:batchUpdate": reply(200, `{}`),
	})
	err := c.WriteCells(context.Background(), "doc-1", "Single", []statement.CellRange{
		{Anchor: "A10", Values: [][]string{{"Acme Rentals"}}},
		{Anchor: "A17", Values: [][]string{{"2026-01-01", "INV-1", "100.00"}}},
	})
	require.NoError(t, err)

	var got struct {
		ValueInputOption string `json:"valueInputOption"`
		Data             []struct {
			Range  string     `json:"range"`
			Values [][]string `json:"values"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(fake.last().body), &got))
	require.Equal(t, "USER_ENTERED", got.ValueInputOption)
	require.Equal(t, "'Single'!A10", got.Data[0].Range)
	require.Equal(t, "'Single'!A17", got.Data[1].Range)
	require.Equal(t, []string{"2026-01-01", "INV-1", "100.00"}, got.Data[1].Values[0])

	require.NoError(t, c.WriteCells(context.Background(), "doc-1", "Single", nil))
}

func TestInsertRowsAndHighlight(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"GET /sheets/spreadsheets/doc-1":              reply(200, metaBody),
		"POST /sheets/spreadsheets/doc-1:batchUpdate": reply(200, `{}`),
	})

	require.NoError(t, c.InsertRows(context.Background(), "doc-1", "Multi", 17, 3, 15))
	body := fake.last().body
	require.Contains(t, body, `"insertDimension"`)
	require.Contains(t, body, `"startIndex":16`)
	require.Contains(t, body, `"endIndex":19`)
	require.Contains(t, body, `"sheetId":77`)
	require.Contains(t, body, `"pasteType":"PASTE_FORMAT"`)
	require.Contains(t, body, `"startRowIndex":14`)

	color := statement.Color{Red: 1, Green: 0.9, Blue: 0.6}
	require.NoError(t, c.HighlightRows(context.Background(), "doc-1", "Multi", []int{16, 20}, 7, color))
	body = fake.last().body
	require.Equal(t, 2, strings.Count(body, `"repeatCell"`))
	require.Contains(t, body, `"endRowIndex":16`)
	require.Contains(t, body, `"startRowIndex":15`)
	require.Contains(t, body, `"endColumnIndex":7`)
	require.Contains(t, body, `"green":0.9`)

	err := c.InsertRows(context.Background(), "doc-1", "Missing", 17, 1, 15)
	require.ErrorIs(t, err, statement.ErrTableNotFound)
}

func TestDeleteTab(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"GET /sheets/spreadsheets/doc-1":              reply(200, metaBody),
		"POST /sheets/spreadsheets/doc-1:batchUpdate": reply(200, `{}`),
	})
	require.NoError(t, c.DeleteTab(context.Background(), "doc-1", "Multi"))
	require.JSONEq(t, `{"requests":[{"deleteSheet":{"sheetId":77}}]}`, fake.last().body)

	require.NoError(t, c.DeleteTab(context.Background(), "doc-1", "Gone"))
	require.Equal(t, 1, fake.count(http.MethodPost, "/sheets/spreadsheets/doc-1:batchUpdate"))
}

func TestCopy(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"POST /drive/files/tpl-1/copy": reply(200, `{"id":"copy-9","name":"Statement_Single_C-1"}`),
	})
	id, err := c.Copy(context.Background(), "tpl-1", "Statement_Single_C-1")
	require.NoError(t, err)
	require.Equal(t, "copy-9", id)
	require.JSONEq(t, `{"name":"Statement_Single_C-1","parents":["folder-1"]}`, fake.last().body)
	require.Contains(t, fake.last().query, "supportsAllDrives=true")
}

func TestExportAsDocument(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"GET /sheets/spreadsheets/doc-1": reply(200, metaBody),
		"GET /export/doc-1/export":       reply(200, "%PDF-1.4"),
	})
	pdf, err := c.ExportAsDocument(context.Background(), "doc-1", "Multi")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), pdf)
	q := fake.last().query
	require.Contains(t, q, "format=pdf")
	require.Contains(t, q, "gridlines=false")
	require.Contains(t, q, "gid=77")
}

func TestStoreUploadsMultipart(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"POST /upload/files": reply(200, `{"id":"pdf-1"}`),
	})
	id, err := c.Store(context.Background(), []byte("%PDF"), "Statement.pdf")
	require.NoError(t, err)
	require.Equal(t, "pdf-1", id)

	last := fake.last()
	require.Contains(t, last.query, "uploadType=multipart")
	mediaType, params, err := mime.ParseMediaType(last.ctype)
	require.NoError(t, err)
	require.Equal(t, "multipart/related", mediaType)

	mr := multipart.NewReader(strings.NewReader(last.body), params["boundary"])
	meta, err := mr.NextPart()
	require.NoError(t, err)
	metaJSON, _ := io.ReadAll(meta)
	require.JSONEq(t, `{"name":"Statement.pdf","parents":["folder-1"]}`, string(metaJSON))
	file, err := mr.NextPart()
	require.NoError(t, err)
	require.Equal(t, "application/pdf", file.Header.Get("Content-Type"))
	content, _ := io.ReadAll(file)
	require.Equal(t, "%PDF", string(content))
}

func TestStoreRetriesRateLimit(t *testing.T) {
	calls := 0
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"POST /upload/files": func(w http.ResponseWriter, _ *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"id":"pdf-2"}`))
		},
	})
	id, err := c.Store(context.Background(), []byte("%PDF"), "Statement.pdf")
	require.NoError(t, err)
	require.Equal(t, "pdf-2", id)
	require.Equal(t, 2, fake.count(http.MethodPost, "/upload/files"))
}

func TestShareableLink(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"POST /drive/files/pdf-1/permissions": reply(200, `{"id":"anyoneWithLink"}`),
	})
	link, err := c.ShareableLink(context.Background(), "pdf-1")
	require.NoError(t, err)
	require.Equal(t, "https://drive.google.com/file/d/pdf-1/view", link)
	require.JSONEq(t, `{"role":"reader","type":"anyone"}`, fake.last().body)
}

func TestDiscard(t *testing.T) {
	c, fake := newFakeClient(t, map[string]http.HandlerFunc{
		"PATCH /drive/files/doc-1": reply(200, `{}`),
	})
	require.NoError(t, c.Discard(context.Background(), "doc-1"))
	require.JSONEq(t, `{"trashed":true}`, fake.last().body)

	require.NoError(t, c.Discard(context.Background(), "already-gone"))

	c, _ = newFakeClient(t, map[string]http.HandlerFunc{
		"PATCH /drive/files/doc-1": reply(403, `denied`),
	})
	require.Error(t, c.Discard(context.Background(), "doc-1"))
}
