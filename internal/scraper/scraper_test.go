package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/thread_downloader/internal/downloader"
	"github.com/italolelis/thread_downloader/internal/http/client"
	"github.com/italolelis/thread_downloader/internal/page"
	"github.com/italolelis/thread_downloader/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBoard is an imageboard serving thread pages and their media over TLS,
// so scheme-relative media links resolve to it with the https: prefix.
type fakeBoard struct {
	srv   *httptest.Server
	host  string
	pages map[string]string
	media map[string]string

	mu       sync.Mutex
	requests []string
}

func newFakeBoard(t *testing.T) *fakeBoard {
	t.Helper()

	b := &fakeBoard{
		pages: map[string]string{},
		media: map[string]string{
			"111.jpg": "jpeg-bytes",
			"222.png": "png-bytes",
		},
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			b.requests = append(b.requests, req.URL.Path)
			b.mu.Unlock()

			next.ServeHTTP(w, req)
		})
	})
	r.Get("/notathread", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, "<title>Example - Not a thread</title>")
	})
	r.Get("/{board}/thread/{id}", func(w http.ResponseWriter, req *http.Request) {
		body, ok := b.pages[chi.URLParam(req, "id")]
		if !ok {
			http.NotFound(w, req)

			return
		}

		_, _ = io.WriteString(w, body)
	})
	r.Get("/{board}/{file}", func(w http.ResponseWriter, req *http.Request) {
		body, ok := b.media[chi.URLParam(req, "file")]
		if !ok {
			http.NotFound(w, req)

			return
		}

		_, _ = io.WriteString(w, body)
	})

	b.srv = httptest.NewTLSServer(r)
	b.host = b.srv.Listener.Addr().String()
	t.Cleanup(b.srv.Close)

	return b
}

func (b *fakeBoard) threadURL(id string) string {
	return b.srv.URL + "/g/thread/" + id
}

func (b *fakeBoard) mediaHref(name string) string {
	return "//" + b.host + "/g/" + name
}

func (b *fakeBoard) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.requests...)
}

func (b *fakeBoard) scraper(opts ...downloader.Option) *Scraper {
	c := client.New(client.WithHTTPClient(b.srv.Client()))

	return New(page.NewFetcher(c), downloader.NewDownloader(c, opts...), WithMediaHost(b.host))
}

func testThreadPage(b *fakeBoard, files ...string) string {
	body := "<html><head><title>/g/ - Test Thread - Technology - 4chan</title></head><body>"
	body += `<a href="/g/">board index</a>`

	for _, f := range files {
		body += fmt.Sprintf(`<div class="file"><a href="%s">%s</a></div>`, b.mediaHref(f), f)
	}

	return body + "</body></html>"
}

func TestSave_EndToEnd(t *testing.T) {
	b := newFakeBoard(t)
	b.pages["12345678"] = testThreadPage(b, "111.jpg", "222.png")

	root := t.TempDir()

	res, err := b.scraper().Save(context.Background(), thread.Request{URL: b.threadURL("12345678"), Dir: root})
	require.NoError(t, err)

	wantDir := filepath.Join(root, "Test_Thread")

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, wantDir, res.Dir)
	assert.Equal(t, "Test_Thread", res.Title)
	assert.Equal(t, []string{filepath.Join(wantDir, "111.jpg"), filepath.Join(wantDir, "222.png")}, res.Saved)
	assert.Empty(t, res.Failed)

	assert.Equal(t, []string{"/g/thread/12345678", "/g/111.jpg", "/g/222.png"}, b.Requests())

	got, err := os.ReadFile(filepath.Join(wantDir, "111.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(got))

	got, err = os.ReadFile(filepath.Join(wantDir, "222.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(got))
}

func TestSave_NotAThread(t *testing.T) {
	b := newFakeBoard(t)
	root := t.TempDir()

	res, err := b.scraper().Save(context.Background(), thread.Request{URL: b.srv.URL + "/notathread", Dir: root})

	var invalidErr *thread.InvalidURLError
	require.True(t, errors.As(err, &invalidErr), "expected InvalidURLError, got %T: %v", err, err)
	assert.Equal(t, thread.InvalidURLMessage, invalidErr.Reason)

	assert.Equal(t, StateFetched, res.State)
	assert.Empty(t, res.Title)
	assert.Empty(t, res.Links)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSave_ThreadNotFound(t *testing.T) {
	b := newFakeBoard(t)

	_, err := b.scraper().Save(context.Background(), thread.Request{URL: b.threadURL("404"), Dir: t.TempDir()})

	var invalidErr *thread.InvalidURLError
	require.True(t, errors.As(err, &invalidErr))
	assert.Equal(t, "404 Error", invalidErr.Reason)
}

func TestSave_EmptyLink(t *testing.T) {
	b := newFakeBoard(t)

	res, err := b.scraper().Save(context.Background(), thread.Request{Dir: t.TempDir()})

	var invalidErr *thread.InvalidURLError
	require.True(t, errors.As(err, &invalidErr))
	assert.Equal(t, StateInit, res.State)
	assert.Empty(t, b.Requests())
}

func TestSave_MalformedPage(t *testing.T) {
	b := newFakeBoard(t)
	b.pages["1"] = `<html><body><a href="` + b.mediaHref("111.jpg") + `">x</a></body></html>`
	b.pages["2"] = `<html><head><title>/g/ - No Media</title></head><body><a href="/g/">x</a></body></html>`

	tests := []struct {
		name      string
		id        string
		wantState State
	}{
		{name: "missing title", id: "1", wantState: StateValidated},
		{name: "no media links", id: "2", wantState: StateTitleExtracted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()

			res, err := b.scraper().Save(context.Background(), thread.Request{URL: b.threadURL(tt.id), Dir: root})

			var malformed *thread.MalformedPageError
			require.True(t, errors.As(err, &malformed), "expected MalformedPageError, got %T: %v", err, err)
			assert.Equal(t, b.threadURL(tt.id), malformed.URL)
			assert.Equal(t, tt.wantState, res.State)

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestSave_Limit(t *testing.T) {
	b := newFakeBoard(t)
	b.pages["5"] = testThreadPage(b, "111.jpg", "222.png")

	res, err := b.scraper().Save(context.Background(), thread.Request{URL: b.threadURL("5"), Dir: t.TempDir(), Limit: 1})
	require.NoError(t, err)

	assert.Len(t, res.Links, 1)
	assert.Len(t, res.Saved, 1)
	assert.NotContains(t, b.Requests(), "/g/222.png")
}

func TestSave_DuplicatesAreDownloadedTwice(t *testing.T) {
	b := newFakeBoard(t)
	b.pages["6"] = testThreadPage(b, "111.jpg", "111.jpg")

	res, err := b.scraper().Save(context.Background(), thread.Request{URL: b.threadURL("6"), Dir: t.TempDir()})
	require.NoError(t, err)

	assert.Len(t, res.Saved, 2)
	assert.Equal(t, []string{"/g/thread/6", "/g/111.jpg", "/g/111.jpg"}, b.Requests())
}

func TestSave_FailedFileContinues(t *testing.T) {
	b := newFakeBoard(t)
	b.pages["7"] = testThreadPage(b, "111.jpg", "gone.webm", "222.png")

	res, err := b.scraper().Save(context.Background(), thread.Request{URL: b.threadURL("7"), Dir: t.TempDir()})
	require.Error(t, err)

	var transferErr *thread.TransferError
	require.True(t, errors.As(err, &transferErr))
	assert.Equal(t, http.StatusNotFound, transferErr.StatusCode)

	assert.Equal(t, StateDone, res.State)
	assert.NotEmpty(t, res.Dir)
	assert.Len(t, res.Saved, 2)
	assert.Len(t, res.Failed, 1)
}

func TestSave_FailedFileAborts(t *testing.T) {
	b := newFakeBoard(t)
	b.pages["8"] = testThreadPage(b, "gone.webm", "111.jpg")

	res, err := b.scraper(downloader.WithAbortOnFailure(true)).Save(context.Background(), thread.Request{URL: b.threadURL("8"), Dir: t.TempDir()})
	require.Error(t, err)

	assert.Equal(t, StateDownloading, res.State)
	assert.Empty(t, res.Saved)
	assert.NotContains(t, b.Requests(), "/g/111.jpg")
}

func TestSave_FetchError(t *testing.T) {
	fetchErr := &thread.NetworkError{Operation: "fetch_thread", Err: errors.New("connection refused")}

	s := New(fetcherFunc(func(context.Context, string) (*page.Page, error) { return nil, fetchErr }), nil)

	res, err := s.Save(context.Background(), thread.Request{URL: "https://boards.4chan.org/g/thread/1"})

	var netErr *thread.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, StateInit, res.State)
}

type fetcherFunc func(ctx context.Context, url string) (*page.Page, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (*page.Page, error) {
	return f(ctx, url)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "links_extracted", StateLinksExtracted.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(42).String())
}
