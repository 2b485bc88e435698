package page

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/italolelis/thread_downloader/internal/logctx"
	"github.com/italolelis/thread_downloader/internal/thread"
)

// Getter is the HTTP capability the fetcher needs.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Page is a fetched thread page. Document is nil when the page could not be parsed,
// which only matters once the status has been validated.
type Page struct {
	URL        string
	StatusCode int
	Document   Document
}

type Fetcher struct {
	client Getter
}

func NewFetcher(client Getter) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads and parses the page at rawURL. Non-200 responses are not an error here:
// the status is returned so the thread URL can be validated against it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	logger := logctx.LoggerFromContext(ctx).With("thread_url", rawURL)

	if _, err := url.Parse(rawURL); err != nil {
		return nil, &thread.InvalidURLError{URL: rawURL, Reason: thread.InvalidURLMessage, Err: err}
	}

	resp, err := f.client.Get(ctx, rawURL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to fetch thread page", "err", err)

		return nil, &thread.NetworkError{Operation: "fetch_thread", URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	p := &Page{URL: rawURL, StatusCode: resp.StatusCode}

	if resp.StatusCode != http.StatusOK {
		logger.DebugContext(ctx, "thread page returned non-success status", "status", resp.StatusCode)

		return p, nil
	}

	doc, err := Parse(resp.Body)
	if err != nil {
		return nil, &thread.NetworkError{Operation: "read_thread", URL: rawURL, Err: fmt.Errorf("failed to read page: %w", err)}
	}

	p.Document = doc

	logger.DebugContext(ctx, "fetched thread page", "status", resp.StatusCode)

	return p, nil
}
