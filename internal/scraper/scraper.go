// Package scraper runs a thread download end to end: fetch the thread page, validate
// its URL, extract the title and media links, then save every file into a folder
// named after the thread.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/italolelis/thread_downloader/internal/downloader"
	"github.com/italolelis/thread_downloader/internal/logctx"
	"github.com/italolelis/thread_downloader/internal/page"
	"github.com/italolelis/thread_downloader/internal/telemetry"
	"github.com/italolelis/thread_downloader/internal/thread"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*page.Page, error)
}

type Downloader interface {
	DownloadAll(ctx context.Context, dir string, links []string) ([]string, []*thread.TransferError, error)
}

// Result is the outcome of a run. It is returned even when the run fails, with State
// set to the last state reached.
type Result struct {
	Dir    string
	Title  string
	Links  []string
	Saved  []string
	Failed []*thread.TransferError
	State  State
}

type Scraper struct {
	fetcher    Fetcher
	downloader Downloader
	mediaHost  string
	telemetry  *telemetry.Telemetry
}

type Option func(s *Scraper)

// WithMediaHost sets the substring identifying media links. Defaults to page.DefaultMediaHost.
func WithMediaHost(host string) Option {
	return func(s *Scraper) {
		if host != "" {
			s.mediaHost = host
		}
	}
}

func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(s *Scraper) {
		s.telemetry = t
	}
}

func New(fetcher Fetcher, dl Downloader, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:    fetcher,
		downloader: dl,
		mediaHost:  page.DefaultMediaHost,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Save downloads every media file of the thread described by req. When some files fail
// and the downloader was told to carry on, the returned error joins one
// *thread.TransferError per failed file while Result still describes the saved ones.
func (s *Scraper) Save(ctx context.Context, req thread.Request) (*Result, error) {
	res := &Result{State: StateInit}

	err := s.telemetry.InstrumentOperation(ctx, "save_thread", "scraper", func(ctx context.Context) error {
		return s.save(ctx, req, res)
	})

	return res, err
}

func (s *Scraper) save(ctx context.Context, req thread.Request, res *Result) error {
	ctx, logger := logctx.With(ctx, "thread_url", req.URL)

	if strings.TrimSpace(req.URL) == "" {
		return &thread.InvalidURLError{URL: req.URL, Reason: thread.InvalidURLMessage}
	}

	p, err := s.fetch(ctx, req.URL)
	if err != nil {
		s.telemetry.RecordPageFetch("error")

		return err
	}

	res.advance(ctx, logger, StateFetched)

	ok, err := thread.Validate(req.URL, p.StatusCode)
	if err == nil && !ok {
		err = &thread.InvalidURLError{URL: req.URL, Reason: thread.InvalidURLMessage}
	}

	if err != nil {
		s.telemetry.RecordPageFetch("invalid")
		logger.DebugContext(ctx, "thread url rejected", "status", p.StatusCode, "err", err)

		return err
	}

	s.telemetry.RecordPageFetch("success")

	res.advance(ctx, logger, StateValidated)

	if th, err := thread.ParseURL(req.URL); err == nil {
		ctx, logger = logctx.With(ctx, "board", th.Board, "thread_id", th.ID)
	}

	if p.Document == nil {
		return &thread.MalformedPageError{URL: req.URL, Reason: "page could not be parsed"}
	}

	title, err := page.ThreadTitle(p.Document)
	if err != nil {
		return withPageURL(err, req.URL)
	}

	res.Title = title
	res.advance(ctx, logger, StateTitleExtracted)

	links := page.MediaLinks(p.Document, s.mediaHost)
	s.telemetry.RecordMediaLinks(len(links))

	if len(links) == 0 {
		return &thread.MalformedPageError{URL: req.URL, Reason: "no media links found"}
	}

	if req.Limit > 0 && len(links) > req.Limit {
		logger.InfoContext(ctx, "applying media limit", "found", len(links), "limit", req.Limit)

		links = links[:req.Limit]
	}

	res.Links = links
	res.advance(ctx, logger, StateLinksExtracted)

	logger.InfoContext(ctx, "found media links", "title", title, "count", len(links))

	dir, err := downloader.CreateDir(req.Dir, title)
	if err != nil {
		return fmt.Errorf("failed to create thread directory: %w", err)
	}

	res.Dir = dir
	res.advance(ctx, logger, StateDirectoryCreated)
	res.advance(ctx, logger, StateDownloading)

	saved, failed, err := s.downloader.DownloadAll(ctx, dir, links)
	res.Saved = saved
	res.Failed = failed

	if err != nil {
		return err
	}

	res.advance(ctx, logger, StateDone)

	logger.InfoContext(ctx, "thread saved", "dir", dir, "saved", len(saved), "failed", len(failed))

	if len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, f := range failed {
			errs = append(errs, f)
		}

		return fmt.Errorf("%d of %d files failed: %w", len(failed), len(links), errors.Join(errs...))
	}

	return nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (*page.Page, error) {
	var p *page.Page

	err := s.telemetry.InstrumentOperation(ctx, "fetch_thread", "page", func(ctx context.Context) error {
		var err error

		p, err = s.fetcher.Fetch(ctx, url)

		return err
	})

	return p, err
}

func (r *Result) advance(ctx context.Context, logger *slog.Logger, st State) {
	r.State = st

	logger.DebugContext(ctx, "thread run state", "state", st.String())
}

func withPageURL(err error, url string) error {
	var malformed *thread.MalformedPageError
	if errors.As(err, &malformed) && malformed.URL == "" {
		malformed.URL = url
	}

	return err
}
