package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/thread_downloader/internal/downloader/progress"
	"github.com/italolelis/thread_downloader/internal/logctx"
	"github.com/italolelis/thread_downloader/internal/telemetry"
	"github.com/italolelis/thread_downloader/internal/thread"
	"github.com/vbauerster/mpb/v8"
)

const (
	dirPerm          = 0755
	progressInterval = 5 * 1024 * 1024 // 5MB
)

// Getter is the HTTP capability the downloader needs.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Downloader streams media files into a directory, one at a time.
type Downloader struct {
	client         Getter
	telemetry      *telemetry.Telemetry
	bars           *mpb.Progress
	abortOnFailure bool
}

type Option func(d *Downloader)

func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(d *Downloader) {
		d.telemetry = t
	}
}

// WithProgressBars renders one bar per file on p.
func WithProgressBars(p *mpb.Progress) Option {
	return func(d *Downloader) {
		d.bars = p
	}
}

// WithAbortOnFailure stops DownloadAll at the first failed file instead of moving on.
func WithAbortOnFailure(abort bool) Option {
	return func(d *Downloader) {
		d.abortOnFailure = abort
	}
}

func NewDownloader(client Getter, opts ...Option) *Downloader {
	d := &Downloader{client: client}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// CreateDir creates root/folder and any missing parents. An existing directory is
// left untouched.
func CreateDir(root, folder string) (string, error) {
	dir := filepath.Join(root, folder)

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", &thread.DirectoryError{Path: dir, Reason: "failed to create directory", Err: err}
	}

	return dir, nil
}

// DownloadAll downloads links in order into dir. It returns the saved file paths and
// the per-file failures. The error is only set when the run stopped early, either
// because the context was cancelled or because abort-on-failure is enabled.
func (d *Downloader) DownloadAll(ctx context.Context, dir string, links []string) ([]string, []*thread.TransferError, error) {
	logger := logctx.LoggerFromContext(ctx)

	saved := make([]string, 0, len(links))

	var failed []*thread.TransferError

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return saved, failed, fmt.Errorf("download interrupted: %w", err)
		}

		logger.InfoContext(ctx, "saving media", "url", link, "index", i+1, "total", len(links))

		path, err := d.DownloadFile(ctx, link, dir)
		if err != nil {
			var transferErr *thread.TransferError
			if !errors.As(err, &transferErr) {
				transferErr = &thread.TransferError{URL: link, Reason: err.Error(), Err: err}
			}

			failed = append(failed, transferErr)

			if d.abortOnFailure {
				logger.ErrorContext(ctx, "failed to download media, aborting", "url", link, "err", err)

				return saved, failed, fmt.Errorf("download aborted: %w", transferErr)
			}

			logger.WarnContext(ctx, "failed to download media, skipping", "url", link, "err", err)

			continue
		}

		saved = append(saved, path)
	}

	return saved, failed, nil
}

// DownloadFile streams link into dir under the last segment of its path and returns
// the written file path. Failures are *thread.TransferError.
func (d *Downloader) DownloadFile(ctx context.Context, link, dir string) (string, error) {
	var targetPath string

	err := d.telemetry.InstrumentDownload(ctx, func(ctx context.Context) error {
		var err error

		targetPath, err = d.downloadFile(ctx, link, dir)

		return err
	})

	return targetPath, err
}

func (d *Downloader) downloadFile(ctx context.Context, link, dir string) (string, error) {
	logger := logctx.LoggerFromContext(ctx).With("url", link)

	filename, err := FileName(link)
	if err != nil {
		return "", err
	}

	targetPath := filepath.Join(dir, filename)

	resp, err := d.client.Get(ctx, link)
	if err != nil {
		return "", &thread.TransferError{URL: link, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &thread.TransferError{URL: link, StatusCode: resp.StatusCode, Reason: "unexpected status " + resp.Status}
	}

	if err := ensureTargetDir(targetPath, logger); err != nil {
		return "", &thread.TransferError{URL: link, Reason: "failed to create target directory", Err: err}
	}

	// Written to a temp file and renamed over the target once complete; a failed
	// transfer leaves an existing target untouched.
	out, err := os.CreateTemp(dir, "."+filename+".*.part")
	if err != nil {
		return "", &thread.TransferError{URL: link, Reason: "failed to create target file", Err: err}
	}

	tmpPath := out.Name()

	written, err := d.writeFile(ctx, out, resp.Body, link, targetPath, resp.ContentLength)

	closeErr := out.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err == nil {
		if err = os.Rename(tmpPath, targetPath); err != nil {
			err = fmt.Errorf("failed to move file into place: %w", err)
		}
	}

	if err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.WarnContext(ctx, "failed to remove partial file", "file_path", tmpPath, "err", rmErr)
		}

		return "", &thread.TransferError{URL: link, Reason: "failed to write file", Err: err}
	}

	d.telemetry.RecordDownloadedBytes(written)

	logger.InfoContext(ctx, "downloaded and saved file", "target", targetPath, "size", humanize.Bytes(uint64(written)))

	return targetPath, nil
}

// FileName returns the last segment of the URL path, ignoring any query or fragment.
func FileName(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", &thread.TransferError{URL: link, Reason: "invalid media url", Err: err}
	}

	name := u.Path[strings.LastIndex(u.Path, "/")+1:]

	switch name {
	case "", ".", "..":
		return "", &thread.TransferError{URL: link, Reason: "media url has no file name"}
	}

	return name, nil
}

func ensureTargetDir(targetPath string, logger *slog.Logger) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		logger.Error("failed to create target directory", "dir", dir, "err", err)

		return fmt.Errorf("failed to create target directory: %w", err)
	}

	return nil
}

func (d *Downloader) writeFile(ctx context.Context, out io.Writer, reader io.Reader, url, targetPath string, totalBytes int64) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	if totalBytes > 0 {
		logger.DebugContext(ctx, "downloading file", "file_path", targetPath, "file_size", humanize.Bytes(uint64(totalBytes)))
	} else {
		logger.DebugContext(ctx, "downloading file", "file_path", targetPath)
	}

	progressCb := func(written int64, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "download progress",
				"url", url,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.DebugContext(ctx, "download progress", "url", url, "downloaded", humanize.Bytes(uint64(written)))
		}
	}

	pr := progress.NewReader(reader, totalBytes, progressInterval, progressCb)

	var src io.Reader = pr

	bar := d.newBar(filepath.Base(targetPath), totalBytes)
	if bar != nil {
		src = bar.ProxyReader(src)
	}

	_, err := io.Copy(out, src)
	n := pr.BytesRead()

	if bar != nil {
		if err != nil {
			bar.Abort(true)
		} else {
			bar.SetTotal(-1, true)
		}
	}

	if err != nil {
		return n, fmt.Errorf("failed to copy file: %w", err)
	}

	return n, nil
}
