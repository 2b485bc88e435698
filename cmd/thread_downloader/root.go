package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/italolelis/thread_downloader/internal/config"
	"github.com/italolelis/thread_downloader/internal/downloader"
	"github.com/italolelis/thread_downloader/internal/http/client"
	"github.com/italolelis/thread_downloader/internal/logctx"
	"github.com/italolelis/thread_downloader/internal/notifier"
	"github.com/italolelis/thread_downloader/internal/page"
	"github.com/italolelis/thread_downloader/internal/scraper"
	"github.com/italolelis/thread_downloader/internal/telemetry"
	"github.com/italolelis/thread_downloader/internal/thread"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
)

var version = "dev"

const shutdownTimeout = 5 * time.Second

type options struct {
	link       string
	limit      int
	output     string
	failFast   bool
	noProgress bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "thread_downloader",
		Short:         "Download every image and video of an imageboard thread",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("fail-fast") {
				cfg.AbortOnFailure = opts.failFast
			}

			if opts.output == "" {
				opts.output, err = executableDir()
				if err != nil {
					return err
				}
			}

			return run(cmd.Context(), cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.link, "link", "l", "", "thread URL")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of media files to download (0 = all)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "destination directory (defaults to the executable's directory)")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "stop at the first file that fails to download")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "disable progress bars")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, opts options, stdout, stderr io.Writer) error {
	logger := newLogger(cfg, stderr)
	slog.SetDefault(logger)

	ctx, logger = logctx.With(logctx.WithLogger(ctx, logger), "run_id", uuid.NewString())

	logger.DebugContext(ctx, "thread downloader starting", "version", version, "log_level", cfg.LogLevel)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.WarnContext(ctx, "failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start HTTP Client
	hc := client.New(
		client.WithTimeout(cfg.HTTPTimeout),
		client.WithUserAgent(cfg.UserAgent),
		client.WithTransport(tel.Transport(http.DefaultTransport)),
	)

	// =========================================================================
	// Start Downloader
	dlOpts := []downloader.Option{
		downloader.WithTelemetry(tel),
		downloader.WithAbortOnFailure(cfg.AbortOnFailure),
	}

	bars := progressBars(ctx, opts.noProgress, stderr)
	if bars != nil {
		dlOpts = append(dlOpts, downloader.WithProgressBars(bars))
	}

	s := scraper.New(
		page.NewFetcher(hc),
		downloader.NewDownloader(hc, dlOpts...),
		scraper.WithMediaHost(cfg.MediaHost),
		scraper.WithTelemetry(tel),
	)

	res, runErr := s.Save(ctx, thread.Request{URL: opts.link, Dir: opts.output, Limit: opts.limit})

	if bars != nil {
		bars.Wait()
	}

	report(stdout, res)

	notify(ctx, newNotifier(cfg, hc), opts.link, res, runErr)

	return runErr
}

// report prints where the files went. A run that stopped before the end only
// names the folder holding what was saved so far.
func report(w io.Writer, res *scraper.Result) {
	switch {
	case res.State == scraper.StateDone:
		fmt.Fprintf(w, "Finished! Files saved at %s\n", res.Dir)
	case res.Dir != "":
		fmt.Fprintf(w, "Aborted! Partial files saved at %s\n", res.Dir)
	}
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var h slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if cfg.JSONLogs() {
		h = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(logctx.NewTraceHandler(h))
}

// progressBars returns nil unless bars are wanted and stderr is an interactive terminal.
func progressBars(ctx context.Context, disabled bool, w io.Writer) *mpb.Progress {
	if disabled {
		return nil
	}

	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nil
	}

	return downloader.NewProgressBars(ctx, w)
}

func newNotifier(cfg *config.Config, hc *client.Client) notifier.Notifier {
	if cfg.DiscordWebhookURL == "" {
		return notifier.Noop{}
	}

	return &notifier.DiscordNotifier{WebhookURL: cfg.DiscordWebhookURL, Client: hc}
}

func notify(ctx context.Context, n notifier.Notifier, link string, res *scraper.Result, runErr error) {
	logger := logctx.LoggerFromContext(ctx)

	content := fmt.Sprintf("✅ Thread saved: %s (%d files) at %s", res.Title, len(res.Saved), res.Dir)
	if runErr != nil {
		content = fmt.Sprintf("❌ Thread download failed: %s: %v", link, runErr)
	}

	if err := n.Notify(context.WithoutCancel(ctx), content); err != nil {
		logger.ErrorContext(ctx, "failed to send notification", "err", err)
	}
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}

	return filepath.Dir(exe), nil
}
