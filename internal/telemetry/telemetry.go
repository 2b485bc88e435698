package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds all telemetry instruments and providers.
// The zero value is valid and records nothing.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	pageFetchesTotal metric.Int64Counter
	mediaLinksFound  metric.Int64Histogram
	downloadsTotal   metric.Int64Counter
	downloadDuration metric.Float64Histogram
	downloadedBytes  metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
}

// New creates a new telemetry instance pushing metrics to an OTLP/gRPC collector.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}

	t, err := NewWithReader(cfg, sdkmetric.NewPeriodicReader(exporter))
	if err != nil {
		return nil, err
	}

	otel.SetMeterProvider(t.meterProvider)
	otel.SetTracerProvider(t.tracerProvider)

	if err := runtime.Start(runtime.WithMeterProvider(t.meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime metrics: %w", err)
	}

	return t, nil
}

// NewWithReader builds an enabled instance collecting metrics through reader.
func NewWithReader(cfg Config, reader sdkmetric.Reader) (*Telemetry, error) {
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tracerProvider := sdktrace.NewTracerProvider()

	t := &Telemetry{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(cfg.ServiceName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:          meterProvider.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

// Transport wraps base with otelhttp so every outgoing request gets a client span.
func (t *Telemetry) Transport(base http.RoundTripper) http.RoundTripper {
	if t == nil || t.tracerProvider == nil {
		return base
	}

	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(t.tracerProvider),
		otelhttp.WithMeterProvider(t.meterProvider),
	)
}

// RecordPageFetch counts thread page fetches by result ("success", "invalid", "error").
func (t *Telemetry) RecordPageFetch(status string) {
	if t == nil || t.pageFetchesTotal == nil {
		return
	}

	t.pageFetchesTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordMediaLinks records how many media links a thread page carried.
func (t *Telemetry) RecordMediaLinks(n int) {
	if t == nil || t.mediaLinksFound == nil {
		return
	}

	t.mediaLinksFound.Record(context.Background(), int64(n))
}

// RecordDownloadedBytes adds n to the downloaded bytes counter.
func (t *Telemetry) RecordDownloadedBytes(n int64) {
	if t == nil || t.downloadedBytes == nil {
		return
	}

	t.downloadedBytes.Add(context.Background(), n)
}

// Shutdown flushes pending metrics and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}

	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	t.pageFetchesTotal, err = t.meter.Int64Counter(
		"page_fetches_total",
		metric.WithDescription("Total number of thread page fetches"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create page_fetches_total counter: %w", err)
	}

	t.mediaLinksFound, err = t.meter.Int64Histogram(
		"media_links_found",
		metric.WithDescription("Number of media links found on a thread page"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create media_links_found histogram: %w", err)
	}

	t.downloadsTotal, err = t.meter.Int64Counter(
		"downloads_total",
		metric.WithDescription("Total number of media downloads"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_total counter: %w", err)
	}

	t.downloadDuration, err = t.meter.Float64Histogram(
		"download_duration_seconds",
		metric.WithDescription("Media download duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create download_duration histogram: %w", err)
	}

	t.downloadedBytes, err = t.meter.Int64Counter(
		"downloaded_bytes_total",
		metric.WithDescription("Total number of media bytes written to disk"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloaded_bytes_total counter: %w", err)
	}

	return nil
}
