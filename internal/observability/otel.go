package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"atsmatch/internal/config"
	"atsmatch/internal/embedding"
	"atsmatch/internal/errors"
	"atsmatch/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Settings holds the resolved observability settings
type Settings struct {
	ServiceName        string
	ServiceVersion     string
	ServiceInstance    string
	Enabled            bool
	MetricsEnabled     bool
	ConsoleOutput      bool
	PrettyPrint        bool
	SampleRate         float64
	CollectionInterval time.Duration
	Prometheus         PrometheusConfig
	OTLP               config.OTLPConfig
}

// Metrics holds the custom instruments
type Metrics struct {
	EmbeddingDuration metric.Float64Histogram
	EmbeddingRequests metric.Int64Counter
	EmbeddingErrors   metric.Int64Counter
	EmbeddingTexts    metric.Int64Histogram
	EmbeddingTokens   metric.Int64Counter

	MatchesCompleted metric.Int64Counter
	MatchScore       metric.Int64Histogram
	MatchDuration    metric.Float64Histogram

	CatalogReloads metric.Int64Counter
	RateLimitHits  metric.Int64Counter
}

// Manager owns the tracer and meter providers and the custom metrics. A
// disabled manager is a no-op that is still safe to call.
type Manager struct {
	settings         Settings
	logger           *errors.Logger
	resource         *resource.Resource
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.Server
}

// NewManager initializes tracing and metrics according to settings
func NewManager(settings Settings, logger *errors.Logger) (*Manager, error) {
	m := &Manager{settings: settings, logger: logger}
	if !settings.Enabled {
		return m, nil
	}

	if err := m.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := m.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

func (m *Manager) initResource() error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(m.settings.ServiceName),
			semconv.ServiceVersion(m.settings.ServiceVersion),
			attribute.String("service.instance.id", m.settings.ServiceInstance),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	m.resource = res
	return nil
}

func (m *Manager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case m.settings.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if m.settings.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case m.settings.OTLP.Enabled:
		exporter, err = m.createOTLPTraceExporter()
	default:
		exporter = &noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(m.resource),
		trace.WithSampler(trace.TraceIDRatioBased(m.settings.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	m.tracerProvider = tp
	m.shutdownFuncs = append(m.shutdownFuncs, tp.Shutdown)
	return nil
}

func (m *Manager) initMetrics() error {
	readers, err := m.setupMetricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(m.resource)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	m.meterProvider = mp
	m.shutdownFuncs = append(m.shutdownFuncs, mp.Shutdown)

	if !m.settings.MetricsEnabled {
		return nil
	}
	return m.initCustomMetrics(mp.Meter(m.settings.ServiceName))
}

func (m *Manager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	interval := m.collectionInterval()

	if m.settings.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if m.settings.OTLP.Enabled {
		reader, err := m.createOTLPMetricsReader(interval)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	if m.settings.Prometheus.Enabled {
		reader, mux, err := SetupPrometheusExporter(m.settings.Prometheus)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		readers = append(readers, reader)
		m.prometheusServer = StartPrometheusServer(mux, m.settings.Prometheus.Port, m.logger)
		m.shutdownFuncs = append(m.shutdownFuncs, m.prometheusServer.Shutdown)
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

func (m *Manager) initCustomMetrics(meter metric.Meter) error {
	m.metrics = &Metrics{}
	if err := m.createEmbeddingMetrics(meter); err != nil {
		return err
	}
	if err := m.createMatchMetrics(meter); err != nil {
		return err
	}
	return m.createInfrastructureMetrics(meter)
}

func (m *Manager) createEmbeddingMetrics(meter metric.Meter) error {
	var err error

	m.metrics.EmbeddingDuration, err = meter.Float64Histogram(
		"atsmatch_embedding_duration_seconds",
		metric.WithDescription("Time spent waiting for the embedding provider"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding duration metric: %w", err)
	}

	m.metrics.EmbeddingRequests, err = meter.Int64Counter(
		"atsmatch_embedding_requests_total",
		metric.WithDescription("Total number of embedding provider calls"),
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding request metric: %w", err)
	}

	m.metrics.EmbeddingErrors, err = meter.Int64Counter(
		"atsmatch_embedding_errors_total",
		metric.WithDescription("Total number of failed embedding provider calls"),
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding error metric: %w", err)
	}

	m.metrics.EmbeddingTexts, err = meter.Int64Histogram(
		"atsmatch_embedding_batch_size",
		metric.WithDescription("Number of texts sent per embedding call"),
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding batch size metric: %w", err)
	}

	m.metrics.EmbeddingTokens, err = meter.Int64Counter(
		"atsmatch_embedding_tokens_total",
		metric.WithDescription("Input tokens billed by the embedding provider"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding token metric: %w", err)
	}

	return nil
}

func (m *Manager) createMatchMetrics(meter metric.Meter) error {
	var err error

	m.metrics.MatchesCompleted, err = meter.Int64Counter(
		"atsmatch_matches_total",
		metric.WithDescription("Total number of completed resume matches"),
	)
	if err != nil {
		return fmt.Errorf("failed to create matches metric: %w", err)
	}

	m.metrics.MatchScore, err = meter.Int64Histogram(
		"atsmatch_match_score",
		metric.WithDescription("Distribution of blended match scores"),
		metric.WithExplicitBucketBoundaries(10, 20, 30, 40, 50, 60, 70, 80, 90, 100),
	)
	if err != nil {
		return fmt.Errorf("failed to create match score metric: %w", err)
	}

	m.metrics.MatchDuration, err = meter.Float64Histogram(
		"atsmatch_match_duration_seconds",
		metric.WithDescription("End-to-end time to score one resume"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create match duration metric: %w", err)
	}

	return nil
}

func (m *Manager) createInfrastructureMetrics(meter metric.Meter) error {
	var err error

	m.metrics.CatalogReloads, err = meter.Int64Counter(
		"atsmatch_suggestion_catalog_reloads_total",
		metric.WithDescription("Total number of suggestion catalog reloads"),
	)
	if err != nil {
		return fmt.Errorf("failed to create catalog reload metric: %w", err)
	}

	m.metrics.RateLimitHits, err = meter.Int64Counter(
		"atsmatch_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limited requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics, or an empty set when metrics are off
func (m *Manager) GetMetrics() *Metrics {
	if m.metrics == nil {
		return &Metrics{}
	}
	return m.metrics
}

// HTTPMiddleware returns otelhttp instrumentation, or a pass-through when disabled
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !m.settings.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		m.settings.ServiceName,
		otelhttp.WithTracerProvider(m.tracerProvider),
		otelhttp.WithMeterProvider(m.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	if !m.settings.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown flushes exporters and stops the metrics server
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, shutdown := range m.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RecordEmbedding records one embedding provider call
func (m *Manager) RecordEmbedding(ctx context.Context, provider string, texts int, usage *embedding.Usage, err error, seconds float64) {
	if m.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("success", err == nil),
	)

	m.metrics.EmbeddingDuration.Record(ctx, seconds, attrs)
	m.metrics.EmbeddingRequests.Add(ctx, 1, attrs)
	m.metrics.EmbeddingTexts.Record(ctx, int64(texts), attrs)
	if err != nil {
		m.metrics.EmbeddingErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("code", errorCode(err)),
		))
	}
	if usage != nil && usage.InputTokens > 0 {
		m.metrics.EmbeddingTokens.Add(ctx, usage.InputTokens, metric.WithAttributes(attribute.String("provider", provider)))
	}
}

// RecordMatch records one completed match
func (m *Manager) RecordMatch(ctx context.Context, mode types.Mode, source string, score int, seconds float64) {
	if m.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("source", source),
	)
	m.metrics.MatchesCompleted.Add(ctx, 1, attrs)
	m.metrics.MatchScore.Record(ctx, int64(score), attrs)
	m.metrics.MatchDuration.Record(ctx, seconds, attrs)
}

// RecordCatalogReload records a suggestion catalog reload attempt
func (m *Manager) RecordCatalogReload(ctx context.Context, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.CatalogReloads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
}

// RecordRateLimitHit records a rejected request
func (m *Manager) RecordRateLimitHit(ctx context.Context, by string) {
	if m.metrics == nil {
		return
	}
	m.metrics.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limited_by", by)))
}

func errorCode(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

func (m *Manager) createOTLPTraceExporter() (trace.SpanExporter, error) {
	otlp := m.settings.OTLP
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlp.Endpoint),
	}
	if otlp.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlp.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

func (m *Manager) createOTLPMetricsReader(interval time.Duration) (sdkmetric.Reader, error) {
	otlp := m.settings.OTLP
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlp.Endpoint),
	}
	if otlp.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlp.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

func (m *Manager) collectionInterval() time.Duration {
	if m.settings.CollectionInterval > 0 {
		return m.settings.CollectionInterval
	}
	return 15 * time.Second
}
