// Package observe provides application-wide observability primitives for
// Cadenza: OpenTelemetry metrics, tracing helpers, and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the /metrics endpoint of the observability listener. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Cadenza metrics.
const meterName = "github.com/MrWong99/cadenza"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ToolDuration tracks tool execution latency by tool name.
	ToolDuration metric.Float64Histogram

	// CatalogRequests counts catalog API attempts. Use with attributes:
	//   attribute.String("path", ...), attribute.String("status", ...)
	CatalogRequests metric.Int64Counter

	// CatalogRetries counts backoff sleeps taken before a retry attempt.
	CatalogRetries metric.Int64Counter

	// CatalogErrors counts classified catalog failures by error code.
	CatalogErrors metric.Int64Counter

	// TokenMints counts developer-token mint operations by status.
	TokenMints metric.Int64Counter

	// TokenCacheHits counts token requests served from the cache without
	// minting.
	TokenCacheHits metric.Int64Counter

	// SearchCacheLookups counts search cache consultations. Use with
	// attribute.String("result", "hit"|"miss").
	SearchCacheLookups metric.Int64Counter

	// ScriptRuns counts AppleScript bridge invocations by status.
	ScriptRuns metric.Int64Counter

	// HTTPRequestDuration tracks observability-listener request time. Use
	// with attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// catalog round trips and local script execution.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ToolCalls, err = m.Int64Counter("cadenza.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("cadenza.tool.duration",
		metric.WithDescription("Latency of tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CatalogRequests, err = m.Int64Counter("cadenza.catalog.requests",
		metric.WithDescription("Total catalog API attempts by path and HTTP status."),
	); err != nil {
		return nil, err
	}
	if met.CatalogRetries, err = m.Int64Counter("cadenza.catalog.retries",
		metric.WithDescription("Total backoff sleeps taken before catalog retries."),
	); err != nil {
		return nil, err
	}
	if met.CatalogErrors, err = m.Int64Counter("cadenza.catalog.errors",
		metric.WithDescription("Total classified catalog failures by error code."),
	); err != nil {
		return nil, err
	}
	if met.TokenMints, err = m.Int64Counter("cadenza.token.mints",
		metric.WithDescription("Total developer-token mint operations by status."),
	); err != nil {
		return nil, err
	}
	if met.TokenCacheHits, err = m.Int64Counter("cadenza.token.cache_hits",
		metric.WithDescription("Total token requests served from the cache."),
	); err != nil {
		return nil, err
	}
	if met.SearchCacheLookups, err = m.Int64Counter("cadenza.search.cache_lookups",
		metric.WithDescription("Total search cache consultations by result."),
	); err != nil {
		return nil, err
	}
	if met.ScriptRuns, err = m.Int64Counter("cadenza.script.runs",
		metric.WithDescription("Total AppleScript bridge invocations by status."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("cadenza.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall records one tool invocation with its outcome.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordCatalogAttempt records one catalog API attempt with the observed
// HTTP status ("network_error" when no response was received).
func (m *Metrics) RecordCatalogAttempt(ctx context.Context, path, status string) {
	m.CatalogRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("status", status),
	))
}
