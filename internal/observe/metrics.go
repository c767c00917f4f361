// Package observe provides application-wide observability primitives for
// GraphForge: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all GraphForge metrics.
const meterName = "github.com/flowtwo/graphforge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// LLMStreamDuration tracks the wall-clock duration of one streamed LLM
	// turn, from the first chunk request to the terminal Complete chunk.
	LLMStreamDuration metric.Float64Histogram

	// ToolExecutionDuration tracks Tool Registry execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// BroadcastFanoutDuration tracks how long the Broadcast Server takes to
	// fan one graph_update/chat_update out to every matching client.
	BroadcastFanoutDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// CacheHits counts Unified Data Service response-cache hits.
	CacheHits metric.Int64Counter

	// CacheMisses counts Unified Data Service response-cache misses.
	CacheMisses metric.Int64Counter

	// ToolLoopIterations records the number of tool-call round trips
	// consumed per LLM turn, so an operator can see how close calls run to
	// the configured cap.
	ToolLoopIterations metric.Int64Histogram

	// DiffApplySuccesses counts Format E diffs the Session Orchestrator
	// applied without error, by origin (user-edit, llm-operation, system).
	DiffApplySuccesses metric.Int64Counter

	// DiffApplyFailures counts diffs that failed to parse or apply, by
	// origin.
	DiffApplyFailures metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live orchestrator Sessions
	// (interactive terminal or WebSocket connections).
	ActiveSessions metric.Int64UpDownCounter

	// ActivePairs tracks the number of (workspaceId, systemId) pairs with a
	// restored Unified Data Service in memory.
	ActivePairs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// interactive LLM-turn and tool-call latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMStreamDuration, err = m.Float64Histogram("graphforge.llm.stream.duration",
		metric.WithDescription("Duration of one streamed LLM turn, from request to terminal chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("graphforge.tool_execution.duration",
		metric.WithDescription("Latency of Tool Registry tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BroadcastFanoutDuration, err = m.Float64Histogram("graphforge.broadcast.fanout.duration",
		metric.WithDescription("Duration of fanning one update out to its matching clients."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("graphforge.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("graphforge.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.CacheHits, err = m.Int64Counter("graphforge.cache.hits",
		metric.WithDescription("Total Unified Data Service response-cache hits."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("graphforge.cache.misses",
		metric.WithDescription("Total Unified Data Service response-cache misses."),
	); err != nil {
		return nil, err
	}
	if met.ToolLoopIterations, err = m.Int64Histogram("graphforge.tool_loop.iterations",
		metric.WithDescription("Tool-call round trips consumed per LLM turn."),
	); err != nil {
		return nil, err
	}
	if met.DiffApplySuccesses, err = m.Int64Counter("graphforge.diff.apply.successes",
		metric.WithDescription("Total Format E diffs applied successfully, by origin."),
	); err != nil {
		return nil, err
	}
	if met.DiffApplyFailures, err = m.Int64Counter("graphforge.diff.apply.failures",
		metric.WithDescription("Total Format E diffs that failed to parse or apply, by origin."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("graphforge.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("graphforge.active_sessions",
		metric.WithDescription("Number of live orchestrator sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActivePairs, err = m.Int64UpDownCounter("graphforge.active_pairs",
		metric.WithDescription("Number of (workspaceId, systemId) pairs currently restored in memory."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("graphforge.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordCacheResult increments CacheHits or CacheMisses depending on hit.
func (m *Metrics) RecordCacheResult(ctx context.Context, hit bool) {
	if hit {
		m.CacheHits.Add(ctx, 1)
		return
	}
	m.CacheMisses.Add(ctx, 1)
}

// RecordDiffApply is a convenience method that records a diff-apply
// success or failure counter increment, by origin.
func (m *Metrics) RecordDiffApply(ctx context.Context, origin string, ok bool) {
	attrs := metric.WithAttributes(attribute.String("origin", origin))
	if ok {
		m.DiffApplySuccesses.Add(ctx, 1, attrs)
		return
	}
	m.DiffApplyFailures.Add(ctx, 1, attrs)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
