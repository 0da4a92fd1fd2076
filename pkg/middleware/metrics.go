package middleware

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hctx-dev/hctx/pkg/hctx"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "hctx").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "hctx",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is an hctx.Observer that records dispatch metrics.
type Metrics struct {
	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec
	inflight         *prometheus.GaugeVec
}

var _ hctx.Observer = (*Metrics)(nil)

// metricsKey identifies one set of collectors: metric names are unique per
// registry, namespace and subsystem.
type metricsKey struct {
	registry  prometheus.Registerer
	namespace string
	subsystem string
}

type registeredMetrics struct {
	m      *Metrics
	config MetricsConfig
}

// Collectors are registered once per key; runtimes sharing a key share one
// Metrics.
var (
	metricsMu    sync.Mutex
	metricsByKey = map[metricsKey]registeredMetrics{}
)

func initMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		dispatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatches_total",
			Help:        "Total number of handler dispatches by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "context", "outcome"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Handler dispatch duration in seconds, middleware included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind", "context"}),

		dispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_errors_total",
			Help:        "Total number of failed dispatches by error type",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "context", "error_type"}),

		inflight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatches_inflight",
			Help:        "Number of dispatches currently running",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),
	}
}

// Prometheus returns an observer that collects dispatch metrics. Calls with
// the same registry, namespace and subsystem return the same observer; they
// panic if their buckets or const labels differ, as registering the
// collectors twice would.
//
// Metrics collected:
//   - hctx_dispatches_total: dispatches by kind, context name and outcome
//   - hctx_dispatch_duration_seconds: duration of started dispatches
//   - hctx_dispatch_errors_total: failed dispatches by error type
//   - hctx_dispatches_inflight: dispatches currently running, by kind
//
// Example:
//
//	rt := hctx.New(doc, hctx.Config{
//	    Observers: []hctx.Observer{
//	        middleware.Prometheus(middleware.WithNamespace("myapp")),
//	    },
//	})
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	metricsMu.Lock()
	defer metricsMu.Unlock()
	key := metricsKey{config.Registry, config.Namespace, config.Subsystem}
	if prev, ok := metricsByKey[key]; ok {
		if !slices.Equal(prev.config.Buckets, config.Buckets) || !maps.Equal(prev.config.ConstLabels, config.ConstLabels) {
			panic(fmt.Sprintf("middleware: dispatch metrics for namespace %q subsystem %q are already registered with different buckets or const labels",
				config.Namespace, config.Subsystem))
		}
		return prev.m
	}
	m := initMetrics(config)
	metricsByKey[key] = registeredMetrics{m: m, config: config}
	return m
}

// DispatchStart implements hctx.Observer.
func (m *Metrics) DispatchStart(ctx context.Context, info hctx.DispatchInfo) context.Context {
	m.inflight.WithLabelValues(string(info.Kind)).Inc()
	return ctx
}

// DispatchEnd implements hctx.Observer.
func (m *Metrics) DispatchEnd(_ context.Context, info hctx.DispatchInfo, res hctx.Result) {
	kind := string(info.Kind)
	m.dispatchesTotal.WithLabelValues(kind, info.Context, string(res.Outcome)).Inc()
	if res.Outcome == hctx.OutcomeDropped {
		return
	}

	m.inflight.WithLabelValues(kind).Dec()
	m.dispatchDuration.WithLabelValues(kind, info.Context).Observe(res.Elapsed.Seconds())
	if res.Outcome == hctx.OutcomeFailed {
		m.dispatchErrors.WithLabelValues(kind, info.Context, categorizeError(res.Err)).Inc()
	}
}

// categorizeError maps an error to a low-cardinality label.
func categorizeError(err error) string {
	var (
		pe *hctx.PanicError
		wg *hctx.WriteGuardError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &pe):
		return "panic"
	case errors.As(err, &wg):
		return "write_guard"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "handler"
	}
}
