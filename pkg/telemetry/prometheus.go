package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wayfind-go/wayfind"
	"github.com/wayfind-go/wayfind/pkg/history"
	"github.com/wayfind-go/wayfind/pkg/resolver"
	"github.com/wayfind-go/wayfind/pkg/router"
)

// MetricsConfig configures the Prometheus metrics collector.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "wayfind").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics collector.
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

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "wayfind",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics collects Prometheus metrics across the navigation pipeline. One
// instance plugs into all three seams:
//
//   - router resolutions, as a router.Observer (Config.Observers)
//   - resolver cache traffic, via Hooks() (resolver.WithHooks)
//   - navigation lifecycle, as a wayfind.Recorder (Config.Recorder)
//
// Metrics collected:
//   - wayfind_resolutions_total: Counter of resolutions by method and status
//   - wayfind_resolution_duration_seconds: Histogram of resolution duration
//   - wayfind_segments_total: Counter of segment resolutions by method and status
//   - wayfind_segment_duration_seconds: Histogram of segment duration
//   - wayfind_resolver_hits_total: Counter of resolver cache hits
//   - wayfind_resolver_misses_total: Counter of resolver cache misses
//   - wayfind_resolver_coalesced_total: Counter of coalesced lookups
//   - wayfind_resolver_evictions_total: Counter of LRU evictions
//   - wayfind_resolver_load_duration_seconds: Histogram of loader duration
//   - wayfind_resolver_load_failures_total: Counter of failed loads
//   - wayfind_navigations_total: Counter of navigations by history action
//   - wayfind_navigation_duration_seconds: Histogram of time to steady state
//   - wayfind_navigation_outcomes_total: Counter of outcomes by status
//   - wayfind_subscribers: Gauge of current subscribers
//
// Example:
//
//	m := telemetry.NewMetrics(telemetry.WithNamespace("myapp"))
//	res := resolver.New[router.Resolution](resolver.WithHooks(m.Hooks()))
//	nav, err := wayfind.New(wayfind.Config{
//	    Routes:    routes,
//	    Resolver:  res,
//	    Observers: []router.Observer{m},
//	    Recorder:  m,
//	})
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
type Metrics struct {
	resolutionsTotal   *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	segmentsTotal      *prometheus.CounterVec
	segmentDuration    *prometheus.HistogramVec

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheCoalesced prometheus.Counter
	cacheEvictions prometheus.Counter
	loadDuration   prometheus.Histogram
	loadFailures   prometheus.Counter

	navigationsTotal   *prometheus.CounterVec
	navigationDuration prometheus.Histogram
	navigationOutcomes *prometheus.CounterVec
	subscribers        prometheus.Gauge
}

var (
	_ router.Observer  = (*Metrics)(nil)
	_ wayfind.Recorder = (*Metrics)(nil)
)

// NewMetrics builds and registers the collector.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		resolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolutions_total",
			Help:        "Total number of URL resolutions by method and final status",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "status"}),

		resolutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolution_duration_seconds",
			Help:        "URL resolution duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),

		segmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "segments_total",
			Help:        "Total number of segment resolutions by method and status",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "status"}),

		segmentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "segment_duration_seconds",
			Help:        "Segment resolution duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolver_hits_total",
			Help:        "Total number of resolver cache hits",
			ConstLabels: config.ConstLabels,
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolver_misses_total",
			Help:        "Total number of resolver cache misses",
			ConstLabels: config.ConstLabels,
		}),

		cacheCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolver_coalesced_total",
			Help:        "Total number of lookups coalesced into an in-flight load",
			ConstLabels: config.ConstLabels,
		}),

		cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolver_evictions_total",
			Help:        "Total number of resolver cache evictions",
			ConstLabels: config.ConstLabels,
		}),

		loadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolver_load_duration_seconds",
			Help:        "Segment loader duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		loadFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolver_load_failures_total",
			Help:        "Total number of failed segment loads",
			ConstLabels: config.ConstLabels,
		}),

		navigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of navigations by history action",
			ConstLabels: config.ConstLabels,
		}, []string{"action"}),

		navigationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Time from navigation start to settle in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		navigationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_outcomes_total",
			Help:        "Total number of navigation settlements by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscribers",
			Help:        "Number of current routing state subscribers",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// =============================================================================
// router.Observer
// =============================================================================

// ResolveStarted implements router.Observer. It records nothing; the
// counters fire on completion.
func (m *Metrics) ResolveStarted(ctx context.Context, href string, method router.Method) context.Context {
	return ctx
}

// SegmentResolved implements router.Observer.
func (m *Metrics) SegmentResolved(ctx context.Context, pathname string, method router.Method, d time.Duration, err error) {
	m.segmentDuration.WithLabelValues(string(method)).Observe(d.Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	m.segmentsTotal.WithLabelValues(string(method), status).Inc()
}

// ResolveFinished implements router.Observer.
func (m *Metrics) ResolveFinished(ctx context.Context, href string, method router.Method, d time.Duration, state router.RoutingState) {
	m.resolutionDuration.WithLabelValues(string(method)).Observe(d.Seconds())
	m.resolutionsTotal.WithLabelValues(string(method), resolveStatus(state)).Inc()
}

// resolveStatus categorizes a final state into a low-cardinality label.
func resolveStatus(state router.RoutingState) string {
	switch {
	case state.Err != nil:
		return "error"
	case state.NotFound():
		return "not_found"
	default:
		if _, ok := state.Redirect(); ok {
			return "redirect"
		}
		return "success"
	}
}

// =============================================================================
// resolver.Hooks
// =============================================================================

// Hooks returns resolver cache hooks backed by this collector, for
// resolver.WithHooks.
func (m *Metrics) Hooks() resolver.Hooks {
	return resolver.Hooks{
		Hit:       func(resolver.Key) { m.cacheHits.Inc() },
		Miss:      func(resolver.Key) { m.cacheMisses.Inc() },
		Coalesced: func(resolver.Key) { m.cacheCoalesced.Inc() },
		Load: func(_ resolver.Key, d time.Duration, err error) {
			m.loadDuration.Observe(d.Seconds())
			if err != nil {
				m.loadFailures.Inc()
			}
		},
		Evict: func(resolver.Key) { m.cacheEvictions.Inc() },
	}
}

// =============================================================================
// wayfind.Recorder
// =============================================================================

// NavigationStarted implements wayfind.Recorder.
func (m *Metrics) NavigationStarted(href string, action history.Action) {
	m.navigationsTotal.WithLabelValues(action.String()).Inc()
}

// NavigationSettled implements wayfind.Recorder.
func (m *Metrics) NavigationSettled(href string, d time.Duration, err error) {
	m.navigationDuration.Observe(d.Seconds())
	m.navigationOutcomes.WithLabelValues(navigationOutcome(err)).Inc()
}

// SubscriberCount implements wayfind.Recorder.
func (m *Metrics) SubscriberCount(n int) {
	m.subscribers.Set(float64(n))
}

// navigationOutcome categorizes a settlement. Supersession is routine
// (a newer navigation won), so it gets its own label instead of "error".
func navigationOutcome(err error) string {
	switch {
	case err == nil:
		return "settled"
	case errors.Is(err, wayfind.ErrSuperseded):
		return "superseded"
	default:
		return "error"
	}
}
