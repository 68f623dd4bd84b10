// Package metrics exposes Prometheus metrics for upstream fetches, refresh
// runs, the read cache and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/statline/internal/cache"
	"github.com/sells-group/statline/internal/model"
)

// Manager owns a registry and every metric statline records. A nil
// *Manager is valid and records nothing.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	// Upstream
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	// Refresh
	refreshUnits    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	refreshRows     prometheus.Counter
	refreshRuns     prometheus.Counter
	lastRefreshUnix prometheus.Gauge

	// Cache
	cacheEntries prometheus.Gauge
	cacheHits    prometheus.Gauge
	cacheMisses  prometheus.Gauge

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewManager creates a manager with its own registry. Go runtime and
// process collectors are registered alongside.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "statline",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.upstreamRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Upstream HTTP requests by host and status code (0 = transport error)",
	}, []string{"host", "status_code"})

	m.upstreamDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Upstream HTTP request duration in seconds",
		Buckets:   m.buckets,
	}, []string{"host"})

	m.refreshUnits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "units_total",
		Help:      "Refresh units by kind and terminal status",
	}, []string{"kind", "status"})

	m.refreshDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "unit_duration_seconds",
		Help:      "Fetch, transform and commit time of one refresh unit",
		Buckets:   m.buckets,
	}, []string{"kind"})

	m.refreshRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "rows_committed_total",
		Help:      "Rows written by committed refresh units",
	})

	m.refreshRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "runs_total",
		Help:      "Completed refresh runs",
	})

	m.lastRefreshUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last refresh run finished",
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Entries currently held by the query cache",
	})

	m.cacheHits = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "hits",
		Help:      "Query cache hits since start",
	})

	m.cacheMisses = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "misses",
		Help:      "Query cache misses since start",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request duration in seconds",
		Buckets:   m.buckets,
	}, []string{"route", "method"})
}

// Registry returns the registry the metrics live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveUpstream records one upstream HTTP request.
func (m *Manager) ObserveUpstream(host string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(host, strconv.Itoa(status)).Inc()
	m.upstreamDuration.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveUnit records the outcome of one refresh unit.
func (m *Manager) ObserveUnit(res model.UnitResult) {
	if m == nil {
		return
	}
	kind := unitKind(res.Week)
	m.refreshUnits.WithLabelValues(kind, string(res.Status)).Inc()
	m.refreshDuration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	if res.Status == model.UnitCommitted {
		m.refreshRows.Add(float64(res.Rows))
	}
}

// ObserveRun records a finished refresh run.
func (m *Manager) ObserveRun(finished time.Time) {
	if m == nil {
		return
	}
	m.refreshRuns.Inc()
	m.lastRefreshUnix.Set(float64(finished.Unix()))
}

// SetCacheStats publishes a cache statistics snapshot.
func (m *Manager) SetCacheStats(s cache.Stats) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(s.Entries))
	m.cacheHits.Set(float64(s.Hits))
	m.cacheMisses.Set(float64(s.Misses))
}

// ObserveHTTP records one API request.
func (m *Manager) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func unitKind(week int) string {
	if week == 0 {
		return "season"
	}
	return "week"
}
