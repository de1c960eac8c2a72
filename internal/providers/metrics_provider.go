package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mentiond/internal/services"
	"mentiond/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncStreamEvents(eventType string)
	IncDroppedFrames()
	IncReconnects()
	ObserveSnapshotDuration(duration time.Duration)
	ObservePersistenceDuration(duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	streamEvents        *prometheus.CounterVec
	droppedFrames       prometheus.Counter
	reconnects          prometheus.Counter
	snapshotDuration    prometheus.Histogram
	persistenceDuration prometheus.Histogram
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncStreamEvents(eventType string) {
	m.streamEvents.WithLabelValues(eventType).Inc()
}

func (m *MetricsProvider) IncDroppedFrames() {
	m.droppedFrames.Inc()
}

func (m *MetricsProvider) IncReconnects() {
	m.reconnects.Inc()
}

func (m *MetricsProvider) ObserveSnapshotDuration(duration time.Duration) {
	m.snapshotDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, service services.FeedServiceInterface) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mentiond_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentiond_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mentiond_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mentiond_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		streamEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mentiond_stream_events_total",
			Help: "Total number of stream events by type",
		}, []string{"type"}),

		droppedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mentiond_stream_dropped_frames_total",
			Help: "Total number of malformed stream frames dropped",
		}),

		reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mentiond_stream_reconnects_total",
			Help: "Total number of stream reconnect attempts",
		}),

		snapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mentiond_snapshot_duration_seconds",
			Help:    "Duration of REST snapshot fetches in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mentiond_persistence_duration_seconds",
			Help:    "Duration of persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mentiond_feed_records",
		Help: "Current number of records in the feed",
	}, func() float64 {
		return float64(service.FeedLen())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mentiond_pending_events",
		Help: "Current number of stream events buffered before initialization",
	}, func() float64 {
		return float64(service.PendingLen())
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncStreamEvents(_ string)                         {}
func (n *noopMetrics) IncDroppedFrames()                                {}
func (n *noopMetrics) IncReconnects()                                   {}
func (n *noopMetrics) ObserveSnapshotDuration(_ time.Duration)          {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
