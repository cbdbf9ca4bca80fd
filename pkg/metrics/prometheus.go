// Package metrics provides Prometheus metrics for the ranking engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the engine.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	enabled        bool
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Pairing
	pairsIssued            prometheus.Counter
	pairRecencyRetries     prometheus.Counter
	insufficientPopulation prometheus.Counter

	// Voting
	votes            *prometheus.CounterVec
	ratingTransfer   prometheus.Histogram
	ratingCompensate prometheus.Counter
	tokensSwept      prometheus.Counter

	// Population
	profilesTotal prometheus.Gauge

	// Store
	storeUpdateLatency *prometheus.HistogramVec
	storeQueryLatency  *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// Configure rebuilds the global manager with opts on a fresh registry.
// It must run before any handler or recorder is in use; later calls to
// GetRegistry return the new registry.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithRegisterer(customRegistry))...)
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "ranked",
		subsystem:      "engine",
		latencyBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:        true,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.constLabels)

	m.pairsIssued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("pairs_issued_total"),
		Help: "Total number of match tokens issued",
	})
	m.pairRecencyRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("pair_recency_retries_total"),
		Help: "Draws rejected because the pair was matched recently",
	})
	m.insufficientPopulation = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("pair_insufficient_population_total"),
		Help: "Pair requests refused because fewer than two profiles were eligible",
	})

	m.votes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("votes_total"),
		Help: "Votes by ledger outcome",
	}, []string{"result"})
	m.ratingTransfer = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("rating_transfer_points"),
		Help:    "Rating points moved from loser to winner per accepted vote",
		Buckets: []float64{0, 1, 2, 4, 8, 12, 16, 20, 24, 28, 32, 48, 64},
	})
	m.ratingCompensate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("rating_compensations_total"),
		Help: "Winner updates rolled back after a failed loser update",
	})
	m.tokensSwept = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("tokens_swept_total"),
		Help: "Expired, unresolved match tokens removed by the sweeper",
	})

	m.profilesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("profiles_total"),
		Help: "Number of profiles in the store",
	})

	m.storeUpdateLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("store_update_latency_milliseconds"),
		Help:    "Write latency by backing store",
		Buckets: m.latencyBuckets,
	}, []string{"store"})
	m.storeQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("store_query_latency_milliseconds"),
		Help:    "Read latency by backing store",
		Buckets: m.latencyBuckets,
	}, []string{"store"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("http_requests_total"),
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("errors_by_component_total"),
		Help: "Errors by component",
	}, []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("errors_by_type_total"),
		Help: "Errors by type and severity",
	}, []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "Errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("system_memory_usage_bytes"),
		Help: "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("system_goroutine_count"),
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("system_gc_pause_time_milliseconds"),
		Help:    "Average GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Enabled reports whether collection is on.
func (m *Manager) Enabled() bool { return m.enabled }

// Vote outcome labels.
const (
	VoteAccepted        = "accepted"
	VoteAlreadyResolved = "already_resolved"
	VoteExpired         = "expired"
	VoteNotFound        = "not_found"
	VoteInvalidWinner   = "invalid_winner"
	VoteFailed          = "failed"
)

// RecordPairIssued counts an issued match token.
func RecordPairIssued() {
	if globalManager.enabled {
		globalManager.pairsIssued.Inc()
	}
}

// RecordPairRecencyRetry counts a draw rejected by the recency window.
func RecordPairRecencyRetry() {
	if globalManager.enabled {
		globalManager.pairRecencyRetries.Inc()
	}
}

// RecordInsufficientPopulation counts a refused pair request.
func RecordInsufficientPopulation() {
	if globalManager.enabled {
		globalManager.insufficientPopulation.Inc()
	}
}

// RecordVote counts a vote by outcome label.
func RecordVote(result string) {
	if globalManager.enabled {
		globalManager.votes.WithLabelValues(result).Inc()
	}
}

// RecordRatingTransfer observes the points moved by one accepted vote.
func RecordRatingTransfer(points int64) {
	if globalManager.enabled {
		globalManager.ratingTransfer.Observe(float64(points))
	}
}

// RecordRatingCompensation counts a rolled back winner update.
func RecordRatingCompensation() {
	if globalManager.enabled {
		globalManager.ratingCompensate.Inc()
	}
}

// RecordTokensSwept adds n swept tokens.
func RecordTokensSwept(n int) {
	if globalManager.enabled && n > 0 {
		globalManager.tokensSwept.Add(float64(n))
	}
}

// UpdateProfilesTotal sets the profile population gauge.
func UpdateProfilesTotal(n int) {
	if globalManager.enabled {
		globalManager.profilesTotal.Set(float64(n))
	}
}

// RecordStoreUpdateLatency observes a store write.
func RecordStoreUpdateLatency(store string, since time.Time) {
	if globalManager.enabled {
		globalManager.storeUpdateLatency.WithLabelValues(store).Observe(millis(since))
	}
}

// RecordStoreQueryLatency observes a store read.
func RecordStoreQueryLatency(store string, since time.Time) {
	if globalManager.enabled {
		globalManager.storeQueryLatency.WithLabelValues(store).Observe(millis(since))
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if globalManager.enabled {
		globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func millis(since time.Time) float64 {
	return float64(time.Since(since).Microseconds()) / 1000
}
