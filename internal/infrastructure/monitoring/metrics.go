package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Launch metrics
	LaunchesTotal  *prometheus.CounterVec
	LaunchDuration prometheus.Histogram

	// Lifecycle metrics
	Transitions   *prometheus.CounterVec
	TimerExpiries *prometheus.CounterVec
	CrashFinishes prometheus.Counter

	// World-graph gauges
	SurfacesActive   prometheus.Gauge
	ContainersActive prometheus.Gauge
	GroupsActive     prometheus.Gauge
	ItemsActive      prometheus.Gauge
	ItemsResumed     prometheus.Gauge

	// Orchestrator queue
	QueueDepth     prometheus.Gauge
	CommandsTotal  *prometheus.CounterVec
	PendingLaunches prometheus.Gauge

	// Host metrics
	HostCalls  *prometheus.CounterVec
	HostErrors *prometheus.CounterVec

	// Event-stream metrics
	StreamConnections prometheus.Gauge
	StreamMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests int64
	TotalErrors   int64
	TotalLaunches int64
	ActiveItems   int64
	TotalDuration float64 // sum of all request durations
	RequestCount  int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellhost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellhost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellhost_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellhost_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Launch metrics
		LaunchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellhost_launches_total",
				Help: "Total launch requests by result code",
			},
			[]string{"result"},
		),
		LaunchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shellhost_launch_duration_seconds",
				Help:    "Launch resolution duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),

		// Lifecycle metrics
		Transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellhost_lifecycle_transitions_total",
				Help: "Total lifecycle state transitions",
			},
			[]string{"from", "to"},
		),
		TimerExpiries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellhost_timer_expiries_total",
				Help: "Total lifecycle timer expiries by kind",
			},
			[]string{"kind"},
		),
		CrashFinishes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shellhost_crash_finishes_total",
				Help: "Total items finished with a crash disposition",
			},
		),

		// World-graph gauges
		SurfacesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_surfaces_active",
				Help: "Number of registered output surfaces",
			},
		),
		ContainersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_containers_active",
				Help: "Number of live containers",
			},
		),
		GroupsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_groups_active",
				Help: "Number of live groups",
			},
		),
		ItemsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_items_active",
				Help: "Number of live work items",
			},
		),
		ItemsResumed: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_items_resumed",
				Help: "Number of resumed work items",
			},
		),

		// Orchestrator queue
		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_queue_depth",
				Help: "Commands waiting on the orchestrator queue",
			},
		),
		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellhost_commands_total",
				Help: "Total commands processed by the orchestrator",
			},
			[]string{"command"},
		),
		PendingLaunches: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_pending_launches",
				Help: "Launches parked while app switches are disabled",
			},
		),

		// Host metrics
		HostCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellhost_host_calls_total",
				Help: "Total process-host calls",
			},
			[]string{"method", "status"},
		),
		HostErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellhost_host_errors_total",
				Help: "Total process-host errors",
			},
			[]string{"method", "code"},
		),

		// Event-stream metrics
		StreamConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_stream_connections",
				Help: "Number of active event-stream connections",
			},
		),
		StreamMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellhost_stream_messages_total",
				Help: "Total event-stream messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellhost_uptime_seconds",
				Help: "Orchestrator uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordLaunch records one launch request and its result code
func (m *Metrics) RecordLaunch(result string, duration time.Duration) {
	m.LaunchesTotal.WithLabelValues(result).Inc()
	m.LaunchDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalLaunches++
	m.mu.Unlock()
}

// RecordTransition records one lifecycle state transition
func (m *Metrics) RecordTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordTimerExpiry records a forced advance from an expired timer
func (m *Metrics) RecordTimerExpiry(kind string) {
	m.TimerExpiries.WithLabelValues(kind).Inc()
}

// RecordCommand records one processed orchestrator command
func (m *Metrics) RecordCommand(name string) {
	m.CommandsTotal.WithLabelValues(name).Inc()
}

// RecordHostCall records a process-host call
func (m *Metrics) RecordHostCall(method, status string) {
	m.HostCalls.WithLabelValues(method, status).Inc()
}

// RecordHostError records a process-host error
func (m *Metrics) RecordHostError(method, code string) {
	m.HostErrors.WithLabelValues(method, code).Inc()
}

// SetWorldCounts updates the world-graph gauges
func (m *Metrics) SetWorldCounts(surfaces, containers, groups, items, resumed int) {
	m.SurfacesActive.Set(float64(surfaces))
	m.ContainersActive.Set(float64(containers))
	m.GroupsActive.Set(float64(groups))
	m.ItemsActive.Set(float64(items))
	m.ItemsResumed.Set(float64(resumed))

	m.mu.Lock()
	m.snapshot.ActiveItems = int64(items)
	m.mu.Unlock()
}

// SetQueueDepth updates the orchestrator queue gauge
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// SetPendingLaunches updates the parked-launch gauge
func (m *Metrics) SetPendingLaunches(count int) {
	m.PendingLaunches.Set(float64(count))
}

// RecordStreamMessage records an event-stream message
func (m *Metrics) RecordStreamMessage(direction, msgType string) {
	m.StreamMessages.WithLabelValues(direction, msgType).Inc()
}

// IncStreamConnections increments event-stream connections
func (m *Metrics) IncStreamConnections() {
	m.StreamConnections.Inc()
}

// DecStreamConnections decrements event-stream connections
func (m *Metrics) DecStreamConnections() {
	m.StreamConnections.Dec()
}
