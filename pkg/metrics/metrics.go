package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	TasksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cronfleet_tasks_total",
			Help: "Total number of registered tasks",
		},
	)

	AgentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cronfleet_agents_total",
			Help: "Total number of registered agents by queue status",
		},
		[]string{"status"},
	)

	SlotsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cronfleet_slots_total",
			Help: "Total number of distinct slots currently holding a bucket",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cronfleet_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cronfleet_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Dispatch metrics
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cronfleet_dispatch_duration_seconds",
			Help:    "Time taken to execute proxy_call, including the outbound invocation",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cronfleet_dispatches_total",
			Help: "Total number of proxy_call dispatches by outcome",
		},
		[]string{"outcome"}, // rescheduled, exited, invocation_failed
	)

	TasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cronfleet_tasks_created_total",
			Help: "Total number of tasks created",
		},
	)

	TasksExitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cronfleet_tasks_exited_total",
			Help: "Total number of tasks that left the schedule, by reason",
		},
		[]string{"reason"}, // removed, exhausted, one_shot_complete
	)

	// Agent lifecycle metrics
	AgentsRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cronfleet_agents_registered_total",
			Help: "Total number of agents registered",
		},
	)

	AgentsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cronfleet_agents_evicted_total",
			Help: "Total number of agents evicted by the heartbeat for missing their turn",
		},
	)

	AgentsPromotedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cronfleet_agents_promoted_total",
			Help: "Total number of agents promoted from pending to active by the heartbeat",
		},
	)

	HeartbeatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cronfleet_heartbeat_duration_seconds",
			Help:    "Time taken to run a tick of the agent heartbeat",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(AgentsTotal)
	prometheus.MustRegister(SlotsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(DispatchesTotal)
	prometheus.MustRegister(TasksCreatedTotal)
	prometheus.MustRegister(TasksExitedTotal)
	prometheus.MustRegister(AgentsRegisteredTotal)
	prometheus.MustRegister(AgentsEvictedTotal)
	prometheus.MustRegister(AgentsPromotedTotal)
	prometheus.MustRegister(HeartbeatDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
