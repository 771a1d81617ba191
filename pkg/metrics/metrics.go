package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task lifecycle metrics
	TasksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskgate_tasks_created_total",
			Help: "Total number of tasks accepted for dispatch",
		},
	)

	TaskCancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskgate_task_cancellations_total",
			Help: "Total number of cancellation requests accepted",
		},
	)

	TaskCleanups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskgate_task_cleanups_total",
			Help: "Total number of tasks cancelled and deleted via cleanup",
		},
	)

	// Event processor metrics
	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_events_processed_total",
			Help: "Total number of lifecycle events handled by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	EventQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskgate_event_queue_depth",
			Help: "Number of lifecycle events waiting in the in-process queue",
		},
	)

	// Scheduler client metrics
	SchedulerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_scheduler_requests_total",
			Help: "Total number of outbound scheduler calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	SchedulerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskgate_scheduler_request_duration_seconds",
			Help:    "Outbound scheduler call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Expiration listener metrics
	ExpiredTasksHandled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskgate_expired_tasks_total",
			Help: "Total number of task key expirations reconciled against the indexes",
		},
	)

	ListenerReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskgate_expiration_listener_reconnects_total",
			Help: "Total number of times the expiration listener resubscribed after a dropped connection",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskgate_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskgate_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(TasksCreated)
	prometheus.MustRegister(TaskCancellations)
	prometheus.MustRegister(TaskCleanups)
	prometheus.MustRegister(EventsProcessed)
	prometheus.MustRegister(EventQueueDepth)
	prometheus.MustRegister(SchedulerRequests)
	prometheus.MustRegister(SchedulerRequestDuration)
	prometheus.MustRegister(ExpiredTasksHandled)
	prometheus.MustRegister(ListenerReconnects)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations
type Timer struct {
	start time.Time
}

// NewTimer creates a timer starting now
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveOn records the elapsed seconds on the given observer
func (t *Timer) ObserveOn(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}
