// Package metrics provides Prometheus instrumentation for taskgate.
//
// All collectors are package-level variables registered with the default
// registry in init(), so importing the package is enough to make the
// metrics available. The API server mounts Handler() under /metrics.
//
// # Metrics
//
// Task lifecycle:
//
//	taskgate_tasks_created_total          counter
//	taskgate_task_cancellations_total     counter
//	taskgate_task_cleanups_total          counter
//
// Event processing:
//
//	taskgate_events_processed_total       counter  (kind, outcome)
//	taskgate_event_queue_depth            gauge
//
// Scheduler client:
//
//	taskgate_scheduler_requests_total            counter    (operation, result)
//	taskgate_scheduler_request_duration_seconds  histogram  (operation)
//
// Expiration listener:
//
//	taskgate_expired_tasks_total                       counter
//	taskgate_expiration_listener_reconnects_total      counter
//
// API:
//
//	taskgate_api_requests_total              counter    (method, status)
//	taskgate_api_request_duration_seconds    histogram  (method)
//
// # Usage
//
//	timer := metrics.NewTimer()
//	err := client.SubmitTask(ctx, record)
//	timer.ObserveOn(metrics.SchedulerRequestDuration.WithLabelValues("submit"))
//
// The Timer type is a small convenience wrapper; durations can also be
// observed directly with prometheus.Observer.
package metrics
