// Package processor runs the worker pool that turns lifecycle events
// into scheduler calls and task state transitions.
//
// # Architecture
//
//	┌───────────┐  Pop   ┌──────────────────────┐        ┌───────────┐
//	│   Queue   │ ─────> │  worker 1..N         │ ─────> │ Scheduler │
//	└───────────┘        │  (submit / cancel)   │  HTTP  └───────────┘
//	                     └──────────┬───────────┘
//	                                │ SetStatus / AppendLog
//	                                v
//	                     ┌──────────────────────┐
//	                     │      Repository      │
//	                     └──────────────────────┘
//
// Workers are independent; two events for the same task can be in
// flight at once. Record writes are last-write-wins and terminal
// states are enforced above this package, so the pool needs no
// per-task serialization.
//
// # Submission Outcomes
//
//	scheduler 2xx      log acknowledgement, status -> running
//	unreachable        status -> failed, reason in the task log
//	403 or 404         status -> failed (permanent rejection)
//	other non-2xx      operator error log only, stays dispatching
//	any other error    status -> failed with the error text
//
// # Cancellation Outcomes
//
//	scheduler 2xx      status -> cancelled
//	403 or 404         status -> failed
//	other non-2xx      operator error log only, state unchanged
//	unreachable        noted in the task log, state unchanged
//	any other error    noted in the task log, state unchanged
//
// Submission treats an unreachable scheduler as fatal because nothing
// was handed off yet; cancellation treats it as retryable because the
// cancel intent is already recorded on the task and a later cancel
// call can re-drive it.
//
// # Shutdown
//
// Stop closes the queue and waits for the workers. Buffered events
// are drained first, so an orderly shutdown does not strand accepted
// work in memory.
package processor
