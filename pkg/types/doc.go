/*
Package types defines the core data model shared by all taskgate components.

The central type is TaskRecord, the durable unit persisted in Redis and
returned by the HTTP API. Everything else in this package supports it: the
TaskStatus lifecycle enum with its transition rules, the Priority level, the
structured TaskResult payload, and the timestamped log entry format.

# Task Lifecycle

A task moves through the following state machine:

	PENDING ────► DISPATCHING ────► RUNNING ────► COMPLETED
	   │               │  │            │  │
	   │               │  └── FAILED ◄─┘  │
	   │               │         ▲        │
	   ▼               ▼         │        ▼
	  CANCEL_REQUESTED ◄──────────────────┘
	           │                 │
	           ├─────────────────┘
	           ▼
	       CANCELLED

COMPLETED, FAILED, and CANCELLED are terminal: once reached, no further
transitions are accepted. Every non-terminal status can move to
CANCEL_REQUESTED, and CANCEL_REQUESTED resolves to either CANCELLED or
FAILED. The transition table is encoded in TaskStatus.CanTransitionTo and
enforced at the service layer; the repository performs raw writes so that
concurrent lifecycle updates stay last-write-wins.

Statuses serialize as lowercase strings ("pending", "cancel_requested", ...)
both in Redis and on the wire.

# Log Entries

Task logs are an append-only list of human-readable strings. Each entry is
prefixed with an RFC 3339 UTC timestamp and a comma:

	2026-01-02T15:04:05Z,Dispatching to scheduler

Readers split on the first comma only, so messages may themselves contain
commas (scheduler response bodies often do). FormatLogEntry and
SplitLogEntry implement the two directions.

# Usage

Creating a record:

	record := types.NewTaskRecord("42", "sync", "alice", map[string]any{
		"input": "value",
	})
	// record.Status == types.TaskStatusPending

Guarding a transition:

	if record.Status.CanTransitionTo(types.TaskStatusCancelRequested) {
		// safe to request cancellation
	}

# Integration Points

This package is imported by:

  - pkg/repository: serializes TaskRecord to and from Redis
  - pkg/service: enforces the transition table
  - pkg/processor: drives dispatch-time status flips
  - pkg/api: renders records in HTTP responses

The Priority field is stored and surfaced but never consulted when
dispatching; submission order is FIFO.
*/
package types
