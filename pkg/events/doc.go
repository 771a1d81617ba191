// Package events provides the in-process lifecycle event queue that
// decouples the API layer from scheduler communication.
//
// When a task is created or a cancellation is requested, the API
// returns immediately and a lifecycle event is pushed onto the queue.
// Event processor workers pop events and drive the actual scheduler
// calls, so API latency never depends on scheduler latency.
//
// # Architecture
//
//	┌─────────────┐   Push    ┌─────────────┐   Pop    ┌──────────────┐
//	│  API layer  │ ────────> │    Queue    │ ───────> │  Processor   │
//	│  (service)  │           │ (chan 1024) │          │   workers    │
//	└─────────────┘           └─────────────┘          └──────────────┘
//
// The queue is a bounded channel. Push blocks when the buffer is full,
// which applies backpressure to task creation rather than silently
// dropping events. Close stops the queue; Pop drains any events that
// were already buffered before reporting closed, so workers finish
// in-flight work during shutdown.
//
// # Event Kinds
//
//	submission    a newly created task must be submitted to the scheduler
//	cancellation  a cancel was requested for a dispatched or running task
//
// Events carry the task identity and, for submissions, the parameters,
// so workers can build the scheduler payload without re-reading the
// record first.
//
// # Usage
//
//	queue := events.NewQueue()
//	queue.Push(events.NewSubmission(task))
//
//	// worker loop
//	for {
//		event, ok := queue.Pop()
//		if !ok {
//			return
//		}
//		handle(event)
//	}
//
//	queue.Close()
package events
