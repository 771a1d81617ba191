package events

import (
	"sync"
	"time"

	"github.com/taskgate/taskgate/pkg/metrics"
	"github.com/taskgate/taskgate/pkg/types"
)

// Kind represents the kind of lifecycle event
type Kind string

const (
	KindSubmission   Kind = "submission"
	KindCancellation Kind = "cancellation"
)

// Event represents a task lifecycle event awaiting processing. It
// carries the fields the scheduler call needs, so workers do not have
// to re-read the record before talking to the scheduler.
type Event struct {
	Kind       Kind
	TaskID     string
	Service    string
	UserID     string
	Parameters map[string]any
	EnqueuedAt time.Time
}

// NewSubmission creates a submission event for the given task
func NewSubmission(task *types.TaskRecord) Event {
	return Event{
		Kind:       KindSubmission,
		TaskID:     task.TaskID,
		Service:    task.Service,
		UserID:     task.UserID,
		Parameters: task.Parameters,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewCancellation creates a cancellation event for the given task
func NewCancellation(task *types.TaskRecord) Event {
	return Event{
		Kind:       KindCancellation,
		TaskID:     task.TaskID,
		Service:    task.Service,
		UserID:     task.UserID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue is the in-process buffer between the API layer and the event
// processor workers. Push blocks when the buffer is full, so a slow
// scheduler applies backpressure to task creation instead of dropping
// events.
type Queue struct {
	ch        chan Event
	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a new event queue
func NewQueue() *Queue {
	return &Queue{
		ch:     make(chan Event, 1024), // Buffer up to 1024 events
		stopCh: make(chan struct{}),
	}
}

// Push enqueues an event. It blocks while the buffer is full and
// returns false once the queue has been closed.
func (q *Queue) Push(event Event) bool {
	// Set timestamp if not set
	if event.EnqueuedAt.IsZero() {
		event.EnqueuedAt = time.Now().UTC()
	}

	select {
	case q.ch <- event:
		metrics.EventQueueDepth.Inc()
		return true
	case <-q.stopCh:
		return false
	}
}

// Pop dequeues the next event. It blocks until an event arrives and
// returns ok=false once the queue is closed and drained.
func (q *Queue) Pop() (Event, bool) {
	select {
	case event := <-q.ch:
		metrics.EventQueueDepth.Dec()
		return event, true
	case <-q.stopCh:
		// Drain events enqueued before the close
		select {
		case event := <-q.ch:
			metrics.EventQueueDepth.Dec()
			return event, true
		default:
			return Event{}, false
		}
	}
}

// Close stops the queue. Pending events are still returned by Pop
// until the buffer is drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.stopCh)
	})
}

// Len returns the number of events waiting in the buffer
func (q *Queue) Len() int {
	return len(q.ch)
}
