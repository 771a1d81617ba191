package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/taskgate/taskgate/pkg/events"
	"github.com/taskgate/taskgate/pkg/log"
	"github.com/taskgate/taskgate/pkg/metrics"
	"github.com/taskgate/taskgate/pkg/repository"
	"github.com/taskgate/taskgate/pkg/scheduler"
	"github.com/taskgate/taskgate/pkg/types"
)

// Each event handler gets a bounded window for its store and
// scheduler calls
const handleTimeout = 30 * time.Second

// TaskStore is the record surface the processor mutates
type TaskStore interface {
	SetStatus(ctx context.Context, taskID string, status types.TaskStatus, logMessage string) (*types.TaskRecord, error)
	AppendLog(ctx context.Context, taskID, message string) error
}

// SchedulerClient drives the external scheduler
type SchedulerClient interface {
	SubmitTask(ctx context.Context, payload scheduler.SubmitPayload) error
	CancelTask(ctx context.Context, payload scheduler.CancelPayload) error
}

// Processor consumes lifecycle events and drives scheduler
// communication. Each worker independently blocks on the queue, so
// events for the same task can be handled concurrently; the record's
// last-write-wins semantics and the service layer's transition checks
// absorb the resulting races.
type Processor struct {
	queue   *events.Queue
	store   TaskStore
	sched   SchedulerClient
	workers int
	wg      sync.WaitGroup
}

// New creates a processor with the given worker count
func New(queue *events.Queue, store TaskStore, sched SchedulerClient, workers int) (*Processor, error) {
	if workers < 1 {
		return nil, fmt.Errorf("event worker count must be at least 1, got %d", workers)
	}
	return &Processor{
		queue:   queue,
		store:   store,
		sched:   sched,
		workers: workers,
	}, nil
}

// Start launches the worker pool
func (p *Processor) Start() {
	log.WithComponent("event-processor").Info().
		Int("workers", p.workers).
		Msg("Starting event processor")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue and waits for the workers. Events already
// buffered are drained before the workers exit.
func (p *Processor) Stop() {
	p.queue.Close()
	p.wg.Wait()
	log.WithComponent("event-processor").Info().Msg("Event processor stopped")
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()
	logger := log.WithComponent("event-processor")
	logger.Debug().Int("worker", id).Msg("Worker started")

	for {
		event, ok := p.queue.Pop()
		if !ok {
			logger.Debug().Int("worker", id).Msg("Worker stopped")
			return
		}
		p.handle(event)
	}
}

func (p *Processor) handle(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	switch event.Kind {
	case events.KindSubmission:
		p.handleSubmission(ctx, event)
	case events.KindCancellation:
		p.handleCancellation(ctx, event)
	default:
		log.WithComponent("event-processor").Warn().
			Str("kind", string(event.Kind)).
			Str("task_id", event.TaskID).
			Msg("Dropping event of unknown kind")
	}
}

// handleSubmission drives a created task to the scheduler. 403 and 404
// answers are permanent rejections and fail the task; any other
// non-2xx answer is surfaced to operators but leaves the task in
// dispatching for external resolution.
func (p *Processor) handleSubmission(ctx context.Context, event events.Event) {
	logger := log.WithTaskID(event.TaskID)

	if _, err := p.store.SetStatus(ctx, event.TaskID, types.TaskStatusDispatching, "Dispatching to scheduler"); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn().Msg("Submission event for a task that no longer exists")
		} else {
			logger.Error().Err(err).Msg("Failed to mark task dispatching")
		}
		metrics.EventsProcessed.WithLabelValues("submission", "error").Inc()
		return
	}

	err := p.sched.SubmitTask(ctx, scheduler.SubmitPayload{
		TaskID:     event.TaskID,
		Service:    event.Service,
		UserID:     event.UserID,
		Parameters: event.Parameters,
	})
	if err == nil {
		if err := p.store.AppendLog(ctx, event.TaskID, "Scheduler acknowledged submission"); err != nil {
			logger.Error().Err(err).Msg("Failed to log scheduler acknowledgement")
		}
		if _, err := p.store.SetStatus(ctx, event.TaskID, types.TaskStatusRunning, ""); err != nil {
			logger.Error().Err(err).Msg("Failed to mark task running")
		}
		metrics.EventsProcessed.WithLabelValues("submission", "accepted").Inc()
		return
	}

	var unavail *scheduler.UnavailableError
	var respErr *scheduler.ResponseError
	switch {
	case errors.As(err, &unavail):
		p.setFailed(ctx, event.TaskID, fmt.Sprintf("Scheduler unavailable at %s: %v", unavail.URL, unavail.Err))
		metrics.EventsProcessed.WithLabelValues("submission", "unavailable").Inc()

	case errors.As(err, &respErr):
		if respErr.StatusCode == http.StatusForbidden || respErr.StatusCode == http.StatusNotFound {
			p.setFailed(ctx, event.TaskID, fmt.Sprintf("Scheduler returned %d: %s", respErr.StatusCode, respErr.Body))
			metrics.EventsProcessed.WithLabelValues("submission", "rejected").Inc()
			return
		}
		// Transient-looking rejection: needs an operator, not a
		// status flip
		logger.Error().
			Int("status_code", respErr.StatusCode).
			Str("body", respErr.Body).
			Msg("Scheduler rejected submission with unexpected status; task left in dispatching")
		metrics.EventsProcessed.WithLabelValues("submission", "unresolved").Inc()

	default:
		p.setFailed(ctx, event.TaskID, err.Error())
		metrics.EventsProcessed.WithLabelValues("submission", "error").Inc()
	}
}

// handleCancellation drives a cancel request to the scheduler. Only a
// scheduler acknowledgement moves the task to cancelled; 403 and 404
// fail it, and every other failure is recorded in the task log without
// changing state.
func (p *Processor) handleCancellation(ctx context.Context, event events.Event) {
	logger := log.WithTaskID(event.TaskID)

	err := p.sched.CancelTask(ctx, scheduler.CancelPayload{
		TaskID:  event.TaskID,
		Service: event.Service,
		UserID:  event.UserID,
	})
	if err == nil {
		if _, err := p.store.SetStatus(ctx, event.TaskID, types.TaskStatusCancelled, "Task cancelled"); err != nil {
			logger.Error().Err(err).Msg("Failed to mark task cancelled")
		}
		metrics.EventsProcessed.WithLabelValues("cancellation", "cancelled").Inc()
		return
	}

	var unavail *scheduler.UnavailableError
	var respErr *scheduler.ResponseError
	switch {
	case errors.As(err, &respErr):
		if respErr.StatusCode == http.StatusForbidden || respErr.StatusCode == http.StatusNotFound {
			p.setFailed(ctx, event.TaskID, fmt.Sprintf("Scheduler returned %d: %s", respErr.StatusCode, respErr.Body))
			metrics.EventsProcessed.WithLabelValues("cancellation", "rejected").Inc()
			return
		}
		logger.Error().
			Int("status_code", respErr.StatusCode).
			Str("body", respErr.Body).
			Msg("Scheduler rejected cancellation with unexpected status; task state unchanged")
		metrics.EventsProcessed.WithLabelValues("cancellation", "unresolved").Inc()

	case errors.As(err, &unavail):
		p.appendLog(ctx, event.TaskID, fmt.Sprintf("Scheduler unavailable at %s: %v", unavail.URL, unavail.Err))
		metrics.EventsProcessed.WithLabelValues("cancellation", "unavailable").Inc()

	default:
		p.appendLog(ctx, event.TaskID, fmt.Sprintf("Cancellation error: %v", err))
		metrics.EventsProcessed.WithLabelValues("cancellation", "error").Inc()
	}
}

func (p *Processor) setFailed(ctx context.Context, taskID, message string) {
	if _, err := p.store.SetStatus(ctx, taskID, types.TaskStatusFailed, message); err != nil {
		log.WithTaskID(taskID).Error().Err(err).Msg("Failed to mark task failed")
	}
}

func (p *Processor) appendLog(ctx context.Context, taskID, message string) {
	if err := p.store.AppendLog(ctx, taskID, message); err != nil {
		log.WithTaskID(taskID).Error().Err(err).Msg("Failed to append task log")
	}
}
