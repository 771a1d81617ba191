package service

import (
	"context"

	"github.com/taskgate/taskgate/pkg/events"
	"github.com/taskgate/taskgate/pkg/log"
	"github.com/taskgate/taskgate/pkg/metrics"
	"github.com/taskgate/taskgate/pkg/repository"
	"github.com/taskgate/taskgate/pkg/types"
)

// Store is the repository surface the service uses
type Store interface {
	NextTaskID(ctx context.Context) (string, error)
	Save(ctx context.Context, task *types.TaskRecord) error
	Get(ctx context.Context, taskID string) (*types.TaskRecord, error)
	Delete(ctx context.Context, taskID string) (*types.TaskRecord, error)
	SetStatus(ctx context.Context, taskID string, status types.TaskStatus, logMessage string) (*types.TaskRecord, error)
	ListAll(ctx context.Context) ([]*types.TaskRecord, error)
	ListByService(ctx context.Context, service string) ([]*types.TaskRecord, error)
	ListByServiceAndUser(ctx context.Context, service, userID string) ([]*types.TaskRecord, error)
	ListUsersByService(ctx context.Context, service string) ([]string, error)
}

// TaskService owns task lifecycle decisions: it allocates ids, guards
// the status state machine, and hands scheduler work to the event
// queue. Ownership filters (service, user) are applied here; a
// mismatch is indistinguishable from a missing task for the caller.
type TaskService struct {
	store Store
	queue *events.Queue
}

// New creates a task service
func New(store Store, queue *events.Queue) *TaskService {
	return &TaskService{store: store, queue: queue}
}

// Create allocates an id, persists a pending record, and enqueues the
// submission event that will drive it to the scheduler
func (s *TaskService) Create(ctx context.Context, serviceName, userID string, parameters map[string]any) (*types.TaskRecord, error) {
	taskID, err := s.store.NextTaskID(ctx)
	if err != nil {
		return nil, err
	}

	task := types.NewTaskRecord(taskID, serviceName, userID, parameters)
	if err := s.store.Save(ctx, task); err != nil {
		return nil, err
	}

	if !s.queue.Push(events.NewSubmission(task)) {
		log.WithTaskID(taskID).Warn().Msg("Event queue closed; task saved but not dispatched")
	}
	metrics.TasksCreated.Inc()

	log.WithTaskID(taskID).Info().
		Str("service", serviceName).
		Str("user_id", userID).
		Msg("Task created")
	return task, nil
}

// Get fetches a task, applying the ownership filters when given
func (s *TaskService) Get(ctx context.Context, taskID, serviceName, userID string) (*types.TaskRecord, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(task, serviceName, userID); err != nil {
		return nil, err
	}
	return task, nil
}

// Cancel requests cancellation of a task. Terminal tasks are returned
// unchanged with no side effects. For any live task a cancellation
// event is enqueued, even when the status is already cancel_requested,
// so repeated calls re-drive the scheduler conversation.
func (s *TaskService) Cancel(ctx context.Context, taskID, serviceName, userID string) (*types.TaskRecord, error) {
	task, err := s.Get(ctx, taskID, serviceName, userID)
	if err != nil {
		return nil, err
	}

	if task.Status.IsTerminal() {
		return task, nil
	}

	if task.Status != types.TaskStatusCancelRequested {
		task, err = s.store.SetStatus(ctx, taskID, types.TaskStatusCancelRequested, "Cancellation requested")
		if err != nil {
			return nil, err
		}
	}

	if !s.queue.Push(events.NewCancellation(task)) {
		log.WithTaskID(taskID).Warn().Msg("Event queue closed; cancellation recorded but not dispatched")
	}
	metrics.TaskCancellations.Inc()

	log.WithTaskID(taskID).Info().Msg("Task cancellation requested")
	return task, nil
}

// Cleanup cancels a task and deletes its record and indexes. The
// scheduler still receives the cancellation event, so an executing
// workload is stopped even though the record is gone.
func (s *TaskService) Cleanup(ctx context.Context, taskID, serviceName, userID string) (*types.TaskRecord, error) {
	if _, err := s.Cancel(ctx, taskID, serviceName, userID); err != nil {
		return nil, err
	}

	deleted, err := s.store.Delete(ctx, taskID)
	if err != nil {
		return nil, err
	}
	metrics.TaskCleanups.Inc()

	log.WithTaskID(taskID).Info().Msg("Task cleaned up")
	return deleted, nil
}

// UpdateStatus applies a status transition if the state machine allows
// it. Forbidden transitions are ignored and the current record is
// returned untouched.
func (s *TaskService) UpdateStatus(ctx context.Context, taskID string, status types.TaskStatus, message string) (*types.TaskRecord, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.Status.CanTransitionTo(status) {
		log.WithTaskID(taskID).Warn().
			Str("from", string(task.Status)).
			Str("to", string(status)).
			Msg("Ignoring forbidden status transition")
		return task, nil
	}

	return s.store.SetStatus(ctx, taskID, status, message)
}

// ListAll returns every live task
func (s *TaskService) ListAll(ctx context.Context) ([]*types.TaskRecord, error) {
	return s.store.ListAll(ctx)
}

// ListByService returns the live tasks of a service
func (s *TaskService) ListByService(ctx context.Context, serviceName string) ([]*types.TaskRecord, error) {
	return s.store.ListByService(ctx, serviceName)
}

// ListByServiceAndUser returns the live tasks a user owns within a
// service
func (s *TaskService) ListByServiceAndUser(ctx context.Context, serviceName, userID string) ([]*types.TaskRecord, error) {
	return s.store.ListByServiceAndUser(ctx, serviceName, userID)
}

// ListUsers returns the users with live tasks in a service
func (s *TaskService) ListUsers(ctx context.Context, serviceName string) ([]string, error) {
	return s.store.ListUsersByService(ctx, serviceName)
}

// Ownership mismatches surface as not-found so a caller cannot probe
// for the existence of other users' tasks
func checkOwnership(task *types.TaskRecord, serviceName, userID string) error {
	if serviceName != "" && task.Service != serviceName {
		return repository.ErrNotFound
	}
	if userID != "" && task.UserID != userID {
		return repository.ErrNotFound
	}
	return nil
}
