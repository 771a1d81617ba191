package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgate/taskgate/pkg/events"
	"github.com/taskgate/taskgate/pkg/repository"
	"github.com/taskgate/taskgate/pkg/scheduler"
	"github.com/taskgate/taskgate/pkg/types"
)

type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*types.TaskRecord
}

func newFakeStore(tasks ...*types.TaskRecord) *fakeStore {
	store := &fakeStore{tasks: map[string]*types.TaskRecord{}}
	for _, task := range tasks {
		store.tasks[task.TaskID] = task
	}
	return store
}

func (f *fakeStore) SetStatus(ctx context.Context, taskID string, status types.TaskStatus, logMessage string) (*types.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	if logMessage != "" {
		task.Logs = append(task.Logs, types.FormatLogEntry(logMessage))
	}
	return task, nil
}

func (f *fakeStore) AppendLog(ctx context.Context, taskID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return repository.ErrNotFound
	}
	task.Logs = append(task.Logs, types.FormatLogEntry(message))
	task.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) get(taskID string) *types.TaskRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[taskID]
}

type fakeScheduler struct {
	mu        sync.Mutex
	submitErr error
	cancelErr error
	submits   []scheduler.SubmitPayload
	cancels   []scheduler.CancelPayload
}

func (f *fakeScheduler) SubmitTask(ctx context.Context, payload scheduler.SubmitPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, payload)
	return f.submitErr
}

func (f *fakeScheduler) CancelTask(ctx context.Context, payload scheduler.CancelPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, payload)
	return f.cancelErr
}

func (f *fakeScheduler) submitted() []scheduler.SubmitPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduler.SubmitPayload(nil), f.submits...)
}

func (f *fakeScheduler) cancelled() []scheduler.CancelPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduler.CancelPayload(nil), f.cancels...)
}

// drain runs the given events through a processor to completion
func drain(t *testing.T, store TaskStore, sched SchedulerClient, evts ...events.Event) {
	t.Helper()
	queue := events.NewQueue()
	proc, err := New(queue, store, sched, 2)
	require.NoError(t, err)

	proc.Start()
	for _, event := range evts {
		require.True(t, queue.Push(event))
	}
	proc.Stop()
}

func lastLog(t *testing.T, task *types.TaskRecord) string {
	t.Helper()
	require.NotEmpty(t, task.Logs)
	return task.Logs[len(task.Logs)-1]
}

// TestNewValidation tests the worker count requirement
func TestNewValidation(t *testing.T) {
	queue := events.NewQueue()
	defer queue.Close()

	_, err := New(queue, newFakeStore(), &fakeScheduler{}, 0)
	assert.Error(t, err)

	_, err = New(queue, newFakeStore(), &fakeScheduler{}, -1)
	assert.Error(t, err)
}

// TestSubmissionSuccess tests the happy dispatch path
func TestSubmissionSuccess(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", map[string]any{"input": "value"})
	store := newFakeStore(task)
	sched := &fakeScheduler{}

	drain(t, store, sched, events.NewSubmission(task))

	got := store.get("1")
	assert.Equal(t, types.TaskStatusRunning, got.Status)
	require.Len(t, got.Logs, 2)
	assert.True(t, strings.HasSuffix(got.Logs[0], ",Dispatching to scheduler"))
	assert.True(t, strings.HasSuffix(got.Logs[1], ",Scheduler acknowledged submission"))

	submits := sched.submitted()
	require.Len(t, submits, 1)
	assert.Equal(t, "1", submits[0].TaskID)
	assert.Equal(t, "sync", submits[0].Service)
	assert.Equal(t, "alice", submits[0].UserID)
	assert.Equal(t, map[string]any{"input": "value"}, submits[0].Parameters)
}

// TestSubmissionSchedulerUnavailable tests the transport failure path
func TestSubmissionSchedulerUnavailable(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", nil)
	store := newFakeStore(task)
	sched := &fakeScheduler{submitErr: &scheduler.UnavailableError{
		URL: "http://scheduler:9000/task",
		Err: errors.New("connection refused"),
	}}

	drain(t, store, sched, events.NewSubmission(task))

	got := store.get("1")
	assert.Equal(t, types.TaskStatusFailed, got.Status)
	assert.True(t, strings.HasSuffix(lastLog(t, got),
		",Scheduler unavailable at http://scheduler:9000/task: connection refused"))
}

// TestSubmissionPermanentRejection tests the 403 and 404 failure paths
func TestSubmissionPermanentRejection(t *testing.T) {
	for _, code := range []int{403, 404} {
		t.Run(fmt.Sprintf("status %d", code), func(t *testing.T) {
			task := types.NewTaskRecord("1", "sync", "bob", map[string]any{})
			store := newFakeStore(task)
			sched := &fakeScheduler{submitErr: &scheduler.ResponseError{
				URL:        "http://scheduler:9000/task",
				StatusCode: code,
				Body:       `{"detail":"Unauthorized"}`,
			}}

			drain(t, store, sched, events.NewSubmission(task))

			got := store.get("1")
			assert.Equal(t, types.TaskStatusFailed, got.Status)
			assert.True(t, strings.HasSuffix(lastLog(t, got),
				fmt.Sprintf(`,Scheduler returned %d: {"detail":"Unauthorized"}`, code)))
		})
	}
}

// TestSubmissionTransientRejection tests that other non-2xx answers
// leave the task in dispatching
func TestSubmissionTransientRejection(t *testing.T) {
	for _, code := range []int{400, 429, 500, 503} {
		t.Run(fmt.Sprintf("status %d", code), func(t *testing.T) {
			task := types.NewTaskRecord("1", "sync", "alice", nil)
			store := newFakeStore(task)
			sched := &fakeScheduler{submitErr: &scheduler.ResponseError{
				URL:        "http://scheduler:9000/task",
				StatusCode: code,
				Body:       "try later",
			}}

			drain(t, store, sched, events.NewSubmission(task))

			got := store.get("1")
			assert.Equal(t, types.TaskStatusDispatching, got.Status)
			require.Len(t, got.Logs, 1)
			assert.True(t, strings.HasSuffix(got.Logs[0], ",Dispatching to scheduler"))
		})
	}
}

// TestSubmissionGenericError tests that unexpected errors fail the task
func TestSubmissionGenericError(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", nil)
	store := newFakeStore(task)
	sched := &fakeScheduler{submitErr: errors.New("boom")}

	drain(t, store, sched, events.NewSubmission(task))

	got := store.get("1")
	assert.Equal(t, types.TaskStatusFailed, got.Status)
	assert.True(t, strings.HasSuffix(lastLog(t, got), ",boom"))
}

// TestSubmissionMissingTask tests that a vanished task skips the
// scheduler call entirely
func TestSubmissionMissingTask(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", nil)
	store := newFakeStore()
	sched := &fakeScheduler{}

	drain(t, store, sched, events.NewSubmission(task))

	assert.Empty(t, sched.submitted())
}

// TestCancellationSuccess tests the happy cancel path
func TestCancellationSuccess(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", nil)
	task.Status = types.TaskStatusCancelRequested
	store := newFakeStore(task)
	sched := &fakeScheduler{}

	drain(t, store, sched, events.NewCancellation(task))

	got := store.get("1")
	assert.Equal(t, types.TaskStatusCancelled, got.Status)
	assert.True(t, strings.HasSuffix(lastLog(t, got), ",Task cancelled"))

	cancels := sched.cancelled()
	require.Len(t, cancels, 1)
	assert.Equal(t, scheduler.CancelPayload{TaskID: "1", Service: "sync", UserID: "alice"}, cancels[0])
}

// TestCancellationPermanentRejection tests the 403 and 404 failure paths
func TestCancellationPermanentRejection(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", nil)
	task.Status = types.TaskStatusCancelRequested
	store := newFakeStore(task)
	sched := &fakeScheduler{cancelErr: &scheduler.ResponseError{
		URL:        "http://scheduler:9000/cancel",
		StatusCode: 404,
		Body:       "unknown task",
	}}

	drain(t, store, sched, events.NewCancellation(task))

	got := store.get("1")
	assert.Equal(t, types.TaskStatusFailed, got.Status)
	assert.True(t, strings.HasSuffix(lastLog(t, got), ",Scheduler returned 404: unknown task"))
}

// TestCancellationTransientRejection tests that other non-2xx answers
// leave the state untouched
func TestCancellationTransientRejection(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", nil)
	task.Status = types.TaskStatusCancelRequested
	store := newFakeStore(task)
	sched := &fakeScheduler{cancelErr: &scheduler.ResponseError{
		URL:        "http://scheduler:9000/cancel",
		StatusCode: 500,
		Body:       "scheduler exploded",
	}}

	drain(t, store, sched, events.NewCancellation(task))

	got := store.get("1")
	assert.Equal(t, types.TaskStatusCancelRequested, got.Status)
	assert.Empty(t, got.Logs)
}

// TestCancellationSchedulerUnavailable tests that transport failures
// only annotate the task log
func TestCancellationSchedulerUnavailable(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", nil)
	task.Status = types.TaskStatusCancelRequested
	store := newFakeStore(task)
	sched := &fakeScheduler{cancelErr: &scheduler.UnavailableError{
		URL: "http://scheduler:9000/cancel",
		Err: errors.New("connection refused"),
	}}

	drain(t, store, sched, events.NewCancellation(task))

	got := store.get("1")
	assert.Equal(t, types.TaskStatusCancelRequested, got.Status)
	assert.True(t, strings.HasSuffix(lastLog(t, got),
		",Scheduler unavailable at http://scheduler:9000/cancel: connection refused"))
}

// TestCancellationGenericError tests that unexpected errors only
// annotate the task log
func TestCancellationGenericError(t *testing.T) {
	task := types.NewTaskRecord("1", "sync", "alice", nil)
	task.Status = types.TaskStatusCancelRequested
	store := newFakeStore(task)
	sched := &fakeScheduler{cancelErr: errors.New("boom")}

	drain(t, store, sched, events.NewCancellation(task))

	got := store.get("1")
	assert.Equal(t, types.TaskStatusCancelRequested, got.Status)
	assert.True(t, strings.HasSuffix(lastLog(t, got), ",Cancellation error: boom"))
}

// TestWorkerPoolDrainsAllEvents tests that Stop processes the backlog
func TestWorkerPoolDrainsAllEvents(t *testing.T) {
	store := newFakeStore()
	sched := &fakeScheduler{}
	var evts []events.Event

	for i := 1; i <= 20; i++ {
		task := types.NewTaskRecord(fmt.Sprintf("%d", i), "sync", "alice", nil)
		store.tasks[task.TaskID] = task
		evts = append(evts, events.NewSubmission(task))
	}

	queue := events.NewQueue()
	proc, err := New(queue, store, sched, 4)
	require.NoError(t, err)
	proc.Start()
	for _, event := range evts {
		require.True(t, queue.Push(event))
	}
	proc.Stop()

	for i := 1; i <= 20; i++ {
		got := store.get(fmt.Sprintf("%d", i))
		assert.Equal(t, types.TaskStatusRunning, got.Status, "task %d", i)
	}
	assert.Len(t, sched.submitted(), 20)
}

// TestUnknownEventKindDropped tests that malformed events are skipped
func TestUnknownEventKindDropped(t *testing.T) {
	store := newFakeStore()
	sched := &fakeScheduler{}

	drain(t, store, sched, events.Event{Kind: "reboot", TaskID: "1"})

	assert.Empty(t, sched.submitted())
	assert.Empty(t, sched.cancelled())
}
