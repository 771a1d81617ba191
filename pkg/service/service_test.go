package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgate/taskgate/pkg/events"
	"github.com/taskgate/taskgate/pkg/repository"
	"github.com/taskgate/taskgate/pkg/types"
)

// fakeStore is an in-memory Store with repository-equivalent semantics
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	tasks   map[string]*types.TaskRecord
	deleted []string
}

var _ Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]*types.TaskRecord{}}
}

func (f *fakeStore) NextTaskID(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return strconv.FormatInt(f.nextID, 10), nil
}

func (f *fakeStore) Save(ctx context.Context, task *types.TaskRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.TaskID] = task
	return nil
}

func (f *fakeStore) Get(ctx context.Context, taskID string) (*types.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return task, nil
}

func (f *fakeStore) Delete(ctx context.Context, taskID string) (*types.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.tasks, taskID)
	f.deleted = append(f.deleted, taskID)
	return task, nil
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

func (f *fakeStore) ListAll(ctx context.Context) ([]*types.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tasks []*types.TaskRecord
	for _, task := range f.tasks {
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (f *fakeStore) ListByService(ctx context.Context, service string) ([]*types.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tasks []*types.TaskRecord
	for _, task := range f.tasks {
		if task.Service == service {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (f *fakeStore) ListByServiceAndUser(ctx context.Context, service, userID string) ([]*types.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tasks []*types.TaskRecord
	for _, task := range f.tasks {
		if task.Service == service && task.UserID == userID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (f *fakeStore) ListUsersByService(ctx context.Context, service string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var users []string
	for _, task := range f.tasks {
		if task.Service == service && !seen[task.UserID] {
			seen[task.UserID] = true
			users = append(users, task.UserID)
		}
	}
	return users, nil
}

func newTestService() (*TaskService, *fakeStore, *events.Queue) {
	store := newFakeStore()
	queue := events.NewQueue()
	return New(store, queue), store, queue
}

func popEvent(t *testing.T, queue *events.Queue) events.Event {
	t.Helper()
	require.Greater(t, queue.Len(), 0, "expected an enqueued event")
	event, ok := queue.Pop()
	require.True(t, ok)
	return event
}

// TestCreate tests id allocation, persistence, and event dispatch
func TestCreate(t *testing.T) {
	svc, store, queue := newTestService()
	defer queue.Close()

	task, err := svc.Create(context.Background(), "sync", "alice", map[string]any{"input": "value"})
	require.NoError(t, err)

	assert.Equal(t, "1", task.TaskID)
	assert.Equal(t, types.TaskStatusPending, task.Status)
	assert.Equal(t, "sync", task.Service)
	assert.Equal(t, "alice", task.UserID)

	saved, err := store.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, saved.Status)

	event := popEvent(t, queue)
	assert.Equal(t, events.KindSubmission, event.Kind)
	assert.Equal(t, "1", event.TaskID)
	assert.Equal(t, "sync", event.Service)
	assert.Equal(t, "alice", event.UserID)
	assert.Equal(t, map[string]any{"input": "value"}, event.Parameters)
}

// TestCreateSequentialIDs tests that ids keep counting up
func TestCreateSequentialIDs(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	for _, want := range []string{"1", "2", "3"} {
		task, err := svc.Create(ctx, "sync", "alice", nil)
		require.NoError(t, err)
		assert.Equal(t, want, task.TaskID)
	}
}

// TestGetOwnership tests cross-user and cross-service isolation
func TestGetOwnership(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, "sync", "alice", nil)
	require.NoError(t, err)

	got, err := svc.Get(ctx, "1", "sync", "alice")
	require.NoError(t, err)
	assert.Equal(t, "1", got.TaskID)

	got, err = svc.Get(ctx, "1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "1", got.TaskID)

	_, err = svc.Get(ctx, "1", "sync", "bob")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.Get(ctx, "1", "batch", "alice")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.Get(ctx, "99", "", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// TestCancel tests the cancel-request flow
func TestCancel(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, "sync", "alice", nil)
	require.NoError(t, err)
	popEvent(t, queue) // submission

	task, err := svc.Cancel(ctx, "1", "sync", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCancelRequested, task.Status)
	require.NotEmpty(t, task.Logs)
	assert.True(t, strings.HasSuffix(task.Logs[len(task.Logs)-1], ",Cancellation requested"))

	event := popEvent(t, queue)
	assert.Equal(t, events.KindCancellation, event.Kind)
	assert.Equal(t, "1", event.TaskID)
}

// TestCancelRepeated tests that a second cancel returns the same
// record and still re-enqueues the scheduler call
func TestCancelRepeated(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, "sync", "alice", nil)
	require.NoError(t, err)
	popEvent(t, queue)

	first, err := svc.Cancel(ctx, "1", "", "")
	require.NoError(t, err)
	popEvent(t, queue)

	second, err := svc.Cancel(ctx, "1", "", "")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCancelRequested, second.Status)
	assert.Equal(t, first.Logs, second.Logs)

	event := popEvent(t, queue)
	assert.Equal(t, events.KindCancellation, event.Kind)
}

// TestCancelTerminal tests that terminal tasks are left alone
func TestCancelTerminal(t *testing.T) {
	svc, store, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	for _, status := range []types.TaskStatus{
		types.TaskStatusCompleted,
		types.TaskStatusFailed,
		types.TaskStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			task := types.NewTaskRecord("t-"+string(status), "sync", "alice", nil)
			task.Status = status
			require.NoError(t, store.Save(ctx, task))

			got, err := svc.Cancel(ctx, task.TaskID, "", "")
			require.NoError(t, err)
			assert.Equal(t, status, got.Status)
			assert.Empty(t, got.Logs)
			assert.Equal(t, 0, queue.Len(), "no event for terminal task")
		})
	}
}

// TestCancelOwnershipMismatch tests isolation on the cancel path
func TestCancelOwnershipMismatch(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, "sync", "alice", nil)
	require.NoError(t, err)
	popEvent(t, queue)

	_, err = svc.Cancel(ctx, "1", "sync", "bob")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 0, queue.Len())
}

// TestCleanup tests cancel plus delete
func TestCleanup(t *testing.T) {
	svc, store, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, "sync", "alice", nil)
	require.NoError(t, err)
	popEvent(t, queue)

	deleted, err := svc.Cleanup(ctx, "1", "sync", "alice")
	require.NoError(t, err)
	assert.Equal(t, "1", deleted.TaskID)
	assert.Equal(t, types.TaskStatusCancelRequested, deleted.Status)

	event := popEvent(t, queue)
	assert.Equal(t, events.KindCancellation, event.Kind)

	_, err = store.Get(ctx, "1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, []string{"1"}, store.deleted)
}

// TestCleanupMissing tests cleanup of an unknown task
func TestCleanupMissing(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()

	_, err := svc.Cleanup(context.Background(), "99", "", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// TestUpdateStatusAllowed tests a legal transition
func TestUpdateStatusAllowed(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, "sync", "alice", nil)
	require.NoError(t, err)

	task, err := svc.UpdateStatus(ctx, "1", types.TaskStatusDispatching, "Dispatching to scheduler")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusDispatching, task.Status)
	require.Len(t, task.Logs, 1)
}

// TestUpdateStatusForbidden tests that illegal transitions are ignored
func TestUpdateStatusForbidden(t *testing.T) {
	svc, store, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	task := types.NewTaskRecord("1", "sync", "alice", nil)
	task.Status = types.TaskStatusCompleted
	require.NoError(t, store.Save(ctx, task))

	got, err := svc.UpdateStatus(ctx, "1", types.TaskStatusRunning, "resurrect")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, got.Status)
	assert.Empty(t, got.Logs)
}

// TestUpdateStatusSkipsStates tests that transitions cannot jump the
// state machine
func TestUpdateStatusSkipsStates(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, "sync", "alice", nil)
	require.NoError(t, err)

	got, err := svc.UpdateStatus(ctx, "1", types.TaskStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, got.Status)
}

// TestLists tests delegation of the list operations
func TestLists(t *testing.T) {
	svc, _, queue := newTestService()
	defer queue.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, "sync", "alice", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "sync", "bob", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "batch", "alice", nil)
	require.NoError(t, err)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sync, err := svc.ListByService(ctx, "sync")
	require.NoError(t, err)
	assert.Len(t, sync, 2)

	mine, err := svc.ListByServiceAndUser(ctx, "sync", "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "1", mine[0].TaskID)

	users, err := svc.ListUsers(ctx, "sync")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}
