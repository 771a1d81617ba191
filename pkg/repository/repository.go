package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskgate/taskgate/pkg/log"
	"github.com/taskgate/taskgate/pkg/metrics"
	"github.com/taskgate/taskgate/pkg/types"
)

// ErrNotFound is returned when a task id has no live record
var ErrNotFound = errors.New("task not found")

// The breadcrumb outlives the primary key by this much so the
// expiration listener can still read it after the record expires
const metadataGrace = 60 * time.Second

// Client is the subset of the store client the repository uses. It is
// satisfied by *redis.Client and lets tests substitute an in-memory
// fake.
type Client interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Repository is the persistence contract for task records
type Repository interface {
	NextTaskID(ctx context.Context) (string, error)
	Save(ctx context.Context, task *types.TaskRecord) error
	Get(ctx context.Context, taskID string) (*types.TaskRecord, error)
	Delete(ctx context.Context, taskID string) (*types.TaskRecord, error)
	SetStatus(ctx context.Context, taskID string, status types.TaskStatus, logMessage string) (*types.TaskRecord, error)
	AppendLog(ctx context.Context, taskID, message string) error
	UpdateResult(ctx context.Context, taskID string, podStatus, launcherOutput *string) (*types.TaskRecord, error)
	ListByIDs(ctx context.Context, taskIDs []string) ([]*types.TaskRecord, error)
	ListAll(ctx context.Context) ([]*types.TaskRecord, error)
	ListByService(ctx context.Context, service string) ([]*types.TaskRecord, error)
	ListByServiceAndUser(ctx context.Context, service, userID string) ([]*types.TaskRecord, error)
	ListUsersByService(ctx context.Context, service string) ([]string, error)
	HandleTaskExpired(ctx context.Context, taskID string) error
}

// RedisRepository stores task records in a Redis-compatible store.
// Reads go to the reader client, writes to the writer; in a
// single-instance deployment both are the same client. Mutations are
// plain read-modify-write with last-write-wins semantics, there is no
// per-task locking.
type RedisRepository struct {
	writer Client
	reader Client
	ttl    time.Duration
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository creates a repository with the given task TTL.
// The TTL must be positive.
func NewRedisRepository(writer, reader Client, ttl time.Duration) (*RedisRepository, error) {
	if writer == nil || reader == nil {
		return nil, fmt.Errorf("repository requires both writer and reader clients")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("task ttl must be positive, got %v", ttl)
	}
	return &RedisRepository{writer: writer, reader: reader, ttl: ttl}, nil
}

// NextTaskID atomically increments the id counter and returns its
// decimal form. Concurrent callers always receive distinct ids.
func (r *RedisRepository) NextTaskID(ctx context.Context) (string, error) {
	n, err := r.writer.Incr(ctx, sequenceKey).Result()
	if err != nil {
		return "", fmt.Errorf("failed to allocate task id: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}

// Save writes the record under task:{id} and re-stamps every index
// membership and TTL the record implies. The breadcrumb hash keeps
// (service, user_id) recoverable for a grace window after the primary
// key expires.
func (r *RedisRepository) Save(ctx context.Context, task *types.TaskRecord) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.TaskID, err)
	}

	if err := r.writer.Set(ctx, taskKey(task.TaskID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write task %s: %w", task.TaskID, err)
	}

	mk := metadataKey(task.TaskID)
	if err := r.writer.HSet(ctx, mk, "service", task.Service, "user_id", task.UserID).Err(); err != nil {
		return fmt.Errorf("failed to write task %s metadata: %w", task.TaskID, err)
	}
	if err := r.writer.Expire(ctx, mk, r.ttl+metadataGrace).Err(); err != nil {
		return fmt.Errorf("failed to expire task %s metadata: %w", task.TaskID, err)
	}

	indexes := []struct {
		key    string
		member string
	}{
		{allTasksIndexKey, task.TaskID},
		{serviceIndexKey(task.Service), task.TaskID},
		{serviceUserIndexKey(task.Service, task.UserID), task.TaskID},
		{serviceUsersKey(task.Service), task.UserID},
	}
	for _, idx := range indexes {
		if err := r.writer.SAdd(ctx, idx.key, idx.member).Err(); err != nil {
			return fmt.Errorf("failed to index task %s in %s: %w", task.TaskID, idx.key, err)
		}
		if err := r.writer.Expire(ctx, idx.key, r.ttl).Err(); err != nil {
			return fmt.Errorf("failed to expire index %s: %w", idx.key, err)
		}
	}

	return nil
}

// Get reads the primary record. Returns ErrNotFound when the key is
// absent or expired.
func (r *RedisRepository) Get(ctx context.Context, taskID string) (*types.TaskRecord, error) {
	data, err := r.reader.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", taskID, err)
	}

	var task types.TaskRecord
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return &task, nil
}

// Delete removes the record, its breadcrumb, and every index
// membership. If the per-(service,user) set becomes empty the user is
// dropped from the per-service users set too. Returns the record as it
// was before deletion.
func (r *RedisRepository) Delete(ctx context.Context, taskID string) (*types.TaskRecord, error) {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := r.writer.Del(ctx, taskKey(taskID)).Err(); err != nil {
		return nil, fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	if err := r.removeFromIndexes(ctx, taskID, task.Service, task.UserID); err != nil {
		return nil, err
	}
	return task, nil
}

// SetStatus mutates the status, advances updated_at, and appends a
// timestamped log entry when a message is given. The write is
// unconditional; transition legality is the caller's concern.
func (r *RedisRepository) SetStatus(ctx context.Context, taskID string, status types.TaskStatus, logMessage string) (*types.TaskRecord, error) {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	if logMessage != "" {
		task.Logs = append(task.Logs, types.FormatLogEntry(logMessage))
	}

	if err := r.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// AppendLog appends a timestamped entry to the task's log
func (r *RedisRepository) AppendLog(ctx context.Context, taskID, message string) error {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return err
	}

	task.Logs = append(task.Logs, types.FormatLogEntry(message))
	task.UpdatedAt = time.Now().UTC()
	return r.Save(ctx, task)
}

// UpdateResult merges the optional result fields into the record. The
// write is skipped entirely when neither field changes anything.
func (r *RedisRepository) UpdateResult(ctx context.Context, taskID string, podStatus, launcherOutput *string) (*types.TaskRecord, error) {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	changed := false
	if podStatus != nil {
		if task.Result == nil {
			task.Result = &types.TaskResult{}
		}
		if task.Result.PodStatus == nil || *task.Result.PodStatus != *podStatus {
			task.Result.PodStatus = podStatus
			changed = true
		}
	}
	if launcherOutput != nil {
		if task.Result == nil {
			task.Result = &types.TaskResult{}
		}
		if task.Result.LauncherOutput == nil || *task.Result.LauncherOutput != *launcherOutput {
			task.Result.LauncherOutput = launcherOutput
			changed = true
		}
	}

	if !changed {
		return task, nil
	}

	task.UpdatedAt = time.Now().UTC()
	if err := r.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ListByIDs bulk-fetches the given ids. Ids whose record has expired
// or fails to decode are skipped silently; an empty id list performs
// no store call at all.
func (r *RedisRepository) ListByIDs(ctx context.Context, taskIDs []string) ([]*types.TaskRecord, error) {
	if len(taskIDs) == 0 {
		return []*types.TaskRecord{}, nil
	}

	keys := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		keys[i] = taskKey(id)
	}

	values, err := r.reader.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	tasks := make([]*types.TaskRecord, 0, len(values))
	for i, value := range values {
		if value == nil {
			continue
		}
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var task types.TaskRecord
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			log.WithComponent("repository").Warn().
				Str("task_id", taskIDs[i]).
				Err(err).
				Msg("Skipping undecodable task record")
			continue
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

// ListAll returns every live task
func (r *RedisRepository) ListAll(ctx context.Context) ([]*types.TaskRecord, error) {
	ids, err := r.reader.SMembers(ctx, allTasksIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read task index: %w", err)
	}
	return r.ListByIDs(ctx, ids)
}

// ListByService returns every live task in a service
func (r *RedisRepository) ListByService(ctx context.Context, service string) ([]*types.TaskRecord, error) {
	ids, err := r.reader.SMembers(ctx, serviceIndexKey(service)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read service index for %s: %w", service, err)
	}
	return r.ListByIDs(ctx, ids)
}

// ListByServiceAndUser returns every live task owned by a user within
// a service
func (r *RedisRepository) ListByServiceAndUser(ctx context.Context, service, userID string) ([]*types.TaskRecord, error) {
	ids, err := r.reader.SMembers(ctx, serviceUserIndexKey(service, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user index for %s/%s: %w", service, userID, err)
	}
	return r.ListByIDs(ctx, ids)
}

// ListUsersByService returns the user ids with any live task in a
// service
func (r *RedisRepository) ListUsersByService(ctx context.Context, service string) ([]string, error) {
	users, err := r.reader.SMembers(ctx, serviceUsersKey(service)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read users index for %s: %w", service, err)
	}
	return users, nil
}

// HandleTaskExpired reconciles the indexes after the store dropped a
// primary task key. The id is always removed from the global index;
// the breadcrumb, when still present, recovers (service, user_id) so
// the service-scoped indexes can be cleaned as well. Every step is a
// no-op when repeated, so duplicate expiration notifications are safe.
func (r *RedisRepository) HandleTaskExpired(ctx context.Context, taskID string) error {
	if err := r.writer.SRem(ctx, allTasksIndexKey, taskID).Err(); err != nil {
		return fmt.Errorf("failed to deindex expired task %s: %w", taskID, err)
	}

	meta, err := r.reader.HGetAll(ctx, metadataKey(taskID)).Result()
	if err != nil {
		return fmt.Errorf("failed to read metadata for expired task %s: %w", taskID, err)
	}

	service := meta["service"]
	userID := meta["user_id"]
	if service != "" {
		if err := r.removeFromIndexes(ctx, taskID, service, userID); err != nil {
			return err
		}
	}

	metrics.ExpiredTasksHandled.Inc()
	return nil
}

// removeFromIndexes drops the id from the service-scoped indexes and
// the breadcrumb. The user is removed from the per-service users set
// once their per-(service,user) set is empty.
func (r *RedisRepository) removeFromIndexes(ctx context.Context, taskID, service, userID string) error {
	if err := r.writer.SRem(ctx, allTasksIndexKey, taskID).Err(); err != nil {
		return fmt.Errorf("failed to deindex task %s: %w", taskID, err)
	}
	if err := r.writer.SRem(ctx, serviceIndexKey(service), taskID).Err(); err != nil {
		return fmt.Errorf("failed to deindex task %s from service %s: %w", taskID, service, err)
	}

	if userID != "" {
		userIndex := serviceUserIndexKey(service, userID)
		if err := r.writer.SRem(ctx, userIndex, taskID).Err(); err != nil {
			return fmt.Errorf("failed to deindex task %s from user %s: %w", taskID, userID, err)
		}
		remaining, err := r.reader.SCard(ctx, userIndex).Result()
		if err != nil {
			return fmt.Errorf("failed to count remaining tasks for %s/%s: %w", service, userID, err)
		}
		if remaining == 0 {
			if err := r.writer.SRem(ctx, serviceUsersKey(service), userID).Err(); err != nil {
				return fmt.Errorf("failed to remove user %s from service %s: %w", userID, service, err)
			}
		}
	}

	if err := r.writer.Del(ctx, metadataKey(taskID)).Err(); err != nil {
		return fmt.Errorf("failed to delete metadata for task %s: %w", taskID, err)
	}
	return nil
}
