package types

import (
	"strings"
	"time"
)

// TaskStatus represents the lifecycle stage of a task
type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "pending"
	TaskStatusDispatching     TaskStatus = "dispatching"
	TaskStatusRunning         TaskStatus = "running"
	TaskStatusCompleted       TaskStatus = "completed"
	TaskStatusFailed          TaskStatus = "failed"
	TaskStatusCancelRequested TaskStatus = "cancel_requested"
	TaskStatusCancelled       TaskStatus = "cancelled"
)

// IsTerminal reports whether no further status changes are allowed
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition s -> next is allowed.
// Terminal statuses accept no transitions.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusDispatching || next == TaskStatusCancelRequested
	case TaskStatusDispatching:
		return next == TaskStatusRunning || next == TaskStatusFailed || next == TaskStatusCancelRequested
	case TaskStatusRunning:
		return next == TaskStatusCompleted || next == TaskStatusFailed || next == TaskStatusCancelRequested
	case TaskStatusCancelRequested:
		return next == TaskStatusCancelled || next == TaskStatusFailed
	}
	return false
}

// Priority defines the scheduling priority of a task
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// TaskResult holds the structured result payload attached to a task.
// Both fields are filled in by external status services, not by the gateway.
type TaskResult struct {
	PodStatus      *string `json:"pod_status"`
	LauncherOutput *string `json:"launcher_output"`
}

// TaskRecord is the durable representation of a task stored in Redis
type TaskRecord struct {
	TaskID     string         `json:"task_id"`
	Service    string         `json:"service"`
	UserID     string         `json:"user_id"`
	Status     TaskStatus     `json:"status"`
	Parameters map[string]any `json:"parameters"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Logs       []string       `json:"logs"`
	Result     *TaskResult    `json:"result,omitempty"`
	Priority   Priority       `json:"priority"`
}

// NewTaskRecord creates a pending task record with server-side defaults
func NewTaskRecord(taskID, service, userID string, parameters map[string]any) *TaskRecord {
	if parameters == nil {
		parameters = map[string]any{}
	}
	now := time.Now().UTC()
	return &TaskRecord{
		TaskID:     taskID,
		Service:    service,
		UserID:     userID,
		Status:     TaskStatusPending,
		Parameters: parameters,
		CreatedAt:  now,
		UpdatedAt:  now,
		Logs:       []string{},
		Priority:   PriorityLow,
	}
}

// FormatLogEntry prefixes a message with the current UTC timestamp.
// Entries have the form "{RFC 3339 timestamp},{message}".
func FormatLogEntry(message string) string {
	return time.Now().UTC().Format(time.RFC3339) + "," + message
}

// SplitLogEntry splits a log entry into its timestamp prefix and message.
// Readers split on the first comma only; messages may contain commas.
func SplitLogEntry(entry string) (timestamp, message string) {
	parts := strings.SplitN(entry, ",", 2)
	if len(parts) < 2 {
		return "", entry
	}
	return parts[0], parts[1]
}
