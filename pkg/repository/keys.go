package repository

import "strings"

// Key layout in the store. Primary records live under task:{id}, the
// breadcrumb hash under task:{id}:metadata, and the id counter under
// task:id:sequence. Index sets group live task ids for listing.
const (
	taskKeyPrefix    = "task:"
	metadataSuffix   = ":metadata"
	sequenceKey      = "task:id:sequence"
	allTasksIndexKey = "index:tasks"
)

func taskKey(taskID string) string {
	return taskKeyPrefix + taskID
}

func metadataKey(taskID string) string {
	return taskKeyPrefix + taskID + metadataSuffix
}

func serviceIndexKey(service string) string {
	return "index:service:" + service
}

func serviceUserIndexKey(service, userID string) string {
	return "index:service:" + service + ":user:" + userID
}

func serviceUsersKey(service string) string {
	return "index:service:" + service + ":users"
}

// TaskIDFromExpiredKey extracts the task id from an expired-key
// notification payload. It reports false for keys that are not primary
// task records: metadata breadcrumbs, the id sequence counter, and
// keys outside the task namespace entirely.
func TaskIDFromExpiredKey(key string) (string, bool) {
	if !strings.HasPrefix(key, taskKeyPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, taskKeyPrefix)
	if rest == "" || strings.Contains(rest, ":") {
		return "", false
	}
	return rest, true
}
