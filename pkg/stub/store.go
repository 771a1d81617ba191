package stub

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSubmissions = []byte("submissions")

// Submission is what the stub remembers about an accepted task
type Submission struct {
	TaskID      string         `json:"task_id"`
	Service     string         `json:"service"`
	UserID      string         `json:"user_id"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	ReceivedAt  time.Time      `json:"received_at"`
	Cancelled   bool           `json:"cancelled"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
}

// Store persists accepted submissions in a BoltDB file so the stub
// remembers them across restarts
type Store struct {
	db *bolt.DB
}

// OpenStore opens (or creates) the submission database at path
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stub database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSubmissions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create submissions bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database file
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records an accepted submission, overwriting any earlier one
// with the same task id
func (s *Store) Save(sub *Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode submission %s: %w", sub.TaskID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSubmissions).Put([]byte(sub.TaskID), data)
	})
}

// Get returns a submission by task id, or nil when unknown
func (s *Store) Get(taskID string) (*Submission, error) {
	var sub *Submission
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSubmissions).Get([]byte(taskID))
		if data == nil {
			return nil
		}
		sub = &Submission{}
		return json.Unmarshal(data, sub)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read submission %s: %w", taskID, err)
	}
	return sub, nil
}

// MarkCancelled flags a submission as cancelled. It reports false when
// the task id was never submitted.
func (s *Store) MarkCancelled(taskID string) (bool, error) {
	known := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubmissions)
		data := bucket.Get([]byte(taskID))
		if data == nil {
			return nil
		}

		var sub Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			return fmt.Errorf("failed to decode submission %s: %w", taskID, err)
		}

		now := time.Now().UTC()
		sub.Cancelled = true
		sub.CancelledAt = &now

		updated, err := json.Marshal(&sub)
		if err != nil {
			return fmt.Errorf("failed to encode submission %s: %w", taskID, err)
		}
		known = true
		return bucket.Put([]byte(taskID), updated)
	})
	return known, err
}

// List returns every recorded submission in key order
func (s *Store) List() ([]*Submission, error) {
	subs := []*Submission{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSubmissions).ForEach(func(_, data []byte) error {
			var sub Submission
			if err := json.Unmarshal(data, &sub); err != nil {
				return err
			}
			subs = append(subs, &sub)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}
