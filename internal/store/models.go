package store

import "time"

// Evidence kinds
const (
	EvidenceKindTask      = "task"
	EvidenceKindChecklist = "checklist"
)

// Conflict kinds
const (
	ConflictKindMutation = "mutation"
	ConflictKindEvidence = "evidence"
)

// Mutation is a pending state-changing call captured while offline, replayed
// in insertion order by the next drain.
type Mutation struct {
	ID            string     `json:"id"`
	Method        string     `json:"method"`
	Path          string     `json:"path"`
	Body          *string    `json:"body,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
}

// EvidenceMeta describes a pending binary-attachment upload. The payload
// itself lives in the blob store under the same id; a meta row whose blob is
// gone is treated as already delivered.
type EvidenceMeta struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	TaskID          string     `json:"task_id"`
	ChecklistItemID *string    `json:"checklist_item_id,omitempty"`
	FileName        string     `json:"file_name"`
	ContentType     string     `json:"content_type"`
	SizeBytes       int64      `json:"size_bytes"`
	CreatedAt       time.Time  `json:"created_at"`
	AttemptCount    int        `json:"attempt_count"`
	LastAttemptAt   *time.Time `json:"last_attempt_at,omitempty"`
	LastError       *string    `json:"last_error,omitempty"`
}

// Conflict is a permanently rejected queued operation awaiting human review.
type Conflict struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	QueueID    string    `json:"queue_id"`
	Path       string    `json:"path"`
	TaskID     *string   `json:"task_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	DetectedAt time.Time `json:"detected_at"`
	Status     int       `json:"status"`
	Message    string    `json:"message"`
}

// CacheEntry is the last-known-good response for a cacheable GET path.
type CacheEntry struct {
	Path    string    `json:"path"`
	SavedAt time.Time `json:"saved_at"`
	Value   []byte    `json:"value"`
}
