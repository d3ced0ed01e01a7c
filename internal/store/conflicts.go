package store

import (
	"database/sql"
	"fmt"
	"time"
)

// conflictLedgerCap bounds the conflict ledger to the most recent entries.
// This is a human-inspection log, not an audit trail; the oldest entries are
// silently evicted on overflow.
const conflictLedgerCap = 100

// AppendConflict records a permanently rejected operation and returns its
// id. The ledger is capped; appending past the cap evicts the oldest rows.
func (s *Store) AppendConflict(kind, queueID, path string, taskID *string, createdAt time.Time, status int, message string) (string, error) {
	id := NewConflictID()
	var taskVal any
	if taskID != nil {
		taskVal = *taskID
	}
	tx, err := s.write.Begin()
	if err != nil {
		return "", fmt.Errorf("append conflict: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sync_conflicts (id, kind, queue_id, path, task_id, created_at, detected_at, status, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, queueID, path, taskVal, formatTime(createdAt), formatTime(time.Now()), status, message,
	)
	if err != nil {
		return "", fmt.Errorf("append conflict: %w", err)
	}
	_, err = tx.Exec(
		`DELETE FROM sync_conflicts WHERE seq NOT IN (SELECT seq FROM sync_conflicts ORDER BY seq DESC LIMIT ?)`,
		conflictLedgerCap,
	)
	if err != nil {
		return "", fmt.Errorf("trim conflict ledger: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("append conflict: %w", err)
	}
	return id, nil
}

// ListConflicts returns the retained conflicts, oldest first.
func (s *Store) ListConflicts() ([]Conflict, error) {
	rows, err := s.read.Query(
		`SELECT id, kind, queue_id, path, task_id, created_at, detected_at, status, message
		 FROM sync_conflicts ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []Conflict
	for rows.Next() {
		var c Conflict
		var taskID sql.NullString
		var createdAt, detectedAt string
		if err := rows.Scan(&c.ID, &c.Kind, &c.QueueID, &c.Path, &taskID, &createdAt, &detectedAt, &c.Status, &c.Message); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		c.TaskID = nullStrPtr(taskID)
		c.CreatedAt = parseTime(createdAt)
		c.DetectedAt = parseTime(detectedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClearConflicts empties the ledger after review.
func (s *Store) ClearConflicts() error {
	if _, err := s.write.Exec(`DELETE FROM sync_conflicts`); err != nil {
		return fmt.Errorf("clear conflicts: %w", err)
	}
	return nil
}

// CountConflictsForTask returns how many retained conflicts reference the
// given task. The task cross-reference is best-effort (derived from the
// request path), so this undercounts if the path shape changed.
func (s *Store) CountConflictsForTask(taskID string) (int, error) {
	var n int
	err := s.read.QueryRow(`SELECT COUNT(*) FROM sync_conflicts WHERE task_id = ?`, taskID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conflicts for task: %w", err)
	}
	return n, nil
}

// CountConflicts returns the number of retained conflicts.
func (s *Store) CountConflicts() (int, error) {
	var n int
	if err := s.read.QueryRow(`SELECT COUNT(*) FROM sync_conflicts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conflicts: %w", err)
	}
	return n, nil
}
