package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EnqueueEvidence appends an attachment upload to the outbox: the meta row
// first, then the payload blob. If the blob write fails the meta row is
// rolled back and the enqueue reports failure; a meta row must never be the
// only trace of an upload the caller believes is queued.
func (s *Store) EnqueueEvidence(kind, taskID string, checklistItemID *string, fileName, contentType string, data []byte) (string, error) {
	if kind != EvidenceKindTask && kind != EvidenceKindChecklist {
		return "", fmt.Errorf("enqueue evidence: unknown kind %q", kind)
	}
	id := NewEvidenceID()
	var itemVal any
	if checklistItemID != nil {
		itemVal = *checklistItemID
	}
	_, err := s.write.Exec(
		`INSERT INTO evidence_outbox (id, kind, task_id, checklist_item_id, file_name, content_type, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, taskID, itemVal, fileName, contentType, int64(len(data)), formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue evidence meta: %w", err)
	}
	if err := s.PutBlob(id, data); err != nil {
		if _, delErr := s.write.Exec(`DELETE FROM evidence_outbox WHERE id = ?`, id); delErr != nil {
			return "", fmt.Errorf("enqueue evidence blob: %w (meta cleanup also failed: %v)", err, delErr)
		}
		return "", fmt.Errorf("enqueue evidence blob: %w", err)
	}
	return id, nil
}

// ListEvidence returns all pending uploads in insertion order.
func (s *Store) ListEvidence() ([]EvidenceMeta, error) {
	rows, err := s.read.Query(
		`SELECT id, kind, task_id, checklist_item_id, file_name, content_type, size_bytes, created_at, attempt_count, last_attempt_at, last_error
		 FROM evidence_outbox ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var out []EvidenceMeta
	for rows.Next() {
		var m EvidenceMeta
		var itemID, lastAttemptAt, lastError sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Kind, &m.TaskID, &itemID, &m.FileName, &m.ContentType, &m.SizeBytes, &createdAt, &m.AttemptCount, &lastAttemptAt, &lastError); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		m.ChecklistItemID = nullStrPtr(itemID)
		m.CreatedAt = parseTime(createdAt)
		m.LastAttemptAt = nullTimePtr(lastAttemptAt)
		m.LastError = nullStrPtr(lastError)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkEvidenceAttempt records a failed retryable upload attempt.
func (s *Store) MarkEvidenceAttempt(id, attemptErr string) error {
	_, err := s.write.Exec(
		`UPDATE evidence_outbox
		 SET attempt_count = attempt_count + 1, last_attempt_at = ?, last_error = ?
		 WHERE id = ?`,
		formatTime(time.Now()), attemptErr, id,
	)
	if err != nil {
		return fmt.Errorf("mark evidence attempt: %w", err)
	}
	return nil
}

// DeleteEvidence removes an outbox entry, blob first so an interrupted
// delete leaves an orphan meta (dropped harmlessly on the next drain)
// rather than an orphan blob.
func (s *Store) DeleteEvidence(id string) error {
	if err := s.DeleteBlob(id); err != nil {
		return err
	}
	if _, err := s.write.Exec(`DELETE FROM evidence_outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete evidence meta: %w", err)
	}
	return nil
}

// CountEvidence returns the number of pending uploads.
func (s *Store) CountEvidence() (int, error) {
	var n int
	if err := s.read.QueryRow(`SELECT COUNT(*) FROM evidence_outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count evidence: %w", err)
	}
	return n, nil
}
