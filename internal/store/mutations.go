package store

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"
)

// EnqueueMutation appends a pending POST to the mutation queue and returns
// its id. The write is local only and never blocks on the network.
func (s *Store) EnqueueMutation(path string, body *string) (string, error) {
	id := NewMutationID()
	var bodyVal any
	if body != nil {
		bodyVal = *body
	}
	_, err := s.write.Exec(
		`INSERT INTO mutation_queue (id, method, path, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, http.MethodPost, path, bodyVal, formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue mutation: %w", err)
	}
	return id, nil
}

// ListMutations returns all pending mutations in insertion order.
func (s *Store) ListMutations() ([]Mutation, error) {
	rows, err := s.read.Query(
		`SELECT id, method, path, body, created_at, attempt_count, last_attempt_at, last_error
		 FROM mutation_queue ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	defer rows.Close()

	var out []Mutation
	for rows.Next() {
		var m Mutation
		var body, lastAttemptAt, lastError sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Method, &m.Path, &body, &createdAt, &m.AttemptCount, &lastAttemptAt, &lastError); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		m.Body = nullStrPtr(body)
		m.CreatedAt = parseTime(createdAt)
		m.LastAttemptAt = nullTimePtr(lastAttemptAt)
		m.LastError = nullStrPtr(lastError)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkMutationAttempt records a failed retryable attempt: attempt_count is
// bumped and the error captured. The item stays queued for the next drain.
func (s *Store) MarkMutationAttempt(id, attemptErr string) error {
	_, err := s.write.Exec(
		`UPDATE mutation_queue
		 SET attempt_count = attempt_count + 1, last_attempt_at = ?, last_error = ?
		 WHERE id = ?`,
		formatTime(time.Now()), attemptErr, id,
	)
	if err != nil {
		return fmt.Errorf("mark mutation attempt: %w", err)
	}
	return nil
}

// DeleteMutation removes a queue item after it succeeded or was classified
// non-retryable.
func (s *Store) DeleteMutation(id string) error {
	_, err := s.write.Exec(`DELETE FROM mutation_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mutation: %w", err)
	}
	return nil
}

// CountMutations returns the number of pending mutations.
func (s *Store) CountMutations() (int, error) {
	var n int
	if err := s.read.QueryRow(`SELECT COUNT(*) FROM mutation_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count mutations: %w", err)
	}
	return n, nil
}
