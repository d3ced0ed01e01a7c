package store

import (
	"fmt"
	"testing"
	"time"
)

func TestConflictLedgerCap(t *testing.T) {
	s := testStore(t)

	created := time.Now().Add(-time.Hour)
	for i := 0; i < 150; i++ {
		path := fmt.Sprintf("/api/tasks/t%d/complete", i)
		if _, err := s.AppendConflict(ConflictKindMutation, fmt.Sprintf("mut_%03d", i), path, nil, created, 409, "stale state"); err != nil {
			t.Fatalf("AppendConflict(%d): %v", i, err)
		}
	}

	conflicts, err := s.ListConflicts()
	if err != nil {
		t.Fatalf("ListConflicts: %v", err)
	}
	if len(conflicts) != 100 {
		t.Fatalf("retained = %d, want 100", len(conflicts))
	}
	// Oldest 50 evicted: entries 50..149 remain, oldest first.
	if conflicts[0].QueueID != "mut_050" {
		t.Errorf("oldest retained QueueID = %s, want mut_050", conflicts[0].QueueID)
	}
	if conflicts[99].QueueID != "mut_149" {
		t.Errorf("newest retained QueueID = %s, want mut_149", conflicts[99].QueueID)
	}
}

func TestCountConflictsForTask(t *testing.T) {
	s := testStore(t)

	task := "t42"
	other := "t7"
	if _, err := s.AppendConflict(ConflictKindMutation, "mut_a", "/api/tasks/t42/complete", &task, time.Now(), 409, "stale"); err != nil {
		t.Fatalf("AppendConflict: %v", err)
	}
	if _, err := s.AppendConflict(ConflictKindEvidence, "ev_b", "/api/tasks/t42/evidence/upload", &task, time.Now(), 422, "too large"); err != nil {
		t.Fatalf("AppendConflict: %v", err)
	}
	if _, err := s.AppendConflict(ConflictKindMutation, "mut_c", "/api/tasks/t7/start", &other, time.Now(), 404, "gone"); err != nil {
		t.Fatalf("AppendConflict: %v", err)
	}

	n, err := s.CountConflictsForTask("t42")
	if err != nil {
		t.Fatalf("CountConflictsForTask: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestClearConflicts(t *testing.T) {
	s := testStore(t)

	if _, err := s.AppendConflict(ConflictKindMutation, "mut_a", "/api/tasks/t1/start", nil, time.Now(), 400, "bad request"); err != nil {
		t.Fatalf("AppendConflict: %v", err)
	}
	if err := s.ClearConflicts(); err != nil {
		t.Fatalf("ClearConflicts: %v", err)
	}
	n, _ := s.CountConflicts()
	if n != 0 {
		t.Errorf("count after clear = %d, want 0", n)
	}
}
