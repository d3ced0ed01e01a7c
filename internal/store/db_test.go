package store

import (
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Second open must find migrations already applied.
	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.read.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("schema version = %d, want 1", version)
	}
}

func TestDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	ids := make([]string, 0, 3)
	for _, path := range []string{"/api/tasks/t1/start", "/api/tasks/t1/pause", "/api/tasks/t2/start"} {
		id, err := s.EnqueueMutation(path, nil)
		if err != nil {
			t.Fatalf("EnqueueMutation(%s): %v", path, err)
		}
		ids = append(ids, id)
	}
	evID, err := s.EnqueueEvidence(EvidenceKindTask, "t1", nil, "photo.jpg", "image/jpeg", []byte("payload"))
	if err != nil {
		t.Fatalf("EnqueueEvidence: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Simulated process restart.
	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s.Close()

	muts, err := s.ListMutations()
	if err != nil {
		t.Fatalf("ListMutations: %v", err)
	}
	if len(muts) != len(ids) {
		t.Fatalf("mutations after reopen = %d, want %d", len(muts), len(ids))
	}
	for i, m := range muts {
		if m.ID != ids[i] {
			t.Errorf("mutation[%d].ID = %s, want %s", i, m.ID, ids[i])
		}
	}

	data, found, err := s.GetBlob(evID)
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if !found {
		t.Fatal("blob missing after reopen")
	}
	if string(data) != "payload" {
		t.Errorf("blob = %q, want %q", data, "payload")
	}
}
