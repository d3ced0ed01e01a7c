package store

import "testing"

func TestEnqueueEvidence(t *testing.T) {
	s := testStore(t)

	itemID := "chk1"
	id, err := s.EnqueueEvidence(EvidenceKindChecklist, "t1", &itemID, "gauge.jpg", "image/jpeg", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("EnqueueEvidence: %v", err)
	}

	metas, err := s.ListEvidence()
	if err != nil {
		t.Fatalf("ListEvidence: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("len = %d, want 1", len(metas))
	}
	m := metas[0]
	if m.ID != id || m.Kind != EvidenceKindChecklist || m.TaskID != "t1" {
		t.Errorf("meta = %+v", m)
	}
	if m.ChecklistItemID == nil || *m.ChecklistItemID != "chk1" {
		t.Errorf("ChecklistItemID = %v, want chk1", m.ChecklistItemID)
	}
	if m.SizeBytes != int64(len("jpegbytes")) {
		t.Errorf("SizeBytes = %d, want %d", m.SizeBytes, len("jpegbytes"))
	}

	data, found, err := s.GetBlob(id)
	if err != nil || !found {
		t.Fatalf("GetBlob: found=%v err=%v", found, err)
	}
	if string(data) != "jpegbytes" {
		t.Errorf("blob = %q", data)
	}
}

func TestEnqueueEvidenceRejectsUnknownKind(t *testing.T) {
	s := testStore(t)

	if _, err := s.EnqueueEvidence("signature", "t1", nil, "sig.png", "image/png", []byte("x")); err == nil {
		t.Error("EnqueueEvidence with unknown kind should fail")
	}
	metas, _ := s.ListEvidence()
	if len(metas) != 0 {
		t.Errorf("outbox len = %d, want 0", len(metas))
	}
}

func TestGetBlobMissing(t *testing.T) {
	s := testStore(t)

	_, found, err := s.GetBlob("ev_nope")
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if found {
		t.Error("found = true for missing blob")
	}
}

func TestDeleteEvidenceRemovesBoth(t *testing.T) {
	s := testStore(t)

	id, _ := s.EnqueueEvidence(EvidenceKindTask, "t1", nil, "a.jpg", "image/jpeg", []byte("x"))
	if err := s.DeleteEvidence(id); err != nil {
		t.Fatalf("DeleteEvidence: %v", err)
	}

	metas, _ := s.ListEvidence()
	if len(metas) != 0 {
		t.Errorf("metas = %d, want 0", len(metas))
	}
	_, found, _ := s.GetBlob(id)
	if found {
		t.Error("blob still present after DeleteEvidence")
	}
}

func TestEvidenceAttemptBookkeeping(t *testing.T) {
	s := testStore(t)

	id, _ := s.EnqueueEvidence(EvidenceKindTask, "t1", nil, "a.jpg", "image/jpeg", []byte("x"))
	if err := s.MarkEvidenceAttempt(id, "503 from upstream"); err != nil {
		t.Fatalf("MarkEvidenceAttempt: %v", err)
	}

	metas, _ := s.ListEvidence()
	if metas[0].AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", metas[0].AttemptCount)
	}
	if metas[0].LastError == nil || *metas[0].LastError != "503 from upstream" {
		t.Errorf("LastError = %v", metas[0].LastError)
	}
}
