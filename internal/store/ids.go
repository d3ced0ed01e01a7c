package store

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq atomic.Uint64

// newSortableID returns a 26-hex-char suffix that sorts by creation time:
// the nanosecond timestamp in the first 16 chars, a process-local counter
// in the last 10 to break same-nanosecond ties. Queue replay order is just
// ORDER BY id because of this.
func newSortableID() string {
	ns := uint64(time.Now().UnixNano())
	seq := idSeq.Add(1) & 0xFFFFFFFFFF // low 40 bits keep the suffix fixed-width
	return fmt.Sprintf("%016x%010x", ns, seq)
}

// NewMutationID generates a new queued-mutation ID with the "mut_" prefix.
func NewMutationID() string {
	return "mut_" + newSortableID()
}

// NewEvidenceID generates a new evidence-upload ID with the "ev_" prefix.
func NewEvidenceID() string {
	return "ev_" + newSortableID()
}

// NewConflictID generates a new conflict ID with the "cfl_" prefix.
func NewConflictID() string {
	return "cfl_" + newSortableID()
}
