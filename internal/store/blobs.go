package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Blob keys: b|{evidence_id}
const blobPrefix = "b|"

func blobKey(id string) []byte {
	return append([]byte(blobPrefix), id...)
}

// PutBlob stores an attachment payload under the given evidence id.
func (s *Store) PutBlob(id string, data []byte) error {
	err := s.blobs.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(id), data)
	})
	if err != nil {
		return fmt.Errorf("put blob %s: %w", id, err)
	}
	return nil
}

// GetBlob returns the payload for an evidence id. A missing blob is not an
// error: it reports found=false so callers can treat the meta row as
// already delivered.
func (s *Store) GetBlob(id string) (data []byte, found bool, err error) {
	err = s.blobs.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("get blob %s: %w", id, err)
	}
	return data, found, nil
}

// DeleteBlob removes the payload for an evidence id. Deleting a missing
// blob is a no-op.
func (s *Store) DeleteBlob(id string) error {
	err := s.blobs.Update(func(txn *badger.Txn) error {
		return txn.Delete(blobKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}
