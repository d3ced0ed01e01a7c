package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const lastCacheWriteKey = "last_cache_write"

// PutCacheEntry stores the last-known-good response for a path, overwriting
// any previous entry, and advances the global cache-freshness timestamp.
// Entries are never expired; staleness is surfaced via SavedAt.
func (s *Store) PutCacheEntry(path string, value []byte) error {
	now := formatTime(time.Now())
	tx, err := s.write.Begin()
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO response_cache (path, saved_at, value) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET saved_at = excluded.saved_at, value = excluded.value`,
		path, now, string(value),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO sync_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastCacheWriteKey, now,
	)
	if err != nil {
		return fmt.Errorf("update cache freshness: %w", err)
	}
	return tx.Commit()
}

// GetCacheEntry returns the stored entry for a path, or found=false when
// none exists.
func (s *Store) GetCacheEntry(path string) (entry CacheEntry, found bool, err error) {
	var savedAt, value string
	row := s.read.QueryRow(`SELECT saved_at, value FROM response_cache WHERE path = ?`, path)
	if err := row.Scan(&savedAt, &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CacheEntry{}, false, nil
		}
		return CacheEntry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	return CacheEntry{Path: path, SavedAt: parseTime(savedAt), Value: []byte(value)}, true, nil
}

// CacheFreshness returns the time of the most recent cache write, or nil if
// nothing has ever been cached.
func (s *Store) CacheFreshness() (*time.Time, error) {
	var value string
	row := s.read.QueryRow(`SELECT value FROM sync_meta WHERE key = ?`, lastCacheWriteKey)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache freshness: %w", err)
	}
	t := parseTime(value)
	return &t, nil
}

// GetMeta returns an arbitrary sync_meta value, or found=false.
func (s *Store) GetMeta(key string) (value string, found bool, err error) {
	row := s.read.QueryRow(`SELECT value FROM sync_meta WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, true, nil
}

// PutMeta stores an arbitrary sync_meta value.
func (s *Store) PutMeta(key, value string) error {
	_, err := s.write.Exec(
		`INSERT INTO sync_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("put meta %s: %w", key, err)
	}
	return nil
}
