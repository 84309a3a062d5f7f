package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ShayCichocki/intentrouter/internal/cache"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// CacheStore persists intent cache entries in the intent_cache table.
type CacheStore struct {
	db *DB
}

// CacheStore returns the intent cache store backed by db.
func (db *DB) CacheStore() *CacheStore {
	return &CacheStore{db: db}
}

// LoadAll returns every persisted entry. A row that cannot be decoded is
// returned with only its key set, which the cache drops and deletes.
func (s *CacheStore) LoadAll(ctx context.Context) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, text, intent, created_at, last_accessed_at, access_count
		FROM intent_cache
	`)
	if err != nil {
		return nil, fmt.Errorf("load intent cache: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var key, text, intentJSON, createdAt, lastAccessed, count string
		if err := rows.Scan(&key, &text, &intentJSON, &createdAt, &lastAccessed, &count); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", cache.ErrCorrupt, err)
		}
		e, err := decodeCacheRow(key, text, intentJSON, createdAt, lastAccessed, count)
		if err != nil {
			entries = append(entries, models.CacheEntry{Key: key})
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intent cache: %w", err)
	}
	return entries, nil
}

func decodeCacheRow(key, text, intentJSON, createdAt, lastAccessed, count string) (models.CacheEntry, error) {
	e := models.CacheEntry{Key: key, Text: text}
	var err error
	if err = json.Unmarshal([]byte(intentJSON), &e.Intent); err != nil {
		return e, fmt.Errorf("intent: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, fmt.Errorf("created_at: %w", err)
	}
	if e.LastAccessedAt, err = parseTime(lastAccessed); err != nil {
		return e, fmt.Errorf("last_accessed_at: %w", err)
	}
	if e.AccessCount, err = strconv.ParseInt(count, 10, 64); err != nil {
		return e, fmt.Errorf("access_count: %w", err)
	}
	return e, nil
}

// Upsert inserts or replaces entries in one transaction.
func (s *CacheStore) Upsert(ctx context.Context, entries []models.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.TransactionContext(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO intent_cache (key, text, intent, created_at, last_accessed_at, access_count)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				text = excluded.text,
				intent = excluded.intent,
				created_at = excluded.created_at,
				last_accessed_at = excluded.last_accessed_at,
				access_count = excluded.access_count
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			intentJSON, err := json.Marshal(e.Intent)
			if err != nil {
				return fmt.Errorf("encode intent %s: %w", e.Key, err)
			}
			if _, err := stmt.ExecContext(ctx, e.Key, e.Text, string(intentJSON),
				formatTime(e.CreatedAt), formatTime(e.LastAccessedAt), e.AccessCount); err != nil {
				return fmt.Errorf("upsert intent %s: %w", e.Key, err)
			}
		}
		return nil
	})
}

// Delete removes entries by key.
func (s *CacheStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.TransactionContext(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, "DELETE FROM intent_cache WHERE key = ?", k); err != nil {
				return fmt.Errorf("delete intent %s: %w", k, err)
			}
		}
		return nil
	})
}

// Clear removes every entry.
func (s *CacheStore) Clear(ctx context.Context) error {
	return s.db.TransactionContext(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM intent_cache"); err != nil {
			return fmt.Errorf("clear intent cache: %w", err)
		}
		return nil
	})
}
