// Package bbolt provides a BoltDB-backed journal store.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	apperrors "github.com/inklight/chronicle/internal/errors"
	"github.com/inklight/chronicle/internal/journal"
)

const entryBucket = "journal"

// Store provides a BoltDB-backed journal store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendEntry persists a journal entry.
func (s *Store) AppendEntry(ctx context.Context, entry journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return apperrors.New(apperrors.CodeJournalNotConfigured, "journal store is not configured")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("journal entry id is required")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entryBucket))
		if bucket == nil {
			return fmt.Errorf("journal bucket is missing")
		}
		return bucket.Put(entryKey(entry.ID), payload)
	})
}

// ListEntries returns journal entries in append order. When documentID is
// non-zero, only entries for that document are returned. A limit of 0 means
// no limit. Entry IDs are ULIDs, so key order is append order.
func (s *Store) ListEntries(ctx context.Context, documentID int64, limit int) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, apperrors.New(apperrors.CodeJournalNotConfigured, "journal store is not configured")
	}

	var entries []journal.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entryBucket))
		if bucket == nil {
			return fmt.Errorf("journal bucket is missing")
		}
		cursor := bucket.Cursor()
		for key, payload := cursor.First(); key != nil; key, payload = cursor.Next() {
			var entry journal.Entry
			if err := json.Unmarshal(payload, &entry); err != nil {
				return fmt.Errorf("unmarshal journal entry: %w", err)
			}
			if documentID != 0 && entry.DocumentID != documentID {
				continue
			}
			entries = append(entries, entry)
			if limit > 0 && len(entries) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(entryBucket))
		if err != nil {
			return fmt.Errorf("create journal bucket: %w", err)
		}
		return nil
	})
}

func entryKey(id string) []byte {
	return []byte(id)
}
