// Package stores holds the in-process sibling stores the history engine
// publishes snapshots to: the document store and the export store. Each
// store owns the live model for its concern; the history engine reads them
// only through the snapshots handed to its operations.
package stores

import (
	"context"
	"sync"

	"github.com/inklight/chronicle/internal/document"
)

// DocumentStore tracks the live document model per document ID.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[int64]document.Snapshot
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[int64]document.Snapshot)}
}

// PublishDocument installs a document snapshot as the live model.
func (s *DocumentStore) PublishDocument(ctx context.Context, snap document.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[snap.ID] = snap.Clone()
	return nil
}

// Snapshot returns the live document model for a document.
func (s *DocumentStore) Snapshot(documentID int64) (document.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.docs[documentID]
	if !ok {
		return document.Snapshot{}, false
	}
	return snap.Clone(), true
}

// Delete removes a document's live model.
func (s *DocumentStore) Delete(documentID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
}

// ExportStore tracks the live export configuration per document ID.
type ExportStore struct {
	mu      sync.RWMutex
	exports map[int64]document.Exports
}

// NewExportStore creates an empty export store.
func NewExportStore() *ExportStore {
	return &ExportStore{exports: make(map[int64]document.Exports)}
}

// PublishExports installs an export snapshot as the live configuration.
func (s *ExportStore) PublishExports(ctx context.Context, exports document.Exports) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[exports.DocumentID] = exports.Clone()
	return nil
}

// Snapshot returns the live export configuration for a document.
func (s *ExportStore) Snapshot(documentID int64) (document.Exports, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exports, ok := s.exports[documentID]
	if !ok {
		return document.Exports{}, false
	}
	return exports.Clone(), true
}

// Delete removes a document's export configuration.
func (s *ExportStore) Delete(documentID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exports, documentID)
}

// Siblings bundles the sibling stores behind the engine's publisher
// contract.
type Siblings struct {
	Documents *DocumentStore
	Exports   *ExportStore
}

// NewSiblings creates both sibling stores.
func NewSiblings() *Siblings {
	return &Siblings{
		Documents: NewDocumentStore(),
		Exports:   NewExportStore(),
	}
}

// PublishDocument forwards to the document store.
func (s *Siblings) PublishDocument(ctx context.Context, snap document.Snapshot) error {
	return s.Documents.PublishDocument(ctx, snap)
}

// PublishExports forwards to the export store.
func (s *Siblings) PublishExports(ctx context.Context, exports document.Exports) error {
	return s.Exports.PublishExports(ctx, exports)
}
