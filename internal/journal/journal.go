// Package journal records the reconciliation engine's decisions as an
// append-only diagnostic log. The journal is observability, not state: the
// engine behaves identically with or without a configured store.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies the type of a journal entry.
type Kind string

const (
	// KindInitialized records a history log being built from a host report.
	KindInitialized Kind = "history.initialized"
	// KindPushed records a new state appended to a history log.
	KindPushed Kind = "history.pushed"
	// KindCoalesced records a state merged into the tail entry in place.
	KindCoalesced Kind = "history.coalesced"
	// KindRogueDetected records a host-reported advance with no matching local edit.
	KindRogueDetected Kind = "history.rogue_detected"
	// KindTruncated records stale future states being discarded.
	KindTruncated Kind = "history.truncated"
	// KindResynced records a full discard-and-rebuild of a history log.
	KindResynced Kind = "history.resynced"
	// KindLoaded records a time-travel to a cached state.
	KindLoaded Kind = "history.loaded"
	// KindReverted records a revert to the last saved state.
	KindReverted Kind = "history.reverted"
	// KindSaved records save bookkeeping against the current state.
	KindSaved Kind = "history.saved"
	// KindAmended records an in-place amendment of the current state.
	KindAmended Kind = "history.amended"
	// KindDeleted records a document's history log being removed.
	KindDeleted Kind = "history.deleted"
)

// Entry is a single immutable journal record.
type Entry struct {
	// ID is the entry identifier (ULID, lexicographically time-ordered).
	ID string
	// Timestamp is when the decision was recorded.
	Timestamp time.Time
	// DocumentID is the document the decision concerns (0 for global entries).
	DocumentID int64
	// Kind identifies the decision.
	Kind Kind
	// Detail holds decision-specific context.
	Detail map[string]string
}

// Store persists journal entries.
type Store interface {
	AppendEntry(ctx context.Context, entry Entry) error
}

// Emitter records journal entries. A nil emitter or nil store is a no-op.
type Emitter struct {
	store Store
	clock func() time.Time
	newID func() string
}

// NewEmitter creates a new journal emitter.
func NewEmitter(store Store) *Emitter {
	return &Emitter{
		store: store,
		clock: time.Now,
		newID: func() string { return ulid.Make().String() },
	}
}

// Emit appends an entry to the journal. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, documentID int64, kind Kind, detail map[string]string) error {
	if e == nil || e.store == nil {
		return nil
	}
	entry := Entry{
		ID:         e.newID(),
		Timestamp:  e.clock().UTC(),
		DocumentID: documentID,
		Kind:       kind,
		Detail:     detail,
	}
	if err := e.store.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}
