// Package history keeps a bounded per-document undo log consistent with the
// host application's own, asynchronously-reporting history stack.
//
// The host never sends a complete transcript of changes: the engine learns
// about history through terse status reports (total state count, current
// position) and must reconcile them against locally-tracked edits. States
// the engine has not yet seen are held as placeholders; states the host
// advanced to without a matching local edit are pushed speculatively and
// flagged rogue until confirmed.
package history

import "github.com/inklight/chronicle/internal/document"

// State is a single immutable history entry.
type State struct {
	// ID is the host-assigned history entry identifier (0 until confirmed).
	ID int64
	// Name is the human-readable description of the edit (e.g., "Move Layer").
	Name string
	// Document is the full document model at this point. A nil document marks
	// a placeholder entry whose content has not been fetched from the host.
	Document *document.Snapshot
	// Exports is the export configuration at this point, when known.
	Exports *document.Exports
	// Rogue marks an entry synthesized in response to an unexpected
	// host-reported advance, pending confirmation by a local edit event.
	Rogue bool
}

// IsPlaceholder reports whether the state has no document snapshot.
func (s State) IsPlaceholder() bool {
	return s.Document == nil
}

// IsHydrated reports whether the state carries a document with an identity,
// making it a valid target for load and revert operations.
func (s State) IsHydrated() bool {
	return s.Document != nil && s.Document.ID != 0
}

// Equal reports whether two states are equal: id, name, document, and
// exports must be pairwise equal. The rogue flag is bookkeeping, not
// identity, and is excluded.
func (s State) Equal(other State) bool {
	if s.ID != other.ID || s.Name != other.Name {
		return false
	}
	if (s.Document == nil) != (other.Document == nil) {
		return false
	}
	if s.Document != nil && !s.Document.Equal(*other.Document) {
		return false
	}
	if (s.Exports == nil) != (other.Exports == nil) {
		return false
	}
	if s.Exports != nil && !s.Exports.Equal(*other.Exports) {
		return false
	}
	return true
}

// Merge overlays other's set fields onto s, producing a new state. Merging a
// state with itself yields an equal state.
func (s State) Merge(other State) State {
	merged := s
	if other.ID != 0 {
		merged.ID = other.ID
	}
	if other.Name != "" {
		merged.Name = other.Name
	}
	if other.Document != nil {
		merged.Document = other.Document
	}
	if other.Exports != nil {
		merged.Exports = other.Exports
	}
	return merged
}

// MatchesLive reports whether the cached document and exports agree with the
// live models. A placeholder never matches.
func (s State) MatchesLive(doc document.Snapshot, exports *document.Exports) bool {
	if s.Document == nil {
		return false
	}
	if !s.Document.Equal(doc) {
		return false
	}
	if (s.Exports == nil) != (exports == nil) {
		return false
	}
	if s.Exports != nil && !s.Exports.Equal(*exports) {
		return false
	}
	return true
}
