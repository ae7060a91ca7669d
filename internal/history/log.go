package history

// MaxSize is the per-document history cap. When a push would exceed it, the
// oldest entry is evicted and the log slides forward.
const MaxSize = 51

// noSaved marks an absent saved pointer.
const noSaved = -1

// Log is the bounded per-document history sequence plus its pointers. Slot
// indices are 0-based and chronological; the host's 1-based index space is
// translated at the reconciliation boundary.
type Log struct {
	states  []State
	current int
	saved   int
}

// Len returns the number of states in the log.
func (l *Log) Len() int {
	return len(l.states)
}

// State returns the state at index i.
func (l *Log) State(i int) (State, bool) {
	if i < 0 || i >= len(l.states) {
		return State{}, false
	}
	return l.states[i], true
}

// CurrentIndex returns the "you are here" pointer.
func (l *Log) CurrentIndex() int {
	return l.current
}

// Current returns the state at the current pointer.
func (l *Log) Current() (State, bool) {
	return l.State(l.current)
}

// LastSavedIndex returns the saved pointer only if that slot is hydrated.
// A saved pointer left behind by eviction or truncation is unusable and
// reported as absent, guarding revert-to-saved against stale targets.
func (l *Log) LastSavedIndex() (int, bool) {
	if l.saved == noSaved {
		return 0, false
	}
	state, ok := l.State(l.saved)
	if !ok || !state.IsHydrated() {
		return 0, false
	}
	return l.saved, true
}

// HasNext reports whether a redo target exists.
func (l *Log) HasNext() bool {
	return l.current < len(l.states)-1
}

// HasPrevious reports whether an undo target exists. Slot 0 is never a valid
// undo target (host convention), so the pointer must be past index 1.
func (l *Log) HasPrevious() bool {
	return l.current > 1
}

// HasNextCached reports whether the redo target exists and is hydrated, so a
// redo can apply without a host round-trip.
func (l *Log) HasNextCached() bool {
	if !l.HasNext() {
		return false
	}
	return !l.states[l.current+1].IsPlaceholder()
}

// HasPreviousCached reports whether the undo target exists and is hydrated.
func (l *Log) HasPreviousCached() bool {
	if !l.HasPrevious() {
		return false
	}
	return !l.states[l.current-1].IsPlaceholder()
}

// truncate discards all states at index n and beyond, clamping the pointers
// back into range.
func (l *Log) truncate(n int) {
	if n < 0 || n >= len(l.states) {
		return
	}
	l.states = l.states[:n]
	if l.current >= n {
		l.current = n - 1
	}
	if l.saved >= n {
		l.saved = noSaved
	}
}

// push installs a new state per the push/merge algorithm: discard any redo
// future past the pointer, then either merge into the tail (coalescing, or
// confirming a rogue entry) or append, evicting the oldest entry at the cap.
// The pointer always lands on the tail.
func (l *Log) push(s State, coalesce, amendRogue bool) {
	if len(l.states) > 0 && l.current < len(l.states)-1 {
		l.truncate(l.current + 1)
	}

	tail := len(l.states) - 1
	if tail >= 0 && (coalesce || (amendRogue && l.states[tail].Rogue)) {
		merged := l.states[tail].Merge(s)
		merged.Rogue = false
		l.states[tail] = merged
	} else {
		if len(l.states) == MaxSize {
			l.states = append(l.states[:0], l.states[1:]...)
			if l.saved > 1 {
				l.saved--
			} else {
				l.saved = noSaved
			}
		}
		l.states = append(l.states, s)
	}

	l.current = len(l.states) - 1
}
