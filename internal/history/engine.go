package history

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang/glog"

	"github.com/inklight/chronicle/internal/document"
	apperrors "github.com/inklight/chronicle/internal/errors"
	"github.com/inklight/chronicle/internal/journal"
)

// Source identifies how a host report reached the engine.
type Source string

const (
	// SourceQuery marks a report delivered as the direct response to an
	// explicit status query.
	SourceQuery Source = "query"
	// SourceEvent marks a report that arrived as a side-channel event
	// accompanying another host notification.
	SourceEvent Source = "event"
)

// Report is a host history-status report. CurrentState is in the host's
// 1-based index space; the engine translates it to 0-based slot indices.
// A CurrentState of 0 is the host's transient "no history" signal.
type Report struct {
	DocumentID   int64
	TotalStates  int
	CurrentState int
	Name         string
	ID           int64
	Source       Source
}

// Live carries the sibling stores' authoritative current-document models.
// Reconciliation operations take these as explicit parameters so the
// read-after-sibling-update ordering requirement is part of the call
// contract rather than an ambient wait.
type Live struct {
	Document document.Snapshot
	Exports  *document.Exports
}

// Publisher receives document and export snapshots when the engine
// time-travels. Publication is synchronous; the timetravel notification is
// emitted only after both publishes return.
type Publisher interface {
	PublishDocument(ctx context.Context, snap document.Snapshot) error
	PublishExports(ctx context.Context, exports document.Exports) error
}

// Notifier receives the engine's outbound notifications. HistoryChanged
// means derived getters should be re-read; TimeTravelled means the visible
// document just changed due to undo/redo/revert.
type Notifier interface {
	HistoryChanged(documentID int64)
	TimeTravelled(documentID int64)
}

// Engine is the history reconciliation engine. It owns its per-document
// logs exclusively; all mutation goes through its methods. Instances are
// independent, so tests may construct as many as they need.
type Engine struct {
	logs     map[int64]*Log
	pub      Publisher
	notifier Notifier
	journal  *journal.Emitter
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithJournal sets the decision journal emitter.
func WithJournal(j *journal.Emitter) Option {
	return func(e *Engine) { e.journal = j }
}

// NewEngine creates an engine publishing time-travel snapshots to pub.
func NewEngine(pub Publisher, opts ...Option) *Engine {
	e := &Engine{
		logs: make(map[int64]*Log),
		pub:  pub,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Log returns the history log for a document, if one exists. The returned
// log is read-only from the caller's perspective.
func (e *Engine) Log(documentID int64) (*Log, bool) {
	l, ok := e.logs[documentID]
	return l, ok
}

// CurrentIndex returns the current pointer for a document.
func (e *Engine) CurrentIndex(documentID int64) (int, bool) {
	l, ok := e.logs[documentID]
	if !ok {
		return 0, false
	}
	return l.CurrentIndex(), true
}

// LastSavedIndex returns the usable saved pointer for a document.
func (e *Engine) LastSavedIndex(documentID int64) (int, bool) {
	l, ok := e.logs[documentID]
	if !ok {
		return 0, false
	}
	return l.LastSavedIndex()
}

// HasNext reports whether a redo target exists for a document.
func (e *Engine) HasNext(documentID int64) bool {
	l, ok := e.logs[documentID]
	return ok && l.HasNext()
}

// HasPrevious reports whether an undo target exists for a document.
func (e *Engine) HasPrevious(documentID int64) bool {
	l, ok := e.logs[documentID]
	return ok && l.HasPrevious()
}

// HasNextCached reports whether a redo can apply without a host round-trip.
func (e *Engine) HasNextCached(documentID int64) bool {
	l, ok := e.logs[documentID]
	return ok && l.HasNextCached()
}

// HasPreviousCached reports whether an undo can apply without a host round-trip.
func (e *Engine) HasPreviousCached(documentID int64) bool {
	l, ok := e.logs[documentID]
	return ok && l.HasPreviousCached()
}

// validateReport rejects reports that violate the host protocol.
func validateReport(r Report) error {
	if r.TotalStates < 1 || r.CurrentState < 0 || r.CurrentState > r.TotalStates {
		return apperrors.WithMetadata(apperrors.CodeHistoryInvalidReport,
			"host history report counters are out of range", map[string]string{
				"document_id":   strconv.FormatInt(r.DocumentID, 10),
				"total_states":  strconv.Itoa(r.TotalStates),
				"current_state": strconv.Itoa(r.CurrentState),
			})
	}
	return nil
}

// Initialize builds a fresh history log for a document from a host report:
// every slot is a placeholder except the reported current slot, which is
// hydrated from the live models. Runs in O(totalStates).
func (e *Engine) Initialize(ctx context.Context, r Report, live Live) error {
	if err := validateReport(r); err != nil {
		return err
	}
	if live.Document.ID != r.DocumentID {
		return apperrors.WithMetadata(apperrors.CodeHistoryMissingDocument,
			"live document model is missing for reported document", map[string]string{
				"document_id":      strconv.FormatInt(r.DocumentID, 10),
				"live_document_id": strconv.FormatInt(live.Document.ID, 10),
			})
	}

	size := r.TotalStates
	index := r.CurrentState - 1
	if index < 0 {
		index = 0
	}
	if size > MaxSize {
		index -= size - MaxSize
		size = MaxSize
		if index < 0 {
			index = 0
		}
	}

	states := make([]State, size)
	states[index] = hydratedState(r.ID, r.Name, live)

	l := &Log{states: states, current: index, saved: noSaved}
	if !live.Document.Dirty {
		l.saved = index
	}
	e.logs[r.DocumentID] = l

	glog.V(2).Infof("history: initialized doc=%d size=%d current=%d", r.DocumentID, size, index)
	e.record(ctx, r.DocumentID, journal.KindInitialized, map[string]string{
		"size":    strconv.Itoa(size),
		"current": strconv.Itoa(index),
	})
	e.notifyChanged(r.DocumentID)
	return nil
}

// Reconcile is the central state machine: it folds an asynchronous host
// status report into the local log. Divergences the engine has a defined
// recovery for are handled silently with diagnostic logging; host protocol
// violations are fatal.
func (e *Engine) Reconcile(ctx context.Context, r Report, live Live) error {
	if err := validateReport(r); err != nil {
		return err
	}

	l, ok := e.logs[r.DocumentID]
	if !ok {
		return e.Initialize(ctx, r, live)
	}

	// A zero current state is the host's transient "no history" signal.
	// Never overwrite valid local state with it.
	if r.CurrentState == 0 {
		glog.V(2).Infof("history: ignoring zero current-state report doc=%d", r.DocumentID)
		return nil
	}

	index := r.CurrentState - 1
	switch {
	case index == l.current:
		return e.reconcileAtCurrent(ctx, l, r, live)
	case index-l.current == 1 && r.Source != SourceQuery:
		// The host advanced without a matching local edit event: certain
		// native tool operations create history states the action layer
		// never sees. Push speculatively and wait for confirmation.
		glog.V(2).Infof("history: rogue advance doc=%d host=%d local=%d", r.DocumentID, index, l.current)
		e.record(ctx, r.DocumentID, journal.KindRogueDetected, map[string]string{
			"host_index":  strconv.Itoa(index),
			"local_index": strconv.Itoa(l.current),
		})
		e.trimStaleFuture(ctx, l, r)
		state := hydratedState(r.ID, r.Name, live)
		state.Rogue = true
		return e.push(ctx, r.DocumentID, l, state, false, false)
	default:
		// The positions diverged beyond simple reconciliation. Discard and
		// rebuild from the report, the designed substitute for retry. Any
		// pending local-only metadata for discarded slots is lost.
		glog.Warningf("history: resync doc=%d host=%d local=%d total=%d size=%d",
			r.DocumentID, index, l.current, r.TotalStates, l.Len())
		e.record(ctx, r.DocumentID, journal.KindResynced, map[string]string{
			"host_index":  strconv.Itoa(index),
			"local_index": strconv.Itoa(l.current),
		})
		delete(e.logs, r.DocumentID)
		return e.Initialize(ctx, r, live)
	}
}

// reconcileAtCurrent handles the common case of a report agreeing with the
// local pointer: a query response, or a late-arriving event for a state the
// engine already tracked.
func (e *Engine) reconcileAtCurrent(ctx context.Context, l *Log, r Report, live Live) error {
	cached, ok := l.Current()
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeHistoryMissingState,
			"current history state is missing from the log", map[string]string{
				"document_id": strconv.FormatInt(r.DocumentID, 10),
				"index":       strconv.Itoa(l.current),
			})
	}

	boundary := l.current == MaxSize-1
	if !cached.MatchesLive(live.Document, live.Exports) {
		if boundary {
			// The host's reporting convention makes the boundary slot
			// ambiguous once the window has slid: a same-position report
			// with new content is an untracked advance, not an error.
			glog.V(2).Infof("history: boundary-slot mismatch treated as rogue doc=%d", r.DocumentID)
			e.record(ctx, r.DocumentID, journal.KindRogueDetected, map[string]string{
				"host_index":  strconv.Itoa(l.current),
				"local_index": strconv.Itoa(l.current),
				"boundary":    "true",
			})
			e.trimStaleFuture(ctx, l, r)
			state := hydratedState(r.ID, r.Name, live)
			state.Rogue = true
			return e.push(ctx, r.DocumentID, l, state, false, false)
		}
		// Host and local model diverged in content but agree on position.
		// Informational only.
		glog.Warningf("history: cached state does not match live models doc=%d index=%d name=%q",
			r.DocumentID, l.current, cached.Name)
		return nil
	}
	if boundary {
		// Equal content at the cap: suppress the redundant rogue push a
		// repeat report would otherwise trigger.
		return nil
	}

	if cached.ID != 0 && r.ID != 0 && cached.ID != r.ID {
		return apperrors.WithMetadata(apperrors.CodeHistoryIdentityConflict,
			"cached and reported history state ids conflict", map[string]string{
				"document_id": strconv.FormatInt(r.DocumentID, 10),
				"cached_id":   strconv.FormatInt(cached.ID, 10),
				"reported_id": strconv.FormatInt(r.ID, 10),
			})
	}

	e.trimStaleFuture(ctx, l, r)
	merged := cached.Merge(hydratedState(r.ID, r.Name, live))
	if !merged.Equal(cached) {
		l.states[l.current] = merged
		e.notifyChanged(r.DocumentID)
	}
	return nil
}

// trimStaleFuture drops local entries beyond the host's authoritative count.
func (e *Engine) trimStaleFuture(ctx context.Context, l *Log, r Report) {
	if r.TotalStates >= l.Len() {
		return
	}
	glog.V(2).Infof("history: trimming stale future doc=%d from=%d to=%d", r.DocumentID, l.Len(), r.TotalStates)
	e.record(ctx, r.DocumentID, journal.KindTruncated, map[string]string{
		"from": strconv.Itoa(l.Len()),
		"to":   strconv.Itoa(r.TotalStates),
	})
	l.truncate(r.TotalStates)
}

// Push installs a locally-generated state. The state must be hydrated.
// Coalesce merges into the tail instead of appending; amendRogue does the
// same only when the tail is a rogue entry awaiting its official id/name.
func (e *Engine) Push(ctx context.Context, state State, coalesce, amendRogue bool) error {
	if !state.IsHydrated() {
		return apperrors.New(apperrors.CodeHistoryStateNotHydrated,
			"pushed history state must carry a hydrated document")
	}
	documentID := state.Document.ID
	l, ok := e.logs[documentID]
	if !ok {
		l = &Log{saved: noSaved}
		e.logs[documentID] = l
	}
	return e.push(ctx, documentID, l, state, coalesce, amendRogue)
}

func (e *Engine) push(ctx context.Context, documentID int64, l *Log, state State, coalesce, amendRogue bool) error {
	kind := journal.KindPushed
	if tail := l.Len() - 1; tail >= 0 && (coalesce || (amendRogue && l.states[tail].Rogue)) {
		kind = journal.KindCoalesced
	}
	l.push(state, coalesce, amendRogue)
	e.record(ctx, documentID, kind, map[string]string{
		"index": strconv.Itoa(l.current),
		"name":  state.Name,
	})
	e.notifyChanged(documentID)
	return nil
}

// LoadRequest describes a time-travel target.
type LoadRequest struct {
	DocumentID int64
	// Index is the absolute target slot when Relative is false.
	Index int
	// Relative moves the pointer by Count from the current slot instead.
	Relative bool
	Count    int
	// SelectedIndices, when non-nil, remaps the layer selection onto the
	// target document's layers by index.
	SelectedIndices []int
	// Live supplies the current document whose visibility flags overlay the
	// target snapshot. Visibility is fetched out-of-band by the host and may
	// be stale in old snapshots.
	Live Live
}

// Load moves the pointer to an already-hydrated slot and publishes its
// models to the sibling stores. Callers must resolve cache misses (via
// Adjust and a host round-trip) before calling.
func (e *Engine) Load(ctx context.Context, req LoadRequest) error {
	l, ok := e.logs[req.DocumentID]
	if !ok {
		return unknownDocument(req.DocumentID)
	}

	index := req.Index
	if req.Relative {
		index = l.current + req.Count
	}
	state, ok := l.State(index)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeHistoryInvalidTarget,
			"history load target is out of range", map[string]string{
				"document_id": strconv.FormatInt(req.DocumentID, 10),
				"index":       strconv.Itoa(index),
			})
	}
	if !state.IsHydrated() {
		return apperrors.WithMetadata(apperrors.CodeHistoryStateNotCached,
			"history load target is not cached", map[string]string{
				"document_id": strconv.FormatInt(req.DocumentID, 10),
				"index":       strconv.Itoa(index),
			})
	}

	doc := state.Document.Clone()
	overlayVisibility(&doc, req.Live.Document)
	if req.SelectedIndices != nil {
		remapSelection(&doc, req.SelectedIndices)
	}

	l.current = index
	e.record(ctx, req.DocumentID, journal.KindLoaded, map[string]string{
		"index": strconv.Itoa(index),
	})
	e.notifyChanged(req.DocumentID)

	if err := e.publish(ctx, doc, state.Exports); err != nil {
		return err
	}
	e.notifyTimeTravelled(req.DocumentID)
	return nil
}

// RevertToSaved pushes the last-saved snapshot as a new tail entry,
// mirroring the host's own revert semantics of creating a new undo step
// rather than rewinding. Callers must check LastSavedIndex first.
func (e *Engine) RevertToSaved(ctx context.Context, documentID int64) error {
	l, ok := e.logs[documentID]
	if !ok {
		return unknownDocument(documentID)
	}
	index, ok := l.LastSavedIndex()
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeHistoryNoSavedState,
			"no usable saved history state to revert to", map[string]string{
				"document_id": strconv.FormatInt(documentID, 10),
			})
	}

	saved := l.states[index]
	state := State{Name: saved.Name, Document: saved.Document, Exports: saved.Exports}
	if err := e.push(ctx, documentID, l, state, false, false); err != nil {
		return err
	}
	l.saved = l.current
	e.record(ctx, documentID, journal.KindReverted, map[string]string{
		"from": strconv.Itoa(index),
		"to":   strconv.Itoa(l.current),
	})

	doc := saved.Document.Clone()
	if err := e.publish(ctx, doc, saved.Exports); err != nil {
		return err
	}
	e.notifyTimeTravelled(documentID)
	return nil
}

// Adjust moves the pointer to a slot that is not yet hydrated, ahead of the
// host delivering its content. Only a change notification fires: the visible
// document has not updated yet, so timetravel reactions must wait for
// FinishAdjust. A second Adjust before FinishAdjust overwrites the pending
// target.
func (e *Engine) Adjust(ctx context.Context, documentID int64, count int) error {
	l, ok := e.logs[documentID]
	if !ok {
		return unknownDocument(documentID)
	}
	index := l.current + count
	if _, ok := l.State(index); !ok {
		return apperrors.WithMetadata(apperrors.CodeHistoryInvalidTarget,
			"history adjust target is out of range", map[string]string{
				"document_id": strconv.FormatInt(documentID, 10),
				"index":       strconv.Itoa(index),
			})
	}
	l.current = index
	e.notifyChanged(documentID)
	return nil
}

// FinishAdjust emits the timetravel notification once the adjusted-to state
// has been separately published.
func (e *Engine) FinishAdjust(documentID int64) {
	e.notifyTimeTravelled(documentID)
}

// HandleSave records a document-save confirmation: the save does not create
// a new history entry, it cleans the current one. The current slot's models
// are overwritten in place and the saved pointer moves to it.
func (e *Engine) HandleSave(ctx context.Context, documentID int64, live Live) error {
	l, ok := e.logs[documentID]
	if !ok {
		glog.Warningf("history: save event for untracked doc=%d", documentID)
		return nil
	}
	cached, ok := l.Current()
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeHistoryMissingState,
			"current history state is missing from the log", map[string]string{
				"document_id": strconv.FormatInt(documentID, 10),
				"index":       strconv.Itoa(l.current),
			})
	}

	doc := live.Document.Clone()
	doc.Dirty = false
	cached.Document = &doc
	if live.Exports != nil {
		exports := live.Exports.Clone()
		cached.Exports = &exports
	}
	l.states[l.current] = cached
	l.saved = l.current

	e.record(ctx, documentID, journal.KindSaved, map[string]string{
		"index": strconv.Itoa(l.current),
	})
	e.notifyChanged(documentID)
	return nil
}

// Amend merges fresh live models into the current slot without moving the
// pointer or creating an entry.
func (e *Engine) Amend(ctx context.Context, documentID int64, live Live) error {
	l, ok := e.logs[documentID]
	if !ok {
		glog.Warningf("history: amendment for untracked doc=%d", documentID)
		return nil
	}
	cached, ok := l.Current()
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeHistoryMissingState,
			"current history state is missing from the log", map[string]string{
				"document_id": strconv.FormatInt(documentID, 10),
				"index":       strconv.Itoa(l.current),
			})
	}

	merged := cached.Merge(hydratedState(0, "", live))
	if merged.Equal(cached) {
		return nil
	}
	l.states[l.current] = merged
	e.record(ctx, documentID, journal.KindAmended, map[string]string{
		"index": strconv.Itoa(l.current),
	})
	e.notifyChanged(documentID)
	return nil
}

// Delete removes a document's history on close or rename-away.
func (e *Engine) Delete(ctx context.Context, documentID int64) error {
	if _, ok := e.logs[documentID]; !ok {
		return unknownDocument(documentID)
	}
	delete(e.logs, documentID)
	e.record(ctx, documentID, journal.KindDeleted, nil)
	e.notifyChanged(documentID)
	return nil
}

// Reset clears all per-document state.
func (e *Engine) Reset() {
	e.logs = make(map[int64]*Log)
}

func (e *Engine) publish(ctx context.Context, doc document.Snapshot, exports *document.Exports) error {
	if exports != nil {
		if err := e.pub.PublishExports(ctx, exports.Clone()); err != nil {
			return fmt.Errorf("publish exports: %w", err)
		}
	}
	if err := e.pub.PublishDocument(ctx, doc); err != nil {
		return fmt.Errorf("publish document: %w", err)
	}
	return nil
}

func (e *Engine) notifyChanged(documentID int64) {
	if e.notifier != nil {
		e.notifier.HistoryChanged(documentID)
	}
}

func (e *Engine) notifyTimeTravelled(documentID int64) {
	if e.notifier != nil {
		e.notifier.TimeTravelled(documentID)
	}
}

func (e *Engine) record(ctx context.Context, documentID int64, kind journal.Kind, detail map[string]string) {
	if err := e.journal.Emit(ctx, documentID, kind, detail); err != nil {
		glog.Warningf("history: journal emit failed doc=%d kind=%s: %v", documentID, kind, err)
	}
}

// hydratedState builds a state from a report's identity plus the live models.
func hydratedState(id int64, name string, live Live) State {
	doc := live.Document.Clone()
	state := State{ID: id, Name: name, Document: &doc}
	if live.Exports != nil {
		exports := live.Exports.Clone()
		state.Exports = &exports
	}
	return state
}

// overlayVisibility copies live visibility flags onto the target snapshot by
// layer index.
func overlayVisibility(target *document.Snapshot, live document.Snapshot) {
	for i := range target.Layers {
		if i < len(live.Layers) {
			target.Layers[i].Visible = live.Layers[i].Visible
		}
	}
}

// remapSelection replaces the target's layer selection with the given
// indices.
func remapSelection(target *document.Snapshot, indices []int) {
	for i := range target.Layers {
		target.Layers[i].Selected = false
	}
	for _, index := range indices {
		if index >= 0 && index < len(target.Layers) {
			target.Layers[index].Selected = true
		}
	}
}

func unknownDocument(documentID int64) error {
	return apperrors.WithMetadata(apperrors.CodeHistoryUnknownDocument,
		"no history log exists for document", map[string]string{
			"document_id": strconv.FormatInt(documentID, 10),
		})
}
