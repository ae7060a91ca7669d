package history

import (
	"context"
	"fmt"

	"github.com/inklight/chronicle/internal/document"
)

// Event is the closed set of inbound event shapes the engine consumes.
type Event interface {
	isEvent()
}

// HostReportEvent delivers a host history-status report, either as a query
// response or as a side-channel event.
type HostReportEvent struct {
	Report Report
	Live   Live
}

// DocumentUpdatedEvent delivers a refreshed document model. When Report is
// present it is forwarded into reconciliation with the document's ID
// injected.
type DocumentUpdatedEvent struct {
	Document document.Snapshot
	Exports  *document.Exports
	Report   *Report
}

// NewStateEvent tracks a local edit that created a history state.
type NewStateEvent struct {
	Name string
	// Coalesce merges the edit into the tail entry, for rapid continuous
	// edits that should appear as one undo step.
	Coalesce bool
	// AmendRogue routes the push through rogue confirmation: if the tail is
	// a speculative rogue entry this edit is its official counterpart.
	AmendRogue bool
	Live       Live
}

// LoadStateEvent requests a time travel to a cached slot, absolute or
// relative. The live document's layer selection is remapped onto the target
// snapshot so the user's selection survives the jump.
type LoadStateEvent struct {
	DocumentID int64
	Index      int
	Relative   bool
	Count      int
	Live       Live
}

// AmendmentEvent tracks a local edit that refined the current state without
// creating a new one.
type AmendmentEvent struct {
	DocumentID int64
	Live       Live
}

// SaveConfirmedEvent reports the host confirming a document save.
type SaveConfirmedEvent struct {
	DocumentID int64
	Live       Live
}

// DocumentClosedEvent reports a document close or rename-away.
type DocumentClosedEvent struct {
	DocumentID int64
}

// ResetEvent clears all engine state.
type ResetEvent struct{}

func (HostReportEvent) isEvent()      {}
func (DocumentUpdatedEvent) isEvent() {}
func (NewStateEvent) isEvent()        {}
func (LoadStateEvent) isEvent()       {}
func (AmendmentEvent) isEvent()       {}
func (SaveConfirmedEvent) isEvent()   {}
func (DocumentClosedEvent) isEvent()  {}
func (ResetEvent) isEvent()           {}

// Apply dispatches an inbound event to the matching engine operation.
func (e *Engine) Apply(ctx context.Context, event Event) error {
	switch ev := event.(type) {
	case HostReportEvent:
		return e.Reconcile(ctx, ev.Report, ev.Live)
	case DocumentUpdatedEvent:
		if ev.Report == nil {
			return nil
		}
		report := *ev.Report
		report.DocumentID = ev.Document.ID
		return e.Reconcile(ctx, report, Live{Document: ev.Document, Exports: ev.Exports})
	case NewStateEvent:
		state := hydratedState(0, ev.Name, ev.Live)
		return e.Push(ctx, state, ev.Coalesce, ev.AmendRogue)
	case LoadStateEvent:
		return e.Load(ctx, LoadRequest{
			DocumentID:      ev.DocumentID,
			Index:           ev.Index,
			Relative:        ev.Relative,
			Count:           ev.Count,
			SelectedIndices: ev.Live.Document.SelectedIndices(),
			Live:            ev.Live,
		})
	case AmendmentEvent:
		return e.Amend(ctx, ev.DocumentID, ev.Live)
	case SaveConfirmedEvent:
		return e.HandleSave(ctx, ev.DocumentID, ev.Live)
	case DocumentClosedEvent:
		return e.Delete(ctx, ev.DocumentID)
	case ResetEvent:
		e.Reset()
		return nil
	default:
		return fmt.Errorf("unhandled history event type %T", event)
	}
}
