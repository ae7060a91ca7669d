package history

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/inklight/chronicle/internal/errors"
)

func TestEngine_ApplyDispatch(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()
	live := liveDoc("poster", false)

	events := []Event{
		HostReportEvent{
			Report: Report{DocumentID: 1, TotalStates: 1, CurrentState: 1},
			Live:   live,
		},
		NewStateEvent{Name: "Move Layer", Live: liveDoc("poster moved", true)},
		SaveConfirmedEvent{DocumentID: 1, Live: liveDoc("poster moved", true)},
		AmendmentEvent{DocumentID: 1, Live: liveDoc("poster polished", true)},
	}
	for i, event := range events {
		if err := e.Apply(ctx, event); err != nil {
			t.Fatalf("apply event %d (%T): %v", i, event, err)
		}
	}

	l := mustLog(t, e, 1)
	if l.Len() != 2 || l.CurrentIndex() != 1 {
		t.Fatalf("len=%d current=%d, want 2 and 1", l.Len(), l.CurrentIndex())
	}
	if index, ok := l.LastSavedIndex(); !ok || index != 1 {
		t.Errorf("saved = %d, %v, want 1, true", index, ok)
	}
	state, _ := l.Current()
	if state.Name != "Move Layer" {
		t.Errorf("name = %q", state.Name)
	}
	if state.Document.Name != "poster polished" {
		t.Errorf("amendment not applied: %q", state.Document.Name)
	}

	if err := e.Apply(ctx, DocumentClosedEvent{DocumentID: 1}); err != nil {
		t.Fatalf("apply close: %v", err)
	}
	if _, ok := e.Log(1); ok {
		t.Error("close event must delete the log")
	}
}

func TestEngine_ApplyDocumentUpdated(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()
	live := liveDoc("poster", false)

	// Without an embedded report the update is informational.
	if err := e.Apply(ctx, DocumentUpdatedEvent{Document: live.Document, Exports: live.Exports}); err != nil {
		t.Fatalf("apply update without report: %v", err)
	}
	if _, ok := e.Log(1); ok {
		t.Error("report-less update must not create a log")
	}

	// With a report the document's own id wins over the report's.
	report := Report{DocumentID: 999, TotalStates: 1, CurrentState: 1, Name: "New Document"}
	event := DocumentUpdatedEvent{Document: live.Document, Exports: live.Exports, Report: &report}
	if err := e.Apply(ctx, event); err != nil {
		t.Fatalf("apply update with report: %v", err)
	}
	if _, ok := e.Log(999); ok {
		t.Error("report document id must be overridden by the document's id")
	}
	l := mustLog(t, e, 1)
	state, _ := l.Current()
	if state.Name != "New Document" {
		t.Errorf("name = %q", state.Name)
	}
}

func TestEngine_ApplyLoadStateRemapsLiveSelection(t *testing.T) {
	ctx := context.Background()
	e, rec := newTestEngine()

	if err := e.Apply(ctx, HostReportEvent{
		Report: Report{DocumentID: 1, TotalStates: 1, CurrentState: 1},
		Live:   liveDoc("poster", false),
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	edited := liveDoc("poster v2", true)
	edited.Document.Layers[0].Selected = true
	if err := e.Apply(ctx, NewStateEvent{Name: "select background", Live: edited}); err != nil {
		t.Fatalf("push: %v", err)
	}
	rec.reset()

	// Undo: the live selection (layer 0) carries onto the older snapshot,
	// whose own recorded selection is empty.
	if err := e.Apply(ctx, LoadStateEvent{
		DocumentID: 1,
		Relative:   true,
		Count:      -1,
		Live:       edited,
	}); err != nil {
		t.Fatalf("load: %v", err)
	}

	l := mustLog(t, e, 1)
	if l.CurrentIndex() != 0 {
		t.Errorf("current = %d, want 0", l.CurrentIndex())
	}
	if len(rec.published) != 1 {
		t.Fatalf("published %d documents, want 1", len(rec.published))
	}
	published := rec.published[0]
	if !published.Layers[0].Selected || published.Layers[1].Selected {
		t.Errorf("live selection not remapped onto the target: %+v", published.Layers)
	}
	if rec.count("timetravel:1") != 1 {
		t.Errorf("expected one timetravel, got %v", rec.calls)
	}
}

func TestEngine_ApplyNewStateConfirmsRogue(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	if err := e.Apply(ctx, HostReportEvent{
		Report: Report{DocumentID: 1, TotalStates: 2, CurrentState: 2},
		Live:   liveDoc("poster", false),
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Untracked host advance, then the matching edit event arrives late.
	if err := e.Apply(ctx, HostReportEvent{
		Report: Report{DocumentID: 1, TotalStates: 3, CurrentState: 3, Source: SourceEvent},
		Live:   liveDoc("poster brushed", true),
	}); err != nil {
		t.Fatalf("rogue report: %v", err)
	}
	if err := e.Apply(ctx, NewStateEvent{
		Name:       "Brush Stroke",
		AmendRogue: true,
		Live:       liveDoc("poster brushed", true),
	}); err != nil {
		t.Fatalf("confirming edit: %v", err)
	}

	l := mustLog(t, e, 1)
	if l.Len() != 3 {
		t.Fatalf("confirmation must amend in place, len = %d", l.Len())
	}
	state, _ := l.Current()
	if state.Rogue {
		t.Error("confirmed entry must not stay rogue")
	}
	if state.Name != "Brush Stroke" {
		t.Errorf("name = %q", state.Name)
	}
}

func TestEngine_ApplyReset(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	for id := int64(1); id <= 3; id++ {
		live := liveDoc("poster", false)
		live.Document.ID = id
		if err := e.Apply(ctx, HostReportEvent{
			Report: Report{DocumentID: id, TotalStates: 1, CurrentState: 1},
			Live:   live,
		}); err != nil {
			t.Fatalf("initialize doc %d: %v", id, err)
		}
	}

	if err := e.Apply(ctx, ResetEvent{}); err != nil {
		t.Fatalf("apply reset: %v", err)
	}
	for id := int64(1); id <= 3; id++ {
		if _, ok := e.Log(id); ok {
			t.Errorf("log for doc %d survived reset", id)
		}
	}
}

func TestEngine_ApplyPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	err := e.Apply(ctx, DocumentClosedEvent{DocumentID: 7})
	if !apperrors.IsCode(err, apperrors.CodeHistoryUnknownDocument) {
		t.Errorf("expected unknown-document error, got %v", err)
	}

	type bogus struct{ Event }
	err = e.Apply(ctx, bogus{})
	if err == nil || !strings.Contains(err.Error(), "unhandled") {
		t.Errorf("expected unhandled-event error, got %v", err)
	}
}
