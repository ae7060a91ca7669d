// Package transcript decodes recorded host event transcripts. A transcript
// is a JSON-lines file, one inbound event per line, using the host's
// camelCase payload naming. Decoding produces the engine's typed events.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/inklight/chronicle/internal/document"
	"github.com/inklight/chronicle/internal/history"
)

// Event type tags accepted in transcript lines.
const (
	typeHostReport      = "hostReport"
	typeDocumentUpdated = "documentUpdated"
	typeNewState        = "newState"
	typeLoadState       = "loadState"
	typeAmendment       = "amendment"
	typeSaveConfirmed   = "saveConfirmed"
	typeDocumentClosed  = "documentClosed"
	typeReset           = "reset"
)

type layerJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Visible  bool   `json:"visible"`
	Selected bool   `json:"selected"`
}

type documentJSON struct {
	ID     int64       `json:"id"`
	GUID   string      `json:"guid"`
	Name   string      `json:"name"`
	Dirty  bool        `json:"dirty"`
	Layers []layerJSON `json:"layers"`
}

type assetJSON struct {
	Scale  float64 `json:"scale"`
	Format string  `json:"format"`
	Suffix string  `json:"suffix"`
}

type exportsJSON struct {
	DocumentID int64       `json:"documentId"`
	Assets     []assetJSON `json:"assets"`
}

type liveJSON struct {
	Document documentJSON `json:"document"`
	Exports  *exportsJSON `json:"exports"`
}

type reportJSON struct {
	DocumentID   int64  `json:"documentId"`
	TotalStates  int    `json:"totalStates"`
	CurrentState int    `json:"currentState"`
	Name         string `json:"name"`
	ID           int64  `json:"id"`
	Source       string `json:"source"`
}

type eventJSON struct {
	Type       string        `json:"type"`
	Report     *reportJSON   `json:"report"`
	Live       *liveJSON     `json:"live"`
	Document   *documentJSON `json:"document"`
	Exports    *exportsJSON  `json:"exports"`
	Name       string        `json:"name"`
	Coalesce   bool          `json:"coalesce"`
	AmendRogue bool          `json:"amendRogue"`
	DocumentID int64         `json:"documentId"`
	Index      int           `json:"index"`
	Relative   bool          `json:"relative"`
	Count      int           `json:"count"`
}

// Decode parses a single transcript line into an engine event.
func Decode(line []byte) (history.Event, error) {
	var raw eventJSON
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decode transcript line: %w", err)
	}

	switch raw.Type {
	case typeHostReport:
		if raw.Report == nil {
			return nil, fmt.Errorf("hostReport line is missing report")
		}
		return history.HostReportEvent{
			Report: toReport(*raw.Report),
			Live:   toLive(raw.Live),
		}, nil
	case typeDocumentUpdated:
		if raw.Document == nil {
			return nil, fmt.Errorf("documentUpdated line is missing document")
		}
		event := history.DocumentUpdatedEvent{
			Document: toDocument(*raw.Document),
			Exports:  toExports(raw.Exports),
		}
		if raw.Report != nil {
			report := toReport(*raw.Report)
			event.Report = &report
		}
		return event, nil
	case typeNewState:
		return history.NewStateEvent{
			Name:       raw.Name,
			Coalesce:   raw.Coalesce,
			AmendRogue: raw.AmendRogue,
			Live:       toLive(raw.Live),
		}, nil
	case typeLoadState:
		return history.LoadStateEvent{
			DocumentID: raw.DocumentID,
			Index:      raw.Index,
			Relative:   raw.Relative,
			Count:      raw.Count,
			Live:       toLive(raw.Live),
		}, nil
	case typeAmendment:
		return history.AmendmentEvent{
			DocumentID: raw.DocumentID,
			Live:       toLive(raw.Live),
		}, nil
	case typeSaveConfirmed:
		return history.SaveConfirmedEvent{
			DocumentID: raw.DocumentID,
			Live:       toLive(raw.Live),
		}, nil
	case typeDocumentClosed:
		return history.DocumentClosedEvent{DocumentID: raw.DocumentID}, nil
	case typeReset:
		return history.ResetEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown transcript event type %q", raw.Type)
	}
}

// ReadAll decodes every event in a transcript. Blank lines and lines
// starting with # are skipped.
func ReadAll(r io.Reader) ([]history.Event, error) {
	var events []history.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		event, err := Decode([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("transcript line %d: %w", lineNo, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return events, nil
}

func toReport(raw reportJSON) history.Report {
	return history.Report{
		DocumentID:   raw.DocumentID,
		TotalStates:  raw.TotalStates,
		CurrentState: raw.CurrentState,
		Name:         raw.Name,
		ID:           raw.ID,
		Source:       history.Source(raw.Source),
	}
}

func toLive(raw *liveJSON) history.Live {
	if raw == nil {
		return history.Live{}
	}
	return history.Live{
		Document: toDocument(raw.Document),
		Exports:  toExports(raw.Exports),
	}
}

func toDocument(raw documentJSON) document.Snapshot {
	snap := document.Snapshot{
		ID:    raw.ID,
		GUID:  raw.GUID,
		Name:  raw.Name,
		Dirty: raw.Dirty,
	}
	if raw.Layers != nil {
		snap.Layers = make([]document.Layer, len(raw.Layers))
		for i, layer := range raw.Layers {
			snap.Layers[i] = document.Layer{
				ID:       layer.ID,
				Name:     layer.Name,
				Visible:  layer.Visible,
				Selected: layer.Selected,
			}
		}
	}
	return snap
}

func toExports(raw *exportsJSON) *document.Exports {
	if raw == nil {
		return nil
	}
	exports := document.Exports{DocumentID: raw.DocumentID}
	if raw.Assets != nil {
		exports.Assets = make([]document.Asset, len(raw.Assets))
		for i, asset := range raw.Assets {
			exports.Assets[i] = document.Asset{
				Scale:  asset.Scale,
				Format: asset.Format,
				Suffix: asset.Suffix,
			}
		}
	}
	return &exports
}
