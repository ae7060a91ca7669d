package replay

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("CHRONICLE_REPLAY_TRANSCRIPT", "/env/transcript.jsonl")
		t.Setenv("CHRONICLE_REPLAY_JOURNAL", "/env/journal.db")

		fs := flag.NewFlagSet("replay", flag.ContinueOnError)
		cfg, err := ParseConfig(fs, []string{"-transcript", "/flag/transcript.jsonl"})
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if cfg.Transcript != "/flag/transcript.jsonl" {
			t.Errorf("transcript = %q", cfg.Transcript)
		}
		if cfg.Journal != "/env/journal.db" {
			t.Errorf("journal = %q, want env default", cfg.Journal)
		}
	})

	t.Run("rejects unknown flags", func(t *testing.T) {
		fs := flag.NewFlagSet("replay", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		if _, err := ParseConfig(fs, []string{"-bogus"}); err == nil {
			t.Error("expected an error for an unknown flag")
		}
	})
}

func TestRunReplaysTranscript(t *testing.T) {
	dir := t.TempDir()
	transcriptPath := filepath.Join(dir, "session.jsonl")
	transcript := `
{"type":"hostReport","report":{"documentId":1,"totalStates":1,"currentState":1},"live":{"document":{"id":1,"guid":"g","name":"poster"}}}
{"type":"newState","name":"Move Layer","live":{"document":{"id":1,"guid":"g","name":"poster","dirty":true}}}
{"type":"saveConfirmed","documentId":1,"live":{"document":{"id":1,"guid":"g","name":"poster","dirty":true}}}
`
	if err := os.WriteFile(transcriptPath, []byte(transcript), 0o600); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	cfg := Config{
		Transcript: transcriptPath,
		Journal:    filepath.Join(dir, "journal.db"),
	}
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunListsJournal(t *testing.T) {
	dir := t.TempDir()
	transcriptPath := filepath.Join(dir, "session.jsonl")
	journalPath := filepath.Join(dir, "journal.db")
	transcript := `
{"type":"hostReport","report":{"documentId":1,"totalStates":1,"currentState":1},"live":{"document":{"id":1,"guid":"g","name":"poster"}}}
{"type":"newState","name":"Move Layer","live":{"document":{"id":1,"guid":"g","name":"poster","dirty":true}}}
`
	if err := os.WriteFile(transcriptPath, []byte(transcript), 0o600); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	if err := run(context.Background(), Config{Transcript: transcriptPath, Journal: journalPath}); err != nil {
		t.Fatalf("replay: %v", err)
	}

	t.Run("lists recorded entries", func(t *testing.T) {
		var buf bytes.Buffer
		log.SetOutput(&buf)
		defer log.SetOutput(os.Stderr)

		cfg := Config{ListJournal: true, Journal: journalPath}
		if err := run(context.Background(), cfg); err != nil {
			t.Fatalf("list: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "history.initialized") || !strings.Contains(out, "history.pushed") {
			t.Errorf("listing missing recorded kinds:\n%s", out)
		}
	})

	t.Run("filters by document", func(t *testing.T) {
		cfg := Config{ListJournal: true, Journal: journalPath, Document: 1}
		if err := run(context.Background(), cfg); err != nil {
			t.Fatalf("list: %v", err)
		}
	})

	t.Run("requires a journal path", func(t *testing.T) {
		if err := run(context.Background(), Config{ListJournal: true}); err == nil {
			t.Error("expected an error without a journal path")
		}
	})
}

func TestRunRequiresTranscript(t *testing.T) {
	if err := run(context.Background(), Config{}); err == nil {
		t.Error("expected an error without a transcript path")
	}
}

func TestRunRejectsBrokenTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonl")
	if err := os.WriteFile(path, []byte(`{"type":"warp"}`), 0o600); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	if err := run(context.Background(), Config{Transcript: path}); err == nil {
		t.Error("expected an error for an unknown event type")
	}
}
