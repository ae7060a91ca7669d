package bbolt

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/inklight/chronicle/internal/journal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testEntry(seq int, documentID int64, kind journal.Kind) journal.Entry {
	return journal.Entry{
		ID:         fmt.Sprintf("01TEST%04d", seq),
		Timestamp:  time.Date(2026, time.August, 27, 10, 0, seq, 0, time.UTC),
		DocumentID: documentID,
		Kind:       kind,
		Detail:     map[string]string{"index": fmt.Sprint(seq)},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected an error for a blank path")
	}
}

func TestStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entries := []journal.Entry{
		testEntry(1, 1, journal.KindInitialized),
		testEntry(2, 1, journal.KindPushed),
		testEntry(3, 2, journal.KindInitialized),
		testEntry(4, 1, journal.KindSaved),
	}
	for _, entry := range entries {
		if err := store.AppendEntry(ctx, entry); err != nil {
			t.Fatalf("append %s: %v", entry.ID, err)
		}
	}

	t.Run("lists all entries in append order", func(t *testing.T) {
		got, err := store.ListEntries(ctx, 0, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != len(entries) {
			t.Fatalf("len = %d, want %d", len(got), len(entries))
		}
		for i, entry := range got {
			if entry.ID != entries[i].ID {
				t.Errorf("entry %d id = %q, want %q", i, entry.ID, entries[i].ID)
			}
			if !entry.Timestamp.Equal(entries[i].Timestamp) {
				t.Errorf("entry %d timestamp = %v, want %v", i, entry.Timestamp, entries[i].Timestamp)
			}
			if entry.Detail["index"] != entries[i].Detail["index"] {
				t.Errorf("entry %d detail = %v", i, entry.Detail)
			}
		}
	})

	t.Run("filters by document", func(t *testing.T) {
		got, err := store.ListEntries(ctx, 1, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		for _, entry := range got {
			if entry.DocumentID != 1 {
				t.Errorf("entry %s for document %d leaked through the filter", entry.ID, entry.DocumentID)
			}
		}
	})

	t.Run("honours the limit", func(t *testing.T) {
		got, err := store.ListEntries(ctx, 0, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
	})
}

func TestStore_AppendRejectsBlankID(t *testing.T) {
	store := openTestStore(t)
	entry := testEntry(1, 1, journal.KindPushed)
	entry.ID = " "
	if err := store.AppendEntry(context.Background(), entry); err == nil {
		t.Fatal("expected an error for a blank entry id")
	}
}

func TestStore_RespectsContextCancellation(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.AppendEntry(ctx, testEntry(1, 1, journal.KindPushed)); err == nil {
		t.Error("append with cancelled context must fail")
	}
	if _, err := store.ListEntries(ctx, 0, 0); err == nil {
		t.Error("list with cancelled context must fail")
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.AppendEntry(ctx, testEntry(1, 1, journal.KindResynced)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.ListEntries(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Kind != journal.KindResynced {
		t.Fatalf("entries after reopen = %+v", got)
	}
}
