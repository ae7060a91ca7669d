// Package replay parses replay command flags and feeds a recorded host
// transcript through a fresh history engine, printing the resulting
// per-document log summary. With -list-journal it instead prints the
// entries a previous replay recorded.
package replay

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/inklight/chronicle/internal/history"
	"github.com/inklight/chronicle/internal/journal"
	journalbbolt "github.com/inklight/chronicle/internal/journal/bbolt"
	entrypoint "github.com/inklight/chronicle/internal/platform/cmd"
	"github.com/inklight/chronicle/internal/stores"
	"github.com/inklight/chronicle/internal/transcript"
)

// Config holds replay command configuration.
type Config struct {
	Transcript  string `env:"CHRONICLE_REPLAY_TRANSCRIPT"`
	Journal     string `env:"CHRONICLE_REPLAY_JOURNAL"`
	ListJournal bool   `env:"CHRONICLE_REPLAY_LIST_JOURNAL"`
	Document    int64  `env:"CHRONICLE_REPLAY_DOCUMENT"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Transcript, "transcript", cfg.Transcript, "Transcript file to replay (- for stdin)")
	fs.StringVar(&cfg.Journal, "journal", cfg.Journal, "Optional journal database path")
	fs.BoolVar(&cfg.ListJournal, "list-journal", cfg.ListJournal, "List recorded journal entries instead of replaying")
	fs.Int64Var(&cfg.Document, "doc", cfg.Document, "Restrict journal listing to one document id (0 for all)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run replays the configured transcript.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReplay, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

// tally counts engine notifications per document.
type tally struct {
	changes     map[int64]int
	timeTravels map[int64]int
}

func newTally() *tally {
	return &tally{
		changes:     make(map[int64]int),
		timeTravels: make(map[int64]int),
	}
}

func (t *tally) HistoryChanged(documentID int64) {
	t.changes[documentID]++
}

func (t *tally) TimeTravelled(documentID int64) {
	t.timeTravels[documentID]++
}

func run(ctx context.Context, cfg Config) error {
	if cfg.ListJournal {
		return listJournal(ctx, cfg)
	}

	events, err := readTranscript(cfg.Transcript)
	if err != nil {
		return err
	}

	var emitter *journal.Emitter
	if cfg.Journal != "" {
		store, err := journalbbolt.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close journal: %v", err)
			}
		}()
		emitter = journal.NewEmitter(store)
	}

	siblings := stores.NewSiblings()
	notifications := newTally()
	engine := history.NewEngine(siblings,
		history.WithNotifier(notifications),
		history.WithJournal(emitter),
	)

	tracer := otel.Tracer("chronicle/replay")
	for i, event := range events {
		eventCtx, span := tracer.Start(ctx, "replay.event",
			trace.WithAttributes(attribute.Int("transcript.line", i+1)))
		err := engine.Apply(eventCtx, event)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if err != nil {
			return fmt.Errorf("apply transcript event %d: %w", i+1, err)
		}
	}

	printSummary(engine, notifications)
	return nil
}

func listJournal(ctx context.Context, cfg Config) error {
	if cfg.Journal == "" {
		return fmt.Errorf("journal path is required to list entries")
	}
	store, err := journalbbolt.Open(cfg.Journal)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close journal: %v", err)
		}
	}()

	entries, err := store.ListEntries(ctx, cfg.Document, 0)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		log.Printf("%s %s doc=%d %v",
			entry.Timestamp.Format(time.RFC3339), entry.Kind, entry.DocumentID, entry.Detail)
	}
	log.Printf("%d journal entries", len(entries))
	return nil
}

func readTranscript(path string) ([]history.Event, error) {
	if path == "" {
		return nil, fmt.Errorf("transcript path is required")
	}

	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		defer file.Close()
		reader = file
	}
	return transcript.ReadAll(reader)
}

func printSummary(engine *history.Engine, notifications *tally) {
	ids := make([]int64, 0, len(notifications.changes))
	for id := range notifications.changes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		l, ok := engine.Log(id)
		if !ok {
			log.Printf("doc %d: history deleted (%d changes, %d timetravels)",
				id, notifications.changes[id], notifications.timeTravels[id])
			continue
		}
		saved := "none"
		if index, ok := l.LastSavedIndex(); ok {
			saved = strconv.Itoa(index)
		}
		log.Printf("doc %d: %d states, current=%d saved=%s undo=%t redo=%t (%d changes, %d timetravels)",
			id, l.Len(), l.CurrentIndex(), saved,
			engine.HasPrevious(id), engine.HasNext(id),
			notifications.changes[id], notifications.timeTravels[id])
	}
}
