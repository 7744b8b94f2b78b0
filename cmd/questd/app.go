package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/lawnchairsociety/questgraph/internal/config"
	"github.com/lawnchairsociety/questgraph/internal/database"
	"github.com/lawnchairsociety/questgraph/internal/logger"
	"github.com/lawnchairsociety/questgraph/internal/progress"
	"github.com/lawnchairsociety/questgraph/internal/quest"
	"github.com/lawnchairsociety/questgraph/internal/save"
)

var errUsage = errors.New("usage")

// app holds one loaded quest graph with its progress and save game.
type app struct {
	cfg         *config.Config
	graph       *quest.Graph
	tracker     *progress.Tracker
	game        *save.Game
	fastForward bool
	closer      io.Closer
}

func newApp(cfg *config.Config) (*app, error) {
	graph, err := quest.LoadGraph(cfg.QuestsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load quests: %w", err)
	}
	logger.Info("Quests loaded", "path", cfg.QuestsPath, "count", graph.Count(), "root", graph.Root().ID)
	return newAppWithGraph(cfg, graph)
}

func newAppWithGraph(cfg *config.Config, graph *quest.Graph) (*app, error) {
	files, closer, err := openFiles(cfg.Storage)
	if err != nil {
		return nil, err
	}

	snapshot := progress.NewSnapshot(graph.Root())
	if _, err := snapshot.Rebuild(graph.Root()); err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	tracker := progress.NewTracker(graph, snapshot)
	tracker.Attach()

	return &app{
		cfg:     cfg,
		graph:   graph,
		tracker: tracker,
		game:    save.NewGame(save.NewStore(files, cfg.Save), tracker, cfg.SnapshotKey),
		closer:  closer,
	}, nil
}

// openFiles opens the configured save backend
func openFiles(cfg config.StorageConfig) (save.ByteStore, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendFile:
		files, err := save.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file save store", "dir", cfg.Dir)
		return files, nil, nil
	case config.BackendSQL:
		db, err := database.OpenWithConfig(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("Using database save store", "driver", cfg.Database.Driver)
		return save.NewSQLStore(db), db, nil
	case config.BackendMemory:
		logger.Warning("Using in-memory save store, progress is lost on exit")
		return save.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (a *app) Close() error {
	a.tracker.Detach()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// load restores slot if it has a save. A slot without one keeps the
// freshly built progress.
func (a *app) load(slot string) {
	if !a.game.Load(slot) {
		logger.Info("No usable save found, starting from fresh progress", "slot", slot)
		a.tracker.Restore()
	}
}

// exec runs one command against slot. Commands that change progress
// save it afterwards.
func (a *app) exec(args []string, slot string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch verb := strings.ToLower(args[0]); verb {
	case "show":
		return a.show(out)

	case "rebuild":
		duplicates, err := a.tracker.Snapshot().Rebuild(a.graph.Root())
		if err != nil {
			return err
		}
		// Saved states are applied back onto the rebuilt table
		a.load(slot)
		for _, id := range duplicates {
			fmt.Fprintf(out, "duplicate: %s\n", id)
		}
		fmt.Fprintf(out, "%d entries\n", a.tracker.Snapshot().Len())
		return a.save(slot)

	case "set-all":
		if len(args) != 2 {
			return errUsage
		}
		state, err := quest.ParseState(args[1])
		if err != nil {
			return err
		}
		a.tracker.Snapshot().SetAll(state)
		a.tracker.Restore()
		return a.save(slot)

	case "unlock", "activate", "complete", "fail":
		if len(args) != 2 {
			return errUsage
		}
		q, ok := a.graph.Get(args[1])
		if !ok {
			return fmt.Errorf("%w: %s", quest.ErrUnknownQuest, args[1])
		}
		switch verb {
		case "unlock":
			q.Unlock(a.fastForward)
		case "activate":
			q.Activate(a.fastForward)
		case "complete":
			q.Complete(a.fastForward)
		case "fail":
			q.Fail(a.fastForward)
		}
		fmt.Fprintf(out, "%s is %s\n", q.ID, q.State)
		return a.save(slot)

	case "save":
		return a.save(slot)

	case "load":
		if !a.game.Load(slot) {
			return fmt.Errorf("failed to load slot %q", slot)
		}
		return nil

	case "delete":
		if !a.game.DeleteSaveGame(slot) {
			return fmt.Errorf("failed to delete slot %q", slot)
		}
		return nil

	case "new-game":
		if !a.game.NewGame(slot) {
			return fmt.Errorf("failed to start a new game in slot %q", slot)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, verb)
	}
}

func (a *app) save(slot string) error {
	if !a.game.Save(slot) {
		return fmt.Errorf("failed to save slot %q", slot)
	}
	return nil
}

// show prints every quest in progress order with its live and recorded state.
func (a *app) show(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUEST\tKIND\tSTATE\tRECORDED\tCURRENT")

	entries := a.tracker.Snapshot().Entries()
	finished := 0
	for _, e := range entries {
		if e.State.IsTerminal() {
			finished++
		}
		q := a.questByKey(e.Quest)
		if q == nil {
			fmt.Fprintf(w, "%s\t?\t-\t%s\t\n", e.Quest, e.State)
			continue
		}
		current := ""
		if q.IsMain() {
			if sq := q.Main.Watching(); sq != nil {
				current = sq.ID
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", q.ID, q.Kind, q.State, e.State, current)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d/%d finished\n", finished, len(entries))
	return err
}

func (a *app) questByKey(key string) *quest.Quest {
	guid, err := uuid.Parse(key)
	if err != nil {
		return nil
	}
	q, _ := a.graph.ByGUID(guid)
	return q
}
