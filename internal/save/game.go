package save

import (
	"github.com/lawnchairsociety/questgraph/internal/logger"
	"github.com/lawnchairsociety/questgraph/internal/progress"
)

// DefaultSnapshotKey names the quest progress snapshot in save file names.
const DefaultSnapshotKey = "quests"

// Game ties a tracked quest graph to a save store under one snapshot key,
// with one save per slot.
type Game struct {
	store       *Store
	tracker     *progress.Tracker
	snapshotKey string
}

// NewGame creates the save-game facade for a tracker.
func NewGame(store *Store, tracker *progress.Tracker, snapshotKey string) *Game {
	if snapshotKey == "" {
		snapshotKey = DefaultSnapshotKey
	}
	return &Game{
		store:       store,
		tracker:     tracker,
		snapshotKey: snapshotKey,
	}
}

// SnapshotKey returns the key used in file names
func (g *Game) SnapshotKey() string {
	return g.snapshotKey
}

// Store returns the underlying save store
func (g *Game) Store() *Store {
	return g.store
}

// Save writes the current progress to slot.
func (g *Game) Save(slot string) bool {
	return g.store.Save(g.tracker.Snapshot(), g.snapshotKey, slot)
}

// Load reads slot and restores the graph from it. The saved states are
// applied onto a snapshot rebuilt from the current graph, so quests added
// since the save start Locked and quests removed since are dropped.
// On failure the current progress is untouched.
func (g *Game) Load(slot string) bool {
	current := g.tracker.Snapshot()
	root := current.Root()
	if root == nil {
		root = g.tracker.Graph().Root()
	}

	loaded := progress.NewSnapshot(root)
	if !g.store.Load(g.snapshotKey, slot, loaded) {
		return false
	}

	if _, err := current.Rebuild(root); err != nil {
		logger.Error("Failed to rebuild progress before loading", "slot", slot, "error", err)
		return false
	}
	if unknown := current.Apply(loaded); len(unknown) > 0 {
		logger.Warning("Save contains quests that are no longer in the graph", "slot", slot, "count", len(unknown))
	}

	g.tracker.Restore()
	return true
}

// DeleteSaveGame empties the save in slot; its backup is kept.
func (g *Game) DeleteSaveGame(slot string) bool {
	return g.store.Delete(g.snapshotKey, slot)
}

// NewGame resets all progress and saves the fresh state to slot.
func (g *Game) NewGame(slot string) bool {
	if err := g.tracker.NewGame(); err != nil {
		logger.Error("Failed to start a new game", "slot", slot, "error", err)
		return false
	}
	return g.Save(slot)
}
