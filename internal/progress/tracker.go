package progress

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lawnchairsociety/questgraph/internal/logger"
	"github.com/lawnchairsociety/questgraph/internal/quest"
)

// Tracker keeps a snapshot in step with a quest graph. It records every
// lifecycle notification and, when a main quest completes, unlocks and
// activates its downstream quests.
//
// Notifications are handled synchronously. Mutating the snapshot from
// another observer while the tracker is restoring is not supported.
type Tracker struct {
	graph     *quest.Graph
	snapshot  *Snapshot
	subs      []*quest.Subscription
	restoring bool
}

// NewTracker creates a detached tracker
func NewTracker(graph *quest.Graph, snapshot *Snapshot) *Tracker {
	return &Tracker{
		graph:    graph,
		snapshot: snapshot,
	}
}

// Graph returns the tracked graph
func (t *Tracker) Graph() *quest.Graph {
	return t.graph
}

// Snapshot returns the snapshot being written
func (t *Tracker) Snapshot() *Snapshot {
	return t.snapshot
}

// Attach subscribes to every quest of the graph. Attaching twice is a no-op.
func (t *Tracker) Attach() {
	if len(t.subs) > 0 {
		return
	}
	for _, q := range t.graph.All() {
		t.subs = append(t.subs, q.Subscribe(t.handle,
			quest.EventUnlocked, quest.EventActivated, quest.EventCompleted, quest.EventFailed))
	}
}

// Detach cancels every subscription made by Attach.
func (t *Tracker) Detach() {
	for _, sub := range t.subs {
		sub.Cancel()
	}
	t.subs = nil
}

// Attached reports whether the tracker is listening
func (t *Tracker) Attached() bool {
	return len(t.subs) > 0
}

func stateFor(event quest.EventType) (quest.State, bool) {
	switch event {
	case quest.EventUnlocked:
		return quest.StateAvailable, true
	case quest.EventActivated:
		return quest.StateActive, true
	case quest.EventCompleted:
		return quest.StateCompleted, true
	case quest.EventFailed:
		return quest.StateFailed, true
	default:
		return quest.StateLocked, false
	}
}

func (t *Tracker) handle(e quest.Event) {
	if t.restoring {
		return
	}

	state, ok := stateFor(e.Type)
	if !ok {
		return
	}

	if err := t.snapshot.SetState(e.Quest, state); err != nil {
		logger.Error("Quest state change could not be recorded", "quest", e.Quest.ID, "state", state.String(), "error", err)
	} else {
		logger.Debug("Quest state recorded", "quest", e.Quest.ID, "state", state.String(), "fast_forwarded", e.FastForwarded)
	}

	if e.Type == quest.EventCompleted && e.Quest.IsMain() {
		for _, q := range e.Quest.Main.Unlocks {
			q.Unlock(e.FastForwarded)
		}
		for _, q := range e.Quest.Main.Activates {
			q.Activate(e.FastForwarded)
		}
	}
}

// Restore replays the snapshot into the graph. Every quest is reset first,
// then each main quest is brought to its recorded state as fast-forwarded.
// Nothing is recorded and nothing cascades while restoring: downstream quests
// get their own recorded state.
func (t *Tracker) Restore() {
	t.restoring = true
	defer func() { t.restoring = false }()

	t.graph.Reset()

	restored := 0
	for _, e := range t.snapshot.Entries() {
		guid, err := uuid.Parse(e.Quest)
		if err != nil {
			logger.Warning("Progress entry has an invalid quest identifier", "quest", e.Quest, "error", err)
			continue
		}
		q, exists := t.graph.ByGUID(guid)
		if !exists {
			logger.Warning("Progress entry has no matching quest", "quest", e.Quest)
			continue
		}
		// Subquests are restored through their main quest
		if !q.IsMain() {
			continue
		}
		t.restoreMain(q, e.State)
		restored++
	}

	logger.Info("Quest progress restored", "main_quests", restored)
}

func (t *Tracker) restoreMain(q *quest.Quest, state quest.State) {
	switch state {
	case quest.StateLocked:
	case quest.StateAvailable:
		q.Unlock(true)
	case quest.StateActive:
		q.Activate(true)
		// Replay completed subquests in order so the cursor catches up
		for _, sq := range q.Main.Subquests {
			sqState := t.recorded(sq)
			if sqState == quest.StateCompleted {
				sq.Complete(true)
				continue
			}
			if sqState == quest.StateFailed {
				sq.Fail(true)
			}
			break
		}
	case quest.StateCompleted:
		q.Complete(true)
	case quest.StateFailed:
		for _, sq := range q.Main.Subquests {
			t.applyState(sq, t.recorded(sq))
		}
		q.Fail(true)
	}
}

func (t *Tracker) recorded(q *quest.Quest) quest.State {
	state, err := t.snapshot.State(q)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Warning("Subquest has no progress entry", "quest", q.ID)
		}
		return quest.StateLocked
	}
	return state
}

func (t *Tracker) applyState(q *quest.Quest, state quest.State) {
	switch state {
	case quest.StateAvailable:
		q.Unlock(true)
	case quest.StateActive:
		q.Activate(true)
	case quest.StateCompleted:
		q.Complete(true)
	case quest.StateFailed:
		q.Fail(true)
	}
}

// NewGame clears all progress: the snapshot is rebuilt from the root, so
// every entry is Locked except the root, which is Active, and the graph is
// restored from it.
func (t *Tracker) NewGame() error {
	root := t.snapshot.Root()
	if root == nil {
		root = t.graph.Root()
	}
	if _, err := t.snapshot.Rebuild(root); err != nil {
		return fmt.Errorf("failed to reset progress: %w", err)
	}
	t.Restore()
	return nil
}
