// Package progress keeps the flat, persistable table of every quest's state.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lawnchairsociety/questgraph/internal/logger"
	"github.com/lawnchairsociety/questgraph/internal/quest"
)

// ErrNotFound means a quest has no entry in the snapshot, i.e. the graph and
// the snapshot are out of sync.
var ErrNotFound = errors.New("quest not found in progress snapshot")

// Entry pairs a quest identity (its GUID) with its state.
type Entry struct {
	Quest string      `json:"quest"`
	State quest.State `json:"state"`
}

// progressDocument is the serialized form of a snapshot
type progressDocument struct {
	ProgressArray []Entry `json:"progressArray"`
}

// Snapshot is an order-preserving quest -> state table.
// Entries are keyed by GUID, so updates never shift positions.
type Snapshot struct {
	mu     sync.RWMutex
	root   *quest.Quest
	keys   []string
	states map[string]quest.State
}

// NewSnapshot creates an empty snapshot for the given root quest.
// The entries stay empty until Rebuild or LoadFromJSON.
func NewSnapshot(root *quest.Quest) *Snapshot {
	return &Snapshot{
		root:   root,
		keys:   make([]string, 0),
		states: make(map[string]quest.State),
	}
}

func keyOf(q *quest.Quest) string {
	return q.GUID.String()
}

// Root returns the first main quest
func (s *Snapshot) Root() *quest.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.root
}

// Rebuild repopulates the entries by walking the graph from root, depth first:
// the quest, its subquests in order, then Unlocks, then Activates.
// A main quest reached a second time is reported, and its branch is not
// walked again. The root entry ends up Active.
// Returns the IDs of the duplicates found.
func (s *Snapshot) Rebuild(root *quest.Quest) ([]string, error) {
	if root == nil {
		return nil, fmt.Errorf("cannot rebuild progress without a root quest")
	}
	if !root.IsMain() {
		return nil, fmt.Errorf("root quest %q is not a main quest", root.ID)
	}

	keys := make([]string, 0)
	states := make(map[string]quest.State)
	var duplicates []string

	var visit func(q *quest.Quest)
	visit = func(q *quest.Quest) {
		key := keyOf(q)
		if _, exists := states[key]; exists {
			logger.Warning("Quest found twice while going through quest connections; make sure a quest is only unlocked or activated by one parent",
				"quest", q.ID)
			duplicates = append(duplicates, q.ID)
			return
		}
		keys = append(keys, key)
		states[key] = quest.StateLocked

		if !q.IsMain() {
			return
		}

		for _, sq := range q.Main.Subquests {
			sqKey := keyOf(sq)
			if _, exists := states[sqKey]; exists {
				logger.Warning("Subquest is shared between main quests", "subquest", sq.ID, "main_quest", q.ID)
				continue
			}
			keys = append(keys, sqKey)
			states[sqKey] = quest.StateLocked
		}
		for _, unlocked := range q.Main.Unlocks {
			visit(unlocked)
		}
		for _, activated := range q.Main.Activates {
			visit(activated)
		}
	}
	visit(root)

	// The root is always considered already begun
	states[keyOf(root)] = quest.StateActive

	s.mu.Lock()
	s.root = root
	s.keys = keys
	s.states = states
	s.mu.Unlock()

	logger.Debug("Progress snapshot rebuilt", "root", root.ID, "entries", len(keys), "duplicates", len(duplicates))
	return duplicates, nil
}

// State returns the recorded state of q.
func (s *Snapshot) State(q *quest.Quest) (quest.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[keyOf(q)]
	if !exists {
		return quest.StateLocked, fmt.Errorf("%w: %s", ErrNotFound, q.ID)
	}
	return state, nil
}

// StateByKey returns the state recorded for a GUID string.
func (s *Snapshot) StateByKey(key string) (quest.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[key]
	return state, exists
}

// SetState replaces the recorded state of q in place.
func (s *Snapshot) SetState(q *quest.Quest, state quest.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(q)
	if _, exists := s.states[key]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, q.ID)
	}
	s.states[key] = state
	return nil
}

// SetAll forces every entry to the same state. Administrative use only.
func (s *Snapshot) SetAll(state quest.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.keys {
		s.states[key] = state
	}
}

// Contains reports whether q has an entry
func (s *Snapshot) Contains(q *quest.Quest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.states[keyOf(q)]
	return exists
}

// Len returns the number of entries
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.keys)
}

// Entries returns a copy of the entries in order.
func (s *Snapshot) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, len(s.keys))
	for i, key := range s.keys {
		entries[i] = Entry{Quest: key, State: s.states[key]}
	}
	return entries
}

// ToJSON serializes the entries for storage.
func (s *Snapshot) ToJSON() (string, error) {
	doc := progressDocument{ProgressArray: s.Entries()}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode progress: %w", err)
	}
	return string(data), nil
}

// LoadFromJSON replaces the entries with the serialized ones. On error the
// snapshot is left untouched. The root is kept.
func (s *Snapshot) LoadFromJSON(data string) error {
	var doc progressDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return fmt.Errorf("failed to decode progress: %w", err)
	}

	keys := make([]string, 0, len(doc.ProgressArray))
	states := make(map[string]quest.State, len(doc.ProgressArray))
	for i, e := range doc.ProgressArray {
		if e.Quest == "" {
			return fmt.Errorf("progress entry %d has no quest", i)
		}
		if !e.State.Valid() {
			return fmt.Errorf("progress entry %d (%s) has invalid state %d", i, e.Quest, int(e.State))
		}
		if _, exists := states[e.Quest]; exists {
			logger.Warning("Duplicate progress entry in save data, keeping the last state", "quest", e.Quest)
		} else {
			keys = append(keys, e.Quest)
		}
		states[e.Quest] = e.State
	}

	s.mu.Lock()
	s.keys = keys
	s.states = states
	s.mu.Unlock()
	return nil
}

// Apply copies the states of other onto the entries s already has, keeping
// the order and membership of s. Keys of other that s does not know are
// returned, e.g. quests removed from the content since the save was made.
func (s *Snapshot) Apply(other *Snapshot) []string {
	var unknown []string
	entries := other.Entries()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if _, exists := s.states[e.Quest]; !exists {
			unknown = append(unknown, e.Quest)
			continue
		}
		s.states[e.Quest] = e.State
	}
	return unknown
}

// TransferFrom copies the root and entries of other into s.
func (s *Snapshot) TransferFrom(other *Snapshot) {
	if other == s {
		return
	}
	other.mu.RLock()
	root := other.root
	keys := make([]string, len(other.keys))
	copy(keys, other.keys)
	states := make(map[string]quest.State, len(other.states))
	for k, v := range other.states {
		states[k] = v
	}
	other.mu.RUnlock()

	s.mu.Lock()
	s.root = root
	s.keys = keys
	s.states = states
	s.mu.Unlock()
}
