package quest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUnknownQuest is returned when a quest ID or GUID is not registered.
	ErrUnknownQuest = errors.New("unknown quest")

	// ErrDuplicateQuest is returned when an ID or GUID is registered twice.
	ErrDuplicateQuest = errors.New("duplicate quest")
)

// Graph holds the static, authored quest graph.
type Graph struct {
	mu     sync.RWMutex
	quests map[string]*Quest    // questID -> Quest
	byGUID map[uuid.UUID]*Quest // GUID -> Quest
	order  []*Quest             // registration order
	root   *Quest
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		quests: make(map[string]*Quest),
		byGUID: make(map[uuid.UUID]*Quest),
		order:  make([]*Quest, 0),
	}
}

// Add registers a quest and, for main quests, its subquests.
// Downstream quests in Unlocks/Activates must be added separately.
func (g *Graph) Add(q *Quest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	toAdd := []*Quest{q}
	if q.IsMain() {
		toAdd = append(toAdd, q.Main.Subquests...)
	}

	seen := make(map[string]bool, len(toAdd))
	for _, c := range toAdd {
		if _, exists := g.quests[c.ID]; exists || seen[c.ID] {
			return fmt.Errorf("%w: id %q", ErrDuplicateQuest, c.ID)
		}
		if _, exists := g.byGUID[c.GUID]; exists {
			return fmt.Errorf("%w: guid %s (quest %q)", ErrDuplicateQuest, c.GUID, c.ID)
		}
		seen[c.ID] = true
	}

	for _, c := range toAdd {
		g.quests[c.ID] = c
		g.byGUID[c.GUID] = c
		g.order = append(g.order, c)
	}
	return nil
}

// SetRoot selects the first main quest of the graph.
func (g *Graph) SetRoot(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	q, exists := g.quests[id]
	if !exists {
		return fmt.Errorf("%w: root %q", ErrUnknownQuest, id)
	}
	if !q.IsMain() {
		return fmt.Errorf("root quest %q is not a main quest", id)
	}
	g.root = q
	return nil
}

// Root returns the first main quest, or nil if none was set
func (g *Graph) Root() *Quest {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.root
}

// Get returns a quest by ID
func (g *Graph) Get(id string) (*Quest, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	q, exists := g.quests[id]
	return q, exists
}

// ByGUID returns a quest by its save-file identity
func (g *Graph) ByGUID(guid uuid.UUID) (*Quest, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	q, exists := g.byGUID[guid]
	return q, exists
}

// All returns every registered quest in registration order
func (g *Graph) All() []*Quest {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Quest, len(g.order))
	copy(result, g.order)
	return result
}

// MainQuests returns the main quests in registration order
func (g *Graph) MainQuests() []*Quest {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Quest, 0, len(g.order))
	for _, q := range g.order {
		if q.IsMain() {
			result = append(result, q)
		}
	}
	return result
}

// Count returns the number of registered quests, subquests included
func (g *Graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.quests)
}

// Reset returns every quest to Locked, as for a new game.
func (g *Graph) Reset() {
	for _, q := range g.All() {
		q.Reset()
	}
}

// AddUnlocks appends quests made available when q completes and sets their parent.
func (q *Quest) AddUnlocks(children ...*Quest) {
	if !q.IsMain() {
		return
	}
	for _, c := range children {
		q.Main.Unlocks = append(q.Main.Unlocks, c)
		if c.IsMain() {
			c.Main.Parent = q
		}
	}
}

// AddActivates appends quests activated when q completes.
func (q *Quest) AddActivates(children ...*Quest) {
	if !q.IsMain() {
		return
	}
	q.Main.Activates = append(q.Main.Activates, children...)
}
