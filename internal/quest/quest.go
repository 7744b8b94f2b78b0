package quest

import (
	"github.com/google/uuid"
)

// Kind distinguishes leaf subquests from main quests.
type Kind int

const (
	KindSub  Kind = iota // Leaf quest used for sequencing inside a main quest
	KindMain             // Owns subquests and downstream quests
)

func (k Kind) String() string {
	if k == KindMain {
		return "main"
	}
	return "sub"
}

// guidNamespace seeds name-based GUIDs for quests that don't pin one.
var guidNamespace = uuid.MustParse("4f1c2a7e-9b3d-5c60-8e21-7d0a6b5f3e19")

// DeriveGUID returns the stable identifier for a quest ID.
func DeriveGUID(id string) uuid.UUID {
	return uuid.NewSHA1(guidNamespace, []byte(id))
}

// Quest is a unit of progress with a five-state lifecycle.
// Transitions don't check the current state: callers may complete twice or skip states.
type Quest struct {
	ID          string    // Authored identifier (e.g., "001_arrival", "001_arrival_0_talk")
	GUID        uuid.UUID // Save-file identity, survives ID renames when pinned
	Kind        Kind
	Title       string
	Description string
	State       State

	// ListeningActions are opaque references to in-world listeners.
	ListeningActions []string

	// DevNameSuffix is cosmetic and only used when composing subquest IDs.
	DevNameSuffix string

	// Main is non-nil only for KindMain.
	Main *MainQuest

	events channel
}

// MainQuest holds the fields that only exist on main quests.
type MainQuest struct {
	Parent    *Quest   // Quest that unlocks this one (not owned)
	Subquests []*Quest // Completed in order
	Unlocks   []*Quest // Made available on completion
	Activates []*Quest // Activated on completion

	current int
	watched *Quest
	watch   *Subscription
}

// NewSubquest creates a leaf quest with a GUID derived from its ID.
func NewSubquest(id, title string) *Quest {
	return &Quest{
		ID:    id,
		GUID:  DeriveGUID(id),
		Kind:  KindSub,
		Title: title,
	}
}

// NewMainQuest creates a main quest owning the given subquests.
func NewMainQuest(id, title string, subquests ...*Quest) *Quest {
	if subquests == nil {
		subquests = []*Quest{}
	}
	return &Quest{
		ID:    id,
		GUID:  DeriveGUID(id),
		Kind:  KindMain,
		Title: title,
		Main: &MainQuest{
			Subquests: subquests,
			Unlocks:   []*Quest{},
			Activates: []*Quest{},
		},
	}
}

// IsMain returns true if this is a main quest
func (q *Quest) IsMain() bool {
	return q.Kind == KindMain && q.Main != nil
}

// Subscribe registers fn for the given event types, or for all events when none are given.
func (q *Quest) Subscribe(fn Observer, types ...EventType) *Subscription {
	return q.events.add(fn, types)
}

// ObserverCount returns the number of attached observers.
func (q *Quest) ObserverCount() int {
	return q.events.count()
}

// Unlock makes the quest available.
func (q *Quest) Unlock(fastForwarded bool) {
	q.transition(StateAvailable, EventUnlocked, fastForwarded)
}

// Activate starts the quest. A main quest also starts its first subquest.
func (q *Quest) Activate(fastForwarded bool) {
	q.transition(StateActive, EventActivated, fastForwarded)

	if q.IsMain() {
		q.Main.begin(q, fastForwarded)
	}
}

// Complete finishes the quest. A main quest first force-completes every
// subquest that isn't completed yet, always as fast-forwarded and without
// firing subquest state changes.
func (q *Quest) Complete(fastForwarded bool) {
	if q.IsMain() {
		m := q.Main
		for _, sq := range m.Subquests {
			if sq.State != StateCompleted {
				m.unwatch(sq)
				sq.Complete(true)
			}
		}
	}

	q.transition(StateCompleted, EventCompleted, fastForwarded)
}

// Fail marks the quest as permanently failed.
func (q *Quest) Fail(fastForwarded bool) {
	q.transition(StateFailed, EventFailed, fastForwarded)
}

// Reset returns the quest to its pristine state. Observers stay attached,
// except the main quest's own subquest watch.
func (q *Quest) Reset() {
	q.State = StateLocked
	q.ListeningActions = q.ListeningActions[:0]

	if q.IsMain() {
		if q.Main.watched != nil {
			q.Main.unwatch(q.Main.watched)
		}
		q.Main.current = 0
	}
}

func (q *Quest) transition(state State, event EventType, fastForwarded bool) {
	q.State = state
	q.events.emit(Event{Type: event, Quest: q, FastForwarded: fastForwarded})
}

func (q *Quest) emitSubquestState(sq *Quest, state State, fastForwarded bool) {
	q.events.emit(Event{
		Type:          EventSubquestStateChanged,
		Quest:         q,
		FastForwarded: fastForwarded,
		Subquest:      sq,
		SubquestState: state,
	})
}

// CurrentIndex returns the index of the active (or about to activate) subquest.
func (m *MainQuest) CurrentIndex() int {
	return m.current
}

// CurrentSubquest returns the subquest at the cursor, or nil when there are none.
func (m *MainQuest) CurrentSubquest() *Quest {
	if m.current < 0 || m.current >= len(m.Subquests) {
		return nil
	}
	return m.Subquests[m.current]
}

// Watching returns the subquest whose completion is currently observed.
func (m *MainQuest) Watching() *Quest {
	return m.watched
}

func (m *MainQuest) begin(owner *Quest, fastForwarded bool) {
	if m.watched != nil {
		m.unwatch(m.watched)
	}
	m.current = 0

	if len(m.Subquests) == 0 {
		return
	}

	sq := m.Subquests[m.current]
	m.watchSubquest(owner, sq)
	sq.Activate(fastForwarded)
	owner.emitSubquestState(sq, StateActive, fastForwarded)
}

// onSubquestCompleted advances to the next subquest, or completes the owner
// after the last one.
func (m *MainQuest) onSubquestCompleted(owner *Quest, fastForwarded bool) {
	sq := m.Subquests[m.current]
	m.unwatch(sq)
	owner.emitSubquestState(sq, StateCompleted, fastForwarded)

	if m.current+1 < len(m.Subquests) {
		m.current++
		next := m.Subquests[m.current]
		m.watchSubquest(owner, next)
		next.Activate(fastForwarded)
		owner.emitSubquestState(next, StateActive, fastForwarded)
		return
	}

	// Base completion: every subquest is done, nothing to sweep.
	owner.transition(StateCompleted, EventCompleted, fastForwarded)
}

func (m *MainQuest) watchSubquest(owner *Quest, sq *Quest) {
	m.watched = sq
	m.watch = sq.Subscribe(func(e Event) {
		m.onSubquestCompleted(owner, e.FastForwarded)
	}, EventCompleted)
}

func (m *MainQuest) unwatch(sq *Quest) {
	if m.watched != sq {
		return
	}
	m.watch.Cancel()
	m.watch = nil
	m.watched = nil
}
