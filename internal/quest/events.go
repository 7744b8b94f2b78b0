package quest

// EventType identifies a lifecycle notification
type EventType int

const (
	EventUnlocked EventType = iota
	EventActivated
	EventCompleted
	EventFailed
	// EventSubquestStateChanged is fired by a main quest while it sequences
	// its subquests. It is separate from the subquest's own notifications.
	EventSubquestStateChanged
)

func (t EventType) String() string {
	switch t {
	case EventUnlocked:
		return "unlocked"
	case EventActivated:
		return "activated"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventSubquestStateChanged:
		return "subquest_state_changed"
	default:
		return "unknown"
	}
}

// Event is delivered to observers of a quest.
type Event struct {
	Type  EventType
	Quest *Quest

	// FastForwarded is set when the transition comes from a bulk or
	// administrative restore rather than live progression.
	FastForwarded bool

	// Only set for EventSubquestStateChanged.
	Subquest      *Quest
	SubquestState State
}

// Observer receives quest events.
type Observer func(Event)

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	id    uint64
	owner *channel
}

// Cancel detaches the observer. Calling it more than once is a no-op.
func (s *Subscription) Cancel() {
	if s == nil || s.owner == nil {
		return
	}
	s.owner.remove(s.id)
	s.owner = nil
}

// Active reports whether the subscription is still attached.
func (s *Subscription) Active() bool {
	return s != nil && s.owner != nil
}

type observerEntry struct {
	id     uint64
	mask   uint32
	notify Observer
}

// channel is the per-quest publish/subscribe list.
type channel struct {
	nextID    uint64
	observers []observerEntry
}

func maskOf(types []EventType) uint32 {
	if len(types) == 0 {
		return ^uint32(0)
	}
	var m uint32
	for _, t := range types {
		m |= 1 << uint(t)
	}
	return m
}

func (c *channel) add(fn Observer, types []EventType) *Subscription {
	c.nextID++
	c.observers = append(c.observers, observerEntry{id: c.nextID, mask: maskOf(types), notify: fn})
	return &Subscription{id: c.nextID, owner: c}
}

func (c *channel) remove(id uint64) {
	for i, o := range c.observers {
		if o.id == id {
			c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
			return
		}
	}
}

// emit delivers to the observers registered when emission started.
func (c *channel) emit(e Event) {
	if len(c.observers) == 0 {
		return
	}
	targets := make([]observerEntry, len(c.observers))
	copy(targets, c.observers)
	bit := uint32(1) << uint(e.Type)
	for _, o := range targets {
		if o.mask&bit != 0 {
			o.notify(e)
		}
	}
}

func (c *channel) count() int {
	return len(c.observers)
}
