package quest

import (
	"fmt"
	"strings"
)

// State is a quest's position in its lifecycle.
// The integer values are part of the save format and must not be reordered.
type State int

const (
	StateLocked    State = iota // Not reachable yet, waits on a previous quest
	StateAvailable              // Unlocked by a previous quest, not started
	StateActive                 // In progress and can be completed
	StateCompleted              // Successfully completed
	StateFailed                 // Permanently failed
)

var stateNames = [...]string{
	StateLocked:    "locked",
	StateAvailable: "available",
	StateActive:    "active",
	StateCompleted: "completed",
	StateFailed:    "failed",
}

// String returns the lowercase name of the state.
func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Valid reports whether s is one of the five lifecycle states.
func (s State) Valid() bool {
	return s >= StateLocked && s <= StateFailed
}

// IsTerminal returns true for Completed and Failed
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ParseState converts a state name (case-insensitive) or its integer form to a State.
func ParseState(s string) (State, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	if len(name) == 1 && name[0] >= '0' && name[0] <= '4' {
		return State(name[0] - '0'), nil
	}
	return StateLocked, fmt.Errorf("unknown quest state %q", s)
}
