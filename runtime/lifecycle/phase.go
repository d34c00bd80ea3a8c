package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is a lifecycle moment at which registered handlers run
type Phase int

const (
	// Start runs once an instance is fully constructed, on the next tick
	Start Phase = iota
	// Destroy runs when an instance is torn down, at the end of the current tick
	Destroy

	phaseCount
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case Start:
		return "start"
	case Destroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	return p >= 0 && p < phaseCount
}

// Phases returns every phase in dispatch order
func Phases() []Phase {
	return []Phase{Start, Destroy}
}

// ParsePhase parses a phase name as written in manifests and tags
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start":
		return Start, nil
	case "destroy":
		return Destroy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
}

// State is the per-instance, per-phase scheduling state
type State int

const (
	NotScheduled State = iota
	Pending
	Dispatched
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case NotScheduled:
		return "not_scheduled"
	case Pending:
		return "pending"
	case Dispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

var (
	// ErrUnknownPhase is returned for a phase outside Phases()
	ErrUnknownPhase = errors.New("unknown phase")
	// ErrNilType is returned when a handler is registered without a type
	ErrNilType = errors.New("nil handler type")
	// ErrNilHandler is returned when a nil handler is registered
	ErrNilHandler = errors.New("nil handler")
	// ErrHandlerExists is returned when (phase, type) already has a handler
	ErrHandlerExists = errors.New("handler already registered")
)
