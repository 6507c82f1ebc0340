package partition

import (
	"errors"
	"fmt"
)

// State is the orchestrator lifecycle position.
type State string

const (
	StateCreated State = "created"
	StatePlanned State = "planned"
	StateRunning State = "running"
	StateMerging State = "merging"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// ErrIllegalTransition is returned when an operation is invoked out of order.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	StateCreated: {StatePlanned, StateFailed},
	StatePlanned: {StateRunning, StateFailed},
	StateRunning: {StateMerging, StateFailed},
	StateMerging: {StateDone, StateFailed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}
