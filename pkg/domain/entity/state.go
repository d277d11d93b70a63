package entity

import "fmt"

// State is the acquisition state of one domain
type State string

const (
	StatePending        State = "pending"
	StateTryingVariant  State = "trying_variant"
	StateTryingStrategy State = "trying_strategy"
	StateEscalated      State = "escalated"
	StateAcquired       State = "acquired"
	StateNoAssetFound   State = "no_asset_found"
)

// IsTerminal reports whether the state is terminal (finished).
func (s State) IsTerminal() bool {
	switch s {
	case StateAcquired, StateNoAssetFound:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateTryingVariant || to == StateEscalated
	case StateTryingVariant:
		return to == StateTryingStrategy || to == StateEscalated
	case StateTryingStrategy:
		return to == StateTryingStrategy || to == StateTryingVariant ||
			to == StateAcquired || to == StateEscalated
	case StateEscalated:
		return to == StateEscalated || to == StateAcquired || to == StateNoAssetFound
	default:
		return false
	}
}

// Lifecycle tracks the state of a single domain and rejects transitions
// that would regress it. It is owned by one worker at a time.
type Lifecycle struct {
	Domain  string
	state   State
	history []State
}

// NewLifecycle creates a lifecycle in the pending state
func NewLifecycle(domain string) *Lifecycle {
	return &Lifecycle{
		Domain:  domain,
		state:   StatePending,
		history: []State{StatePending},
	}
}

// State returns the current state
func (l *Lifecycle) State() State {
	return l.state
}

// History returns every state visited so far, in order
func (l *Lifecycle) History() []State {
	out := make([]State, len(l.history))
	copy(out, l.history)
	return out
}

// Transition performs a validated transition.
func (l *Lifecycle) Transition(to State) error {
	if !isAllowedTransition(l.state, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", l.Domain, l.state, to)
	}
	l.state = to
	l.history = append(l.history, to)
	return nil
}
