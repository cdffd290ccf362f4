package manager

import (
	"fmt"
	"sync"
)

// RunState is the lifecycle phase of one manager run.
type RunState int

// Run states, in the only order they may be entered.
const (
	StateBootstrapping RunState = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s RunState) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// stateMachine holds the current RunState. Moves are forward only; a state
// may be skipped (Bootstrapping straight to Terminated after PREPAREONLY).
type stateMachine struct {
	mu    sync.RWMutex
	state RunState
}

func (m *stateMachine) Current() RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *stateMachine) Transition(to RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if to <= m.state || to > StateTerminated {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	return nil
}
