package manager

import (
	"errors"
	"fmt"
)

// Domain errors for the manager lifecycle.
var (
	// ErrInvalidTransition is returned when the run state would move backwards.
	ErrInvalidTransition = errors.New("manager: invalid run state transition")

	// ErrTransientMaintenance wraps a failed background housekeeping step.
	// It is logged and never reaches the control path.
	ErrTransientMaintenance = errors.New("manager: maintenance step failed")

	// ErrSignalInterrupt marks a run ended by SIGINT or SIGTERM. It is a
	// graceful exit, not a fault.
	ErrSignalInterrupt = errors.New("manager: interrupted by signal")
)

// FatalBootstrapError aborts the run before the loop starts.
// No processes have been started when it is returned.
type FatalBootstrapError struct {
	Phase string
	Err   error
}

func (e *FatalBootstrapError) Error() string {
	return fmt.Sprintf("manager: bootstrap failed during %s: %v", e.Phase, e.Err)
}

func (e *FatalBootstrapError) Unwrap() error { return e.Err }

// LoopFault is any failure that ends the Running phase other than an exit
// request or a signal. Stack is set when the fault was a panic.
type LoopFault struct {
	Err   error
	Stack []byte
}

func (e *LoopFault) Error() string {
	return fmt.Sprintf("manager: loop fault: %v", e.Err)
}

func (e *LoopFault) Unwrap() error { return e.Err }
