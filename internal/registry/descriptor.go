package registry

import (
	"time"

	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/vehicle"
)

// Kind is the closed set of process kinds the supervisor can run.
type Kind uint8

const (
	// KindNative is a compiled binary started with Argv inside Dir.
	KindNative Kind = iota + 1

	// KindInterpreted is a module started by the configured interpreter.
	KindInterpreted

	// KindDaemon is a detached singleton whose pid is kept in a params key.
	// It survives manager restarts and is never stopped by the manager.
	KindDaemon
)

// String returns the kind name used in logs and status messages.
func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindInterpreted:
		return "interpreted"
	case KindDaemon:
		return "daemon"
	default:
		return "unknown"
	}
}

// Predicate decides whether a process should run.
//
// Predicates must be pure: the same inputs always give the same answer and
// nothing is written. Hardware facts are cached into the store by a probe
// before the tick and read from state like any other key.
type Predicate func(started bool, state params.View, v vehicle.Snapshot) bool

// Descriptor is the static definition of one managed process.
// Descriptors are values and are never modified after the registry is built.
type Descriptor struct {
	Name string
	Kind Kind

	// Dir and Argv start a native process; Dir is relative to the
	// supervisor's base directory.
	Dir  string
	Argv []string

	// Module is the interpreter module for interpreted and daemon kinds.
	Module string

	// PIDKey is the params key holding a daemon's pid.
	PIDKey string

	Enabled   bool
	Condition Predicate

	// Watchdog is the longest the process may go without touching its
	// watchdog file before it is killed. Zero disables the watchdog.
	Watchdog time.Duration
}

// Option customises a descriptor at construction.
type Option func(*Descriptor)

// WithEnabled sets the static enabled flag. Descriptors are enabled by default.
func WithEnabled(enabled bool) Option {
	return func(d *Descriptor) { d.Enabled = enabled }
}

// WithWatchdog sets the watchdog budget.
func WithWatchdog(budget time.Duration) Option {
	return func(d *Descriptor) { d.Watchdog = budget }
}

// Native describes a compiled binary.
func Native(name, dir string, argv []string, cond Predicate, opts ...Option) Descriptor {
	d := Descriptor{
		Name:      name,
		Kind:      KindNative,
		Dir:       dir,
		Argv:      append([]string(nil), argv...),
		Enabled:   true,
		Condition: cond,
	}
	return apply(d, opts)
}

// Interpreted describes a module run by the interpreter.
func Interpreted(name, module string, cond Predicate, opts ...Option) Descriptor {
	d := Descriptor{
		Name:      name,
		Kind:      KindInterpreted,
		Module:    module,
		Enabled:   true,
		Condition: cond,
	}
	return apply(d, opts)
}

// Daemon describes a detached singleton. Daemons always want to run.
func Daemon(name, module, pidKey string, opts ...Option) Descriptor {
	d := Descriptor{
		Name:      name,
		Kind:      KindDaemon,
		Module:    module,
		PIDKey:    pidKey,
		Enabled:   true,
		Condition: AlwaysRun,
	}
	return apply(d, opts)
}

func apply(d Descriptor, opts []Option) Descriptor {
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
