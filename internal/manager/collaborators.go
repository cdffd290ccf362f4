package manager

import (
	"context"

	"github.com/nerrad567/onroad-manager/internal/crashreport"
	"github.com/nerrad567/onroad-manager/internal/hardware"
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/registry"
	"github.com/nerrad567/onroad-manager/internal/supervisor"
)

// Supervisor starts and stops registry processes on the manager's behalf.
// Reconcile returns once the requests are issued; processes reach their
// target state asynchronously.
type Supervisor interface {
	Prepare(ctx context.Context, d registry.Descriptor) error
	Reconcile(ctx context.Context, reg *registry.Registry, desired map[string]bool) error
	StopAll(ctx context.Context, block bool) error
	StatusOf(d registry.Descriptor) supervisor.ProcessState
}

// processStopper is implemented by supervisors that can stop one process.
// It is used to take the UI down when bootstrap fails.
type processStopper interface {
	Stop(ctx context.Context, name string) error
}

// Probe refreshes cached hardware facts in the store before each tick.
type Probe interface {
	Apply(ctx context.Context, store params.Store) error
}

// ErrorTracker records loop faults and owns the on-disk error log.
type ErrorTracker interface {
	Capture(r crashreport.Report) error
	RemoveErrorLog() error
}

// Terminal performs the device action requested before the manager exited.
type Terminal interface {
	Do(ctx context.Context, action hardware.Action) error
}

// Notifier shows a must-dismiss message to the local operator.
type Notifier func(ctx context.Context, title, body string) error
