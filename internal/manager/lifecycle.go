package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nerrad567/onroad-manager/internal/crashreport"
	"github.com/nerrad567/onroad-manager/internal/identity"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/logging"
	"github.com/nerrad567/onroad-manager/internal/notice"
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/registry"
	"github.com/nerrad567/onroad-manager/internal/status"
	"github.com/nerrad567/onroad-manager/internal/vehicle"
)

// Deps holds the collaborators of one manager run.
type Deps struct {
	Config   *config.Config
	Build    identity.BuildInfo
	RunID    string
	Registry *registry.Registry

	// Primary is the live partition; Storage and Tracking are its shadows.
	Primary   params.Store
	Storage   params.Store
	Tracking  params.Store
	Ephemeral params.Store
	Merger    params.ShadowMerger

	Registrar  identity.Registrar
	Supervisor Supervisor
	Source     vehicle.Source
	Publisher  status.Publisher
	Probes     []Probe
	Tracker    ErrorTracker
	Terminal   Terminal

	// Maintenance runs in the background during bootstrap. Optional.
	Maintenance *Maintenance

	// Notify shows the bootstrap failure notice. Defaults to notice.Show
	// on stdin/stdout.
	Notify Notifier

	Logger *logging.Logger

	// Stderr receives loop fault traces. Defaults to os.Stderr.
	Stderr io.Writer
}

// Lifecycle sequences one manager run: bootstrap, the reconciliation loop,
// drain and the terminal device action.
//
// All methods except State are meant to be called from one goroutine.
type Lifecycle struct {
	deps   Deps
	logger *logging.Logger
	state  stateMachine
	timer  *TickTimer

	ignore   registry.IgnoreSet
	dongleID string

	// interrupted is set when Run ended on a signal; Finish then skips the
	// device action.
	interrupted bool

	drainOnce sync.Once
	drainErr  error
}

// New checks deps and returns a Lifecycle in StateBootstrapping.
func New(deps Deps) (*Lifecycle, error) {
	missing := func(name string) error {
		return fmt.Errorf("manager: missing dependency %s", name)
	}
	switch {
	case deps.Config == nil:
		return nil, missing("Config")
	case deps.Registry == nil:
		return nil, missing("Registry")
	case deps.Primary == nil || deps.Storage == nil || deps.Tracking == nil:
		return nil, missing("params partitions")
	case deps.Registrar == nil:
		return nil, missing("Registrar")
	case deps.Supervisor == nil:
		return nil, missing("Supervisor")
	case deps.Source == nil:
		return nil, missing("Source")
	case deps.Publisher == nil:
		return nil, missing("Publisher")
	}

	if deps.Merger == nil {
		deps.Merger = params.NewTrackingMerger()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Notify == nil {
		deps.Notify = func(ctx context.Context, title, body string) error {
			return notice.Show(ctx, title, body, os.Stdin, os.Stdout)
		}
	}

	return &Lifecycle{
		deps:   deps,
		logger: deps.Logger.With("component", "manager"),
		timer:  NewTickTimer(),
	}, nil
}

// State returns the current run state.
func (m *Lifecycle) State() RunState {
	return m.state.Current()
}

// Ignore returns the ignore set fixed during bootstrap.
func (m *Lifecycle) Ignore() registry.IgnoreSet {
	return m.ignore
}

// DongleID returns the identity resolved during bootstrap.
func (m *Lifecycle) DongleID() string {
	return m.dongleID
}

// Logger returns the run logger; after bootstrap it carries the identity.
func (m *Lifecycle) Logger() *logging.Logger {
	return m.logger
}

// Execute performs a whole run.
//
// A failed bootstrap stops the UI, shows the failure notice and returns the
// FatalBootstrapError without draining. With PREPAREONLY the run ends after
// bootstrap. Otherwise the loop runs, processes are drained, and the
// requested terminal action is performed unless the manager was forked or
// stopped by a signal.
//
// Returns:
//   - error: nil for a deliberate exit or a signal; a FatalBootstrapError or
//     LoopFault otherwise
func (m *Lifecycle) Execute(ctx context.Context) error {
	if err := m.Bootstrap(ctx); err != nil {
		m.failStart(ctx, err)
		return err
	}

	if m.deps.Config.Manager.PrepareOnly {
		m.logger.Info("prepare only, exiting after bootstrap")
		return m.state.Transition(StateTerminated)
	}

	runErr := m.Run(ctx)

	if err := m.Finish(ctx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// Run enters StateRunning and drives the loop until an exit request, a
// signal or a fault. Drain always runs before Run returns.
func (m *Lifecycle) Run(ctx context.Context) (err error) {
	if err := m.state.Transition(StateRunning); err != nil {
		return err
	}
	m.logger.Info("manager start")

	defer func() {
		if derr := m.Drain(ctx); derr != nil {
			m.logger.Error("drain failed", "error", derr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = m.fault(&LoopFault{Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()})
		}
	}()

	loop := NewLoop(LoopConfig{
		Registry:    m.deps.Registry,
		Primary:     m.deps.Primary,
		Ephemeral:   m.deps.Ephemeral,
		Source:      m.deps.Source,
		Supervisor:  m.deps.Supervisor,
		Publisher:   m.deps.Publisher,
		Probes:      m.deps.Probes,
		ErrorLog:    m.deps.Tracker,
		Ignore:      m.ignore,
		PollTimeout: m.deps.Config.PollTimeout(),
		RunID:       m.deps.RunID,
		Timer:       m.timer,
		Logger:      m.logger,
	})

	if err := loop.Prime(ctx); err != nil {
		return m.fault(&LoopFault{Err: err})
	}

	res, err := loop.Run(ctx)
	switch {
	case err == nil:
		m.logger.Info("exit requested", "flags", res.ExitFlags)
		return nil
	case errors.Is(err, ErrSignalInterrupt):
		m.logger.Info("received signal, shutting down")
		m.interrupted = true
		return nil
	default:
		return m.fault(&LoopFault{Err: err})
	}
}

// fault reports a loop fault to the tracker and stderr and returns it.
func (m *Lifecycle) fault(f *LoopFault) error {
	m.logger.Error("loop fault", "error", f.Err)

	trace := f.Error()
	if len(f.Stack) > 0 {
		trace += "\n" + string(f.Stack)
	}
	fmt.Fprintln(m.deps.Stderr, trace) //nolint:errcheck // Best effort local print

	if m.deps.Tracker != nil {
		report := crashreport.Report{
			Kind:  "loop_fault",
			Err:   f.Err,
			Stack: f.Stack,
			Context: map[string]string{
				"dongle_id": m.dongleID,
				"version":   m.deps.Build.Version,
				"branch":    m.deps.Build.GitBranch,
			},
		}
		if err := m.deps.Tracker.Capture(report); err != nil {
			m.logger.Warn("capturing loop fault failed", "error", err)
		}
	}
	return f
}

// failStart handles a fatal bootstrap error: stop the UI best effort,
// then block on the operator notice.
func (m *Lifecycle) failStart(ctx context.Context, err error) {
	m.logger.Error("Manager failed to start", "error", err)

	if stopper, ok := m.deps.Supervisor.(processStopper); ok {
		if serr := stopper.Stop(context.WithoutCancel(ctx), registry.NameUI); serr != nil {
			m.logger.Debug("stopping ui failed", "error", serr)
		}
	}

	body := notice.FailureBody(notice.ErrorTrace(err))
	if nerr := m.deps.Notify(ctx, notice.FailedToStart, body); nerr != nil {
		m.logger.Warn("showing failure notice failed", "error", nerr)
	}
}

// drainFields summarises tick timing for the drain log.
func (m *Lifecycle) drainFields() []any {
	fields := []any{"ticks", m.timer.Count(), "max_tick", m.timer.Max().Round(time.Millisecond)}
	if l := m.timer.Latency(); l != nil {
		fields = append(fields, "tick_p50_ms", l.P50, "tick_p99_ms", l.P99)
	}
	return fields
}
