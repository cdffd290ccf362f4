package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/logging"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/metrics"
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/registry"
	"github.com/nerrad567/onroad-manager/internal/status"
	"github.com/nerrad567/onroad-manager/internal/supervisor"
	"github.com/nerrad567/onroad-manager/internal/vehicle"
)

// Params keys written by the loop.
const (
	KeyIsOnroad              = "IsOnroad"
	KeyIsOffroad             = "IsOffroad"
	KeyLastManagerExitReason = "LastManagerExitReason"
	KeyDoUninstall           = "DoUninstall"
	KeyDoShutdown            = "DoShutdown"
	KeyDoReboot              = "DoReboot"
)

// exitFlags are checked after every tick, in this order.
var exitFlags = []string{KeyDoUninstall, KeyDoShutdown, KeyDoReboot}

// exitReasonStamp formats the time recorded with the exit reason.
const exitReasonStamp = "2006-01-02 15:04:05.000000"

// Edge is a change of the started flag between two ticks.
type Edge int

// Edges.
const (
	EdgeNone Edge = iota
	EdgeOnroad
	EdgeOffroad
)

func (e Edge) String() string {
	switch e {
	case EdgeOnroad:
		return "onroad"
	case EdgeOffroad:
		return "offroad"
	default:
		return "none"
	}
}

// TickResult describes one completed tick.
type TickResult struct {
	Started bool
	Edge    Edge
	Desired map[string]bool

	// ExitFlags lists the exit request flags found set, in check order.
	ExitFlags []string
}

// ExitRequested reports whether the loop should stop after this tick.
func (r TickResult) ExitRequested() bool {
	return len(r.ExitFlags) > 0
}

// LoopConfig holds everything a Loop reads and drives.
type LoopConfig struct {
	Registry   *registry.Registry
	Primary    params.Store
	Ephemeral  params.Store
	Source     vehicle.Source
	Supervisor Supervisor
	Publisher  status.Publisher

	// Probes run before each poll.
	Probes []Probe

	// ErrorLog is asked to remove the previous run's error log on every
	// onroad edge. Optional.
	ErrorLog ErrorTracker

	// Ignore is fixed for the run.
	Ignore registry.IgnoreSet

	PollTimeout time.Duration
	RunID       string

	// Timer receives tick durations. Optional.
	Timer *TickTimer

	Logger *logging.Logger
}

// Loop is the reconciliation loop. It is driven by a single goroutine.
type Loop struct {
	cfg     LoopConfig
	logger  *logging.Logger
	started bool
	now     func() time.Time
}

// NewLoop creates a loop that starts offroad.
func NewLoop(cfg LoopConfig) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Loop{
		cfg:    cfg,
		logger: logger.With("component", "loop"),
		now:    time.Now,
	}
}

// Started returns the started flag seen on the last tick.
func (l *Loop) Started() bool {
	return l.started
}

// Prime writes the offroad signal and reconciles the offroad process set.
// It runs once before the first tick and does not count as an edge.
func (l *Loop) Prime(ctx context.Context) error {
	l.started = false
	if err := l.writeOnroadSignal(ctx, false); err != nil {
		return err
	}
	view, err := l.cfg.Primary.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading params: %w", err)
	}
	desired := registry.DesiredSet(l.cfg.Registry, false, view, vehicle.Snapshot{}, l.cfg.Ignore)
	if err := l.cfg.Supervisor.Reconcile(ctx, l.cfg.Registry, desired); err != nil {
		l.logger.Warn("reconcile incomplete", "error", err)
	}
	return nil
}

// Tick runs one iteration: probe, poll, edge handling, reconcile, publish,
// and the exit flag check.
//
// Parameters:
//   - ctx: Cancels the poll
//
// Returns:
//   - TickResult: What the tick decided
//   - error: Store or poll failures; process start failures are only logged
func (l *Loop) Tick(ctx context.Context) (TickResult, error) {
	begin := l.now()

	for _, p := range l.cfg.Probes {
		if err := p.Apply(ctx, l.cfg.Primary); err != nil {
			l.logger.Warn("hardware probe failed", "error", err)
		}
	}

	snap, err := l.cfg.Source.Poll(ctx, l.cfg.PollTimeout)
	if err != nil {
		return TickResult{}, fmt.Errorf("polling vehicle state: %w", err)
	}

	res := TickResult{Started: snap.Device.Started}
	res.Edge = edgeBetween(l.started, res.Started)
	if res.Edge != EdgeNone {
		if err := l.handleEdge(ctx, res.Edge); err != nil {
			return res, err
		}
	}
	l.started = res.Started

	view, err := l.cfg.Primary.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("reading params: %w", err)
	}
	res.Desired = registry.DesiredSet(l.cfg.Registry, res.Started, view, snap, l.cfg.Ignore)

	if err := l.cfg.Supervisor.Reconcile(ctx, l.cfg.Registry, res.Desired); err != nil {
		l.logger.Warn("reconcile incomplete", "error", err)
	}

	state := l.managerState(res.Started)
	l.logLiveness(state.Processes)
	alive, desired := state.Counts()
	metrics.SetProcessCounts(alive, desired)
	if err := l.cfg.Publisher.Publish(ctx, state); err != nil {
		l.logger.Warn("publishing managerState failed", "error", err)
	}

	res.ExitFlags, err = l.checkExitFlags(ctx)
	if err != nil {
		return res, err
	}

	elapsed := l.now().Sub(begin)
	metrics.ObserveTick(elapsed.Seconds())
	if l.cfg.Timer != nil {
		l.cfg.Timer.Observe(elapsed)
	}
	return res, nil
}

// Run ticks until an exit flag is set or ctx is cancelled. Cancellation is
// observed at tick boundaries and inside the poll; it is returned as
// ErrSignalInterrupt.
func (l *Loop) Run(ctx context.Context) (TickResult, error) {
	var last TickResult
	for {
		if err := ctx.Err(); err != nil {
			return last, fmt.Errorf("%w: %w", ErrSignalInterrupt, err)
		}

		res, err := l.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, fmt.Errorf("%w: %w", ErrSignalInterrupt, ctx.Err())
			}
			return res, err
		}
		last = res
		if res.ExitRequested() {
			return res, nil
		}
	}
}

func edgeBetween(prev, cur bool) Edge {
	switch {
	case cur && !prev:
		return EdgeOnroad
	case !cur && prev:
		return EdgeOffroad
	default:
		return EdgeNone
	}
}

// handleEdge clears the transition scope, then writes the onroad signal.
func (l *Loop) handleEdge(ctx context.Context, edge Edge) error {
	switch edge {
	case EdgeOnroad:
		if err := l.clear(ctx, "primary", l.cfg.Primary, params.ClearOnOnroadTransition); err != nil {
			return err
		}
		if l.cfg.ErrorLog != nil {
			if err := l.cfg.ErrorLog.RemoveErrorLog(); err != nil {
				l.logger.Warn("removing error log failed", "error", err)
			}
		}
	case EdgeOffroad:
		if err := l.clear(ctx, "primary", l.cfg.Primary, params.ClearOnOffroadTransition); err != nil {
			return err
		}
		if l.cfg.Ephemeral != nil {
			if err := l.clear(ctx, "ephemeral", l.cfg.Ephemeral, params.ClearOnOffroadTransition); err != nil {
				return err
			}
		}
	}

	metrics.IncTransition(edge.String())
	l.logger.Info("vehicle transition", "edge", edge.String())
	return l.writeOnroadSignal(ctx, edge == EdgeOnroad)
}

func (l *Loop) clear(ctx context.Context, partition string, store params.Store, scope params.Scope) error {
	if err := store.ClearAll(ctx, scope); err != nil {
		return fmt.Errorf("clearing %s on %s: %w", scope, partition, err)
	}
	metrics.IncScopeClear(partition, scope.String())
	return nil
}

// writeOnroadSignal publishes started through IsOnroad and IsOffroad.
func (l *Loop) writeOnroadSignal(ctx context.Context, started bool) error {
	if err := l.cfg.Primary.PutBool(ctx, KeyIsOnroad, started); err != nil {
		return fmt.Errorf("writing %s: %w", KeyIsOnroad, err)
	}
	if err := l.cfg.Primary.PutBool(ctx, KeyIsOffroad, !started); err != nil {
		return fmt.Errorf("writing %s: %w", KeyIsOffroad, err)
	}
	return nil
}

func (l *Loop) managerState(started bool) status.ManagerState {
	descs := l.cfg.Registry.All()
	procs := make([]supervisor.ProcessState, 0, len(descs))
	for _, d := range descs {
		procs = append(procs, l.cfg.Supervisor.StatusOf(d))
	}

	state := status.ManagerState{
		Valid:     true,
		RunID:     l.cfg.RunID,
		Timestamp: l.now().UTC(),
		Started:   started,
		Processes: procs,
	}
	if l.cfg.Timer != nil {
		state.TickLatency = l.cfg.Timer.Latency()
	}
	return state
}

// logLiveness logs the processes that have been started, split by liveness.
func (l *Loop) logLiveness(procs []supervisor.ProcessState) {
	var alive, dead []string
	for _, p := range procs {
		switch {
		case p.Alive:
			alive = append(alive, p.Name)
		case p.PID != 0:
			dead = append(dead, p.Name)
		}
	}
	l.logger.Debug("running",
		"alive", strings.Join(alive, " "),
		"dead", strings.Join(dead, " "),
	)
}

// checkExitFlags logs every set flag and records the first one found, in
// check order, as the exit reason.
func (l *Loop) checkExitFlags(ctx context.Context) ([]string, error) {
	var set []string
	for _, flag := range exitFlags {
		on, err := l.cfg.Primary.GetBool(ctx, flag)
		if err != nil {
			return set, fmt.Errorf("reading %s: %w", flag, err)
		}
		if !on {
			continue
		}
		set = append(set, flag)
		metrics.IncExitRequest(flag)
		l.logger.Warn("shutting down manager", "flag", flag)

		if len(set) > 1 {
			continue
		}
		reason := flag + " " + l.now().Format(exitReasonStamp)
		if err := l.cfg.Primary.Put(ctx, KeyLastManagerExitReason, []byte(reason)); err != nil {
			return set, fmt.Errorf("writing %s: %w", KeyLastManagerExitReason, err)
		}
	}
	return set, nil
}
