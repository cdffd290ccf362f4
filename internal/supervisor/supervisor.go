package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/logging"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/metrics"
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/process"
	"github.com/nerrad567/onroad-manager/internal/registry"
)

// watchdogInterval is how often heartbeat files are checked.
const watchdogInterval = time.Second

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Supervisor.
type Options struct {
	Processes   config.ProcessesConfig
	WatchdogDir string
}

// Supervisor starts and stops registry processes on the host.
//
// Native and interpreted processes are children of the manager and are
// stopped on drain. Daemons are detached, tracked by the pid stored under
// their PIDKey, and left running.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Supervisor struct {
	opts   Options
	store  params.Store
	logger Logger

	// ctx scopes child health checks; it is not tied to any request.
	ctx context.Context

	mu       sync.Mutex
	children map[string]*process.Child
	outputs  map[string]*lumberjack.Logger
	daemons  map[string]int
	desired  map[string]bool
}

// New creates a supervisor.
//
// Parameters:
//   - opts: Launch settings
//   - store: Primary params store, used for daemon pid keys
//
// Returns:
//   - *Supervisor: Supervisor with nothing running
func New(opts Options, store params.Store) *Supervisor {
	return &Supervisor{
		opts:     opts,
		store:    store,
		logger:   noopLogger{},
		ctx:      context.Background(),
		children: make(map[string]*process.Child),
		outputs:  make(map[string]*lumberjack.Logger),
		daemons:  make(map[string]int),
		desired:  make(map[string]bool),
	}
}

// SetLogger sets the logger used by the supervisor and its children.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare checks that an enabled process can be launched, without starting it.
// Disabled processes are skipped.
func (s *Supervisor) Prepare(_ context.Context, d registry.Descriptor) error {
	if !d.Enabled {
		return nil
	}

	switch d.Kind {
	case registry.KindNative:
		if len(d.Argv) == 0 {
			return fmt.Errorf("%w: %s has no argv", ErrNotLaunchable, d.Name)
		}
		bin := s.nativeBinary(d)
		info, err := os.Stat(bin)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrNotLaunchable, d.Name, err)
		}
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("%w: %s: %s is not executable", ErrNotLaunchable, d.Name, bin)
		}
	case registry.KindInterpreted, registry.KindDaemon:
		if _, err := exec.LookPath(s.opts.Processes.Interpreter); err != nil {
			return fmt.Errorf("%w: %s: interpreter: %w", ErrNotLaunchable, d.Name, err)
		}
		if !s.moduleExists(d.Module) {
			return fmt.Errorf("%w: %s: module %s not found under %s", ErrNotLaunchable, d.Name, d.Module, s.opts.Processes.BaseDir)
		}
	default:
		return fmt.Errorf("%w: %s: kind %s", ErrNotLaunchable, d.Name, d.Kind)
	}
	return nil
}

// Reconcile starts every desired process that is not alive and signals every
// undesired live process to stop. It does not wait for either to happen.
//
// Returns:
//   - error: Joined start failures; the remaining processes are still handled
func (s *Supervisor) Reconcile(ctx context.Context, reg *registry.Registry, desired map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, d := range reg.All() {
		want := desired[d.Name]
		s.desired[d.Name] = want

		if d.Kind == registry.KindDaemon {
			if want {
				if err := s.ensureDaemon(ctx, d); err != nil {
					errs = append(errs, err)
				}
			}
			continue
		}

		child := s.children[d.Name]
		switch {
		case want && (child == nil || !child.Alive()):
			if err := s.startChild(d); err != nil {
				errs = append(errs, err)
			}
		case !want && child != nil && child.Status() == process.StatusRunning:
			child.Signal()
			metrics.IncStop(d.Name)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every child process. With block it waits until all have
// exited; otherwise it only sends the stop signal. Daemons are not stopped.
// It is safe to call with nothing running and to call repeatedly.
func (s *Supervisor) StopAll(_ context.Context, block bool) error {
	s.mu.Lock()
	children := make([]*process.Child, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	for name := range s.desired {
		s.desired[name] = false
	}
	s.mu.Unlock()

	if !block {
		for _, c := range children {
			c.Signal()
		}
		return nil
	}

	var g errgroup.Group
	for _, c := range children {
		g.Go(c.Stop)
	}
	err := g.Wait()

	s.mu.Lock()
	for name, out := range s.outputs {
		if cerr := out.Close(); cerr != nil {
			s.logger.Warn("closing process log failed", "name", name, "error", cerr)
		}
	}
	s.mu.Unlock()
	return err
}

// Stop stops one child process and waits for it to exit. Unknown names and
// daemons are ignored.
func (s *Supervisor) Stop(_ context.Context, name string) error {
	s.mu.Lock()
	child, ok := s.children[name]
	if ok {
		s.desired[name] = false
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.IncStop(name)
	return child.Stop()
}

// StatusOf reports the current state of a process.
func (s *Supervisor) StatusOf(d registry.Descriptor) ProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := ProcessState{
		Name:            d.Name,
		Kind:            d.Kind.String(),
		ShouldBeRunning: s.desired[d.Name],
	}

	if d.Kind == registry.KindDaemon {
		if pid, ok := s.daemons[d.Name]; ok {
			state.PID = pid
			state.Alive = daemonRunning(pid, d.Module)
		}
		return state
	}

	if child, ok := s.children[d.Name]; ok {
		stats := child.Stats()
		state.PID = stats.PID
		state.Alive = child.Alive()
		state.ExitCode = stats.ExitCode
		state.Restarts = max(stats.Starts-1, 0)
	}
	return state
}

func (s *Supervisor) startChild(d registry.Descriptor) error {
	child, ok := s.children[d.Name]
	if !ok {
		child = process.NewChild(s.childConfig(d))
		child.SetLogger(s.logger)
		s.children[d.Name] = child
	}
	if err := child.Start(s.ctx); err != nil {
		return err
	}
	metrics.IncStart(d.Name)
	return nil
}

func (s *Supervisor) childConfig(d registry.Descriptor) process.Config {
	cfg := process.Config{
		Name:            d.Name,
		GracefulTimeout: time.Duration(s.opts.Processes.GracefulTimeout) * time.Second,
	}

	switch d.Kind {
	case registry.KindNative:
		cfg.Binary = s.nativeBinary(d)
		cfg.Args = d.Argv[1:]
		cfg.WorkDir = filepath.Join(s.opts.Processes.BaseDir, d.Dir)
	default:
		cfg.Binary = s.opts.Processes.Interpreter
		cfg.Args = []string{"-m", d.Module}
		cfg.WorkDir = s.opts.Processes.BaseDir
	}

	if s.opts.Processes.Logs.Path != "" {
		out := logging.NewRotatingFile(config.FileLoggingConfig{
			Path:       filepath.Join(s.opts.Processes.Logs.Path, d.Name+".log"),
			MaxSize:    s.opts.Processes.Logs.MaxSize,
			MaxBackups: s.opts.Processes.Logs.MaxBackups,
			MaxAge:     s.opts.Processes.Logs.MaxAge,
			Compress:   s.opts.Processes.Logs.Compress,
		})
		s.outputs[d.Name] = out
		cfg.Output = out
	}

	if d.Watchdog > 0 && s.opts.WatchdogDir != "" {
		name := d.Name
		cfg.HealthCheck = newWatchdogCheck(s.opts.WatchdogDir, d.Watchdog, bootTime)
		cfg.HealthCheckInterval = watchdogInterval
		cfg.OnExit = func(err error) {
			if errors.Is(err, process.ErrWatchdog) {
				metrics.IncWatchdogKill(name)
			}
		}
	}
	return cfg
}

// ensureDaemon starts a daemon unless the pid in its key is still running it.
func (s *Supervisor) ensureDaemon(ctx context.Context, d registry.Descriptor) error {
	if pid, ok := s.daemons[d.Name]; ok && daemonRunning(pid, d.Module) {
		return nil
	}

	raw, ok, err := s.store.Get(ctx, d.PIDKey)
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.PIDKey, err)
	}
	if ok {
		if pid, err := strconv.Atoi(string(raw)); err == nil && daemonRunning(pid, d.Module) {
			s.daemons[d.Name] = pid
			return nil
		}
	}

	s.logger.Info("starting daemon", "name", d.Name)
	pid, err := process.SpawnDetached(process.Config{
		Name:    d.Name,
		Binary:  s.opts.Processes.Interpreter,
		Args:    []string{"-m", d.Module},
		WorkDir: s.opts.Processes.BaseDir,
	})
	if err != nil {
		return err
	}
	s.daemons[d.Name] = pid
	metrics.IncStart(d.Name)

	if err := s.store.Put(ctx, d.PIDKey, []byte(strconv.Itoa(pid))); err != nil {
		return fmt.Errorf("writing %s: %w", d.PIDKey, err)
	}
	return nil
}

func (s *Supervisor) nativeBinary(d registry.Descriptor) string {
	return filepath.Join(s.opts.Processes.BaseDir, d.Dir, d.Argv[0])
}

// moduleExists resolves a dotted module to a file or package under BaseDir.
func (s *Supervisor) moduleExists(module string) bool {
	base := filepath.Join(s.opts.Processes.BaseDir, filepath.FromSlash(strings.ReplaceAll(module, ".", "/")))
	for _, candidate := range []string{base + ".py", filepath.Join(base, "__init__.py"), filepath.Join(base, "__main__.py")} {
		if _, err := os.Stat(candidate); err == nil {
			return true
		}
	}
	return false
}

// daemonRunning reports whether pid is alive and, when /proc is readable,
// still runs module.
func daemonRunning(pid int, module string) bool {
	if !process.PIDAlive(pid) {
		return false
	}
	cmdline, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return true
	}
	return bytes.Contains(cmdline, []byte(module))
}
