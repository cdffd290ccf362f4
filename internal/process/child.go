package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a child process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusExited   Status = "exited"
	StatusFailed   Status = "failed"
)

// Defaults applied by NewChild to zero values.
const (
	defaultGracefulTimeout     = 5 * time.Second
	defaultHealthCheckInterval = time.Second
	defaultMaxHealthFailures   = 1
	killWait                   = 5 * time.Second
)

// ErrWatchdog is the exit error recorded when a health check killed the child.
var ErrWatchdog = errors.New("process: killed by watchdog")

// Config holds configuration for a child process.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format),
	// appended to the parent's environment.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// StopSignal is sent to the process group to request a stop.
	// Defaults to SIGINT.
	StopSignal syscall.Signal

	// GracefulTimeout is how long a blocking stop waits before SIGKILL.
	GracefulTimeout time.Duration

	// Output receives stdout and stderr. If nil, output is logged at
	// debug level line by line.
	Output io.Writer

	// HealthCheck is called every HealthCheckInterval with the child's pid.
	// If nil, the child is healthy while it runs.
	HealthCheck func(ctx context.Context, pid int) error

	// HealthCheckInterval is how often to run HealthCheck.
	HealthCheckInterval time.Duration

	// MaxHealthFailures is how many consecutive failed checks kill the child.
	MaxHealthFailures int

	// OnExit is called once the child has exited and been reaped.
	OnExit func(err error)
}

// Logger defines the logging interface for child processes.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Child runs one OS process in its own process group.
//
// A Child does not restart on its own: once the process exits it stays
// exited until Start is called again. Restart policy belongs to the caller.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Child struct {
	config Config
	logger Logger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	status    Status
	lastError error
	exitCode  int
	startTime time.Time
	starts    int
	stopping  bool
	done      chan struct{}
	cancel    context.CancelFunc
}

// NewChild creates a child with the given configuration. Nothing is started.
func NewChild(cfg Config) *Child {
	if cfg.StopSignal == 0 {
		cfg.StopSignal = syscall.SIGINT
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = defaultHealthCheckInterval
	}
	if cfg.MaxHealthFailures <= 0 {
		cfg.MaxHealthFailures = defaultMaxHealthFailures
	}

	return &Child{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the child.
func (c *Child) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Name returns the configured name.
func (c *Child) Name() string {
	return c.config.Name
}

// Start launches the process and begins monitoring it.
//
// The process is not tied to ctx: cancelling ctx only ends health checks.
// Processes are stopped explicitly with Signal or Stop.
//
// Returns:
//   - error: ErrAlreadyRunning, or the spawn error
func (c *Child) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusRunning || c.status == StatusStopping {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, c.config.Name)
	}

	cmd := exec.Command(c.config.Binary, c.config.Args...) //nolint:gosec // G204: binaries come from the process registry
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(os.Environ(), c.config.Env...)
	if c.config.WorkDir != "" {
		cmd.Dir = c.config.WorkDir
	}

	var stdout, stderr io.ReadCloser
	if c.config.Output != nil {
		cmd.Stdout = c.config.Output
		cmd.Stderr = c.config.Output
	} else {
		var err error
		if stdout, err = cmd.StdoutPipe(); err != nil {
			return fmt.Errorf("creating stdout pipe: %w", err)
		}
		if stderr, err = cmd.StderrPipe(); err != nil {
			return fmt.Errorf("creating stderr pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		c.status = StatusFailed
		c.lastError = err
		return fmt.Errorf("starting %s: %w", c.config.Name, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	c.cmd = cmd
	c.status = StatusRunning
	c.lastError = nil
	c.exitCode = 0
	c.startTime = time.Now()
	c.starts++
	c.stopping = false
	c.done = make(chan struct{})
	c.cancel = cancel

	if stdout != nil {
		go c.captureOutput("stdout", stdout)
		go c.captureOutput("stderr", stderr)
	}
	go c.monitor(watchCtx, cmd, c.done)

	c.logger.Info("process started", "name", c.config.Name, "pid", cmd.Process.Pid)
	return nil
}

// captureOutput logs each line read from r.
func (c *Child) captureOutput(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.logger.Debug("process output",
			"name", c.config.Name,
			"stream", stream,
			"output", scanner.Text(),
		)
	}
}

// monitor waits for the process to exit, killing it if health checks fail.
func (c *Child) monitor(ctx context.Context, cmd *exec.Cmd, done chan struct{}) {
	defer close(done)

	err := c.waitForExitOrHealthFailure(ctx, cmd)

	c.mu.Lock()
	stopping := c.stopping
	c.exitCode = exitCode(cmd)
	c.lastError = err
	switch {
	case stopping:
		c.status = StatusStopped
	case err != nil:
		c.status = StatusFailed
	default:
		c.status = StatusExited
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if stopping {
		c.logger.Info("process stopped", "name", c.config.Name, "exit_code", c.exitCode)
	} else {
		c.logger.Warn("process exited unexpectedly",
			"name", c.config.Name,
			"exit_code", c.exitCode,
			"error", err,
		)
	}

	if c.config.OnExit != nil {
		c.config.OnExit(err)
	}
}

// waitForExitOrHealthFailure waits for the process to exit or for health
// checks to fail MaxHealthFailures times in a row, in which case the process
// group is killed.
func (c *Child) waitForExitOrHealthFailure(ctx context.Context, cmd *exec.Cmd) error {
	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()

	if c.config.HealthCheck == nil {
		return <-exitCh
	}

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case err := <-exitCh:
			return err

		case <-ctx.Done():
			// Health checks end; keep reaping.
			return <-exitCh

		case <-ticker.C:
			if err := c.config.HealthCheck(ctx, cmd.Process.Pid); err != nil {
				failures++
				c.logger.Warn("health check failed",
					"name", c.config.Name,
					"error", err,
					"consecutive_failures", failures,
				)
				if failures < c.config.MaxHealthFailures {
					continue
				}

				c.logger.Error("watchdog timeout, killing process", "name", c.config.Name)
				killGroup(cmd.Process.Pid, syscall.SIGKILL)

				select {
				case <-exitCh:
				case <-time.After(killWait):
				}
				return fmt.Errorf("%w: %w", ErrWatchdog, err)
			}
			failures = 0
		}
	}
}

// Signal asks the process group to stop without waiting.
// Signalling a child that is not running is a no-op.
func (c *Child) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signalLocked()
}

func (c *Child) signalLocked() {
	if c.status != StatusRunning || c.cmd == nil || c.cmd.Process == nil {
		return
	}
	c.stopping = true
	c.status = StatusStopping
	pid := c.cmd.Process.Pid
	c.logger.Info("stopping process", "name", c.config.Name, "pid", pid, "signal", c.config.StopSignal.String())
	killGroup(pid, c.config.StopSignal)
}

// Stop signals the process group and waits for it to exit, sending SIGKILL
// after GracefulTimeout. Stopping a child that is not running is a no-op.
func (c *Child) Stop() error {
	c.mu.Lock()
	c.signalLocked()
	cmd := c.cmd
	done := c.done
	status := c.status
	c.mu.Unlock()

	if done == nil || cmd == nil || cmd.Process == nil || status != StatusStopping {
		if done != nil {
			<-done
		}
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(c.config.GracefulTimeout):
		c.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", c.config.Name,
			"timeout", c.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", c.config.Name, err)
	}
	<-done
	c.logger.Info("process killed", "name", c.config.Name)
	return nil
}

// Done returns a channel closed when the current process has been reaped.
// It is nil before the first Start.
func (c *Child) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Status returns the current status of the child.
func (c *Child) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Alive returns true while the process has not been reaped.
func (c *Child) Alive() bool {
	s := c.Status()
	return s == StatusRunning || s == StatusStopping
}

// PID returns the process ID, or 0 if never started.
func (c *Child) PID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Pid
	}
	return 0
}

// Stats is a point-in-time view of a child.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Starts    int           `json:"starts"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the child.
func (c *Child) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		Name:     c.config.Name,
		Status:   c.status,
		ExitCode: c.exitCode,
		Starts:   c.starts,
	}
	if c.cmd != nil && c.cmd.Process != nil {
		stats.PID = c.cmd.Process.Pid
	}
	if c.status == StatusRunning || c.status == StatusStopping {
		stats.Uptime = time.Since(c.startTime)
	}
	if c.lastError != nil {
		stats.LastError = c.lastError.Error()
	}
	return stats
}

// killGroup signals every process in the group led by pid.
func killGroup(pid int, sig syscall.Signal) {
	// Negative pid addresses the group created with Setpgid.
	_ = syscall.Kill(-pid, sig)
}

// exitCode returns the exit status, or minus the signal number when the
// process was killed by a signal.
func exitCode(cmd *exec.Cmd) int {
	state := cmd.ProcessState
	if state == nil {
		return 0
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}
