package process

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
)

// SpawnDetached starts a process in its own session. The process outlives
// the caller; while the caller lives, a background Wait reaps it on exit so
// no zombie is left behind.
//
// Parameters:
//   - cfg: Binary, Args, Env and WorkDir are used; Output, if set, must be
//     an *os.File since the caller does not copy output after release
//
// Returns:
//   - int: PID of the new process
//   - error: If the process cannot be started
func SpawnDetached(cfg Config) (int, error) {
	cmd := exec.Command(cfg.Binary, cfg.Args...) //nolint:gosec // G204: binaries come from the process registry
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Dir = cfg.WorkDir
	if f, ok := cfg.Output.(*os.File); ok {
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", cfg.Name, err)
	}
	go cmd.Wait() //nolint:errcheck // exit status of a detached daemon is not tracked
	return cmd.Process.Pid, nil
}

// PIDAlive reports whether a process with pid exists and has not exited.
// A zombie waiting to be reaped counts as dead.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if err := syscall.Kill(pid, 0); err != nil && !errors.Is(err, syscall.EPERM) {
		return false
	}
	return !zombie(pid)
}

// zombie reads the state field of /proc/<pid>/stat. Without /proc it
// reports false.
func zombie(pid int) bool {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	// The command name in field 2 may contain spaces; the state follows
	// its closing parenthesis.
	i := bytes.LastIndexByte(stat, ')')
	if i < 0 || i+2 >= len(stat) {
		return false
	}
	return stat[i+2] == 'Z'
}
