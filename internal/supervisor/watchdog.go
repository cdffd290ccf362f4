package supervisor

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// watchdogFilePrefix names heartbeat files: <dir>/wd_<pid>.
const watchdogFilePrefix = "wd_"

// WatchdogPath returns the heartbeat file a process with pid writes.
func WatchdogPath(dir string, pid int) string {
	return filepath.Join(dir, watchdogFilePrefix+strconv.Itoa(pid))
}

// bootTime returns the time since boot, including suspend. Heartbeats are
// written on the same clock.
func bootTime() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return 0, err
	}
	return time.Duration(ts.Nano()), nil
}

// newWatchdogCheck returns a health check that fails once a heartbeat has
// been seen and then goes stale for longer than budget.
//
// A process that has never written a heartbeat is not killed; startup can
// take longer than the budget.
func newWatchdogCheck(dir string, budget time.Duration, now func() (time.Duration, error)) func(ctx context.Context, pid int) error {
	seen := false
	lastPID := 0
	return func(_ context.Context, pid int) error {
		if pid != lastPID {
			seen = false
			lastPID = pid
		}
		data, err := os.ReadFile(WatchdogPath(dir, pid))
		if err != nil || len(data) < 8 {
			return nil
		}
		last := time.Duration(binary.LittleEndian.Uint64(data[:8])) //nolint:gosec // G115: nanoseconds since boot fit in int64
		current, err := now()
		if err != nil {
			return nil
		}

		age := current - last
		if age <= budget {
			seen = true
			return nil
		}
		if !seen {
			return nil
		}
		return fmt.Errorf("watchdog heartbeat %s old, budget %s", age.Round(time.Millisecond), budget)
	}
}
