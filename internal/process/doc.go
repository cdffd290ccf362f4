// Package process runs OS child processes for the manager.
//
// A Child owns one process in its own process group:
//   - Start spawns it and a monitor goroutine that reaps it
//   - Signal sends the stop signal without waiting (SIGINT by default)
//   - Stop signals, waits GracefulTimeout, then SIGKILLs the group
//   - an optional HealthCheck kills a hung process (the UI watchdog)
//
// Children never restart themselves; the supervisor starts them again on
// the next reconcile if they are still wanted.
//
// SpawnDetached starts singleton daemons that outlive the manager; they are
// tracked by pid only.
//
// Example usage:
//
//	child := process.NewChild(process.Config{
//	    Name:    "controlsd",
//	    Binary:  "python3",
//	    Args:    []string{"-m", "selfdrive.controls.controlsd"},
//	    WorkDir: "/data/openpilot",
//	})
//	if err := child.Start(ctx); err != nil {
//	    return err
//	}
//	defer child.Stop()
package process
