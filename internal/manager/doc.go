// Package manager runs the onroad manager lifecycle.
//
// A run moves through four states, forward only:
//
//	Bootstrapping -> Running -> Draining -> Terminated
//
// Bootstrap clears scoped params, merges the shadow partitions, fills
// defaults, records the build, resolves the device identity, fixes the
// ignore set and prepares every process. Any failure there is a
// FatalBootstrapError: the UI is stopped and the operator gets a notice.
//
// The Loop then ticks. Each tick polls the vehicle snapshot, handles onroad
// and offroad edges (scope clear, then the IsOnroad/IsOffroad signal),
// computes the desired process set from the params view, asks the Supervisor
// to reconcile, publishes managerState and checks the exit flags.
//
// Drain always runs once the loop has started, whether it ended on an exit
// flag, a signal or a LoopFault.
//
// Example usage:
//
//	m, err := manager.New(manager.Deps{...})
//	if err != nil {
//	    return err
//	}
//	return m.Execute(ctx)
package manager
