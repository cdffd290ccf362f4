// Package supervisor is the host implementation of the manager's process
// collaborator.
//
// It maps registry descriptors onto process.Child values:
//   - native: <base_dir>/<dir>/<argv[0]> run inside <base_dir>/<dir>
//   - interpreted: <interpreter> -m <module> run inside <base_dir>
//   - daemon: like interpreted, detached, pid stored in params
//
// Reconcile never blocks on a process. Crashed children are started again
// on the next reconcile while they are still desired. The UI watchdog kills
// a child whose heartbeat file goes stale; it is then restarted the same way.
package supervisor
