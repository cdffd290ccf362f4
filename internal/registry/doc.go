// Package registry defines the managed processes and decides which should run.
//
// A Registry is built once from Descriptors and never changes. Every tick the
// manager calls DesiredSet with the vehicle state and a params View; the
// result is handed to the supervisor to reconcile. Predicates are pure; the
// only hardware fact they depend on (UbloxAvailable) is cached into params by
// a probe before the tick.
package registry
