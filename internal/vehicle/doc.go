// Package vehicle provides the vehicle snapshot the manager reconciles against.
//
// The device state message arrives about twice a second; its arrival
// drives the tick. Car params arrive once per drive. Both are cached in a
// Latest so a tick that times out still sees the last known values.
package vehicle
