package registry

import (
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/vehicle"
)

// Params keys read by the predicates.
const (
	KeyDriverViewEnabled    = "IsDriverViewEnabled"
	KeyDisableLogging       = "DisableLogging"
	KeyUbloxAvailable       = "UbloxAvailable"
	KeyDeviceManagement     = "DeviceManagement"
	KeyNoLogging            = "NoLogging"
	KeyNoUploads            = "NoUploads"
	KeyDisableOnroadUploads = "DisableOnroadUploads"
)

// AlwaysRun keeps a process alive onroad and offroad.
func AlwaysRun(bool, params.View, vehicle.Snapshot) bool {
	return true
}

// OnlyOnroad runs while the vehicle is started.
func OnlyOnroad(started bool, _ params.View, _ vehicle.Snapshot) bool {
	return started
}

// OnlyOffroad runs while the vehicle is not started.
func OnlyOffroad(started bool, _ params.View, _ vehicle.Snapshot) bool {
	return !started
}

// DriverView runs onroad, or offroad while the driver camera preview is open.
func DriverView(started bool, state params.View, _ vehicle.Snapshot) bool {
	return started || state.GetBool(KeyDriverViewEnabled)
}

// NotCar runs onroad on non-car platforms.
func NotCar(started bool, _ params.View, v vehicle.Snapshot) bool {
	return started && v.Car.NotCar
}

// IsCar runs onroad on real cars.
func IsCar(started bool, _ params.View, v vehicle.Snapshot) bool {
	return started && !v.Car.NotCar
}

// Logging runs onroad unless this is a non-car platform with logging disabled.
func Logging(started bool, state params.View, v vehicle.Snapshot) bool {
	run := !v.Car.NotCar || !state.GetBool(KeyDisableLogging)
	return started && run
}

// Ublox runs onroad when the ublox receiver was detected.
func Ublox(started bool, state params.View, _ vehicle.Snapshot) bool {
	return started && state.GetBool(KeyUbloxAvailable)
}

// QcomGPS runs onroad when the ublox receiver is absent.
func QcomGPS(started bool, state params.View, _ vehicle.Snapshot) bool {
	return started && !state.GetBool(KeyUbloxAvailable)
}

// AllowLogging is Logging gated by the device management opt-out.
func AllowLogging(started bool, state params.View, v vehicle.Snapshot) bool {
	allow := !(state.GetBool(KeyDeviceManagement) && state.GetBool(KeyNoLogging))
	return allow && Logging(started, state, v)
}

// AllowUploads runs unless device management disabled uploads entirely.
// Keeping onroad uploads disabled instead leaves the uploader running.
func AllowUploads(_ bool, state params.View, _ vehicle.Snapshot) bool {
	return !(state.GetBool(KeyDeviceManagement) &&
		state.GetBool(KeyNoUploads) &&
		!state.GetBool(KeyDisableOnroadUploads))
}
