package vehicle

import (
	"context"
	"time"
)

// DeviceState is the subset of the device state message the manager reads.
type DeviceState struct {
	// Started is true while the vehicle is onroad (ignition on and the
	// device is ready to drive).
	Started bool `json:"started"`

	ThermalStatus    string  `json:"thermalStatus,omitempty"`
	NetworkType      string  `json:"networkType,omitempty"`
	FreeSpacePercent float64 `json:"freeSpacePercent,omitempty"`
}

// CarParams is the subset of the vehicle identity message the manager reads.
type CarParams struct {
	// NotCar marks a non-car platform (bench rig, body) where logging
	// rules differ.
	NotCar bool `json:"notCar"`

	CarName        string `json:"carName,omitempty"`
	CarFingerprint string `json:"carFingerprint,omitempty"`
}

// Snapshot is the most recent vehicle view handed to one tick.
// It is a value; the manager never mutates it.
type Snapshot struct {
	Device DeviceState
	Car    CarParams

	// DeviceAt and CarAt are receive times; zero means never received.
	DeviceAt time.Time
	CarAt    time.Time

	// Fresh is true when a device state arrived during the poll that
	// produced this snapshot.
	Fresh bool
}

// Source produces snapshots for the reconciliation loop.
type Source interface {
	// Poll waits up to timeout for a new device state. On timeout it
	// returns the last known snapshot with Fresh=false and a nil error.
	// It returns ctx.Err() if ctx is cancelled first.
	Poll(ctx context.Context, timeout time.Duration) (Snapshot, error)
}
