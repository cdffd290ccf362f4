package identity

import "errors"

// Domain-specific errors for device registration.
var (
	// ErrNoSerial is returned when the hardware serial is unknown.
	ErrNoSerial = errors.New("identity: hardware serial unknown")

	// ErrMissingKey is returned when the device key pair cannot be read.
	ErrMissingKey = errors.New("identity: device key missing or invalid")

	// ErrUnreachable is returned when the backend cannot be reached or
	// answers with an unexpected status.
	ErrUnreachable = errors.New("identity: registration backend unreachable")

	// ErrBadResponse is returned when the backend answers 200 with a body
	// that carries no dongle id.
	ErrBadResponse = errors.New("identity: malformed registration response")

	// ErrRejected is returned when the backend refuses the device.
	ErrRejected = errors.New("identity: registration rejected")
)
