package identity

import "context"

// UnregisteredDongleID is the identity used when the backend cannot be
// reached. Cloud-facing processes stay off while it is in use.
const UnregisteredDongleID = "UnregisteredDevice"

// Params keys owned by registration.
const (
	KeyDongleID       = "DongleId"
	KeyHardwareSerial = "HardwareSerial"
)

// Registrar resolves the device identity.
type Registrar interface {
	// Register returns the dongle id. A returned error is fatal to
	// bootstrap; an unreachable backend is not an error and yields
	// UnregisteredDongleID.
	Register(ctx context.Context) (string, error)
}

// Logger is the logging interface used by this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}
