package hardware

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/params"
)

// KeyUbloxAvailable caches the GPS receiver probe result.
const KeyUbloxAvailable = "UbloxAvailable"

// Probe inspects the device before each tick and caches the result in params
// so process predicates can stay pure.
type Probe struct {
	ubloxTTY    string
	quectelFlag string
	exists      func(path string) bool
}

// NewProbe creates a probe for the configured device paths.
func NewProbe(cfg config.DeviceConfig) *Probe {
	return &Probe{
		ubloxTTY:    cfg.UbloxTTY,
		quectelFlag: cfg.QuectelFlag,
		exists:      pathExists,
	}
}

// UbloxAvailable reports whether a u-blox receiver is fitted and not
// overridden by the Quectel flag file.
func (p *Probe) UbloxAvailable() bool {
	if p.ubloxTTY == "" || !p.exists(p.ubloxTTY) {
		return false
	}
	return p.quectelFlag == "" || !p.exists(p.quectelFlag)
}

// Apply writes the probe result into the store when it differs from the
// cached value.
//
// Parameters:
//   - ctx: Context for the store calls
//   - store: Primary params store
//
// Returns:
//   - error: If the store cannot be read or written
func (p *Probe) Apply(ctx context.Context, store params.Store) error {
	available := p.UbloxAvailable()
	cached, err := store.GetBool(ctx, KeyUbloxAvailable)
	if err != nil {
		return fmt.Errorf("reading %s: %w", KeyUbloxAvailable, err)
	}
	if cached == available {
		return nil
	}
	if err := store.PutBool(ctx, KeyUbloxAvailable, available); err != nil {
		return fmt.Errorf("writing %s: %w", KeyUbloxAvailable, err)
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
