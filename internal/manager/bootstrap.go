package manager

import (
	"context"
	"fmt"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/onroad-manager/internal/identity"
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/registry"
)

// Params keys written during bootstrap.
const (
	KeyRecordFront     = "RecordFront"
	KeyRecordFrontLock = "RecordFrontLock"
	KeyLastUpdateTime  = "LastUpdateTime"
)

// prepareConcurrency bounds parallel Prepare calls.
const prepareConcurrency = 4

// Bootstrap phases, as reported in FatalBootstrapError.
const (
	PhaseScopeReset    = "scope reset"
	PhaseShadowMerge   = "shadow merge"
	PhaseDefaultFill   = "default fill"
	PhaseVersionParams = "version params"
	PhaseRegistration  = "registration"
	PhasePrepare       = "prepare"
)

// Bootstrap prepares the run. Every phase failure is a FatalBootstrapError
// and later phases do not run. Maintenance is started first and not waited
// for.
func (m *Lifecycle) Bootstrap(ctx context.Context) error {
	if m.deps.Maintenance != nil {
		go m.deps.Maintenance.Run(ctx) //nolint:errcheck // Logged inside; never escalated
	}

	if err := m.resetScopes(ctx); err != nil {
		return &FatalBootstrapError{Phase: PhaseScopeReset, Err: err}
	}

	if err := m.deps.Merger.Merge(ctx, m.deps.Primary, m.deps.Storage, m.deps.Tracking); err != nil {
		return &FatalBootstrapError{Phase: PhaseShadowMerge, Err: err}
	}

	if err := m.fillDefaults(ctx); err != nil {
		return &FatalBootstrapError{Phase: PhaseDefaultFill, Err: err}
	}

	if err := identity.WriteVersionParams(ctx, m.deps.Primary, m.deps.Build); err != nil {
		return &FatalBootstrapError{Phase: PhaseVersionParams, Err: err}
	}

	dongleID, err := m.deps.Registrar.Register(ctx)
	if err != nil {
		return &FatalBootstrapError{Phase: PhaseRegistration, Err: err}
	}
	m.bindIdentity(dongleID)

	mc := m.deps.Config.Manager
	m.ignore = registry.BuildIgnoreSet(registry.IgnoreInputs{
		DongleID: dongleID,
		NoBoard:  mc.NoBoard,
		Block:    mc.Block,
	})
	if m.ignore.Len() > 0 {
		m.logger.Info("ignoring processes", "names", m.ignore.Names())
	}

	if err := m.prepareAll(ctx); err != nil {
		return &FatalBootstrapError{Phase: PhasePrepare, Err: err}
	}

	m.logger.Info("bootstrap complete", "processes", m.deps.Registry.Len())
	return nil
}

// resetScopes clears the start and transition scopes, plus development-only
// keys on release builds.
func (m *Lifecycle) resetScopes(ctx context.Context) error {
	scopes := []params.Scope{
		params.ClearOnManagerStart,
		params.ClearOnOnroadTransition,
		params.ClearOnOffroadTransition,
	}
	if m.deps.Config.Device.ReleaseBuild || m.deps.Build.Release() {
		scopes = append(scopes, params.DevelopmentOnly)
	}
	for _, s := range scopes {
		if err := m.deps.Primary.ClearAll(ctx, s); err != nil {
			return fmt.Errorf("clearing %s: %w", s, err)
		}
	}
	return nil
}

// fillDefaults applies the locked front recording flag, then the default
// fill against the storage partition.
func (m *Lifecycle) fillDefaults(ctx context.Context) error {
	locked, err := m.deps.Primary.GetBool(ctx, KeyRecordFrontLock)
	if err != nil {
		return fmt.Errorf("reading %s: %w", KeyRecordFrontLock, err)
	}
	if locked {
		if err := m.deps.Primary.PutBool(ctx, KeyRecordFront, true); err != nil {
			return fmt.Errorf("writing %s: %w", KeyRecordFront, err)
		}
	}

	overrides := maps.Clone(m.deps.Config.Params.DefaultOverrides)
	if overrides == nil {
		overrides = make(map[string]string)
	}
	if !m.deps.Config.Device.PC {
		overrides[KeyLastUpdateTime] = time.Now().UTC().Format("2006-01-02T15:04:05.000000")
	}
	defaults := params.OverrideDefaults(m.deps.Primary.Table().Defaults(), overrides)

	res, err := params.FillDefaults(ctx, m.deps.Primary, m.deps.Storage, defaults)
	if err != nil {
		return err
	}
	m.logger.Debug("defaults filled", "primary_writes", len(res.Primary), "shadow_writes", len(res.Shadow))
	return nil
}

// bindIdentity attaches the device identity and build to every later log line.
func (m *Lifecycle) bindIdentity(dongleID string) {
	m.dongleID = dongleID
	b := m.deps.Build
	m.logger = m.logger.With(
		"dongle_id", dongleID,
		"branch", b.GitBranch,
		"commit", b.GitCommit,
		"dirty", b.Dirty,
		"device", m.deps.Config.Device.Type,
		"run_id", m.deps.RunID,
	)
}

// prepareAll runs Prepare for every descriptor and returns the first error.
func (m *Lifecycle) prepareAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prepareConcurrency)
	for _, d := range m.deps.Registry.All() {
		g.Go(func() error {
			if err := m.deps.Supervisor.Prepare(gctx, d); err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
