package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/onroad-manager/internal/hardware"
)

// Drain stops every managed process: first a non-blocking stop to all of
// them, then a blocking stop. It runs at most once per Lifecycle and is
// safe when nothing was started. Cancellation of ctx does not cut it short.
func (m *Lifecycle) Drain(ctx context.Context) error {
	m.drainOnce.Do(func() {
		if err := m.state.Transition(StateDraining); err != nil {
			m.logger.Debug("drain outside running state", "state", m.state.Current())
		}

		ctx := context.WithoutCancel(ctx)
		var errs []error
		if err := m.deps.Supervisor.StopAll(ctx, false); err != nil {
			errs = append(errs, fmt.Errorf("signalling processes: %w", err))
		}
		if err := m.deps.Supervisor.StopAll(ctx, true); err != nil {
			errs = append(errs, fmt.Errorf("stopping processes: %w", err))
		}
		m.drainErr = errors.Join(errs...)

		m.logger.Info("everything is dead", m.drainFields()...)
	})
	return m.drainErr
}

// TerminalAction reads the exit flags and returns the device action to
// perform. Uninstall wins over reboot, reboot over shutdown.
func (m *Lifecycle) TerminalAction(ctx context.Context) (hardware.Action, error) {
	order := []struct {
		flag   string
		action hardware.Action
	}{
		{KeyDoUninstall, hardware.ActionUninstall},
		{KeyDoReboot, hardware.ActionReboot},
		{KeyDoShutdown, hardware.ActionShutdown},
	}
	for _, o := range order {
		set, err := m.deps.Primary.GetBool(ctx, o.flag)
		if err != nil {
			return hardware.ActionNone, fmt.Errorf("reading %s: %w", o.flag, err)
		}
		if set {
			return o.action, nil
		}
	}
	return hardware.ActionNone, nil
}

// Finish moves to StateTerminated and performs the terminal device action,
// unless the manager was forked by another launcher or Run ended on a signal.
func (m *Lifecycle) Finish(ctx context.Context) error {
	if err := m.state.Transition(StateTerminated); err != nil {
		return err
	}
	if m.deps.Config.Manager.Forked || m.deps.Terminal == nil {
		return nil
	}
	if m.interrupted {
		m.logger.Info("stopped by signal, skipping terminal action")
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	action, err := m.TerminalAction(ctx)
	if err != nil {
		return err
	}
	if action == hardware.ActionNone {
		return nil
	}

	m.logger.Warn("terminal action", "action", action.String())
	if err := m.deps.Terminal.Do(ctx, action); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}
