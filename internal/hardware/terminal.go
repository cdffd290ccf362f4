package hardware

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
)

// Action is a device action taken after the manager has drained.
type Action uint8

const (
	// ActionNone exits without touching the device.
	ActionNone Action = iota
	ActionUninstall
	ActionReboot
	ActionShutdown
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionUninstall:
		return "uninstall"
	case ActionReboot:
		return "reboot"
	case ActionShutdown:
		return "shutdown"
	default:
		return "none"
	}
}

// Runner executes a command line.
type Runner func(ctx context.Context, argv []string) error

// Terminal performs uninstall, reboot and shutdown with configured commands.
type Terminal struct {
	commands map[Action][]string
	run      Runner
}

// NewTerminal creates a Terminal that runs commands with os/exec.
func NewTerminal(cfg config.TerminalConfig) *Terminal {
	return &Terminal{
		commands: map[Action][]string{
			ActionUninstall: cfg.Uninstall,
			ActionReboot:    cfg.Reboot,
			ActionShutdown:  cfg.Shutdown,
		},
		run: execRunner,
	}
}

// SetRunner replaces the command runner.
func (t *Terminal) SetRunner(run Runner) {
	t.run = run
}

// Do performs the action. ActionNone is a no-op.
//
// Parameters:
//   - ctx: Context for the command
//   - action: Action to perform
//
// Returns:
//   - error: ErrNoCommand if the action has no command, or the command error
func (t *Terminal) Do(ctx context.Context, action Action) error {
	if action == ActionNone {
		return nil
	}
	argv := t.commands[action]
	if len(argv) == 0 {
		return fmt.Errorf("%w: %s", ErrNoCommand, action)
	}
	if err := t.run(ctx, argv); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func execRunner(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // G204: commands come from the operator config
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %q: %w: %s", strings.Join(argv, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
