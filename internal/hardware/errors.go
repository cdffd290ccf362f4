package hardware

import "errors"

// ErrNoCommand is returned when a terminal action has no configured command.
var ErrNoCommand = errors.New("hardware: no command configured")
