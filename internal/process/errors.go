package process

import "errors"

// ErrAlreadyRunning is returned by Start while the previous process is alive.
var ErrAlreadyRunning = errors.New("process: already running")
