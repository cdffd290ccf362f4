package supervisor

import "errors"

// ErrNotLaunchable is returned by Prepare when a process cannot be started.
var ErrNotLaunchable = errors.New("supervisor: process not launchable")
