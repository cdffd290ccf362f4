package supervisor

// ProcessState is the per-process status published every tick.
type ProcessState struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	PID  int    `json:"pid,omitempty"`

	// Alive is true while the OS process exists.
	Alive bool `json:"running"`

	// ShouldBeRunning is the last reconcile decision for this process.
	ShouldBeRunning bool `json:"shouldBeRunning"`

	ExitCode int `json:"exitCode"`
	Restarts int `json:"restarts"`
}
