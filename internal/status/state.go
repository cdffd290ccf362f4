package status

import (
	"time"

	"github.com/nerrad567/onroad-manager/internal/supervisor"
)

// ManagerState is the status message published once per tick.
type ManagerState struct {
	Valid     bool      `json:"valid"`
	RunID     string    `json:"runId"`
	Timestamp time.Time `json:"timestamp"`
	Started   bool      `json:"started"`

	// Processes are in registry order.
	Processes []supervisor.ProcessState `json:"processes"`

	// TickLatency is omitted until enough ticks have been timed.
	TickLatency *Latency `json:"tickLatency,omitempty"`
}

// Latency summarises tick durations in milliseconds.
type Latency struct {
	P50 float64 `json:"p50Ms"`
	P90 float64 `json:"p90Ms"`
	P99 float64 `json:"p99Ms"`
}

// Counts returns how many processes are alive and how many should be.
func (s ManagerState) Counts() (alive, desired int) {
	for _, p := range s.Processes {
		if p.Alive {
			alive++
		}
		if p.ShouldBeRunning {
			desired++
		}
	}
	return alive, desired
}

// Clone returns a copy that shares no slices with s.
func (s ManagerState) Clone() ManagerState {
	out := s
	if s.Processes != nil {
		out.Processes = make([]supervisor.ProcessState, len(s.Processes))
		copy(out.Processes, s.Processes)
	}
	if s.TickLatency != nil {
		l := *s.TickLatency
		out.TickLatency = &l
	}
	return out
}
