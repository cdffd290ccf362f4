package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the /system response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	Connections   map[string]bool `json:"connections"`
	Manager       *ManagerMetrics `json:"manager,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// ManagerMetrics summarises the last managerState.
type ManagerMetrics struct {
	RunID   string `json:"run_id"`
	Started bool   `json:"started"`
	Alive   int    `json:"alive"`
	Desired int    `json:"desired"`
}

// handleSystem returns runtime, connection and supervision counters.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Connections: make(map[string]bool, len(s.checks)),
	}

	if s.hub != nil {
		m.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	for name, c := range s.checks {
		m.Connections[name] = c.HealthCheck(r.Context()) == nil
	}
	if st, ok := s.latest.Current(); ok {
		alive, desired := st.Counts()
		m.Manager = &ManagerMetrics{
			RunID:   st.RunID,
			Started: st.Started,
			Alive:   alive,
			Desired: desired,
		}
	}

	writeJSON(w, http.StatusOK, m)
}
