package manager

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/nerrad567/onroad-manager/internal/status"
)

// minTimedTicks is how many ticks are timed before quantiles are reported.
const minTimedTicks = 10

// TickTimer accumulates tick durations in a t-digest.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type TickTimer struct {
	mu     sync.Mutex
	digest *tdigest.TDigest
	count  int
	max    time.Duration
}

// NewTickTimer creates an empty timer.
func NewTickTimer() *TickTimer {
	return &TickTimer{digest: tdigest.NewWithCompression(100)}
}

// Observe records one tick.
func (t *TickTimer) Observe(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.digest.Add(float64(d.Nanoseconds()), 1)
	t.count++
	t.max = max(t.max, d)
}

// Count returns how many ticks were observed.
func (t *TickTimer) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Max returns the longest tick observed.
func (t *TickTimer) Max() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max
}

// Latency returns tick quantiles, or nil before minTimedTicks ticks.
func (t *TickTimer) Latency() *status.Latency {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count < minTimedTicks {
		return nil
	}
	ms := func(q float64) float64 {
		return t.digest.Quantile(q) / float64(time.Millisecond)
	}
	return &status.Latency{P50: ms(0.50), P90: ms(0.90), P99: ms(0.99)}
}
