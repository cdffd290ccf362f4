package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Latest keeps the newest device state and car params and wakes a poller
// when a device state arrives. It is a Source on its own: with no updates
// every Poll times out and reports an offroad vehicle.
type Latest struct {
	mu      sync.Mutex
	snap    Snapshot
	updates chan struct{}
	now     func() time.Time
}

// NewLatest creates an empty cache.
func NewLatest() *Latest {
	return &Latest{
		updates: make(chan struct{}, 1),
		now:     time.Now,
	}
}

// SetDevice stores a device state and wakes the poller.
func (l *Latest) SetDevice(ds DeviceState) {
	l.mu.Lock()
	l.snap.Device = ds
	l.snap.DeviceAt = l.now()
	l.mu.Unlock()

	select {
	case l.updates <- struct{}{}:
	default:
	}
}

// SetCar stores car params. It does not wake the poller.
func (l *Latest) SetCar(cp CarParams) {
	l.mu.Lock()
	l.snap.Car = cp
	l.snap.CarAt = l.now()
	l.mu.Unlock()
}

// HandleDeviceState decodes a JSON device state message.
func (l *Latest) HandleDeviceState(_ string, payload []byte) error {
	var ds DeviceState
	if err := json.Unmarshal(payload, &ds); err != nil {
		return fmt.Errorf("%w: deviceState: %w", ErrDecode, err)
	}
	l.SetDevice(ds)
	return nil
}

// HandleCarParams decodes a JSON car params message.
func (l *Latest) HandleCarParams(_ string, payload []byte) error {
	var cp CarParams
	if err := json.Unmarshal(payload, &cp); err != nil {
		return fmt.Errorf("%w: carParams: %w", ErrDecode, err)
	}
	l.SetCar(cp)
	return nil
}

// Current returns the last known snapshot without waiting.
func (l *Latest) Current() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.snap
	s.Fresh = false
	return s
}

// Poll implements Source.
func (l *Latest) Poll(ctx context.Context, timeout time.Duration) (Snapshot, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return l.Current(), ctx.Err()
	case <-l.updates:
		s := l.Current()
		s.Fresh = true
		return s, nil
	case <-timer.C:
		return l.Current(), nil
	}
}
