package params

import (
	"context"
	"fmt"
)

// ShadowMerger folds the persist-volume partitions into the primary
// partition during bootstrap.
type ShadowMerger interface {
	Merge(ctx context.Context, primary, storage, tracking Store) error
}

// DefaultTrackingKeys are the long-lived drive statistics kept in the
// tracking partition.
var DefaultTrackingKeys = []string{"FrogPilotDrives", "FrogPilotKilometers", "FrogPilotMinutes"}

// TrackingMerger restores tracking keys missing from primary and refreshes
// the tracking copy of keys primary already has. The storage partition is
// left to the default fill.
type TrackingMerger struct {
	Keys []string
}

// NewTrackingMerger returns a merger over DefaultTrackingKeys.
func NewTrackingMerger() TrackingMerger {
	return TrackingMerger{Keys: DefaultTrackingKeys}
}

// Merge implements ShadowMerger.
func (m TrackingMerger) Merge(ctx context.Context, primary, _ Store, tracking Store) error {
	pv, err := primary.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading primary: %w", err)
	}
	tv, err := tracking.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading tracking: %w", err)
	}

	for _, key := range m.Keys {
		current, inPrimary := pv.Get(key)
		saved, inTracking := tv.Get(key)
		switch {
		case inPrimary:
			if err := tracking.Put(ctx, key, current); err != nil {
				return err
			}
		case inTracking:
			if err := primary.Put(ctx, key, saved); err != nil {
				return err
			}
		}
	}
	return nil
}
