package supervisor

import (
	"context"
	"encoding/binary"
	"os"
	"testing"
	"time"
)

func writeHeartbeat(t *testing.T, dir string, pid int, at time.Duration) {
	t.Helper()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(at))
	if err := os.WriteFile(WatchdogPath(dir, pid), buf, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWatchdogCheck(t *testing.T) {
	dir := t.TempDir()
	now := 100 * time.Second
	clock := func() (time.Duration, error) { return now, nil }
	check := newWatchdogCheck(dir, 30*time.Second, clock)
	ctx := context.Background()

	// No heartbeat yet.
	if err := check(ctx, 42); err != nil {
		t.Errorf("missing heartbeat error = %v", err)
	}

	// Stale before ever fresh: startup grace.
	writeHeartbeat(t, dir, 42, 10*time.Second)
	if err := check(ctx, 42); err != nil {
		t.Errorf("unseen stale heartbeat error = %v", err)
	}

	// Fresh.
	writeHeartbeat(t, dir, 42, 95*time.Second)
	if err := check(ctx, 42); err != nil {
		t.Errorf("fresh heartbeat error = %v", err)
	}

	// Stale after seen.
	now = 200 * time.Second
	if err := check(ctx, 42); err == nil {
		t.Error("stale heartbeat after seen: expected error")
	}

	// A new pid starts unseen again.
	writeHeartbeat(t, dir, 43, 10*time.Second)
	if err := check(ctx, 43); err != nil {
		t.Errorf("new pid error = %v", err)
	}
}

func TestBootTime(t *testing.T) {
	a, err := bootTime()
	if err != nil {
		t.Fatalf("bootTime() error = %v", err)
	}
	b, _ := bootTime()
	if a <= 0 || b < a {
		t.Errorf("bootTime() = %v then %v", a, b)
	}
}
