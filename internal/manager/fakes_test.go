package manager

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/onroad-manager/internal/crashreport"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/logging"
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/registry"
	"github.com/nerrad567/onroad-manager/internal/status"
	"github.com/nerrad567/onroad-manager/internal/supervisor"
	"github.com/nerrad567/onroad-manager/internal/vehicle"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "debug", Format: "text", Output: "none"}, "test")
}

// fakeSupervisor records every request and treats desired processes as alive.
type fakeSupervisor struct {
	mu         sync.Mutex
	prepared   []string
	reconciles []map[string]bool
	stopAll    []bool
	stopped    []string
	running    map[string]bool
	desired    map[string]bool

	prepareErr  error
	panicOnCall int // panic on this Reconcile call (1-based); 0 never

	// events, when set, gets a "reconcile" entry per Reconcile call.
	events *[]string
}

func (f *fakeSupervisor) Prepare(_ context.Context, d registry.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepared = append(f.prepared, d.Name)
	return f.prepareErr
}

func (f *fakeSupervisor) Reconcile(_ context.Context, _ *registry.Registry, desired map[string]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciles = append(f.reconciles, maps.Clone(desired))
	if f.events != nil {
		*f.events = append(*f.events, "reconcile")
	}
	if f.panicOnCall > 0 && len(f.reconciles) == f.panicOnCall {
		panic("reconcile exploded")
	}
	f.running = maps.Clone(desired)
	f.desired = maps.Clone(desired)
	return nil
}

func (f *fakeSupervisor) StopAll(_ context.Context, block bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopAll = append(f.stopAll, block)
	f.running = nil
	f.desired = nil
	return nil
}

func (f *fakeSupervisor) Stop(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeSupervisor) StatusOf(d registry.Descriptor) supervisor.ProcessState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return supervisor.ProcessState{
		Name:            d.Name,
		Kind:            d.Kind.String(),
		Alive:           f.running[d.Name],
		ShouldBeRunning: f.desired[d.Name],
	}
}

func (f *fakeSupervisor) blockingStops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.stopAll {
		if b {
			n++
		}
	}
	return n
}

// scriptSource returns one scripted snapshot per poll and repeats the last.
type scriptSource struct {
	started []bool
	notCar  bool
	polls   int
	onPoll  func(n int) error
}

func (s *scriptSource) Poll(ctx context.Context, _ time.Duration) (vehicle.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return vehicle.Snapshot{}, err
	}
	s.polls++
	if s.onPoll != nil {
		if err := s.onPoll(s.polls); err != nil {
			return vehicle.Snapshot{}, err
		}
	}
	started := false
	if len(s.started) > 0 {
		started = s.started[min(s.polls, len(s.started))-1]
	}
	return vehicle.Snapshot{
		Device: vehicle.DeviceState{Started: started},
		Car:    vehicle.CarParams{NotCar: s.notCar},
		Fresh:  true,
	}, nil
}

// recordingStore logs clears, snapshots and onroad signal writes in order.
type recordingStore struct {
	params.Store
	name   string
	events *[]string
}

func (r *recordingStore) ClearAll(ctx context.Context, scope params.Scope) error {
	*r.events = append(*r.events, fmt.Sprintf("%s clear %s", r.name, scope))
	return r.Store.ClearAll(ctx, scope)
}

func (r *recordingStore) Snapshot(ctx context.Context) (params.View, error) {
	*r.events = append(*r.events, r.name+" snapshot")
	return r.Store.Snapshot(ctx)
}

func (r *recordingStore) PutBool(ctx context.Context, key string, value bool) error {
	if key == KeyIsOnroad {
		*r.events = append(*r.events, fmt.Sprintf("%s %s=%v", r.name, key, value))
	}
	return r.Store.PutBool(ctx, key, value)
}

type fakeRegistrar struct {
	dongleID string
	err      error
}

func (f fakeRegistrar) Register(context.Context) (string, error) {
	return f.dongleID, f.err
}

type fakeTracker struct {
	mu       sync.Mutex
	reports  []crashreport.Report
	removals int
}

func (f *fakeTracker) Capture(r crashreport.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeTracker) RemoveErrorLog() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals++
	return nil
}

func builtinTable(t *testing.T) *params.KeyTable {
	t.Helper()
	table, err := params.BuiltinKeyTable()
	if err != nil {
		t.Fatalf("BuiltinKeyTable() error = %v", err)
	}
	return table
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(
		registry.Daemon(registry.NameAthenad, "system.athena.manage_athenad", "AthenadPid"),
		registry.Native("camerad", "system/camerad", []string{"./camerad"}, registry.OnlyOnroad),
		registry.Interpreted("thermald", "system.thermald", registry.AlwaysRun),
		registry.Interpreted("updated", "system.updated", registry.OnlyOffroad),
		registry.Interpreted(registry.NameUploader, "system.loggerd.uploader", registry.AlwaysRun),
		registry.Native(registry.NameUI, "selfdrive/ui", []string{"./ui"}, registry.AlwaysRun),
	)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return reg
}

// fixture wires a Lifecycle to in-memory fakes.
type fixture struct {
	cfg       *config.Config
	table     *params.KeyTable
	primary   *params.MemoryStore
	storage   *params.MemoryStore
	tracking  *params.MemoryStore
	ephemeral *params.MemoryStore
	sup       *fakeSupervisor
	source    *scriptSource
	latest    *status.Latest
	tracker   *fakeTracker
	registrar fakeRegistrar
	notices   []string
	stderr    *strings.Builder
	reg       *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table := builtinTable(t)
	return &fixture{
		cfg: &config.Config{
			Device:  config.DeviceConfig{Type: "pc", PC: true},
			Manager: config.ManagerConfig{PollTimeoutMS: 10},
		},
		table:     table,
		primary:   params.NewMemoryStore(table),
		storage:   params.NewMemoryStore(table),
		tracking:  params.NewMemoryStore(table),
		ephemeral: params.NewMemoryStore(table),
		sup:       &fakeSupervisor{},
		source:    &scriptSource{},
		latest:    status.NewLatest(),
		tracker:   &fakeTracker{},
		registrar: fakeRegistrar{dongleID: "0123456789abcdef"},
		stderr:    &strings.Builder{},
		reg:       testRegistry(t),
	}
}

func (f *fixture) lifecycle(t *testing.T) *Lifecycle {
	t.Helper()
	m, err := New(Deps{
		Config:     f.cfg,
		RunID:      "run-test",
		Registry:   f.reg,
		Primary:    f.primary,
		Storage:    f.storage,
		Tracking:   f.tracking,
		Ephemeral:  f.ephemeral,
		Registrar:  f.registrar,
		Supervisor: f.sup,
		Source:     f.source,
		Publisher:  f.latest,
		Tracker:    f.tracker,
		Notify: func(_ context.Context, title, body string) error {
			f.notices = append(f.notices, title+"\n\n"+body)
			return nil
		},
		Logger: testLogger(),
		Stderr: f.stderr,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

// exitAfter sets DoShutdown on the given poll so the loop stops after that tick.
func (f *fixture) exitAfter(n int) {
	f.source.onPoll = func(poll int) error {
		if poll == n {
			return f.primary.PutBool(context.Background(), KeyDoShutdown, true)
		}
		return nil
	}
}
