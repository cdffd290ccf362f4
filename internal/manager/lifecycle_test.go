package manager

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/onroad-manager/internal/hardware"
	"github.com/nerrad567/onroad-manager/internal/identity"
	"github.com/nerrad567/onroad-manager/internal/registry"
)

func TestNew_MissingDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(Deps{}) error = nil, want missing dependency")
	}
}

func TestBootstrap_DefaultFillFromEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.lifecycle(t)

	if err := m.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	versionKeys := map[string]bool{
		"Version": true, "TermsVersion": true, "TrainingVersion": true,
		"GitCommit": true, "GitCommitDate": true, "GitBranch": true, "GitRemote": true,
	}
	for _, d := range f.table.Defaults() {
		if versionKeys[d.Key] {
			continue
		}
		got, ok, err := f.primary.Get(ctx, d.Key)
		if err != nil || !ok {
			t.Errorf("%s unset after fill (err %v)", d.Key, err)
			continue
		}
		if string(got) != string(d.Value) {
			t.Errorf("%s = %q, want default %q", d.Key, got, d.Value)
		}
	}
	if reset, _ := f.primary.GetBool(ctx, "DoToggleReset"); reset {
		t.Error("DoToggleReset still set")
	}
	if _, ok, _ := f.primary.Get(ctx, KeyLastUpdateTime); ok {
		t.Error("LastUpdateTime written on PC")
	}
}

func TestBootstrap_ForceResetRestoresShadow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	defaults := f.table.Defaults()
	if len(defaults) == 0 {
		t.Fatal("builtin table has no defaults")
	}
	key := defaults[0].Key

	if err := f.primary.Put(ctx, key, []byte("live")); err != nil {
		t.Fatal(err)
	}
	if err := f.storage.Put(ctx, key, []byte("saved")); err != nil {
		t.Fatal(err)
	}
	if err := f.primary.PutBool(ctx, "DoToggleReset", true); err != nil {
		t.Fatal(err)
	}

	if err := f.lifecycle(t).Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	got, _, _ := f.primary.Get(ctx, key)
	if string(got) != "saved" {
		t.Errorf("%s = %q, want shadow value %q", key, got, "saved")
	}
	if reset, _ := f.primary.GetBool(ctx, "DoToggleReset"); reset {
		t.Error("DoToggleReset still set after fill")
	}
}

func TestBootstrap_ScopeResetAndRecordFront(t *testing.T) {
	f := newFixture(t)
	f.cfg.Device.PC = false
	ctx := context.Background()

	if err := f.primary.PutBool(ctx, KeyDoReboot, true); err != nil {
		t.Fatal(err)
	}
	if err := f.primary.PutBool(ctx, KeyRecordFrontLock, true); err != nil {
		t.Fatal(err)
	}

	if err := f.lifecycle(t).Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if on, _ := f.primary.GetBool(ctx, KeyDoReboot); on {
		t.Error("DoReboot survived the manager start clear")
	}
	if on, _ := f.primary.GetBool(ctx, KeyRecordFront); !on {
		t.Error("RecordFront not forced by RecordFrontLock")
	}
	if v, ok, _ := f.primary.Get(ctx, KeyLastUpdateTime); !ok || len(v) == 0 {
		t.Error("LastUpdateTime not written off PC")
	}
	if v, _, _ := f.primary.Get(ctx, "TermsVersion"); string(v) != identity.TermsVersion {
		t.Errorf("TermsVersion = %q", v)
	}
}

func TestBootstrap_PreparesEveryProcess(t *testing.T) {
	f := newFixture(t)
	if err := f.lifecycle(t).Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sup.prepared) != f.reg.Len() {
		t.Errorf("prepared %d processes, want %d", len(f.sup.prepared), f.reg.Len())
	}
	if len(f.sup.reconciles) != 0 {
		t.Error("bootstrap started processes")
	}
}

func TestBootstrap_Fatal(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name      string
		mutate    func(f *fixture)
		wantPhase string
		wantCause error
	}{
		{
			name:      "registration",
			mutate:    func(f *fixture) { f.registrar.err = identity.ErrMissingKey },
			wantPhase: PhaseRegistration,
			wantCause: identity.ErrMissingKey,
		},
		{
			name:      "prepare",
			mutate:    func(f *fixture) { f.sup.prepareErr = errBoom },
			wantPhase: PhasePrepare,
			wantCause: errBoom,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)
			m := f.lifecycle(t)

			err := m.Execute(context.Background())

			var fatal *FatalBootstrapError
			if !errors.As(err, &fatal) {
				t.Fatalf("Execute() error = %v, want FatalBootstrapError", err)
			}
			if fatal.Phase != tt.wantPhase {
				t.Errorf("Phase = %q, want %q", fatal.Phase, tt.wantPhase)
			}
			if len(f.sup.stopAll) != 0 {
				t.Error("drain ran after a bootstrap failure")
			}
			if len(f.sup.stopped) != 1 || f.sup.stopped[0] != registry.NameUI {
				t.Errorf("stopped = %v, want [ui]", f.sup.stopped)
			}
			if len(f.notices) != 1 || !strings.HasPrefix(f.notices[0], "Manager failed to start\n\n") {
				t.Fatalf("notices = %q", f.notices)
			}
			body := strings.SplitN(f.notices[0], "\n\n", 2)[1]
			lines := strings.Split(body, "\n")
			if len(lines) > 3 {
				t.Errorf("notice body has %d lines, want at most 3", len(lines))
			}
			if !strings.Contains(lines[0], "bootstrap failed during "+tt.wantPhase) {
				t.Errorf("notice body %q does not name phase %q", body, tt.wantPhase)
			}
			if last := lines[len(lines)-1]; last != tt.wantCause.Error() {
				t.Errorf("notice ends with %q, want cause %q", last, tt.wantCause)
			}
			if strings.Contains(body, "goroutine") || strings.Contains(body, ".go:") {
				t.Errorf("notice body carries a stack: %q", body)
			}
			if m.State() != StateBootstrapping {
				t.Errorf("State() = %s, want bootstrapping", m.State())
			}
		})
	}
}

func TestBootstrap_RegistrationFailureSkipsLaterPhases(t *testing.T) {
	f := newFixture(t)
	f.registrar.err = identity.ErrNoSerial
	if err := f.lifecycle(t).Bootstrap(context.Background()); err == nil {
		t.Fatal("Bootstrap() error = nil")
	}
	if len(f.sup.prepared) != 0 {
		t.Errorf("prepared %v after registration failure", f.sup.prepared)
	}
}

func TestIgnoreSet_ImmutableAfterBootstrap(t *testing.T) {
	f := newFixture(t)
	f.cfg.Manager.Block = "thermald"
	f.exitAfter(4)
	m := f.lifecycle(t)

	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.cfg.Manager.Block = "camerad,updated"
	t.Setenv("BLOCK", "camerad,updated")

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if names := m.Ignore().Names(); len(names) != 1 || names[0] != "thermald" {
		t.Errorf("Ignore() = %v, want [thermald]", names)
	}

	// Prime plus four ticks, all offroad: every request is identical.
	if len(f.sup.reconciles) != 5 {
		t.Fatalf("reconciles = %d, want 5", len(f.sup.reconciles))
	}
	first := f.sup.reconciles[0]
	for i, got := range f.sup.reconciles {
		if got["thermald"] {
			t.Errorf("reconcile %d requested blocked thermald", i)
		}
		if !got["updated"] {
			t.Errorf("reconcile %d dropped updated after BLOCK changed", i)
		}
		if len(got) != len(first) {
			t.Errorf("reconcile %d = %v, want %v", i, got, first)
		}
	}
}

func TestScenario_UnregisteredDevice(t *testing.T) {
	f := newFixture(t)
	f.registrar.dongleID = identity.UnregisteredDongleID
	f.source.started = []bool{false, true, true, false}
	f.exitAfter(4)
	m := f.lifecycle(t)

	if err := m.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(f.sup.reconciles) == 0 {
		t.Fatal("no reconcile requests")
	}
	for i, desired := range f.sup.reconciles {
		if desired[registry.NameAthenad] || desired[registry.NameUploader] {
			t.Errorf("reconcile %d requested %v on an unregistered device", i, desired)
		}
		if !desired["thermald"] {
			t.Errorf("reconcile %d: always-run thermald missing", i)
		}
	}
}

func TestScenario_FaultDuringLoop(t *testing.T) {
	t.Run("panic", func(t *testing.T) {
		f := newFixture(t)
		f.sup.panicOnCall = 3 // Prime, tick 1, then tick 2 panics
		m := f.lifecycle(t)

		err := m.Execute(context.Background())

		var fault *LoopFault
		if !errors.As(err, &fault) {
			t.Fatalf("Execute() error = %v, want LoopFault", err)
		}
		if len(fault.Stack) == 0 {
			t.Error("LoopFault has no stack for a panic")
		}
		assertDrainedOnce(t, f, m)
		if len(f.tracker.reports) != 1 || f.tracker.reports[0].Kind != "loop_fault" {
			t.Errorf("tracker reports = %+v", f.tracker.reports)
		}
		if !strings.Contains(f.stderr.String(), "reconcile exploded") {
			t.Errorf("stderr = %q, want the panic", f.stderr.String())
		}
	})

	t.Run("error", func(t *testing.T) {
		f := newFixture(t)
		errPoll := errors.New("bus gone")
		f.source.onPoll = func(n int) error {
			if n == 2 {
				return errPoll
			}
			return nil
		}
		m := f.lifecycle(t)

		err := m.Execute(context.Background())
		if !errors.Is(err, errPoll) {
			t.Fatalf("Execute() error = %v, want errPoll", err)
		}
		assertDrainedOnce(t, f, m)
	})
}

func assertDrainedOnce(t *testing.T, f *fixture, m *Lifecycle) {
	t.Helper()
	if got := f.sup.blockingStops(); got != 1 {
		t.Errorf("blocking StopAll calls = %d, want 1", got)
	}
	if len(f.sup.stopAll) != 2 || f.sup.stopAll[0] {
		t.Errorf("StopAll sequence = %v, want [false true]", f.sup.stopAll)
	}
	if m.State() != StateTerminated {
		t.Errorf("State() = %s, want terminated", m.State())
	}
}

func TestRun_SignalIsGraceful(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.source.onPoll = func(n int) error {
		if n == 3 {
			cancel()
		}
		return nil
	}
	m := f.lifecycle(t)

	if err := m.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v, want nil for a signal", err)
	}
	assertDrainedOnce(t, f, m)
	if len(f.tracker.reports) != 0 {
		t.Errorf("signal captured as a fault: %+v", f.tracker.reports)
	}
}

func TestExecute_SignalSkipsTerminalAction(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.source.onPoll = func(n int) error {
		if n != 3 {
			return nil
		}
		if err := f.primary.PutBool(context.Background(), KeyDoReboot, true); err != nil {
			return err
		}
		cancel()
		return ctx.Err()
	}
	term := &fakeTerminal{}
	m := f.lifecycle(t)
	m.deps.Terminal = term

	if err := m.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v, want nil for a signal", err)
	}
	assertDrainedOnce(t, f, m)
	if len(term.actions) != 0 {
		t.Errorf("actions = %v after a signal, want none", term.actions)
	}
	if m.State() != StateTerminated {
		t.Errorf("State() = %s, want terminated", m.State())
	}
}

func TestDrain_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.lifecycle(t)

	for i := range 2 {
		if err := m.Drain(ctx); err != nil {
			t.Errorf("Drain() #%d error = %v", i, err)
		}
	}
	if got := f.sup.blockingStops(); got != 1 {
		t.Errorf("blocking StopAll calls = %d, want 1", got)
	}
	for _, d := range f.reg.All() {
		if st := f.sup.StatusOf(d); st.Alive || st.ShouldBeRunning {
			t.Errorf("%s after drain: %+v", d.Name, st)
		}
	}
}

type fakeTerminal struct {
	actions []hardware.Action
}

func (f *fakeTerminal) Do(_ context.Context, a hardware.Action) error {
	f.actions = append(f.actions, a)
	return nil
}

func TestTerminalAction(t *testing.T) {
	tests := []struct {
		name   string
		set    []string
		forked bool
		want   []hardware.Action
	}{
		{name: "nothing set", want: nil},
		{name: "shutdown", set: []string{KeyDoShutdown}, want: []hardware.Action{hardware.ActionShutdown}},
		{name: "reboot beats shutdown", set: []string{KeyDoShutdown, KeyDoReboot}, want: []hardware.Action{hardware.ActionReboot}},
		{name: "uninstall beats all", set: []string{KeyDoShutdown, KeyDoReboot, KeyDoUninstall}, want: []hardware.Action{hardware.ActionUninstall}},
		{name: "forked skips action", set: []string{KeyDoReboot}, forked: true, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.Manager.Forked = tt.forked
			ctx := context.Background()
			term := &fakeTerminal{}

			m := f.lifecycle(t)
			m.deps.Terminal = term
			for _, k := range tt.set {
				if err := f.primary.PutBool(ctx, k, true); err != nil {
					t.Fatal(err)
				}
			}

			if err := m.Finish(ctx); err != nil {
				t.Fatalf("Finish() error = %v", err)
			}
			if len(term.actions) != len(tt.want) || (len(tt.want) > 0 && term.actions[0] != tt.want[0]) {
				t.Errorf("actions = %v, want %v", term.actions, tt.want)
			}
		})
	}
}

func TestExecute_PrepareOnly(t *testing.T) {
	f := newFixture(t)
	f.cfg.Manager.PrepareOnly = true
	m := f.lifecycle(t)

	if err := m.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if f.source.polls != 0 || len(f.sup.reconciles) != 0 {
		t.Error("loop ran with prepare only")
	}
	if len(f.sup.stopAll) != 0 {
		t.Error("drain ran with prepare only")
	}
	if m.State() != StateTerminated {
		t.Errorf("State() = %s", m.State())
	}
}

func TestExecute_ExitFlagRunsTerminalAction(t *testing.T) {
	f := newFixture(t)
	f.exitAfter(2)
	term := &fakeTerminal{}
	m := f.lifecycle(t)
	m.deps.Terminal = term

	if err := m.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	assertDrainedOnce(t, f, m)
	if len(term.actions) != 1 || term.actions[0] != hardware.ActionShutdown {
		t.Errorf("actions = %v, want [shutdown]", term.actions)
	}
	reason, _, _ := f.primary.Get(context.Background(), KeyLastManagerExitReason)
	if !strings.HasPrefix(string(reason), KeyDoShutdown+" ") {
		t.Errorf("LastManagerExitReason = %q", reason)
	}
}

func TestExecute_UninstallReasonMatchesAction(t *testing.T) {
	f := newFixture(t)
	f.source.onPoll = func(poll int) error {
		if poll != 2 {
			return nil
		}
		ctx := context.Background()
		if err := f.primary.PutBool(ctx, KeyDoUninstall, true); err != nil {
			return err
		}
		return f.primary.PutBool(ctx, KeyDoReboot, true)
	}
	term := &fakeTerminal{}
	m := f.lifecycle(t)
	m.deps.Terminal = term

	if err := m.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(term.actions) != 1 || term.actions[0] != hardware.ActionUninstall {
		t.Errorf("actions = %v, want [uninstall]", term.actions)
	}
	reason, _, _ := f.primary.Get(context.Background(), KeyLastManagerExitReason)
	if !strings.HasPrefix(string(reason), KeyDoUninstall+" ") {
		t.Errorf("LastManagerExitReason = %q, want %s first", reason, KeyDoUninstall)
	}
}

func TestRunState(t *testing.T) {
	var sm stateMachine
	if sm.Current() != StateBootstrapping {
		t.Fatalf("initial state = %s", sm.Current())
	}
	if err := sm.Transition(StateRunning); err != nil {
		t.Fatal(err)
	}
	if err := sm.Transition(StateBootstrapping); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("backwards Transition() error = %v, want ErrInvalidTransition", err)
	}
	if err := sm.Transition(StateRunning); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("repeated Transition() error = %v, want ErrInvalidTransition", err)
	}
	if sm.Current() != StateRunning {
		t.Errorf("state changed by a rejected transition: %s", sm.Current())
	}
	if err := sm.Transition(StateTerminated); err != nil {
		t.Errorf("skip to terminated error = %v", err)
	}
}
