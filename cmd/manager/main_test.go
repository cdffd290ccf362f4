package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/mqtt"
	"github.com/nerrad567/onroad-manager/internal/manager"
	"github.com/nerrad567/onroad-manager/internal/notice"
)

// writeTestConfig writes a config whose params partitions live under a temp
// dir. extra is appended as further top-level YAML.
func writeTestConfig(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	content := `
params:
  primary:
    path: "` + filepath.Join(dir, "params.db") + `"
  storage:
    path: "` + filepath.Join(dir, "persist.db") + `"
  tracking:
    path: "` + filepath.Join(dir, "tracking.db") + `"
maintenance:
  enabled: false
api:
  enabled: false
logging:
  output: "none"
` + strings.Join(extra, "\n")
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// noticeRecorder collects startup failure notices instead of showing them.
type noticeRecorder struct {
	notices []string
}

func (r *noticeRecorder) notify(_ context.Context, title, body string) error {
	r.notices = append(r.notices, title+"\n\n"+body)
	return nil
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &noticeRecorder{}
	err := run(ctx, runOptions{ConfigPath: "/nonexistent/path/config.yaml", Notify: rec.notify})
	var fatal *manager.FatalBootstrapError
	if !errors.As(err, &fatal) || fatal.Phase != phaseConfig {
		t.Fatalf("run() error = %v, want FatalBootstrapError in phase %q", err, phaseConfig)
	}
	if len(rec.notices) != 1 || !strings.HasPrefix(rec.notices[0], notice.FailedToStart+"\n\n") {
		t.Fatalf("notices = %q, want one failure notice", rec.notices)
	}
	if !strings.Contains(rec.notices[0], "/nonexistent/path/config.yaml") {
		t.Errorf("notice = %q, want the missing file named", rec.notices[0])
	}
}

func TestRun_CancelledSkipsNotice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &noticeRecorder{}
	if err := run(ctx, runOptions{ConfigPath: "/nonexistent/path/config.yaml", Notify: rec.notify}); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if len(rec.notices) != 0 {
		t.Errorf("notices = %q after cancel, want none", rec.notices)
	}
}

func TestRun_UnreachableBrokerShowsNotice(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the MQTT connect timeout")
	}

	// Reserve a port and release it so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	path := writeTestConfig(t, fmt.Sprintf(`mqtt:
  broker:
    host: "127.0.0.1"
    port: %d
`, port))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec := &noticeRecorder{}
	err = run(ctx, runOptions{ConfigPath: path, Notify: rec.notify})
	var fatal *manager.FatalBootstrapError
	if !errors.As(err, &fatal) || fatal.Phase != phaseBroker {
		t.Fatalf("run() error = %v, want FatalBootstrapError in phase %q", err, phaseBroker)
	}
	if !errors.Is(err, mqtt.ErrConnectionFailed) {
		t.Errorf("run() error = %v, want mqtt.ErrConnectionFailed", err)
	}
	if len(rec.notices) != 1 {
		t.Fatalf("notices = %q, want one", rec.notices)
	}
	if !strings.Contains(rec.notices[0], mqtt.ErrConnectionFailed.Error()) {
		t.Errorf("notice = %q, want the broker failure", rec.notices[0])
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("MANAGER_CONFIG", "")
	if got := configPath(""); got != defaultConfigPath {
		t.Errorf("configPath() = %q, want default", got)
	}

	t.Setenv("MANAGER_CONFIG", "/etc/manager.yaml")
	if got := configPath(""); got != "/etc/manager.yaml" {
		t.Errorf("configPath() = %q, want env value", got)
	}
	if got := configPath("/tmp/flag.yaml"); got != "/tmp/flag.yaml" {
		t.Errorf("configPath(flag) = %q, want flag value", got)
	}
}

func TestBuildInfo(t *testing.T) {
	oldBranch, oldDirty := branch, dirty
	t.Cleanup(func() { branch, dirty = oldBranch, oldDirty })

	branch, dirty = "release3", "true"
	b := buildInfo()
	if b.GitBranch != "release3" || !b.Dirty {
		t.Errorf("buildInfo() = %+v", b)
	}

	dirty = "not-a-bool"
	if buildInfo().Dirty {
		t.Error("unparseable dirty flag should read as false")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "onroad-manager "+version) || !strings.Contains(out, "branch:") {
		t.Errorf("output = %q", out)
	}
}

func TestParamsCommands(t *testing.T) {
	cfg := writeTestConfig(t)

	if _, err := execute(t, "-c", cfg, "params", "put", "DongleId", "abc123"); err != nil {
		t.Fatalf("params put: %v", err)
	}

	out, err := execute(t, "-c", cfg, "params", "get", "DongleId")
	if err != nil {
		t.Fatalf("params get: %v", err)
	}
	if strings.TrimSpace(out) != "abc123" {
		t.Errorf("params get = %q, want abc123", out)
	}

	out, err = execute(t, "-c", cfg, "params", "get")
	if err != nil {
		t.Fatalf("params get (all): %v", err)
	}
	if !strings.Contains(out, "DongleId=abc123") {
		t.Errorf("params get (all) = %q", out)
	}

	if _, err := execute(t, "-c", cfg, "params", "clear", "DongleId"); err != nil {
		t.Fatalf("params clear: %v", err)
	}
	if _, err := execute(t, "-c", cfg, "params", "get", "DongleId"); !errors.Is(err, errNotSet) {
		t.Errorf("get after clear error = %v, want errNotSet", err)
	}
}

func TestParamsCommands_Errors(t *testing.T) {
	cfg := writeTestConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"params", "put", "NoSuchKey", "1"}},
		{"clear nothing", []string{"params", "clear"}},
		{"clear key and scope", []string{"params", "clear", "DongleId", "--scope", "persistent"}},
		{"unknown scope", []string{"params", "clear", "--scope", "sometimes"}},
		{"put missing value", []string{"params", "put", "DongleId"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, append([]string{"-c", cfg}, tt.args...)...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
