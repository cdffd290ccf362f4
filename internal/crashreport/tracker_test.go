package crashreport

import (
	"errors"
	"os"
	"strings"
	"testing"
)

type fakeEvents struct {
	kinds    []string
	messages []string
	runIDs   []string
}

func (f *fakeEvents) WriteEvent(kind, runID, message string, _ map[string]string) {
	f.kinds = append(f.kinds, kind)
	f.runIDs = append(f.runIDs, runID)
	f.messages = append(f.messages, message)
}

func TestTracker_Capture(t *testing.T) {
	dir := t.TempDir()
	tracker := New(dir+"/crashes", "run-1")
	events := &fakeEvents{}
	tracker.SetEventWriter(events)

	err := tracker.Capture(Report{
		Kind:  "loop_fault",
		Err:   errors.New("boom"),
		Stack: []byte("goroutine 1 [running]:"),
	})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	data, err := os.ReadFile(tracker.ErrorLogPath())
	if err != nil {
		t.Fatalf("reading error log: %v", err)
	}
	text := string(data)
	for _, want := range []string{"loop_fault", "run=run-1", "boom", "goroutine 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("error log missing %q:\n%s", want, text)
		}
	}

	if len(events.kinds) != 1 || events.kinds[0] != "loop_fault" || events.messages[0] != "boom" || events.runIDs[0] != "run-1" {
		t.Errorf("events = %+v", events)
	}
}

func TestTracker_CaptureDefaults(t *testing.T) {
	tracker := New(t.TempDir(), "run-2")
	if err := tracker.Capture(Report{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(tracker.ErrorLogPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "crash") || !strings.Contains(string(data), "unknown error") {
		t.Errorf("error log = %q", data)
	}
}

func TestTracker_RemoveErrorLog(t *testing.T) {
	tracker := New(t.TempDir(), "run-3")

	// Missing file.
	if err := tracker.RemoveErrorLog(); err != nil {
		t.Fatalf("RemoveErrorLog() on missing file error = %v", err)
	}

	if err := tracker.Capture(Report{Err: errors.New("x")}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.RemoveErrorLog(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(tracker.ErrorLogPath()); !os.IsNotExist(err) {
		t.Errorf("error log still present: %v", err)
	}
}
