package crashreport

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrorLogName is the file a crash is written to inside the crash directory.
// The UI shows it offroad; the manager removes it on the next onroad edge.
const ErrorLogName = "error.txt"

// EventWriter records crash events in telemetry.
type EventWriter interface {
	WriteEvent(kind, runID, message string, extra map[string]string)
}

// Report describes one captured failure.
type Report struct {
	Kind    string
	Err     error
	Stack   []byte
	Context map[string]string
}

// Tracker captures failures to the local error log and telemetry.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	dir    string
	runID  string
	events EventWriter
	now    func() time.Time
}

// New creates a tracker writing into dir.
func New(dir, runID string) *Tracker {
	return &Tracker{
		dir:   dir,
		runID: runID,
		now:   time.Now,
	}
}

// SetEventWriter attaches a telemetry sink. Nil detaches it.
func (t *Tracker) SetEventWriter(w EventWriter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = w
}

// ErrorLogPath returns the path of the error log.
func (t *Tracker) ErrorLogPath() string {
	return filepath.Join(t.dir, ErrorLogName)
}

// Capture writes the report to the error log and sends a telemetry event.
//
// Parameters:
//   - r: Failure to record
//
// Returns:
//   - error: If the error log cannot be written; telemetry is best effort
func (t *Tracker) Capture(r Report) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	message := "unknown error"
	if r.Err != nil {
		message = r.Err.Error()
	}
	kind := r.Kind
	if kind == "" {
		kind = "crash"
	}

	if t.events != nil {
		t.events.WriteEvent(kind, t.runID, message, r.Context)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s run=%s\n", t.now().UTC().Format(time.RFC3339), kind, t.runID)
	b.WriteString(message)
	b.WriteString("\n")
	if len(r.Stack) > 0 {
		b.WriteString("\n")
		b.Write(r.Stack)
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("creating crash dir: %w", err)
	}
	if err := os.WriteFile(t.ErrorLogPath(), []byte(b.String()), 0o644); err != nil { //nolint:gosec // G306: read by the UI process
		return fmt.Errorf("writing error log: %w", err)
	}
	return nil
}

// RemoveErrorLog deletes the error log from a previous run.
// A missing file is not an error.
func (t *Tracker) RemoveErrorLog() error {
	err := os.Remove(t.ErrorLogPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing error log: %w", err)
	}
	return nil
}
