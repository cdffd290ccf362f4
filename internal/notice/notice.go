package notice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// FailedToStart is the title shown when bootstrap fails.
const FailedToStart = "Manager failed to start"

// traceLines is how many trailing lines of a failure trace are shown.
const traceLines = 3

// Show displays title and body and blocks until the operator dismisses it
// or ctx is cancelled. When in is not a terminal the text is written to out
// and Show returns at once.
//
// Parameters:
//   - ctx: Cancels the window
//   - title: Heading
//   - body: Message text
//   - in: Keyboard input, usually os.Stdin
//   - out: Screen, usually os.Stdout
//
// Returns:
//   - error: If the terminal program fails
func Show(ctx context.Context, title, body string, in io.Reader, out io.Writer) error {
	if !isTerminal(in) {
		_, err := fmt.Fprintf(out, "%s\n\n%s\n", title, body)
		return err
	}

	p := tea.NewProgram(newModel(title, body),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("notice: %w", err)
	}
	return nil
}

// Tail returns the last n non-empty lines of text.
func Tail(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		kept = append(kept, lines[i])
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}

// ErrorTrace lays out the wrap chain of err one level per line, outermost
// first, with each line stripped of the text it wraps. The root cause is the
// last line.
func ErrorTrace(err error) string {
	var lines []string
	for err != nil {
		msg := err.Error()
		next := errors.Unwrap(err)
		if next != nil {
			if trimmed, ok := strings.CutSuffix(msg, ": "+next.Error()); ok {
				msg = trimmed
			}
		}
		lines = append(lines, msg)
		err = next
	}
	return strings.Join(lines, "\n")
}

// FailureBody formats the trailing lines of a failure trace for display.
func FailureBody(trace string) string {
	return Tail(trace, traceLines)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
