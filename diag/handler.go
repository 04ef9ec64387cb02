package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Handler accumulates errors and notes across an evaluation pass without
// short-circuiting: the evaluator returns an error count rather than
// aborting, so a single pass can surface as many diagnostics as possible
// (§7). The outer control loop is responsible for stopping further passes
// once a pass reports any error.
type Handler struct {
	mu     sync.Mutex
	errs   []ErrorWithPos
	notes  []string
	out    io.Writer
	color  bool
	Logger *logrus.Logger
}

// NewHandler creates a Handler that writes formatted diagnostics to out
// (os.Stderr if nil). Colorized error:/note: prefixes are used when out is
// a terminal.
func NewHandler(out io.Writer) *Handler {
	if out == nil {
		out = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	useColor := false
	if f, ok := out.(*os.File); ok {
		useColor = color.NoColor == false && isTerminal(f)
	}
	return &Handler{out: out, color: useColor, Logger: log}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// HandleError records err. It never aborts: the
// caller is expected to keep evaluating and surface more errors in the
// same pass.
func (h *Handler) HandleError(err ErrorWithPos) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

// Note records a warning-level diagnostic. Notes never raise ErrorCount.
func (h *Handler) Note(format string, args ...interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notes = append(h.notes, fmt.Sprintf(format, args...))
}

// ErrorCount returns the number of errors recorded so far in this pass.
func (h *Handler) ErrorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

func (h *Handler) Errors() []ErrorWithPos {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ErrorWithPos, len(h.errs))
	copy(out, h.errs)
	return out
}

// Reset clears accumulated diagnostics before starting a new pass.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = nil
	h.notes = nil
}

// Flush writes every accumulated error and note to the handler's output,
// colorized when writing to a terminal.
func (h *Handler) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	errPrefix := "error:"
	notePrefix := "note:"
	if h.color {
		errPrefix = color.New(color.FgRed, color.Bold).Sprint("error:")
		notePrefix = color.New(color.FgYellow).Sprint("note:")
	}
	for _, e := range h.errs {
		fmt.Fprintf(h.out, "%s %v\n", errPrefix, e)
	}
	for _, n := range h.notes {
		fmt.Fprintf(h.out, "%s %s\n", notePrefix, n)
	}
}
