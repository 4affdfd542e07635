package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal renders engine output as plain text. It is safe for use from
// the engine's request goroutines.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	midLine bool
}

// NewTerminal creates a terminal surface writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Status prints a progress line such as "Running tool: grep".
func (t *Terminal) Status(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.breakLine()
	fmt.Fprintf(t.out, "[%s]\n", msg)
}

// Token prints a streamed token as is.
func (t *Terminal) Token(token string) {
	if token == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.out, token)
	t.midLine = !strings.HasSuffix(token, "\n")
}

// Error prints a request failure.
func (t *Terminal) Error(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.breakLine()
	fmt.Fprintf(t.out, "Error: %v\n", err)
}

// Finish ends the current turn. A fresh finish marks a new session.
func (t *Terminal) Finish(fresh bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.breakLine()
	if fresh {
		fmt.Fprintln(t.out, "--- new session ---")
	}
}

func (t *Terminal) breakLine() {
	if t.midLine {
		io.WriteString(t.out, "\n")
		t.midLine = false
	}
}

// lockedWriter serializes writes from the REPL and request goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLockedWriter(w io.Writer) io.Writer {
	if lw, ok := w.(*lockedWriter); ok {
		return lw
	}
	return &lockedWriter{w: w}
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
