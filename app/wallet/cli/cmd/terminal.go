package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// terminal implements the session user interface over a reader and a
// writer. Questions are answered with a line starting with y or Y.
type terminal struct {
	out io.Writer

	mu       sync.Mutex
	lines    chan string
	shut     chan struct{}
	shutOnce sync.Once
	done     chan struct{}
}

// newTerminal starts reading lines from in. The caller must call close
// when done so the reader stops once its current read returns.
func newTerminal(in io.Reader, out io.Writer) *terminal {
	t := terminal{
		out:   out,
		lines: make(chan string),
		shut:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer close(t.lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case t.lines <- scanner.Text():
			case <-t.shut:
				return
			}
		}
	}()

	return &t
}

// close releases the line reader. Lines nobody asked for are dropped.
func (t *terminal) close() {
	t.shutOnce.Do(func() {
		close(t.shut)
	})
}

// Alert implements the session.UI interface.
func (t *terminal) Alert(msg string) {
	t.printf("ALERT: %s\n", msg)
}

// Reload implements the session.UI interface.
func (t *terminal) Reload() {
	t.printf("session reset, connect again to continue\n")
}

// Confirm implements the session.UI interface. A closed input or a
// cancelled context declines.
func (t *terminal) Confirm(ctx context.Context, msg string) bool {
	t.printf("%s [y/N]: ", msg)

	select {
	case line, ok := <-t.lines:
		if !ok {
			return false
		}
		return strings.HasPrefix(strings.TrimSpace(strings.ToLower(line)), "y")

	case <-ctx.Done():
		t.printf("\n")
		return false
	}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, format, args...)
}
