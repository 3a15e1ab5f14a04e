package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/wharfterm/wharf/assistant"
	"github.com/wharfterm/wharf/correlate"
	"golang.org/x/term"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (needed because raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err // report original length to caller
}

// display serializes all screen output. Resolved commands and assistant
// messages arrive from the read loop while the prompt owns the cursor, so
// every block clears the current line first.
type display struct {
	mu  sync.Mutex
	out io.Writer
}

func newDisplay(out io.Writer) *display {
	return &display{out: out}
}

func (d *display) block(f func(w io.Writer)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "\r\x1b[K")
	f(d.out)
}

func (d *display) printf(format string, args ...any) {
	d.block(func(w io.Writer) {
		fmt.Fprintf(w, format, args...)
	})
}

// CommandSucceeded prints stdout before stderr.
func (d *display) CommandSucceeded(cmd correlate.Command) {
	d.block(func(w io.Writer) {
		fmt.Fprintf(w, "[%d] $ %s\n", cmd.SessionID, cmd.Text)
		if cmd.Stdout != "" {
			io.WriteString(w, ensureNewline(cmd.Stdout))
		}
		if cmd.Stderr != "" {
			io.WriteString(w, ensureNewline(cmd.Stderr))
		}
		if cmd.WorkingDirectory != "" {
			fmt.Fprintf(w, "cwd: %s\n", cmd.WorkingDirectory)
		}
	})
}

func (d *display) CommandFailed(cmd correlate.Command) {
	d.block(func(w io.Writer) {
		fmt.Fprintf(w, "[%d] $ %s\n", cmd.SessionID, cmd.Text)
		if cmd.Stdout != "" {
			io.WriteString(w, ensureNewline(cmd.Stdout))
		}
		if cmd.Stderr != "" {
			io.WriteString(w, ensureNewline(cmd.Stderr))
		}
		if cmd.Err != "" {
			fmt.Fprintf(w, "error: %s\n", cmd.Err)
		}
	})
}

// assistantMessage prints one appended conversation message.
func (d *display) assistantMessage(msg assistant.Message) {
	label := "you"
	if msg.Role == assistant.RoleAssistant {
		label = "ai"
	}
	d.block(func(w io.Writer) {
		for _, line := range strings.Split(strings.TrimRight(msg.Content, "\n"), "\n") {
			fmt.Fprintf(w, "%s | %s\n", label, line)
		}
	})
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
