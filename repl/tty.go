package main

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/wharfterm/wharf/editor"
	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = fmt.Errorf("interrupted")

// Tty reads raw keystrokes from /dev/tty and drives a line editor.
// Reading from /dev/tty keeps the prompt working when stdout is redirected.
type Tty struct {
	file     *os.File
	oldState *term.State
}

// NewTty opens /dev/tty and switches to raw mode.
func NewTty() (*Tty, error) {
	file, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}

	old, err := term.MakeRaw(int(file.Fd()))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	return &Tty{file: file, oldState: old}, nil
}

// Close restores terminal state and closes the tty fd.
func (t *Tty) Close() {
	term.Restore(int(t.file.Fd()), t.oldState)
	t.file.Close()
}

// File returns the tty file for writing prompts/UI.
func (t *Tty) File() *os.File {
	return t.file
}

// ReadLine displays the prompt and reads one line through the editor.
// Returns io.EOF when the user presses Ctrl-D on an empty line.
func (t *Tty) ReadLine(prompt string, ed *editor.Editor) (string, error) {
	t.redraw(prompt, ed)

	for {
		key, err := t.readKey(len(ed.Text()) == 0)
		if err != nil {
			return "", err
		}
		if key == nil {
			continue
		}

		action, text := ed.Feed(*key)
		switch action {
		case editor.Submit:
			fmt.Fprintf(t.file, "\r\n")
			return text, nil
		case editor.Redraw:
			t.redraw(prompt, ed)
		}
	}
}

// readKey decodes one keystroke into an editor input unit. A nil key with a
// nil error means the input was consumed without effect.
func (t *Tty) readKey(bufEmpty bool) (*editor.Key, error) {
	var b [1]byte
	if _, err := t.file.Read(b[:]); err != nil {
		return nil, err
	}

	switch b[0] {
	case 3: // Ctrl-C
		fmt.Fprintf(t.file, "\r\n")
		return nil, ErrInterrupt

	case 4: // Ctrl-D
		if bufEmpty {
			fmt.Fprintf(t.file, "\r\n")
			return nil, io.EOF
		}
		return nil, nil

	case 13, 10:
		return &editor.Key{Kind: editor.KeyEnter}, nil

	case 127, 8: // Backspace / Ctrl-H
		return &editor.Key{Kind: editor.KeyBackspace}, nil

	case 1: // Ctrl-A
		return &editor.Key{Kind: editor.KeyHome}, nil

	case 5: // Ctrl-E
		return &editor.Key{Kind: editor.KeyEnd}, nil

	case 21: // Ctrl-U
		return &editor.Key{Kind: editor.KeyKillLine}, nil

	case 27:
		return t.readEscape()

	default:
		if b[0] < 32 {
			return nil, nil
		}
		r, err := t.readRune(b[0])
		if err != nil {
			return nil, err
		}
		key := editor.Rune(r)
		return &key, nil
	}
}

func (t *Tty) readEscape() (*editor.Key, error) {
	var esc [2]byte
	if n, _ := t.file.Read(esc[:1]); n == 0 || esc[0] != '[' {
		return nil, nil
	}
	if n, _ := t.file.Read(esc[1:2]); n == 0 {
		return nil, nil
	}

	switch esc[1] {
	case 'A':
		return &editor.Key{Kind: editor.KeyHistoryPrev}, nil
	case 'B':
		return &editor.Key{Kind: editor.KeyHistoryNext}, nil
	case 'C':
		return &editor.Key{Kind: editor.KeyRight}, nil
	case 'D':
		return &editor.Key{Kind: editor.KeyLeft}, nil
	case 'H':
		return &editor.Key{Kind: editor.KeyHome}, nil
	case 'F':
		return &editor.Key{Kind: editor.KeyEnd}, nil
	case '3': // Delete key: \x1b[3~
		t.readTilde()
		return &editor.Key{Kind: editor.KeyDelete}, nil
	case '1': // Home: \x1b[1~
		t.readTilde()
		return &editor.Key{Kind: editor.KeyHome}, nil
	case '4': // End: \x1b[4~
		t.readTilde()
		return &editor.Key{Kind: editor.KeyEnd}, nil
	}
	return nil, nil
}

func (t *Tty) readTilde() {
	var b [1]byte
	t.file.Read(b[:])
}

// readRune completes a UTF-8 sequence from its lead byte.
func (t *Tty) readRune(lead byte) (rune, error) {
	if lead < 0xC0 {
		return rune(lead), nil
	}
	size := 2
	if lead >= 0xF0 {
		size = 4
	} else if lead >= 0xE0 {
		size = 3
	}

	buf := make([]byte, size)
	buf[0] = lead
	if _, err := io.ReadFull(t.file, buf[1:]); err != nil {
		return 0, err
	}
	r, _ := utf8.DecodeRune(buf)
	return r, nil
}

// redraw clears the current line and repaints prompt + buffer with cursor.
func (t *Tty) redraw(prompt string, ed *editor.Editor) {
	// \r = carriage return, \x1b[K = clear to end of line
	fmt.Fprintf(t.file, "\r\x1b[K%s%s", prompt, ed.Text())

	tail := utf8.RuneCountInString(ed.Text()) - ed.Pos()
	if tail > 0 {
		fmt.Fprintf(t.file, "\x1b[%dD", tail)
	}
}
