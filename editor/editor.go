// Package editor implements the line-editing state machine for the terminal
// prompt: buffer edits, cursor movement, and history recall. It is purely
// in-memory; terminal I/O lives in the repl client that drives it.
package editor

// HistoryCap bounds the submit history; the oldest entry is dropped first.
const HistoryCap = 1000

// KeyKind discriminates input units fed to the editor.
type KeyKind int

// Input unit kinds.
const (
	KeyRune KeyKind = iota
	KeyBackspace
	KeyDelete
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyKillLine
	KeyEnter
	KeyHistoryPrev
	KeyHistoryNext
)

// Key is one input unit: a printable rune or an edit/control signal.
type Key struct {
	Kind KeyKind
	Rune rune // set when Kind == KeyRune
}

// Rune wraps a character as an input unit.
func Rune(r rune) Key {
	return Key{Kind: KeyRune, Rune: r}
}

// Action is the editor's reaction to one input unit.
type Action int

const (
	// None means the input had no effect.
	None Action = iota
	// Redraw means the line or cursor changed and should be repainted.
	Redraw
	// Submit means a non-empty line was submitted; the text accompanies it.
	Submit
)

// Editor accumulates input units into a submittable command line.
// The zero value is not usable; call New.
type Editor struct {
	buf []rune
	pos int // cursor rune offset into buf

	history []string
	histIdx int // index into history while browsing, -1 = not browsing
}

// New returns an empty editor with no history.
func New() *Editor {
	return &Editor{histIdx: -1}
}

// Text returns the current line content.
func (e *Editor) Text() string {
	return string(e.buf)
}

// Pos returns the cursor position as a rune offset.
func (e *Editor) Pos() int {
	return e.pos
}

// History returns a copy of the submit history, oldest first.
func (e *Editor) History() []string {
	out := make([]string, len(e.history))
	copy(out, e.history)
	return out
}

// Browsing reports whether the editor is recalling a history entry.
func (e *Editor) Browsing() bool {
	return e.histIdx >= 0
}

// Feed consumes one input unit. For Submit actions the submitted text is
// returned; otherwise the string is empty. Every input is total: malformed
// or unhandled control input yields None.
func (e *Editor) Feed(k Key) (Action, string) {
	switch k.Kind {
	case KeyRune:
		if k.Rune < 32 {
			return None, ""
		}
		e.buf = append(e.buf, 0)
		copy(e.buf[e.pos+1:], e.buf[e.pos:])
		e.buf[e.pos] = k.Rune
		e.pos++
		return Redraw, ""

	case KeyBackspace:
		if e.pos == 0 {
			return None, ""
		}
		copy(e.buf[e.pos-1:], e.buf[e.pos:])
		e.buf = e.buf[:len(e.buf)-1]
		e.pos--
		return Redraw, ""

	case KeyDelete:
		if e.pos >= len(e.buf) {
			return None, ""
		}
		copy(e.buf[e.pos:], e.buf[e.pos+1:])
		e.buf = e.buf[:len(e.buf)-1]
		return Redraw, ""

	case KeyLeft:
		if e.pos == 0 {
			return None, ""
		}
		e.pos--
		return Redraw, ""

	case KeyRight:
		if e.pos >= len(e.buf) {
			return None, ""
		}
		e.pos++
		return Redraw, ""

	case KeyHome:
		if e.pos == 0 {
			return None, ""
		}
		e.pos = 0
		return Redraw, ""

	case KeyEnd:
		if e.pos == len(e.buf) {
			return None, ""
		}
		e.pos = len(e.buf)
		return Redraw, ""

	case KeyKillLine:
		if len(e.buf) == 0 {
			return None, ""
		}
		e.buf = e.buf[:0]
		e.pos = 0
		return Redraw, ""

	case KeyEnter:
		if len(e.buf) == 0 {
			return None, ""
		}
		text := string(e.buf)
		e.history = append(e.history, text)
		if len(e.history) > HistoryCap {
			e.history = e.history[len(e.history)-HistoryCap:]
		}
		e.buf = e.buf[:0]
		e.pos = 0
		e.histIdx = -1
		return Submit, text

	case KeyHistoryPrev:
		if len(e.history) == 0 {
			return None, ""
		}
		idx := len(e.history) - 1
		if e.histIdx >= 0 {
			idx = e.histIdx - 1
			if idx < 0 {
				// Clamp at the oldest entry; do not wrap.
				return None, ""
			}
		}
		e.recall(idx)
		return Redraw, ""

	case KeyHistoryNext:
		if e.histIdx < 0 {
			return None, ""
		}
		idx := e.histIdx + 1
		if idx >= len(e.history) {
			// Past the newest entry: leave browsing, restore empty line.
			e.histIdx = -1
			e.buf = e.buf[:0]
			e.pos = 0
			return Redraw, ""
		}
		e.recall(idx)
		return Redraw, ""
	}

	return None, ""
}

// recall replaces the buffer with a history entry, discarding any
// unsubmitted edits, and places the cursor at the end.
func (e *Editor) recall(idx int) {
	e.histIdx = idx
	e.buf = append(e.buf[:0], []rune(e.history[idx])...)
	e.pos = len(e.buf)
}
