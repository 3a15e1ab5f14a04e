package editor

import (
	"fmt"
	"testing"
)

func feedString(t *testing.T, e *Editor, s string) {
	t.Helper()
	for _, r := range s {
		if act, _ := e.Feed(Rune(r)); act != Redraw {
			t.Fatalf("Feed(%q) = %v, want Redraw", r, act)
		}
	}
}

func submit(t *testing.T, e *Editor) string {
	t.Helper()
	act, text := e.Feed(Key{Kind: KeyEnter})
	if act != Submit {
		t.Fatalf("Feed(Enter) = %v, want Submit", act)
	}
	return text
}

func TestSubmitReturnsConcatenatedInput(t *testing.T) {
	e := New()
	feedString(t, e, "git status")

	text := submit(t, e)
	if text != "git status" {
		t.Errorf("submitted %q, want %q", text, "git status")
	}
	if e.Text() != "" {
		t.Errorf("buffer %q after submit, want empty", e.Text())
	}
	if e.Pos() != 0 {
		t.Errorf("cursor %d after submit, want 0", e.Pos())
	}
}

func TestSubmitEmptyBufferIsNoOp(t *testing.T) {
	e := New()
	act, text := e.Feed(Key{Kind: KeyEnter})
	if act != None || text != "" {
		t.Errorf("Feed(Enter) on empty buffer = (%v, %q), want (None, \"\")", act, text)
	}
	if len(e.History()) != 0 {
		t.Errorf("empty submit recorded history entry: %v", e.History())
	}
}

func TestBackspaceEmptyBufferIsNoOp(t *testing.T) {
	e := New()
	for i := 0; i < 3; i++ {
		if act, _ := e.Feed(Key{Kind: KeyBackspace}); act != None {
			t.Fatalf("backspace %d on empty buffer = %v, want None", i, act)
		}
	}
	if e.Text() != "" || e.Pos() != 0 {
		t.Errorf("buffer %q pos %d, want empty", e.Text(), e.Pos())
	}
}

func TestBackspaceRemovesLastRune(t *testing.T) {
	e := New()
	feedString(t, e, "héllo")
	e.Feed(Key{Kind: KeyBackspace})
	if e.Text() != "héll" {
		t.Errorf("buffer %q, want %q", e.Text(), "héll")
	}
}

func TestControlRunesIgnored(t *testing.T) {
	e := New()
	feedString(t, e, "ls")
	for _, r := range []rune{0, 7, 27, 31} {
		if act, _ := e.Feed(Rune(r)); act != None {
			t.Errorf("Feed(rune %d) = %v, want None", r, act)
		}
	}
	if e.Text() != "ls" {
		t.Errorf("buffer %q, want %q", e.Text(), "ls")
	}
}

func TestInsertAtCursor(t *testing.T) {
	e := New()
	feedString(t, e, "ac")
	e.Feed(Key{Kind: KeyLeft})
	e.Feed(Rune('b'))
	if e.Text() != "abc" {
		t.Errorf("buffer %q, want %q", e.Text(), "abc")
	}
}

func TestHistoryPrevRecallsNewestFirst(t *testing.T) {
	e := New()
	for _, cmd := range []string{"first", "second", "third"} {
		feedString(t, e, cmd)
		submit(t, e)
	}

	want := []string{"third", "second", "first"}
	for _, w := range want {
		if act, _ := e.Feed(Key{Kind: KeyHistoryPrev}); act != Redraw {
			t.Fatalf("history prev = %v, want Redraw", act)
		}
		if e.Text() != w {
			t.Errorf("recalled %q, want %q", e.Text(), w)
		}
	}
}

func TestHistoryPrevClampsAtOldest(t *testing.T) {
	e := New()
	feedString(t, e, "only")
	submit(t, e)

	e.Feed(Key{Kind: KeyHistoryPrev})
	if act, _ := e.Feed(Key{Kind: KeyHistoryPrev}); act != None {
		t.Errorf("history prev at oldest = %v, want None", act)
	}
	if e.Text() != "only" {
		t.Errorf("buffer %q, want %q", e.Text(), "only")
	}
}

func TestHistoryNextPastNewestRestoresEmptyLine(t *testing.T) {
	e := New()
	feedString(t, e, "ls -la")
	submit(t, e)

	e.Feed(Key{Kind: KeyHistoryPrev})
	if !e.Browsing() {
		t.Fatal("expected browsing after history prev")
	}

	act, _ := e.Feed(Key{Kind: KeyHistoryNext})
	if act != Redraw {
		t.Errorf("history next past newest = %v, want Redraw", act)
	}
	if e.Browsing() {
		t.Error("still browsing after stepping past newest")
	}
	if e.Text() != "" {
		t.Errorf("buffer %q, want empty", e.Text())
	}
}

func TestHistoryNextWhenNotBrowsingIsNoOp(t *testing.T) {
	e := New()
	feedString(t, e, "ls")
	submit(t, e)

	if act, _ := e.Feed(Key{Kind: KeyHistoryNext}); act != None {
		t.Errorf("history next while not browsing = %v, want None", act)
	}
}

func TestHistoryRecallDiscardsUnsubmittedEdits(t *testing.T) {
	e := New()
	feedString(t, e, "make test")
	submit(t, e)
	feedString(t, e, "make bui")

	e.Feed(Key{Kind: KeyHistoryPrev})
	if e.Text() != "make test" {
		t.Errorf("buffer %q, want %q", e.Text(), "make test")
	}
}

func TestHistoryAllowsDuplicates(t *testing.T) {
	e := New()
	for i := 0; i < 2; i++ {
		feedString(t, e, "pwd")
		submit(t, e)
	}
	if got := len(e.History()); got != 2 {
		t.Errorf("history length %d, want 2", got)
	}
}

func TestHistoryCapDropsOldest(t *testing.T) {
	e := New()
	for i := 0; i < HistoryCap+5; i++ {
		feedString(t, e, fmt.Sprintf("cmd-%d", i))
		submit(t, e)
	}

	hist := e.History()
	if len(hist) != HistoryCap {
		t.Fatalf("history length %d, want %d", len(hist), HistoryCap)
	}
	if hist[0] != "cmd-5" {
		t.Errorf("oldest entry %q, want %q", hist[0], "cmd-5")
	}
	if hist[len(hist)-1] != fmt.Sprintf("cmd-%d", HistoryCap+4) {
		t.Errorf("newest entry %q", hist[len(hist)-1])
	}
}
