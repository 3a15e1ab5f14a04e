package session

import (
	"errors"
	"testing"

	wharf "github.com/wharfterm/wharf"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(&wharf.SessionManifest{
		Sessions: []wharf.SessionSpec{
			{Name: "main", Shell: "bash", Active: true},
			{Name: "server", Shell: "bash"},
			{Name: "tests", Shell: "zsh"},
		},
	})
}

func activeIDs(sessions []Session) []int {
	var ids []int
	for _, s := range sessions {
		if s.Active {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func TestRegistrySeedsFromManifest(t *testing.T) {
	r := newTestRegistry(t)

	sessions := r.List()
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3", len(sessions))
	}
	if sessions[0].ID != 1 || sessions[0].Name != "main" {
		t.Errorf("first session = %+v", sessions[0])
	}
	if got := activeIDs(sessions); len(got) != 1 || got[0] != 1 {
		t.Errorf("active ids = %v, want [1]", got)
	}
	if sessions[2].Shell != "zsh" {
		t.Errorf("third session shell = %q, want zsh", sessions[2].Shell)
	}
}

func TestSetActiveSwapsAtomically(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.SetActive(2); err != nil {
		t.Fatal(err)
	}
	if got := activeIDs(r.List()); len(got) != 1 || got[0] != 2 {
		t.Errorf("active ids = %v, want [2]", got)
	}
	if r.Active().ID != 2 {
		t.Errorf("Active().ID = %d, want 2", r.Active().ID)
	}
}

func TestSetActiveIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 2; i++ {
		if err := r.SetActive(2); err != nil {
			t.Fatal(err)
		}
	}
	if got := activeIDs(r.List()); len(got) != 1 || got[0] != 2 {
		t.Errorf("active ids after repeated SetActive(2) = %v, want [2]", got)
	}
}

func TestSetActiveUnknownID(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.SetActive(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetActive(99) = %v, want ErrNotFound", err)
	}
	// The previous active session must be untouched.
	if got := activeIDs(r.List()); len(got) != 1 || got[0] != 1 {
		t.Errorf("active ids = %v, want [1]", got)
	}
}

func TestUpdateWorkingDirectoryLastWriteWins(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.UpdateWorkingDirectory(1, "/home"); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateWorkingDirectory(1, "/tmp"); err != nil {
		t.Fatal(err)
	}

	s, err := r.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if s.WorkingDirectory != "/tmp" {
		t.Errorf("working directory %q, want /tmp", s.WorkingDirectory)
	}

	if err := r.UpdateWorkingDirectory(99, "/tmp"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateWorkingDirectory(99) = %v, want ErrNotFound", err)
	}
}

func TestSeedWorkingDirectoriesFillsOnlyEmpty(t *testing.T) {
	r := newTestRegistry(t)

	r.UpdateWorkingDirectory(2, "/srv")
	r.SeedWorkingDirectories("/home/user")

	sessions := r.List()
	if sessions[0].WorkingDirectory != "/home/user" {
		t.Errorf("session 1 cwd %q, want /home/user", sessions[0].WorkingDirectory)
	}
	if sessions[1].WorkingDirectory != "/srv" {
		t.Errorf("session 2 cwd %q, want /srv (seed must not overwrite)", sessions[1].WorkingDirectory)
	}
}

func TestAddActivatesNewSession(t *testing.T) {
	r := newTestRegistry(t)

	s := r.Add("scratch", "")
	if s.ID != 4 {
		t.Errorf("new session id %d, want 4", s.ID)
	}
	if s.Shell != "bash" {
		t.Errorf("new session shell %q, want bash", s.Shell)
	}
	if got := activeIDs(r.List()); len(got) != 1 || got[0] != 4 {
		t.Errorf("active ids = %v, want [4]", got)
	}
}
