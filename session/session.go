// Package session tracks the set of terminal sessions, which one is active,
// and each session's last known working directory.
package session

import (
	"errors"
	"sync"

	wharf "github.com/wharfterm/wharf"
)

// ErrNotFound is returned when an operation references an unknown session id.
var ErrNotFound = errors.New("session not found")

// Session is one independent command-line context.
type Session struct {
	ID     int
	Name   string
	Shell  string
	Active bool
	// WorkingDirectory is the session's last known working directory on the
	// backend. Empty until seeded by a system snapshot or a command result.
	WorkingDirectory string
}

// Registry holds the sessions for one run. Exactly one session is active at
// any time. Sessions are never destroyed mid-run.
type Registry struct {
	mu       sync.RWMutex
	sessions []*Session
	nextID   int
}

// NewRegistry creates a registry seeded from a session manifest.
func NewRegistry(m *wharf.SessionManifest) *Registry {
	r := &Registry{nextID: 1}
	for _, spec := range m.Sessions {
		r.sessions = append(r.sessions, &Session{
			ID:     r.nextID,
			Name:   spec.Name,
			Shell:  spec.Shell,
			Active: spec.Active,
		})
		r.nextID++
	}
	return r
}

// List returns a snapshot of all sessions in creation order.
func (r *Registry) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = *s
	}
	return out
}

// Get returns a snapshot of the session with the given id.
func (r *Registry) Get(id int) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.find(id)
	if s == nil {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// Active returns a snapshot of the active session.
func (r *Registry) Active() Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Active {
			return *s
		}
	}
	// Unreachable with a correctly seeded registry.
	return Session{}
}

// SetActive makes the session with the given id the sole active session.
// The swap is atomic: no caller observes zero or multiple active sessions.
func (r *Registry) SetActive(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := r.find(id)
	if target == nil {
		return ErrNotFound
	}
	for _, s := range r.sessions {
		s.Active = s == target
	}
	return nil
}

// Add creates a new session and makes it active.
func (r *Registry) Add(name, shell string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if shell == "" {
		shell = "bash"
	}
	s := &Session{ID: r.nextID, Name: name, Shell: shell, Active: true}
	r.nextID++
	for _, old := range r.sessions {
		old.Active = false
	}
	r.sessions = append(r.sessions, s)
	return *s
}

// UpdateWorkingDirectory records the session's working directory.
// Idempotent, last write wins.
func (r *Registry) UpdateWorkingDirectory(id int, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.find(id)
	if s == nil {
		return ErrNotFound
	}
	s.WorkingDirectory = path
	return nil
}

// SeedWorkingDirectories fills in the working directory of every session
// that does not have one yet, from a backend environment snapshot.
func (r *Registry) SeedWorkingDirectories(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.WorkingDirectory == "" {
			s.WorkingDirectory = path
		}
	}
}

func (r *Registry) find(id int) *Session {
	for _, s := range r.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}
