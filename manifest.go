package wharf

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	defaults "github.com/wharfterm/wharf/default"
)

// SessionSpec describes one session in the manifest.
type SessionSpec struct {
	// Name is the session's display name.
	Name string `toml:"name"`
	// Shell is the shell kind for the session ("bash", "zsh", ...).
	Shell string `toml:"shell"`
	// Active marks the initially active session. When no session is marked,
	// the first one becomes active; when several are, the first marked wins.
	Active bool `toml:"active"`
}

// SessionManifest is the set of sessions created at startup.
type SessionManifest struct {
	Sessions []SessionSpec `toml:"session"`
}

// DefaultManifest returns the manifest from the embedded sessions.toml.
func DefaultManifest() *SessionManifest {
	var m SessionManifest
	if err := toml.Unmarshal(defaults.DefaultSessionsTOML, &m); err != nil {
		panic("wharf: invalid embedded sessions.toml: " + err.Error())
	}
	normalizeManifest(&m)
	return &m
}

// LoadManifest loads the session manifest from disk, falling back to the
// embedded default when the file does not exist.
func LoadManifest() (*SessionManifest, error) {
	path := ManifestPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultManifest(), nil
		}
		return nil, err
	}

	var m SessionManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(m.Sessions) == 0 {
		return nil, fmt.Errorf("%s: manifest declares no sessions", path)
	}
	normalizeManifest(&m)
	return &m, nil
}

// normalizeManifest enforces exactly one active session.
func normalizeManifest(m *SessionManifest) {
	first := -1
	for i := range m.Sessions {
		if m.Sessions[i].Active {
			if first == -1 {
				first = i
			} else {
				m.Sessions[i].Active = false
			}
		}
		if m.Sessions[i].Shell == "" {
			m.Sessions[i].Shell = "bash"
		}
	}
	if first == -1 && len(m.Sessions) > 0 {
		m.Sessions[0].Active = true
	}
}
