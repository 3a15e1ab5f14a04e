// Package defaults provides embedded default assets (session manifest).
package defaults

import _ "embed"

//go:embed sessions.toml
var DefaultSessionsTOML []byte
