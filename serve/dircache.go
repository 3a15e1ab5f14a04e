package main

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DirContext holds gathered context for one directory, used to enrich AI
// analysis prompts.
type DirContext struct {
	Path      string
	Listing   string // directory entries, space-separated
	GitBranch string
	Manifests []string // project manifest files present in the directory
}

const (
	gatherTimeout = 5 * time.Second
	listingMax    = 512
)

// DirCache is a TTL cache of DirContext entries keyed by absolute path.
type DirCache struct {
	cache *ttlcache.Cache[string, *DirContext]
}

// NewDirCache creates a DirCache with TTL-based expiration.
func NewDirCache(ttl time.Duration) *DirCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := ttlcache.New[string, *DirContext](
		ttlcache.WithTTL[string, *DirContext](ttl),
		ttlcache.WithDisableTouchOnHit[string, *DirContext](),
	)
	go c.Start()
	return &DirCache{cache: c}
}

// Close stops the cache expiration loop.
func (dc *DirCache) Close() {
	dc.cache.Stop()
}

// Get returns the cached DirContext for path, or nil if not cached.
func (dc *DirCache) Get(absPath string) *DirContext {
	item := dc.cache.Get(absPath)
	if item == nil {
		return nil
	}
	return item.Value()
}

// Gather collects context for the given directory and caches it.
func (dc *DirCache) Gather(ctx context.Context, dir string) {
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	entry := &DirContext{
		Path:      dir,
		Listing:   listDir(dir),
		GitBranch: gitBranch(ctx, dir),
		Manifests: gatherManifests(dir),
	}

	dc.cache.Set(dir, entry, ttlcache.DefaultTTL)
	slog.Debug("gathered directory context", "path", dir)
}

func listDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return truncate(strings.Join(names, " "), listingMax)
}

func gitBranch(ctx context.Context, dir string) string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// manifestFiles lists the project manifests worth surfacing to the model.
var manifestFiles = []string{
	"package.json",
	"Makefile",
	"Cargo.toml",
	"pyproject.toml",
	"go.mod",
}

func gatherManifests(dir string) []string {
	var out []string
	for _, name := range manifestFiles {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, name)
	}
	return out
}

// truncate caps s at maxBytes, appending "..." if cut.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "..."
}
