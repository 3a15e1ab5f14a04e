// Package index maintains an in-memory similarity index over previously
// executed commands. The backend feeds it as commands run; analysis requests
// query it so the AI provider sees related history. Commands are redacted
// before they are embedded or stored.
package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/hnsw"
)

// Index holds embedded commands in an HNSW graph keyed by command hash.
type Index struct {
	embedder *Embedder
	max      int

	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	commands map[string]string // hash -> redacted command text
}

// New creates an index backed by embedder, holding at most maxCommands
// entries. A nil embedder disables the index; Observe and Similar become
// no-ops.
func New(embedder *Embedder, maxCommands int) *Index {
	return &Index{
		embedder: embedder,
		max:      maxCommands,
		graph:    hnsw.NewGraph[string](),
		commands: make(map[string]string),
	}
}

// Len returns the number of indexed commands.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.commands)
}

// Observe redacts, embeds, and indexes one executed command. Duplicate
// commands and commands past the capacity bound are skipped.
func (idx *Index) Observe(ctx context.Context, command string) error {
	if idx.embedder == nil || command == "" {
		return nil
	}

	redacted := RedactCommand(command)
	hash := hashCommand(redacted)

	idx.mu.RLock()
	_, exists := idx.commands[hash]
	full := len(idx.commands) >= idx.max
	idx.mu.RUnlock()
	if exists {
		return nil
	}
	if full {
		slog.Debug("command index at capacity", "max", idx.max)
		return nil
	}

	vec, err := idx.embedder.Embed(ctx, redacted)
	if err != nil {
		return fmt.Errorf("embed command: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.commands[hash]; exists {
		return nil
	}
	idx.graph.Add(hnsw.MakeNode(hash, vec))
	idx.commands[hash] = redacted
	return nil
}

// Similar returns up to topK indexed commands closest to the query text,
// most similar first.
func (idx *Index) Similar(ctx context.Context, query string, topK int) ([]string, error) {
	if idx.embedder == nil || topK <= 0 {
		return nil, nil
	}

	vec, err := idx.embedder.Embed(ctx, RedactCommand(query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.graph.Len() == 0 {
		return nil, nil
	}

	neighbors := idx.graph.Search(vec, topK)
	out := make([]string, len(neighbors))
	for i, n := range neighbors {
		out[i] = idx.commands[n.Key]
	}
	return out, nil
}

func hashCommand(cmd string) string {
	sum := sha256.Sum256([]byte(cmd))
	return fmt.Sprintf("%x", sum)
}
