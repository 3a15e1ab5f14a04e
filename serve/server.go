package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	wharf "github.com/wharfterm/wharf"
	"github.com/wharfterm/wharf/index"
)

// Executor runs one command line in a working directory.
type Executor interface {
	Execute(ctx context.Context, command, workingDir string) (*ExecResult, error)
}

// ExecResult is the captured output of an executed command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Analyzer produces an analysis for an AI request.
type Analyzer interface {
	Analyze(ctx context.Context, req *wharf.AIAnalyze) (string, error)
}

// Server listens on a Unix domain socket for event streams from terminal
// clients.
type Server struct {
	listener net.Listener
	sockPath string
	exec     Executor
	analyzer Analyzer
	history  *index.Index
	dirs     *DirCache
	timeout  time.Duration
}

// NewServer creates a server bound to the given socket path, configured
// from the wharf config file.
func NewServer(sockPath string) (*Server, error) {
	cfg, err := wharf.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = wharf.DefaultConfig()
	}

	var embedder *index.Embedder
	if wharf.EmbeddingEnabled(cfg) {
		embedder = index.NewEmbedder(
			wharf.ResolveEmbeddingBaseURL(cfg),
			wharf.ResolveEmbeddingAPIKey(cfg),
			wharf.ResolveEmbeddingModel(cfg),
		)
	} else {
		slog.Info("embedding not configured, command similarity disabled")
	}

	return NewServerWithDeps(
		sockPath,
		&shellExecutor{timeout: time.Duration(cfg.Exec.TimeoutSeconds) * time.Second},
		NewGenerator(),
		index.New(embedder, cfg.Embedding.MaxCommands),
		NewDirCache(time.Duration(cfg.Embedding.TTLMinutes)*time.Minute),
	)
}

// NewServerWithDeps creates a server with explicit collaborators.
func NewServerWithDeps(sockPath string, exec Executor, analyzer Analyzer, history *index.Index, dirs *DirCache) (*Server, error) {
	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener: listener,
		sockPath: sockPath,
		exec:     exec,
		analyzer: analyzer,
		history:  history,
		dirs:     dirs,
		timeout:  60 * time.Second,
	}, nil
}

// Serve accepts connections and handles their event streams.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the server and removes the socket file.
func (s *Server) Close() {
	s.listener.Close()
	s.dirs.Close()
	os.Remove(s.sockPath)
}

// connState is the per-connection view of the terminal: one working
// directory per session, like the remote shell would hold.
type connState struct {
	conn net.Conn
	wmu  sync.Mutex

	mu      sync.Mutex
	cwds    map[int]string
	lastCwd string
}

func (cs *connState) cwd(sessionID int) string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if dir, ok := cs.cwds[sessionID]; ok {
		return dir
	}
	return cs.lastCwd
}

func (cs *connState) setCwd(sessionID int, dir string) {
	cs.mu.Lock()
	cs.cwds[sessionID] = dir
	cs.lastCwd = dir
	cs.mu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	base, err := os.Getwd()
	if err != nil {
		base = "/"
	}
	cs := &connState{
		conn:    conn,
		cwds:    make(map[int]string),
		lastCwd: base,
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		raw := scanner.Bytes()
		slog.Debug("event", "data", string(raw))

		var env wharf.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("invalid envelope", "error", err)
			continue
		}

		switch env.Event {
		case wharf.EventExecuteCommand:
			var req wharf.ExecuteCommand
			if err := json.Unmarshal(env.Data, &req); err != nil {
				slog.Warn("invalid execute_command_event", "error", err)
				continue
			}
			go s.handleExecute(cs, &req)

		case wharf.EventGetSystemInfo:
			go s.handleSystemInfo(cs)

		case wharf.EventAIAnalyze:
			var req wharf.AIAnalyze
			if err := json.Unmarshal(env.Data, &req); err != nil {
				slog.Warn("invalid ai_analyze", "error", err)
				continue
			}
			go s.handleAnalyze(cs, &req)

		default:
			slog.Debug("unhandled event", "event", env.Event)
		}
	}
}

// maxStreamBytes caps stdout and stderr in a command_result. The client's
// frame scanner allows 4 MB per line; two capped streams plus JSON escaping
// overhead stay well inside that.
const maxStreamBytes = 1 << 20

const truncationMark = "\n[output truncated]\n"

func truncateStream(s string) string {
	if len(s) <= maxStreamBytes {
		return s
	}
	return s[:maxStreamBytes] + truncationMark
}

func (s *Server) handleExecute(cs *connState, req *wharf.ExecuteCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	cwd := cs.cwd(req.SessionID)
	result, err := s.exec.Execute(ctx, req.Command, cwd)
	if err != nil {
		s.send(cs, wharf.EventCommandError, wharf.CommandError{
			CorrelationID: req.CorrelationID,
			SessionID:     req.SessionID,
			Error:         err.Error(),
		})
		return
	}

	outcome := wharf.CommandOutcome{
		Stdout: truncateStream(result.Stdout),
		Stderr: truncateStream(result.Stderr),
	}

	// A leading cd that succeeded moves the session's directory.
	if target, ok := parseCd(req.Command); ok && result.ExitCode == 0 {
		if newDir, ok := resolveCd(cwd, target); ok {
			cs.setCwd(req.SessionID, newDir)
			outcome.WorkingDirectory = newDir
			go s.dirs.Gather(context.Background(), newDir)
		}
	}

	s.send(cs, wharf.EventCommandResult, wharf.CommandResult{
		CorrelationID: req.CorrelationID,
		SessionID:     req.SessionID,
		Result:        outcome,
	})

	// Feed the similarity index off the hot path.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.history.Observe(ctx, req.Command); err != nil {
			slog.Debug("command indexing failed", "error", err)
		}
	}()
}

func (s *Server) handleSystemInfo(cs *connState) {
	cs.mu.Lock()
	cwd := cs.lastCwd
	cs.mu.Unlock()
	s.send(cs, wharf.EventSystemInfo, gatherSystemInfo(cwd))
}

func (s *Server) handleAnalyze(cs *connState, req *wharf.AIAnalyze) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	enriched := *req
	enriched.Context = s.enrichContext(ctx, cs, req)

	analysis, err := s.analyzer.Analyze(ctx, &enriched)
	if err != nil {
		s.send(cs, wharf.EventAIError, wharf.AIError{
			ConversationID: req.ConversationID,
			Error:          err.Error(),
		})
		return
	}

	s.send(cs, wharf.EventAIResponse, wharf.AIResponse{
		ConversationID: req.ConversationID,
		Analysis:       analysis,
	})
}

// enrichContext appends similar past commands and directory context to the
// client-supplied conversation window.
func (s *Server) enrichContext(ctx context.Context, cs *connState, req *wharf.AIAnalyze) string {
	out := req.Context

	similar, err := s.history.Similar(ctx, req.Message, 3)
	if err != nil {
		slog.Debug("similarity lookup failed", "error", err)
	}
	if len(similar) > 0 {
		out += "\n\nRelated commands run recently:"
		for _, cmd := range similar {
			out += "\n  " + cmd
		}
	}

	cs.mu.Lock()
	cwd := cs.lastCwd
	cs.mu.Unlock()
	if dc := s.dirs.Get(cwd); dc != nil && dc.Listing != "" {
		out += "\n\nWorking directory " + dc.Path + " contains: " + dc.Listing
		if dc.GitBranch != "" {
			out += "\nGit branch: " + dc.GitBranch
		}
		if len(dc.Manifests) > 0 {
			out += "\nProject manifests: " + strings.Join(dc.Manifests, ", ")
		}
	}

	return out
}

func (s *Server) send(cs *connState, event string, payload any) {
	env, err := wharf.NewEnvelope(event, payload)
	if err != nil {
		slog.Error("failed to marshal event", "event", event, "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("failed to marshal envelope", "event", event, "error", err)
		return
	}

	slog.Debug("reply", "data", string(data))

	cs.wmu.Lock()
	defer cs.wmu.Unlock()
	cs.conn.Write(append(data, '\n'))
}
