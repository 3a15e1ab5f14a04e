// Package correlate assigns submitted commands to sessions, dispatches them
// over the event channel, and matches asynchronous results back to their
// submissions. Per session at most one command is in flight; later
// submissions queue and dispatch in submission order, so results from a
// single remote shell are observed in the order commands were typed.
package correlate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	wharf "github.com/wharfterm/wharf"
)

// ErrEmptyCommand is returned when an empty line is submitted.
var ErrEmptyCommand = errors.New("empty command")

// HistoryCap bounds resolved-command history; the oldest entry is dropped
// first.
const HistoryCap = 1000

// State is the lifecycle state of a submitted command.
type State int

// Command states. Pending covers both queued and dispatched commands;
// resolved commands are immutable history.
const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Command is one submitted command line and, once resolved, its outcome.
type Command struct {
	// ID is the correlation identifier carried on the wire. The backend
	// echoes it in the matching result or error event.
	ID          string
	SessionID   int
	Text        string
	SubmittedAt time.Time
	State       State

	// Outcome fields, set when the command resolves.
	Stdout           string
	Stderr           string
	WorkingDirectory string // non-empty when the command changed it
	Err              string // set when State == Failed
}

// Dispatcher sends outbound events. *channel.Supervisor implements it.
type Dispatcher interface {
	Dispatch(event string, payload any) error
}

// DirectorySink receives working-directory updates from command results.
// *session.Registry implements it.
type DirectorySink interface {
	UpdateWorkingDirectory(id int, path string) error
}

// Renderer receives resolved commands for display. For succeeded commands
// the renderer must present stdout before stderr.
type Renderer interface {
	CommandSucceeded(cmd Command)
	CommandFailed(cmd Command)
}

// Correlator tracks in-flight and queued commands per session.
type Correlator struct {
	ch     Dispatcher
	dirs   DirectorySink
	render Renderer
	newID  func() string

	mu       sync.Mutex
	inflight map[int]*Command // session id -> dispatched command
	queues   map[int][]*Command
	order    []*Command // dispatch order across sessions, for id-less results
	history  []*Command
}

// New creates a correlator that dispatches over ch, reports directory
// changes to dirs, and forwards resolved commands to render.
func New(ch Dispatcher, dirs DirectorySink, render Renderer) *Correlator {
	return &Correlator{
		ch:       ch,
		dirs:     dirs,
		render:   render,
		newID:    uuid.NewString,
		inflight: make(map[int]*Command),
		queues:   make(map[int][]*Command),
	}
}

// Submit registers a command for the session and dispatches it, or queues it
// when the session already has a command in flight. It fails with the
// dispatcher's error (typically channel.ErrNotConnected) when the command
// cannot be sent; nothing is recorded in that case.
func (c *Correlator) Submit(sessionID int, text string) (Command, error) {
	if text == "" {
		return Command{}, ErrEmptyCommand
	}

	cmd := &Command{
		ID:          c.newID(),
		SessionID:   sessionID,
		Text:        text,
		SubmittedAt: time.Now(),
		State:       Pending,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inflight[sessionID]; busy {
		c.queues[sessionID] = append(c.queues[sessionID], cmd)
		return *cmd, nil
	}

	if err := c.dispatchLocked(cmd); err != nil {
		return Command{}, err
	}
	return *cmd, nil
}

// dispatchLocked sends cmd over the channel and records it as in flight.
func (c *Correlator) dispatchLocked(cmd *Command) error {
	err := c.ch.Dispatch(wharf.EventExecuteCommand, wharf.ExecuteCommand{
		CorrelationID: cmd.ID,
		Command:       cmd.Text,
		SessionID:     cmd.SessionID,
	})
	if err != nil {
		return err
	}
	c.inflight[cmd.SessionID] = cmd
	c.order = append(c.order, cmd)
	return nil
}

// HandleResult resolves the matching in-flight command to Succeeded.
func (c *Correlator) HandleResult(data json.RawMessage) {
	var res wharf.CommandResult
	if err := json.Unmarshal(data, &res); err != nil {
		slog.Warn("invalid command_result", "error", err)
		return
	}

	c.mu.Lock()
	cmd := c.matchLocked(res.CorrelationID, res.SessionID)
	if cmd == nil {
		c.mu.Unlock()
		slog.Debug("unmatched command_result", "correlation_id", res.CorrelationID)
		return
	}

	cmd.State = Succeeded
	cmd.Stdout = res.Result.Stdout
	cmd.Stderr = res.Result.Stderr
	cmd.WorkingDirectory = res.Result.WorkingDirectory
	c.resolveLocked(cmd)
	next := c.nextQueuedLocked(cmd.SessionID)
	snapshot := *cmd
	c.mu.Unlock()

	if snapshot.WorkingDirectory != "" {
		if err := c.dirs.UpdateWorkingDirectory(snapshot.SessionID, snapshot.WorkingDirectory); err != nil {
			slog.Warn("working directory update failed", "session", snapshot.SessionID, "error", err)
		}
	}
	c.render.CommandSucceeded(snapshot)
	c.renderFailures(next)
}

// HandleError resolves the matching in-flight command to Failed. The
// session's queue keeps draining; a failed command never blocks it.
func (c *Correlator) HandleError(data json.RawMessage) {
	var ce wharf.CommandError
	if err := json.Unmarshal(data, &ce); err != nil {
		slog.Warn("invalid command_error", "error", err)
		return
	}

	c.mu.Lock()
	cmd := c.matchLocked(ce.CorrelationID, ce.SessionID)
	if cmd == nil {
		c.mu.Unlock()
		slog.Debug("unmatched command_error", "correlation_id", ce.CorrelationID)
		return
	}

	cmd.State = Failed
	cmd.Err = ce.Error
	c.resolveLocked(cmd)
	next := c.nextQueuedLocked(cmd.SessionID)
	snapshot := *cmd
	c.mu.Unlock()

	c.render.CommandFailed(snapshot)
	c.renderFailures(next)
}

// FailAll resolves every pending command, in flight or queued, to Failed.
// Invoked when the channel drops; nothing is retried automatically.
func (c *Correlator) FailAll(reason string) {
	c.mu.Lock()
	var failed []Command
	for _, cmd := range c.order {
		cmd.State = Failed
		cmd.Err = reason
		c.appendHistoryLocked(cmd)
		failed = append(failed, *cmd)
	}
	c.order = nil
	c.inflight = make(map[int]*Command)
	for sid, queue := range c.queues {
		for _, cmd := range queue {
			cmd.State = Failed
			cmd.Err = reason
			c.appendHistoryLocked(cmd)
			failed = append(failed, *cmd)
		}
		delete(c.queues, sid)
	}
	c.mu.Unlock()

	for _, cmd := range failed {
		c.render.CommandFailed(cmd)
	}
}

// InFlight returns the dispatched command for the session, if any.
func (c *Correlator) InFlight(sessionID int) (Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd, ok := c.inflight[sessionID]
	if !ok {
		return Command{}, false
	}
	return *cmd, true
}

// QueueLen returns the number of commands queued behind the session's
// in-flight command.
func (c *Correlator) QueueLen(sessionID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[sessionID])
}

// History returns a snapshot of resolved commands in resolution order.
func (c *Correlator) History() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Command, len(c.history))
	for i, cmd := range c.history {
		out[i] = *cmd
	}
	return out
}

// matchLocked finds the in-flight command a result belongs to. Explicit
// correlation ids win; otherwise the session's in-flight command; otherwise
// the oldest dispatched command. The id-less paths exist for backends that
// do not echo ids, where the one-in-flight-per-session rule is the only
// correlation mechanism.
func (c *Correlator) matchLocked(correlationID string, sessionID int) *Command {
	if correlationID != "" {
		for _, cmd := range c.order {
			if cmd.ID == correlationID {
				return cmd
			}
		}
		return nil
	}
	if sessionID != 0 {
		return c.inflight[sessionID]
	}
	if len(c.order) > 0 {
		return c.order[0]
	}
	return nil
}

// resolveLocked moves a resolved command out of the in-flight set into
// history.
func (c *Correlator) resolveLocked(cmd *Command) {
	delete(c.inflight, cmd.SessionID)
	for i, o := range c.order {
		if o == cmd {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.appendHistoryLocked(cmd)
}

// appendHistoryLocked records a resolved command, dropping the oldest entry
// past HistoryCap.
func (c *Correlator) appendHistoryLocked(cmd *Command) {
	c.history = append(c.history, cmd)
	if len(c.history) > HistoryCap {
		c.history = c.history[len(c.history)-HistoryCap:]
	}
}

// nextQueuedLocked dispatches the session's next queued command. Commands
// that fail to dispatch (channel dropped between resolve and dispatch) are
// resolved Failed and returned for rendering, and draining continues.
func (c *Correlator) nextQueuedLocked(sessionID int) []Command {
	var failed []Command
	for len(c.queues[sessionID]) > 0 {
		next := c.queues[sessionID][0]
		c.queues[sessionID] = c.queues[sessionID][1:]
		if len(c.queues[sessionID]) == 0 {
			delete(c.queues, sessionID)
		}

		if err := c.dispatchLocked(next); err != nil {
			next.State = Failed
			next.Err = err.Error()
			c.appendHistoryLocked(next)
			failed = append(failed, *next)
			continue
		}
		break
	}
	return failed
}

func (c *Correlator) renderFailures(cmds []Command) {
	for _, cmd := range cmds {
		c.render.CommandFailed(cmd)
	}
}
