// Package channel owns the lifecycle of the event channel to the backend and
// fans inbound events out to subscribed components.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	wharf "github.com/wharfterm/wharf"
)

// ErrNotConnected is returned by Dispatch while the channel is not Connected.
var ErrNotConnected = errors.New("channel not connected")

// State is the channel's connection state.
type State int

// Channel states. Transitions: Disconnected -> Connecting -> Connected ->
// Disconnected. Reconnecting is the caller's responsibility; the supervisor
// only exposes the resulting transitions.
const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Conn is one established bidirectional event stream.
type Conn interface {
	Send(*wharf.Envelope) error
	Recv() (*wharf.Envelope, error)
	Close() error
}

// Dialer establishes a Conn.
type Dialer func(ctx context.Context) (Conn, error)

// Handler consumes one inbound event's payload.
type Handler func(data json.RawMessage)

// Supervisor owns connect/teardown of the event channel. Inbound events are
// read on a single goroutine and handlers run sequentially on it, so no two
// handlers overlap.
type Supervisor struct {
	dial Dialer

	mu       sync.Mutex
	state    State
	conn     Conn
	gen      int // bumped per connection; stale read loops are ignored
	handlers map[string][]Handler
	hooks    []func(State)
}

// NewSupervisor creates a supervisor that connects via dial.
func NewSupervisor(dial Dialer) *Supervisor {
	return &Supervisor{
		dial:     dial,
		handlers: make(map[string][]Handler),
	}
}

// State returns the current channel state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a handler for the named inbound event. All handlers
// must be registered before Connect.
func (s *Supervisor) Subscribe(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

// OnStateChange registers a hook invoked on every state transition.
// Hooks must be registered before Connect.
func (s *Supervisor) OnStateChange(hook func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Connect dials the backend and starts the read loop. On success the
// supervisor requests a one-shot system snapshot. Connect on an already
// connected supervisor is a no-op.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = Connecting
	hooks := s.hooks
	s.mu.Unlock()
	notify(hooks, Connecting)

	conn, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = Disconnected
		s.mu.Unlock()
		notify(hooks, Disconnected)
		return fmt.Errorf("dial backend: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.gen++
	gen := s.gen
	s.state = Connected
	s.mu.Unlock()
	notify(hooks, Connected)

	go s.readLoop(conn, gen)

	if err := s.Dispatch(wharf.EventGetSystemInfo, wharf.GetSystemInfo{}); err != nil {
		slog.Warn("system info request failed", "error", err)
	}
	return nil
}

// Disconnect tears the channel down. Pending remote work is not awaited;
// the read loop observes the closed stream and drives the state transition.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Dispatch sends one outbound event. It fails with ErrNotConnected while
// the channel is not Connected; nothing is queued at this layer.
func (s *Supervisor) Dispatch(event string, payload any) error {
	env, err := wharf.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != Connected || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.mu.Unlock()

	return conn.Send(env)
}

func (s *Supervisor) readLoop(conn Conn, gen int) {
	for {
		env, err := conn.Recv()
		if err != nil {
			s.markDisconnected(conn, gen)
			return
		}
		s.fanout(env)
	}
}

func (s *Supervisor) fanout(env *wharf.Envelope) {
	s.mu.Lock()
	handlers := s.handlers[env.Event]
	s.mu.Unlock()

	if len(handlers) == 0 {
		slog.Debug("unhandled event", "event", env.Event)
		return
	}
	for _, h := range handlers {
		h(env.Data)
	}
}

func (s *Supervisor) markDisconnected(conn Conn, gen int) {
	s.mu.Lock()
	if gen != s.gen {
		// A stale read loop from an earlier connection.
		s.mu.Unlock()
		return
	}
	s.state = Disconnected
	s.conn = nil
	hooks := s.hooks
	s.mu.Unlock()

	conn.Close()
	notify(hooks, Disconnected)
}

func notify(hooks []func(State), st State) {
	for _, hook := range hooks {
		hook(st)
	}
}
