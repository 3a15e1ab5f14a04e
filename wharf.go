// Package wharf defines the event protocol spoken between the terminal
// client and the execution backend. Events are JSON-encoded envelopes sent
// over a persistent bidirectional stream, one per line.
package wharf

import "encoding/json"

// Envelope frames one event on the wire.
type Envelope struct {
	// Event is the event name, one of the Event* constants.
	Event string `json:"event"`
	// Data is the event payload, decoded by the receiving handler.
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload in an Envelope, marshaling it to JSON.
func NewEnvelope(event string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Data: data}, nil
}

// Event names carried in the envelope. The first three travel client to
// backend, the rest backend to client.
const (
	EventExecuteCommand = "execute_command_event"
	EventGetSystemInfo  = "get_system_info"
	EventAIAnalyze      = "ai_analyze"

	EventSystemInfo    = "system_info"
	EventCommandResult = "command_result"
	EventCommandError  = "command_error"
	EventAIResponse    = "ai_response"
	EventAIError       = "ai_error"
)

// ExecuteCommand asks the backend to run a command line in a session's shell.
type ExecuteCommand struct {
	// CorrelationID is assigned by the client and echoed back in the
	// matching CommandResult or CommandError for request correlation.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Command is the raw command line as typed.
	Command string `json:"command"`
	// SessionID identifies the terminal session the command belongs to.
	SessionID int `json:"session_id"`
}

// GetSystemInfo requests a one-shot environment snapshot from the backend.
type GetSystemInfo struct{}

// AIAnalyze asks the AI backend to analyze a message in context.
type AIAnalyze struct {
	// ConversationID is assigned by the client and echoed back in the
	// matching AIResponse or AIError.
	ConversationID string `json:"conversation_id,omitempty"`
	// Message is the user's new message text.
	Message string `json:"message"`
	// Context is a bounded window of prior conversation, oldest first,
	// one "<role>: <content>" line per message.
	Context string `json:"context"`
	// APIKey is the provider secret. It is never persisted by the backend.
	APIKey string `json:"api_key"`
	// Provider selects the AI provider ("openai", "anthropic", ...).
	Provider string `json:"provider"`
}

// SystemInfo is the backend's environment snapshot.
type SystemInfo struct {
	// Platform is the backend operating system ("linux", "darwin", ...).
	Platform string `json:"platform"`
	// CPUCount is the number of logical CPUs.
	CPUCount int `json:"cpu_count"`
	// MemoryAvailable is the available memory in bytes, 0 if unknown.
	MemoryAvailable uint64 `json:"memory_available"`
	// Hostname is the backend host name.
	Hostname string `json:"hostname"`
	// CurrentDirectory is the backend's working directory at snapshot time.
	CurrentDirectory string `json:"current_directory"`
}

// CommandOutcome carries the outcome of a successfully executed command.
// An empty WorkingDirectory means the session's directory did not change.
type CommandOutcome struct {
	Stdout           string `json:"stdout,omitempty"`
	Stderr           string `json:"stderr,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
}

// CommandResult reports a completed command back to the client.
type CommandResult struct {
	// CorrelationID is echoed from the request. Older backends omit it,
	// in which case the client matches by per-session dispatch order.
	CorrelationID string `json:"correlation_id,omitempty"`
	// SessionID is echoed from the request.
	SessionID int `json:"session_id,omitempty"`
	// Result holds the command's output and directory change, if any.
	Result CommandOutcome `json:"result"`
}

// CommandError reports a command the backend could not execute.
type CommandError struct {
	// CorrelationID is echoed from the request when known.
	CorrelationID string `json:"correlation_id,omitempty"`
	// SessionID is echoed from the request when known.
	SessionID int `json:"session_id,omitempty"`
	// Error is a human-readable failure description.
	Error string `json:"error"`
}

// AIResponse carries the provider's analysis back to the client.
type AIResponse struct {
	// ConversationID is echoed from the request when known.
	ConversationID string `json:"conversation_id,omitempty"`
	// Analysis is the assistant's reply text.
	Analysis string `json:"analysis"`
}

// AIError reports a failed analysis request.
type AIError struct {
	// ConversationID is echoed from the request when known.
	ConversationID string `json:"conversation_id,omitempty"`
	// Error is a human-readable failure description.
	Error string `json:"error"`
}
