// Package assistant maintains the conversational message log with the AI
// side panel, builds bounded context windows for analysis requests, and
// reconciles streamed replies and provider errors.
package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	wharf "github.com/wharfterm/wharf"
)

// ErrNoConversation is returned when an operation references an unknown
// conversation id.
var ErrNoConversation = errors.New("unknown conversation")

// DefaultFallbackDelay is the simulated latency before a local fallback
// reply when no credential is configured.
const DefaultFallbackDelay = 1500 * time.Millisecond

// contextWindow is the number of prior messages included in an analysis
// request.
const contextWindow = 5

// Role is a message author role.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation. Messages are append-only and never
// reordered or deleted.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// conversation is the ordered message log plus the outstanding-request flag.
type conversation struct {
	id       string
	messages []Message
	awaiting bool
	fallback *time.Timer // armed while a no-credential fallback is pending
}

// Dispatcher sends outbound events. *channel.Supervisor implements it.
type Dispatcher interface {
	Dispatch(event string, payload any) error
}

// Credentials is the credential store surface the bridge needs.
// *wharf.CredentialStore implements it.
type Credentials interface {
	Get() (wharf.Credential, bool)
	Set(provider wharf.Provider, secret string) error
}

// Bridge manages conversations with the AI analysis backend.
type Bridge struct {
	ch    Dispatcher
	creds Credentials

	// FallbackDelay is the simulated latency of the no-credential fallback
	// reply. Tests shorten it.
	FallbackDelay time.Duration

	// notify, when non-nil, is called after each appended message.
	notify func(conversationID string, msg Message)

	mu    sync.Mutex
	convs map[string]*conversation
	newID func() string
}

// New creates a bridge dispatching over ch and reading credentials from
// creds at request-build time. notify may be nil.
func New(ch Dispatcher, creds Credentials, notify func(conversationID string, msg Message)) *Bridge {
	return &Bridge{
		ch:            ch,
		creds:         creds,
		FallbackDelay: DefaultFallbackDelay,
		notify:        notify,
		convs:         make(map[string]*conversation),
		newID:         uuid.NewString,
	}
}

// greeting opens every new conversation.
const greeting = "Hello! I'm your AI assistant. How can I help you with your terminal commands today?"

// NewConversation starts a conversation and returns its id.
func (b *Bridge) NewConversation() string {
	b.mu.Lock()
	conv := &conversation{id: b.newID()}
	b.convs[conv.id] = conv
	msg := b.appendLocked(conv, RoleAssistant, greeting)
	b.mu.Unlock()

	b.notifyAppend(conv.id, msg)
	return conv.id
}

// Send appends the user's message to the conversation (local echo) and
// dispatches an analysis request. With no credential configured, a local
// fallback reply is synthesized after FallbackDelay instead. A send while a
// request is outstanding only appends: the message joins the context of the
// next request rather than racing a second one.
func (b *Bridge) Send(conversationID, text string) error {
	b.mu.Lock()
	conv, ok := b.convs[conversationID]
	if !ok {
		b.mu.Unlock()
		return ErrNoConversation
	}

	context := b.contextLocked(conv)
	echo := b.appendLocked(conv, RoleUser, text)

	if conv.awaiting {
		b.mu.Unlock()
		b.notifyAppend(conversationID, echo)
		return nil
	}
	conv.awaiting = true

	cred, haveCred := b.creds.Get()
	if !haveCred {
		delay := b.FallbackDelay
		conv.fallback = time.AfterFunc(delay, func() { b.fallbackReply(conversationID, text) })
		b.mu.Unlock()
		b.notifyAppend(conversationID, echo)
		return nil
	}
	b.mu.Unlock()
	b.notifyAppend(conversationID, echo)

	err := b.ch.Dispatch(wharf.EventAIAnalyze, wharf.AIAnalyze{
		ConversationID: conversationID,
		Message:        text,
		Context:        context,
		APIKey:         cred.Secret,
		Provider:       string(cred.Provider),
	})
	if err != nil {
		// Surface the failed dispatch as a visible reply, not a crash.
		b.appendError(conversationID, fmt.Sprintf("analysis request failed: %v", err))
	}
	return nil
}

// HandleResponse appends the provider's reply. Replies are always appended,
// even when no request is outstanding: the log is authoritative history.
func (b *Bridge) HandleResponse(data json.RawMessage) {
	var resp wharf.AIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		slog.Warn("invalid ai_response", "error", err)
		return
	}

	b.mu.Lock()
	conv := b.matchLocked(resp.ConversationID)
	if conv == nil {
		b.mu.Unlock()
		slog.Debug("ai_response for unknown conversation", "conversation_id", resp.ConversationID)
		return
	}
	b.clearAwaitingLocked(conv)
	msg := b.appendLocked(conv, RoleAssistant, resp.Analysis)
	b.mu.Unlock()

	b.notifyAppend(conv.id, msg)
}

// HandleError appends a provider error as a visible assistant message.
func (b *Bridge) HandleError(data json.RawMessage) {
	var aiErr wharf.AIError
	if err := json.Unmarshal(data, &aiErr); err != nil {
		slog.Warn("invalid ai_error", "error", err)
		return
	}

	b.mu.Lock()
	conv := b.matchLocked(aiErr.ConversationID)
	if conv == nil {
		b.mu.Unlock()
		slog.Debug("ai_error for unknown conversation", "conversation_id", aiErr.ConversationID)
		return
	}
	b.clearAwaitingLocked(conv)
	msg := b.appendLocked(conv, RoleAssistant, "Analysis failed: "+aiErr.Error)
	b.mu.Unlock()

	b.notifyAppend(conv.id, msg)
}

// FailAwaiting appends a synthetic error reply to every conversation with an
// outstanding request. Invoked when the channel drops; the user resubmits.
func (b *Bridge) FailAwaiting(reason string) {
	b.mu.Lock()
	type appended struct {
		convID string
		msg    Message
	}
	var out []appended
	for _, conv := range b.convs {
		if !conv.awaiting {
			continue
		}
		b.clearAwaitingLocked(conv)
		msg := b.appendLocked(conv, RoleAssistant, "Analysis failed: "+reason)
		out = append(out, appended{conv.id, msg})
	}
	b.mu.Unlock()

	for _, a := range out {
		b.notifyAppend(a.convID, a.msg)
	}
}

// SetCredential replaces the stored credential. The secret is not validated
// here; a bad key surfaces on the first real request.
func (b *Bridge) SetCredential(provider wharf.Provider, secret string) error {
	return b.creds.Set(provider, secret)
}

// Messages returns a snapshot of the conversation's log, oldest first.
func (b *Bridge) Messages(conversationID string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.convs[conversationID]
	if !ok {
		return nil
	}
	out := make([]Message, len(conv.messages))
	copy(out, conv.messages)
	return out
}

// Awaiting reports whether the conversation has an outstanding request.
func (b *Bridge) Awaiting(conversationID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.convs[conversationID]
	return ok && conv.awaiting
}

// contextLocked formats the last messages as "<role>: <content>" lines,
// oldest first.
func (b *Bridge) contextLocked(conv *conversation) string {
	msgs := conv.messages
	if len(msgs) > contextWindow {
		msgs = msgs[len(msgs)-contextWindow:]
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
	return strings.Join(lines, "\n")
}

func (b *Bridge) appendLocked(conv *conversation, role Role, content string) Message {
	msg := Message{
		ID:        b.newID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	conv.messages = append(conv.messages, msg)
	return msg
}

// matchLocked resolves a reply to its conversation. An empty id falls back
// to the single awaiting conversation, for backends that do not echo ids.
func (b *Bridge) matchLocked(conversationID string) *conversation {
	if conversationID != "" {
		return b.convs[conversationID]
	}
	var found *conversation
	for _, conv := range b.convs {
		if conv.awaiting {
			if found != nil {
				return nil // ambiguous
			}
			found = conv
		}
	}
	return found
}

func (b *Bridge) clearAwaitingLocked(conv *conversation) {
	conv.awaiting = false
	if conv.fallback != nil {
		conv.fallback.Stop()
		conv.fallback = nil
	}
}

// fallbackReply appends the canned no-credential reply.
func (b *Bridge) fallbackReply(conversationID, userText string) {
	b.mu.Lock()
	conv, ok := b.convs[conversationID]
	if !ok || !conv.awaiting {
		b.mu.Unlock()
		return
	}
	b.clearAwaitingLocked(conv)
	msg := b.appendLocked(conv, RoleAssistant, cannedReply(userText))
	b.mu.Unlock()

	b.notifyAppend(conversationID, msg)
}

func (b *Bridge) appendError(conversationID, content string) {
	b.mu.Lock()
	conv, ok := b.convs[conversationID]
	if !ok {
		b.mu.Unlock()
		return
	}
	b.clearAwaitingLocked(conv)
	msg := b.appendLocked(conv, RoleAssistant, content)
	b.mu.Unlock()

	b.notifyAppend(conversationID, msg)
}

func (b *Bridge) notifyAppend(conversationID string, msg Message) {
	if b.notify != nil {
		b.notify(conversationID, msg)
	}
}

// cannedReplies are keyword-matched fallback answers used when no provider
// credential is configured. Keywords are checked in order so a message that
// mentions several always gets the same reply.
var cannedReplies = []struct {
	keyword string
	reply   string
}{
	{"help", "I can help you with various terminal commands. Try asking me about git, npm, docker, or any other command!"},
	{"git", "Here are some common git commands:\n- `git status` - Check repository status\n- `git add .` - Stage all changes\n- `git commit -m \"message\"` - Commit changes\n- `git push` - Push to remote repository"},
	{"npm", "Common npm commands:\n- `npm install` - Install dependencies\n- `npm start` - Start development server\n- `npm run build` - Build for production\n- `npm test` - Run tests"},
	{"docker", "Docker commands:\n- `docker build -t name .` - Build image\n- `docker run -p 3000:3000 name` - Run container\n- `docker ps` - List running containers\n- `docker stop container_id` - Stop container"},
}

func cannedReply(userText string) string {
	lower := strings.ToLower(userText)
	for _, c := range cannedReplies {
		if strings.Contains(lower, c.keyword) {
			return c.reply
		}
	}
	return fmt.Sprintf("I understand you're asking about %q. While I'd love to help with that specific command, I need a valid API key to provide detailed assistance. You can configure your API key in the settings.", userText)
}
