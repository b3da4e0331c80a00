package agentprovider

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrSessionEnded is returned by SendPrompt once End has been called.
var ErrSessionEnded = errors.New("agentprovider: session has ended")

// MessageKind is the kind of message a Session yields.
type MessageKind string

const (
	MessageAssistant MessageKind = "assistant"
	MessageUser      MessageKind = "user"
	MessageSystem    MessageKind = "system"
	MessageResult    MessageKind = "result"
)

// SystemSubtype enumerates the known subtypes carried by a MessageSystem
// message.
type SystemSubtype string

const (
	SubtypeTurnLimitReached  SystemSubtype = "turn_limit_reached"
	SubtypeConversationEnded SystemSubtype = "conversation_ended"
)

// PartKind is the kind of a content Part within an assistant Message.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolUse    PartKind = "tool_use"
	PartToolResult PartKind = "tool_result"
)

// ToolUse is a tool invocation requested by the agent.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is the outcome of a tool invocation fed back to the agent.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Part is one element of an assistant Message's ordered content list.
// Exactly one of Text, ToolUse, or ToolResult is populated, matching Kind.
type Part struct {
	Kind       PartKind
	Text       string
	ToolUse    *ToolUse
	ToolResult *ToolResult
}

// Message is one item in the lazy sequence a Session yields.
type Message struct {
	Kind      MessageKind
	SessionID string
	Subtype   SystemSubtype
	Parts     []Part
}

// PermissionDecision is the result a PermissionGuard returns for a single
// tool call attempt.
type PermissionDecision struct {
	Allow        bool
	UpdatedInput map[string]any
	Message      string
}

// PermissionGuard is invoked by a Session before it executes a tool the
// backend reports as requiring approval. toolID is the tracker-assigned
// identifier, present once the caller has registered the attempt.
type PermissionGuard func(ctx context.Context, toolName string, input map[string]any, toolID string) (PermissionDecision, error)

// Config configures one Session. Fields not meaningful to a given backend
// are ignored by that backend.
type Config struct {
	SystemPrompt    string
	AllowedTools    []string // nil or containing "all" means unrestricted
	DisallowedTools []string
	MaxTurns        int
	ProjectDir      string
	MCPEndpoint     string
	Model           string
	BaseURL         string
	APIKey          string
	Guard           PermissionGuard
	Log             zerolog.Logger
}

// AllowsAll reports whether the configured tool list is unrestricted.
func (c Config) AllowsAll() bool {
	if len(c.AllowedTools) == 0 {
		return true
	}
	for _, t := range c.AllowedTools {
		if t == "all" {
			return true
		}
	}
	return false
}

// Session is an external LLM coding agent conversation.
type Session interface {
	// SendPrompt enqueues a user message. It must not block indefinitely;
	// backends that cannot accept a new prompt mid-turn queue it.
	SendPrompt(ctx context.Context, text string) error

	// Messages returns the channel of messages yielded by this session.
	// The channel is closed when the backend's underlying stream fails or
	// ends, or when the session ends; Interrupt does not close it.
	Messages() <-chan Message

	// Interrupt best-effort cancels in-flight work, so the current turn
	// stops producing messages soon after. It does not close the Messages
	// channel.
	Interrupt()

	// End disposes the session's resources. A Session must not be used
	// after End returns; SendPrompt after End returns ErrSessionEnded.
	End() error
}
