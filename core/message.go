package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the conversational origin of a message.
type Role string

const (
	// RoleSystem marks instruction messages injected by the application.
	RoleSystem Role = "system"
	// RoleUser marks transcribed end-user turns.
	RoleUser Role = "user"
	// RoleAssistant marks model-generated turns.
	RoleAssistant Role = "assistant"
	// RoleTool marks tool execution results fed back to the model.
	RoleTool Role = "tool"
)

// ToolCallRef records one function call requested in an assistant turn, so
// the follow-up request can replay the call/result pairing to the provider.
type ToolCallRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatMessage is a single conversation turn. Messages are immutable after
// creation; the ID is the sole identity used for merge deduplication.
type ChatMessage struct {
	ID         string        `json:"id"`
	Role       Role          `json:"role"`
	Content    string        `json:"content"`
	Name       string        `json:"name,omitempty"`         // Tool name for tool results
	ToolCallID string        `json:"tool_call_id,omitempty"` // Correlates a tool result with its call
	ToolCalls  []ToolCallRef `json:"tool_calls,omitempty"`   // Calls requested by an assistant turn
	CreatedAt  time.Time     `json:"created_at"`
}

// NewMessage constructs a message with a fresh unique id.
func NewMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewSystemMessage is shorthand for a system-role message.
func NewSystemMessage(content string) ChatMessage { return NewMessage(RoleSystem, content) }

// NewUserMessage is shorthand for a user-role message.
func NewUserMessage(content string) ChatMessage { return NewMessage(RoleUser, content) }

// NewAssistantMessage is shorthand for an assistant-role message.
func NewAssistantMessage(content string) ChatMessage { return NewMessage(RoleAssistant, content) }

// NewToolCallMessage constructs an assistant message carrying the function
// calls the model requested for this turn.
func NewToolCallMessage(content string, calls ...ToolCallRef) ChatMessage {
	m := NewMessage(RoleAssistant, content)
	m.ToolCalls = calls
	return m
}

// NewToolMessage constructs a tool-result message correlated with the
// function call that produced it.
func NewToolMessage(toolName, toolCallID, content string) ChatMessage {
	m := NewMessage(RoleTool, content)
	m.Name = toolName
	m.ToolCallID = toolCallID
	return m
}

// NewID generates a unique identifier used for messages, speech handles and
// function call correlation throughout the framework.
func NewID() string { return uuid.NewString() }
