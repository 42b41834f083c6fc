// Package llm defines the chat-completion interface the agent loop talks to,
// including tool definitions and tool calls.
package llm

import (
	"context"

	"github.com/chriscow/ambient-agents-go/pkg/ai"
)

// Classification errors, aliased so LLM callers need not import ai.
var (
	// ErrRecoverable indicates a temporary LLM failure that may succeed if retried.
	// Examples: rate limiting, temporary service overload, network issues.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent LLM failure that will not succeed if retried.
	// Examples: invalid API key, unsupported model, content policy violation.
	ErrFatal = ai.ErrFatal
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCall is a request from the model to invoke a named tool.
// Arguments is the raw JSON object the model produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message represents a single message in a conversation.
// Assistant messages may carry ToolCalls; tool messages answer exactly one
// call through ToolCallID.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content,omitempty"`
	Name       string      `json:"name,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes a tool the model may call. Parameters is a JSON
// schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest contains parameters for chat completion.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// ChatResponse contains the result of chat completion.
type ChatResponse struct {
	Message      Message
	TokensUsed   int
	FinishReason string
}

// HasToolCalls reports whether the model asked for tool invocations.
func (r ChatResponse) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}

// LLMCapabilities describes the capabilities of an LLM provider.
type LLMCapabilities struct {
	SupportsTools     bool
	SupportsStreaming bool
	MaxTokens         int
	SupportedModels   []string
}

// LLM is the main interface for large language model providers.
type LLM interface {
	// Chat processes a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() LLMCapabilities
}
