package call

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCallID correlates a tool-role message with the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls are the calls an assistant message requested.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolSchema describes one function exposed to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall is a model-requested function invocation.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// TokenUsage is the exact token accounting reported by the model, when
// available.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Request is one model call.
type Request struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

// Response is a complete non-streaming model result.
type Response struct {
	Text      string      `json:"text"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// Chunk is one streaming increment. Exactly one of TextDelta and ToolCall
// is set, except the final chunk which may carry only Usage.
type Chunk struct {
	TextDelta string
	ToolCall  *ToolCall
	Usage     *TokenUsage
}

// TokenStream iterates streaming chunks from the model. Next returns
// io.EOF when the stream completes normally.
type TokenStream interface {
	Next() (Chunk, error)
	Close() error
}

// LLMClient is the interface the orchestrator drives the language model
// through. One implementation per vendor, selected at configure time.
type LLMClient interface {
	// Complete sends a non-streaming request.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream sends a streaming request.
	Stream(ctx context.Context, req *Request) (TokenStream, error)
}
