// Package llmapi implements the repair agent's LLM capability (spec.md
// §6): a provider-agnostic unifiedGenerate seam over two concrete
// transports — a gRPC provider talking to a model-serving sidecar, and
// an OpenAI-compatible HTTP fallback — plus a Gateway that adapts that
// seam to the narrow per-operation interfaces pkg/graph and pkg/pipeline
// each declare. Grounded on the teacher's pkg/agent/llm_client.go
// (Go-side LLMClient/GenerateInput/Chunk shapes) and pkg/agent/prompt
// (PromptBuilder's system/user message composition).
package llmapi

import "context"

// Conversation message roles, unchanged from the teacher's constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ConversationMessage is one turn in a Request's conversation.
type ConversationMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// ToolDefinition describes a tool the model may call. The repair agent
// never hands the model live tools (every call is single-shot,
// diagnosis-then-respond), but the type is carried through from the
// teacher's shape so a future tool-using node has somewhere to put one.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string
}

// ToolCall represents a model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ResponseFormat selects how Provider.Generate should constrain output.
type ResponseFormat string

const (
	// ResponseFormatText leaves the model's output unconstrained.
	ResponseFormatText ResponseFormat = "text"
	// ResponseFormatJSON asks the provider to return a single JSON
	// object matching the caller's expected shape; Gateway methods that
	// need structured output set this and unmarshal Response.Text.
	ResponseFormatJSON ResponseFormat = "json"
)

// Request is the provider-agnostic unit of work: a full conversation,
// sampling parameters, and the caller's output-shape expectation.
type Request struct {
	Model          string
	Messages       []ConversationMessage
	Temperature    float64
	ResponseFormat ResponseFormat
	MaxTokens      int
}

// Usage reports token consumption for one Generate call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is a completed, non-streaming model reply. The repair agent
// never needs the teacher's chunked streaming: every call site consumes
// one finished diagnosis, plan, or patch body, so Provider trades the
// teacher's <-chan Chunk for a single synchronous return.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Provider is the transport seam: one call in, one call out, retried by
// the caller's discretion. GRPCProvider and OpenAICompatProvider are the
// two concrete implementations (spec.md §6: "a default SDK-based
// provider; an OpenAI-compatible fallback via HTTP with bearer auth").
type Provider interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Close() error
}
