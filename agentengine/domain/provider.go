package domain

import "context"

// ChatRequest is a provider-agnostic model invocation.
type ChatRequest struct {
	Messages    []Message
	Tools       []Tool
	Model       string
	Temperature float64
}

// ChatResponse is either a final answer (no ToolCalls) or a tool-call request.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

func (r ChatResponse) Message() AssistantMessage {
	return AssistantMessage{Content: r.Content, ToolCalls: r.ToolCalls}
}

// LLMProvider is the thin interface every model backend implements.
type LLMProvider interface {
	// Chat sends the history with the tool catalog bound.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Stream generates a final answer and hands each non-empty text delta to onChunk.
	// Streamed calls never issue new tool calls.
	Stream(ctx context.Context, req ChatRequest, onChunk func(string) error) error
}
