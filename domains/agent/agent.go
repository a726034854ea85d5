package agent

import (
	"context"

	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
)

type AgentMessage struct {
	Role       string                  `json:"role"`
	Content    string                  `json:"content"`
	MediaItems []domainMedia.MediaItem `json:"media_items"`
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	ServerName     string `json:"server_name"`
}

type ChatResponse struct {
	ConversationID string       `json:"conversation_id"`
	Message        AgentMessage `json:"message"`
}

type ConversationSummary struct {
	ConversationID string  `json:"conversation_id"`
	Title          string  `json:"title"`
	CreatedAt      float64 `json:"created_at"`
	UpdatedAt      float64 `json:"updated_at"`
}

type ConversationHistory struct {
	ConversationID string         `json:"conversation_id"`
	Title          string         `json:"title"`
	Messages       []AgentMessage `json:"messages"`
}

type StreamEventType string

const (
	EventConversationID StreamEventType = "conversation_id"
	EventToolCall       StreamEventType = "tool_call"
	EventContent        StreamEventType = "content"
	EventMediaItems     StreamEventType = "media_items"
	EventError          StreamEventType = "error"
	EventDone           StreamEventType = "done"
)

// StreamEvent is one typed event of a streamed turn. Only the field matching
// Type is set.
type StreamEvent struct {
	Type           StreamEventType         `json:"type"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	Tool           string                  `json:"tool,omitempty"`
	Content        string                  `json:"content,omitempty"`
	Items          []domainMedia.MediaItem `json:"items,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// IAgentUsecase is the chat surface exposed to transports.
type IAgentUsecase interface {
	Chat(ctx context.Context, session domainMedia.Session, req ChatRequest) (ChatResponse, error)
	// ChatStream returns a channel of events that always ends with EventDone and is then closed.
	ChatStream(ctx context.Context, session domainMedia.Session, req ChatRequest) (<-chan StreamEvent, error)
	ClearConversation(ctx context.Context, session domainMedia.Session, conversationID string) (bool, error)
	ListConversations(ctx context.Context, session domainMedia.Session, limit int) ([]ConversationSummary, error)
	GetConversation(ctx context.Context, session domainMedia.Session, conversationID string) (*ConversationHistory, error)
}
