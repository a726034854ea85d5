package domain

import (
	"context"

	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
)

// ConversationStore persists histories per (user, conversation) with a
// per-user recency index.
type ConversationStore interface {
	// Save writes messages. An empty title is derived from the first human message.
	Save(ctx context.Context, userID int64, conversationID string, messages []Message, title string) error
	// LoadMessages returns (nil, false, nil) when no record exists.
	LoadMessages(ctx context.Context, userID int64, conversationID string) ([]Message, bool, error)
	ListSummaries(ctx context.Context, userID int64, limit int) ([]domainAgent.ConversationSummary, error)
	Delete(ctx context.Context, userID int64, conversationID string) (bool, error)
	// DisplayHistory returns (nil, nil) when no record exists.
	DisplayHistory(ctx context.Context, userID int64, conversationID string) (*domainAgent.ConversationHistory, error)
}

// HistoryCache is the in-process conversation cache. It is never authoritative;
// the ConversationStore is.
type HistoryCache interface {
	Get(conversationID string) ([]Message, bool)
	Put(conversationID string, messages []Message)
	Delete(conversationID string) bool
	Len() int
}
