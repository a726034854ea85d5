package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	"github.com/JarvisJ/plex-ai/domains/kvstore"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/JarvisJ/plex-ai/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	DefaultConversationTTL = 30 * 24 * time.Hour
	DefaultMaxPerUser      = 50
	DefaultListLimit       = 20

	// PlaceholderTitle is used when a history has no human message.
	PlaceholderTitle = "New conversation"
	untitled         = "Untitled"
	maxTitleRunes    = 80

	fieldTitle     = "title"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
	fieldMessages  = "messages"
)

type ConversationStoreConfig struct {
	// Namespace prefixes every key. It is kept apart from the cache namespace
	// so clearing a user's cache leaves their chat history alone.
	Namespace  string
	TTL        time.Duration
	MaxPerUser int
}

// KVConversationStore keeps each conversation as a hash
// ({ns}:record:{user}:{conversation}) and a per-user sorted set
// ({ns}:index:{user}) scored by last update time.
type KVConversationStore struct {
	store      kvstore.Store
	namespace  string
	ttl        time.Duration
	maxPerUser int
	now        func() time.Time
}

func NewKVConversationStore(store kvstore.Store, cfg ConversationStoreConfig) *KVConversationStore {
	if cfg.Namespace == "" {
		cfg.Namespace = "conv"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConversationTTL
	}
	if cfg.MaxPerUser <= 0 {
		cfg.MaxPerUser = DefaultMaxPerUser
	}
	return &KVConversationStore{
		store:      store,
		namespace:  cfg.Namespace,
		ttl:        cfg.TTL,
		maxPerUser: cfg.MaxPerUser,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests to control recency scores.
func (s *KVConversationStore) WithClock(now func() time.Time) *KVConversationStore {
	s.now = now
	return s
}

func (s *KVConversationStore) recordKey(userID int64, conversationID string) string {
	return fmt.Sprintf("%s:record:%d:%s", s.namespace, userID, conversationID)
}

func (s *KVConversationStore) indexKey(userID int64) string {
	return fmt.Sprintf("%s:index:%d", s.namespace, userID)
}

// DeriveTitle returns the trimmed first non-empty human message, cut to 77
// characters plus "..." when longer than 80. It never fails.
func DeriveTitle(messages []domain.Message) string {
	for _, m := range messages {
		human, ok := m.(domain.HumanMessage)
		if !ok {
			continue
		}
		content := strings.TrimSpace(human.Content)
		if content == "" {
			continue
		}
		if utf8.RuneCountInString(content) > maxTitleRunes {
			runes := []rune(content)
			return string(runes[:maxTitleRunes-3]) + "..."
		}
		return content
	}
	return PlaceholderTitle
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseScore(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func (s *KVConversationStore) Save(ctx context.Context, userID int64, conversationID string, messages []domain.Message, title string) error {
	now := unixSeconds(s.now())
	recordKey := s.recordKey(userID, conversationID)
	indexKey := s.indexKey(userID)

	if title == "" {
		title = DeriveTitle(messages)
	}

	encoded, err := domain.EncodeMessages(messages)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", conversationID, err)
	}

	createdAt := now
	existing, err := s.store.HGet(ctx, recordKey, fieldCreatedAt)
	switch {
	case err == nil && existing != "":
		createdAt = parseScore(existing)
	case err != nil && !errors.Is(err, kvstore.ErrNil):
		return fmt.Errorf("read created_at: %w", err)
	}

	_, err = s.store.Tx().
		HSet(recordKey, map[string]string{
			fieldTitle:     title,
			fieldCreatedAt: formatScore(createdAt),
			fieldUpdatedAt: formatScore(now),
			fieldMessages:  string(encoded),
		}).
		Expire(recordKey, s.ttl).
		ZAdd(indexKey, now, conversationID).
		Expire(indexKey, s.ttl).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conversationID, err)
	}

	return s.evictOverflow(ctx, userID)
}

// evictOverflow removes exactly count-max of the user's oldest conversations.
func (s *KVConversationStore) evictOverflow(ctx context.Context, userID int64) error {
	indexKey := s.indexKey(userID)
	count, err := s.store.ZCard(ctx, indexKey)
	if err != nil {
		return fmt.Errorf("count conversations: %w", err)
	}
	excess := count - int64(s.maxPerUser)
	if excess <= 0 {
		return nil
	}

	oldest, err := s.store.ZRange(ctx, indexKey, 0, excess-1)
	if err != nil {
		return fmt.Errorf("list oldest conversations: %w", err)
	}
	if len(oldest) == 0 {
		return nil
	}

	keys := make([]string, len(oldest))
	for i, id := range oldest {
		keys[i] = s.recordKey(userID, id)
	}
	if _, err := s.store.Tx().Del(keys...).ZRem(indexKey, oldest...).Exec(ctx); err != nil {
		return fmt.Errorf("evict conversations: %w", err)
	}

	metrics.ConversationsEvicted(len(oldest))
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"evicted": len(oldest),
	}).Debug("[CONV] evicted oldest conversations")
	return nil
}

func (s *KVConversationStore) LoadMessages(ctx context.Context, userID int64, conversationID string) ([]domain.Message, bool, error) {
	raw, err := s.store.HGet(ctx, s.recordKey(userID, conversationID), fieldMessages)
	if errors.Is(err, kvstore.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	msgs, err := domain.DecodeMessages([]byte(raw))
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

func (s *KVConversationStore) ListSummaries(ctx context.Context, userID int64, limit int) ([]domainAgent.ConversationSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	ids, err := s.store.ZRevRange(ctx, s.indexKey(userID), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	results := make([]domainAgent.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		data, err := s.store.HGetAll(ctx, s.recordKey(userID, id))
		if err != nil {
			return nil, err
		}
		// Index entry without a record: expired or evicted out of band.
		if len(data) == 0 {
			continue
		}
		results = append(results, domainAgent.ConversationSummary{
			ConversationID: id,
			Title:          titleOrUntitled(data),
			CreatedAt:      parseScore(data[fieldCreatedAt]),
			UpdatedAt:      parseScore(data[fieldUpdatedAt]),
		})
	}
	return results, nil
}

func (s *KVConversationStore) Delete(ctx context.Context, userID int64, conversationID string) (bool, error) {
	replies, err := s.store.Tx().
		Del(s.recordKey(userID, conversationID)).
		ZRem(s.indexKey(userID), conversationID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	return len(replies) > 0 && replies[0] > 0, nil
}

func (s *KVConversationStore) DisplayHistory(ctx context.Context, userID int64, conversationID string) (*domainAgent.ConversationHistory, error) {
	data, err := s.store.HGetAll(ctx, s.recordKey(userID, conversationID))
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	raw := data[fieldMessages]
	if len(data) == 0 || raw == "" {
		return nil, nil
	}

	msgs, err := domain.DecodeMessages([]byte(raw))
	if err != nil {
		return nil, err
	}
	return &domainAgent.ConversationHistory{
		ConversationID: conversationID,
		Title:          titleOrUntitled(data),
		Messages:       DisplayMessages(msgs),
	}, nil
}

// DisplayMessages keeps human and assistant messages with content, mapped to
// the user/assistant roles shown to end users.
func DisplayMessages(msgs []domain.Message) []domainAgent.AgentMessage {
	out := make([]domainAgent.AgentMessage, 0, len(msgs))
	for _, m := range msgs {
		var role string
		switch m.(type) {
		case domain.HumanMessage:
			role = "user"
		case domain.AssistantMessage:
			role = "assistant"
		default:
			continue
		}
		if m.Text() == "" {
			continue
		}
		out = append(out, domainAgent.AgentMessage{
			Role:       role,
			Content:    m.Text(),
			MediaItems: []domainMedia.MediaItem{},
		})
	}
	return out
}

func titleOrUntitled(data map[string]string) string {
	if t, ok := data[fieldTitle]; ok {
		return t
	}
	return untitled
}
