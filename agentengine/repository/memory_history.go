package repository

import (
	"sync"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
)

// MemoryHistoryCache keeps conversation histories in process, keyed by conversation id.
// It is shared by every request of the process and is not authoritative.
type MemoryHistoryCache struct {
	mu      sync.RWMutex
	history map[string][]domain.Message
}

func NewMemoryHistoryCache() *MemoryHistoryCache {
	return &MemoryHistoryCache{
		history: make(map[string][]domain.Message),
	}
}

func (s *MemoryHistoryCache) Get(conversationID string) ([]domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.history[conversationID]
	if !ok {
		return nil, false
	}
	// Copy so callers can append without racing other turns.
	cpy := make([]domain.Message, len(msgs))
	copy(cpy, msgs)
	return cpy, true
}

func (s *MemoryHistoryCache) Put(conversationID string, messages []domain.Message) {
	cpy := make([]domain.Message, len(messages))
	copy(cpy, messages)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[conversationID] = cpy
}

func (s *MemoryHistoryCache) Delete(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history[conversationID]; !ok {
		return false
	}
	delete(s.history, conversationID)
	return true
}

func (s *MemoryHistoryCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
