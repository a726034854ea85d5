package application

import (
	"context"
	"errors"
	"sync"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
)

// scriptedProvider replays Chat responses in order. Once the script runs out
// it answers with Fallback.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []domain.ChatResponse
	chatErr   error
	Fallback  domain.ChatResponse
	chunks    []string
	streamErr error
	// onStream runs when Stream starts, before any chunk is relayed.
	onStream  func()
	requests  []domain.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.chatErr != nil {
		return domain.ChatResponse{}, p.chatErr
	}
	if len(p.responses) == 0 {
		return p.Fallback, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, req domain.ChatRequest, onChunk func(string) error) error {
	p.mu.Lock()
	chunks := append([]string{}, p.chunks...)
	streamErr := p.streamErr
	onStream := p.onStream
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if onStream != nil {
		onStream()
	}

	for _, c := range chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return streamErr
}

func (p *scriptedProvider) chatCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func toolCall(id, name string, args map[string]any) domain.ChatResponse {
	return domain.ChatResponse{ToolCalls: []domain.ToolCall{{ID: id, Name: name, Args: args}}}
}

// staticToolset serves a fixed list of tools.
type staticToolset struct {
	tools []domain.NativeTool
}

func (s staticToolset) Tools() []domain.Tool {
	out := make([]domain.Tool, len(s.tools))
	for i, t := range s.tools {
		out[i] = t.Tool
	}
	return out
}

func (s staticToolset) Lookup(name string) (*domain.NativeTool, bool) {
	for i := range s.tools {
		if s.tools[i].Name == name {
			return &s.tools[i], true
		}
	}
	return nil, false
}

var errNotUsed = errors.New("not used by agent tests")

// libraryMedia is an IMediaUsecase that only serves a library snapshot.
type libraryMedia struct {
	items []domainMedia.MediaItem
	err   error
}

func (m libraryMedia) GetAllLibraryItems(context.Context, domainMedia.Session, string, string) ([]domainMedia.MediaItem, error) {
	return m.items, m.err
}

func (libraryMedia) GetServers(context.Context, domainMedia.Session) ([]domainMedia.Server, error) {
	return nil, errNotUsed
}

func (libraryMedia) GetLibraries(context.Context, domainMedia.Session, string) ([]domainMedia.Library, error) {
	return nil, errNotUsed
}

func (libraryMedia) GetLibraryItems(context.Context, domainMedia.Session, domainMedia.LibraryItemsRequest) (domainMedia.PaginatedResponse, error) {
	return domainMedia.PaginatedResponse{}, errNotUsed
}

func (libraryMedia) GetThumbnail(context.Context, domainMedia.Session, domainMedia.ThumbnailRequest) (domainMedia.Thumbnail, error) {
	return domainMedia.Thumbnail{}, errNotUsed
}

func (libraryMedia) GetWatchlist(context.Context, domainMedia.Session) ([]domainMedia.WatchlistItem, error) {
	return nil, errNotUsed
}

func (libraryMedia) GetWatchlistStatus(context.Context, domainMedia.Session, string, string) (domainMedia.WatchlistStatus, error) {
	return domainMedia.WatchlistStatus{}, errNotUsed
}

func (libraryMedia) AddToWatchlist(context.Context, domainMedia.Session, string, string) (domainMedia.WatchlistStatus, error) {
	return domainMedia.WatchlistStatus{}, errNotUsed
}

func (libraryMedia) RemoveFromWatchlist(context.Context, domainMedia.Session, string, string) (domainMedia.WatchlistStatus, error) {
	return domainMedia.WatchlistStatus{}, errNotUsed
}

// failingStore is a ConversationStore whose writes fail.
type failingStore struct {
	err error
}

func (s failingStore) Save(context.Context, int64, string, []domain.Message, string) error {
	return s.err
}

func (failingStore) LoadMessages(context.Context, int64, string) ([]domain.Message, bool, error) {
	return nil, false, nil
}

func (failingStore) ListSummaries(context.Context, int64, int) ([]domainAgent.ConversationSummary, error) {
	return []domainAgent.ConversationSummary{}, nil
}

func (failingStore) Delete(context.Context, int64, string) (bool, error) {
	return false, nil
}

func (failingStore) DisplayHistory(context.Context, int64, string) (*domainAgent.ConversationHistory, error) {
	return nil, nil
}
