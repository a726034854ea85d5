package application

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
	"github.com/JarvisJ/plex-ai/agentengine/repository"
	"github.com/JarvisJ/plex-ai/agentengine/tools"
	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/JarvisJ/plex-ai/infrastructure/memstore"
	"github.com/JarvisJ/plex-ai/pkg/agentmonitor"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/JarvisJ/plex-ai/pkg/turnpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var session = domainMedia.Session{UserID: 42, Username: "jj", PlexToken: "plex-token"}

func knivesOut() domainMedia.MediaItem {
	rating := 7.9
	return domainMedia.MediaItem{RatingKey: "10", Title: "Knives Out", Type: "movie", Rating: &rating, Genres: []string{"Mystery"}}
}

func newService(provider *scriptedProvider, store domain.ConversationStore, pool *turnpool.Pool) (*PlexAgentService, *agentmonitor.Monitor) {
	monitor := agentmonitor.New(100, 0)
	svc := NewPlexAgentService(Deps{
		Provider: provider,
		Media:    libraryMedia{items: []domainMedia.MediaItem{knivesOut(), {RatingKey: "11", Title: "Heat", Type: "movie"}}},
		Store:    store,
		History:  repository.NewMemoryHistoryCache(),
		Pool:     pool,
		Monitor:  monitor,
	}, Config{Model: "test-model"})
	svc.newID = func() string { return "conv-1" }
	return svc, monitor
}

func collect(t *testing.T, events <-chan domainAgent.StreamEvent) []domainAgent.StreamEvent {
	t.Helper()
	var out []domainAgent.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func eventTypes(events []domainAgent.StreamEvent) []domainAgent.StreamEventType {
	out := make([]domainAgent.StreamEventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestPlexAgentService_ChatPersistsAndFiltersItems(t *testing.T) {
	ctx := context.Background()
	provider := &scriptedProvider{responses: []domain.ChatResponse{
		toolCall("c1", tools.ToolSearchLibrary, map[string]any{"query": ""}),
		{Content: "Obviously Knives Out."},
	}}
	store := repository.NewKVConversationStore(memstore.New(), repository.ConversationStoreConfig{})
	svc, monitor := newService(provider, store, nil)

	resp, err := svc.Chat(ctx, session, domainAgent.ChatRequest{Message: "  what should I watch? ", ServerName: "Home"})
	require.NoError(t, err)

	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "assistant", resp.Message.Role)
	assert.Equal(t, "Obviously Knives Out.", resp.Message.Content)
	require.Len(t, resp.Message.MediaItems, 1)
	assert.Equal(t, "10", resp.Message.MediaItems[0].RatingKey)

	msgs, found, err := store.LoadMessages(ctx, session.UserID, "conv-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, msgs, 5)
	assert.Equal(t, domain.MessageSystem, msgs[0].Type())
	assert.Equal(t, "what should I watch?", msgs[1].Text())
	assert.Equal(t, "Obviously Knives Out.", msgs[4].Text())

	summaries, err := svc.ListConversations(ctx, session, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "what should I watch?", summaries[0].Title)

	stats := monitor.Stats(session.UserID)
	assert.Equal(t, int64(1), stats.TotalTurns)
	assert.Equal(t, int64(1), stats.TotalToolCalls)
	assert.Equal(t, int64(1), stats.TotalCompleted)
}

func TestPlexAgentService_SecondTurnContinuesHistory(t *testing.T) {
	ctx := context.Background()
	provider := &scriptedProvider{responses: []domain.ChatResponse{{Content: "one"}, {Content: "two"}}}
	svc, _ := newService(provider, nil, nil)

	_, err := svc.Chat(ctx, session, domainAgent.ChatRequest{Message: "first", ServerName: "Home"})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, session, domainAgent.ChatRequest{Message: "second", ServerName: "Home", ConversationID: "conv-1"})
	require.NoError(t, err)

	last := provider.requests[len(provider.requests)-1].Messages
	require.Len(t, last, 4)
	assert.Equal(t, "first", last[1].Text())
	assert.Equal(t, "one", last[2].Text())
	assert.Equal(t, "second", last[3].Text())
}

func TestPlexAgentService_ChatValidation(t *testing.T) {
	svc, _ := newService(&scriptedProvider{}, nil, nil)

	_, err := svc.Chat(context.Background(), session, domainAgent.ChatRequest{Message: "   ", ServerName: "Home"})
	var validation pkgError.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = svc.Chat(context.Background(), session, domainAgent.ChatRequest{Message: "hi"})
	assert.ErrorAs(t, err, &validation)
}

func TestPlexAgentService_ChatStreamEventOrder(t *testing.T) {
	provider := &scriptedProvider{
		responses: []domain.ChatResponse{
			toolCall("c1", tools.ToolMediaDetails, map[string]any{"title": "Knives Out"}),
			{Content: "ignored, the answer is streamed"},
		},
		chunks: []string{"Knives ", "Out, ", "naturally."},
	}
	store := repository.NewKVConversationStore(memstore.New(), repository.ConversationStoreConfig{})
	svc, _ := newService(provider, store, nil)

	events, err := svc.ChatStream(context.Background(), session, domainAgent.ChatRequest{Message: "pick one", ServerName: "Home"})
	require.NoError(t, err)
	got := collect(t, events)

	assert.Equal(t, []domainAgent.StreamEventType{
		domainAgent.EventConversationID,
		domainAgent.EventToolCall,
		domainAgent.EventContent,
		domainAgent.EventContent,
		domainAgent.EventContent,
		domainAgent.EventMediaItems,
		domainAgent.EventDone,
	}, eventTypes(got))
	assert.Equal(t, "conv-1", got[0].ConversationID)
	assert.Equal(t, tools.ToolMediaDetails, got[1].Tool)
	require.Len(t, got[5].Items, 1)
	assert.Equal(t, "Knives Out", got[5].Items[0].Title)

	msgs, found, err := store.LoadMessages(context.Background(), session.UserID, "conv-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Knives Out, naturally.", msgs[len(msgs)-1].Text())
}

func TestPlexAgentService_ChatStreamErrorEndsWithDone(t *testing.T) {
	provider := &scriptedProvider{
		responses: []domain.ChatResponse{{Content: "unused"}},
		chunks:    []string{"partial"},
		streamErr: errors.New("connection reset"),
	}
	svc, monitor := newService(provider, nil, nil)

	events, err := svc.ChatStream(context.Background(), session, domainAgent.ChatRequest{Message: "hi", ServerName: "Home"})
	require.NoError(t, err)
	got := collect(t, events)

	assert.Equal(t, []domainAgent.StreamEventType{
		domainAgent.EventConversationID,
		domainAgent.EventContent,
		domainAgent.EventError,
		domainAgent.EventDone,
	}, eventTypes(got))
	assert.Equal(t, "connection reset", got[2].Error)

	stats := monitor.Stats(session.UserID)
	assert.Equal(t, int64(1), stats.TotalErrors)
}

func TestPlexAgentService_ChatStreamOnPool(t *testing.T) {
	pool := turnpool.New(2, 4)
	pool.Start(context.Background())
	defer pool.Stop()

	provider := &scriptedProvider{responses: []domain.ChatResponse{{}}, chunks: []string{"hello"}}
	svc, _ := newService(provider, nil, pool)

	events, err := svc.ChatStream(context.Background(), session, domainAgent.ChatRequest{Message: "hi", ServerName: "Home"})
	require.NoError(t, err)
	got := collect(t, events)
	assert.Equal(t, domainAgent.EventDone, got[len(got)-1].Type)
}

func TestPlexAgentService_ChatStreamRejectedWhenPoolUnavailable(t *testing.T) {
	pool := turnpool.New(1, 1)
	svc, _ := newService(&scriptedProvider{}, nil, pool)

	_, err := svc.ChatStream(context.Background(), session, domainAgent.ChatRequest{Message: "hi", ServerName: "Home"})
	var unavailable pkgError.ServiceUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestPlexAgentService_Conversations(t *testing.T) {
	ctx := context.Background()
	provider := &scriptedProvider{responses: []domain.ChatResponse{{Content: "hey"}}}
	store := repository.NewKVConversationStore(memstore.New(), repository.ConversationStoreConfig{})
	svc, _ := newService(provider, store, nil)

	_, err := svc.Chat(ctx, session, domainAgent.ChatRequest{Message: "hello", ServerName: "Home"})
	require.NoError(t, err)

	history, err := svc.GetConversation(ctx, session, "conv-1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)

	_, err = svc.GetConversation(ctx, session, "missing")
	var notFound pkgError.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	cleared, err := svc.ClearConversation(ctx, session, "conv-1")
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = svc.ClearConversation(ctx, session, "conv-1")
	require.NoError(t, err)
	assert.False(t, cleared)

	// Other users never see this user's conversations.
	other := domainMedia.Session{UserID: 7, PlexToken: "t"}
	summaries, err := svc.ListConversations(ctx, other, 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestPlexAgentService_WithoutStoreListsNothing(t *testing.T) {
	svc, _ := newService(&scriptedProvider{}, nil, nil)

	summaries, err := svc.ListConversations(context.Background(), session, 10)
	require.NoError(t, err)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)

	_, err = svc.GetConversation(context.Background(), session, "any")
	var notFound pkgError.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPlexAgentService_LibraryFailureFailsTurn(t *testing.T) {
	script := func() *scriptedProvider {
		return &scriptedProvider{
			responses: []domain.ChatResponse{toolCall("c1", tools.ToolSearchLibrary, map[string]any{"query": "heat"})},
			Fallback:  domain.ChatResponse{Content: "done"},
			chunks:    []string{"done"},
		}
	}
	newFailing := func(provider *scriptedProvider) (*PlexAgentService, *agentmonitor.Monitor) {
		svc, monitor := newService(provider, nil, nil)
		svc.deps.Media = libraryMedia{err: errors.New("plex unreachable")}
		return svc, monitor
	}

	svc, monitor := newFailing(script())
	_, err := svc.Chat(context.Background(), session, domainAgent.ChatRequest{Message: "heat?", ServerName: "Home"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plex unreachable")
	assert.Equal(t, int64(1), monitor.Stats(session.UserID).TotalErrors)

	svc, _ = newFailing(script())
	events, err := svc.ChatStream(context.Background(), session, domainAgent.ChatRequest{Message: "heat?", ServerName: "Home"})
	require.NoError(t, err)
	got := collect(t, events)
	assert.Equal(t, []domainAgent.StreamEventType{
		domainAgent.EventConversationID,
		domainAgent.EventToolCall,
		domainAgent.EventError,
		domainAgent.EventDone,
	}, eventTypes(got))
	assert.Contains(t, got[2].Error, "plex unreachable")
}

func TestPlexAgentService_StoreWriteFailureFailsTurn(t *testing.T) {
	store := failingStore{err: errors.New("store down")}

	svc, _ := newService(&scriptedProvider{Fallback: domain.ChatResponse{Content: "hello"}}, store, nil)
	_, err := svc.Chat(context.Background(), session, domainAgent.ChatRequest{Message: "hi", ServerName: "Home"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
	// The in-process copy is still updated.
	cached, ok := svc.deps.History.Get(historyKey(session.UserID, "conv-1"))
	require.True(t, ok)
	assert.Equal(t, "hello", cached[len(cached)-1].Text())

	svc, _ = newService(&scriptedProvider{chunks: []string{"hello"}}, store, nil)
	events, err := svc.ChatStream(context.Background(), session, domainAgent.ChatRequest{Message: "hi", ServerName: "Home"})
	require.NoError(t, err)
	got := collect(t, events)
	assert.Equal(t, []domainAgent.StreamEventType{
		domainAgent.EventConversationID,
		domainAgent.EventContent,
		domainAgent.EventError,
		domainAgent.EventDone,
	}, eventTypes(got))
	assert.Contains(t, got[2].Error, "store down")
}

func TestPlexAgentService_ChatStreamPersistsAfterConsumerLeaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &scriptedProvider{
		onStream: cancel,
		chunks:   []string{"Heat ", "is ", "great."},
	}
	store := repository.NewKVConversationStore(memstore.New(), repository.ConversationStoreConfig{})
	svc, monitor := newService(provider, store, nil)

	events, err := svc.ChatStream(ctx, session, domainAgent.ChatRequest{Message: "one pick", ServerName: "Home"})
	require.NoError(t, err)
	got := collect(t, events)
	for _, ev := range got {
		assert.NotEqual(t, domainAgent.EventError, ev.Type)
	}

	msgs, found, err := store.LoadMessages(context.Background(), session.UserID, "conv-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one pick", msgs[1].Text())
	assert.Equal(t, "Heat is great.", msgs[2].Text())
	assert.Equal(t, int64(1), monitor.Stats(session.UserID).TotalCompleted)
}
