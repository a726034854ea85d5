package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
	"github.com/JarvisJ/plex-ai/agentengine/tools"
	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/JarvisJ/plex-ai/pkg/agentmonitor"
	"github.com/JarvisJ/plex-ai/pkg/metrics"
	"github.com/JarvisJ/plex-ai/pkg/turnpool"
	"github.com/JarvisJ/plex-ai/validations"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultStreamBuffer = 32

type Config struct {
	Model         string
	Temperature   float64
	MaxIterations int
	// StreamBuffer bounds the event channel of a streamed turn.
	StreamBuffer int
	ListLimit    int
	SystemPrompt string
}

// Deps are the collaborators of PlexAgentService. Store, Search, Pool and
// Monitor are optional.
type Deps struct {
	Provider domain.LLMProvider
	Media    domainMedia.IMediaUsecase
	Search   tools.SearchProvider
	Store    domain.ConversationStore
	History  domain.HistoryCache
	Pool     *turnpool.Pool
	Monitor  *agentmonitor.Monitor
}

var _ domainAgent.IAgentUsecase = (*PlexAgentService)(nil)

// PlexAgentService answers chat turns about a user's Plex library.
type PlexAgentService struct {
	deps  Deps
	cfg   Config
	newID func() string
	now   func() time.Time
}

func NewPlexAgentService(deps Deps, cfg Config) *PlexAgentService {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = defaultStreamBuffer
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	return &PlexAgentService{
		deps:  deps,
		cfg:   cfg,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

func (s *PlexAgentService) runner() Runner {
	return Runner{
		Provider:      s.deps.Provider,
		Model:         s.cfg.Model,
		Temperature:   s.cfg.Temperature,
		MaxIterations: s.cfg.MaxIterations,
	}
}

// toolset binds the library tools to one server. The snapshot is loaded at
// most once for the turn.
func (s *PlexAgentService) toolset(session domainMedia.Session, serverName string) *tools.PlexToolset {
	library := tools.NewLibrary(func(ctx context.Context) ([]domainMedia.MediaItem, error) {
		return s.deps.Media.GetAllLibraryItems(ctx, session, serverName, "")
	})
	return tools.NewPlexToolset(library, s.deps.Search).WithClock(s.now)
}

func (s *PlexAgentService) record(session domainMedia.Session, conversationID, mode, stage string, fields ...func(*agentmonitor.Event)) {
	ev := agentmonitor.Event{
		UserID:         session.UserID,
		ConversationID: conversationID,
		Mode:           mode,
		Stage:          stage,
		Status:         agentmonitor.StatusOk,
	}
	for _, f := range fields {
		f(&ev)
	}
	s.deps.Monitor.Record(ev)
}

func toolEvent(name string) func(*agentmonitor.Event) {
	return func(ev *agentmonitor.Event) { ev.Tool = name }
}

// turnDone fills the outcome of a finished turn.
func turnDone(started time.Time, err error) func(*agentmonitor.Event) {
	return func(ev *agentmonitor.Event) {
		ev.DurationMs = time.Since(started).Milliseconds()
		if err != nil {
			ev.Status = agentmonitor.StatusError
			ev.Error = err.Error()
		}
	}
}

func historyKey(userID int64, conversationID string) string {
	return fmt.Sprintf("%d:%s", userID, conversationID)
}

func (s *PlexAgentService) persistent(session domainMedia.Session) bool {
	return s.deps.Store != nil && session.UserID != 0
}

// loadHistory resolves a conversation from the in-process cache, then the
// store, and otherwise starts a new one with the system prompt.
func (s *PlexAgentService) loadHistory(ctx context.Context, session domainMedia.Session, conversationID string) []domain.Message {
	if msgs, ok := s.deps.History.Get(historyKey(session.UserID, conversationID)); ok {
		return msgs
	}
	if s.persistent(session) {
		msgs, found, err := s.deps.Store.LoadMessages(ctx, session.UserID, conversationID)
		if err != nil {
			logrus.WithError(err).WithField("conversation_id", conversationID).Warn("[AGENT] could not load stored conversation")
		}
		if found && len(msgs) > 0 {
			return msgs
		}
	}
	return []domain.Message{domain.SystemMessage{Content: s.cfg.SystemPrompt}}
}

// saveHistory always updates the in-process cache; a failed store write fails
// the turn.
func (s *PlexAgentService) saveHistory(ctx context.Context, session domainMedia.Session, conversationID string, history []domain.Message) error {
	s.deps.History.Put(historyKey(session.UserID, conversationID), history)
	if !s.persistent(session) {
		return nil
	}
	if err := s.deps.Store.Save(ctx, session.UserID, conversationID, history, ""); err != nil {
		logrus.WithError(err).WithField("conversation_id", conversationID).Error("[AGENT] could not persist conversation")
		return fmt.Errorf("persist conversation: %w", err)
	}
	return nil
}

func (s *PlexAgentService) Chat(ctx context.Context, session domainMedia.Session, req domainAgent.ChatRequest) (domainAgent.ChatResponse, error) {
	if err := validations.ValidateChatRequest(ctx, req); err != nil {
		return domainAgent.ChatResponse{}, err
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = s.newID()
	}
	started := time.Now()
	s.record(session, conversationID, "sync", agentmonitor.StageTurnStart)

	history := s.loadHistory(ctx, session, conversationID)
	history = append(history, domain.HumanMessage{Content: strings.TrimSpace(req.Message)})

	result, err := s.runner().Run(ctx, history, s.toolset(session, req.ServerName), func(name string) error {
		s.record(session, conversationID, "sync", agentmonitor.StageToolCall, toolEvent(name))
		return nil
	})
	if err != nil {
		s.record(session, conversationID, "sync", agentmonitor.StageTurnDone, turnDone(started, err))
		return domainAgent.ChatResponse{}, err
	}
	history = result.History
	if result.Final != nil {
		history = append(history, result.Final.Message())
	}
	answer := result.Answer()

	if err := s.saveHistory(ctx, session, conversationID, history); err != nil {
		s.record(session, conversationID, "sync", agentmonitor.StageTurnDone, turnDone(started, err))
		return domainAgent.ChatResponse{}, err
	}
	metrics.Turn("sync", started, result.Iterations)
	s.record(session, conversationID, "sync", agentmonitor.StageTurnDone, turnDone(started, nil))

	return domainAgent.ChatResponse{
		ConversationID: conversationID,
		Message: domainAgent.AgentMessage{
			Role:       "assistant",
			Content:    answer,
			MediaItems: FilterMentioned(result.Items, answer),
		},
	}, nil
}

// ChatStream validates the request and starts the turn on the pool, or on
// its own goroutine when no pool is configured. The returned channel carries
// conversation_id, any tool_call events, content chunks, media_items when
// non-empty, and always ends with done before it is closed. A failure
// mid-turn is reported as an error event ahead of done.
//
// Cancelling ctx only means the consumer is gone: the turn still runs to
// completion and persists, and its remaining events are dropped.
func (s *PlexAgentService) ChatStream(ctx context.Context, session domainMedia.Session, req domainAgent.ChatRequest) (<-chan domainAgent.StreamEvent, error) {
	if err := validations.ValidateChatRequest(ctx, req); err != nil {
		return nil, err
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = s.newID()
	}

	events := make(chan domainAgent.StreamEvent, s.cfg.StreamBuffer)
	turn := func(context.Context) error {
		defer close(events)
		return s.streamTurn(ctx, session, conversationID, req, events)
	}

	if s.deps.Pool == nil {
		go func() { _ = turn(context.Background()) }()
		return events, nil
	}
	if !s.deps.Pool.TryDispatch(turnpool.Job{Key: turnpool.ConversationKey(session.UserID, conversationID), Handler: turn}) {
		return nil, pkgError.ServiceUnavailableError("too many conversations in progress, try again shortly")
	}
	return events, nil
}

// streamTurn runs the turn detached from consumerCtx. Once consumerCtx is done
// events are dropped instead of delivered.
func (s *PlexAgentService) streamTurn(consumerCtx context.Context, session domainMedia.Session, conversationID string, req domainAgent.ChatRequest, events chan<- domainAgent.StreamEvent) error {
	ctx := context.WithoutCancel(consumerCtx)
	emit := func(ev domainAgent.StreamEvent) {
		if consumerCtx.Err() != nil {
			return
		}
		select {
		case events <- ev:
		case <-consumerCtx.Done():
		}
	}
	started := time.Now()
	s.record(session, conversationID, "stream", agentmonitor.StageTurnStart)

	err := s.runStream(ctx, session, conversationID, req, emit, started)
	s.record(session, conversationID, "stream", agentmonitor.StageTurnDone, turnDone(started, err))
	if err != nil {
		logrus.WithError(err).WithField("conversation_id", conversationID).Error("[AGENT] streamed turn failed")
		emit(domainAgent.StreamEvent{Type: domainAgent.EventError, Error: err.Error()})
	}
	if consumerCtx.Err() != nil {
		logrus.WithField("conversation_id", conversationID).Debug("[AGENT] consumer left before the turn finished")
	}
	emit(domainAgent.StreamEvent{Type: domainAgent.EventDone})
	return err
}

func (s *PlexAgentService) runStream(ctx context.Context, session domainMedia.Session, conversationID string, req domainAgent.ChatRequest, emit func(domainAgent.StreamEvent), started time.Time) error {
	emit(domainAgent.StreamEvent{Type: domainAgent.EventConversationID, ConversationID: conversationID})

	history := s.loadHistory(ctx, session, conversationID)
	history = append(history, domain.HumanMessage{Content: strings.TrimSpace(req.Message)})

	toolset := s.toolset(session, req.ServerName)
	result, err := s.runner().Run(ctx, history, toolset, func(name string) error {
		s.record(session, conversationID, "stream", agentmonitor.StageToolCall, toolEvent(name))
		emit(domainAgent.StreamEvent{Type: domainAgent.EventToolCall, Tool: name})
		return nil
	})
	if err != nil {
		return err
	}
	history = result.History

	var answer strings.Builder
	err = s.deps.Provider.Stream(ctx, domain.ChatRequest{
		Messages:    history,
		Tools:       toolset.Tools(),
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
	}, func(chunk string) error {
		answer.WriteString(chunk)
		emit(domainAgent.StreamEvent{Type: domainAgent.EventContent, Content: chunk})
		return nil
	})
	metrics.LLMCall("stream", err)
	if err != nil {
		return err
	}

	full := answer.String()
	if full != "" {
		history = append(history, domain.AssistantMessage{Content: full})
	}
	if err := s.saveHistory(ctx, session, conversationID, history); err != nil {
		return err
	}
	metrics.Turn("stream", started, result.Iterations)

	if mentioned := FilterMentioned(result.Items, full); len(mentioned) > 0 {
		emit(domainAgent.StreamEvent{Type: domainAgent.EventMediaItems, Items: mentioned})
	}
	return nil
}

// ClearConversation drops the conversation from the in-process cache and the
// store. It reports whether either held it.
func (s *PlexAgentService) ClearConversation(ctx context.Context, session domainMedia.Session, conversationID string) (bool, error) {
	if err := validations.ValidateConversationID(ctx, conversationID); err != nil {
		return false, err
	}
	cleared := s.deps.History.Delete(historyKey(session.UserID, conversationID))
	if s.persistent(session) {
		deleted, err := s.deps.Store.Delete(ctx, session.UserID, conversationID)
		if err != nil {
			return cleared, err
		}
		cleared = cleared || deleted
	}
	return cleared, nil
}

func (s *PlexAgentService) ListConversations(ctx context.Context, session domainMedia.Session, limit int) ([]domainAgent.ConversationSummary, error) {
	if !s.persistent(session) {
		return []domainAgent.ConversationSummary{}, nil
	}
	if limit <= 0 {
		limit = s.cfg.ListLimit
	}
	return s.deps.Store.ListSummaries(ctx, session.UserID, limit)
}

func (s *PlexAgentService) GetConversation(ctx context.Context, session domainMedia.Session, conversationID string) (*domainAgent.ConversationHistory, error) {
	if err := validations.ValidateConversationID(ctx, conversationID); err != nil {
		return nil, err
	}
	if !s.persistent(session) {
		return nil, pkgError.NotFoundError("conversation not found")
	}
	history, err := s.deps.Store.DisplayHistory(ctx, session.UserID, conversationID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		return nil, pkgError.NotFoundError("conversation not found")
	}
	return history, nil
}
