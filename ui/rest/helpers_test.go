package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	domainAuth "github.com/JarvisJ/plex-ai/domains/auth"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/JarvisJ/plex-ai/pkg/security"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/JarvisJ/plex-ai/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const testUserID = 42

// newTestApp returns an app with the production error handling and a valid
// bearer token for testUserID.
func newTestApp(t *testing.T) (*fiber.App, fiber.Handler, string) {
	t.Helper()
	issuer, err := security.NewTokenIssuer("test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	token, err := issuer.Issue("plex-token", testUserID, "jj")
	require.NoError(t, err)

	app := fiber.New()
	app.Use(middleware.Recovery())
	return app, middleware.Auth(issuer), token
}

func authed(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decode(t *testing.T, resp *http.Response) utils.ResponseData {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out utils.ResponseData
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// results re-decodes ResponseData.Results into dest.
func results(t *testing.T, data utils.ResponseData, dest any) {
	t.Helper()
	raw, err := json.Marshal(data.Results)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest))
}

type stubMedia struct {
	lastSession domainMedia.Session
	lastItems   domainMedia.LibraryItemsRequest
	lastThumb   domainMedia.ThumbnailRequest
	thumb       domainMedia.Thumbnail
}

func (s *stubMedia) GetServers(_ context.Context, session domainMedia.Session) ([]domainMedia.Server, error) {
	s.lastSession = session
	return []domainMedia.Server{{Name: "Home"}}, nil
}

func (s *stubMedia) GetLibraries(_ context.Context, _ domainMedia.Session, serverName string) ([]domainMedia.Library, error) {
	if serverName != "Home" {
		return nil, pkgError.NotFoundError("server not found")
	}
	return []domainMedia.Library{{Key: "1", Title: "Movies", Type: "movie"}}, nil
}

func (s *stubMedia) GetLibraryItems(_ context.Context, _ domainMedia.Session, req domainMedia.LibraryItemsRequest) (domainMedia.PaginatedResponse, error) {
	s.lastItems = req
	return domainMedia.PaginatedResponse{Items: []domainMedia.MediaItem{}, Total: 0, Offset: req.Offset, Limit: req.Limit}, nil
}

func (s *stubMedia) GetAllLibraryItems(context.Context, domainMedia.Session, string, string) ([]domainMedia.MediaItem, error) {
	return []domainMedia.MediaItem{}, nil
}

func (s *stubMedia) GetThumbnail(_ context.Context, _ domainMedia.Session, req domainMedia.ThumbnailRequest) (domainMedia.Thumbnail, error) {
	s.lastThumb = req
	return s.thumb, nil
}

func (s *stubMedia) GetWatchlist(context.Context, domainMedia.Session) ([]domainMedia.WatchlistItem, error) {
	return []domainMedia.WatchlistItem{}, nil
}

func (s *stubMedia) GetWatchlistStatus(_ context.Context, _ domainMedia.Session, _, ratingKey string) (domainMedia.WatchlistStatus, error) {
	return domainMedia.WatchlistStatus{RatingKey: ratingKey, Title: "Heat"}, nil
}

func (s *stubMedia) AddToWatchlist(_ context.Context, _ domainMedia.Session, _, ratingKey string) (domainMedia.WatchlistStatus, error) {
	return domainMedia.WatchlistStatus{RatingKey: ratingKey, Title: "Heat", OnWatchlist: true}, nil
}

func (s *stubMedia) RemoveFromWatchlist(_ context.Context, _ domainMedia.Session, _, ratingKey string) (domainMedia.WatchlistStatus, error) {
	return domainMedia.WatchlistStatus{RatingKey: ratingKey, Title: "Heat"}, nil
}

type stubAgent struct {
	events    []domainAgent.StreamEvent
	streamErr error
	cleared   bool
}

func (s *stubAgent) Chat(_ context.Context, _ domainMedia.Session, req domainAgent.ChatRequest) (domainAgent.ChatResponse, error) {
	if req.Message == "" {
		return domainAgent.ChatResponse{}, pkgError.ValidationError("message: cannot be blank")
	}
	return domainAgent.ChatResponse{
		ConversationID: "conv-1",
		Message:        domainAgent.AgentMessage{Role: "assistant", Content: "echo: " + req.Message, MediaItems: []domainMedia.MediaItem{}},
	}, nil
}

func (s *stubAgent) ChatStream(context.Context, domainMedia.Session, domainAgent.ChatRequest) (<-chan domainAgent.StreamEvent, error) {
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	ch := make(chan domainAgent.StreamEvent, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (s *stubAgent) ClearConversation(context.Context, domainMedia.Session, string) (bool, error) {
	return s.cleared, nil
}

func (s *stubAgent) ListConversations(context.Context, domainMedia.Session, int) ([]domainAgent.ConversationSummary, error) {
	return []domainAgent.ConversationSummary{{ConversationID: "conv-1", Title: "hello"}}, nil
}

func (s *stubAgent) GetConversation(_ context.Context, _ domainMedia.Session, id string) (*domainAgent.ConversationHistory, error) {
	if id != "conv-1" {
		return nil, pkgError.NotFoundError("conversation not found")
	}
	return &domainAgent.ConversationHistory{ConversationID: id, Title: "hello", Messages: []domainAgent.AgentMessage{}}, nil
}

type stubAuth struct {
	authenticated bool
}

func (s *stubAuth) CreatePin(context.Context) (domainAuth.PinResponse, error) {
	return domainAuth.PinResponse{ID: 5, Code: "abcd", AuthURL: "https://app.plex.tv/auth#?code=abcd"}, nil
}

func (s *stubAuth) CheckPin(_ context.Context, pinID int64, code string) (domainAuth.PinCheckResponse, error) {
	if !s.authenticated {
		return domainAuth.PinCheckResponse{Authenticated: false}, nil
	}
	return domainAuth.PinCheckResponse{Authenticated: true, AccessToken: "jwt", TokenType: "bearer", User: &domainAuth.UserInfo{ID: testUserID}}, nil
}

func (s *stubAuth) CurrentUser(_ context.Context, plexToken string) (domainAuth.UserInfo, error) {
	return domainAuth.UserInfo{ID: testUserID, Username: "jj", ClientIdentifier: plexToken}, nil
}
