package media

import (
	"context"
	"fmt"
	"time"
)

type Server struct {
	Name             string `json:"name"`
	Address          string `json:"address"`
	Port             int    `json:"port"`
	Scheme           string `json:"scheme"`
	Local            bool   `json:"local"`
	Owned            bool   `json:"owned"`
	ClientIdentifier string `json:"client_identifier"`
	// AccessToken is the server-specific token; shared servers do not accept the account token.
	AccessToken string `json:"-"`
}

func (s Server) URL() string {
	scheme := s.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Address, s.Port)
}

type Library struct {
	Key     string  `json:"key"`
	Title   string  `json:"title"`
	Type    string  `json:"type"`
	Agent   *string `json:"agent,omitempty"`
	Scanner *string `json:"scanner,omitempty"`
	Thumb   *string `json:"thumb,omitempty"`
	Count   *int    `json:"count,omitempty"`
}

// MediaItem is a movie or show as returned by the media server. It is keyed by
// RatingKey within a server and by GUID across servers and the watchlist.
type MediaItem struct {
	RatingKey             string     `json:"rating_key"`
	GUID                  string     `json:"guid"`
	Title                 string     `json:"title"`
	Type                  string     `json:"type"`
	Summary               *string    `json:"summary"`
	Year                  *int       `json:"year"`
	Thumb                 *string    `json:"thumb"`
	Art                   *string    `json:"art"`
	DurationMs            *int64     `json:"duration_ms"`
	AddedAt               *time.Time `json:"added_at"`
	OriginallyAvailableAt *string    `json:"originally_available_at"`
	Genres                []string   `json:"genres"`
	Rating                *float64   `json:"rating"`
	ContentRating         *string    `json:"content_rating"`
	ViewCount             *int       `json:"view_count"`
	LastViewedAt          *time.Time `json:"last_viewed_at"`
	SeasonCount           *int       `json:"season_count"`
	EpisodeCount          *int       `json:"episode_count"`
}

// RatingOrZero treats a missing rating as 0 for ordering.
func (m MediaItem) RatingOrZero() float64 {
	if m.Rating == nil {
		return 0
	}
	return *m.Rating
}

func (m MediaItem) Watched() bool {
	return m.ViewCount != nil && *m.ViewCount > 0
}

type PaginatedResponse struct {
	Items   []MediaItem `json:"items"`
	Total   int         `json:"total"`
	Offset  int         `json:"offset"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"has_more"`
}

type WatchlistItem struct {
	GUID  string  `json:"guid"`
	Title string  `json:"title"`
	Type  string  `json:"type"`
	Year  *int    `json:"year,omitempty"`
	Thumb *string `json:"thumb,omitempty"`
}

type WatchlistStatus struct {
	RatingKey   string `json:"rating_key"`
	Title       string `json:"title"`
	OnWatchlist bool   `json:"on_watchlist"`
}

type LibraryItemsRequest struct {
	ServerName string `json:"server_name"`
	LibraryKey string `json:"library_key"`
	Offset     int    `json:"offset" query:"offset"`
	Limit      int    `json:"limit" query:"limit"`
}

type ThumbnailRequest struct {
	ServerName string `json:"server_name"`
	Path       string `json:"path" query:"path"`
	Width      int    `json:"width" query:"width"`
}

type Thumbnail struct {
	Data        []byte
	ContentType string
	CacheHit    bool
}

// Session is the caller identity handed in by the auth layer.
type Session struct {
	UserID    int64
	Username  string
	PlexToken string
}

// IMediaUsecase is the cached view of one user's media servers.
type IMediaUsecase interface {
	GetServers(ctx context.Context, s Session) ([]Server, error)
	GetLibraries(ctx context.Context, s Session, serverName string) ([]Library, error)
	GetLibraryItems(ctx context.Context, s Session, req LibraryItemsRequest) (PaginatedResponse, error)
	// GetAllLibraryItems returns every movie and show on a server, optionally
	// narrowed to one type. This is the snapshot the agent tools query.
	GetAllLibraryItems(ctx context.Context, s Session, serverName, mediaType string) ([]MediaItem, error)
	GetThumbnail(ctx context.Context, s Session, req ThumbnailRequest) (Thumbnail, error)

	GetWatchlist(ctx context.Context, s Session) ([]WatchlistItem, error)
	GetWatchlistStatus(ctx context.Context, s Session, serverName, ratingKey string) (WatchlistStatus, error)
	AddToWatchlist(ctx context.Context, s Session, serverName, ratingKey string) (WatchlistStatus, error)
	RemoveFromWatchlist(ctx context.Context, s Session, serverName, ratingKey string) (WatchlistStatus, error)
}

// IPlexGateway is the raw upstream media-server API, already mapped to domain types.
type IPlexGateway interface {
	// Servers lists every remote connection of every media server the token can reach.
	Servers(ctx context.Context, plexToken string) ([]Server, error)
	// Connect resolves one server by name, with its server-specific access token.
	Connect(ctx context.Context, plexToken, serverName string) (Server, error)
	Libraries(ctx context.Context, server Server) ([]Library, error)
	LibraryItems(ctx context.Context, server Server, libraryKey string, offset, limit int) ([]MediaItem, int, error)
	Item(ctx context.Context, server Server, ratingKey string) (MediaItem, error)
	Thumbnail(ctx context.Context, server Server, path string) ([]byte, string, error)

	Watchlist(ctx context.Context, plexToken string) ([]WatchlistItem, error)
	OnWatchlist(ctx context.Context, plexToken, guid string) (bool, error)
	SetWatchlisted(ctx context.Context, plexToken, guid string, watchlisted bool) error
}
