package plex

import (
	"fmt"
	"time"

	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
)

type pinResponse struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt"`
	AuthToken string `json:"authToken"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Thumb    string `json:"thumb"`
}

type connection struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	URI      string `json:"uri"`
	Local    bool   `json:"local"`
	Relay    bool   `json:"relay"`
}

type resource struct {
	Name             string       `json:"name"`
	Product          string       `json:"product"`
	Owned            bool         `json:"owned"`
	ClientIdentifier string       `json:"clientIdentifier"`
	AccessToken      string       `json:"accessToken"`
	Connections      []connection `json:"connections"`
}

const mediaServerProduct = "Plex Media Server"

func (r resource) isMediaServer() bool {
	return r.Product == mediaServerProduct
}

func (r resource) server(c connection) domainMedia.Server {
	return domainMedia.Server{
		Name:             r.Name,
		Address:          c.Address,
		Port:             c.Port,
		Scheme:           c.Protocol,
		Local:            c.Local,
		Owned:            r.Owned,
		ClientIdentifier: r.ClientIdentifier,
		AccessToken:      r.AccessToken,
	}
}

type tag struct {
	Tag string `json:"tag"`
}

type metadata struct {
	RatingKey             string   `json:"ratingKey"`
	GUID                  string   `json:"guid"`
	Key                   string   `json:"key"`
	Title                 string   `json:"title"`
	Type                  string   `json:"type"`
	Summary               string   `json:"summary"`
	Year                  int      `json:"year"`
	Thumb                 string   `json:"thumb"`
	Art                   string   `json:"art"`
	Duration              int64    `json:"duration"`
	AddedAt               int64    `json:"addedAt"`
	OriginallyAvailableAt string   `json:"originallyAvailableAt"`
	Genre                 []tag    `json:"Genre"`
	Rating                *float64 `json:"rating"`
	AudienceRating        *float64 `json:"audienceRating"`
	ContentRating         string   `json:"contentRating"`
	ViewCount             *int     `json:"viewCount"`
	LastViewedAt          int64    `json:"lastViewedAt"`
	ChildCount            *int     `json:"childCount"`
	LeafCount             *int     `json:"leafCount"`
}

type directory struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Agent   string `json:"agent"`
	Scanner string `json:"scanner"`
	Thumb   string `json:"thumb"`
}

type userState struct {
	WatchlistedAt int64 `json:"watchlistedAt"`
}

type mediaContainer struct {
	Size      int         `json:"size"`
	TotalSize *int        `json:"totalSize"`
	Metadata  []metadata  `json:"Metadata"`
	Directory []directory `json:"Directory"`
	UserState *userState  `json:"UserState"`
}

type containerResponse struct {
	MediaContainer mediaContainer `json:"MediaContainer"`
}

func (c mediaContainer) total() int {
	if c.TotalSize != nil {
		return *c.TotalSize
	}
	return c.Size
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func (m metadata) guid() string {
	switch {
	case m.GUID != "":
		return m.GUID
	case m.RatingKey != "":
		return fmt.Sprintf("plex://%s/%s", m.Type, m.RatingKey)
	}
	return fmt.Sprintf("local://%s/%s/%d", m.Type, m.Title, m.Year)
}

// toMediaItem maps a movie or show; other metadata types are rejected.
func (m metadata) toMediaItem() (domainMedia.MediaItem, bool) {
	if m.Type != "movie" && m.Type != "show" {
		return domainMedia.MediaItem{}, false
	}
	genres := make([]string, 0, len(m.Genre))
	for _, g := range m.Genre {
		genres = append(genres, g.Tag)
	}
	item := domainMedia.MediaItem{
		RatingKey:             m.RatingKey,
		GUID:                  m.guid(),
		Title:                 m.Title,
		Type:                  m.Type,
		Summary:               strPtr(m.Summary),
		Year:                  intPtr(m.Year),
		Thumb:                 strPtr(m.Thumb),
		Art:                   strPtr(m.Art),
		AddedAt:               unixPtr(m.AddedAt),
		OriginallyAvailableAt: strPtr(m.OriginallyAvailableAt),
		Genres:                genres,
		Rating:                m.Rating,
		ContentRating:         strPtr(m.ContentRating),
		ViewCount:             m.ViewCount,
		LastViewedAt:          unixPtr(m.LastViewedAt),
	}
	if item.Rating == nil {
		item.Rating = m.AudienceRating
	}
	if m.Duration > 0 {
		d := m.Duration
		item.DurationMs = &d
	}
	if m.Type == "show" {
		item.SeasonCount = m.ChildCount
		item.EpisodeCount = m.LeafCount
	}
	return item, true
}

func (m metadata) toWatchlistItem() domainMedia.WatchlistItem {
	return domainMedia.WatchlistItem{
		GUID:  m.guid(),
		Title: m.Title,
		Type:  m.Type,
		Year:  intPtr(m.Year),
		Thumb: strPtr(m.Thumb),
	}
}
