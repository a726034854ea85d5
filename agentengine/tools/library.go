package tools

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
)

const (
	MaxSearchResults   = 300
	DefaultLimit       = 10
	DefaultRecentDays  = 30
	recommendModeSeed  = "based_on"
	recommendModeGenre = "genre"
	recommendModeTop   = "top"
)

// Loader fetches the full library snapshot, normally through the cache.
type Loader func(ctx context.Context) ([]domainMedia.MediaItem, error)

// Library memoizes one snapshot so every tool call in a turn sees the same data.
type Library struct {
	load  Loader
	once  sync.Once
	items []domainMedia.MediaItem
	err   error
}

func NewLibrary(load Loader) *Library {
	return &Library{load: load}
}

// StaticLibrary wraps an already loaded snapshot.
func StaticLibrary(items []domainMedia.MediaItem) *Library {
	return NewLibrary(func(context.Context) ([]domainMedia.MediaItem, error) { return items, nil })
}

func (l *Library) Items(ctx context.Context) ([]domainMedia.MediaItem, error) {
	l.once.Do(func() {
		l.items, l.err = l.load(ctx)
	})
	return l.items, l.err
}

func byRatingDesc(items []domainMedia.MediaItem) []domainMedia.MediaItem {
	sorted := make([]domainMedia.MediaItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RatingOrZero() > sorted[j].RatingOrZero()
	})
	return sorted
}

func hasGenre(item domainMedia.MediaItem, genreLower string) bool {
	for _, g := range item.Genres {
		if strings.ToLower(g) == genreLower {
			return true
		}
	}
	return false
}

func ofType(items []domainMedia.MediaItem, mediaType string) []domainMedia.MediaItem {
	if mediaType == "" {
		return items
	}
	out := make([]domainMedia.MediaItem, 0, len(items))
	for _, it := range items {
		if it.Type == mediaType {
			out = append(out, it)
		}
	}
	return out
}

// Search orders by rating, then keeps items whose title contains query and
// that carry genre, up to MaxSearchResults.
func Search(items []domainMedia.MediaItem, query, mediaType, genre string) []domainMedia.MediaItem {
	queryLower := strings.ToLower(query)
	genreLower := strings.ToLower(genre)

	results := make([]domainMedia.MediaItem, 0)
	for _, it := range byRatingDesc(ofType(items, mediaType)) {
		if queryLower != "" && !strings.Contains(strings.ToLower(it.Title), queryLower) {
			continue
		}
		if genreLower != "" && !hasGenre(it, genreLower) {
			continue
		}
		results = append(results, it)
		if len(results) >= MaxSearchResults {
			break
		}
	}
	return results
}

// RecommendMode reports which recommendation mode the arguments select.
func RecommendMode(basedOn, genre string) string {
	switch {
	case basedOn != "":
		return recommendModeSeed
	case genre != "":
		return recommendModeGenre
	}
	return recommendModeTop
}

// Recommend picks items similar to a seed title, items of one genre, or the
// top rated items, depending on which argument is set.
func Recommend(items []domainMedia.MediaItem, basedOn, genre string, limit int) []domainMedia.MediaItem {
	results := make([]domainMedia.MediaItem, 0)
	if limit <= 0 {
		return results
	}

	switch RecommendMode(basedOn, genre) {
	case recommendModeSeed:
		basedOnLower := strings.ToLower(basedOn)
		var seed *domainMedia.MediaItem
		for i := range items {
			if strings.Contains(strings.ToLower(items[i].Title), basedOnLower) {
				seed = &items[i]
				break
			}
		}
		if seed == nil {
			return results
		}
		seedGenres := make(map[string]struct{}, len(seed.Genres))
		for _, g := range seed.Genres {
			seedGenres[strings.ToLower(g)] = struct{}{}
		}
		for _, it := range items {
			if it.Title == seed.Title {
				continue
			}
			if seed.Type != "" && it.Type != seed.Type {
				continue
			}
			shared := false
			for _, g := range it.Genres {
				if _, ok := seedGenres[strings.ToLower(g)]; ok {
					shared = true
					break
				}
			}
			if !shared {
				continue
			}
			results = append(results, it)
			if len(results) >= limit {
				break
			}
		}

	case recommendModeGenre:
		genreLower := strings.ToLower(genre)
		for _, it := range byRatingDesc(items) {
			if hasGenre(it, genreLower) {
				results = append(results, it)
				if len(results) >= limit {
					break
				}
			}
		}

	default:
		sorted := byRatingDesc(items)
		if len(sorted) > limit {
			sorted = sorted[:limit]
		}
		results = append(results, sorted...)
	}
	return results
}

func Unwatched(items []domainMedia.MediaItem, mediaType string, limit int) []domainMedia.MediaItem {
	results := make([]domainMedia.MediaItem, 0)
	if limit <= 0 {
		return results
	}
	for _, it := range ofType(items, mediaType) {
		if it.Watched() {
			continue
		}
		results = append(results, it)
		if len(results) >= limit {
			break
		}
	}
	return results
}

// RecentlyAdded returns items added within the last days, newest first.
// A negative days puts the cutoff in the future.
func RecentlyAdded(items []domainMedia.MediaItem, days, limit int, now time.Time) []domainMedia.MediaItem {
	recent := make([]domainMedia.MediaItem, 0)
	if limit <= 0 {
		return recent
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	for _, it := range items {
		if it.AddedAt != nil && !it.AddedAt.Before(cutoff) {
			recent = append(recent, it)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].AddedAt.After(*recent[j].AddedAt)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent
}

// Details finds an exact title match, then a substring match.
func Details(items []domainMedia.MediaItem, title string) (domainMedia.MediaItem, bool) {
	titleLower := strings.ToLower(title)
	for _, it := range items {
		if strings.ToLower(it.Title) == titleLower {
			return it, true
		}
	}
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), titleLower) {
			return it, true
		}
	}
	return domainMedia.MediaItem{}, false
}

type LibraryStats struct {
	TotalMovies int      `json:"total_movies"`
	TotalShows  int      `json:"total_shows"`
	MovieGenres []string `json:"movie_genres"`
	ShowGenres  []string `json:"show_genres"`
}

func Stats(items []domainMedia.MediaItem) LibraryStats {
	movieGenres := map[string]struct{}{}
	showGenres := map[string]struct{}{}
	var stats LibraryStats

	for _, it := range items {
		switch it.Type {
		case "movie":
			stats.TotalMovies++
			for _, g := range it.Genres {
				movieGenres[g] = struct{}{}
			}
		case "show":
			stats.TotalShows++
			for _, g := range it.Genres {
				showGenres[g] = struct{}{}
			}
		}
	}
	stats.MovieGenres = sortedKeys(movieGenres)
	stats.ShowGenres = sortedKeys(showGenres)
	return stats
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
