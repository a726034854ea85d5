package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
)

const (
	ToolSearchLibrary   = "search_library"
	ToolRecommendations = "get_recommendations"
	ToolUnwatched       = "get_unwatched"
	ToolRecentlyAdded   = "get_recently_added"
	ToolMediaDetails    = "get_media_details"
	ToolLibraryStats    = "get_library_stats"
	ToolWebSearch       = "web_search"
	mediaTypeHelp       = "Filter by type - 'movie' or 'show' (optional)"
)

// SearchProvider answers free-text web searches.
type SearchProvider interface {
	Search(ctx context.Context, query string) (map[string]any, error)
}

// PlexToolset exposes the library tools for one server and one turn.
type PlexToolset struct {
	library *Library
	search  SearchProvider
	now     func() time.Time
	tools   []domain.NativeTool
}

// NewPlexToolset builds the catalog. search may be nil, in which case
// web_search is not offered.
func NewPlexToolset(library *Library, search SearchProvider) *PlexToolset {
	ts := &PlexToolset{library: library, search: search, now: time.Now}
	ts.tools = ts.build()
	return ts
}

// WithClock replaces the time source used by get_recently_added.
func (ts *PlexToolset) WithClock(now func() time.Time) *PlexToolset {
	ts.now = now
	return ts
}

func (ts *PlexToolset) Tools() []domain.Tool {
	out := make([]domain.Tool, len(ts.tools))
	for i, t := range ts.tools {
		out[i] = t.Tool
	}
	return out
}

func (ts *PlexToolset) Lookup(name string) (*domain.NativeTool, bool) {
	for i := range ts.tools {
		if ts.tools[i].Name == name {
			return &ts.tools[i], true
		}
	}
	return nil, false
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string, def int) map[string]any {
	return map[string]any{"type": "integer", "description": description, "default": def}
}

func (ts *PlexToolset) build() []domain.NativeTool {
	tools := []domain.NativeTool{
		{
			Tool: domain.Tool{
				Name:        ToolSearchLibrary,
				Description: "Search the user's Plex library for movies or TV shows. Returns matching items with title, year, genres, rating and summary.",
				InputSchema: objectSchema(map[string]any{
					"query":      stringProp("Search query to match against titles (optional)"),
					"media_type": stringProp(mediaTypeHelp),
					"genre":      stringProp("Filter by genre like 'Action', 'Comedy', 'Drama' (optional)"),
				}),
			},
			Handler: ts.searchLibrary,
		},
		{
			Tool: domain.Tool{
				Name:        ToolRecommendations,
				Description: "Get movie or TV show recommendations from the user's library.",
				InputSchema: objectSchema(map[string]any{
					"based_on": stringProp("Title of a movie/show to base recommendations on (optional)"),
					"genre":    stringProp("Genre to filter recommendations by (optional)"),
					"limit":    intProp("Maximum number of recommendations to return", DefaultLimit),
				}),
			},
			Handler: ts.recommendations,
		},
		{
			Tool: domain.Tool{
				Name:        ToolUnwatched,
				Description: "Find unwatched movies or TV shows in the user's library.",
				InputSchema: objectSchema(map[string]any{
					"media_type": stringProp(mediaTypeHelp),
					"limit":      intProp("Maximum number of items to return", DefaultLimit),
				}),
			},
			Handler: ts.unwatched,
		},
		{
			Tool: domain.Tool{
				Name:        ToolRecentlyAdded,
				Description: "Get recently added movies and TV shows, most recent first.",
				InputSchema: objectSchema(map[string]any{
					"days":  intProp("Number of days to look back", DefaultRecentDays),
					"limit": intProp("Maximum number of items to return", DefaultLimit),
				}),
			},
			Handler: ts.recentlyAdded,
		},
		{
			Tool: domain.Tool{
				Name:        ToolMediaDetails,
				Description: "Get detailed information about a specific movie or TV show: summary, genres, rating and more.",
				InputSchema: objectSchema(map[string]any{
					"title": stringProp("The title of the movie or TV show to look up"),
				}, "title"),
			},
			Handler: ts.mediaDetails,
		},
		{
			Tool: domain.Tool{
				Name:        ToolLibraryStats,
				Description: "Get statistics about the user's Plex library: counts of movies and TV shows and their genres.",
				InputSchema: objectSchema(map[string]any{}),
			},
			Handler: ts.libraryStats,
		},
	}
	if ts.search != nil {
		tools = append(tools, domain.NativeTool{
			Tool: domain.Tool{
				Name:        ToolWebSearch,
				Description: "Search the web for information about movies, TV shows, actors, etc.",
				InputSchema: objectSchema(map[string]any{
					"query": stringProp("What to search for"),
				}, "query"),
			},
			Handler: ts.webSearch,
		})
	}
	return tools
}

func (ts *PlexToolset) searchLibrary(ctx context.Context, args map[string]any) (any, error) {
	items, err := ts.library.Items(ctx)
	if err != nil {
		return nil, err
	}
	return Search(items, ArgString(args, "query"), ArgString(args, "media_type"), ArgString(args, "genre")), nil
}

func (ts *PlexToolset) recommendations(ctx context.Context, args map[string]any) (any, error) {
	items, err := ts.library.Items(ctx)
	if err != nil {
		return nil, err
	}
	return Recommend(items, ArgString(args, "based_on"), ArgString(args, "genre"), ArgInt(args, "limit", DefaultLimit)), nil
}

func (ts *PlexToolset) unwatched(ctx context.Context, args map[string]any) (any, error) {
	items, err := ts.library.Items(ctx)
	if err != nil {
		return nil, err
	}
	return Unwatched(items, ArgString(args, "media_type"), ArgInt(args, "limit", DefaultLimit)), nil
}

func (ts *PlexToolset) recentlyAdded(ctx context.Context, args map[string]any) (any, error) {
	items, err := ts.library.Items(ctx)
	if err != nil {
		return nil, err
	}
	days := ArgInt(args, "days", DefaultRecentDays)
	return RecentlyAdded(items, days, ArgInt(args, "limit", DefaultLimit), ts.now()), nil
}

func (ts *PlexToolset) mediaDetails(ctx context.Context, args map[string]any) (any, error) {
	items, err := ts.library.Items(ctx)
	if err != nil {
		return nil, err
	}
	title := ArgString(args, "title")
	item, ok := Details(items, title)
	if !ok {
		return map[string]string{"error": fmt.Sprintf("Could not find '%s' in the library", title)}, nil
	}
	return item, nil
}

func (ts *PlexToolset) libraryStats(ctx context.Context, _ map[string]any) (any, error) {
	items, err := ts.library.Items(ctx)
	if err != nil {
		return nil, err
	}
	return Stats(items), nil
}

func (ts *PlexToolset) webSearch(ctx context.Context, args map[string]any) (any, error) {
	query := strings.TrimSpace(ArgString(args, "query"))
	if query == "" {
		return map[string]string{"error": "query is required"}, nil
	}
	return ts.search.Search(ctx, query)
}

// ArgString reads a string argument, tolerating absent or non-string values.
func ArgString(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ArgInt reads an integer argument. JSON numbers arrive as float64.
func ArgInt(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(math.Round(v))
	case int:
		return v
	case int64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscan(v, &n); err == nil {
			return n
		}
	}
	return def
}
