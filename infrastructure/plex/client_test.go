package plex

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakePlex serves the plex.tv, discover and media server endpoints from one
// listener.
type fakePlex struct {
	*httptest.Server
	watchlistActions []string
}

func newFakePlex(t *testing.T) *fakePlex {
	t.Helper()
	f := &fakePlex{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v2/pins", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.PostForm.Get("strong"))
		assert.Equal(t, "client-1", r.Header.Get("X-Plex-Client-Identifier"))
		writeJSON(w, map[string]any{"id": 77, "code": "abcd", "expiresAt": "2030-01-01T00:00:00Z"})
	})
	mux.HandleFunc("/api/v2/pins/77", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 77, "code": r.URL.Query().Get("code"), "authToken": "plex-token"})
	})
	mux.HandleFunc("/api/v2/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "plex-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"id": 42, "username": "jj", "email": "jj@example.com"})
	})
	mux.HandleFunc("/api/v2/resources", func(w http.ResponseWriter, r *http.Request) {
		host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(f.URL, "http://"))
		port, _ := strconv.Atoi(portStr)
		writeJSON(w, []map[string]any{
			{"name": "Phone", "product": "Plex for iOS", "clientIdentifier": "phone"},
			{
				"name": "Home", "product": "Plex Media Server", "owned": true,
				"clientIdentifier": "machine-1", "accessToken": "server-token",
				"connections": []map[string]any{
					{"protocol": "http", "address": "192.168.1.2", "port": 32400, "local": true},
					{"protocol": "http", "address": host, "port": port, "local": false},
				},
			},
		})
	})

	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "server-token", r.Header.Get("X-Plex-Token"))
		writeJSON(w, map[string]any{"MediaContainer": map[string]any{"Directory": []map[string]any{
			{"key": "1", "title": "Movies", "type": "movie"},
			{"key": "2", "title": "Music", "type": "artist"},
		}}})
	})
	mux.HandleFunc("/library/sections/1/all", func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.Header.Get("X-Plex-Container-Start"))
		size, _ := strconv.Atoi(r.Header.Get("X-Plex-Container-Size"))
		all := []map[string]any{
			{"ratingKey": "10", "guid": "plex://movie/abc", "title": "Knives Out", "type": "movie", "year": 2019, "addedAt": 1700000000, "Genre": []map[string]any{{"tag": "Mystery"}}, "audienceRating": 7.9},
			{"ratingKey": "11", "title": "Heat", "type": "movie", "viewCount": 2},
			{"ratingKey": "12", "title": "A Clip", "type": "clip"},
		}
		page := []map[string]any{}
		for i := start; i < len(all) && i < start+size; i++ {
			page = append(page, all[i])
		}
		writeJSON(w, map[string]any{"MediaContainer": map[string]any{"size": len(page), "totalSize": len(all), "Metadata": page}})
	})
	mux.HandleFunc("/library/metadata/10", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"MediaContainer": map[string]any{"Metadata": []map[string]any{
			{"ratingKey": "10", "guid": "plex://movie/abc", "title": "Knives Out", "type": "movie"},
		}}})
	})
	mux.HandleFunc("/library/metadata/10/thumb/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	})

	mux.HandleFunc("/library/sections/watchlist/all", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"MediaContainer": map[string]any{"Metadata": []map[string]any{
			{"guid": "plex://movie/abc", "title": "Knives Out", "type": "movie", "year": 2019},
		}}})
	})
	mux.HandleFunc("/library/metadata/abc/userState", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"MediaContainer": map[string]any{"UserState": map[string]any{"watchlistedAt": 1700000000}}})
	})
	mux.HandleFunc("/actions/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		f.watchlistActions = append(f.watchlistActions, r.URL.Path+"?"+r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestClient(f *fakePlex) *Client {
	return NewClient(Config{
		ClientIdentifier: "client-1",
		ProductName:      "Plex AI",
		PlexTVURL:        f.URL,
		DiscoverURL:      f.URL,
		AuthURL:          "https://app.plex.tv/auth",
		ForwardURL:       "http://localhost:5173",
	})
}

func TestClient_PinFlow(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(newFakePlex(t))

	pin, err := client.CreatePin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(77), pin.ID)
	assert.Equal(t, "abcd", pin.Code)
	assert.Empty(t, pin.AuthToken)

	checked, err := client.CheckPin(ctx, 77, "abcd")
	require.NoError(t, err)
	assert.Equal(t, "plex-token", checked.AuthToken)

	user, err := client.User(ctx, "plex-token")
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "jj", user.Username)

	_, err = client.User(ctx, "wrong")
	var upstream pkgError.UpstreamError
	assert.ErrorAs(t, err, &upstream)

	id, err := client.OwnedServerIdentifier(ctx, "plex-token")
	require.NoError(t, err)
	assert.Equal(t, "machine-1", id)
}

func TestClient_AuthURL(t *testing.T) {
	client := NewClient(Config{ClientIdentifier: "client-1", ProductName: "Plex AI", ForwardURL: "http://localhost:5173"})

	raw := client.AuthURL("abcd")
	base, fragment, ok := strings.Cut(raw, "#?")
	require.True(t, ok)
	assert.Equal(t, DefaultAuthURL, base)

	params, err := url.ParseQuery(fragment)
	require.NoError(t, err)
	assert.Equal(t, "client-1", params.Get("clientID"))
	assert.Equal(t, "abcd", params.Get("code"))
	assert.Equal(t, "Plex AI", params.Get("context[device][product]"))
	assert.Equal(t, "http://localhost:5173", params.Get("forwardUrl"))
}

func TestClient_ServersAndConnect(t *testing.T) {
	ctx := context.Background()
	f := newFakePlex(t)
	client := newTestClient(f)

	servers, err := client.Servers(ctx, "plex-token")
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "Home", servers[0].Name)
	assert.False(t, servers[0].Local)

	server, err := client.Connect(ctx, "plex-token", "Home")
	require.NoError(t, err)
	assert.Equal(t, f.URL, server.URL())
	assert.Equal(t, "server-token", server.AccessToken)

	_, err = client.Connect(ctx, "plex-token", "Cabin")
	var notFound pkgError.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestClient_LibrariesAndItems(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(newFakePlex(t))
	server, err := client.Connect(ctx, "plex-token", "Home")
	require.NoError(t, err)

	libs, err := client.Libraries(ctx, server)
	require.NoError(t, err)
	require.Len(t, libs, 1)
	assert.Equal(t, "Movies", libs[0].Title)
	require.NotNil(t, libs[0].Count)
	assert.Equal(t, 3, *libs[0].Count)

	items, total, err := client.LibraryItems(ctx, server, "1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	// Clips are not movies or shows.
	require.Len(t, items, 2)

	knives := items[0]
	assert.Equal(t, "plex://movie/abc", knives.GUID)
	assert.Equal(t, []string{"Mystery"}, knives.Genres)
	require.NotNil(t, knives.Rating)
	assert.InDelta(t, 7.9, *knives.Rating, 0.001)
	require.NotNil(t, knives.AddedAt)
	assert.Equal(t, int64(1700000000), knives.AddedAt.Unix())

	heat := items[1]
	assert.Equal(t, "plex://movie/11", heat.GUID)
	assert.True(t, heat.Watched())

	page, _, err := client.LibraryItems(ctx, server, "1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Heat", page[0].Title)

	item, err := client.Item(ctx, server, "10")
	require.NoError(t, err)
	assert.Equal(t, "Knives Out", item.Title)

	data, contentType, err := client.Thumbnail(ctx, server, "library/metadata/10/thumb/1")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}

func TestClient_Watchlist(t *testing.T) {
	ctx := context.Background()
	f := newFakePlex(t)
	client := newTestClient(f)

	list, err := client.Watchlist(ctx, "plex-token")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domainMedia.WatchlistItem{GUID: "plex://movie/abc", Title: "Knives Out", Type: "movie", Year: list[0].Year}, list[0])
	require.NotNil(t, list[0].Year)
	assert.Equal(t, 2019, *list[0].Year)

	on, err := client.OnWatchlist(ctx, "plex-token", "plex://movie/abc")
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, client.SetWatchlisted(ctx, "plex-token", "plex://movie/abc", true))
	require.NoError(t, client.SetWatchlisted(ctx, "plex-token", "plex://movie/abc", false))
	assert.Equal(t, []string{
		"/actions/addToWatchlist?ratingKey=abc",
		"/actions/removeFromWatchlist?ratingKey=abc",
	}, f.watchlistActions)

	err = client.SetWatchlisted(ctx, "plex-token", "com.plexapp.agents.imdb://tt123", true)
	var validation pkgError.ValidationError
	assert.ErrorAs(t, err, &validation)
}
