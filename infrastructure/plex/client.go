package plex

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainAuth "github.com/JarvisJ/plex-ai/domains/auth"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPlexTVURL   = "https://plex.tv"
	DefaultDiscoverURL = "https://discover.provider.plex.tv"
	DefaultAuthURL     = "https://app.plex.tv/auth"
	DefaultTimeout     = 60 * time.Second
)

type Config struct {
	ClientIdentifier string
	ProductName      string
	Timeout          time.Duration
	PlexTVURL        string
	DiscoverURL      string
	AuthURL          string
	// ForwardURL is where app.plex.tv sends the browser after the PIN is claimed.
	ForwardURL string
}

// Client talks to plex.tv, the discover service and individual media servers.
type Client struct {
	cfg      Config
	plextv   *resty.Client
	discover *resty.Client
	pms      *resty.Client
}

var (
	_ domainMedia.IPlexGateway = (*Client)(nil)
	_ domainAuth.IPlexIdentity = (*Client)(nil)
)

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PlexTVURL == "" {
		cfg.PlexTVURL = DefaultPlexTVURL
	}
	if cfg.DiscoverURL == "" {
		cfg.DiscoverURL = DefaultDiscoverURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}

	base := func() *resty.Client {
		return resty.New().
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json").
			SetHeader("X-Plex-Product", cfg.ProductName).
			SetHeader("X-Plex-Client-Identifier", cfg.ClientIdentifier)
	}

	return &Client{
		cfg:      cfg,
		plextv:   base().SetBaseURL(cfg.PlexTVURL),
		discover: base().SetBaseURL(cfg.DiscoverURL),
		// Media servers commonly present self-signed certificates.
		pms: base().SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}),
	}
}

func upstream(op string, resp *resty.Response, err error) error {
	if err != nil {
		return pkgError.NewUpstreamError("plex", fmt.Errorf("%s: %w", op, err))
	}
	if resp.IsError() {
		return pkgError.NewUpstreamError("plex", fmt.Errorf("%s: status %d", op, resp.StatusCode()))
	}
	return nil
}

func (c *Client) CreatePin(ctx context.Context) (domainAuth.Pin, error) {
	var out pinResponse
	resp, err := c.plextv.R().
		SetContext(ctx).
		SetFormData(map[string]string{"strong": "true"}).
		SetResult(&out).
		Post("/api/v2/pins")
	if err := upstream("create pin", resp, err); err != nil {
		return domainAuth.Pin{}, err
	}
	return domainAuth.Pin{ID: out.ID, Code: out.Code, ExpiresAt: out.ExpiresAt}, nil
}

func (c *Client) CheckPin(ctx context.Context, pinID int64, code string) (domainAuth.Pin, error) {
	var out pinResponse
	resp, err := c.plextv.R().
		SetContext(ctx).
		SetQueryParam("code", code).
		SetResult(&out).
		Get("/api/v2/pins/" + strconv.FormatInt(pinID, 10))
	if err := upstream("check pin", resp, err); err != nil {
		return domainAuth.Pin{}, err
	}
	return domainAuth.Pin{ID: out.ID, Code: out.Code, ExpiresAt: out.ExpiresAt, AuthToken: out.AuthToken}, nil
}

// AuthURL is the app.plex.tv page the user opens to claim a PIN.
func (c *Client) AuthURL(code string) string {
	params := url.Values{}
	params.Set("clientID", c.cfg.ClientIdentifier)
	params.Set("code", code)
	params.Set("context[device][product]", c.cfg.ProductName)
	if c.cfg.ForwardURL != "" {
		params.Set("forwardUrl", c.cfg.ForwardURL)
	}
	return c.cfg.AuthURL + "#?" + params.Encode()
}

func (c *Client) User(ctx context.Context, plexToken string) (domainAuth.UserInfo, error) {
	var out userResponse
	resp, err := c.plextv.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", plexToken).
		SetResult(&out).
		Get("/api/v2/user")
	if err := upstream("get user", resp, err); err != nil {
		return domainAuth.UserInfo{}, err
	}
	return domainAuth.UserInfo{ID: out.ID, Username: out.Username, Email: out.Email, Thumb: out.Thumb}, nil
}

func (c *Client) resources(ctx context.Context, plexToken string) ([]resource, error) {
	var out []resource
	resp, err := c.plextv.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", plexToken).
		SetQueryParams(map[string]string{"includeHttps": "1", "includeRelay": "0"}).
		SetResult(&out).
		Get("/api/v2/resources")
	if err := upstream("list resources", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) OwnedServerIdentifier(ctx context.Context, plexToken string) (string, error) {
	resources, err := c.resources(ctx, plexToken)
	if err != nil {
		return "", err
	}
	for _, r := range resources {
		if r.isMediaServer() && r.Owned {
			return r.ClientIdentifier, nil
		}
	}
	return "", nil
}

func (c *Client) Servers(ctx context.Context, plexToken string) ([]domainMedia.Server, error) {
	resources, err := c.resources(ctx, plexToken)
	if err != nil {
		return nil, err
	}
	servers := make([]domainMedia.Server, 0)
	for _, r := range resources {
		if !r.isMediaServer() {
			continue
		}
		for _, conn := range r.Connections {
			if !conn.Local {
				servers = append(servers, r.server(conn))
			}
		}
	}
	return servers, nil
}

// Connect picks a remote connection of the named server, falling back to
// any connection it advertises.
func (c *Client) Connect(ctx context.Context, plexToken, serverName string) (domainMedia.Server, error) {
	resources, err := c.resources(ctx, plexToken)
	if err != nil {
		return domainMedia.Server{}, err
	}
	for _, r := range resources {
		if !r.isMediaServer() || r.Name != serverName || len(r.Connections) == 0 {
			continue
		}
		chosen := r.Connections[0]
		for _, conn := range r.Connections {
			if !conn.Local && !conn.Relay {
				chosen = conn
				break
			}
		}
		server := r.server(chosen)
		if server.AccessToken == "" {
			server.AccessToken = plexToken
		}
		return server, nil
	}
	return domainMedia.Server{}, pkgError.NotFoundError(fmt.Sprintf("server %q not found", serverName))
}

func (c *Client) pmsRequest(ctx context.Context, server domainMedia.Server) *resty.Request {
	return c.pms.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", server.AccessToken)
}

func (c *Client) container(ctx context.Context, server domainMedia.Server, path string, headers map[string]string) (mediaContainer, error) {
	var out containerResponse
	resp, err := c.pmsRequest(ctx, server).
		SetHeaders(headers).
		SetResult(&out).
		Get(server.URL() + path)
	if err := upstream("GET "+path, resp, err); err != nil {
		return mediaContainer{}, err
	}
	return out.MediaContainer, nil
}

// Libraries returns the movie and show sections with their item counts.
func (c *Client) Libraries(ctx context.Context, server domainMedia.Server) ([]domainMedia.Library, error) {
	mc, err := c.container(ctx, server, "/library/sections", nil)
	if err != nil {
		return nil, err
	}
	libraries := make([]domainMedia.Library, 0, len(mc.Directory))
	for _, d := range mc.Directory {
		if d.Type != "movie" && d.Type != "show" {
			continue
		}
		lib := domainMedia.Library{
			Key:     d.Key,
			Title:   d.Title,
			Type:    d.Type,
			Agent:   strPtr(d.Agent),
			Scanner: strPtr(d.Scanner),
			Thumb:   strPtr(d.Thumb),
		}
		if _, total, err := c.LibraryItems(ctx, server, d.Key, 0, 0); err == nil {
			lib.Count = &total
		} else {
			logrus.WithError(err).WithField("library", d.Key).Debug("[PLEX] could not count library")
		}
		libraries = append(libraries, lib)
	}
	return libraries, nil
}

func (c *Client) LibraryItems(ctx context.Context, server domainMedia.Server, libraryKey string, offset, limit int) ([]domainMedia.MediaItem, int, error) {
	mc, err := c.container(ctx, server, "/library/sections/"+url.PathEscape(libraryKey)+"/all", map[string]string{
		"X-Plex-Container-Start": strconv.Itoa(offset),
		"X-Plex-Container-Size":  strconv.Itoa(limit),
	})
	if err != nil {
		return nil, 0, err
	}
	items := make([]domainMedia.MediaItem, 0, len(mc.Metadata))
	for _, m := range mc.Metadata {
		if item, ok := m.toMediaItem(); ok {
			items = append(items, item)
		}
	}
	return items, mc.total(), nil
}

func (c *Client) Item(ctx context.Context, server domainMedia.Server, ratingKey string) (domainMedia.MediaItem, error) {
	mc, err := c.container(ctx, server, "/library/metadata/"+url.PathEscape(ratingKey), nil)
	if err != nil {
		return domainMedia.MediaItem{}, err
	}
	for _, m := range mc.Metadata {
		if item, ok := m.toMediaItem(); ok {
			return item, nil
		}
	}
	return domainMedia.MediaItem{}, pkgError.NotFoundError(fmt.Sprintf("item %s not found", ratingKey))
}

func (c *Client) Thumbnail(ctx context.Context, server domainMedia.Server, path string) ([]byte, string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	resp, err := c.pmsRequest(ctx, server).
		SetHeader("Accept", "image/*").
		Get(server.URL() + path)
	if err := upstream("thumbnail", resp, err); err != nil {
		return nil, "", err
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(resp.Body())
	}
	return resp.Body(), contentType, nil
}

func (c *Client) Watchlist(ctx context.Context, plexToken string) ([]domainMedia.WatchlistItem, error) {
	var out containerResponse
	resp, err := c.discover.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", plexToken).
		SetResult(&out).
		Get("/library/sections/watchlist/all")
	if err := upstream("watchlist", resp, err); err != nil {
		return nil, err
	}
	items := make([]domainMedia.WatchlistItem, 0, len(out.MediaContainer.Metadata))
	for _, m := range out.MediaContainer.Metadata {
		items = append(items, m.toWatchlistItem())
	}
	return items, nil
}

// discoverKey is the discover-service rating key embedded in a plex:// guid.
func discoverKey(guid string) (string, error) {
	if !strings.HasPrefix(guid, "plex://") {
		return "", pkgError.ValidationError(fmt.Sprintf("item %q has no plex guid and cannot be watchlisted", guid))
	}
	idx := strings.LastIndex(guid, "/")
	return guid[idx+1:], nil
}

func (c *Client) OnWatchlist(ctx context.Context, plexToken, guid string) (bool, error) {
	key, err := discoverKey(guid)
	if err != nil {
		return false, err
	}
	var out containerResponse
	resp, err := c.discover.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", plexToken).
		SetResult(&out).
		Get("/library/metadata/" + key + "/userState")
	if err := upstream("watchlist state", resp, err); err != nil {
		return false, err
	}
	state := out.MediaContainer.UserState
	return state != nil && state.WatchlistedAt > 0, nil
}

func (c *Client) SetWatchlisted(ctx context.Context, plexToken, guid string, watchlisted bool) error {
	key, err := discoverKey(guid)
	if err != nil {
		return err
	}
	action := "/actions/removeFromWatchlist"
	if watchlisted {
		action = "/actions/addToWatchlist"
	}
	resp, err := c.discover.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", plexToken).
		SetQueryParam("ratingKey", key).
		Put(action)
	return upstream("update watchlist", resp, err)
}
