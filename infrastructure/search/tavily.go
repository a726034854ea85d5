package search

import (
	"context"
	"fmt"
	"time"

	"github.com/JarvisJ/plex-ai/agentengine/tools"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const DefaultTavilyURL = "https://api.tavily.com"

// TavilyClient answers the web_search tool.
type TavilyClient struct {
	apiKey string
	client *resty.Client
}

var _ tools.SearchProvider = (*TavilyClient)(nil)

func NewTavilyClient(apiKey, baseURL string, timeout time.Duration) *TavilyClient {
	if baseURL == "" {
		baseURL = DefaultTavilyURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TavilyClient{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
	}
}

type searchRequest struct {
	APIKey string `json:"api_key"`
	Query  string `json:"query"`
}

// Search returns the provider response unchanged so the model sees every field.
func (t *TavilyClient) Search(ctx context.Context, query string) (map[string]any, error) {
	var out map[string]any
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(searchRequest{APIKey: t.apiKey, Query: query}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return nil, pkgError.NewUpstreamError("tavily", err)
	}
	if resp.IsError() {
		return nil, pkgError.NewUpstreamError("tavily", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	logrus.WithField("query", query).Debug("[SEARCH] web search completed")
	return out, nil
}
