package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const tavilyBaseURL = "https://api.tavily.com"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey string
	// Depth is Tavily's search_depth (basic or advanced).
	Depth  string
	client *resty.Client
}

func NewTavily(apiKey, depth string) *Tavily {
	return NewTavilyWithClient(apiKey, depth, NewRestClient(tavilyBaseURL, 30*time.Second))
}

// NewTavilyWithClient uses the supplied client, whose base URL must point at a
// Tavily compatible endpoint.
func NewTavilyWithClient(apiKey, depth string, client *resty.Client) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{APIKey: apiKey, Depth: depth, client: client}
}

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	var payload struct {
		Results []Result `json:"results"`
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"api_key":      t.APIKey,
			"query":        query,
			"search_depth": t.Depth,
		}).
		SetResult(&payload).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tavily http %d: %s", resp.StatusCode(), resp.String())
	}

	return payload.Results, nil
}
