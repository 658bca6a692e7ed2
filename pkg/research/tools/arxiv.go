package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const arxivBaseURL = "https://export.arxiv.org"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches the arXiv Atom API.
type Arxiv struct {
	MaxResults int
	client     *resty.Client
}

func NewArxiv(maxResults int) *Arxiv {
	return NewArxivWithClient(maxResults, NewRestClient(arxivBaseURL, 30*time.Second))
}

func NewArxivWithClient(maxResults int, client *resty.Client) *Arxiv {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Arxiv{MaxResults: maxResults, client: client}
}

func (a *Arxiv) Name() string { return "arxiv" }

// Search queries arXiv and returns one result per entry, preferring the PDF link.
func (a *Arxiv) Search(ctx context.Context, query string) ([]Result, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"search_query": "all:" + query,
			"max_results":  strconv.Itoa(a.MaxResults),
			"start":        "0",
		}).
		Get("/api/query")
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	if resp.IsError() {
		slog.Error("API returned non-200 status code", "status", resp.StatusCode(), "body", resp.String())
		return nil, fmt.Errorf("API returned non-200 status code: %d", resp.StatusCode())
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	results := make([]Result, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		link := strings.TrimSpace(entry.ID)
		for _, l := range entry.Link {
			if l.Type == "application/pdf" {
				link = l.Href
				break
			}
		}
		results = append(results, Result{
			Title:   cleanText(entry.Title),
			URL:     link,
			Content: cleanText(entry.Summary),
		})
	}
	return results, nil
}
