package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const duckDuckGoBaseURL = "https://lite.duckduckgo.com"

// ddgLimiter is shared by every DuckDuckGo instance: 1 query per second.
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

// DuckDuckGo scrapes the lite HTML interface.
type DuckDuckGo struct {
	MaxResults int
	client     *resty.Client
}

func NewDuckDuckGo(maxResults int) *DuckDuckGo {
	return NewDuckDuckGoWithClient(maxResults, NewRestClient(duckDuckGoBaseURL, 15*time.Second))
}

func NewDuckDuckGoWithClient(maxResults int, client *resty.Client) *DuckDuckGo {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &DuckDuckGo{MaxResults: maxResults, client: client}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if err := ddgLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"q": query}).
		Post("/lite/")
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode())
	}

	return parseLiteResults(resp.Body(), d.MaxResults)
}

// parseLiteResults pairs each result link with the snippet row that follows it.
func parseLiteResults(body []byte, max int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse duckduckgo html: %w", err)
	}

	snippets := doc.Find(".result-snippet").Map(func(_ int, s *goquery.Selection) string {
		return cleanText(s.Text())
	})

	var results []Result
	doc.Find("a.result-link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		link := resolveDuckDuckGoLink(href)
		title := cleanText(s.Text())
		if link == "" || title == "" {
			return true
		}
		r := Result{Title: title, URL: link}
		if i < len(snippets) {
			r.Content = snippets[i]
		}
		results = append(results, r)
		return len(results) < max
	})

	return results, nil
}

// resolveDuckDuckGoLink unwraps /l/?uddg= redirect links.
func resolveDuckDuckGoLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Host, "duckduckgo.com") {
		return target
	}
	return href
}
