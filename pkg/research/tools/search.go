// Package tools implements the search providers and remote document services
// the research engine fans out to.
package tools

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrPageNotFound is returned when an encyclopedia lookup resolves to no page.
var ErrPageNotFound = errors.New("page not found")

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Result is a single hit from a provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Searcher executes a query against one provider.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// NewRestClient returns a resty client preconfigured the way every provider
// expects: a timeout, a browser user agent and exponential backoff on 429.
func NewRestClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})
}

var (
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// cleanText removes markup and collapses whitespace.
func cleanText(s string) string {
	s = reTags.ReplaceAllString(s, "")
	s = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", "\"", "&#39;", "'", "&nbsp;", " ").Replace(s)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// truncateRunes cuts s to n runes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) (string, bool) {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s, false
	}
	return string(runes[:n]), true
}
