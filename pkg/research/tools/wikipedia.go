package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const wikipediaBaseURL = "https://en.wikipedia.org"

// Wikipedia resolves a topic to its best matching article through the
// MediaWiki API and returns the plain-text extract.
type Wikipedia struct {
	// ExcerptRunes caps the returned content; zero keeps the whole article.
	ExcerptRunes int
	client       *resty.Client
}

func NewWikipedia(excerptRunes int) *Wikipedia {
	return NewWikipediaWithClient(excerptRunes, NewRestClient(wikipediaBaseURL, 20*time.Second))
}

func NewWikipediaWithClient(excerptRunes int, client *resty.Client) *Wikipedia {
	return &Wikipedia{ExcerptRunes: excerptRunes, client: client}
}

func (w *Wikipedia) Name() string { return "wikipedia" }

// Page is a resolved article.
type Page struct {
	Title   string
	URL     string
	Content string
}

type wikiPage struct {
	Title     string            `json:"title"`
	FullURL   string            `json:"fullurl"`
	Extract   string            `json:"extract"`
	Missing   bool              `json:"missing"`
	PageProps map[string]string `json:"pageprops"`
}

// Page looks up the top search hit for topic. It returns ErrPageNotFound when
// nothing matches and an error wrapping ErrPageNotFound for disambiguation pages.
func (w *Wikipedia) Page(ctx context.Context, topic string) (*Page, error) {
	var payload struct {
		Query struct {
			Pages []wikiPage `json:"pages"`
		} `json:"query"`
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"action":        "query",
			"format":        "json",
			"formatversion": "2",
			"generator":     "search",
			"gsrsearch":     topic,
			"gsrlimit":      "1",
			"prop":          "extracts|info|pageprops",
			"explaintext":   "1",
			"inprop":        "url",
			"redirects":     "1",
		}).
		SetResult(&payload).
		Get("/w/api.php")
	if err != nil {
		return nil, fmt.Errorf("wikipedia request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("wikipedia http %d", resp.StatusCode())
	}

	if len(payload.Query.Pages) == 0 || payload.Query.Pages[0].Missing {
		return nil, ErrPageNotFound
	}

	p := payload.Query.Pages[0]
	if _, ok := p.PageProps["disambiguation"]; ok {
		return nil, fmt.Errorf("%q is a disambiguation page: %w", p.Title, ErrPageNotFound)
	}

	return &Page{Title: p.Title, URL: p.FullURL, Content: p.Extract}, nil
}

// Search returns the resolved page as a single result, its content cut to
// ExcerptRunes and suffixed with an ellipsis.
func (w *Wikipedia) Search(ctx context.Context, query string) ([]Result, error) {
	page, err := w.Page(ctx, query)
	if err != nil {
		return nil, err
	}

	content := page.Content
	if w.ExcerptRunes > 0 {
		content, _ = truncateRunes(content, w.ExcerptRunes)
		content += "..."
	}

	return []Result{{Title: page.Title, URL: page.URL, Content: content}}, nil
}
