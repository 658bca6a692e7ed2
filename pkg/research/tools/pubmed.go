package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	pubmedBaseURL    = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	pubmedArticleURL = "https://www.ncbi.nlm.nih.gov/pubmed/"
)

// PubMed queries NCBI E-utilities: esearch for ids, then efetch for abstracts.
type PubMed struct {
	MaxResults int
	Tool       string
	Email      string
	client     *resty.Client
	limiter    *rate.Limiter
}

func NewPubMed(maxResults int, tool, email string) *PubMed {
	return NewPubMedWithClient(maxResults, tool, email, NewRestClient(pubmedBaseURL, 30*time.Second))
}

func NewPubMedWithClient(maxResults int, tool, email string, client *resty.Client) *PubMed {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &PubMed{
		MaxResults: maxResults,
		Tool:       tool,
		Email:      email,
		client:     client,
		// NCBI allows 3 requests per second without an API key.
		limiter: rate.NewLimiter(rate.Limit(3), 1),
	}
}

func (p *PubMed) Name() string { return "pubmed" }

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID     string         `xml:"MedlineCitation>PMID"`
	Title    innerText      `xml:"MedlineCitation>Article>ArticleTitle"`
	Abstract []abstractText `xml:"MedlineCitation>Article>Abstract>AbstractText"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Inner string `xml:",innerxml"`
}

type innerText struct {
	Inner string `xml:",innerxml"`
}

func (p *PubMed) Search(ctx context.Context, query string) ([]Result, error) {
	ids, err := p.searchIDs(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	articles, err := p.fetchArticles(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(articles))
	for _, a := range articles {
		abstract := a.abstract()
		if abstract == "" {
			continue
		}
		results = append(results, Result{
			Title:   cleanText(a.Title.Inner),
			URL:     pubmedArticleURL + strings.TrimSpace(a.PMID),
			Content: abstract,
		})
	}
	return results, nil
}

func (a pubmedArticle) abstract() string {
	parts := make([]string, 0, len(a.Abstract))
	for _, t := range a.Abstract {
		text := cleanText(t.Inner)
		if text == "" {
			continue
		}
		if t.Label != "" {
			text = t.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

func (p *PubMed) params() map[string]string {
	params := map[string]string{"db": "pubmed"}
	if p.Tool != "" {
		params["tool"] = p.Tool
	}
	if p.Email != "" {
		params["email"] = p.Email
	}
	return params
}

func (p *PubMed) searchIDs(ctx context.Context, query string) ([]string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var payload struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(p.params()).
		SetQueryParam("term", query).
		SetQueryParam("retmax", strconv.Itoa(p.MaxResults)).
		SetQueryParam("retmode", "json").
		SetResult(&payload).
		Get("/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("pubmed search failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pubmed search http %d", resp.StatusCode())
	}

	return payload.ESearchResult.IDList, nil
}

func (p *PubMed) fetchArticles(ctx context.Context, ids []string) ([]pubmedArticle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(p.params()).
		SetQueryParam("id", strings.Join(ids, ",")).
		SetQueryParam("retmode", "xml").
		SetQueryParam("rettype", "abstract").
		Get("/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pubmed fetch http %d", resp.StatusCode())
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(resp.Body(), &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pubmed XML: %w", err)
	}
	return set.Articles, nil
}
