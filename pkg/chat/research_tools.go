package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research/tools"
	"github.com/mikeboe/researchify/pkg/vectorstore"
)

const (
	noWikipediaResult = "No good Wikipedia Search Result was found"
	noPubMedResult    = "No good PubMed Result was found"
	noWebResult       = "No good DuckDuckGo Search Result was found"
)

// ResearchToolset exposes the search providers, and optionally a session's
// local documents, as agent tools.
type ResearchToolset struct {
	Wikipedia  tools.Searcher
	PubMed     tools.Searcher
	DuckDuckGo tools.Searcher
	Library    *localdocs.Library
}

func NewResearchToolset(wikipedia, pubmed, duckduckgo tools.Searcher, library *localdocs.Library) *ResearchToolset {
	return &ResearchToolset{
		Wikipedia:  wikipedia,
		PubMed:     pubmed,
		DuckDuckGo: duckduckgo,
		Library:    library,
	}
}

func (t *ResearchToolset) Name() string {
	return "research_tools"
}

func (t *ResearchToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	wikiTool, err := functiontool.New[QueryArgs, QueryResp](
		functiontool.Config{
			Name:        "wikipedia_search",
			Description: "Look up things in Wikipedia for people, movies, series and information.",
		},
		t.wikipediaTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wikipedia tool: %w", err)
	}

	pubmedTool, err := functiontool.New[QueryArgs, QueryResp](
		functiontool.Config{
			Name: "pubmed_search",
			Description: "Useful for searching scientifically legit information from PubMed science and medical research. " +
				"PubMed comprises more than 35 million citations for biomedical literature from MEDLINE, life science journals, and online books.",
		},
		t.pubmedTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubmed tool: %w", err)
	}

	webTool, err := functiontool.New[QueryArgs, QueryResp](
		functiontool.Config{
			Name:        "duckduckgo_search",
			Description: "Useful for when you need to answer questions about current events or realtime information. You should ask targeted questions.",
		},
		t.duckDuckGoTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duckduckgo tool: %w", err)
	}

	out := []tool.Tool{wikiTool, pubmedTool, webTool}
	if !t.Library.Ready() {
		return out, nil
	}

	localTool, err := functiontool.New[SearchContentArgs, SearchContentResp](
		functiontool.Config{
			Name:        "search_local_documents",
			Description: "Semantic search over the documents the user uploaded.",
		},
		t.searchContentTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create local search tool: %w", err)
	}
	out = append(out, localTool)

	if _, ok := t.Library.Store().(vectorstore.SourceReader); ok {
		findBySourceTool, err := functiontool.New[FindSourceArgs, FindSourceResp](
			functiontool.Config{
				Name:        "find_content_by_source",
				Description: "Return the full text of one uploaded document by file name.",
			},
			t.findContentBySourceTool,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create find_by_source tool: %w", err)
		}
		out = append(out, findBySourceTool)
	}

	return out, nil
}

// --- Tool Implementations ---

type QueryArgs struct {
	Query string `json:"query" description:"The search query"`
}

type QueryResp struct {
	Results string `json:"results"`
}

func (t *ResearchToolset) wikipediaTool(ctx tool.Context, args QueryArgs) (QueryResp, error) {
	return t.SearchWikipedia(ctx, args)
}

// SearchWikipedia returns the best matching page summary.
func (t *ResearchToolset) SearchWikipedia(ctx context.Context, args QueryArgs) (QueryResp, error) {
	hits, err := t.Wikipedia.Search(ctx, args.Query)
	if errors.Is(err, tools.ErrPageNotFound) || (err == nil && len(hits) == 0) {
		return QueryResp{Results: noWikipediaResult}, nil
	}
	if err != nil {
		return QueryResp{}, fmt.Errorf("wikipedia search failed: %w", err)
	}

	var parts []string
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("Page: %s\nSummary: %s", h.Title, h.Content))
	}
	return QueryResp{Results: strings.Join(parts, "\n\n")}, nil
}

func (t *ResearchToolset) pubmedTool(ctx tool.Context, args QueryArgs) (QueryResp, error) {
	return t.SearchPubMed(ctx, args)
}

// SearchPubMed returns article titles, links and abstracts.
func (t *ResearchToolset) SearchPubMed(ctx context.Context, args QueryArgs) (QueryResp, error) {
	hits, err := t.PubMed.Search(ctx, args.Query)
	if err != nil {
		return QueryResp{}, fmt.Errorf("pubmed search failed: %w", err)
	}
	if len(hits) == 0 {
		return QueryResp{Results: noPubMedResult}, nil
	}

	var parts []string
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("Title: %s\nURL: %s\nSummary: %s", h.Title, h.URL, h.Content))
	}
	return QueryResp{Results: strings.Join(parts, "\n\n")}, nil
}

func (t *ResearchToolset) duckDuckGoTool(ctx tool.Context, args QueryArgs) (QueryResp, error) {
	return t.SearchWeb(ctx, args)
}

// SearchWeb returns DuckDuckGo snippets.
func (t *ResearchToolset) SearchWeb(ctx context.Context, args QueryArgs) (QueryResp, error) {
	hits, err := t.DuckDuckGo.Search(ctx, args.Query)
	if err != nil {
		return QueryResp{}, fmt.Errorf("duckduckgo search failed: %w", err)
	}
	if len(hits) == 0 {
		return QueryResp{Results: noWebResult}, nil
	}

	var parts []string
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("[%s](%s)\n%s", h.Title, h.URL, h.Content))
	}
	return QueryResp{Results: strings.Join(parts, "\n\n")}, nil
}

type SearchContentArgs struct {
	Query  string `json:"query" description:"The search query"`
	TopK   int    `json:"topK,omitempty" description:"Number of results to return (default 4)"`
	Source string `json:"source,omitempty" description:"Optional file name filter"`
}

type SearchContentResp struct {
	Results string `json:"results"`
}

func (t *ResearchToolset) searchContentTool(ctx tool.Context, args SearchContentArgs) (SearchContentResp, error) {
	return t.SearchContent(ctx, args)
}

// SearchContent runs a similarity search over the attached library.
func (t *ResearchToolset) SearchContent(ctx context.Context, args SearchContentArgs) (SearchContentResp, error) {
	if !t.Library.Ready() {
		return SearchContentResp{}, localdocs.ErrNotReady
	}
	if args.TopK == 0 {
		args.TopK = 4
	}

	slog.Info("Search content", "query", args.Query, "topK", args.TopK, "source", args.Source)

	results, err := t.Library.Store().SimilaritySearch(ctx, args.Query, args.TopK, args.Source)
	if err != nil {
		return SearchContentResp{}, fmt.Errorf("failed to search: %w", err)
	}

	var formattedResults []string
	for _, result := range results {
		resSource := "unknown"
		if s, ok := result.Document.Metadata["source"].(string); ok {
			resSource = s
		}
		formattedResults = append(formattedResults,
			fmt.Sprintf("[Source]: %s\n[Content]: %s", resSource, result.Document.Content))
	}

	return SearchContentResp{Results: strings.Join(formattedResults, "\n\n")}, nil
}

type FindSourceArgs struct {
	Source string `json:"source" description:"The file name to return content for"`
}

type FindSourceResp struct {
	Content string `json:"content"`
}

func (t *ResearchToolset) findContentBySourceTool(ctx tool.Context, args FindSourceArgs) (FindSourceResp, error) {
	return t.FindContentBySource(ctx, args)
}

// FindContentBySource returns every chunk of one uploaded file.
func (t *ResearchToolset) FindContentBySource(ctx context.Context, args FindSourceArgs) (FindSourceResp, error) {
	if !t.Library.Ready() {
		return FindSourceResp{}, localdocs.ErrNotReady
	}
	reader, ok := t.Library.Store().(vectorstore.SourceReader)
	if !ok {
		return FindSourceResp{}, fmt.Errorf("vector store cannot list documents by source")
	}

	results, err := reader.GetContentBySource(ctx, args.Source)
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("failed to find content: %w", err)
	}

	var formattedResults []string
	for _, result := range results {
		formattedResults = append(formattedResults, result.Content)
	}
	return FindSourceResp{Content: strings.Join(formattedResults, "\n\n")}, nil
}
