package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/researchify/pkg/extract"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research/tools"
	"github.com/mikeboe/researchify/pkg/splitter"
	"github.com/mikeboe/researchify/pkg/vectorstore"
)

type stubSearcher struct {
	name    string
	results []tools.Result
	err     error
}

func (s *stubSearcher) Name() string { return s.name }
func (s *stubSearcher) Search(context.Context, string) ([]tools.Result, error) {
	return s.results, s.err
}

type textExtractor map[string]string

func (e textExtractor) Extract(_ context.Context, name string, _ []byte, _ extract.Options) (string, error) {
	return e[name], nil
}

type lengthEmbedder struct{}

func (lengthEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(strings.Count(text, "enzyme")) + 0.1, 1}, nil
}

func (e lengthEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedText(ctx, t)
	}
	return out, nil
}

func readyLibrary(t *testing.T) *localdocs.Library {
	t.Helper()
	ts, err := splitter.NewRecursiveCharacterTextSplitter(1000, 0)
	require.NoError(t, err)
	lib := localdocs.New(textExtractor{"lab.docx": "The enzyme assay results."}, ts,
		vectorstore.NewMemoryStore(lengthEmbedder{}), 4)
	_, err = lib.Ingest(context.Background(), []localdocs.Upload{{Name: "lab.docx"}}, false)
	require.NoError(t, err)
	return lib
}

func toolNames(t *testing.T, ts *ResearchToolset) []string {
	t.Helper()
	list, err := ts.Tools(nil)
	require.NoError(t, err)
	var names []string
	for _, tl := range list {
		names = append(names, tl.Name())
	}
	return names
}

func TestResearchToolsetTools(t *testing.T) {
	ts := NewResearchToolset(&stubSearcher{}, &stubSearcher{}, &stubSearcher{}, nil)
	assert.Equal(t, []string{"wikipedia_search", "pubmed_search", "duckduckgo_search"}, toolNames(t, ts))

	ts.Library = readyLibrary(t)
	assert.Equal(t, []string{
		"wikipedia_search", "pubmed_search", "duckduckgo_search",
		"search_local_documents", "find_content_by_source",
	}, toolNames(t, ts))
}

func TestSearchWikipedia(t *testing.T) {
	ctx := context.Background()
	ts := &ResearchToolset{Wikipedia: &stubSearcher{results: []tools.Result{
		{Title: "Alan Turing", URL: "https://en.wikipedia.org/wiki/Alan_Turing", Content: "Alan Turing was..."},
	}}}

	resp, err := ts.SearchWikipedia(ctx, QueryArgs{Query: "Turing"})
	require.NoError(t, err)
	assert.Equal(t, "Page: Alan Turing\nSummary: Alan Turing was...", resp.Results)

	ts.Wikipedia = &stubSearcher{err: tools.ErrPageNotFound}
	resp, err = ts.SearchWikipedia(ctx, QueryArgs{Query: "zzzz"})
	require.NoError(t, err)
	assert.Equal(t, noWikipediaResult, resp.Results)
}

func TestSearchPubMedAndWeb(t *testing.T) {
	ctx := context.Background()
	ts := &ResearchToolset{
		PubMed: &stubSearcher{results: []tools.Result{
			{Title: "Trial", URL: "https://www.ncbi.nlm.nih.gov/pubmed/42", Content: "Abstract."},
		}},
		DuckDuckGo: &stubSearcher{err: errors.New("rate limited")},
	}

	resp, err := ts.SearchPubMed(ctx, QueryArgs{Query: "trial"})
	require.NoError(t, err)
	assert.Contains(t, resp.Results, "URL: https://www.ncbi.nlm.nih.gov/pubmed/42")

	_, err = ts.SearchWeb(ctx, QueryArgs{Query: "news"})
	assert.ErrorContains(t, err, "rate limited")

	ts.DuckDuckGo = &stubSearcher{}
	resp, err = ts.SearchWeb(ctx, QueryArgs{Query: "news"})
	require.NoError(t, err)
	assert.Equal(t, noWebResult, resp.Results)
}

func TestLocalDocumentTools(t *testing.T) {
	ctx := context.Background()
	ts := &ResearchToolset{}

	_, err := ts.SearchContent(ctx, SearchContentArgs{Query: "enzyme"})
	assert.ErrorIs(t, err, localdocs.ErrNotReady)

	ts.Library = readyLibrary(t)
	resp, err := ts.SearchContent(ctx, SearchContentArgs{Query: "enzyme"})
	require.NoError(t, err)
	assert.Equal(t, "[Source]: lab.docx\n[Content]: The enzyme assay results.", resp.Results)

	found, err := ts.FindContentBySource(ctx, FindSourceArgs{Source: "lab.docx"})
	require.NoError(t, err)
	assert.Equal(t, "The enzyme assay results.", found.Content)
}
