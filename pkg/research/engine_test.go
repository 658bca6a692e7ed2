package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/researchify/pkg/config"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research/tools"
)

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	replies []string
	errs    []error
}

func (f *fakeLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := len(f.prompts)
	f.prompts = append(f.prompts, msgs[0].Parts[0].(llms.TextContent).Text)
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	reply := "# Report"
	if call < len(f.replies) {
		reply = f.replies[call]
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

type fakeSearcher struct {
	name    string
	results []tools.Result
	err     error
	delay   time.Duration
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(ctx context.Context, _ string) ([]tools.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.results, f.err
}

type fakeLibrary struct {
	ready bool
	res   tools.Result
	err   error
	texts []localdocs.FileText
}

func (f *fakeLibrary) Ready() bool { return f.ready }
func (f *fakeLibrary) Search(context.Context, string) (tools.Result, error) {
	return f.res, f.err
}
func (f *fakeLibrary) Texts() []localdocs.FileText { return f.texts }

func newTestEngine(llm llms.Model, searchers ...tools.Searcher) *ResearchEngine {
	return &ResearchEngine{
		Searchers:  searchers,
		LLM:        llm,
		Format:     FormatExtended,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}
}

func TestRunEmptyTopic(t *testing.T) {
	llm := &fakeLLM{}
	_, err := newTestEngine(llm).Run(context.Background(), Request{Topic: "   "})
	assert.ErrorIs(t, err, ErrEmptyTopic)
	assert.Empty(t, llm.prompts)
}

func TestRunNoResultsSkipsModel(t *testing.T) {
	llm := &fakeLLM{}
	e := newTestEngine(llm,
		&fakeSearcher{name: "tavily"},
		&fakeSearcher{name: "wikipedia", err: fmt.Errorf("lookup: %w", tools.ErrPageNotFound)},
		&fakeSearcher{name: "pubmed", err: errors.New("503")},
	)

	_, err := e.Run(context.Background(), Request{Topic: "quantum dots"})
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Empty(t, llm.prompts)
}

func TestRunMergesInProviderOrder(t *testing.T) {
	llm := &fakeLLM{replies: []string{"# Quantum dots"}}
	e := newTestEngine(llm,
		&fakeSearcher{name: "tavily", delay: 30 * time.Millisecond, results: []tools.Result{
			{URL: "https://web.example/a", Content: "web A"},
			{URL: "https://web.example/b", Content: "web B"},
		}},
		&fakeSearcher{name: "pubmed", results: []tools.Result{
			{URL: "https://www.ncbi.nlm.nih.gov/pubmed/1", Content: "abstract"},
		}},
		&fakeSearcher{name: "wikipedia", delay: 10 * time.Millisecond, results: []tools.Result{
			{URL: "https://en.wikipedia.org/wiki/Quantum_dot", Content: "wiki..."},
		}},
	)
	lib := &fakeLibrary{
		ready: true,
		res:   tools.Result{URL: "Local Documents", Content: "chunk\n\nSources : Local Documents"},
		texts: []localdocs.FileText{{Name: "notes.docx", Text: "my notes"}},
	}

	var statuses []string
	e.OnStatus = func(s string) { statuses = append(statuses, s) }

	report, err := e.Run(context.Background(), Request{Topic: " quantum dots ", Library: lib})
	require.NoError(t, err)
	assert.Equal(t, "# Quantum dots", report.Markdown)
	assert.Equal(t, "quantum dots", report.Topic)

	var urls []string
	for _, s := range report.Sources {
		urls = append(urls, s.URL)
	}
	assert.Equal(t, []string{
		"https://web.example/a",
		"https://web.example/b",
		"https://www.ncbi.nlm.nih.gov/pubmed/1",
		"https://en.wikipedia.org/wiki/Quantum_dot",
		"Local Documents",
		"notes.docx",
	}, urls)
	assert.Equal(t, ProviderLocal, report.Sources[4].Provider)

	assert.Equal(t, []string{
		"Searching Web",
		"Searching PubMed",
		"Searching Wikipedia",
		"Searching Local Documents",
		"Generating Report",
	}, statuses)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Topic: quantum dots\n\nSearch Results:\n- https://web.example/a\nweb A\n\n")
	assert.True(t, strings.HasSuffix(prompt, "- notes.docx\nmy notes\n\n"))
}

func TestSearchSourcesWarnings(t *testing.T) {
	e := newTestEngine(&fakeLLM{},
		&fakeSearcher{name: "tavily", err: errors.New("401 unauthorized")},
		&fakeSearcher{name: "pubmed", results: []tools.Result{{URL: "u", Content: "c"}}},
	)
	lib := &fakeLibrary{ready: true, err: errors.New("index closed")}

	results, warnings, err := e.SearchSources(context.Background(), "topic", lib)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{
		"tavily search failed: 401 unauthorized",
		"Error occurred while searching local documents: index closed",
	}, warnings)
}

func TestSearchSourcesSkipsLibraryWhenNotReady(t *testing.T) {
	e := newTestEngine(&fakeLLM{})
	lib := &fakeLibrary{ready: false, res: tools.Result{URL: "Local Documents"}}

	results, warnings, err := e.SearchSources(context.Background(), "topic", lib)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, warnings)
}

func TestSearchSourcesCancelled(t *testing.T) {
	e := newTestEngine(&fakeLLM{}, &fakeSearcher{name: "tavily", delay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := e.SearchSources(ctx, "topic", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateReportRetries(t *testing.T) {
	llm := &fakeLLM{
		errs:    []error{errors.New("overloaded")},
		replies: []string{"", "  ", "# Final"},
	}
	e := newTestEngine(llm)

	report, err := e.GenerateReport(context.Background(), "t", []SearchResult{{URL: "u", Content: "c"}})
	require.NoError(t, err)
	assert.Equal(t, "# Final", report)
	assert.Len(t, llm.prompts, 3)
}

func TestGenerateReportGivesUp(t *testing.T) {
	llm := &fakeLLM{replies: []string{"", "", ""}}
	e := newTestEngine(llm)

	_, err := e.GenerateReport(context.Background(), "t", []SearchResult{{URL: "u", Content: "c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty report")
	assert.Len(t, llm.prompts, 3)
}

func TestGenerateReportEmptyResults(t *testing.T) {
	llm := &fakeLLM{}
	_, err := newTestEngine(llm).GenerateReport(context.Background(), "t", nil)
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Empty(t, llm.prompts)
}

func TestNewSearchersFollowsProviderOrder(t *testing.T) {
	cfg := &config.Config{SearchProviders: []string{"wikipedia", "arxiv", "tavily"}}

	var names []string
	for _, s := range NewSearchers(cfg) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"tavily", "wikipedia", "arxiv"}, names)
}
