package server

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/researchify/pkg/extract"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research"
	"github.com/mikeboe/researchify/pkg/research/tools"
	"github.com/mikeboe/researchify/pkg/vectorstore"
)

type fakeLLM struct {
	mu    sync.Mutex
	calls int
	reply string
}

func (f *fakeLLM) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSearcher struct {
	name    string
	results []tools.Result
	err     error
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(context.Context, string) ([]tools.Result, error) {
	return f.results, f.err
}

// plainExtractor returns the upload bytes as text.
type plainExtractor struct{}

func (plainExtractor) Extract(_ context.Context, _ string, data []byte, _ extract.Options) (string, error) {
	return string(data), nil
}

// letterEmbedder counts a few letters; enough to rank short test chunks.
type letterEmbedder struct{}

func (letterEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i, l := range []string{"a", "e", "o", "z"} {
		v[i] = float32(strings.Count(strings.ToLower(text), l)) + 0.1
	}
	return v, nil
}

func (e letterEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedText(ctx, t)
	}
	return out, nil
}

type fixture struct {
	svc  *Service
	jobs *MemoryJobStore
	llm  *fakeLLM
}

func newFixture(t *testing.T, searchers ...tools.Searcher) *fixture {
	t.Helper()

	jobs := NewMemoryJobStore()
	llm := &fakeLLM{reply: "# Report\n\nBody"}
	sessions := localdocs.NewRegistry(plainExtractor{}, func(context.Context, string) (vectorstore.Store, error) {
		return vectorstore.NewMemoryStore(letterEmbedder{}), nil
	}, 200, 20, 2)

	svc := NewService(jobs, sessions, func(l *slog.Logger) *research.ResearchEngine {
		return &research.ResearchEngine{
			Searchers:  searchers,
			LLM:        llm,
			Model:      "fake-model",
			Format:     research.FormatClassic,
			Logger:     l,
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
		}
	})
	svc.Logger = slog.New(slog.NewTextHandler(discard{}, nil))

	return &fixture{svc: svc, jobs: jobs, llm: llm}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func wiki(content string) *fakeSearcher {
	return &fakeSearcher{name: "wikipedia", results: []tools.Result{{
		Title: "Wiki", URL: "https://en.wikipedia.org/wiki/Topic", Content: content,
	}}}
}
