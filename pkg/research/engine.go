package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/researchify/pkg/config"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research/tools"
)

// ProviderLocal names local document search in results and status updates.
const ProviderLocal = "local"

// ProviderOrder is the order in which provider results are merged,
// independent of which provider answers first.
var ProviderOrder = []string{"tavily", "pubmed", "wikipedia", "arxiv", "duckduckgo"}

var statusLabels = map[string]string{
	"tavily":      "Searching Web",
	"pubmed":      "Searching PubMed",
	"wikipedia":   "Searching Wikipedia",
	"arxiv":       "Searching arXiv",
	"duckduckgo":  "Searching DuckDuckGo",
	ProviderLocal: "Searching Local Documents",
}

// NewSearchers builds the providers enabled in cfg, in ProviderOrder.
func NewSearchers(cfg *config.Config) []tools.Searcher {
	var searchers []tools.Searcher
	for _, name := range ProviderOrder {
		if !cfg.ProviderEnabled(name) {
			continue
		}
		switch name {
		case "tavily":
			searchers = append(searchers, tools.NewTavily(cfg.TavilyApiKey, cfg.TavilyDepth))
		case "pubmed":
			searchers = append(searchers, tools.NewPubMed(cfg.PubMedMaxResults, cfg.PubMedTool, cfg.PubMedEmail))
		case "wikipedia":
			searchers = append(searchers, tools.NewWikipedia(cfg.WikipediaExcerpt))
		case "arxiv":
			searchers = append(searchers, tools.NewArxiv(cfg.ArxivMaxResults))
		case "duckduckgo":
			searchers = append(searchers, tools.NewDuckDuckGo(cfg.DuckDuckGoMaxResults))
		}
	}
	return searchers
}

type ResearchEngine struct {
	Searchers []tools.Searcher
	LLM       llms.Model
	Model     string
	Format    string
	Logger    *slog.Logger
	// OnStatus receives progress labels such as "Searching PubMed". It is
	// called from the goroutine running the engine.
	OnStatus func(status string)

	MaxRetries int
	RetryDelay time.Duration
}

// NewEngine wires the providers enabled in cfg to llm.
func NewEngine(cfg *config.Config, llm llms.Model, model string) *ResearchEngine {
	return &ResearchEngine{
		Searchers:  NewSearchers(cfg),
		LLM:        llm,
		Model:      model,
		Format:     cfg.ReportFormat,
		Logger:     slog.Default(),
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

func (e *ResearchEngine) status(s string) {
	e.logger().Info(s)
	if e.OnStatus != nil {
		e.OnStatus(s)
	}
}

func (e *ResearchEngine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run searches every source for req.Topic, appends the library's file texts
// and writes the report. It returns ErrNoResults without calling the model
// when nothing was found.
func (e *ResearchEngine) Run(ctx context.Context, req Request) (*Report, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	e.logger().Info("Starting research", "topic", topic)

	results, warnings, err := e.SearchSources(ctx, topic, req.Library)
	if err != nil {
		return nil, err
	}

	if req.Library != nil {
		for _, ft := range req.Library.Texts() {
			results = append(results, SearchResult{
				Provider: "upload",
				Title:    ft.Name,
				URL:      ft.Name,
				Content:  ft.Text,
			})
		}
	}

	if len(results) == 0 {
		e.logger().Warn("No sources found", "topic", topic, "warnings", len(warnings))
		return nil, ErrNoResults
	}

	markdown, err := e.GenerateReport(ctx, topic, results)
	if err != nil {
		return nil, err
	}

	return &Report{
		Topic:     topic,
		Markdown:  markdown,
		Sources:   results,
		Warnings:  warnings,
		Model:     e.Model,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SearchSources queries every provider and, when lib is ready, the local
// documents at the same time. Results are merged in provider order with
// local documents last. Provider failures become warnings.
func (e *ResearchEngine) SearchSources(ctx context.Context, topic string, lib Library) ([]SearchResult, []string, error) {
	n := len(e.Searchers)
	slots := make([][]SearchResult, n+1)
	slotWarnings := make([]string, n+1)

	var g errgroup.Group
	for i, s := range e.Searchers {
		e.status(statusLabel(s.Name()))
		g.Go(func() error {
			slots[i], slotWarnings[i] = e.searchProvider(ctx, s, topic)
			return nil
		})
	}

	if lib != nil && lib.Ready() {
		e.status(statusLabels[ProviderLocal])
		g.Go(func() error {
			res, err := lib.Search(ctx, topic)
			if err != nil {
				e.logger().Error("Local document search failed", "error", err)
				slotWarnings[n] = fmt.Sprintf("Error occurred while searching local documents: %v", err)
				return nil
			}
			slots[n] = []SearchResult{{
				Provider: ProviderLocal,
				Title:    res.Title,
				URL:      res.URL,
				Content:  res.Content,
			}}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var results []SearchResult
	var warnings []string
	for i := range slots {
		results = append(results, slots[i]...)
		if slotWarnings[i] != "" {
			warnings = append(warnings, slotWarnings[i])
		}
	}

	e.logger().Info("Search complete", "results", len(results), "warnings", len(warnings))
	return results, warnings, nil
}

func (e *ResearchEngine) searchProvider(ctx context.Context, s tools.Searcher, topic string) ([]SearchResult, string) {
	hits, err := s.Search(ctx, topic)
	if err != nil {
		if errors.Is(err, tools.ErrPageNotFound) {
			e.logger().Debug("No page for topic", "provider", s.Name(), "topic", topic)
			return nil, ""
		}
		e.logger().Error("Search failed", "provider", s.Name(), "error", err)
		return nil, fmt.Sprintf("%s search failed: %v", s.Name(), err)
	}

	e.logger().Info("Search successful", "provider", s.Name(), "count", len(hits))
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, SearchResult{
			Provider: s.Name(),
			Title:    h.Title,
			URL:      h.URL,
			Content:  h.Content,
		})
	}
	return out, ""
}

func statusLabel(name string) string {
	if l, ok := statusLabels[name]; ok {
		return l
	}
	return "Searching " + name
}

// GenerateReport prompts the model with results. Empty results are rejected
// before the model is called.
func (e *ResearchEngine) GenerateReport(ctx context.Context, topic string, results []SearchResult) (string, error) {
	if len(results) == 0 {
		return "", ErrNoResults
	}
	e.status("Generating Report")

	prompt := BuildReportPrompt(topic, results, e.Format)
	report, err := e.generateWithRetry(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, func(content string) error {
		if strings.TrimSpace(content) == "" {
			return errors.New("empty report")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("report generation failed: %w", err)
	}

	e.logger().Info("Final report generated", "length", len(report))
	return report, nil
}

// generateWithRetry attempts to generate content and validates it using the provided function.
// It retries with linear backoff if the LLM fails or the validator returns an error.
func (e *ResearchEngine) generateWithRetry(ctx context.Context, prompts []llms.MessageContent, validator func(string) error) (string, error) {
	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			e.logger().Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(e.RetryDelay * time.Duration(i)):
			}
		}

		resp, err := e.LLM.GenerateContent(ctx, prompts)
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if err := validator(content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}

		return content, nil
	}

	return "", fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

var _ Library = (*localdocs.Library)(nil)
