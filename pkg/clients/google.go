package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mikeboe/researchify/pkg/config"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// GoogleAi returns a Gemini chat model.
func GoogleAi(ctx context.Context, apiKey, model string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required")
	}

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create googleai client: %w", err)
	}

	return llm, nil
}

// Groq returns a Groq-hosted model through the OpenAI-compatible API.
func Groq(apiKey, model string) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq api key is required")
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(GroqBaseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create groq client: %w", err)
	}

	return llm, nil
}

// ReportModel picks the report writer named by LLM_PROVIDER and returns it
// with its model name.
func ReportModel(ctx context.Context, cfg *config.Config) (llms.Model, string, error) {
	switch cfg.LLMProvider {
	case config.ProviderGroq:
		llm, err := Groq(cfg.GroqApiKey, cfg.GroqModel)
		if err != nil {
			return nil, "", err
		}
		return llm, cfg.GroqModel, nil
	case config.ProviderGoogle, "":
		llm, err := GoogleAi(ctx, cfg.GoogleApiKey, cfg.ReportModel)
		if err != nil {
			return nil, "", err
		}
		return llm, cfg.ReportModel, nil
	default:
		return nil, "", fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}
