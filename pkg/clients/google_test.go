package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/researchify/pkg/config"
)

func TestReportModelSelectsGroq(t *testing.T) {
	cfg := &config.Config{LLMProvider: config.ProviderGroq, GroqApiKey: "gsk_test", GroqModel: "llama3-8b-8192"}

	llm, model, err := ReportModel(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, llm)
	assert.Equal(t, "llama3-8b-8192", model)
}

func TestReportModelErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"groq without key", config.Config{LLMProvider: config.ProviderGroq}},
		{"google without key", config.Config{LLMProvider: config.ProviderGoogle}},
		{"unknown provider", config.Config{LLMProvider: "cohere"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReportModel(context.Background(), &tt.cfg)
			assert.Error(t, err)
		})
	}
}
