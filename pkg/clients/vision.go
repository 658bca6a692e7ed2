package clients

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const visionPrompt = "Explain the picture and Extract Text from picture?"

// Vision describes images with a multimodal Gemini model.
type Vision struct {
	client *genai.Client
	model  string
}

func NewVision(ctx context.Context, apiKey, model string) (*Vision, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Vision{client: client, model: model}, nil
}

// DescribeImage explains the picture and transcribes any text in it.
func (v *Vision) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(visionPrompt),
		},
	}}

	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("image description failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
