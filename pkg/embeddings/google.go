package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultDimension is the output dimensionality requested from the API.
const DefaultDimension = 1536

// Embedder turns text into vectors.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GoogleEmbedder wraps Gemini embeddings
type GoogleEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewGoogleEmbedder creates a new Gemini API embedder
func NewGoogleEmbedder(ctx context.Context, model, apiKey string) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GoogleEmbedder{
		client:    client,
		model:     model,
		dimension: DefaultDimension,
	}, nil
}

// Dimension reports the vector size this embedder produces.
func (e *GoogleEmbedder) Dimension() int {
	return int(e.dimension)
}

// EmbedText generates embeddings for a single text
func (e *GoogleEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// maxBatch is the per-request content limit of batchEmbedContents.
const maxBatch = 100

// EmbedTexts generates embeddings for multiple texts, batching requests.
func (e *GoogleEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		vecs, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, vecs...)
	}
	return result, nil
}

func (e *GoogleEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	dim := e.dimension
	res, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding returned")
		}
		out[i] = emb.Values
	}
	return out, nil
}
