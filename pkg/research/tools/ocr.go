package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const mistralBaseURL = "https://api.mistral.ai"

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

// MistralOCR extracts text, including text inside embedded images, through the
// Mistral OCR API.
type MistralOCR struct {
	APIKey string
	Model  string
	client *resty.Client
}

func NewMistralOCR(apiKey string) *MistralOCR {
	return NewMistralOCRWithClient(apiKey, NewRestClient(mistralBaseURL, 120*time.Second))
}

func NewMistralOCRWithClient(apiKey string, client *resty.Client) *MistralOCR {
	return &MistralOCR{APIKey: apiKey, Model: "mistral-ocr-latest", client: client}
}

// OCRDocument sends an in-memory document as a base64 data URL.
func (m *MistralOCR) OCRDocument(ctx context.Context, data []byte, mimeType string) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return m.ocr(ctx, dataURL)
}

func (m *MistralOCR) ocr(ctx context.Context, documentURL string) (string, error) {
	if m.APIKey == "" {
		return "", errors.New("MISTRAL_API_KEY is not set")
	}

	var out ocrResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetAuthToken(m.APIKey).
		SetBody(map[string]any{
			"model": m.Model,
			"document": map[string]string{
				"type":         "document_url",
				"document_url": documentURL,
			},
		}).
		SetResult(&out).
		Post("/v1/ocr")
	if err != nil {
		return "", fmt.Errorf("failed to make API request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("API request failed with status: %d, body: %s", resp.StatusCode(), resp.String())
	}

	var sb strings.Builder
	for _, page := range out.Pages {
		sb.WriteString(page.Markdown)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
