// Package vectorstore holds the similarity indexes behind local document
// search: an in-process store, pgvector and Chroma.
package vectorstore

import "context"

// Document represents a chunk with its embedding and metadata.
type Document struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding,omitempty"`
}

// SimilaritySearchResult represents a search result with score
type SimilaritySearchResult struct {
	Document Document
	Score    float64
}

// Store indexes documents and answers nearest-neighbour queries. Embedding
// happens inside the store; callers deal in text.
type Store interface {
	AddDocuments(ctx context.Context, docs []Document) error
	// SimilaritySearch returns up to topK documents ordered by decreasing
	// similarity. A non-empty sourceFilter restricts to metadata "source".
	SimilaritySearch(ctx context.Context, query string, topK int, sourceFilter string) ([]SimilaritySearchResult, error)
}

// Embedder is the subset of embeddings.Embedder the stores need.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// embedMissing fills in embeddings for documents that do not carry one.
func embedMissing(ctx context.Context, e Embedder, docs []Document) error {
	var idx []int
	var texts []string
	for i, d := range docs {
		if len(d.Embedding) == 0 {
			idx = append(idx, i)
			texts = append(texts, d.Content)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	vecs, err := e.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	for j, i := range idx {
		docs[i].Embedding = vecs[j]
	}
	return nil
}

// SourceReader is implemented by stores that can return every chunk of a
// source in insertion order.
type SourceReader interface {
	GetContentBySource(ctx context.Context, source string) ([]Document, error)
}

// Dropper is implemented by stores that can discard everything they hold.
type Dropper interface {
	Drop(ctx context.Context) error
}
