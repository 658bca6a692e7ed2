package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process and ranks by cosine similarity.
// It lives as long as the session that owns it.
type MemoryStore struct {
	embedder Embedder

	mu   sync.RWMutex
	docs []Document
}

func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

func (m *MemoryStore) AddDocuments(ctx context.Context, docs []Document) error {
	docs = append([]Document(nil), docs...)
	if err := embedMissing(ctx, m.embedder, docs); err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
	}

	m.mu.Lock()
	m.docs = append(m.docs, docs...)
	m.mu.Unlock()
	return nil
}

// Drop discards every document.
func (m *MemoryStore) Drop(_ context.Context) error {
	m.mu.Lock()
	m.docs = nil
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryStore) SimilaritySearch(ctx context.Context, query string, topK int, sourceFilter string) ([]SimilaritySearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	q, err := m.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	m.mu.RLock()
	results := make([]SimilaritySearchResult, 0, len(m.docs))
	for _, d := range m.docs {
		if sourceFilter != "" && d.Metadata["source"] != sourceFilter {
			continue
		}
		results = append(results, SimilaritySearchResult{Document: d, Score: cosine(q, d.Embedding)})
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// GetContentBySource returns the chunks of source in insertion order.
func (m *MemoryStore) GetContentBySource(_ context.Context, source string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for _, d := range m.docs {
		if d.Metadata["source"] == source {
			out = append(out, d)
		}
	}
	return out, nil
}
