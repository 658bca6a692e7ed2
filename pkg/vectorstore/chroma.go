package vectorstore

import (
	"context"
	"fmt"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// ChromaStore keeps documents in a Chroma collection. The collection embeds
// through the supplied Embedder so vectors match the other backends.
type ChromaStore struct {
	client chroma.Client
	col    chroma.Collection
}

// NewChromaStore opens (or creates) the named collection on a Chroma server.
func NewChromaStore(ctx context.Context, baseURL, collection string, embedder Embedder) (*ChromaStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	col, err := client.GetOrCreateCollection(ctx, collection,
		chroma.WithEmbeddingFunctionCreate(&chromaEmbeddingFunction{embedder: embedder}))
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collection, err)
	}

	return &ChromaStore{client: client, col: col}, nil
}

// Drop deletes the collection from the server.
func (cs *ChromaStore) Drop(ctx context.Context) error {
	if cs.client == nil {
		return nil
	}
	if err := cs.client.DeleteCollection(ctx, cs.col.Name()); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", cs.col.Name(), err)
	}
	return nil
}

func (cs *ChromaStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	metas := make([]chroma.DocumentMetadata, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
		metas[i] = chromaMetadata(d.Metadata)
	}

	err := cs.col.Add(ctx,
		chroma.WithTexts(texts...),
		chroma.WithIDGenerator(chroma.NewULIDGenerator()),
		chroma.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add documents to chroma: %w", err)
	}
	return nil
}

func (cs *ChromaStore) SimilaritySearch(ctx context.Context, query string, topK int, sourceFilter string) ([]SimilaritySearchResult, error) {
	opts := []chroma.CollectionQueryOption{
		chroma.WithQueryTexts(query),
		chroma.WithNResults(topK),
	}
	if sourceFilter != "" {
		opts = append(opts, chroma.WithWhereQuery(chroma.EqString("source", sourceFilter)))
	}

	r, err := cs.col.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	groups := r.GetDocumentsGroups()
	if len(groups) == 0 {
		return nil, nil
	}
	docs := groups[0]
	var metadatas chroma.DocumentMetadatas
	if mg := r.GetMetadatasGroups(); len(mg) > 0 {
		metadatas = mg[0]
	}
	var distances embeddings.Distances
	if dg := r.GetDistancesGroups(); len(dg) > 0 {
		distances = dg[0]
	}

	results := make([]SimilaritySearchResult, 0, len(docs))
	for i := range docs {
		doc := Document{Content: docs[i].ContentString(), Metadata: map[string]interface{}{}}
		if i < len(metadatas) && metadatas[i] != nil {
			if source, ok := metadatas[i].GetString("source"); ok {
				doc.Metadata["source"] = source
			}
		}
		score := 0.0
		if i < len(distances) {
			score = 1 - float64(distances[i])
		}
		results = append(results, SimilaritySearchResult{Document: doc, Score: score})
	}
	return results, nil
}

func chromaMetadata(meta map[string]interface{}) chroma.DocumentMetadata {
	attrs := make([]*chroma.MetaAttribute, 0, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, chroma.NewStringAttribute(k, val))
		case int:
			attrs = append(attrs, chroma.NewIntAttribute(k, int64(val)))
		case int64:
			attrs = append(attrs, chroma.NewIntAttribute(k, val))
		case float64:
			attrs = append(attrs, chroma.NewFloatAttribute(k, val))
		case bool:
			attrs = append(attrs, chroma.NewBoolAttribute(k, val))
		default:
			attrs = append(attrs, chroma.NewStringAttribute(k, fmt.Sprint(val)))
		}
	}
	return chroma.NewDocumentMetadata(attrs...)
}

// chromaEmbeddingFunction adapts an Embedder to Chroma's embedding function.
type chromaEmbeddingFunction struct {
	embedder Embedder
}

func (f *chromaEmbeddingFunction) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	vecs, err := f.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]embeddings.Embedding, len(vecs))
	for i, v := range vecs {
		out[i] = embeddings.NewEmbeddingFromFloat32(v)
	}
	return out, nil
}

func (f *chromaEmbeddingFunction) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	v, err := f.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbeddingFromFloat32(v), nil
}
