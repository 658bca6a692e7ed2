package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikeboe/researchify/pkg/clients"
	"github.com/mikeboe/researchify/pkg/config"
	"github.com/mikeboe/researchify/pkg/database"
	"github.com/mikeboe/researchify/pkg/embeddings"
	"github.com/mikeboe/researchify/pkg/extract"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research/tools"
	"github.com/mikeboe/researchify/pkg/vectorstore"
)

// Vector backends accepted by VECTOR_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPGVector = "pgvector"
	BackendChroma   = "chroma"
)

// ErrNoEmbedder is returned when a document session is opened without
// GOOGLE_API_KEY.
var ErrNoEmbedder = errors.New("document search requires GOOGLE_API_KEY for embeddings")

// NewExtractor builds the file extractor. OCR needs MISTRAL_API_KEY and image
// uploads need GOOGLE_API_KEY; either is left unset otherwise.
func NewExtractor(ctx context.Context, cfg *config.Config) (*extract.Extractor, error) {
	ex := extract.New(nil, nil)
	if cfg.MistralApiKey != "" {
		ex.OCR = tools.NewMistralOCR(cfg.MistralApiKey)
	}
	if cfg.GoogleApiKey != "" {
		vision, err := clients.NewVision(ctx, cfg.GoogleApiKey, cfg.VisionModel)
		if err != nil {
			return nil, err
		}
		ex.Vision = vision
	}
	return ex, nil
}

// NewStoreFactory opens one vector index per session on the configured
// backend. db is only required for pgvector.
func NewStoreFactory(ctx context.Context, cfg *config.Config, db *database.PostgresDB) (localdocs.StoreFactory, error) {
	if cfg.GoogleApiKey == "" {
		return func(context.Context, string) (vectorstore.Store, error) {
			return nil, ErrNoEmbedder
		}, nil
	}

	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey)
	if err != nil {
		return nil, err
	}

	switch cfg.VectorBackend {
	case BackendMemory, "":
		return func(_ context.Context, _ string) (vectorstore.Store, error) {
			return vectorstore.NewMemoryStore(embedder), nil
		}, nil

	case BackendPGVector:
		if db == nil {
			return nil, fmt.Errorf("pgvector backend requires DATABASE_URL")
		}
		if err := db.SetupVectorTable(ctx, cfg.CollectionName, embedder.Dimension()); err != nil {
			return nil, err
		}
		base, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName, embedder)
		if err != nil {
			return nil, err
		}
		return func(_ context.Context, sessionID string) (vectorstore.Store, error) {
			return base.Scoped("session", sessionID), nil
		}, nil

	case BackendChroma:
		if cfg.ChromaURL == "" {
			return nil, fmt.Errorf("chroma backend requires CHROMA_URL")
		}
		return func(ctx context.Context, sessionID string) (vectorstore.Store, error) {
			return vectorstore.NewChromaStore(ctx, cfg.ChromaURL, cfg.CollectionName+"_"+sessionID, embedder)
		}, nil

	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.VectorBackend)
	}
}

// NewRegistry wires extractor and vector backend into a session registry.
func NewRegistry(ctx context.Context, cfg *config.Config, db *database.PostgresDB) (*localdocs.Registry, error) {
	ex, err := NewExtractor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	newStore, err := NewStoreFactory(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	return localdocs.NewRegistry(ex, newStore, cfg.ChunkSize, cfg.ChunkOverlap, cfg.LocalTopK), nil
}
