package localdocs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mikeboe/researchify/pkg/splitter"
	"github.com/mikeboe/researchify/pkg/vectorstore"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// StoreFactory opens the vector index backing one session.
type StoreFactory func(ctx context.Context, sessionID string) (vectorstore.Store, error)

// Registry keeps one Library per session.
type Registry struct {
	extractor Extractor
	newStore  StoreFactory
	chunkSize int
	overlap   int
	topK      int

	mu       sync.RWMutex
	sessions map[string]*Library
}

func NewRegistry(extractor Extractor, newStore StoreFactory, chunkSize, overlap, topK int) *Registry {
	return &Registry{
		extractor: extractor,
		newStore:  newStore,
		chunkSize: chunkSize,
		overlap:   overlap,
		topK:      topK,
		sessions:  make(map[string]*Library),
	}
}

// Create opens a new session with an empty library.
func (r *Registry) Create(ctx context.Context) (string, *Library, error) {
	id := uuid.NewString()
	lib, err := r.NewLibrary(ctx, id)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	r.sessions[id] = lib
	r.mu.Unlock()
	return id, lib, nil
}

// NewLibrary builds a library without registering it.
func (r *Registry) NewLibrary(ctx context.Context, sessionID string) (*Library, error) {
	ts, err := splitter.NewRecursiveCharacterTextSplitter(r.chunkSize, r.overlap)
	if err != nil {
		return nil, err
	}
	store, err := r.newStore(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return New(r.extractor, ts, store, r.topK), nil
}

// Get returns the library of a session.
func (r *Registry) Get(id string) (*Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return lib, nil
}

// Delete forgets a session and drops its index from the backing store.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	lib, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	if d, ok := lib.Store().(vectorstore.Dropper); ok {
		if err := d.Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop session %s: %w", id, err)
		}
	}
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
