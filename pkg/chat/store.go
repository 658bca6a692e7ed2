package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrConversationNotFound is returned for an unknown conversation id.
var ErrConversationNotFound = errors.New("conversation not found")

// Store persists conversations and their messages.
type Store interface {
	CreateConversation(ctx context.Context) (*Conversation, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
	GetHistory(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (uuid.UUID, error)
	SetTitle(ctx context.Context, conversationID uuid.UUID, title string) error
}

// MemoryStore keeps conversations in process.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*Conversation
	messages      map[uuid.UUID][]Message
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[uuid.UUID]*Conversation),
		messages:      make(map[uuid.UUID][]Message),
		now:           time.Now,
	}
}

func (m *MemoryStore) CreateConversation(_ context.Context) (*Conversation, error) {
	now := m.now()
	conv := &Conversation{ID: uuid.New(), Title: "New Conversation", CreatedAt: now, UpdatedAt: now}

	m.mu.Lock()
	m.conversations[conv.ID] = conv
	m.mu.Unlock()

	c := *conv
	return &c, nil
}

func (m *MemoryStore) ListConversations(_ context.Context) ([]Conversation, error) {
	m.mu.RLock()
	convs := make([]Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		convs = append(convs, *c)
	}
	m.mu.RUnlock()

	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

func (m *MemoryStore) GetHistory(_ context.Context, conversationID uuid.UUID) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	return append([]Message(nil), m.messages[conversationID]...), nil
}

func (m *MemoryStore) AddMessage(_ context.Context, conversationID uuid.UUID, role, content string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return uuid.Nil, ErrConversationNotFound
	}
	msg := Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      m.now(),
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	conv.UpdatedAt = msg.CreatedAt
	return msg.ID, nil
}

func (m *MemoryStore) SetTitle(_ context.Context, conversationID uuid.UUID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Title = title
	return nil
}
