package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/researchify/pkg/database"
)

// PostgresStore keeps conversations in the conversations and messages tables.
type PostgresStore struct {
	DB *database.PostgresDB
}

func NewPostgresStore(db *database.PostgresDB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) CreateConversation(ctx context.Context) (*Conversation, error) {
	id := uuid.New()
	query := `INSERT INTO conversations (id) VALUES ($1) RETURNING id, title, created_at, updated_at`

	conv := &Conversation{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context) ([]Conversation, error) {
	query := `SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (s *PostgresStore) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	var exists bool
	err := s.DB.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, conversationID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrConversationNotFound
	}

	query := `SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	rows, err := s.DB.Pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *PostgresStore) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.DB.Pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, $3, $4)`,
		id, conversationID, role, content)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save %s message: %w", role, err)
	}

	if _, err := s.DB.Pool.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID); err != nil {
		return id, fmt.Errorf("failed to touch conversation: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) SetTitle(ctx context.Context, conversationID uuid.UUID, title string) error {
	tag, err := s.DB.Pool.Exec(ctx, `UPDATE conversations SET title = $2 WHERE id = $1`, conversationID, title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConversationNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}
