package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVectorStore keeps chunks in a pgvector table. Sessions share the table
// and are kept apart by the scope merged into every row's metadata.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	tableName string
	embedder  Embedder
	scope     map[string]interface{}
}

// isValidTableName validates that a table name contains only safe characters
// to prevent SQL injection attacks
func isValidTableName(name string) bool {
	// Table names must start with a letter or underscore and be between 1-63 chars (PostgreSQL limit)
	matched, _ := regexp.MatchString(`^[a-z_][a-zA-Z0-9_]{0,62}$`, name)
	return matched
}

// NewPGVectorStore creates a new PGVector store
func NewPGVectorStore(pool *pgxpool.Pool, tableName string, embedder Embedder) (*PGVectorStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid table name: must contain only alphanumeric characters and underscores, start with a letter or underscore, and be 1-63 characters long")
	}
	return &PGVectorStore{
		pool:      pool,
		tableName: tableName,
		embedder:  embedder,
	}, nil
}

// Scoped returns a view of the store whose rows carry key=value and whose
// queries only see rows carrying it.
func (vs *PGVectorStore) Scoped(key string, value interface{}) *PGVectorStore {
	scope := make(map[string]interface{}, len(vs.scope)+1)
	for k, v := range vs.scope {
		scope[k] = v
	}
	scope[key] = value
	return &PGVectorStore{
		pool:      vs.pool,
		tableName: vs.tableName,
		embedder:  vs.embedder,
		scope:     scope,
	}
}

// AddDocuments embeds and inserts documents in one batch
func (vs *PGVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	docs = append([]Document(nil), docs...)
	if err := embedMissing(ctx, vs.embedder, docs); err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3)
	`, pgx.Identifier{vs.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for _, doc := range docs {
		metadataJSON, err := json.Marshal(vs.withScope(doc.Metadata))
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		embedding := pgvector.NewVector(doc.Embedding)
		batch.Queue(query, doc.Content, metadataJSON, embedding)
	}

	br := vs.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
	}

	return nil
}

// SimilaritySearch performs a cosine similarity search within the scope
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryText string, topK int, sourceFilter string) ([]SimilaritySearchResult, error) {
	queryEmbedding, err := vs.embedder.EmbedText(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	filter := vs.withScope(nil)
	if sourceFilter != "" {
		filter["source"] = sourceFilter
	}

	args := []interface{}{pgvector.NewVector(queryEmbedding)}
	where, err := buildMetadataQuery(filter, &args)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) as similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, pgx.Identifier{vs.tableName}.Sanitize(), where, len(args))

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []SimilaritySearchResult
	for rows.Next() {
		var doc Document
		var metadataJSON []byte
		var similarity float64

		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		results = append(results, SimilaritySearchResult{
			Document: doc,
			Score:    similarity,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// GetContentBySource retrieves all chunks of one source within the scope
func (vs *PGVectorStore) GetContentBySource(ctx context.Context, source string) ([]Document, error) {
	filter := vs.withScope(nil)
	filter["source"] = source

	var args []interface{}
	where, err := buildMetadataQuery(filter, &args)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata
		FROM %s
		WHERE %s
		ORDER BY created_at, (metadata->>'chunk')::int
	`, pgx.Identifier{vs.tableName}.Sanitize(), where)

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var documents []Document
	for rows.Next() {
		var doc Document
		var metadataJSON []byte

		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return documents, nil
}

// Drop deletes every row within the scope. An unscoped store refuses, since
// that would empty the whole table.
func (vs *PGVectorStore) Drop(ctx context.Context) error {
	if len(vs.scope) == 0 {
		return fmt.Errorf("refusing to drop unscoped table %s", vs.tableName)
	}

	var args []interface{}
	where, err := buildMetadataQuery(vs.scope, &args)
	if err != nil {
		return fmt.Errorf("failed to build metadata query: %w", err)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", pgx.Identifier{vs.tableName}.Sanitize(), where)
	if _, err := vs.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to drop documents: %w", err)
	}
	return nil
}

func (vs *PGVectorStore) withScope(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+len(vs.scope))
	for k, v := range meta {
		out[k] = v
	}
	for k, v := range vs.scope {
		out[k] = v
	}
	return out
}

// buildMetadataQuery recursively builds a SQL WHERE clause for a JSON filter.
// Supports $and, $or and $not; other keys are equality matches. Placeholders
// continue from the arguments already in args.
func buildMetadataQuery(filter map[string]interface{}, args *[]interface{}) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conditions []string

	for _, key := range keys {
		value := filter[key]
		switch key {
		case "$and", "$or":
			list, ok := value.([]interface{})
			if !ok {
				return "", fmt.Errorf("value for %s must be a list of conditions", key)
			}
			var subConditions []string
			for _, item := range list {
				subMap, ok := item.(map[string]interface{})
				if !ok {
					return "", fmt.Errorf("item in %s list must be a JSON object", key)
				}
				subQuery, err := buildMetadataQuery(subMap, args)
				if err != nil {
					return "", err
				}
				subConditions = append(subConditions, "("+subQuery+")")
			}

			if len(subConditions) == 0 {
				continue
			}

			op := " AND "
			if key == "$or" {
				op = " OR "
			}
			conditions = append(conditions, "("+strings.Join(subConditions, op)+")")

		case "$not":
			subMap, ok := value.(map[string]interface{})
			if !ok {
				return "", fmt.Errorf("value for $not must be a JSON object")
			}
			subQuery, err := buildMetadataQuery(subMap, args)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, "NOT ("+subQuery+")")

		default:
			// metadata @> '{"key": value}'
			pair := map[string]interface{}{key: value}
			jsonBytes, err := json.Marshal(pair)
			if err != nil {
				return "", fmt.Errorf("failed to marshal metadata pair: %w", err)
			}
			*args = append(*args, jsonBytes)
			conditions = append(conditions, fmt.Sprintf("metadata @> $%d", len(*args)))
		}
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}

	return strings.Join(conditions, " AND "), nil
}
