package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	compass "github.com/nevindra/compass"
)

// MemoryStore implements compass.MemoryStore backed by PostgreSQL.
// Retrieval uses full-text search against the query context, falling back
// to recency when nothing matches.
type MemoryStore struct {
	pool  *pgxpool.Pool
	limit int
}

var _ compass.MemoryStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore using an existing pgxpool.Pool.
func NewMemoryStore(pool *pgxpool.Pool) *MemoryStore {
	return &MemoryStore{pool: pool, limit: 10}
}

// Init creates the user_memories table and its search index.
func (s *MemoryStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS user_memories (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		entry TEXT NOT NULL,
		entry_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', entry)) STORED,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create user_memories: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS user_memories_tsv_idx ON user_memories USING GIN (entry_tsv)`)
	if err != nil {
		return fmt.Errorf("create user_memories index: %w", err)
	}
	return nil
}

// Retrieve returns up to 10 entries for the user, text-search matches
// first, newest first within each group.
func (s *MemoryStore) Retrieve(ctx context.Context, userID, queryContext string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT entry FROM user_memories
		WHERE user_id = $1
		ORDER BY (entry_tsv @@ plainto_tsquery('english', $2)) DESC, created_at DESC
		LIMIT $3`,
		userID, queryContext, s.limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: retrieve memories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("postgres: scan memory: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate memories: %w", err)
	}
	return out, nil
}

// Store appends one memory entry for the user.
func (s *MemoryStore) Store(ctx context.Context, userID, entry string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_memories (user_id, entry) VALUES ($1, $2)`,
		userID, entry)
	if err != nil {
		return fmt.Errorf("postgres: store memory: %w", err)
	}
	return nil
}
