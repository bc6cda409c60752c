package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	compass "github.com/nevindra/compass"
)

// MemoryStoreOption configures a SQLite MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryLogger sets a structured logger for the memory store.
func WithMemoryLogger(l *slog.Logger) MemoryStoreOption {
	return func(s *MemoryStore) { s.logger = l }
}

// MemoryStore implements compass.MemoryStore backed by SQLite. Entries are
// plain text facts about a user; retrieval is keyword overlap against the
// query context, newest first.
//
// Use NewMemoryStore with a shared *sql.DB from Store.DB() so both stores
// share the same serialized connection.
type MemoryStore struct {
	db     *sql.DB
	logger *slog.Logger
	limit  int
}

var _ compass.MemoryStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore using an existing *sql.DB.
// Pass store.DB() to share the same connection as Store.
func NewMemoryStore(db *sql.DB, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{db: db, logger: nopLogger, limit: 10}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the user_memories table.
func (s *MemoryStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS user_memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		entry TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create user_memories: %w", err)
	}
	return nil
}

// Retrieve returns up to 10 recent entries for the user. Entries sharing a
// word with queryContext sort first, then recency decides.
func (s *MemoryStore) Retrieve(ctx context.Context, userID, queryContext string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry FROM user_memories WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, s.limit*4)
	if err != nil {
		return nil, fmt.Errorf("sqlite: retrieve memories: %w", err)
	}
	defer rows.Close()

	var matched, rest []string
	terms := strings.Fields(strings.ToLower(queryContext))
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("sqlite: scan memory: %w", err)
		}
		if overlaps(strings.ToLower(entry), terms) {
			matched = append(matched, entry)
		} else {
			rest = append(rest, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate memories: %w", err)
	}

	out := append(matched, rest...)
	if len(out) > s.limit {
		out = out[:s.limit]
	}
	s.logger.Debug("sqlite: memories retrieved", "user_id", userID, "count", len(out))
	return out, nil
}

// Store appends one memory entry for the user.
func (s *MemoryStore) Store(ctx context.Context, userID, entry string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_memories (user_id, entry, created_at) VALUES (?, ?, ?)`,
		userID, entry, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite: store memory: %w", err)
	}
	return nil
}

func overlaps(entry string, terms []string) bool {
	for _, t := range terms {
		if len(t) >= 3 && strings.Contains(entry, t) {
			return true
		}
	}
	return false
}
