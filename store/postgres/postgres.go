// Package postgres implements compass.StateStore and compass.MemoryStore
// using PostgreSQL.
//
// Both stores accept an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	compass "github.com/nevindra/compass"
)

// Store implements compass.StateStore backed by PostgreSQL. Conversation
// state is a JSONB document per (user, conversation) pair; conflicting
// saves merge append-only fields inside a serializable transaction.
type Store struct {
	pool *pgxpool.Pool
}

var _ compass.StateStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates the conversation_states table.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS conversation_states (
		user_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		state JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, conversation_id)
	)`)
	if err != nil {
		return fmt.Errorf("create conversation_states: %w", err)
	}
	return nil
}

// Load returns the persisted state for the pair, compass.ErrStateNotFound
// when none exists, or compass.ErrCorruptState when the stored document no
// longer decodes.
func (s *Store) Load(ctx context.Context, userID, conversationID string) (compass.State, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM conversation_states WHERE user_id = $1 AND conversation_id = $2`,
		userID, conversationID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return compass.State{}, compass.ErrStateNotFound
	}
	if err != nil {
		return compass.State{}, fmt.Errorf("postgres: load state: %w", err)
	}

	var state compass.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return compass.State{}, &compass.ErrCorruptState{ConversationID: conversationID, Cause: err}
	}
	return state, nil
}

// Save persists the state, merging append-only sequences with any
// concurrent writer's stored document before upserting.
func (s *Store) Save(ctx context.Context, state compass.State) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT state FROM conversation_states WHERE user_id = $1 AND conversation_id = $2 FOR UPDATE`,
		state.UserID, state.ConversationID).Scan(&raw)
	if err == nil {
		var stored compass.State
		if jsonErr := json.Unmarshal(raw, &stored); jsonErr == nil {
			state = reconcile(stored, state)
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: read current state: %w", err)
	}

	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("postgres: encode state: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO conversation_states (user_id, conversation_id, state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, conversation_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		state.UserID, state.ConversationID, doc, time.Now())
	if err != nil {
		return fmt.Errorf("postgres: save state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save: %w", err)
	}
	return nil
}

// reconcile merges a stored state into an incoming save, mirroring the
// SQLite store: incoming wins overwrite fields, append-only sequences
// union by id, handoff_count stays monotone.
func reconcile(stored, incoming compass.State) compass.State {
	out := incoming
	out.Messages = compass.MergeAppend(stored.Messages, incoming.Messages)
	out.SpecialistHandoffs = compass.MergeHandoffs(stored.SpecialistHandoffs, incoming.SpecialistHandoffs)
	if len(stored.ToolsUsed) > len(out.ToolsUsed) {
		out.ToolsUsed = stored.ToolsUsed
	}
	if len(stored.ResourceRecommendations) > len(out.ResourceRecommendations) {
		out.ResourceRecommendations = stored.ResourceRecommendations
	}
	if len(stored.ErrorRecoveryLog) > len(out.ErrorRecoveryLog) {
		out.ErrorRecoveryLog = stored.ErrorRecoveryLog
	}
	if len(stored.ReflectionHistory) > len(out.ReflectionHistory) {
		out.ReflectionHistory = stored.ReflectionHistory
	}
	if stored.HandoffCount > out.HandoffCount {
		out.HandoffCount = stored.HandoffCount
	}
	return out
}
