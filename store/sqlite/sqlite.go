// Package sqlite implements compass.StateStore using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	compass "github.com/nevindra/compass"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements compass.StateStore backed by a local SQLite file.
// Conversation state is stored as a JSON document per (user, conversation)
// pair; conflicting saves merge append-only fields by record id.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ compass.StateStore = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// DB exposes the underlying handle so MemoryStore and Analytics can share
// the same serialized connection.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Init creates the conversation_states table.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS conversation_states (
		user_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		state TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, conversation_id)
	)`)
	if err != nil {
		return fmt.Errorf("create conversation_states: %w", err)
	}
	s.logger.Debug("sqlite: init done", "elapsed", time.Since(start))
	return nil
}

// Load returns the persisted state for the pair, compass.ErrStateNotFound
// when none exists, or compass.ErrCorruptState when the stored document
// no longer decodes.
func (s *Store) Load(ctx context.Context, userID, conversationID string) (compass.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM conversation_states WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID).Scan(&raw)
	if err == sql.ErrNoRows {
		return compass.State{}, compass.ErrStateNotFound
	}
	if err != nil {
		return compass.State{}, fmt.Errorf("sqlite: load state: %w", err)
	}

	var state compass.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return compass.State{}, &compass.ErrCorruptState{ConversationID: conversationID, Cause: err}
	}
	s.logger.Debug("sqlite: state loaded",
		"conversation_id", conversationID,
		"messages", len(state.Messages))
	return state, nil
}

// Save persists the state atomically. A concurrent writer's appends are
// preserved: the transaction re-reads the stored document, unions the
// append-only sequences by record id, and lets the incoming write win on
// overwrite fields.
func (s *Store) Save(ctx context.Context, state compass.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT state FROM conversation_states WHERE user_id = ? AND conversation_id = ?`,
		state.UserID, state.ConversationID).Scan(&raw)
	if err == nil {
		var stored compass.State
		if jsonErr := json.Unmarshal([]byte(raw), &stored); jsonErr == nil {
			state = reconcile(stored, state)
		}
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: read current state: %w", err)
	}

	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("sqlite: encode state: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO conversation_states (user_id, conversation_id, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, conversation_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		state.UserID, state.ConversationID, string(doc), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite: save state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit save: %w", err)
	}
	s.logger.Debug("sqlite: state saved",
		"conversation_id", state.ConversationID,
		"messages", len(state.Messages))
	return nil
}

// reconcile merges a stored state into an incoming save. Overwrite fields
// come from the incoming write; append-only sequences are unioned by id so
// neither writer's records are lost. handoff_count stays monotone.
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
