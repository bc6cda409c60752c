package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	compass "github.com/nevindra/compass"
)

// Analytics implements compass.AnalyticsSink backed by SQLite. Payloads
// are stored as JSON rows keyed by session; Log never returns an error to
// the caller, matching the fire-and-forget contract.
type Analytics struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ compass.AnalyticsSink = (*Analytics)(nil)

// NewAnalytics creates an Analytics sink using an existing *sql.DB.
// Pass store.DB() to share the same connection as Store.
func NewAnalytics(db *sql.DB, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = nopLogger
	}
	return &Analytics{db: db, logger: logger}
}

// Init creates the turn_analytics table.
func (a *Analytics) Init(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS turn_analytics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create turn_analytics: %w", err)
	}
	return nil
}

// Log records one turn payload. Failures are logged and swallowed.
func (a *Analytics) Log(ctx context.Context, sessionID string, payload map[string]any) {
	doc, err := json.Marshal(payload)
	if err != nil {
		a.logger.Warn("analytics: encode payload", "error", err)
		return
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO turn_analytics (session_id, payload, created_at) VALUES (?, ?, ?)`,
		sessionID, string(doc), time.Now().Unix())
	if err != nil {
		a.logger.Warn("analytics: insert failed", "error", err)
	}
}

// SessionAverages returns the average quality_overall per session, for
// offline inspection of tracker behavior.
func (a *Analytics) SessionAverages(ctx context.Context) (map[string]float64, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT session_id, payload FROM turn_analytics`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read analytics: %w", err)
	}
	defer rows.Close()

	sums := map[string]float64{}
	counts := map[string]int{}
	for rows.Next() {
		var sessionID, raw string
		if err := rows.Scan(&sessionID, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan analytics: %w", err)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			continue
		}
		if overall, ok := payload["quality_overall"].(float64); ok {
			sums[sessionID] += overall
			counts[sessionID]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate analytics: %w", err)
	}

	out := make(map[string]float64, len(sums))
	for id, sum := range sums {
		out[id] = sum / float64(counts[id])
	}
	return out, nil
}
