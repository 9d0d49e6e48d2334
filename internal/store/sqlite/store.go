// Package sqlite persists the coordination audit trail: one row per round
// plus an append-only event table mirroring the bus telemetry. The replay,
// rounds, and watch commands read from it.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
	id TEXT PRIMARY KEY,
	task TEXT NOT NULL,
	winner_agent TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	iterations INTEGER NOT NULL DEFAULT 0,
	debate_rounds INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL,
	completed_at INTEGER NULL
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	round_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	type TEXT NOT NULL,
	agent_id TEXT NOT NULL DEFAULT '',
	iteration INTEGER NOT NULL DEFAULT 0,
	payload TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	FOREIGN KEY(round_id) REFERENCES rounds(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_events_round ON events(round_id, seq);
`

// Round is one persisted coordination round.
type Round struct {
	ID           string
	Task         string
	WinnerAgent  string
	Reason       string
	Iterations   int
	DebateRounds int
	StartedAt    time.Time
	CompletedAt  *time.Time // nil while the round is in flight
}

// Event is one persisted telemetry event.
type Event struct {
	RoundID   string
	Seq       int
	Type      string
	AgentID   string
	Iteration int
	Payload   map[string]any
	CreatedAt time.Time
}

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// CreateRound inserts a round row at round start.
func (s *Store) CreateRound(ctx context.Context, r Round) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO rounds(id, task, started_at) VALUES(?, ?, ?)`,
		r.ID, r.Task, r.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create round: %w", err)
	}
	return nil
}

// CompleteRound records the round's outcome.
func (s *Store) CompleteRound(ctx context.Context, id, winner, reason string, iterations, debateRounds int, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE rounds SET winner_agent = ?, reason = ?, iterations = ?, debate_rounds = ?, completed_at = ?
		WHERE id = ?`,
		winner, reason, iterations, debateRounds, at.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("complete round: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete round: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("complete round: round %q not found", id)
	}
	return nil
}

// AppendEvent inserts one event row.
func (s *Store) AppendEvent(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO events(round_id, seq, type, agent_id, iteration, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.RoundID, e.Seq, e.Type, e.AgentID, e.Iteration, string(raw), e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// GetRound returns one round by ID.
func (s *Store) GetRound(ctx context.Context, id string) (Round, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, task, winner_agent, reason, iterations, debate_rounds, started_at, completed_at
		FROM rounds WHERE id = ?`,
		id,
	)
	return scanRound(row.Scan)
}

// ListRounds returns all rounds, most recent first.
func (s *Store) ListRounds(ctx context.Context) ([]Round, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task, winner_agent, reason, iterations, debate_rounds, started_at, completed_at
		FROM rounds ORDER BY started_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	result := make([]Round, 0)
	for rows.Next() {
		r, err := scanRound(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return result, nil
}

// ListEvents returns a round's events in sequence order.
func (s *Store) ListEvents(ctx context.Context, roundID string) ([]Event, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT round_id, seq, type, agent_id, iteration, payload, created_at
		FROM events WHERE round_id = ? ORDER BY seq ASC`,
		roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	result := make([]Event, 0)
	for rows.Next() {
		var e Event
		var payload string
		var created int64
		if err := rows.Scan(&e.RoundID, &e.Seq, &e.Type, &e.AgentID, &e.Iteration, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return result, nil
}

func scanRound(scan func(dest ...any) error) (Round, error) {
	var r Round
	var completed sql.NullInt64
	var started int64
	if err := scan(
		&r.ID, &r.Task, &r.WinnerAgent, &r.Reason, &r.Iterations, &r.DebateRounds,
		&started, &completed,
	); err != nil {
		return Round{}, fmt.Errorf("scan round: %w", err)
	}
	r.StartedAt = time.Unix(started, 0).UTC()
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		r.CompletedAt = &t
	}
	return r, nil
}
