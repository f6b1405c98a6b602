// Package transcript persists agent histories in SQLite. Committed turns
// are stored as ordered activities; failed turns are kept in a separate
// audit table and never reloaded into a history.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/martinemde/reactor/activity"
)

// FailedTurn is an audited turn that exhausted its retries.
type FailedTurn struct {
	ID        string              `json:"id"`
	SessionID string              `json:"session_id"`
	Turn      int                 `json:"turn"`
	Attempts  []activity.Activity `json:"attempts"`
	Causes    []string            `json:"causes"`
	CreatedAt time.Time           `json:"created_at"`
}

// Store reads and writes transcripts.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	// Each connection to :memory: opens a separate database.
	db.SetMaxOpenConns(1)
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates a store on db and applies the schema.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate transcript: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			kind TEXT NOT NULL,
			input TEXT NOT NULL,
			attributes_json TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activities_session
			ON activities(session_id, id);

		CREATE TABLE IF NOT EXISTS failed_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			attempts_json TEXT NOT NULL,
			causes_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_failed_turns_session
			ON failed_turns(session_id, created_at);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Commit appends the activities of a completed turn. Turn 0 holds the
// initial history.
func (s *Store) Commit(ctx context.Context, sessionID string, turn int, acts []activity.Activity) error {
	if sessionID == "" {
		return errors.New("transcript: session id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activities (session_id, turn, kind, input, attributes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare commit: %w", err)
	}
	defer stmt.Close()

	created := s.now().UTC().UnixMilli()
	for i, a := range acts {
		var attrs sql.NullString
		if a.HasAttrs() {
			data, err := json.Marshal(a.Attributes())
			if err != nil {
				return fmt.Errorf("marshal attributes of activity %d: %w", i, err)
			}
			attrs = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, sessionID, turn, string(a.Kind()), a.Input(), attrs, created); err != nil {
			return fmt.Errorf("insert activity %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Fail audits a turn that exhausted its retries.
func (s *Store) Fail(ctx context.Context, sessionID string, turn int, attempts []activity.Activity, causes []error) error {
	if sessionID == "" {
		return errors.New("transcript: session id is required")
	}
	if attempts == nil {
		attempts = []activity.Activity{}
	}
	attemptsJSON, err := json.Marshal(attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	msgs := make([]string, len(causes))
	for i, c := range causes {
		msgs[i] = c.Error()
	}
	causesJSON, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal causes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO failed_turns (id, session_id, turn, attempts_json, causes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, turn, string(attemptsJSON), string(causesJSON), s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert failed turn: %w", err)
	}
	return nil
}

// Load returns the committed history of a session in append order.
func (s *Store) Load(ctx context.Context, sessionID string) ([]activity.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, input, attributes_json FROM activities
		WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var acts []activity.Activity
	for rows.Next() {
		var kind, input string
		var attrsJSON sql.NullString
		if err := rows.Scan(&kind, &input, &attrsJSON); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		var attrs map[string]string
		if attrsJSON.Valid {
			if err := json.Unmarshal([]byte(attrsJSON.String), &attrs); err != nil {
				return nil, fmt.Errorf("unmarshal attributes: %w", err)
			}
		}
		a, err := activity.New(activity.Kind(kind), input, attrs)
		if err != nil {
			return nil, fmt.Errorf("stored activity %d: %w", len(acts), err)
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// LastTurn returns the highest committed turn number of a session, or 0.
func (s *Store) LastTurn(ctx context.Context, sessionID string) (int, error) {
	var turn sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(turn) FROM activities WHERE session_id = ?`, sessionID).Scan(&turn)
	if err != nil {
		return 0, fmt.Errorf("query last turn: %w", err)
	}
	return int(turn.Int64), nil
}

// FailedTurns returns the audited failures of a session, oldest first.
func (s *Store) FailedTurns(ctx context.Context, sessionID string) ([]FailedTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, turn, attempts_json, causes_json, created_at FROM failed_turns
		WHERE session_id = ? ORDER BY created_at, turn`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query failed turns: %w", err)
	}
	defer rows.Close()

	var out []FailedTurn
	for rows.Next() {
		ft := FailedTurn{SessionID: sessionID}
		var attemptsJSON, causesJSON string
		var created int64
		if err := rows.Scan(&ft.ID, &ft.Turn, &attemptsJSON, &causesJSON, &created); err != nil {
			return nil, fmt.Errorf("scan failed turn: %w", err)
		}
		if err := json.Unmarshal([]byte(attemptsJSON), &ft.Attempts); err != nil {
			return nil, fmt.Errorf("unmarshal attempts: %w", err)
		}
		if err := json.Unmarshal([]byte(causesJSON), &ft.Causes); err != nil {
			return nil, fmt.Errorf("unmarshal causes: %w", err)
		}
		ft.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, ft)
	}
	return out, rows.Err()
}

// Sessions lists the sessions with committed activities, most recent first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id FROM activities
		GROUP BY session_id ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
