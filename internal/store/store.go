// Package store keeps a SQLite ledger of runs and the shorts they produced.
// It backs the history and sweep commands.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// migrate is idempotent.
func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			work_dir TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			requested INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			finished_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS shorts (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			idx INTEGER NOT NULL,
			start_sec INTEGER NOT NULL,
			end_sec INTEGER NOT NULL,
			status TEXT NOT NULL,
			step TEXT NOT NULL DEFAULT '',
			file TEXT NOT NULL DEFAULT '',
			log TEXT NOT NULL DEFAULT '',
			started_at INTEGER,
			finished_at INTEGER,
			UNIQUE(session_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_open ON sessions(finished_at, started_at)`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

type SessionRecord struct {
	ID        string
	Source    string
	Title     string
	WorkDir   string
	Provider  string
	Requested int
	State     string
	Error     string
	StartedAt time.Time
	Finished  bool
}

type ShortRecord struct {
	SessionID  string
	Title      string
	Index      int
	StartSec   int
	EndSec     int
	Status     string
	Step       string
	File       string
	Log        string
	FinishedAt time.Time
}

// BeginSession inserts a new unfinished session row.
func (s *Store) BeginSession(ctx context.Context, r SessionRecord) error {
	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source, title, work_dir, provider, requested, state, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.Title, r.WorkDir, r.Provider, r.Requested, r.State, now, now)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession records a state transition and optionally the resolved title.
func (s *Store) UpdateSession(ctx context.Context, id, state, title string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, title = CASE WHEN ? <> '' THEN ? ELSE title END, updated_at = ? WHERE id = ?`,
		state, title, title, s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// FinishSession closes a session. errMsg is empty on success.
func (s *Store) FinishSession(ctx context.Context, id, state, errMsg string) error {
	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, error = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		state, errMsg, now, now, id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// AddShort inserts a pending short for a selected highlight.
func (s *Store) AddShort(ctx context.Context, sessionID string, idx, startSec, endSec int) error {
	err := s.touch(ctx, sessionID,
		`INSERT INTO shorts (session_id, idx, start_sec, end_sec, status) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, idx) DO UPDATE SET start_sec = excluded.start_sec, end_sec = excluded.end_sec, status = excluded.status`,
		sessionID, idx, startSec, endSec, StatusPending)
	if err != nil {
		return fmt.Errorf("insert short: %w", err)
	}
	return nil
}

// MarkShortStep moves a short to processing at the given step.
func (s *Store) MarkShortStep(ctx context.Context, sessionID string, idx int, step string) error {
	err := s.touch(ctx, sessionID,
		`UPDATE shorts SET status = ?, step = ?, started_at = COALESCE(started_at, ?) WHERE session_id = ? AND idx = ?`,
		StatusProcessing, step, s.now().Unix(), sessionID, idx)
	if err != nil {
		return fmt.Errorf("mark short step: %w", err)
	}
	return nil
}

func (s *Store) MarkShortComplete(ctx context.Context, sessionID string, idx int, file string) error {
	err := s.touch(ctx, sessionID,
		`UPDATE shorts SET status = ?, file = ?, finished_at = ? WHERE session_id = ? AND idx = ?`,
		StatusComplete, file, s.now().Unix(), sessionID, idx)
	if err != nil {
		return fmt.Errorf("mark short complete: %w", err)
	}
	return nil
}

func (s *Store) MarkShortError(ctx context.Context, sessionID string, idx int, step, logMsg string) error {
	err := s.touch(ctx, sessionID,
		`UPDATE shorts SET status = ?, step = ?, log = ?, finished_at = ? WHERE session_id = ? AND idx = ?`,
		StatusError, step, logMsg, s.now().Unix(), sessionID, idx)
	if err != nil {
		return fmt.Errorf("mark short error: %w", err)
	}
	return nil
}

// touch runs a short-level statement and bumps the owning session's
// updated_at in the same transaction, so Sweep treats a session that is
// still rendering as live.
func (s *Store) touch(ctx context.Context, sessionID, query string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ? AND finished_at IS NULL`,
		s.now().Unix(), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// History returns completed shorts, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]ShortRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sh.session_id, se.title, sh.idx, sh.start_sec, sh.end_sec, sh.status, sh.step, sh.file, sh.log, COALESCE(sh.finished_at, 0)
		 FROM shorts sh JOIN sessions se ON se.id = sh.session_id
		 WHERE sh.status = ?
		 ORDER BY sh.finished_at DESC, sh.id DESC
		 LIMIT ?`, StatusComplete, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []ShortRecord
	for rows.Next() {
		var r ShortRecord
		var finished int64
		if err := rows.Scan(&r.SessionID, &r.Title, &r.Index, &r.StartSec, &r.EndSec, &r.Status, &r.Step, &r.File, &r.Log, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt = time.Unix(finished, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Session loads one session row.
func (s *Store) Session(ctx context.Context, id string) (SessionRecord, error) {
	var r SessionRecord
	var started int64
	var finished sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, title, work_dir, provider, requested, state, error, started_at, finished_at FROM sessions WHERE id = ?`, id).
		Scan(&r.ID, &r.Source, &r.Title, &r.WorkDir, &r.Provider, &r.Requested, &r.State, &r.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return r, err
	}
	r.StartedAt = time.Unix(started, 0)
	r.Finished = finished.Valid
	return r, nil
}

// StaleSessions lists unfinished sessions last touched before cutoff.
func (s *Store) StaleSessions(ctx context.Context, cutoff time.Time) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, work_dir, state, started_at FROM sessions
		 WHERE finished_at IS NULL AND updated_at < ?
		 ORDER BY started_at`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("query stale sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var started int64
		if err := rows.Scan(&r.ID, &r.Source, &r.WorkDir, &r.State, &started); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
