package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	_ "modernc.org/sqlite"
)

// Fixed width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions(started_at);
CREATE TABLE IF NOT EXISTS practice_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL,
	type TEXT NOT NULL,
	transcript_text TEXT NOT NULL DEFAULT '',
	audio_ref TEXT NOT NULL DEFAULT '',
	feedback TEXT,
	rubric TEXT,
	chunk_seq INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS practice_events_session ON practice_events(session_id, seq);
`

// SQLite is the default single-user backend.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn.
// dsn may be a file path, a file: URI, or ":memory:".
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	dsn, err := sqliteDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func sqliteDSN(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", errors.New("sqlite dsn is empty")
	}
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn, nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
		return "", fmt.Errorf("create database dir: %w", err)
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn), nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateSession(ctx context.Context, sess practice.Session) error {
	if sess.Status == "" {
		sess.Status = practice.StatusInProgress
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, mode, difficulty, duration_minutes, status, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.Mode, sess.Difficulty, sess.DurationMinutes, string(sess.Status),
		formatTime(sess.StartedAt), formatTimePtr(sess.EndedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLite) FinishSession(ctx context.Context, id string, status practice.SessionStatus, endedAt time.Time, durationMinutes int) error {
	if err := checkFinish(status); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, ended_at = ?, duration_minutes = ?
		WHERE id = ? AND status = ?
	`, string(status), formatTime(endedAt), durationMinutes, id, string(practice.StatusInProgress))
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n > 0 {
		return nil
	}

	current, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	return refusedFinish(current, status)
}

func (s *SQLite) GetSession(ctx context.Context, id string) (practice.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, difficulty, duration_minutes, status, started_at, ended_at
		FROM sessions WHERE id = ?
	`, id)
	sess, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return practice.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, err
}

func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]practice.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, difficulty, duration_minutes, status, started_at, ended_at
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []practice.Session
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLite) CountSessionsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE started_at >= ?`, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *SQLite) AppendEvent(ctx context.Context, sessionID string, ev practice.PracticeEvent) (practice.PracticeEvent, error) {
	ev = normalizeEvent(sessionID, ev)
	feedback, err := encodeFeedback(ev.Feedback)
	if err != nil {
		return ev, err
	}
	rubric, err := encodeRubric(ev.Rubric)
	if err != nil {
		return ev, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO practice_events (id, session_id, type, transcript_text, audio_ref, feedback, rubric, chunk_seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.SessionID, string(ev.Type), ev.TranscriptText, ev.AudioRef, feedback, rubric, ev.ChunkSeq, formatTime(ev.CreatedAt))
	if err != nil {
		return ev, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

func (s *SQLite) ListEvents(ctx context.Context, sessionID string) ([]practice.PracticeEvent, error) {
	return s.queryEvents(ctx, `
		SELECT id, session_id, type, transcript_text, audio_ref, feedback, rubric, chunk_seq, created_at
		FROM practice_events WHERE session_id = ? ORDER BY seq ASC
	`, sessionID)
}

func (s *SQLite) ListAIFeedback(ctx context.Context, sessionID string) ([]practice.PracticeEvent, error) {
	return s.queryEvents(ctx, `
		SELECT id, session_id, type, transcript_text, audio_ref, feedback, rubric, chunk_seq, created_at
		FROM practice_events WHERE session_id = ? AND type = ? ORDER BY seq ASC
	`, sessionID, string(practice.EventAIFeedback))
}

func (s *SQLite) queryEvents(ctx context.Context, query string, args ...any) ([]practice.PracticeEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []practice.PracticeEvent
	for rows.Next() {
		var (
			ev               practice.PracticeEvent
			typ, createdAt   string
			feedback, rubric sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &typ, &ev.TranscriptText, &ev.AudioRef,
			&feedback, &rubric, &ev.ChunkSeq, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = practice.EventType(typ)
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if ev.Feedback, err = decodeFeedback(nullToPtr(feedback)); err != nil {
			return nil, err
		}
		if ev.Rubric, err = decodeRubric(nullToPtr(rubric)); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (practice.Session, error) {
	var (
		sess              practice.Session
		status, startedAt string
		endedAt           sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.Mode, &sess.Difficulty, &sess.DurationMinutes, &status, &startedAt, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return practice.Session{}, err
		}
		return practice.Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.Status = practice.SessionStatus(status)

	var err error
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return practice.Session{}, err
	}
	if endedAt.Valid {
		t, err := parseTime(endedAt.String)
		if err != nil {
			return practice.Session{}, err
		}
		sess.EndedAt = &t
	}
	return sess, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullToPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
