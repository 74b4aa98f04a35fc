package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions(started_at);
CREATE TABLE IF NOT EXISTS practice_events (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL,
	type TEXT NOT NULL,
	transcript_text TEXT NOT NULL DEFAULT '',
	audio_ref TEXT NOT NULL DEFAULT '',
	feedback TEXT,
	rubric TEXT,
	chunk_seq INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS practice_events_session ON practice_events(session_id, seq);
`

// Postgres is the shared multi-user backend.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases every pooled connection.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) CreateSession(ctx context.Context, sess practice.Session) error {
	if sess.Status == "" {
		sess.Status = practice.StatusInProgress
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, mode, difficulty, duration_minutes, status, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sess.ID, sess.Mode, sess.Difficulty, sess.DurationMinutes, string(sess.Status), sess.StartedAt.UTC(), sess.EndedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *Postgres) FinishSession(ctx context.Context, id string, status practice.SessionStatus, endedAt time.Time, durationMinutes int) error {
	if err := checkFinish(status); err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE sessions SET status = $1, ended_at = $2, duration_minutes = $3
		WHERE id = $4 AND status = $5
	`, string(status), endedAt.UTC(), durationMinutes, id, string(practice.StatusInProgress))
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := p.GetSession(ctx, id)
	if err != nil {
		return err
	}
	return refusedFinish(current, status)
}

func (p *Postgres) GetSession(ctx context.Context, id string) (practice.Session, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, mode, difficulty, duration_minutes, status, started_at, ended_at
		FROM sessions WHERE id = $1
	`, id)
	sess, err := scanPostgresSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return practice.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, err
}

func (p *Postgres) ListSessions(ctx context.Context, limit int) ([]practice.Session, error) {
	query := `
		SELECT id, mode, difficulty, duration_minutes, status, started_at, ended_at
		FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []practice.Session
	for rows.Next() {
		sess, err := scanPostgresSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (p *Postgres) CountSessionsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE started_at >= $1`, since.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (p *Postgres) AppendEvent(ctx context.Context, sessionID string, ev practice.PracticeEvent) (practice.PracticeEvent, error) {
	ev = normalizeEvent(sessionID, ev)
	feedback, err := encodeFeedback(ev.Feedback)
	if err != nil {
		return ev, err
	}
	rubric, err := encodeRubric(ev.Rubric)
	if err != nil {
		return ev, err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO practice_events (id, session_id, type, transcript_text, audio_ref, feedback, rubric, chunk_seq, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID, ev.SessionID, string(ev.Type), ev.TranscriptText, ev.AudioRef, feedback, rubric, ev.ChunkSeq, ev.CreatedAt)
	if err != nil {
		return ev, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

func (p *Postgres) ListEvents(ctx context.Context, sessionID string) ([]practice.PracticeEvent, error) {
	return p.queryEvents(ctx, `
		SELECT id, session_id, type, transcript_text, audio_ref, feedback, rubric, chunk_seq, created_at
		FROM practice_events WHERE session_id = $1 ORDER BY seq ASC
	`, sessionID)
}

func (p *Postgres) ListAIFeedback(ctx context.Context, sessionID string) ([]practice.PracticeEvent, error) {
	return p.queryEvents(ctx, `
		SELECT id, session_id, type, transcript_text, audio_ref, feedback, rubric, chunk_seq, created_at
		FROM practice_events WHERE session_id = $1 AND type = $2 ORDER BY seq ASC
	`, sessionID, string(practice.EventAIFeedback))
}

func (p *Postgres) queryEvents(ctx context.Context, query string, args ...any) ([]practice.PracticeEvent, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []practice.PracticeEvent
	for rows.Next() {
		var (
			ev               practice.PracticeEvent
			typ              string
			feedback, rubric *string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &typ, &ev.TranscriptText, &ev.AudioRef,
			&feedback, &rubric, &ev.ChunkSeq, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = practice.EventType(typ)
		if ev.Feedback, err = decodeFeedback(feedback); err != nil {
			return nil, err
		}
		if ev.Rubric, err = decodeRubric(rubric); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanPostgresSession(row pgx.Row) (practice.Session, error) {
	var (
		sess    practice.Session
		status  string
		endedAt *time.Time
	)
	if err := row.Scan(&sess.ID, &sess.Mode, &sess.Difficulty, &sess.DurationMinutes, &status, &sess.StartedAt, &endedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return practice.Session{}, err
		}
		return practice.Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.Status = practice.SessionStatus(status)
	sess.EndedAt = endedAt
	return sess, nil
}
