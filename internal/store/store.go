// Package store persists practice sessions and their event log.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
)

var (
	// ErrNotFound reports a missing session.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidStatus reports a refused session status change.
	ErrInvalidStatus = errors.New("invalid session status transition")
)

// EventStore is the append-only practice event log.
type EventStore interface {
	// AppendEvent stores ev under sessionID and returns it with ID and CreatedAt filled.
	AppendEvent(ctx context.Context, sessionID string, ev practice.PracticeEvent) (practice.PracticeEvent, error)
	// ListEvents returns every event of a session in creation order.
	ListEvents(ctx context.Context, sessionID string) ([]practice.PracticeEvent, error)
	// ListAIFeedback returns the ai_feedback events of a session in creation order.
	ListAIFeedback(ctx context.Context, sessionID string) ([]practice.PracticeEvent, error)
}

// SessionStore keeps session rows.
type SessionStore interface {
	CreateSession(ctx context.Context, s practice.Session) error
	FinishSession(ctx context.Context, id string, status practice.SessionStatus, endedAt time.Time, durationMinutes int) error
	GetSession(ctx context.Context, id string) (practice.Session, error)
	ListSessions(ctx context.Context, limit int) ([]practice.Session, error)
	CountSessionsSince(ctx context.Context, since time.Time) (int, error)
}

// Store is a complete persistence backend.
type Store interface {
	EventStore
	SessionStore
	Close() error
}

// Drivers supported by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured backend and ensures the schema exists.
func Open(ctx context.Context, driver string, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres, "postgresql", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

func normalizeEvent(sessionID string, ev practice.PracticeEvent) practice.PracticeEvent {
	ev.SessionID = sessionID
	if ev.ID == "" {
		ev.ID = practice.NewID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev
}

func checkFinish(status practice.SessionStatus) error {
	if !practice.StatusInProgress.CanTransition(status) {
		return fmt.Errorf("%w: cannot finish with %q", ErrInvalidStatus, status)
	}
	return nil
}

func refusedFinish(current practice.Session, next practice.SessionStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, current.Status, next)
}

func encodeFeedback(fb *practice.Feedback) (*string, error) {
	if fb == nil {
		return nil, nil
	}
	raw, err := json.Marshal(fb)
	if err != nil {
		return nil, fmt.Errorf("encode feedback: %w", err)
	}
	s := string(raw)
	return &s, nil
}

func decodeFeedback(raw *string) (*practice.Feedback, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var fb practice.Feedback
	if err := json.Unmarshal([]byte(*raw), &fb); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	return &fb, nil
}

func encodeRubric(rubric map[string]float64) (*string, error) {
	if len(rubric) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(rubric)
	if err != nil {
		return nil, fmt.Errorf("encode rubric: %w", err)
	}
	s := string(raw)
	return &s, nil
}

func decodeRubric(raw *string) (map[string]float64, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var rubric map[string]float64
	if err := json.Unmarshal([]byte(*raw), &rubric); err != nil {
		return nil, fmt.Errorf("decode rubric: %w", err)
	}
	return rubric, nil
}
