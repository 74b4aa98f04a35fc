// Package practice holds the records shared by every stage of a practice session.
package practice

import (
	"time"

	"github.com/google/uuid"
)

// Role is the attributed speaker of one transcript entry.
type Role string

const (
	RoleCandidate   Role = "candidate"
	RoleInterviewer Role = "interviewer"
)

// TranscriptEntry is one attributed utterance in the live transcript log.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Speaker   Role      `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	ChunkSeq  int       `json:"chunk_seq"`
}

// SuggestionKind classifies a coaching suggestion.
type SuggestionKind string

const (
	SuggestionStrength    SuggestionKind = "strength"
	SuggestionImprovement SuggestionKind = "improvement"
	SuggestionTip         SuggestionKind = "tip"
)

// CoachingSuggestion is one short piece of derived feedback shown during the session.
type CoachingSuggestion struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Kind      SuggestionKind `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
}

// RubricScore is one dimension of a rubric evaluation.
type RubricScore struct {
	Dimension string  `json:"dimension" yaml:"dimension"`
	Score     float64 `json:"score" yaml:"score"`
	Feedback  string  `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// EventType names a persisted practice event.
type EventType string

const (
	EventUserResponse  EventType = "user_response"
	EventAIFeedback    EventType = "ai_feedback"
	EventQuestionAsked EventType = "question_asked"
	EventSessionStart  EventType = "session_start"
	EventSessionEnd    EventType = "session_end"
)

// Feedback is the narrative payload attached to an ai_feedback event.
type Feedback struct {
	Overall      string   `json:"overall,omitempty"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Spoken       string   `json:"spoken,omitempty"`
}

// PracticeEvent is an immutable record appended to the session event log.
type PracticeEvent struct {
	ID             string             `json:"id"`
	SessionID      string             `json:"session_id"`
	Type           EventType          `json:"type"`
	TranscriptText string             `json:"transcript_text,omitempty"`
	AudioRef       string             `json:"audio_ref,omitempty"`
	Feedback       *Feedback          `json:"feedback,omitempty"`
	Rubric         map[string]float64 `json:"rubric,omitempty"`
	ChunkSeq       int                `json:"chunk_seq,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// SessionStatus is the persisted lifecycle status of a session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
)

// CanTransition reports whether a session may move from s to next.
// Sessions only leave in_progress, and never go back.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s != StatusInProgress {
		return false
	}
	return next == StatusCompleted || next == StatusAbandoned
}

// Session is one practice run.
type Session struct {
	ID              string        `json:"id"`
	Mode            string        `json:"mode"`
	Difficulty      string        `json:"difficulty"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
}

// NewID returns a random identifier for sessions, events, and log entries.
func NewID() string {
	return uuid.NewString()
}
