// Package live holds the in-memory view of a running practice session.
package live

import (
	"sort"
	"sync"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
)

// Snapshot is a copy of the live session state safe to hand to renderers.
type Snapshot struct {
	SessionID   string                        `json:"session_id,omitempty"`
	Transcript  []practice.TranscriptEntry    `json:"transcript"`
	Suggestions []practice.CoachingSuggestion `json:"suggestions"`
	Rubric      []practice.RubricScore        `json:"rubric"`
	AnswerDraft string                        `json:"answer_draft,omitempty"`
	Speaking    bool                          `json:"speaking"`
	Level       float64                       `json:"level"`
	UpdatedAt   time.Time                     `json:"updated_at"`
}

// State is the session aggregator. Transcript and suggestions are append-only
// in arrival order. The rubric is replaced wholesale by each new evaluation.
type State struct {
	mu          sync.RWMutex
	sessionID   string
	transcript  []practice.TranscriptEntry
	suggestions []practice.CoachingSuggestion
	rubric      []practice.RubricScore
	draft       string
	speaking    bool
	level       float64
	updatedAt   time.Time
	lastAsked   string

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int

	now func() time.Time
}

// New returns an empty state.
func New() *State {
	return &State{subs: make(map[int]chan Snapshot), now: time.Now}
}

// Reset clears the state for a new session.
func (s *State) Reset(sessionID string) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.transcript = nil
	s.suggestions = nil
	s.rubric = nil
	s.draft = ""
	s.speaking = false
	s.level = 0
	s.lastAsked = ""
	s.updatedAt = s.now()
	s.mu.Unlock()
	s.publish()
}

// AppendEntries appends transcript entries in the order given.
func (s *State) AppendEntries(entries ...practice.TranscriptEntry) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	s.transcript = append(s.transcript, entries...)
	for _, e := range entries {
		if e.Speaker == practice.RoleInterviewer {
			s.lastAsked = e.Text
		}
	}
	s.updatedAt = s.now()
	s.mu.Unlock()
	s.publish()
}

// AppendSuggestions appends coaching suggestions in the order given.
func (s *State) AppendSuggestions(items ...practice.CoachingSuggestion) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	s.suggestions = append(s.suggestions, items...)
	s.updatedAt = s.now()
	s.mu.Unlock()
	s.publish()
}

// ReplaceRubric swaps in the latest rubric evaluation.
func (s *State) ReplaceRubric(scores []practice.RubricScore) {
	s.mu.Lock()
	s.rubric = append([]practice.RubricScore(nil), scores...)
	s.updatedAt = s.now()
	s.mu.Unlock()
	s.publish()
}

// SetAnswerDraft replaces the structured answer draft.
func (s *State) SetAnswerDraft(draft string) {
	s.mu.Lock()
	s.draft = draft
	s.updatedAt = s.now()
	s.mu.Unlock()
	s.publish()
}

// SetSpeaking updates the approximate speaking indicator.
func (s *State) SetSpeaking(speaking bool) {
	s.mu.Lock()
	changed := s.speaking != speaking
	s.speaking = speaking
	if changed {
		s.updatedAt = s.now()
	}
	s.mu.Unlock()
	if changed {
		s.publish()
	}
}

// SetLevel records the latest loudness without notifying subscribers.
func (s *State) SetLevel(level float64) {
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
}

// LastQuestion returns the most recent interviewer utterance, if any.
func (s *State) LastQuestion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAsked
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		SessionID:   s.sessionID,
		Transcript:  append([]practice.TranscriptEntry{}, s.transcript...),
		Suggestions: append([]practice.CoachingSuggestion{}, s.suggestions...),
		Rubric:      append([]practice.RubricScore{}, s.rubric...),
		AnswerDraft: s.draft,
		Speaking:    s.speaking,
		Level:       s.level,
		UpdatedAt:   s.updatedAt,
	}
}

// TranscriptByCapture returns the transcript re-sorted into capture order.
// Entries from the same chunk keep their relative order.
func (s *State) TranscriptByCapture() []practice.TranscriptEntry {
	s.mu.RLock()
	out := append([]practice.TranscriptEntry{}, s.transcript...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChunkSeq < out[j].ChunkSeq
	})
	return out
}

// Subscribe returns a channel receiving snapshots after each change.
// Slow subscribers miss intermediate snapshots rather than blocking writers.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *State) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
