// Package coach requests rubric feedback on candidate answers.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
)

// DefaultScale is the rubric ceiling used when none is configured.
const DefaultScale = 5.0

// ErrMalformedFeedback reports a coaching reply that failed validation.
var ErrMalformedFeedback = errors.New("malformed coaching feedback")

// Request carries the candidate text plus interview context.
type Request struct {
	Transcript      string
	QuestionContext string
	Competencies    []string
	Difficulty      string
}

// STAR holds structuring hints for the candidate's answer.
type STAR struct {
	Situation string `json:"situation,omitempty"`
	Task      string `json:"task,omitempty"`
	Action    string `json:"action,omitempty"`
	Result    string `json:"result,omitempty"`
}

// Draft renders the hints as a short answer outline.
func (s STAR) Draft() string {
	var lines []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("Situation", s.Situation)
	add("Task", s.Task)
	add("Action", s.Action)
	add("Result", s.Result)
	return strings.Join(lines, "\n")
}

// Feedback is one coaching evaluation.
type Feedback struct {
	OverallFeedback  string                 `json:"overall_feedback"`
	Strengths        []string               `json:"strengths"`
	Improvements     []string               `json:"improvements"`
	Tips             []string               `json:"tips,omitempty"`
	Rubric           []practice.RubricScore `json:"rubric"`
	SpokenFeedback   string                 `json:"spoken_feedback,omitempty"`
	StructuringHints *STAR                  `json:"structuring_hints,omitempty"`
}

// RubricMap flattens the rubric into dimension to score.
func (f Feedback) RubricMap() map[string]float64 {
	out := make(map[string]float64, len(f.Rubric))
	for _, r := range f.Rubric {
		out[r.Dimension] = r.Score
	}
	return out
}

// Coach evaluates one candidate answer.
type Coach interface {
	Coach(context.Context, Request) (Feedback, error)
}

// Func adapts a function to the Coach interface.
type Func func(context.Context, Request) (Feedback, error)

func (f Func) Coach(ctx context.Context, req Request) (Feedback, error) {
	return f(ctx, req)
}

// ParseFeedback decodes and validates a JSON coaching reply against scale.
func ParseFeedback(raw string, scale float64) (Feedback, error) {
	if scale <= 0 {
		scale = DefaultScale
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var fb Feedback
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		return Feedback{}, fmt.Errorf("%w: %v", ErrMalformedFeedback, err)
	}
	if len(fb.Rubric) == 0 {
		return Feedback{}, fmt.Errorf("%w: rubric is empty", ErrMalformedFeedback)
	}

	seen := make(map[string]bool, len(fb.Rubric))
	for i := range fb.Rubric {
		r := &fb.Rubric[i]
		r.Dimension = strings.TrimSpace(r.Dimension)
		if r.Dimension == "" {
			return Feedback{}, fmt.Errorf("%w: rubric entry %d has no dimension", ErrMalformedFeedback, i)
		}
		if seen[r.Dimension] {
			return Feedback{}, fmt.Errorf("%w: duplicate dimension %q", ErrMalformedFeedback, r.Dimension)
		}
		seen[r.Dimension] = true
		if r.Score < 0 || r.Score > scale {
			return Feedback{}, fmt.Errorf("%w: %s score %g outside 0..%g", ErrMalformedFeedback, r.Dimension, r.Score, scale)
		}
	}

	fb.OverallFeedback = strings.TrimSpace(fb.OverallFeedback)
	fb.SpokenFeedback = strings.TrimSpace(fb.SpokenFeedback)
	fb.Strengths = compact(fb.Strengths)
	fb.Improvements = compact(fb.Improvements)
	fb.Tips = compact(fb.Tips)
	return fb, nil
}

func compact(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
