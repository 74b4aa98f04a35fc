// Package debrief summarizes the persisted feedback of a completed session.
package debrief

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
)

const (
	// DefaultScale is the rubric ceiling when the caller passes none.
	DefaultScale = 5.0
	// DrillRatio is the fraction of scale below which a dimension needs drilling.
	DrillRatio = 0.6

	topN = 3
)

// Dimension is the aggregate of one rubric dimension.
type Dimension struct {
	Dimension string  `json:"dimension" yaml:"dimension"`
	Average   float64 `json:"average" yaml:"average"`
	Samples   int     `json:"samples" yaml:"samples"`
}

// Ranked is a feedback phrase and how often it appeared.
type Ranked struct {
	Text  string `json:"text" yaml:"text"`
	Count int    `json:"count" yaml:"count"`
}

// Question is the drill-down of one scored turn.
type Question struct {
	Index        int                `json:"index" yaml:"index"`
	Score        int                `json:"score" yaml:"score"`
	Rubric       map[string]float64 `json:"rubric" yaml:"rubric"`
	Strengths    []string           `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Improvements []string           `json:"improvements,omitempty" yaml:"improvements,omitempty"`
	Overall      string             `json:"overall,omitempty" yaml:"overall,omitempty"`
}

// Report is the full debrief of one session.
type Report struct {
	SessionID     string      `json:"session_id" yaml:"session_id"`
	Scale         float64     `json:"scale" yaml:"scale"`
	OverallScore  int         `json:"overall_score" yaml:"overall_score"`
	FeedbackCount int         `json:"feedback_count" yaml:"feedback_count"`
	Dimensions    []Dimension `json:"dimensions" yaml:"dimensions"`
	TopStrengths  []Ranked    `json:"top_strengths" yaml:"top_strengths"`
	TopGaps       []Ranked    `json:"top_gaps" yaml:"top_gaps"`
	DrillPlan     []string    `json:"drill_plan" yaml:"drill_plan"`
	StoryBank     []string    `json:"story_bank" yaml:"story_bank"`
	Questions     []Question  `json:"questions" yaml:"questions"`
}

// Compute builds a report from ai_feedback events in creation order.
// Events of any other type are ignored. The input is not modified.
func Compute(sessionID string, events []practice.PracticeEvent, scale float64) Report {
	if scale <= 0 {
		scale = DefaultScale
	}
	report := Report{SessionID: sessionID, Scale: scale}

	sums := map[string]float64{}
	counts := map[string]int{}
	strengths := newCounter()
	gaps := newCounter()

	for _, ev := range events {
		if ev.Type != practice.EventAIFeedback {
			continue
		}
		report.FeedbackCount++

		for dim, score := range ev.Rubric {
			sums[dim] += score
			counts[dim]++
		}

		q := Question{
			Index:  report.FeedbackCount,
			Score:  normalized(ev.Rubric, scale),
			Rubric: copyRubric(ev.Rubric),
		}
		if ev.Feedback != nil {
			strengths.add(ev.Feedback.Strengths...)
			gaps.add(ev.Feedback.Improvements...)
			q.Strengths = append([]string(nil), ev.Feedback.Strengths...)
			q.Improvements = append([]string(nil), ev.Feedback.Improvements...)
			q.Overall = ev.Feedback.Overall
		}
		report.Questions = append(report.Questions, q)
	}

	for dim, sum := range sums {
		report.Dimensions = append(report.Dimensions, Dimension{
			Dimension: dim,
			Average:   sum / float64(counts[dim]),
			Samples:   counts[dim],
		})
	}
	sort.Slice(report.Dimensions, func(i, j int) bool {
		return report.Dimensions[i].Dimension < report.Dimensions[j].Dimension
	})

	averages := make(map[string]float64, len(report.Dimensions))
	for _, d := range report.Dimensions {
		averages[d.Dimension] = d.Average
	}
	report.OverallScore = normalized(averages, scale)
	report.TopStrengths = strengths.top(topN)
	report.TopGaps = gaps.top(topN)
	report.DrillPlan = drillPlan(report.Dimensions, scale)
	report.StoryBank = storyBank(report.TopGaps)
	return report
}

// normalized maps the mean of scores onto 0..100.
func normalized(scores map[string]float64, scale float64) int {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	return int(math.Round(100 * mean / scale))
}

func drillPlan(dims []Dimension, scale float64) []string {
	var weak []Dimension
	for _, d := range dims {
		if d.Average < DrillRatio*scale {
			weak = append(weak, d)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		if weak[i].Average != weak[j].Average {
			return weak[i].Average < weak[j].Average
		}
		return weak[i].Dimension < weak[j].Dimension
	})

	plan := make([]string, 0, len(weak))
	for _, d := range weak {
		plan = append(plan, fmt.Sprintf("Practice %s: currently averaging %.1f/%g. Rehearse two answers that target it.", d.Dimension, d.Average, scale))
	}
	return plan
}

type storyHint struct {
	keywords   []string
	suggestion string
}

var storyHints = []storyHint{
	{[]string{"metric", "number", "quantif", "data"}, "Add quantified metrics (percentages, revenue, latency) to your saved stories."},
	{[]string{"result", "outcome", "impact"}, "Strengthen the result framing of each story: end with what changed because of you."},
	{[]string{"structure", "star", "organiz", "ramble"}, "Outline each story as Situation, Task, Action and Result before telling it."},
	{[]string{"conflict", "disagree", "stakeholder"}, "Prepare a story about resolving a disagreement with a peer or stakeholder."},
	{[]string{"leadership", "ownership", "initiative"}, "Bank a story where you took ownership without being asked."},
	{[]string{"concise", "brief", "long", "shorter"}, "Trim each story to a two-minute version and rehearse it aloud."},
	{[]string{"specific", "example", "vague", "detail"}, "Replace general claims with one concrete example per story."},
}

func storyBank(gaps []Ranked) []string {
	var out []string
	used := make([]bool, len(storyHints))
	for _, gap := range gaps {
		text := strings.ToLower(gap.Text)
		for i, hint := range storyHints {
			if used[i] {
				continue
			}
			for _, kw := range hint.keywords {
				if strings.Contains(text, kw) {
					out = append(out, hint.suggestion)
					used[i] = true
					break
				}
			}
		}
	}
	return out
}

// counter ranks phrases by frequency with first appearance as the tiebreak.
type counter struct {
	order []string
	text  map[string]string
	count map[string]int
}

func newCounter() *counter {
	return &counter{text: map[string]string{}, count: map[string]int{}}
}

func (c *counter) add(items ...string) {
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := c.count[key]; !ok {
			c.order = append(c.order, key)
			c.text[key] = item
		}
		c.count[key]++
	}
}

func (c *counter) top(n int) []Ranked {
	keys := append([]string(nil), c.order...)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.count[keys[i]] > c.count[keys[j]]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]Ranked, 0, len(keys))
	for _, k := range keys {
		out = append(out, Ranked{Text: c.text[k], Count: c.count[k]})
	}
	return out
}

func copyRubric(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
