package tui

import (
	"fmt"
	"strings"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
)

const (
	defaultWidth      = 80
	transcriptTail    = 12
	suggestionTail    = 6
	levelMeterCells   = 20
	speakerLabelWidth = 12
)

// View renders the header, rubric, transcript tail, suggestions, and key help.
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	divider := DividerStyle.Render(strings.Repeat("─", width))

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(divider)
	b.WriteString("\n")

	b.WriteString(PanelTitleStyle.Render("Rubric"))
	b.WriteString("\n")
	b.WriteString(m.renderRubric())
	b.WriteString("\n")

	b.WriteString(PanelTitleStyle.Render("Transcript"))
	b.WriteString("\n")
	b.WriteString(m.renderTranscript())
	b.WriteString("\n")

	if draft := strings.TrimSpace(m.snapshot.AnswerDraft); draft != "" {
		b.WriteString(PanelTitleStyle.Render("Answer draft"))
		b.WriteString("\n")
		b.WriteString(DimStyle.Render(draft))
		b.WriteString("\n")
	}

	b.WriteString(PanelTitleStyle.Render("Coaching"))
	b.WriteString("\n")
	b.WriteString(m.renderSuggestions())
	b.WriteString("\n")
	b.WriteString(divider)
	b.WriteString("\n")

	if m.notice != "" {
		if m.noticeError {
			b.WriteString(ErrorTextStyle.Render(m.notice))
		} else {
			b.WriteString(StatusStyle.Render(m.notice))
		}
		b.WriteString("\n")
	}
	b.WriteString(renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	var dot string
	switch m.state {
	case "recording":
		dot = RecordingDotStyle.Render("●")
	case "paused":
		dot = PausedDotStyle.Render("●")
	default:
		dot = IdleDotStyle.Render("○")
	}

	parts := []string{dot, TitleStyle.Render("faloodai"), StatusStyle.Render(m.state)}
	if m.sessionID != "" {
		parts = append(parts, DimStyle.Render(shortID(m.sessionID)))
	}
	if m.connected {
		parts = append(parts, levelMeter(m.snapshot.Level))
		if m.snapshot.Speaking {
			parts = append(parts, SpeakingStyle.Render("speaking"))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderRubric() string {
	if len(m.snapshot.Rubric) == 0 {
		return DimStyle.Render("  waiting for the first scored answer")
	}
	lines := make([]string, 0, len(m.snapshot.Rubric))
	for _, score := range m.snapshot.Rubric {
		lines = append(lines, fmt.Sprintf("  %-20s %.1f", score.Dimension, score.Score))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTranscript() string {
	entries := m.snapshot.Transcript
	if len(entries) == 0 {
		return DimStyle.Render("  nothing transcribed yet")
	}
	if len(entries) > transcriptTail {
		entries = entries[len(entries)-transcriptTail:]
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		label := fmt.Sprintf("%-*s", speakerLabelWidth, string(entry.Speaker))
		if entry.Speaker == practice.RoleInterviewer {
			label = InterviewerStyle.Render(label)
		} else {
			label = CandidateStyle.Render(label)
		}
		ts := TimestampStyle.Render(entry.Timestamp.Local().Format("15:04:05"))
		lines = append(lines, fmt.Sprintf("  %s %s %s", ts, label, entry.Text))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSuggestions() string {
	items := m.snapshot.Suggestions
	if len(items) == 0 {
		return DimStyle.Render("  no suggestions yet")
	}
	if len(items) > suggestionTail {
		items = items[len(items)-suggestionTail:]
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case practice.SuggestionStrength:
			lines = append(lines, StrengthStyle.Render("  + "+item.Text))
		case practice.SuggestionImprovement:
			lines = append(lines, ImprovementStyle.Render("  - "+item.Text))
		default:
			lines = append(lines, TipStyle.Render("  * "+item.Text))
		}
	}
	return strings.Join(lines, "\n")
}

func levelMeter(level float64) string {
	level = min(max(level, 0), 1)
	filled := int(level*levelMeterCells + 0.5)
	return SpeakingStyle.Render(strings.Repeat("▮", filled)) + DimStyle.Render(strings.Repeat("▯", levelMeterCells-filled))
}

func renderFooter() string {
	keys := []struct{ key, desc string }{
		{"p", "pause/resume"},
		{"s", "stop"},
		{"x", "cancel"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, FooterKeyStyle.Render(k.key)+" "+FooterDescStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
