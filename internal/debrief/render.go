package debrief

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// Write renders r to w in the named format.
func Write(w io.Writer, r Report, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		_, err := io.WriteString(w, RenderText(r))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (want text, json or yaml)", format)
	}
}

// RenderText formats r for a terminal.
func RenderText(r Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Session debrief " + r.SessionID))
	b.WriteString("\n")
	if r.FeedbackCount == 0 {
		b.WriteString(dimStyle.Render("No scored answers were recorded."))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Overall %s from %d scored answers\n\n", scoreStyle(float64(r.OverallScore), 100).Render(fmt.Sprintf("%d/100", r.OverallScore)), r.FeedbackCount)

	b.WriteString(headingStyle.Render("Dimensions"))
	b.WriteString("\n")
	for _, d := range r.Dimensions {
		fmt.Fprintf(&b, "  %-16s %s %s\n", d.Dimension,
			scoreStyle(d.Average, r.Scale).Render(fmt.Sprintf("%.1f", d.Average)),
			dimStyle.Render(fmt.Sprintf("(%d samples)", d.Samples)))
	}

	writeRanked(&b, "Top strengths", r.TopStrengths)
	writeRanked(&b, "Top gaps", r.TopGaps)
	writeList(&b, "Drill plan", r.DrillPlan)
	writeList(&b, "Story bank", r.StoryBank)

	b.WriteString("\n")
	b.WriteString(headingStyle.Render("Answers"))
	b.WriteString("\n")
	for _, q := range r.Questions {
		fmt.Fprintf(&b, "  #%d %s\n", q.Index, scoreStyle(float64(q.Score), 100).Render(fmt.Sprintf("%d/100", q.Score)))
		for _, s := range q.Strengths {
			fmt.Fprintf(&b, "     + %s\n", s)
		}
		for _, s := range q.Improvements {
			fmt.Fprintf(&b, "     - %s\n", s)
		}
	}
	return b.String()
}

func writeRanked(b *strings.Builder, title string, items []Ranked) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(headingStyle.Render(title))
	b.WriteString("\n")
	for _, item := range items {
		fmt.Fprintf(b, "  %s %s\n", item.Text, dimStyle.Render(fmt.Sprintf("x%d", item.Count)))
	}
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(headingStyle.Render(title))
	b.WriteString("\n")
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

func scoreStyle(score, scale float64) lipgloss.Style {
	switch {
	case score >= 0.8*scale:
		return goodStyle
	case score >= DrillRatio*scale:
		return warnStyle
	default:
		return badStyle
	}
}
