// Package attribution maps diarization speaker labels onto interview roles.
//
// A label is mapped the first time it is seen and never reassigned for the
// rest of the session. The map is shared by concurrent chunk workers.
package attribution

import (
	"sort"
	"sync"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
)

// UnlabeledSpeaker is the label used when the recognizer returns no segmentation.
const UnlabeledSpeaker = "speaker"

// Rule names which attribution rule produced a decision.
type Rule string

const (
	RuleMapped           Rule = "mapped"
	RuleQuestion         Rule = "question"
	RuleInterviewerKnown Rule = "interviewer_known"
	RuleDefault          Rule = "default"
)

// Decision is the resolved role for one segment.
type Decision struct {
	Role practice.Role
	Rule Rule
}

// Map is the per-session label to role table.
type Map struct {
	mu               sync.Mutex
	roles            map[string]practice.Role
	interviewerKnown bool
}

// NewMap returns an empty speaker map.
func NewMap() *Map {
	return &Map{roles: make(map[string]practice.Role)}
}

// Resolve returns the role for label, recording a mapping on first sight.
func (m *Map) Resolve(label string, isQuestion bool) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if role, ok := m.roles[label]; ok {
		return Decision{Role: role, Rule: RuleMapped}
	}

	var d Decision
	switch {
	case isQuestion:
		d = Decision{Role: practice.RoleInterviewer, Rule: RuleQuestion}
	case m.interviewerKnown:
		d = Decision{Role: practice.RoleCandidate, Rule: RuleInterviewerKnown}
	default:
		d = Decision{Role: practice.RoleCandidate, Rule: RuleDefault}
	}

	m.roles[label] = d.Role
	if d.Role == practice.RoleInterviewer {
		m.interviewerKnown = true
	}
	return d
}

// Lookup returns the mapped role for label without creating a mapping.
func (m *Map) Lookup(label string) (practice.Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[label]
	return role, ok
}

// Labels returns the mapped labels in sorted order.
func (m *Map) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	labels := make([]string, 0, len(m.roles))
	for label := range m.roles {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
