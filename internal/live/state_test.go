package live

import (
	"testing"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	"github.com/stretchr/testify/require"
)

func entry(seq int, speaker practice.Role, text string) practice.TranscriptEntry {
	return practice.TranscriptEntry{ID: practice.NewID(), Speaker: speaker, Text: text, ChunkSeq: seq, Timestamp: time.Now()}
}

func TestAppendEntriesKeepsArrivalOrder(t *testing.T) {
	s := New()

	s.AppendEntries(entry(2, practice.RoleCandidate, "second chunk"))
	s.AppendEntries(entry(1, practice.RoleInterviewer, "first chunk"), entry(1, practice.RoleCandidate, "first answer"))

	snap := s.Snapshot()
	require.Len(t, snap.Transcript, 3)
	require.Equal(t, "second chunk", snap.Transcript[0].Text)
	require.Equal(t, "first chunk", snap.Transcript[1].Text)

	ordered := s.TranscriptByCapture()
	require.Equal(t, []string{"first chunk", "first answer", "second chunk"}, []string{ordered[0].Text, ordered[1].Text, ordered[2].Text})
}

func TestReplaceRubricKeepsOnlyLatest(t *testing.T) {
	s := New()

	s.ReplaceRubric([]practice.RubricScore{{Dimension: "Structure", Score: 2}})
	s.ReplaceRubric([]practice.RubricScore{{Dimension: "Clarity", Score: 4}})

	snap := s.Snapshot()
	require.Equal(t, []practice.RubricScore{{Dimension: "Clarity", Score: 4}}, snap.Rubric)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.AppendSuggestions(practice.CoachingSuggestion{Text: "Lead with the result", Kind: practice.SuggestionTip})

	snap := s.Snapshot()
	snap.Suggestions[0].Text = "mutated"

	require.Equal(t, "Lead with the result", s.Snapshot().Suggestions[0].Text)
}

func TestLastQuestionTracksInterviewer(t *testing.T) {
	s := New()
	require.Empty(t, s.LastQuestion())

	s.AppendEntries(entry(1, practice.RoleInterviewer, "Why this team?"), entry(1, practice.RoleCandidate, "Because..."))
	require.Equal(t, "Why this team?", s.LastQuestion())
}

func TestResetClearsState(t *testing.T) {
	s := New()
	s.AppendEntries(entry(1, practice.RoleCandidate, "hello there everyone"))
	s.SetAnswerDraft("Situation: ...")
	s.SetSpeaking(true)

	s.Reset("abc")

	snap := s.Snapshot()
	require.Equal(t, "abc", snap.SessionID)
	require.Empty(t, snap.Transcript)
	require.Empty(t, snap.AnswerDraft)
	require.False(t, snap.Speaking)
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SetSpeaking(true)
	s.AppendEntries(entry(1, practice.RoleCandidate, "I shipped it"))

	select {
	case snap := <-ch:
		require.True(t, snap.Speaking)
		require.Len(t, snap.Transcript, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
	s.SetSpeaking(true)
}
