package coach

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

const validReply = `{
  "overall_feedback": " Solid answer. ",
  "strengths": ["Clear context", " "],
  "improvements": ["Quantify the result"],
  "rubric": [
    {"dimension": "Structure", "score": 4, "feedback": "Good STAR flow"},
    {"dimension": "Impact", "score": 2}
  ],
  "spoken_feedback": "Nice work, add numbers.",
  "structuring_hints": {"situation": "Legacy billing", "result": "Cut p99 by 40%"}
}`

func TestParseFeedbackValid(t *testing.T) {
	fb, err := ParseFeedback(validReply, 5)
	require.NoError(t, err)
	require.Equal(t, "Solid answer.", fb.OverallFeedback)
	require.Equal(t, []string{"Clear context"}, fb.Strengths)
	require.Equal(t, map[string]float64{"Structure": 4, "Impact": 2}, fb.RubricMap())
	require.Equal(t, "Situation: Legacy billing\nResult: Cut p99 by 40%", fb.StructuringHints.Draft())
}

func TestParseFeedbackStripsCodeFence(t *testing.T) {
	_, err := ParseFeedback("```json\n"+validReply+"\n```", 5)
	require.NoError(t, err)
}

func TestParseFeedbackRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `nope`,
		"empty rubric":   `{"rubric": []}`,
		"no dimension":   `{"rubric": [{"dimension": " ", "score": 1}]}`,
		"duplicate":      `{"rubric": [{"dimension": "A", "score": 1}, {"dimension": "A", "score": 2}]}`,
		"above scale":    `{"rubric": [{"dimension": "A", "score": 6}]}`,
		"negative score": `{"rubric": [{"dimension": "A", "score": -1}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFeedback(raw, 5)
			require.ErrorIs(t, err, ErrMalformedFeedback)
		})
	}
}

func TestParseFeedbackDefaultScale(t *testing.T) {
	_, err := ParseFeedback(`{"rubric": [{"dimension": "A", "score": 5}]}`, 0)
	require.NoError(t, err)
}

func TestSTARDraftEmpty(t *testing.T) {
	require.Empty(t, STAR{}.Draft())
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func chatReply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}
}

func TestOpenAICoach(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)
		require.NotNil(t, req.ResponseFormat)
		require.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		require.Contains(t, req.Messages[1].Content, "Question: Tell me about a migration")
		require.Contains(t, req.Messages[1].Content, "Competencies: ownership, impact")

		_ = json.NewEncoder(w).Encode(chatReply(validReply))
	})

	c := NewOpenAI(client, "", 5)
	fb, err := c.Coach(context.Background(), Request{
		Transcript:      "We moved billing to Postgres over two quarters.",
		QuestionContext: "Tell me about a migration",
		Competencies:    []string{"ownership", "impact"},
		Difficulty:      "senior",
	})
	require.NoError(t, err)
	require.Equal(t, []practice.RubricScore{
		{Dimension: "Structure", Score: 4, Feedback: "Good STAR flow"},
		{Dimension: "Impact", Score: 2},
	}, fb.Rubric)
}

func TestOpenAICoachMalformedReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(chatReply(`{"rubric":[{"dimension":"Structure","score":9}]}`))
	})

	_, err := NewOpenAI(client, "gpt-4o-mini", 5).Coach(context.Background(), Request{Transcript: "x"})
	require.ErrorIs(t, err, ErrMalformedFeedback)
}

func TestOpenAICoachNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{})
	})

	_, err := NewOpenAI(client, "", 0).Coach(context.Background(), Request{Transcript: "x"})
	require.ErrorIs(t, err, ErrMalformedFeedback)
}
