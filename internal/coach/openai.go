package coach

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are an interview coach listening to a live mock interview.
Evaluate the candidate's latest answer and reply with a single JSON object:

{
  "overall_feedback": "two sentences",
  "strengths": ["short phrase"],
  "improvements": ["short phrase"],
  "tips": ["short phrase"],
  "rubric": [{"dimension": "Structure", "score": 0, "feedback": "one sentence"}],
  "spoken_feedback": "one encouraging sentence to read aloud",
  "structuring_hints": {"situation": "", "task": "", "action": "", "result": ""}
}

Score every rubric dimension from 0 to %g. Use the dimensions Structure,
Clarity, Specificity, Impact and Relevance unless competencies are given, in
which case score each competency as its own dimension. Keep strengths and
improvements to at most three items each. Reply with JSON only.`

// OpenAI coaches with a chat completion in JSON mode.
type OpenAI struct {
	client *openai.Client
	model  string
	scale  float64
}

// NewOpenAI returns a coach using model and the rubric scale.
func NewOpenAI(client *openai.Client, model string, scale float64) *OpenAI {
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4oMini
	}
	if scale <= 0 {
		scale = DefaultScale
	}
	return &OpenAI{client: client, model: model, scale: scale}
}

func (o *OpenAI) Coach(ctx context.Context, req Request) (Feedback, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, o.scale)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return Feedback{}, fmt.Errorf("coaching completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Feedback{}, fmt.Errorf("%w: no choices returned", ErrMalformedFeedback)
	}
	return ParseFeedback(resp.Choices[0].Message.Content, o.scale)
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	if q := strings.TrimSpace(req.QuestionContext); q != "" {
		fmt.Fprintf(&b, "Question: %s\n", q)
	}
	if d := strings.TrimSpace(req.Difficulty); d != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", d)
	}
	if len(req.Competencies) > 0 {
		fmt.Fprintf(&b, "Competencies: %s\n", strings.Join(req.Competencies, ", "))
	}
	fmt.Fprintf(&b, "Candidate answer:\n%s\n", strings.TrimSpace(req.Transcript))
	return b.String()
}
