package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Whisper transcribes chunks with the OpenAI audio transcription endpoint.
// It never returns segments.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisper returns a transcriber using model, defaulting to whisper-1.
func NewWhisper(client *openai.Client, model string, language string) *Whisper {
	if strings.TrimSpace(model) == "" {
		model = openai.Whisper1
	}
	return &Whisper{client: client, model: model, language: language}
}

func (w *Whisper) Transcribe(ctx context.Context, req Request) (Result, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: fmt.Sprintf("chunk-%06d.wav", req.Seq),
		Reader:   bytes.NewReader(req.Audio),
		Language: w.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("whisper transcription: %w", err)
	}
	return Result{Transcript: strings.TrimSpace(resp.Text)}, nil
}
