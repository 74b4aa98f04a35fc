// Package transcribe turns stored chunk audio into text with optional
// speaker segmentation.
package transcribe

import (
	"context"
	"errors"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/blob"
)

// ErrMalformedResponse reports a backend reply that could not be decoded.
var ErrMalformedResponse = errors.New("malformed transcription response")

// Request identifies one uploaded chunk and carries its WAV bytes.
type Request struct {
	SessionID string
	Seq       int
	Ref       blob.Ref
	Audio     []byte
}

// Segment is one diarized utterance.
type Segment struct {
	SpeakerLabel string `json:"speaker"`
	Text         string `json:"text"`
	IsQuestion   bool   `json:"is_question"`
}

// Result is the recognizer output. A nil Segments slice means the backend
// performed no speaker segmentation.
type Result struct {
	Transcript string    `json:"text"`
	Segments   []Segment `json:"segments,omitempty"`
}

// Transcriber converts one chunk to text.
type Transcriber interface {
	Transcribe(context.Context, Request) (Result, error)
}

// Func adapts a function to the Transcriber interface.
type Func func(context.Context, Request) (Result, error)

func (f Func) Transcribe(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
