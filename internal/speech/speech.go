// Package speech plays spoken coaching feedback and session cues.
package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/jfreymuth/pulse"
	openai "github.com/sashabaranov/go-openai"
)

// TTSSampleRate is the rate of raw PCM returned by the speech endpoint.
const TTSSampleRate = 24000

// Speaker renders text as audible speech.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Player plays mono signed 16-bit samples.
type Player interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(context.Context, []int16, int) error

func (f PlayerFunc) Play(ctx context.Context, samples []int16, sampleRate int) error {
	return f(ctx, samples, sampleRate)
}

// Silent discards everything it is asked to say.
type Silent struct{}

func (Silent) Speak(context.Context, string) error { return nil }

// OpenAI synthesizes speech through the audio/speech endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	voice  string
	player Player
}

// NewOpenAI returns a speaker that plays synthesized audio through player.
func NewOpenAI(client *openai.Client, model string, voice string, player Player) *OpenAI {
	if strings.TrimSpace(model) == "" {
		model = string(openai.TTSModel1)
	}
	if strings.TrimSpace(voice) == "" {
		voice = string(openai.VoiceAlloy)
	}
	if player == nil {
		player = PulsePlayer{}
	}
	return &OpenAI{client: client, model: model, voice: voice, player: player}
}

func (o *OpenAI) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return fmt.Errorf("read speech audio: %w", err)
	}
	return o.player.Play(ctx, DecodePCM16(raw), TTSSampleRate)
}

// DecodePCM16 converts little-endian 16-bit PCM into samples. A trailing odd byte is dropped.
func DecodePCM16(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

// PulsePlayer plays samples on the default Pulse sink.
type PulsePlayer struct {
	MediaName string
}

func (p PulsePlayer) Play(ctx context.Context, samples []int16, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("faloodai"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	name := p.MediaName
	if name == "" {
		name = "faloodai feedback"
	}
	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(name),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play stream: %w", err)
	}
	return ctx.Err()
}
