package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

type recordingPlayer struct {
	mu    sync.Mutex
	calls [][]int16
	rates []int
	err   error
}

func (p *recordingPlayer) Play(_ context.Context, samples []int16, rate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]int16(nil), samples...))
	p.rates = append(p.rates, rate)
	return p.err
}

func newSpeechClient(t *testing.T, handler http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestOpenAISpeakPlaysDecodedPCM(t *testing.T) {
	client := newSpeechClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/speech", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "tts-1", body["model"])
		require.Equal(t, "alloy", body["voice"])
		require.Equal(t, "pcm", body["response_format"])
		require.Equal(t, "Nice structure.", body["input"])

		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x01, 0x00, 0xff, 0xff, 0x07})
	})

	player := &recordingPlayer{}
	s := NewOpenAI(client, "", "", player)
	require.NoError(t, s.Speak(context.Background(), "  Nice structure. "))
	require.Equal(t, [][]int16{{1, -1}}, player.calls)
	require.Equal(t, []int{TTSSampleRate}, player.rates)
}

func TestOpenAISpeakSkipsBlankText(t *testing.T) {
	player := &recordingPlayer{}
	s := NewOpenAI(nil, "tts-1", "nova", player)
	require.NoError(t, s.Speak(context.Background(), "   "))
	require.Empty(t, player.calls)
}

func TestOpenAISpeakReturnsAPIError(t *testing.T) {
	client := newSpeechClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	})

	player := &recordingPlayer{}
	err := NewOpenAI(client, "", "", player).Speak(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "synthesize speech")
	require.Empty(t, player.calls)
}

func TestDecodePCM16(t *testing.T) {
	require.Empty(t, DecodePCM16(nil))
	require.Equal(t, []int16{0x0201}, DecodePCM16([]byte{0x01, 0x02, 0x03}))
}

func TestSilentSpeaker(t *testing.T) {
	require.NoError(t, Silent{}.Speak(context.Background(), "anything"))
}

func TestPlayerFunc(t *testing.T) {
	called := false
	p := PlayerFunc(func(_ context.Context, s []int16, rate int) error {
		called = true
		require.Len(t, s, 2)
		require.Equal(t, 8000, rate)
		return nil
	})
	require.NoError(t, p.Play(context.Background(), []int16{1, 2}, 8000))
	require.True(t, called)
}

func TestCueSamplesPresent(t *testing.T) {
	for _, kind := range []cueKind{cueStart, cuePause, cueResume, cueStop, cueComplete, cueCancel, cueError} {
		require.NotEmpty(t, cueSamples(kind), "cue %d", kind)
	}
	require.Nil(t, cueSamples(cueKind(99)))
}

func TestSynthesizeToneDuration(t *testing.T) {
	got := synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	require.Len(t, got, samplesForDuration(100*time.Millisecond))
	require.Zero(t, got[0])
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestSynthesizeCueIncludesGap(t *testing.T) {
	parts := []toneSpec{
		{frequencyHz: 440, duration: 50 * time.Millisecond, volume: 0.1},
		{frequencyHz: 660, duration: 50 * time.Millisecond, volume: 0.1},
	}
	want := 2*samplesForDuration(50*time.Millisecond) + samplesForDuration(22*time.Millisecond)
	require.Len(t, synthesizeCue(parts), want)
	require.Nil(t, synthesizeCue(nil))
}

func TestEmitCueRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	player := &recordingPlayer{}
	err := emitCue(ctx, player, cueStart)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, player.calls)
}

func TestCuesPlayOnTransitions(t *testing.T) {
	player := &recordingPlayer{}
	cues := NewCues(player, true, nil)
	ctx := context.Background()

	cues.ShowRecording(ctx)
	cues.ShowPaused(ctx)
	cues.ShowResumed(ctx)
	cues.CueStop(ctx)
	cues.CueComplete(ctx)
	cues.CueCancel(ctx)
	cues.ShowError(ctx, "boom")

	require.Len(t, player.calls, 7)
	require.Equal(t, startCuePCM, player.calls[0])
	require.Equal(t, errorCuePCM, player.calls[6])
	for _, rate := range player.rates {
		require.Equal(t, cueSampleRate, rate)
	}
}

func TestCuesDisabledAreSilent(t *testing.T) {
	player := &recordingPlayer{}
	cues := NewCues(player, false, nil)
	cues.ShowRecording(context.Background())
	cues.CueStop(context.Background())
	require.Empty(t, player.calls)
}

func TestCuesSwallowPlaybackErrors(t *testing.T) {
	player := &recordingPlayer{err: errors.New("no sink")}
	cues := NewCues(player, true, nil)
	require.NotPanics(t, func() { cues.CueComplete(context.Background()) })
	require.Len(t, player.calls, 1)
}
