package speech

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cuePause
	cueResume
	cueStop
	cueComplete
	cueCancel
	cueError
)

const cueSampleRate = 16000

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	startCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	})
	pauseCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 700, duration: 60 * time.Millisecond, volume: 0.15},
		{frequencyHz: 700, duration: 60 * time.Millisecond, volume: 0.15},
	})
	resumeCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 988, duration: 80 * time.Millisecond, volume: 0.15},
	})
	stopCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 620, duration: 120 * time.Millisecond, volume: 0.18},
	})
	completeCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		{frequencyHz: 988, duration: 90 * time.Millisecond, volume: 0.18},
	})
	cancelCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 480, duration: 75 * time.Millisecond, volume: 0.18},
		{frequencyHz: 360, duration: 90 * time.Millisecond, volume: 0.18},
	})
	errorCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 300, duration: 160 * time.Millisecond, volume: 0.2},
	})
)

// Cues plays short tones on session transitions.
type Cues struct {
	player  Player
	logger  *slog.Logger
	enabled bool
	mu      sync.Mutex
}

// NewCues returns a cue player. Disabled cues are silent.
func NewCues(player Player, enabled bool, logger *slog.Logger) *Cues {
	if player == nil {
		player = PulsePlayer{MediaName: "faloodai cue"}
	}
	return &Cues{player: player, logger: logger, enabled: enabled}
}

func (c *Cues) ShowRecording(ctx context.Context) { c.play(ctx, cueStart) }
func (c *Cues) ShowPaused(ctx context.Context)    { c.play(ctx, cuePause) }
func (c *Cues) ShowResumed(ctx context.Context)   { c.play(ctx, cueResume) }
func (c *Cues) CueStop(ctx context.Context)       { c.play(ctx, cueStop) }
func (c *Cues) CueComplete(ctx context.Context)   { c.play(ctx, cueComplete) }
func (c *Cues) CueCancel(ctx context.Context)     { c.play(ctx, cueCancel) }

func (c *Cues) ShowError(ctx context.Context, text string) {
	if c.logger != nil && text != "" {
		c.logger.Debug("error cue", "message", text)
	}
	c.play(ctx, cueError)
}

// play serializes cues so overlapping transitions do not interleave.
func (c *Cues) play(ctx context.Context, kind cueKind) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := emitCue(ctx, c.player, kind); err != nil && c.logger != nil {
		c.logger.Debug("cue playback failed", "cue", int(kind), "error", err.Error())
	}
}

func emitCue(ctx context.Context, player Player, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return player.Play(ctx, samples, cueSampleRate)
}

func cueSamples(kind cueKind) []int16 {
	switch kind {
	case cueStart:
		return startCuePCM
	case cuePause:
		return pauseCuePCM
	case cueResume:
		return resumeCuePCM
	case cueStop:
		return stopCuePCM
	case cueComplete:
		return completeCuePCM
	case cueCancel:
		return cancelCuePCM
	case cueError:
		return errorCuePCM
	default:
		return nil
	}
}

func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gapSamples := samplesForDuration(22 * time.Millisecond)
	total := 0
	for i, part := range parts {
		total += samplesForDuration(part.duration)
		if i < len(parts)-1 {
			total += gapSamples
		}
	}

	pcm := make([]int16, 0, total)
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 && gapSamples > 0 {
			pcm = append(pcm, make([]int16, gapSamples)...)
		}
	}
	return pcm
}

func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	ramp := min(n/10, cueSampleRate/200) // at most 5ms
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = math.Min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(2*math.Pi*spec.frequencyHz*t) * spec.volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
