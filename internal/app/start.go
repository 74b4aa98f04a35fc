package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/blob"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/capture"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/chunk"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/cli"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/coach"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/config"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/debrief"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/entitlement"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/ipc"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/live"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/pipeline"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/session"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/speech"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/store"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/transcribe"
)

// backends are the external services a session talks to.
type backends struct {
	transcriber transcribe.Transcriber
	coach       coach.Coach
	speaker     speech.Speaker
	close       func()
}

func (r Runner) commandStart(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	applyStartFlags(&cfg, parsed)

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: %v; use `faloodai stop` or `faloodai cancel` first\n", err)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.Close()

	b, err := newBackends(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer b.close()

	state := live.New()
	cues := speech.NewCues(speech.PulsePlayer{MediaName: "faloodai cue"}, cfg.Speech.Cues, logger)
	gate := entitlement.NewQuota(st, cfg.Entitlement.DailyLimit, entitlement.DefaultWindow)
	blobs := blob.NewFileStore(cfg.Storage.ChunkDir)

	controller := session.NewController(
		logger,
		gate,
		st,
		newPipelineFactory(cfg, b, st, blobs, logger),
		state,
		cues,
		session.Config{
			Mode:         cfg.Interview.Mode,
			Difficulty:   cfg.Interview.Difficulty,
			Question:     cfg.Interview.Question,
			DrainTimeout: cfg.Pipeline.DrainTimeout(),
			RubricScale:  cfg.Coach.RubricScale,
		},
	)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if result.Debrief == nil {
		fmt.Fprintf(r.Stderr, "warning: debrief unavailable for session %s; run `faloodai debrief %s`\n", result.Session.ID, result.Session.ID)
		return 0
	}
	if err := debrief.Write(r.Stdout, *result.Debrief, parsed.Format); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func applyStartFlags(cfg *config.Config, parsed cli.Parsed) {
	if q := strings.TrimSpace(parsed.Question); q != "" {
		cfg.Interview.Question = q
	}
	if d := strings.TrimSpace(parsed.Difficulty); d != "" {
		cfg.Interview.Difficulty = d
	}
	if m := strings.TrimSpace(parsed.Mode); m != "" {
		cfg.Interview.Mode = m
	}
}

func newOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	return openai.NewClientWithConfig(clientCfg)
}

func newBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (backends, error) {
	client := newOpenAIClient(cfg.OpenAI)
	b := backends{close: func() {}}

	tc := cfg.Transcription
	switch tc.Backend {
	case config.BackendHTTP:
		b.transcriber = transcribe.NewHTTP(tc.URL, cfg.Pipeline.TranscribeTimeout())
	case config.BackendGRPC:
		g, err := transcribe.DialGRPC(ctx, transcribe.GRPCConfig{Endpoint: tc.GRPCEndpoint, DialTimeout: tc.DialTimeout()})
		if err != nil {
			return backends{}, err
		}
		b.transcriber = g
		b.close = func() {
			if err := g.Close(); err != nil {
				logger.Warn("close transcription connection failed", "error", err.Error())
			}
		}
	default:
		b.transcriber = transcribe.NewWhisper(client, tc.Model, tc.Language)
	}

	b.coach = coach.NewOpenAI(client, cfg.Coach.Model, cfg.Coach.RubricScale)

	if cfg.Speech.Enable {
		b.speaker = speech.NewOpenAI(client, cfg.Speech.Model, cfg.Speech.Voice, speech.PulsePlayer{MediaName: "faloodai feedback"})
	} else {
		b.speaker = speech.Silent{}
	}
	return b, nil
}

// newPipelineFactory builds a fresh capture engine and worker queue per session.
func newPipelineFactory(cfg config.Config, b backends, events store.EventStore, blobs blob.Store, logger *slog.Logger) session.PipelineFactory {
	maxTips := cfg.Coach.MaxTips
	if maxTips == 0 {
		maxTips = -1
	}
	procCfg := pipeline.Config{
		UploadTimeout:     cfg.Pipeline.UploadTimeout(),
		TranscribeTimeout: cfg.Pipeline.TranscribeTimeout(),
		CoachTimeout:      cfg.Pipeline.CoachTimeout(),
		MinCandidateChars: cfg.Coach.MinCandidateChars,
		MaxStrengths:      cfg.Coach.MaxStrengths,
		MaxImprovements:   cfg.Coach.MaxImprovements,
		MaxTips:           maxTips,
		SpeakFeedback:     cfg.Speech.Enable,
	}
	captureCfg := capture.Config{
		Chunk: chunk.Config{
			Interval: cfg.Chunk.Interval(),
			MinBytes: cfg.Chunk.MinBytes,
		},
		LevelInterval: cfg.Audio.LevelInterval(),
		Threshold:     cfg.Audio.SpeakingThreshold,
		Hold:          cfg.Audio.SilenceHold(),
	}
	interview := pipeline.Interview{
		Mode:         cfg.Interview.Mode,
		Difficulty:   cfg.Interview.Difficulty,
		Question:     cfg.Interview.Question,
		Competencies: cfg.Interview.Competencies,
	}

	return func(sess practice.Session, state *live.State) (session.Pipeline, error) {
		sc := pipeline.NewSessionContext(sess.ID, interview, state)
		proc := pipeline.NewProcessor(blobs, b.transcriber, b.coach, events, b.speaker, procCfg, logger)
		queue := pipeline.NewQueue(proc, sc, cfg.Pipeline.QueueSize, cfg.Pipeline.Workers, logger)
		engine := capture.NewEngine(sess.ID, capture.PulseAcquirer(cfg.Audio.Input, cfg.Audio.Fallback), queue, state, captureCfg, logger)
		return pipeline.NewLive(engine, queue), nil
	}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"session_id", result.Session.ID,
		"status", result.Session.Status,
		"cancelled", result.Cancelled,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"quota_remaining", result.Quota.Remaining,
	}
	if result.Debrief != nil {
		fields = append(fields,
			"overall_score", result.Debrief.OverallScore,
			"feedback_count", result.Debrief.FeedbackCount,
		)
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
