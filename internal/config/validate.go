package config

import (
	"fmt"
	"strings"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/logging"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}
	if cfg.Audio.SpeakingThreshold <= 0 || cfg.Audio.SpeakingThreshold >= 1 {
		return nil, fmt.Errorf("audio.speaking_threshold must be between 0 and 1")
	}
	if cfg.Audio.LevelIntervalMS <= 0 {
		return nil, fmt.Errorf("audio.level_interval_ms must be > 0")
	}
	if cfg.Audio.SilenceHoldMS < 0 {
		return nil, fmt.Errorf("audio.silence_hold_ms must be >= 0")
	}
	if cfg.Chunk.IntervalMS < 1000 {
		return nil, fmt.Errorf("chunk.interval_ms must be >= 1000")
	}
	if cfg.Chunk.MinBytes < 0 {
		return nil, fmt.Errorf("chunk.min_bytes must be >= 0")
	}
	if cfg.Pipeline.Workers <= 0 {
		return nil, fmt.Errorf("pipeline.workers must be > 0")
	}
	if cfg.Pipeline.QueueSize <= 0 {
		return nil, fmt.Errorf("pipeline.queue_size must be > 0")
	}
	for name, ms := range map[string]int{
		"pipeline.upload_timeout_ms":     cfg.Pipeline.UploadTimeoutMS,
		"pipeline.transcribe_timeout_ms": cfg.Pipeline.TranscribeTimeoutMS,
		"pipeline.coach_timeout_ms":      cfg.Pipeline.CoachTimeoutMS,
		"pipeline.drain_timeout_ms":      cfg.Pipeline.DrainTimeoutMS,
	} {
		if ms <= 0 {
			return nil, fmt.Errorf("%s must be > 0", name)
		}
	}

	switch cfg.Transcription.Backend {
	case BackendOpenAI:
		if strings.TrimSpace(cfg.Transcription.Model) == "" {
			return nil, fmt.Errorf("transcription.model must not be empty when transcription.backend=openai")
		}
	case BackendHTTP:
		if strings.TrimSpace(cfg.Transcription.URL) == "" {
			return nil, fmt.Errorf("transcription.url must not be empty when transcription.backend=http")
		}
	case BackendGRPC:
		if strings.TrimSpace(cfg.Transcription.GRPCEndpoint) == "" {
			return nil, fmt.Errorf("transcription.grpc_endpoint must not be empty when transcription.backend=grpc")
		}
	default:
		return nil, fmt.Errorf("transcription.backend must be one of: openai, http, grpc")
	}

	if cfg.Coach.RubricScale <= 0 {
		return nil, fmt.Errorf("coach.rubric_scale must be > 0")
	}
	if cfg.Coach.MaxStrengths < 0 || cfg.Coach.MaxImprovements < 0 {
		return nil, fmt.Errorf("coach.max_strengths and coach.max_improvements must be >= 0")
	}
	if cfg.Coach.MinCandidateChars < 0 {
		return nil, fmt.Errorf("coach.min_candidate_chars must be >= 0")
	}

	switch cfg.Store.Driver {
	case DriverSQLite, "":
	case DriverPostgres, "postgresql", "pgx":
		if strings.TrimSpace(cfg.Store.DSN) == "" {
			return nil, fmt.Errorf("store.dsn must not be empty when store.driver=postgres")
		}
	default:
		return nil, fmt.Errorf("store.driver must be one of: sqlite, postgres")
	}

	if cfg.Entitlement.DailyLimit < 0 {
		return nil, fmt.Errorf("entitlement.daily_limit must be >= 0")
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	if cfg.UsesOpenAI() && strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		warnings = append(warnings, Warning{
			Key:     "openai.api_key",
			Message: "openai.api_key is empty; set OPENAI_API_KEY or FALOODAI_OPENAI_API_KEY",
		})
	}
	if strings.TrimSpace(cfg.Interview.Question) == "" {
		warnings = append(warnings, Warning{
			Key:     "interview.question",
			Message: "interview.question is empty; coaching will rely on questions heard in the session",
		})
	}

	return warnings, nil
}
