package config

// Transcription backends.
const (
	BackendOpenAI = "openai"
	BackendHTTP   = "http"
	BackendGRPC   = "grpc"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Input:             "monitor",
			Fallback:          "default",
			LevelIntervalMS:   50,
			SpeakingThreshold: 0.05,
			SilenceHoldMS:     2000,
		},
		Chunk: ChunkConfig{
			IntervalMS: 10000,
			MinBytes:   1000,
		},
		Pipeline: PipelineConfig{
			Workers:             2,
			QueueSize:           16,
			UploadTimeoutMS:     10000,
			TranscribeTimeoutMS: 30000,
			CoachTimeoutMS:      30000,
			DrainTimeoutMS:      30000,
		},
		Transcription: TranscriptionConfig{
			Backend:       BackendOpenAI,
			Model:         "whisper-1",
			Language:      "en",
			DialTimeoutMS: 5000,
		},
		Coach: CoachConfig{
			Model:             "gpt-4o-mini",
			RubricScale:       5,
			MaxStrengths:      2,
			MaxImprovements:   2,
			MaxTips:           1,
			MinCandidateChars: 50,
		},
		Speech: SpeechConfig{
			Enable: false,
			Voice:  "alloy",
			Model:  "tts-1",
			Cues:   true,
		},
		Interview: InterviewConfig{
			Mode:       "behavioral",
			Difficulty: "medium",
		},
		Store: StoreConfig{Driver: DriverSQLite},
		Log:   LogConfig{Level: "info"},
	}
}
