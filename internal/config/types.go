// Package config resolves, parses, validates, and defaults faloodai configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by faloodai.
type Config struct {
	Audio         AudioConfig         `toml:"audio"`
	Chunk         ChunkConfig         `toml:"chunk"`
	Pipeline      PipelineConfig      `toml:"pipeline"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Coach         CoachConfig         `toml:"coach"`
	Speech        SpeechConfig        `toml:"speech"`
	OpenAI        OpenAIConfig        `toml:"openai"`
	Interview     InterviewConfig     `toml:"interview"`
	Store         StoreConfig         `toml:"store"`
	Entitlement   EntitlementConfig   `toml:"entitlement"`
	Log           LogConfig           `toml:"log"`
	Storage       StorageConfig       `toml:"storage"`
}

// AudioConfig controls source selection and the speaking signal.
type AudioConfig struct {
	Input             string  `toml:"input"`
	Fallback          string  `toml:"fallback"`
	LevelIntervalMS   int     `toml:"level_interval_ms"`
	SpeakingThreshold float64 `toml:"speaking_threshold"`
	SilenceHoldMS     int     `toml:"silence_hold_ms"`
}

// ChunkConfig controls how often audio is sealed into chunks.
type ChunkConfig struct {
	IntervalMS int `toml:"interval_ms"`
	MinBytes   int `toml:"min_bytes"`
}

// PipelineConfig sizes the worker pool and bounds each external call.
type PipelineConfig struct {
	Workers             int `toml:"workers"`
	QueueSize           int `toml:"queue_size"`
	UploadTimeoutMS     int `toml:"upload_timeout_ms"`
	TranscribeTimeoutMS int `toml:"transcribe_timeout_ms"`
	CoachTimeoutMS      int `toml:"coach_timeout_ms"`
	DrainTimeoutMS      int `toml:"drain_timeout_ms"`
}

// TranscriptionConfig selects the speech-to-text backend.
type TranscriptionConfig struct {
	Backend       string `toml:"backend"`
	Model         string `toml:"model"`
	Language      string `toml:"language"`
	URL           string `toml:"url"`
	GRPCEndpoint  string `toml:"grpc_endpoint"`
	DialTimeoutMS int    `toml:"dial_timeout_ms"`
}

// CoachConfig controls feedback generation and how much of it is surfaced.
type CoachConfig struct {
	Model             string  `toml:"model"`
	RubricScale       float64 `toml:"rubric_scale"`
	MaxStrengths      int     `toml:"max_strengths"`
	MaxImprovements   int     `toml:"max_improvements"`
	MaxTips           int     `toml:"max_tips"`
	MinCandidateChars int     `toml:"min_candidate_chars"`
}

// SpeechConfig controls spoken feedback and lifecycle cue tones.
type SpeechConfig struct {
	Enable bool   `toml:"enable"`
	Voice  string `toml:"voice"`
	Model  string `toml:"model"`
	Cues   bool   `toml:"cues"`
}

// OpenAIConfig holds API credentials shared by every OpenAI-backed component.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// InterviewConfig describes the mock interview being practiced.
type InterviewConfig struct {
	Mode         string   `toml:"mode"`
	Difficulty   string   `toml:"difficulty"`
	Question     string   `toml:"question"`
	Competencies []string `toml:"competencies"`
}

// StoreConfig selects the session and event store.
type StoreConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// EntitlementConfig bounds how many sessions may start per day. Zero is unlimited.
type EntitlementConfig struct {
	DailyLimit int `toml:"daily_limit"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// StorageConfig locates chunk recordings on disk.
type StorageConfig struct {
	ChunkDir string `toml:"chunk_dir"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Key     string
	Message string
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (c AudioConfig) LevelInterval() time.Duration { return millis(c.LevelIntervalMS) }
func (c AudioConfig) SilenceHold() time.Duration   { return millis(c.SilenceHoldMS) }
func (c ChunkConfig) Interval() time.Duration      { return millis(c.IntervalMS) }

func (c PipelineConfig) UploadTimeout() time.Duration     { return millis(c.UploadTimeoutMS) }
func (c PipelineConfig) TranscribeTimeout() time.Duration { return millis(c.TranscribeTimeoutMS) }
func (c PipelineConfig) CoachTimeout() time.Duration      { return millis(c.CoachTimeoutMS) }
func (c PipelineConfig) DrainTimeout() time.Duration      { return millis(c.DrainTimeoutMS) }

func (c TranscriptionConfig) DialTimeout() time.Duration { return millis(c.DialTimeoutMS) }

// UsesOpenAI reports whether any configured component calls the OpenAI API.
func (c Config) UsesOpenAI() bool {
	return c.Transcription.Backend == BackendOpenAI || c.Coach.Model != "" || c.Speech.Enable
}
