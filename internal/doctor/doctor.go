// Package doctor runs runtime readiness diagnostics for config, audio, storage, and backends.
package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/audio"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/config"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/store"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/transcribe"
)

const probeTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}
	checks = append(checks, checkAudioSelection(ctx, cfg))
	if cfg.UsesOpenAI() {
		checks = append(checks, checkOpenAIKey(cfg))
	}
	checks = append(checks, checkStore(ctx, cfg))
	checks = append(checks, checkTranscription(ctx, cfg))
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("no file at %q; using defaults", loaded.Path)}
	}
	msg := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		msg = fmt.Sprintf("%s (%d warnings)", msg, n)
	}
	return Check{Name: "config", Pass: true, Message: msg}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkOpenAIKey(cfg config.Config) Check {
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return Check{Name: "openai.api_key", Pass: false, Message: "no API key; set OPENAI_API_KEY or openai.api_key"}
	}
	msg := "API key configured"
	if cfg.OpenAI.BaseURL != "" {
		msg = fmt.Sprintf("%s for %s", msg, cfg.OpenAI.BaseURL)
	}
	return Check{Name: "openai.api_key", Pass: true, Message: msg}
}

// checkStore opens the configured store, which also creates its schema.
func checkStore(ctx context.Context, cfg config.Config) Check {
	name := "store." + driverName(cfg.Store.Driver)
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	defer st.Close()

	n, err := st.CountSessionsSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("query failed: %v", err)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable; %d sessions in the last 24h", n)}
}

// checkTranscription probes the configured speech backend.
func checkTranscription(ctx context.Context, cfg config.Config) Check {
	tc := cfg.Transcription
	name := "transcription." + tc.Backend
	ctx, cancel := context.WithTimeout(ctx, probeTimeout+tc.DialTimeout())
	defer cancel()

	switch tc.Backend {
	case config.BackendGRPC:
		err := transcribe.CheckHealth(ctx, transcribe.GRPCConfig{Endpoint: tc.GRPCEndpoint, DialTimeout: tc.DialTimeout()})
		if err != nil {
			return Check{Name: name, Pass: false, Message: err.Error()}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("serving at %s", tc.GRPCEndpoint)}
	case config.BackendHTTP:
		if err := transcribe.NewHTTP(tc.URL, probeTimeout).Health(ctx); err != nil {
			return Check{Name: name, Pass: false, Message: err.Error()}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("healthy at %s", tc.URL)}
	default:
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("model %s", tc.Model)}
	}
}

func driverName(driver string) string {
	if driver == "" {
		return config.DriverSQLite
	}
	return driver
}
