package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// Environment overrides and state-dir defaults are applied after the file.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}

	content, err := os.ReadFile(resolvedPath)
	switch {
	case err == nil:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = []Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		}}
	default:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	applyEnvOverrides(&loaded.Config)
	if err := resolveStatePaths(&loaded.Config); err != nil {
		return Loaded{}, err
	}

	warnings, err := Validate(loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}
	loaded.Warnings = append(loaded.Warnings, warnings...)
	return loaded, nil
}

// Parse decodes TOML content on top of base. Unknown keys become warnings.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	meta, err := toml.Decode(content, &cfg)
	if err != nil {
		return Config{}, nil, err
	}

	var warnings []Warning
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, Warning{
			Key:     key.String(),
			Message: fmt.Sprintf("unknown config key %q ignored", key.String()),
		})
	}
	return cfg, warnings, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("FALOODAI_OPENAI_API_KEY")); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("FALOODAI_STORE_DSN")); v != "" {
		cfg.Store.DSN = v
	}
}

// resolveStatePaths fills the sqlite file and chunk directory under the state dir.
func resolveStatePaths(cfg *Config) error {
	cfg.Storage.ChunkDir = expandTilde(cfg.Storage.ChunkDir)
	if cfg.Store.Driver == DriverSQLite || cfg.Store.Driver == "" {
		cfg.Store.DSN = expandTilde(cfg.Store.DSN)
	}

	needsDSN := cfg.Store.DSN == "" && (cfg.Store.Driver == DriverSQLite || cfg.Store.Driver == "")
	if cfg.Storage.ChunkDir != "" && !needsDSN {
		return nil
	}

	dir, err := StateDir()
	if err != nil {
		return err
	}
	if cfg.Storage.ChunkDir == "" {
		cfg.Storage.ChunkDir = filepath.Join(dir, "chunks")
	}
	if needsDSN {
		cfg.Store.DSN = filepath.Join(dir, "faloodai.db")
	}
	return nil
}
