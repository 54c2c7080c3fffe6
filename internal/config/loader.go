package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidTTSProviders lists known speech-synthesis provider names. Used by
// [Validate] to warn about unrecognised names.
var ValidTTSProviders = []string{"elevenlabs"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// TTS
	if cfg.TTS.Name != "" && !slices.Contains(ValidTTSProviders, cfg.TTS.Name) {
		slog.Warn("unknown TTS provider name — may be a typo",
			"name", cfg.TTS.Name,
			"known", ValidTTSProviders,
		)
	}
	if cfg.TTS.Name != "" && cfg.TTS.APIKey == "" {
		errs = append(errs, fmt.Errorf("tts.api_key is required when tts.name is set"))
	}
	if cfg.TTS.Name == "" {
		slog.Warn("no TTS provider configured; messages will post without speech")
	}

	// Store
	if cfg.Store.Driver != "" && !cfg.Store.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: memory, sqlite, postgres", cfg.Store.Driver))
	}
	if cfg.Store.Driver == StoreSQLite && cfg.Store.SQLitePath == "" {
		errs = append(errs, fmt.Errorf("store.sqlite_path is required when store.driver is sqlite"))
	}
	if cfg.Store.Driver == StorePostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("store.postgres_dsn is required when store.driver is postgres"))
	}

	// Defaults
	if cfg.Defaults.NarratorActor == "" {
		slog.Warn("defaults.narrator_actor is empty; narration and voice fallback will be unavailable until the host sets one")
	}

	return errors.Join(errs...)
}
