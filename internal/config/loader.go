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

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":    {"openai", "gemini", "anthropic", "ollama", "mistral", "groq"},
	"stt":    {"whisper"},
	"tts":    {"openai"},
	"vision": {"deepface", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("vision", cfg.Providers.Vision.Name)

	// A session cannot run without its three pipeline stages.
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.Model == "" {
		errs = append(errs, errors.New("providers.stt.model (ggml model path) is required for the whisper provider"))
	}
	if cfg.Providers.Vision.Name == "" {
		slog.Warn("providers.vision is not configured; the session will run without emotion context")
	}

	// Puzzle
	if cfg.Puzzle.CluesFile == "" {
		errs = append(errs, errors.New("puzzle.clues_file is required"))
	}

	// Board / session timing
	if cfg.Board.SnapshotWait < 0 {
		errs = append(errs, fmt.Errorf("board.snapshot_wait %s must not be negative", cfg.Board.SnapshotWait.Std()))
	}
	if cfg.Session.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout %s must not be negative", cfg.Session.IdleTimeout.Std()))
	}
	if cfg.Session.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.poll_timeout %s must not be negative", cfg.Session.PollTimeout.Std()))
	}
	if cfg.Session.IdleTimeout != 0 && cfg.Session.PollTimeout != 0 &&
		cfg.Session.IdleTimeout < cfg.Session.PollTimeout {
		errs = append(errs, fmt.Errorf("session.idle_timeout %s is shorter than session.poll_timeout %s",
			cfg.Session.IdleTimeout.Std(), cfg.Session.PollTimeout.Std()))
	}

	// Session knobs
	if cfg.Session.TopK < 0 {
		errs = append(errs, fmt.Errorf("session.top_k %d must not be negative", cfg.Session.TopK))
	}
	if cfg.Session.Temperature < 0 || cfg.Session.Temperature > 2 {
		errs = append(errs, fmt.Errorf("session.temperature %.2f is out of range [0, 2]", cfg.Session.Temperature))
	}
	if cfg.Session.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("session.max_tokens %d must not be negative", cfg.Session.MaxTokens))
	}
	if t := cfg.Session.CommandThreshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("session.command_threshold %.2f is out of range (0, 1]", t))
	}
	if sf := cfg.Session.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("session.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}

	// Participant
	if cfg.Participant.JournalDir != "" && cfg.Participant.Name == "" {
		errs = append(errs, errors.New("participant.name is required when participant.journal_dir is set"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
