// Package config provides the configuration schema and loader for the
// Lexibot crossword assistant.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the Lexibot server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the corresponding slog level. Unrecognised or empty
// values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Duration is a time.Duration that unmarshals from YAML strings like "20s"
// or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"20s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for Lexibot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Board       BoardConfig       `yaml:"board"`
	Puzzle      PuzzleConfig      `yaml:"puzzle"`
	Session     SessionConfig     `yaml:"session"`
	Participant ParticipantConfig `yaml:"participant"`
}

// ServerConfig holds network and logging settings for the Lexibot server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	// The board websocket, /metrics, /healthz and /readyz are all served here.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage.
type ProvidersConfig struct {
	// LLM generates the assistant's replies.
	LLM ProviderEntry `yaml:"llm"`

	// STT transcribes the participant's speech. For the "whisper" provider
	// the Model field is the path to a ggml model file.
	STT ProviderEntry `yaml:"stt"`

	// TTS renders the assistant's replies as speech.
	TTS ProviderEntry `yaml:"tts"`

	// Vision classifies facial emotion from camera frames. Optional; when
	// empty the session runs without emotion context.
	Vision ProviderEntry `yaml:"vision"`
}

// ProviderEntry is the common configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "gemini-2.0-flash", or a whisper ggml file path).
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// BoardConfig holds settings for the browser-held puzzle board connection.
type BoardConfig struct {
	// Path is the websocket route the board client connects to.
	// Defaults to "/ws/board" when empty.
	Path string `yaml:"path"`

	// SnapshotWait is how long a turn waits for a fresh board state after
	// requesting one, before falling back to the last known state.
	// Defaults to 400ms when zero.
	SnapshotWait Duration `yaml:"snapshot_wait"`
}

// PuzzleConfig identifies the crossword being played.
type PuzzleConfig struct {
	// CluesFile is the path to the exolve-style clue definition file
	// (hints pass followed by answers pass).
	CluesFile string `yaml:"clues_file"`

	// Title is an optional display name for logs and the journal.
	Title string `yaml:"title"`
}

// SessionConfig tunes the turn orchestrator.
type SessionConfig struct {
	// IdleTimeout is the silence span after which the session injects a
	// synthetic check-in turn. Defaults to 20s when zero.
	IdleTimeout Duration `yaml:"idle_timeout"`

	// PollTimeout bounds each wait on the transcription queue.
	// Defaults to 500ms when zero.
	PollTimeout Duration `yaml:"poll_timeout"`

	// TopK is the number of "interesting" non-focal clues included in the
	// generation context. Defaults to 2 when zero.
	TopK int `yaml:"top_k"`

	// Temperature is the LLM sampling temperature in [0, 2]. Zero means the
	// provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the reply length. Zero means the provider default.
	MaxTokens int `yaml:"max_tokens"`

	// Intro overrides the fixed greeting spoken before listening starts.
	Intro string `yaml:"intro"`

	// QuitPhrases overrides the spoken phrases that end the session.
	QuitPhrases []string `yaml:"quit_phrases"`

	// CommandThreshold is the fuzzy-match similarity threshold for voice
	// commands, in (0, 1]. Defaults to 0.85 when zero.
	CommandThreshold float64 `yaml:"command_threshold"`

	// Voice configures the TTS voice the assistant speaks with.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies the TTS voice parameters for the assistant.
type VoiceConfig struct {
	// ID is the provider-specific voice identifier (e.g., "alloy").
	ID string `yaml:"id"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// ParticipantConfig identifies the person playing and where their session
// journal is written.
type ParticipantConfig struct {
	// Name is the participant identifier used for the journal directory.
	Name string `yaml:"name"`

	// JournalDir is the base directory for per-participant journals.
	// Empty disables journaling.
	JournalDir string `yaml:"journal_dir"`
}
