// Package types defines the shared types used across all Lexibot packages.
//
// These types form the lingua franca between providers, the emotion tracker,
// and the session loop. They are intentionally minimal — each package defines
// its own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// Frame represents a single video frame captured from the camera stream.
// Frames are handed to the emotion classifier as-is; the pipeline never
// decodes or mutates the pixel data itself.
type Frame struct {
	// Data is the encoded image payload (typically JPEG from the capture
	// process). The classifier decides how to decode it.
	Data []byte

	// Width and Height are the frame dimensions in pixels, when known.
	Width  int
	Height int

	// Timestamp marks when this frame was captured.
	Timestamp time.Time
}

// Utterance represents a single committed speech-to-text result.
type Utterance struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the transcriber does not report confidence.
	Confidence float64

	// Timestamp marks when the utterance was committed.
	Timestamp time.Time

	// Synthetic is true for utterances injected by the session loop itself
	// (idle markers), as opposed to real transcribed speech.
	Synthetic bool
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string
}

// VoiceProfile describes a TTS voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g., "nova").
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default).
	SpeedFactor float64
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}
