// Package tts defines the Renderer interface for Text-to-Speech backends.
//
// A renderer wraps a synthesis service together with the audio output (the
// robot's speaker). Rendering is deliberately blocking: the session loop
// pauses the microphone while the robot talks, so Speak must not return
// until playback has finished.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/lexibot/pkg/types"
)

// Renderer turns reply text into audible speech.
type Renderer interface {
	// Speak synthesises text with the given voice and blocks until the
	// audio has been fully played. Cancelling ctx aborts both synthesis
	// and playback.
	Speak(ctx context.Context, text string, voice types.VoiceProfile) error
}

// Player renders raw synthesised audio to the output device, blocking until
// playback completes. It is split from the Renderer so synthesis backends
// can be tested without a sound card.
type Player interface {
	Play(ctx context.Context, audio []byte) error
	Close() error
}
