package resilience

import (
	"context"

	"github.com/MrWong99/lexibot/pkg/provider/tts"
	"github.com/MrWong99/lexibot/pkg/types"
)

// TTSFallback implements [tts.Renderer] with automatic failover across multiple
// speech backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Renderer]
}

// Compile-time interface assertion.
var _ tts.Renderer = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Renderer, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional renderer as a fallback.
func (f *TTSFallback) AddFallback(name string, renderer tts.Renderer) {
	f.group.AddFallback(name, renderer)
}

// Speak renders text through the first healthy backend, blocking until
// playback completes. If the primary fails, subsequent fallbacks are tried
// from the start of the utterance.
func (f *TTSFallback) Speak(ctx context.Context, text string, voice types.VoiceProfile) error {
	return f.group.Execute(func(r tts.Renderer) error {
		return r.Speak(ctx, text, voice)
	})
}
