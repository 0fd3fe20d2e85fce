// Package mock provides a test double for the tts package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lexibot/pkg/provider/tts"
	"github.com/MrWong99/lexibot/pkg/types"
)

// SpeakCall records a single Speak invocation.
type SpeakCall struct {
	Text  string
	Voice types.VoiceProfile
}

// Renderer is a mock implementation of tts.Renderer.
type Renderer struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned by every Speak call.
	SpeakErr error
	// SpeakFunc, if non-nil, is invoked by Speak and overrides SpeakErr.
	SpeakFunc func(ctx context.Context, text string, voice types.VoiceProfile) error

	calls []SpeakCall
}

// Speak implements tts.Renderer.
func (r *Renderer) Speak(ctx context.Context, text string, voice types.VoiceProfile) error {
	r.mu.Lock()
	r.calls = append(r.calls, SpeakCall{Text: text, Voice: voice})
	fn := r.SpeakFunc
	err := r.SpeakErr
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voice)
	}
	return err
}

// Calls returns a copy of all recorded Speak calls.
func (r *Renderer) Calls() []SpeakCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SpeakCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallCount returns the number of Speak calls.
func (r *Renderer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Reset clears recorded calls and scripted behavior.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.SpeakErr = nil
	r.SpeakFunc = nil
}

// Ensure Renderer implements tts.Renderer at compile time.
var _ tts.Renderer = (*Renderer)(nil)
