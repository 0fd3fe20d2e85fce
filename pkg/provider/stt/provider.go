// Package stt defines the Source interface for Speech-to-Text backends.
//
// A source wraps a transcription engine (a local whisper.cpp model, or a
// remote streaming API) together with its microphone capture as a queue-like
// producer: a background goroutine decodes speech continuously and the
// session loop polls committed utterances one at a time with a bounded wait.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/lexibot/pkg/types"
)

// ErrNoUtterance is returned by Source.Get when the poll window elapses
// without a committed utterance. It is the normal quiet-room outcome, not a
// fault.
var ErrNoUtterance = errors.New("stt: no utterance available")

// Source is the queue-like transcription producer the session loop drives.
type Source interface {
	// Get blocks until the next committed utterance is available, timeout
	// elapses, or ctx is cancelled. A timeout surfaces as [ErrNoUtterance].
	Get(ctx context.Context, timeout time.Duration) (types.Utterance, error)

	// PauseListening discards microphone input until ResumeListening is
	// called. Used while the robot itself is speaking so it does not
	// transcribe its own voice. Idempotent.
	PauseListening()

	// ResumeListening re-enables transcription after a pause. Idempotent.
	ResumeListening()

	// IsAlive reports whether the background decoding goroutine is still
	// running. A dead source must be replaced by the caller.
	IsAlive() bool

	// LastActivity returns the time speech was last committed or the
	// activity clock was last reset.
	LastActivity() time.Time

	// ResetActivity restarts the idle clock as of now.
	ResetActivity()

	// Drain discards every utterance currently queued without blocking.
	// Called after the robot spoke to throw away anything transcribed in
	// the meantime.
	Drain()

	// Close stops the background goroutine and releases the capture device
	// and model resources. Safe to call more than once.
	Close() error
}

// AudioInput delivers raw 16-bit little-endian PCM chunks from a capture
// device. ReadChunk blocks until a chunk is available; it returns an error
// when the device fails or is closed, which ends the consuming source.
type AudioInput interface {
	ReadChunk(ctx context.Context) ([]byte, error)
	Close() error
}
