// Package whisper provides an in-process transcription source backed by the
// whisper.cpp CGO bindings.
//
// whisper.cpp is a batch engine, so the source simulates a continuous stream:
// a background goroutine pulls PCM chunks from the capture device, applies an
// energy-based silence detector to segment utterances, runs each completed
// segment through the model, and queues the committed text for the session
// loop to poll.
//
// The whisper.cpp static library (libwhisper.a) and headers must be available
// at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// Usage:
//
//	src, err := whisper.NewSource("models/ggml-base.en.bin", mic,
//	    whisper.WithLanguage("en"),
//	    whisper.WithSilenceThresholdMs(600),
//	)
//	utt, err := src.Get(ctx, 500*time.Millisecond)
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/lexibot/pkg/provider/stt"
	"github.com/MrWong99/lexibot/pkg/types"
)

const (
	// defaultRMSThreshold is the RMS energy (in 16-bit PCM units, max
	// 32767) below which a chunk counts as silence.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 600
	defaultMaxBufferDurationMs = 10_000

	// queueCapacity bounds the committed-utterance backlog. The session
	// drains the queue every turn; overflow drops the oldest speech.
	queueCapacity = 32
)

// Option is a functional option for configuring a Source.
type Option func(*Source)

// WithLanguage sets the language code for transcription (e.g., "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Source) { s.language = lang }
}

// WithSampleRate sets the PCM sample rate in Hz, which must match the
// capture device. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// WithChannels sets the channel count of the capture device. Defaults to 1.
func WithChannels(n int) Option {
	return func(s *Source) { s.channels = n }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) that
// commits the buffered speech segment. Defaults to 600 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(s *Source) { s.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before a forced commit, bounding memory during continuous speech.
// Defaults to 10 000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(s *Source) { s.maxBufferDurationMs = ms }
}

// Source implements stt.Source with a locally loaded whisper.cpp model.
type Source struct {
	model      whisperlib.Model
	input      stt.AudioInput
	transcribe func(samples []float32) (string, error)

	language            string
	sampleRate          int
	channels            int
	silenceThresholdMs  int
	maxBufferDurationMs int

	queue chan types.Utterance

	mu           sync.Mutex
	paused       bool
	alive        bool
	lastActivity time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewSource loads the whisper.cpp model from modelPath and starts decoding
// audio from input immediately. The caller owns the source and must call
// Close.
func NewSource(modelPath string, input stt.AudioInput, opts ...Option) (*Source, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	if input == nil {
		return nil, errors.New("whisper: audio input must not be nil")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	s := &Source{
		model:               model,
		input:               input,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		channels:            1,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(s)
	}
	s.transcribe = s.infer
	s.start()
	return s, nil
}

// start initialises the queue and launches the decode goroutine.
func (s *Source) start() {
	s.queue = make(chan types.Utterance, queueCapacity)
	s.alive = true
	s.lastActivity = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
}

// Get implements stt.Source.
func (s *Source) Get(ctx context.Context, timeout time.Duration) (types.Utterance, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case utt := <-s.queue:
		return utt, nil
	case <-timer.C:
		return types.Utterance{}, stt.ErrNoUtterance
	case <-ctx.Done():
		return types.Utterance{}, ctx.Err()
	}
}

// PauseListening implements stt.Source.
func (s *Source) PauseListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// ResumeListening implements stt.Source.
func (s *Source) ResumeListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// IsAlive implements stt.Source.
func (s *Source) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// LastActivity implements stt.Source.
func (s *Source) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// ResetActivity implements stt.Source.
func (s *Source) ResetActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// Drain implements stt.Source.
func (s *Source) Drain() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// Close implements stt.Source.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()

		var errs []error
		if err := s.input.Close(); err != nil {
			errs = append(errs, fmt.Errorf("whisper: close audio input: %w", err))
		}
		if s.model != nil {
			if err := s.model.Close(); err != nil {
				errs = append(errs, fmt.Errorf("whisper: close model: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// run is the single goroutine responsible for capture, silence detection,
// buffering, and inference dispatch.
func (s *Source) run(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.alive = false
		s.mu.Unlock()
	}()

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
	)

	bytesPerMs := s.sampleRate * s.channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.maxBufferDurationMs * bytesPerMs

	commit := func() {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			return
		}

		pcm := buffer
		buffer = nil
		hadSpeech = false
		silenceMs = 0

		text, err := s.transcribe(pcmToFloat32Mono(pcm, s.channels))
		if err != nil {
			slog.Error("whisper: inference failed", "err", err)
			return
		}
		if strings.TrimSpace(text) == "" {
			return
		}

		utt := types.Utterance{Text: text, Timestamp: time.Now()}
		select {
		case s.queue <- utt:
			s.mu.Lock()
			s.lastActivity = utt.Timestamp
			s.mu.Unlock()
		default:
			slog.Warn("whisper: utterance queue full, dropping", "text", text)
		}
	}

	for {
		chunk, err := s.input.ReadChunk(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("whisper: audio input failed, source dying", "err", err)
			}
			commit()
			return
		}

		s.mu.Lock()
		paused := s.paused
		s.mu.Unlock()
		if paused {
			// Keep the device drained but drop everything while the
			// robot is speaking.
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			continue
		}

		rms := computeRMS(chunk)
		chunkMs := chunkDurationMs(chunk, s.sampleRate, s.channels)

		if rms < defaultRMSThreshold {
			if hadSpeech {
				silenceMs += chunkMs
				buffer = append(buffer, chunk...)
				if silenceMs >= s.silenceThresholdMs {
					commit()
				}
			}
		} else {
			hadSpeech = true
			silenceMs = 0
			buffer = append(buffer, chunk...)
			if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
				commit()
			}
		}
	}
}

// infer runs whisper.cpp inference on a mono float32 segment using a fresh
// context. Contexts are not thread-safe but the model is shared.
func (s *Source) infer(samples []float32) (string, error) {
	wctx, err := s.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", s.language, "err", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// Compile-time assertion that Source satisfies stt.Source.
var _ stt.Source = (*Source)(nil)
