package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/stt"
)

// ErrTooManyRestarts is returned by [STTSupervisor.CheckAndRestart] when the
// producer keeps dying faster than the restart budget allows.
var ErrTooManyRestarts = errors.New("stt producer restarted too often")

// STTSupervisorConfig holds tuning knobs for an [STTSupervisor].
type STTSupervisorConfig struct {
	// MaxRestarts is the number of restarts allowed within Window before the
	// supervisor gives up. Default: 5.
	MaxRestarts int

	// Window is the sliding interval over which restarts are counted.
	// Default: 1m.
	Window time.Duration

	// OnRestart is invoked after every successful restart, e.g. to bump a
	// metric. May be nil.
	OnRestart func()
}

// STTSupervisor keeps a transcription source alive. The session polls the
// source through [STTSupervisor.Source]; when the underlying capture loop
// dies, [STTSupervisor.CheckAndRestart] builds a replacement via the factory.
//
// Safe for concurrent use.
type STTSupervisor struct {
	factory func() (stt.Source, error)
	cfg     STTSupervisorConfig

	mu       sync.Mutex
	source   stt.Source
	restarts []time.Time
}

// NewSTTSupervisor wraps an already-running source with a factory for
// replacements.
func NewSTTSupervisor(initial stt.Source, factory func() (stt.Source, error), cfg STTSupervisorConfig) *STTSupervisor {
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &STTSupervisor{
		factory: factory,
		cfg:     cfg,
		source:  initial,
	}
}

// Source returns the current transcription source.
func (s *STTSupervisor) Source() stt.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// CheckAndRestart replaces a dead source with a fresh one from the factory.
// Returns true when a restart happened. A live source is a no-op. When the
// restart budget is exhausted, [ErrTooManyRestarts] is returned and the dead
// source is left in place.
func (s *STTSupervisor) CheckAndRestart() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source.IsAlive() {
		return false, nil
	}

	now := time.Now()
	kept := s.restarts[:0]
	for _, ts := range s.restarts {
		if now.Sub(ts) < s.cfg.Window {
			kept = append(kept, ts)
		}
	}
	s.restarts = kept
	if len(s.restarts) >= s.cfg.MaxRestarts {
		return false, fmt.Errorf("%w: %d within %s", ErrTooManyRestarts, len(s.restarts), s.cfg.Window)
	}

	if err := s.source.Close(); err != nil {
		slog.Warn("supervisor: closing dead source failed", "error", err)
	}

	replacement, err := s.factory()
	if err != nil {
		return false, fmt.Errorf("supervisor: restart stt source: %w", err)
	}

	s.source = replacement
	s.restarts = append(s.restarts, now)
	slog.Info("supervisor: stt source restarted", "restarts_in_window", len(s.restarts))
	if s.cfg.OnRestart != nil {
		s.cfg.OnRestart()
	}
	return true, nil
}

// Close shuts down the current source.
func (s *STTSupervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Close()
}
