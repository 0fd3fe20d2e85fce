// Package mock provides a test double for the stt package interfaces.
//
// Use Source to script utterances, control liveness, and inspect the
// pause/resume/drain calls the session made:
//
//	src := mock.NewSource()
//	src.Push(types.Utterance{Text: "hello"})
//	// ... run the code under test ...
//	if src.PauseCount() != 1 { ... }
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/stt"
	"github.com/MrWong99/lexibot/pkg/types"
)

// Source is a mock implementation of stt.Source.
type Source struct {
	mu sync.Mutex

	queue        chan types.Utterance
	alive        bool
	paused       bool
	lastActivity time.Time

	// GetErr, if non-nil, is returned by every Get call instead of polling
	// the queue.
	GetErr error

	pauseCount  int
	resumeCount int
	drainCount  int
	closeCount  int
	resetCount  int
}

// NewSource creates an alive, empty mock source.
func NewSource() *Source {
	return &Source{
		queue:        make(chan types.Utterance, 64),
		alive:        true,
		lastActivity: time.Now(),
	}
}

// Push queues an utterance for a later Get and advances the activity clock.
func (s *Source) Push(utt types.Utterance) {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.queue <- utt
}

// PushText is shorthand for Push with only the text set.
func (s *Source) PushText(text string) {
	s.Push(types.Utterance{Text: text, Timestamp: time.Now()})
}

// SetAlive scripts the liveness flag.
func (s *Source) SetAlive(alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = alive
}

// SetLastActivity backdates the activity clock, e.g. to trigger the idle
// path in tests.
func (s *Source) SetLastActivity(ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = ts
}

// Get implements stt.Source.
func (s *Source) Get(ctx context.Context, timeout time.Duration) (types.Utterance, error) {
	s.mu.Lock()
	err := s.GetErr
	s.mu.Unlock()
	if err != nil {
		return types.Utterance{}, err
	}

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
	s.pauseCount++
}

// ResumeListening implements stt.Source.
func (s *Source) ResumeListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.resumeCount++
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
	s.resetCount++
}

// Drain implements stt.Source.
func (s *Source) Drain() {
	s.mu.Lock()
	s.drainCount++
	s.mu.Unlock()
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
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	s.alive = false
	return nil
}

// Paused reports the current pause state. Thread-safe.
func (s *Source) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// PauseCount returns how often PauseListening was called.
func (s *Source) PauseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseCount
}

// ResumeCount returns how often ResumeListening was called.
func (s *Source) ResumeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeCount
}

// DrainCount returns how often Drain was called.
func (s *Source) DrainCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drainCount
}

// ResetCount returns how often ResetActivity was called.
func (s *Source) ResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetCount
}

// CloseCount returns how often Close was called.
func (s *Source) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// Ensure Source implements stt.Source at compile time.
var _ stt.Source = (*Source)(nil)
