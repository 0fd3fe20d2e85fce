// Package mock provides test doubles for the vision package interfaces.
//
// Use FrameSource to control exactly when a frame is available, and
// Classifier to script labels or faults and inspect the frames that were
// classified.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lexibot/pkg/provider/vision"
	"github.com/MrWong99/lexibot/pkg/types"
)

// FrameSource is a mock implementation of vision.FrameSource.
type FrameSource struct {
	mu sync.Mutex

	frame    types.Frame
	hasFrame bool

	// GetCallCount is the number of times GetLatestFrame was called.
	GetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Set makes frame the latest available frame.
func (s *FrameSource) Set(frame types.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.hasFrame = true
}

// ClearFrame makes the source report no frame available.
func (s *FrameSource) ClearFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasFrame = false
}

// GetLatestFrame records the call and returns the configured frame, if any.
func (s *FrameSource) GetLatestFrame() (types.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCallCount++
	if !s.hasFrame {
		return types.Frame{}, false
	}
	return s.frame, true
}

// Close records the call and returns nil.
func (s *FrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Ensure FrameSource implements vision.FrameSource at compile time.
var _ vision.FrameSource = (*FrameSource)(nil)

// ClassifyCall records a single invocation of Classifier.Classify.
type ClassifyCall struct {
	// Frame is the frame passed to Classify.
	Frame types.Frame
}

// Classifier is a mock implementation of vision.Classifier.
type Classifier struct {
	mu sync.Mutex

	label string
	err   error

	// ClassifyCalls records every call to Classify in order.
	ClassifyCalls []ClassifyCall
}

// SetLabel makes every subsequent Classify call return label.
func (c *Classifier) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
	c.err = nil
}

// SetErr makes every subsequent Classify call fail with err.
func (c *Classifier) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Classify records the call and returns the scripted label or error.
func (c *Classifier) Classify(_ context.Context, frame types.Frame) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClassifyCalls = append(c.ClassifyCalls, ClassifyCall{Frame: frame})
	if c.err != nil {
		return "", c.err
	}
	if c.label == "" {
		return vision.LabelNoFace, nil
	}
	return c.label, nil
}

// CallCount returns the number of Classify calls so far. Thread-safe.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ClassifyCalls)
}

// Ensure Classifier implements vision.Classifier at compile time.
var _ vision.Classifier = (*Classifier)(nil)
