// Package vision defines the interfaces for the camera-side collaborators of
// the emotion pipeline: a frame source that hands out the most recent camera
// frame without blocking, and a classifier that maps a frame to an emotion
// label.
//
// The classifier is an opaque model. Its accuracy is out of scope here; the
// tracker only cares that it returns *some* label for every frame, including
// the "no-face" label when no face is visible.
package vision

import (
	"context"

	"github.com/MrWong99/lexibot/pkg/types"
)

// Well-known labels emitted by the emotion pipeline itself rather than by a
// model. Classifier implementations should reuse LabelNoFace when no face is
// detected; LabelUnknown is reserved for classifier faults and must not be
// returned by a healthy classifier.
const (
	LabelNoFace  = "no-face"
	LabelUnknown = "unknown"
)

// FrameSource hands out the most recent frame captured from the camera.
//
// Implementations must be safe for concurrent use.
type FrameSource interface {
	// GetLatestFrame returns the newest available frame without blocking.
	// ok is false when no frame has been captured yet or the source is
	// between frames; that is a normal outcome, not an error.
	GetLatestFrame() (frame types.Frame, ok bool)

	// Close releases the underlying capture device. Safe to call more than
	// once.
	Close() error
}

// Classifier maps a single frame to an emotion label.
//
// Classification may be slow relative to the sampling period; callers must
// not hold locks across Classify. Implementations must be safe for
// concurrent use.
type Classifier interface {
	// Classify returns the dominant emotion label for frame, or LabelNoFace
	// when no face is detected. An error marks a classifier fault; callers
	// recover it locally and never propagate it.
	Classify(ctx context.Context, frame types.Frame) (string, error)
}
