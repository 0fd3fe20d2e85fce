// Package emotion aggregates a continuously sampled emotion signal into
// time-weighted spans.
//
// A background sampler polls the camera's frame source at a fixed rate,
// classifies each frame, and collapses consecutive identical labels into a
// single span carrying its duration. The session loop drains the buffered
// spans at turn boundaries to bucket emotional state per turn.
package emotion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/vision"
)

// Span is a contiguous stretch of time during which the classifier reported
// the same label. Spans are immutable once buffered.
type Span struct {
	Label    string
	Duration time.Duration
}

// Summary maps each label to the total time it was observed during a drain
// window.
type Summary map[string]time.Duration

// Labels returns the observed labels sorted alphabetically.
func (s Summary) Labels() []string {
	labels := make([]string, 0, len(s))
	for label := range s {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// String renders the summary as "label=1.25s" pairs sorted by label, for
// timeline logging.
func (s Summary) String() string {
	labels := s.Labels()

	var b strings.Builder
	for i, label := range labels {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%.2fs", label, s[label].Seconds())
	}
	return b.String()
}

// Total returns the summed duration across all labels.
func (s Summary) Total() time.Duration {
	var total time.Duration
	for _, d := range s {
		total += d
	}
	return total
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSampleRate sets the sampling rate in frames per second. Values ≤ 0 keep
// the default of 5 fps.
func WithSampleRate(fps float64) Option {
	return func(t *Tracker) {
		if fps > 0 {
			t.period = time.Duration(float64(time.Second) / fps)
		}
	}
}

// WithFaultHook installs a callback invoked on every classifier fault, after
// the fault has been recovered as the "unknown" label. Used to feed metrics.
func WithFaultHook(hook func(error)) Option {
	return func(t *Tracker) { t.onFault = hook }
}

// Tracker samples frames in the background and buffers duration-weighted
// emotion spans.
//
// The span buffer and the open span are guarded by a single mutex; mutation
// happens either on the sampler goroutine or inside [Tracker.Drain], so time
// is never lost or counted twice. All methods are safe for concurrent use.
type Tracker struct {
	source     vision.FrameSource
	classifier vision.Classifier
	period     time.Duration
	onFault    func(error)

	mu        sync.Mutex
	spans     []Span
	current   string // open span's label; empty until the first classification
	spanStart time.Time
	running   bool
	stop      chan struct{}

	wg sync.WaitGroup
}

// NewTracker creates a tracker reading from source and classifying with
// classifier. The sampler does not run until [Tracker.Start] is called.
func NewTracker(source vision.FrameSource, classifier vision.Classifier, opts ...Option) *Tracker {
	t := &Tracker{
		source:     source,
		classifier: classifier,
		period:     time.Second / 5,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start resets the span state and launches the background sampler. Calling
// Start while the sampler is already running only restarts the open span's
// clock; buffered spans and the current label are untouched.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.spanStart = time.Now()
	if t.running {
		return
	}
	t.current = ""
	t.spans = nil
	t.running = true
	t.stop = make(chan struct{})
	t.wg.Add(1)
	go t.run(t.stop)
}

// Stop signals the sampler to exit and blocks until it has. The final open
// span is closed into the buffer and remains available to a later
// [Tracker.Drain]. Safe to call multiple times.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	t.mu.Unlock()

	t.wg.Wait()
}

// Drain closes out the currently open span, immediately reopens it for the
// same label, and returns the per-label totals of everything buffered so
// far. The close-and-reopen keeps elapsed time fully accounted for across
/// consecutive drains: no gap, no double count.
func (t *Tracker) Drain() Summary {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != "" {
		t.spans = append(t.spans, Span{Label: t.current, Duration: now.Sub(t.spanStart)})
		t.spanStart = now
	}

	summary := make(Summary, len(t.spans))
	for _, span := range t.spans {
		summary[span.Label] += span.Duration
	}
	t.spans = nil
	return summary
}

func (t *Tracker) run(stop <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			t.closeFinalSpan()
			return
		case <-ticker.C:
			t.sample()
		}
	}
}

// sample fetches the latest frame and folds its label into the span state.
// An absent frame is a no-op; a classifier fault records the "unknown"
// label instead of propagating.
func (t *Tracker) sample() {
	frame, ok := t.source.GetLatestFrame()
	if !ok {
		return
	}

	// Classification may be slow; never hold the span lock across it.
	label, err := t.classifier.Classify(context.Background(), frame)
	if err != nil {
		slog.Debug("emotion: classifier fault, recording unknown", "err", err)
		label = vision.LabelUnknown
		if t.onFault != nil {
			t.onFault(err)
		}
	}

	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if label == t.current {
		return
	}
	if t.current != "" {
		t.spans = append(t.spans, Span{Label: t.current, Duration: now.Sub(t.spanStart)})
	}
	t.current = label
	t.spanStart = now
}

// closeFinalSpan flushes the open span when the sampler exits, so a drain
// after Stop still sees the tail of the recording.
func (t *Tracker) closeFinalSpan() {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != "" {
		t.spans = append(t.spans, Span{Label: t.current, Duration: now.Sub(t.spanStart)})
		t.current = ""
	}
}
