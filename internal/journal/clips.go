package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/vision"
	"github.com/MrWong99/lexibot/pkg/types"
)

const (
	clipsDir          = "clips"
	defaultClipWindow = 5 * time.Second
	defaultClipPeriod = 200 * time.Millisecond
)

// ClipOption configures a ClipRecorder.
type ClipOption func(*ClipRecorder)

// WithClipWindow sets how much trailing footage each saved clip covers.
// Values ≤ 0 keep the default of 5s.
func WithClipWindow(d time.Duration) ClipOption {
	return func(c *ClipRecorder) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithClipRate sets the buffering rate in frames per second. Values ≤ 0 keep
// the default of 5 fps.
func WithClipRate(fps float64) ClipOption {
	return func(c *ClipRecorder) {
		if fps > 0 {
			c.period = time.Duration(float64(time.Second) / fps)
		}
	}
}

// ClipRecorder keeps a rolling buffer of the last few seconds of camera
// frames and writes one short clip per turn into the participant's clips
// directory, so a turn's reply can later be reviewed next to the player's
// face.
//
// Clips are stored as concatenated JPEG frames (MJPEG), one file per turn.
// A background sampler fills the buffer; [ClipRecorder.SaveClip] snapshots
// it. All methods are safe for concurrent use.
type ClipRecorder struct {
	source vision.FrameSource
	dir    string
	window time.Duration
	period time.Duration

	mu       sync.Mutex
	frames   []types.Frame
	lastSeen time.Time
	running  bool
	stop     chan struct{}

	wg sync.WaitGroup
}

// NewClipRecorder creates a recorder buffering frames from source and writing
// clips under dir/clips. The sampler does not run until
// [ClipRecorder.Start] is called.
func NewClipRecorder(dir string, source vision.FrameSource, opts ...ClipOption) (*ClipRecorder, error) {
	if dir == "" {
		return nil, errors.New("journal: clip dir must not be empty")
	}
	if source == nil {
		return nil, errors.New("journal: frame source must not be nil")
	}

	clipDir := filepath.Join(dir, clipsDir)
	if err := os.MkdirAll(clipDir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create clip dir %q: %w", clipDir, err)
	}

	c := &ClipRecorder{
		source: source,
		dir:    clipDir,
		window: defaultClipWindow,
		period: defaultClipPeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start launches the background sampler. Calling Start while the sampler is
// already running is a no-op.
func (c *ClipRecorder) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	c.wg.Add(1)
	go c.run(c.stop)
}

// Stop signals the sampler to exit and blocks until it has. Buffered frames
// stay available to a later [ClipRecorder.SaveClip]. Safe to call multiple
// times.
func (c *ClipRecorder) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	c.mu.Unlock()

	c.wg.Wait()
}

// SaveClip writes the buffered frames to clips/turn_<n>.mjpeg. An empty
// buffer (camera warming up, or no frame within the window) writes nothing
// and returns nil.
func (c *ClipRecorder) SaveClip(turn int) error {
	c.mu.Lock()
	frames := make([]types.Frame, len(c.frames))
	copy(frames, c.frames)
	c.mu.Unlock()

	if len(frames) == 0 {
		return nil
	}

	path := filepath.Join(c.dir, fmt.Sprintf("turn_%03d.mjpeg", turn))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open clip %q: %w", path, err)
	}
	defer f.Close()

	for _, frame := range frames {
		if _, err := f.Write(frame.Data); err != nil {
			return fmt.Errorf("journal: write clip %q: %w", path, err)
		}
	}
	return nil
}

func (c *ClipRecorder) run(stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

// sample appends the latest frame to the buffer and prunes everything older
// than the clip window. A repeated frame (same capture timestamp) or an
// absent one is a no-op.
func (c *ClipRecorder) sample() {
	frame, ok := c.source.GetLatestFrame()
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !frame.Timestamp.After(c.lastSeen) {
		return
	}
	c.lastSeen = frame.Timestamp
	c.frames = append(c.frames, frame)

	cutoff := frame.Timestamp.Add(-c.window)
	drop := 0
	for drop < len(c.frames) && c.frames[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		c.frames = append(c.frames[:0:0], c.frames[drop:]...)
	}
}
