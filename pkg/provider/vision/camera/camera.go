// Package camera provides an ffmpeg-backed vision.FrameSource. It reads an
// MJPEG stream from a capture device via a subprocess and keeps only the most
// recent frame, so the emotion sampler always sees the newest image and never
// blocks on the camera.
package camera

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/vision"
	"github.com/MrWong99/lexibot/pkg/types"
)

const (
	defaultDevice = "/dev/video0"
	defaultFPS    = 5
)

// jpegSOI and jpegEOI delimit one frame inside the MJPEG stream.
var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// Option configures a [Source].
type Option func(*Source)

// WithDevice sets the v4l2 capture device. Default /dev/video0.
func WithDevice(path string) Option {
	return func(s *Source) {
		if path != "" {
			s.device = path
		}
	}
}

// WithFPS sets the capture frame rate. Default 5.
func WithFPS(fps int) Option {
	return func(s *Source) {
		if fps > 0 {
			s.fps = fps
		}
	}
}

// WithCommand overrides the capture subprocess entirely. The command must
// write an MJPEG stream to stdout. Used by tests and for non-v4l2 cameras.
func WithCommand(name string, args ...string) Option {
	return func(s *Source) {
		s.cmdName = name
		s.cmdArgs = args
	}
}

// Source captures camera frames in the background and hands out the latest
// one. It implements vision.FrameSource.
type Source struct {
	device  string
	fps     int
	cmdName string
	cmdArgs []string

	cmd   *exec.Cmd
	start time.Time

	mu     sync.Mutex
	latest types.Frame
	has    bool

	closeOnce sync.Once
}

// New starts the capture subprocess and the frame reader goroutine.
func New(opts ...Option) (*Source, error) {
	s := &Source{device: defaultDevice, fps: defaultFPS}
	for _, opt := range opts {
		opt(s)
	}
	if s.cmdName == "" {
		s.cmdName = "ffmpeg"
		s.cmdArgs = []string{
			"-loglevel", "error",
			"-f", "v4l2",
			"-framerate", strconv.Itoa(s.fps),
			"-i", s.device,
			"-f", "mjpeg",
			"-q:v", "5",
			"pipe:1",
		}
	}

	s.cmd = exec.Command(s.cmdName, s.cmdArgs...)
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("camera: stdout pipe: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("camera: start capture command %q: %w", s.cmdName, err)
	}
	s.start = time.Now()

	go s.readLoop(stdout)
	return s, nil
}

// readLoop splits the MJPEG stream into JPEG frames and stores each as the
// latest. Exits when the subprocess ends.
func (s *Source) readLoop(stdout io.Reader) {
	r := bufio.NewReaderSize(stdout, 1<<16)
	var frame bytes.Buffer
	inFrame := false

	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}

		if !inFrame {
			// Hunt for the start-of-image marker.
			if b != jpegSOI[0] {
				continue
			}
			next, err := r.ReadByte()
			if err != nil {
				return
			}
			if next != jpegSOI[1] {
				continue
			}
			frame.Reset()
			frame.Write(jpegSOI)
			inFrame = true
			continue
		}

		frame.WriteByte(b)
		if b == jpegEOI[1] && frame.Len() >= 4 &&
			frame.Bytes()[frame.Len()-2] == jpegEOI[0] {
			s.store(frame.Bytes())
			inFrame = false
		}
	}
}

func (s *Source) store(jpeg []byte) {
	data := make([]byte, len(jpeg))
	copy(data, jpeg)

	s.mu.Lock()
	s.latest = types.Frame{Data: data, Timestamp: time.Now()}
	s.has = true
	s.mu.Unlock()
}

// GetLatestFrame returns the newest captured frame without blocking. ok is
// false until the first frame arrives.
func (s *Source) GetLatestFrame() (types.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.has
}

// Close stops the capture subprocess. Safe to call more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
	})
	return nil
}

var _ vision.FrameSource = (*Source)(nil)
