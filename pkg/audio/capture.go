package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/stt"
)

// ErrCaptureClosed is returned by Capture.ReadChunk after the capture device
// has stopped, either via Close or because the subprocess died.
var ErrCaptureClosed = errors.New("audio: capture closed")

// Defaults for microphone capture: whisper wants 16 kHz mono.
var defaultCaptureFormat = Format{SampleRate: 16000, Channels: 1}

const defaultChunkDuration = 100 * time.Millisecond

// CaptureOption configures a [Capture].
type CaptureOption func(*Capture)

// WithCaptureCommand overrides the capture subprocess. The command must write
// raw little-endian int16 PCM in the device format to stdout. The default is
// arecord with flags derived from the device format.
func WithCaptureCommand(name string, args ...string) CaptureOption {
	return func(c *Capture) {
		c.cmdName = name
		c.cmdArgs = args
	}
}

// WithCaptureFormat sets the format the capture device delivers.
func WithCaptureFormat(f Format) CaptureOption {
	return func(c *Capture) {
		if f.SampleRate > 0 && f.Channels > 0 {
			c.device = f
		}
	}
}

// WithTargetFormat sets the format ReadChunk delivers. Chunks are converted
// from the device format when the two differ.
func WithTargetFormat(f Format) CaptureOption {
	return func(c *Capture) {
		if f.SampleRate > 0 && f.Channels > 0 {
			c.target = f
		}
	}
}

// WithChunkDuration sets how much audio one ReadChunk returns. Default 100ms.
func WithChunkDuration(d time.Duration) CaptureOption {
	return func(c *Capture) {
		if d > 0 {
			c.chunkDur = d
		}
	}
}

// Capture streams raw PCM chunks from the microphone. It implements
// stt.AudioInput. A background goroutine reads the subprocess continuously so
// ReadChunk can honour context cancellation.
type Capture struct {
	cmdName  string
	cmdArgs  []string
	device   Format
	target   Format
	chunkDur time.Duration

	cmd    *exec.Cmd
	chunks chan []byte

	mu        sync.Mutex
	readErr   error
	closeOnce sync.Once
	closeErr  error
}

// NewCapture starts the capture subprocess and the chunk reader goroutine.
func NewCapture(opts ...CaptureOption) (*Capture, error) {
	c := &Capture{
		device:   defaultCaptureFormat,
		target:   defaultCaptureFormat,
		chunkDur: defaultChunkDuration,
		chunks:   make(chan []byte, 8),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cmdName == "" {
		c.cmdName = "arecord"
		c.cmdArgs = rawPCMArgs(c.device, "-q", "-t", "raw")
	}

	c.cmd = exec.Command(c.cmdName, c.cmdArgs...)
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: capture stdout pipe: %w", err)
	}
	if err := c.cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start capture command %q: %w", c.cmdName, err)
	}

	go c.readLoop(stdout)
	return c, nil
}

// chunkBytes is the raw size of one chunk in the device format. int16 PCM,
// so 2 bytes per sample per channel.
func (c *Capture) chunkBytes() int {
	n := int(int64(c.device.SampleRate) * int64(c.chunkDur) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n * c.device.Channels * 2
}

// readLoop pulls fixed-size chunks off the subprocess, converts them to the
// target format, and queues them until the process ends or Close is called.
func (c *Capture) readLoop(stdout io.Reader) {
	defer close(c.chunks)

	conv := FormatConverter{Target: c.target}
	size := c.chunkBytes()
	var elapsed time.Duration

	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			frame := conv.Convert(AudioFrame{
				Data:       buf[:n],
				SampleRate: c.device.SampleRate,
				Channels:   c.device.Channels,
				Timestamp:  elapsed,
			})
			elapsed += c.chunkDur
			if len(frame.Data) > 0 {
				c.chunks <- frame.Data
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				c.mu.Lock()
				c.readErr = err
				c.mu.Unlock()
			}
			return
		}
	}
}

// ReadChunk blocks until the next PCM chunk is available or ctx is cancelled.
// It returns [ErrCaptureClosed] once the capture stream has ended.
func (c *Capture) ReadChunk(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk, ok := <-c.chunks:
		if !ok {
			c.mu.Lock()
			err := c.readErr
			c.mu.Unlock()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCaptureClosed, err)
			}
			return nil, ErrCaptureClosed
		}
		return chunk, nil
	}
}

// Close stops the subprocess and ends the chunk stream. Safe to call more
// than once.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		// Wait reaps the process and closes the stdout pipe, which ends
		// readLoop. The "killed" error is the expected outcome here.
		_ = c.cmd.Wait()
	})
	return c.closeErr
}

var _ stt.AudioInput = (*Capture)(nil)

// rawPCMArgs builds the shared arecord/aplay flag set for a raw PCM stream in
// format f.
func rawPCMArgs(f Format, extra ...string) []string {
	args := append([]string{}, extra...)
	return append(args,
		"-f", "S16_LE",
		"-r", strconv.Itoa(f.SampleRate),
		"-c", strconv.Itoa(f.Channels),
	)
}
