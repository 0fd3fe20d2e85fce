package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/MrWong99/lexibot/pkg/provider/tts"
)

// ErrPlaybackClosed is returned by Playback.Play after Close.
var ErrPlaybackClosed = errors.New("audio: playback closed")

// Defaults for speaker playback. The OpenAI speech endpoint returns 24 kHz
// mono PCM, so that is the default input; the device side defaults to the
// same format and lets the sound server resample.
var (
	defaultPlaybackFormat = Format{SampleRate: 24000, Channels: 1}
)

// PlaybackOption configures a [Playback].
type PlaybackOption func(*Playback)

// WithPlayCommand overrides the playback subprocess. The command must read
// raw little-endian int16 PCM in the device format from stdin and block until
// the audio has been played. The default is aplay with flags derived from the
// device format.
func WithPlayCommand(name string, args ...string) PlaybackOption {
	return func(p *Playback) {
		p.cmdName = name
		p.cmdArgs = args
	}
}

// WithDeviceFormat sets the format handed to the playback command.
func WithDeviceFormat(f Format) PlaybackOption {
	return func(p *Playback) {
		if f.SampleRate > 0 && f.Channels > 0 {
			p.device = f
		}
	}
}

// WithInputFormat declares the format of the PCM passed to Play. Audio is
// converted to the device format when the two differ.
func WithInputFormat(f Format) PlaybackOption {
	return func(p *Playback) {
		if f.SampleRate > 0 && f.Channels > 0 {
			p.input = f
		}
	}
}

// Playback plays raw PCM through the speaker, one utterance at a time. It
// implements tts.Player. Play blocks until the playback subprocess exits, so
// the renderer's blocking contract holds end to end.
type Playback struct {
	cmdName string
	cmdArgs []string
	device  Format
	input   Format

	mu     sync.Mutex
	closed bool
}

// NewPlayback returns a ready Playback. No subprocess is started until Play.
func NewPlayback(opts ...PlaybackOption) *Playback {
	p := &Playback{
		device: defaultPlaybackFormat,
		input:  defaultPlaybackFormat,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cmdName == "" {
		p.cmdName = "aplay"
		p.cmdArgs = rawPCMArgs(p.device, "-q", "-t", "raw")
	}
	return p
}

// Play converts pcm to the device format and pipes it through the playback
// command, blocking until playback finishes or ctx is cancelled. Concurrent
// calls are serialised; speech must never overlap itself.
func (p *Playback) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlaybackClosed
	}

	conv := FormatConverter{Target: p.device}
	frame := conv.Convert(AudioFrame{
		Data:       pcm,
		SampleRate: p.input.SampleRate,
		Channels:   p.input.Channels,
	})
	if len(frame.Data) == 0 {
		return errors.New("audio: playback dropped malformed PCM")
	}

	cmd := exec.CommandContext(ctx, p.cmdName, p.cmdArgs...)
	cmd.Stdin = bytes.NewReader(frame.Data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("audio: playback command %q: %w: %s", p.cmdName, err, msg)
		}
		return fmt.Errorf("audio: playback command %q: %w", p.cmdName, err)
	}
	return nil
}

// Close marks the playback as closed. In-flight playback finishes; later
// Play calls fail with [ErrPlaybackClosed]. Safe to call more than once.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

var _ tts.Player = (*Playback)(nil)
