package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPlayback_PipesPCMToCommand(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "played.raw")
	p := NewPlayback(
		WithPlayCommand("sh", "-c", "cat > "+out),
		WithDeviceFormat(Format{SampleRate: 24000, Channels: 1}),
		WithInputFormat(Format{SampleRate: 24000, Channels: 1}),
	)
	defer p.Close()

	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	if err := p.Play(context.Background(), pcm); err != nil {
		t.Fatalf("Play: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read played file: %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("played bytes = %v, want %v", got, pcm)
	}
}

func TestPlayback_ConvertsInputFormat(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "played.raw")
	p := NewPlayback(
		WithPlayCommand("sh", "-c", "cat > "+out),
		WithDeviceFormat(Format{SampleRate: 24000, Channels: 2}),
		WithInputFormat(Format{SampleRate: 24000, Channels: 1}),
	)
	defer p.Close()

	// 4 mono samples become 4 stereo frames, doubling the byte count.
	if err := p.Play(context.Background(), make([]byte, 8)); err != nil {
		t.Fatalf("Play: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read played file: %v", err)
	}
	if len(got) != 16 {
		t.Errorf("played %d bytes, want 16", len(got))
	}
}

func TestPlayback_EmptyAudioIsNoOp(t *testing.T) {
	t.Parallel()

	p := NewPlayback(WithPlayCommand("false"))
	defer p.Close()

	if err := p.Play(context.Background(), nil); err != nil {
		t.Fatalf("Play with empty audio: %v", err)
	}
}

func TestPlayback_CommandFailure(t *testing.T) {
	t.Parallel()

	p := NewPlayback(WithPlayCommand("false"))
	defer p.Close()

	if err := p.Play(context.Background(), []byte{0, 0}); err == nil {
		t.Fatal("want error from failing playback command")
	}
}

func TestPlayback_PlayAfterClose(t *testing.T) {
	t.Parallel()

	p := NewPlayback(WithPlayCommand("cat"))
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Play(context.Background(), []byte{0, 0}); !errors.Is(err, ErrPlaybackClosed) {
		t.Fatalf("want ErrPlaybackClosed, got %v", err)
	}
}
