package whisper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/stt"
)

// fakeInput is a scripted stt.AudioInput. A nil chunk makes ReadChunk fail,
// simulating a dying capture device.
type fakeInput struct {
	chunks chan []byte

	mu         sync.Mutex
	closeCount int
}

func newFakeInput() *fakeInput {
	return &fakeInput{chunks: make(chan []byte, 64)}
}

func (f *fakeInput) ReadChunk(ctx context.Context) ([]byte, error) {
	select {
	case chunk := <-f.chunks:
		if chunk == nil {
			return nil, errors.New("capture device gone")
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return nil
}

// newTestSource builds a running Source with a fake transcriber so no model
// is loaded.
func newTestSource(t *testing.T, input *fakeInput, text string) *Source {
	t.Helper()
	s := &Source{
		input:               input,
		language:            "en",
		sampleRate:          16000,
		channels:            1,
		silenceThresholdMs:  100,
		maxBufferDurationMs: 10_000,
		transcribe:          func([]float32) (string, error) { return text, nil },
	}
	s.start()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// speechChunk is 100 ms of loud audio, silenceChunk 100 ms of nothing.
func speechChunk() []byte {
	loud := make([]int16, 1600)
	for i := range loud {
		loud[i] = 12000
	}
	return pcmFromSamples(loud)
}

func silenceChunk() []byte {
	return make([]byte, 3200)
}

func TestSource_CommitsAfterSilence(t *testing.T) {
	t.Parallel()

	input := newFakeInput()
	s := newTestSource(t, input, "hello there")
	before := s.LastActivity()

	input.chunks <- speechChunk()
	input.chunks <- silenceChunk()

	utt, err := s.Get(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if utt.Text != "hello there" {
		t.Errorf("utterance text: want %q, got %q", "hello there", utt.Text)
	}
	if !s.LastActivity().After(before) {
		t.Error("LastActivity not advanced by a committed utterance")
	}
}

func TestSource_GetTimeout(t *testing.T) {
	t.Parallel()

	s := newTestSource(t, newFakeInput(), "unused")
	_, err := s.Get(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, stt.ErrNoUtterance) {
		t.Fatalf("Get on quiet source: want ErrNoUtterance, got %v", err)
	}
}

func TestSource_PauseDiscardsSpeech(t *testing.T) {
	t.Parallel()

	input := newFakeInput()
	s := newTestSource(t, input, "should be dropped")

	s.PauseListening()
	input.chunks <- speechChunk()
	input.chunks <- silenceChunk()

	if _, err := s.Get(context.Background(), 100*time.Millisecond); !errors.Is(err, stt.ErrNoUtterance) {
		t.Fatalf("Get while paused: want ErrNoUtterance, got %v", err)
	}

	s.ResumeListening()
	input.chunks <- speechChunk()
	input.chunks <- silenceChunk()

	if _, err := s.Get(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Get after resume: %v", err)
	}
}

func TestSource_DrainDiscardsBacklog(t *testing.T) {
	t.Parallel()

	input := newFakeInput()
	s := newTestSource(t, input, "backlog")

	input.chunks <- speechChunk()
	input.chunks <- silenceChunk()

	// Wait for the commit to land in the queue, then throw it away.
	deadline := time.Now().Add(5 * time.Second)
	for len(s.queue) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("utterance never committed")
		}
		time.Sleep(time.Millisecond)
	}
	s.Drain()

	if _, err := s.Get(context.Background(), 50*time.Millisecond); !errors.Is(err, stt.ErrNoUtterance) {
		t.Fatalf("Get after drain: want ErrNoUtterance, got %v", err)
	}
}

func TestSource_DiesOnInputFailure(t *testing.T) {
	t.Parallel()

	input := newFakeInput()
	s := newTestSource(t, input, "unused")
	if !s.IsAlive() {
		t.Fatal("fresh source should be alive")
	}

	input.chunks <- nil // scripted device failure

	deadline := time.Now().Add(5 * time.Second)
	for s.IsAlive() {
		if time.Now().After(deadline) {
			t.Fatal("source still alive after input failure")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSource_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	input := newFakeInput()
	s := newTestSource(t, input, "unused")

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	input.mu.Lock()
	defer input.mu.Unlock()
	if input.closeCount != 1 {
		t.Errorf("input close count: want 1, got %d", input.closeCount)
	}
	if s.IsAlive() {
		t.Error("closed source reports alive")
	}
}

func TestNewSource_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewSource("", newFakeInput()); err == nil {
		t.Error("expected error for empty model path, got nil")
	}
	if _, err := NewSource("model.bin", nil); err == nil {
		t.Error("expected error for nil input, got nil")
	}
}
