package journal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/vision/mock"
	"github.com/MrWong99/lexibot/pkg/types"
)

const clipPeriod = 5 * time.Millisecond

func newRecorder(t *testing.T, opts ...ClipOption) (*ClipRecorder, *mock.FrameSource) {
	t.Helper()

	source := &mock.FrameSource{}
	opts = append([]ClipOption{WithClipRate(float64(time.Second / clipPeriod))}, opts...)
	rec, err := NewClipRecorder(t.TempDir(), source, opts...)
	if err != nil {
		t.Fatalf("NewClipRecorder: %v", err)
	}
	t.Cleanup(rec.Stop)
	return rec, source
}

// saveAndRead snapshots the buffer into a clip for turn and returns its bytes,
// or nil when no clip was written.
func saveAndRead(t *testing.T, rec *ClipRecorder, turn int) []byte {
	t.Helper()
	if err := rec.SaveClip(turn); err != nil {
		t.Fatalf("SaveClip: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(rec.dir, fmt.Sprintf("turn_%03d.mjpeg", turn)))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	return data
}

// waitForClip polls SaveClip until cond holds for the written bytes.
func waitForClip(t *testing.T, rec *ClipRecorder, what string, cond func([]byte) bool) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		data := saveAndRead(t, rec, 1)
		if cond(data) {
			return data
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s (clip is %d bytes)", what, len(data))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewClipRecorder_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewClipRecorder("", &mock.FrameSource{}); err == nil {
		t.Error("expected error for empty dir, got nil")
	}
	if _, err := NewClipRecorder(t.TempDir(), nil); err == nil {
		t.Error("expected error for nil source, got nil")
	}
}

func TestClipRecorder_BuffersAndSavesFrames(t *testing.T) {
	t.Parallel()

	rec, source := newRecorder(t)
	rec.Start()

	base := time.Now()
	first := []byte{0xAA, 1, 2}
	second := []byte{0xBB, 3, 4}

	source.Set(types.Frame{Data: first, Timestamp: base})
	waitForClip(t, rec, "first frame", func(data []byte) bool {
		return bytes.Contains(data, first)
	})

	source.Set(types.Frame{Data: second, Timestamp: base.Add(100 * time.Millisecond)})
	data := waitForClip(t, rec, "second frame", func(data []byte) bool {
		return bytes.Contains(data, second)
	})

	// Distinct frames appear once each, oldest first.
	if got := bytes.Count(data, first); got != 1 {
		t.Errorf("first frame appears %d times, want 1", got)
	}
	if bytes.Index(data, first) > bytes.Index(data, second) {
		t.Error("frames written out of capture order")
	}
}

func TestClipRecorder_EmptyBufferWritesNothing(t *testing.T) {
	t.Parallel()

	rec, _ := newRecorder(t)
	rec.Start()
	time.Sleep(5 * clipPeriod)

	if data := saveAndRead(t, rec, 1); data != nil {
		t.Errorf("clip written without any frames: %d bytes", len(data))
	}
}

func TestClipRecorder_PrunesFramesOutsideWindow(t *testing.T) {
	t.Parallel()

	rec, source := newRecorder(t, WithClipWindow(50*time.Millisecond))
	rec.Start()

	base := time.Now()
	old := []byte{0xAA, 9}
	fresh := []byte{0xBB, 8}

	source.Set(types.Frame{Data: old, Timestamp: base})
	waitForClip(t, rec, "old frame buffered", func(data []byte) bool {
		return bytes.Contains(data, old)
	})

	// A frame a full window later pushes the old one past the cutoff.
	source.Set(types.Frame{Data: fresh, Timestamp: base.Add(200 * time.Millisecond)})
	waitForClip(t, rec, "old frame pruned", func(data []byte) bool {
		return bytes.Contains(data, fresh) && !bytes.Contains(data, old)
	})
}

func TestClipRecorder_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	rec, source := newRecorder(t)
	buffered := []byte{0xAA, 7}
	source.Set(types.Frame{Data: buffered, Timestamp: time.Now()})
	rec.Start()
	waitForClip(t, rec, "frame buffered", func(data []byte) bool {
		return bytes.Contains(data, buffered)
	})

	rec.Stop()
	rec.Stop()

	// The sampler is down; later frames never reach the buffer, but what was
	// already buffered stays available.
	late := []byte{0xBB, 6}
	source.Set(types.Frame{Data: late, Timestamp: time.Now().Add(time.Second)})
	time.Sleep(5 * clipPeriod)

	data := saveAndRead(t, rec, 1)
	if !bytes.Contains(data, buffered) {
		t.Error("buffered frame lost after Stop")
	}
	if bytes.Contains(data, late) {
		t.Error("sampler still buffering after Stop")
	}
}
