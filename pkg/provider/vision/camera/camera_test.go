package camera

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeJPEG builds a minimal marker-delimited frame with the given payload.
func fakeJPEG(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(jpegSOI)
	buf.Write(payload)
	buf.Write(jpegEOI)
	return buf.Bytes()
}

// writeStream writes an MJPEG-like byte stream to a temp file for cat to
// replay.
func writeStream(t *testing.T, frames ...[]byte) string {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f)
	}
	path := filepath.Join(t.TempDir(), "stream.mjpeg")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write stream: %v", err)
	}
	return path
}

// waitForFrame polls until the source has a frame or the deadline passes.
func waitForFrame(t *testing.T, s *Source, want []byte) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		frame, ok := s.GetLatestFrame()
		if ok && bytes.Equal(frame.Data, want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	frame, ok := s.GetLatestFrame()
	t.Fatalf("frame never matched: ok=%v got=%v want=%v", ok, frame.Data, want)
}

func TestSource_ParsesFrames(t *testing.T) {
	t.Parallel()

	first := fakeJPEG([]byte{0x01, 0x02, 0x03})
	second := fakeJPEG([]byte{0x04, 0x05, 0x06, 0x07})
	path := writeStream(t, first, second)

	s, err := New(WithCommand("cat", path))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	// The reader keeps only the newest frame; after the stream ends the
	// latest must be the second one.
	waitForFrame(t, s, second)
}

func TestSource_SkipsGarbageBetweenFrames(t *testing.T) {
	t.Parallel()

	frame := fakeJPEG([]byte{0xAA, 0xBB})
	path := writeStream(t, []byte{0x00, 0xFF, 0x13}, frame)

	s, err := New(WithCommand("cat", path))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	waitForFrame(t, s, frame)
}

func TestSource_NoFrameYet(t *testing.T) {
	t.Parallel()

	s, err := New(WithCommand("sleep", "60"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, ok := s.GetLatestFrame(); ok {
		t.Error("got a frame before any data was captured")
	}
}

func TestSource_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	s, err := New(WithCommand("sleep", "60"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
