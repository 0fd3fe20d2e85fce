package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/lexibot/internal/emotion"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "alice"); err == nil {
		t.Error("expected error for empty baseDir, got nil")
	}
	if _, err := New(t.TempDir(), ""); err == nil {
		t.Error("expected error for empty participant, got nil")
	}
}

func TestLogTurn_AppendsJSONLines(t *testing.T) {
	t.Parallel()

	j, err := New(t.TempDir(), "alice")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	recs := []TurnRecord{
		{Turn: 1, UserText: "hello", ReplyText: "Hey there!"},
		{
			Turn:          2,
			SystemContext: "FOCAL CLUE: (A5) canal country",
			UserText:      "what is A5",
			ReplyText:     "a canal country",
			NewlySolved:   []string{"A2"},
		},
	}
	for _, rec := range recs {
		if err := j.LogTurn(rec); err != nil {
			t.Fatalf("LogTurn: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(j.Dir(), conversationFile))
	if err != nil {
		t.Fatalf("read conversation file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var got TurnRecord
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("unmarshal line 2: %v", err)
	}
	if got.Turn != 2 || got.ReplyText != "a canal country" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.SystemContext != "FOCAL CLUE: (A5) canal country" {
		t.Errorf("system context not round-tripped: %q", got.SystemContext)
	}
	if got.Timestamp.IsZero() {
		t.Error("zero timestamp was not filled in")
	}
	if len(got.NewlySolved) != 1 || got.NewlySolved[0] != "A2" {
		t.Errorf("newly solved: %v", got.NewlySolved)
	}
}

func TestLogEmotion_WritesHeaderOnce(t *testing.T) {
	t.Parallel()

	j, err := New(t.TempDir(), "bob")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary := emotion.Summary{
		"happy":   1500 * time.Millisecond,
		"neutral": 250 * time.Millisecond,
	}
	if err := j.LogEmotion(1, summary); err != nil {
		t.Fatalf("LogEmotion: %v", err)
	}
	if err := j.LogEmotion(2, emotion.Summary{"happy": time.Second}); err != nil {
		t.Fatalf("LogEmotion turn 2: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(j.Dir(), emotionFile))
	if err != nil {
		t.Fatalf("read emotion file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{
		"turn,label,seconds",
		"1,happy,1.50",
		"1,neutral,0.25",
		"2,happy,1.00",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: want %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestLogEmotion_EmptySummaryIsNoOp(t *testing.T) {
	t.Parallel()

	j, err := New(t.TempDir(), "carol")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := j.LogEmotion(1, emotion.Summary{}); err != nil {
		t.Fatalf("LogEmotion: %v", err)
	}
	if _, err := os.Stat(filepath.Join(j.Dir(), emotionFile)); !os.IsNotExist(err) {
		t.Error("empty summary should not create the emotion file")
	}
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	j, err := New(t.TempDir(), "dave")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := j.LogEvent("session started"); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if err := j.LogEvent("puzzle solved"); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(j.Dir(), timelineFile))
	if err != nil {
		t.Fatalf("read timeline: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], " session started") {
		t.Errorf("line 0 missing marker: %q", lines[0])
	}
	ts := strings.SplitN(lines[1], " ", 2)[0]
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("line 1 timestamp %q not RFC3339: %v", ts, err)
	}
}
