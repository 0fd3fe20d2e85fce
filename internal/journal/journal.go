// Package journal persists a per-participant record of a session: the
// conversation itself, per-turn emotion buckets, and a coarse event timeline.
//
// Everything is append-only under one directory per participant:
//
//	<dir>/<participant>/conversation.jsonl  one JSON object per turn
//	<dir>/<participant>/emotion_log.csv     turn,label,seconds rows
//	<dir>/<participant>/timeline.log        timestamped event markers
//
// Files are opened per write so a crash never loses more than the last line.
package journal

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/lexibot/internal/emotion"
)

const (
	conversationFile = "conversation.jsonl"
	emotionFile      = "emotion_log.csv"
	timelineFile     = "timeline.log"
)

// TurnRecord is a single turn written to conversation.jsonl. SystemContext
// carries the full board-state prompt the generator saw, so a turn can be
// replayed from the journal alone.
type TurnRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Turn          int       `json:"turn"`
	SystemContext string    `json:"system_context,omitempty"`
	UserText      string    `json:"user_text"`
	ReplyText     string    `json:"reply_text"`
	Synthetic     bool      `json:"synthetic,omitempty"`
	NewlySolved   []string  `json:"newly_solved,omitempty"`
}

// Journal writes session artifacts for one participant. Thread-safe.
type Journal struct {
	mu  sync.Mutex
	dir string
}

// New creates the participant directory under baseDir and returns a Journal
// writing into it.
func New(baseDir, participant string) (*Journal, error) {
	if baseDir == "" {
		return nil, errors.New("journal: baseDir must not be empty")
	}
	if participant == "" {
		return nil, errors.New("journal: participant must not be empty")
	}

	dir := filepath.Join(baseDir, participant)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir %q: %w", dir, err)
	}
	return &Journal{dir: dir}, nil
}

// Dir returns the participant directory.
func (j *Journal) Dir() string {
	return j.dir
}

// LogTurn appends a turn record to conversation.jsonl. A zero Timestamp is
// filled with the current time.
func (j *Journal) LogTurn(rec TurnRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal turn: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.appendBytes(conversationFile, data)
}

// LogEmotion appends one CSV row per label in the summary, tagged with the
// turn index. The header row is written when the file is first created.
func (j *Journal) LogEmotion(turn int, summary emotion.Summary) error {
	if len(summary) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	path := filepath.Join(j.dir, emotionFile)
	writeHeader := false
	if info, err := os.Stat(path); errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open %s: %w", emotionFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write([]string{"turn", "label", "seconds"}); err != nil {
			return fmt.Errorf("journal: write emotion header: %w", err)
		}
	}
	for _, label := range summary.Labels() {
		row := []string{
			strconv.Itoa(turn),
			label,
			strconv.FormatFloat(summary[label].Seconds(), 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("journal: write emotion row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("journal: flush emotion rows: %w", err)
	}
	return nil
}

// LogEvent appends a timestamped marker to timeline.log.
func (j *Journal) LogEvent(marker string) error {
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), marker)

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.appendBytes(timelineFile, []byte(line))
}

// appendBytes opens name in the journal dir for append and writes data.
// Caller must hold j.mu.
func (j *Journal) appendBytes(name string, data []byte) error {
	path := filepath.Join(j.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("journal: write %s: %w", name, err)
	}
	return nil
}
