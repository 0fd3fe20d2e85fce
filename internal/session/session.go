// Package session implements the turn orchestrator: the single-goroutine
// control loop that turns utterances into spoken replies.
//
// The loop is a four-state machine. LISTENING polls the transcription source
// with a short timeout and synthesises an idle utterance when the user has
// been silent too long. SNAPSHOTTING requests the live puzzle state with a
// bounded wait, falling back to stale data. GENERATING runs clue arbitration
// over the snapshot, assembles the system context, and calls the text
// generator with the full dialogue history. SPEAKING pauses the microphone,
// renders the reply, drains the transcription backlog that accumulated while
// the robot talked, and returns to LISTENING.
//
// All mutable turn state (turn index, completed set, dialogue history, idle
// clock) lives on the Session and is owned by the loop goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/lexibot/internal/arbiter"
	"github.com/MrWong99/lexibot/internal/board"
	"github.com/MrWong99/lexibot/internal/clue"
	"github.com/MrWong99/lexibot/internal/emotion"
	"github.com/MrWong99/lexibot/internal/journal"
	"github.com/MrWong99/lexibot/internal/observe"
	"github.com/MrWong99/lexibot/internal/voicecmd"
	"github.com/MrWong99/lexibot/pkg/provider/llm"
	"github.com/MrWong99/lexibot/pkg/provider/stt"
	"github.com/MrWong99/lexibot/pkg/provider/tts"
	"github.com/MrWong99/lexibot/pkg/types"
)

// ErrQuit is returned by [Session.Run] when the user ends the session with a
// spoken quit command. It marks a clean, user-initiated shutdown.
var ErrQuit = errors.New("session: user requested quit")

// IdleSentinel is the synthetic utterance injected when the user has been
// silent past the idle threshold. The generator prompt treats it as "nobody
// said anything, strike up some chat".
const IdleSentinel = "[[IDLE]]"

// defaultIntro is spoken once before the loop enters LISTENING and becomes
// the first assistant turn in the history.
const defaultIntro = "Hey there! I'm Lexi, your crossword buddy. I'll watch the puzzle with you, so just talk to me whenever you want a hint."

// Defaults for the loop's timing knobs.
const (
	DefaultIdleTimeout  = 20 * time.Second
	DefaultPollTimeout  = 500 * time.Millisecond
	DefaultSnapshotWait = 400 * time.Millisecond
	DefaultTopK         = 2
)

// Tracker is the emotion span aggregator surface the session drives.
// Implemented by [emotion.Tracker].
type Tracker interface {
	Start()
	Drain() emotion.Summary
	Stop()
}

// Transcripts supervises the transcription source: it hands out the current
// source and replaces it when the capture loop dies. Implemented by
// resilience.STTSupervisor.
type Transcripts interface {
	Source() stt.Source
	CheckAndRestart() (bool, error)
}

// Logbook is the append-only log sink for session artifacts. Implemented by
// [journal.Journal]; may be nil to disable journaling.
type Logbook interface {
	LogTurn(rec journal.TurnRecord) error
	LogEmotion(turn int, summary emotion.Summary) error
	LogEvent(marker string) error
}

// ClipSaver persists a short camera clip for a finished turn. Implemented by
// [journal.ClipRecorder].
type ClipSaver interface {
	SaveClip(turn int) error
}

// Config wires a Session together. Table, Cell, STT, Tracker, Generator, and
// Renderer are required; the rest default sensibly.
type Config struct {
	Table     *clue.Table
	Cell      *board.StateCell
	STT       Transcripts
	Tracker   Tracker
	Generator llm.Provider
	Renderer  tts.Renderer

	// Voice selects the speech profile for all replies.
	Voice types.VoiceProfile

	// Commands detects spoken control phrases. Nil disables quit detection.
	Commands *voicecmd.Detector

	// Journal receives per-turn records. Nil disables journaling.
	Journal Logbook

	// Clips captures a short camera clip after each turn. Nil disables
	// clip capture.
	Clips ClipSaver

	// Metrics receives counters and latencies. Nil disables metrics.
	Metrics *observe.Metrics

	// IdleTimeout is the silence span after which an idle utterance is
	// injected. Default 20s.
	IdleTimeout time.Duration

	// PollTimeout bounds one LISTENING poll. Default 500ms.
	PollTimeout time.Duration

	// SnapshotWait bounds the fresh-snapshot wait. Default 400ms.
	SnapshotWait time.Duration

	// TopK bounds the "other interesting clues" list. Default 2.
	TopK int

	// Temperature and MaxTokens are forwarded to the generator when non-zero.
	Temperature float64
	MaxTokens   int

	// Intro overrides the greeting spoken before the first turn. Empty uses
	// the default greeting.
	Intro string
}

// Session runs the turn loop. Create with [New]; drive with [Session.Run]
// from exactly one goroutine.
type Session struct {
	cfg Config

	turnIndex int
	completed map[clue.Key]bool
	history   History

	// lastEmotion is the most recent drain, reported in the next context.
	lastEmotion emotion.Summary
}

// New validates cfg and returns a ready Session.
func New(cfg Config) (*Session, error) {
	var errs []error
	if cfg.Table == nil {
		errs = append(errs, errors.New("session: clue table is required"))
	}
	if cfg.Cell == nil {
		errs = append(errs, errors.New("session: board state cell is required"))
	}
	if cfg.STT == nil {
		errs = append(errs, errors.New("session: transcription supervisor is required"))
	}
	if cfg.Tracker == nil {
		errs = append(errs, errors.New("session: emotion tracker is required"))
	}
	if cfg.Generator == nil {
		errs = append(errs, errors.New("session: text generator is required"))
	}
	if cfg.Renderer == nil {
		errs = append(errs, errors.New("session: speech renderer is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.SnapshotWait <= 0 {
		cfg.SnapshotWait = DefaultSnapshotWait
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Intro == "" {
		cfg.Intro = defaultIntro
	}

	return &Session{
		cfg:       cfg,
		completed: make(map[clue.Key]bool),
	}, nil
}

// TurnIndex returns the number of completed turns so far.
func (s *Session) TurnIndex() int { return s.turnIndex }

// History returns the dialogue transcript.
func (s *Session) History() *History { return &s.history }

// Run drives the turn loop until ctx is cancelled, the user quits
// ([ErrQuit]), or the transcription producer cannot be kept alive. The
// emotion tracker is started on entry and stopped on exit.
func (s *Session) Run(ctx context.Context) error {
	s.cfg.Tracker.Start()
	defer s.cfg.Tracker.Stop()

	s.logEvent("session started")
	if err := s.speakIntro(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			s.logEvent("session cancelled")
			return err
		}

		if restarted, err := s.cfg.STT.CheckAndRestart(); err != nil {
			s.logEvent("transcription producer unrecoverable")
			return fmt.Errorf("session: transcription producer: %w", err)
		} else if restarted {
			slog.Warn("session: transcription producer restarted")
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.ProducerRestarts.Add(ctx, 1)
			}
		}
		src := s.cfg.STT.Source()

		utt, err := src.Get(ctx, s.cfg.PollTimeout)
		switch {
		case err == nil:
			// A real utterance.
		case errors.Is(err, stt.ErrNoUtterance):
			silence := time.Since(src.LastActivity())
			if silence < s.cfg.IdleTimeout {
				continue
			}
			// One injection per idle window: resetting the clock here means
			// a slow generator cannot trigger a second injection for the
			// same silence.
			src.ResetActivity()
			utt = types.Utterance{Text: IdleSentinel, Timestamp: time.Now(), Synthetic: true}
			slog.Info("session: idle threshold reached, injecting idle turn",
				"silence", silence.Round(time.Second))
			s.logEvent("idle utterance injected")
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			s.logEvent("session cancelled")
			return ctx.Err()
		default:
			// The source is likely dying; the liveness check at the top of
			// the loop handles the restart.
			slog.Warn("session: transcription poll failed", "error", err)
			continue
		}

		if err := s.runTurn(ctx, src, utt); err != nil {
			return err
		}
	}
}

// runTurn executes SNAPSHOTTING, GENERATING, and SPEAKING for one utterance.
// Returns a non-nil error only for loop-terminating conditions.
func (s *Session) runTurn(ctx context.Context, src stt.Source, utt types.Utterance) error {
	if !utt.Synthetic && s.cfg.Commands != nil {
		if cmd, ok := s.cfg.Commands.Detect(utt.Text); ok && cmd == voicecmd.CommandQuit {
			slog.Info("session: quit command detected", "text", utt.Text)
			s.logEvent("user quit")
			return ErrQuit
		}
	}

	s.turnIndex++
	turnStart := time.Now()
	kind := "user"
	if utt.Synthetic {
		kind = "idle"
	}

	ctx, span := observe.StartSpan(ctx, "session.turn")
	defer span.End()
	span.SetAttributes(
		attribute.Int("turn.index", s.turnIndex),
		attribute.String("turn.kind", kind),
	)

	slog.Info("session: turn started", "turn", s.turnIndex, "kind", kind)
	if !utt.Synthetic {
		s.logEvent("user done speaking")
	}

	silence := int(time.Since(src.LastActivity()).Seconds())
	if utt.Synthetic {
		silence = int(s.cfg.IdleTimeout.Seconds())
	}

	// Emotion bucket one: everything since the previous reply finished.
	s.drainEmotion("before turn")

	// SNAPSHOTTING.
	sysCtx, newlySolved := s.buildContext(ctx, silence)

	// GENERATING.
	past := s.history.Messages()
	s.history.Append("user", utt.Text)

	genStart := time.Now()
	req := llm.CompletionRequest{
		SystemContext: sysCtx,
		History:       past,
		UserContent:   utt.Text,
		Temperature:   s.cfg.Temperature,
		MaxTokens:     s.cfg.MaxTokens,
	}
	resp, err := s.cfg.Generator.Complete(ctx, req)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.GenerationDuration.Record(ctx, time.Since(genStart).Seconds())
	}
	if err != nil {
		// The turn is abandoned without speaking; the session keeps going.
		slog.Error("session: generation failed, abandoning turn",
			"turn", s.turnIndex, "error", err)
		s.logEvent("generation failed, turn abandoned")
		return nil
	}
	reply := resp.Content

	// SPEAKING.
	s.speak(ctx, src, reply)

	// Emotion bucket two: reaction to the reply.
	s.drainEmotion("after reply")

	s.history.Append("assistant", reply)
	if s.cfg.Journal != nil {
		rec := journal.TurnRecord{
			Turn:          s.turnIndex,
			SystemContext: sysCtx,
			UserText:      utt.Text,
			ReplyText:     reply,
			Synthetic:     utt.Synthetic,
		}
		for _, key := range newlySolved {
			rec.NewlySolved = append(rec.NewlySolved, key.String())
		}
		if err := s.cfg.Journal.LogTurn(rec); err != nil {
			slog.Warn("session: journaling turn failed", "error", err)
		}
	}
	if s.cfg.Clips != nil {
		if err := s.cfg.Clips.SaveClip(s.turnIndex); err != nil {
			slog.Warn("session: saving turn clip failed", "error", err)
		}
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordTurn(ctx, kind)
		s.cfg.Metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
	}
	observe.Logger(ctx).Info("session: turn finished", "turn", s.turnIndex,
		"duration", time.Since(turnStart).Round(time.Millisecond))
	return nil
}

// buildContext takes the puzzle snapshot and runs arbitration into the
// per-turn system context, also reporting the clues completed for the first
// time in this snapshot. A board that never published yields the degraded
// "not connected yet" context.
func (s *Session) buildContext(ctx context.Context, silenceSeconds int) (string, []clue.Key) {
	snapStart := time.Now()
	snap, stale, err := s.cfg.Cell.Request(ctx, s.cfg.SnapshotWait)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SnapshotDuration.Record(ctx, time.Since(snapStart).Seconds())
	}
	if err != nil {
		if !errors.Is(err, board.ErrNoSnapshot) {
			slog.Warn("session: snapshot request failed", "error", err)
		}
		slog.Info("session: no board state yet, using degraded context")
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.SnapshotTimeouts.Add(ctx, 1)
		}
		return arbiter.MissingBoardContext, nil
	}
	if stale {
		slog.Warn("session: snapshot timed out, using stale state", "turn", s.turnIndex)
		s.logEvent("snapshot timed out, stale state used")
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.SnapshotTimeouts.Add(ctx, 1)
		}
	}

	newlySolved := s.noteSolved(snap)
	sysCtx := arbiter.BuildContext(arbiter.ContextInput{
		Snapshot:       snap,
		Table:          s.cfg.Table,
		NewlySolved:    newlySolved,
		Emotion:        s.lastEmotion,
		SilenceSeconds: silenceSeconds,
		IdleThreshold:  int(s.cfg.IdleTimeout.Seconds()),
		TopK:           s.cfg.TopK,
	})
	return sysCtx, newlySolved
}

// noteSolved returns the clues completed for the first time in snap and
// records them so they are never re-announced.
func (s *Session) noteSolved(snap board.Snapshot) []clue.Key {
	var fresh []clue.Key
	for _, key := range arbiter.Solved(snap, s.cfg.Table) {
		if s.completed[key] {
			continue
		}
		s.completed[key] = true
		fresh = append(fresh, key)
		slog.Info("session: clue solved", "clue", key.String())
		s.logEvent("solved " + key.String())
	}
	return fresh
}

// speakIntro renders the greeting and seeds the history before the first
// LISTENING poll.
func (s *Session) speakIntro(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.speak(ctx, s.cfg.STT.Source(), s.cfg.Intro)
	s.history.Append("assistant", s.cfg.Intro)
	s.drainEmotion("after intro")
	return nil
}

// speak renders text with the microphone paused, then drains the backlog the
// robot's own voice produced and resets the idle clock. Render failures are
// logged; the turn continues so the session never wedges on a flaky speaker.
func (s *Session) speak(ctx context.Context, src stt.Source, text string) {
	src.PauseListening()
	s.logEvent("robot speaking")

	start := time.Now()
	if err := s.cfg.Renderer.Speak(ctx, text, s.cfg.Voice); err != nil {
		slog.Error("session: speech rendering failed", "error", err)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SpeechDuration.Record(ctx, time.Since(start).Seconds())
	}

	s.logEvent("robot done speaking")
	src.ResumeListening()
	src.Drain()
	src.ResetActivity()
}

// drainEmotion pulls the per-label summary accumulated since the previous
// drain and journals it.
func (s *Session) drainEmotion(marker string) {
	summary := s.cfg.Tracker.Drain()
	s.lastEmotion = summary
	if len(summary) == 0 {
		return
	}
	slog.Debug("session: emotion summary", "window", marker, "summary", summary.String())
	if s.cfg.Journal != nil {
		if err := s.cfg.Journal.LogEmotion(s.turnIndex, summary); err != nil {
			slog.Warn("session: journaling emotion failed", "error", err)
		}
		if err := s.cfg.Journal.LogEvent("emotion " + marker + ": " + summary.String()); err != nil {
			slog.Warn("session: journaling emotion event failed", "error", err)
		}
	}
}

// logEvent writes a timeline marker when journaling is enabled.
func (s *Session) logEvent(marker string) {
	if s.cfg.Journal == nil {
		return
	}
	if err := s.cfg.Journal.LogEvent(marker); err != nil {
		slog.Warn("session: journaling event failed", "error", err)
	}
}
