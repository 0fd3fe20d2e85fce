package arbiter

import (
	"fmt"
	"strings"

	"github.com/MrWong99/lexibot/internal/board"
	"github.com/MrWong99/lexibot/internal/clue"
	"github.com/MrWong99/lexibot/internal/emotion"
)

const contextHeader = `### ROLE
You are a friendly robot sitting beside the user, helping solve a crossword
puzzle. Speak in first person ("I"). Offer encouragement, clever hints, or
light chit-chat about the puzzle itself, but never reveal any full answer.

### BOARD STATUS`

const contextFooter = `### RESPONSE GUIDELINES
- Speak in first person, upbeat and friendly, one or two sentences only.
- Give subtle hints, never spell out a complete answer.
- React to the user's detected emotion: keep your approach when they seem
  happy or surprised, soften it when they seem frustrated or sad.`

// MissingBoardContext is the degraded-mode system context used when the
// board has never published a state. Arbitration is skipped entirely; the
// generator is told to make a generic "not connected yet" remark.
const MissingBoardContext = `### ROLE
You are a friendly robot crossword companion, but the puzzle board is not
connected yet. Gently tell the user you cannot see their puzzle so far and
keep the small talk going. One or two sentences, first person.`

// ContextInput bundles everything the context builder needs for one turn.
type ContextInput struct {
	Snapshot board.Snapshot
	Table    *clue.Table

	// NewlySolved lists clues completed for the first time this turn, as
	// detected by the session against its completed set.
	NewlySolved []clue.Key

	// Emotion is the per-label summary drained just before this turn.
	Emotion emotion.Summary

	// SilenceSeconds is the time since the user last spoke, and
	// IdleThreshold the configured limit that triggers idle chat.
	SilenceSeconds int
	IdleThreshold  int

	// TopK bounds the "other interesting clues" list.
	TopK int
}

// BuildContext assembles the per-turn system context handed to the text
// generator: role header, mistakes, the focal clue with its internal answer,
// an interest-ranked shortlist, a rest-of-board glance, freshly solved
// entries, and the emotion and silence blocks.
func BuildContext(in ContextInput) string {
	focal := Focal(in.Snapshot, in.Table)
	focalRec, _ := in.Table.Lookup(focal)
	focalPattern := in.Snapshot.Pattern(focal)

	var b strings.Builder
	b.WriteString(contextHeader)

	if errs := Errors(in.Snapshot, in.Table); len(errs) > 0 {
		b.WriteString("\nThe user has at least one mistake:\n")
		for i, e := range errs {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(e.String())
		}
	}

	fmt.Fprintf(&b, "\nThe user's cursor is at (%s) %q.\n", focal, focalRec.Hint)
	fmt.Fprintf(&b, "[INTERNAL] Correct answer (never reveal): %s\n", focalRec.Answer)
	fmt.Fprintf(&b, "Current pattern: %q", focalPattern.Pretty())

	if picks := Interesting(in.Snapshot, in.Table, focal, in.TopK); len(picks) > 0 {
		b.WriteString("\n\nSome other clues you might bring up:\n")
		for i, c := range picks {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "- (%s) %q - current pattern %q", c.Key, c.Hint, c.Pattern)
		}
	}

	b.WriteString("\n\nOther unsolved patterns (quick glance):\n")
	b.WriteString(RestSummary(in.Snapshot, in.Table, map[clue.Key]bool{focal: true}))

	if len(in.NewlySolved) > 0 {
		b.WriteString("\n\n### JUST SOLVED\nThe user has just completed:")
		for _, key := range in.NewlySolved {
			rec, _ := in.Table.Lookup(key)
			fmt.Fprintf(&b, "\n- (%s) %q", key, rec.Hint)
		}
		b.WriteString("\nCelebrate this briefly before anything else.")
	}

	b.WriteString("\n\n### EMOTION\n")
	if len(in.Emotion) > 0 {
		fmt.Fprintf(&b, "Emotion mix since the last turn: %s", in.Emotion)
	} else {
		b.WriteString("No emotion signal captured since the last turn.")
	}

	fmt.Fprintf(&b, "\n\n### SILENCE\nUser silent for %d s (idle chat starts at %d s).",
		in.SilenceSeconds, in.IdleThreshold)

	b.WriteString("\n\n")
	b.WriteString(contextFooter)
	return b.String()
}
