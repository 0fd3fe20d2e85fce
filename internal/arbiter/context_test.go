package arbiter_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/lexibot/internal/arbiter"
	"github.com/MrWong99/lexibot/internal/board"
	"github.com/MrWong99/lexibot/internal/clue"
	"github.com/MrWong99/lexibot/internal/emotion"
)

func TestBuildContext(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)
	ctx := arbiter.BuildContext(arbiter.ContextInput{
		Snapshot: snap(map[clue.Key]board.Pattern{
			keyA2: "AUSTRIA",
			keyA5: "PANADA",
			keyD1: "FR0000",
		}),
		Table:          tbl,
		NewlySolved:    []clue.Key{keyA2},
		Emotion:        emotion.Summary{"happy": 2 * time.Second},
		SilenceSeconds: 3,
		IdleThreshold:  20,
		TopK:           3,
	})

	for _, want := range []string{
		"### ROLE",
		"The user has at least one mistake:",
		"(A5)",
		"The user's cursor is at (D1)",
		"[INTERNAL] Correct answer (never reveal): FRANCE",
		`Current pattern: "FR____"`,
		"### JUST SOLVED",
		"former empire partner",
		"### EMOTION",
		"happy=2.00s",
		"User silent for 3 s (idle chat starts at 20 s).",
		"### RESPONSE GUIDELINES",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}

	// The raw empty marker and non-focal answers must never leak.
	if strings.Contains(ctx, "FR0000") {
		t.Error("context leaks a raw pattern")
	}
	if strings.Contains(ctx, "PANAMA") {
		t.Error("context leaks a non-focal answer")
	}
}

func TestBuildContext_CleanBoard(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)
	ctx := arbiter.BuildContext(arbiter.ContextInput{
		Snapshot: snap(map[clue.Key]board.Pattern{
			keyA5: "PANAM0",
		}),
		Table:          tbl,
		SilenceSeconds: 0,
		IdleThreshold:  20,
		TopK:           2,
	})

	if strings.Contains(ctx, "at least one mistake") {
		t.Error("mistake block present on a clean board")
	}
	if strings.Contains(ctx, "### JUST SOLVED") {
		t.Error("solved block present with nothing solved")
	}
	if !strings.Contains(ctx, "No emotion signal captured") {
		t.Error("missing empty-emotion fallback")
	}
	if !strings.Contains(ctx, arbiter.AllFilledSummary) {
		t.Error("rest summary should report everything else filled (only the focal clue remains)")
	}
}

func TestMissingBoardContext(t *testing.T) {
	t.Parallel()

	if !strings.Contains(arbiter.MissingBoardContext, "not\nconnected yet") &&
		!strings.Contains(arbiter.MissingBoardContext, "not connected yet") {
		t.Errorf("degraded context missing the not-connected remark:\n%s", arbiter.MissingBoardContext)
	}
}
