package arbiter_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/lexibot/internal/arbiter"
	"github.com/MrWong99/lexibot/internal/board"
	"github.com/MrWong99/lexibot/internal/clue"
)

var (
	keyA2 = clue.Key{Direction: clue.Across, Number: 2}
	keyA5 = clue.Key{Direction: clue.Across, Number: 5}
	keyD1 = clue.Key{Direction: clue.Down, Number: 1}
)

func newTable(t *testing.T) *clue.Table {
	t.Helper()
	tbl, err := clue.NewTable([]clue.Record{
		{Key: keyA2, Hint: "former empire partner", Answer: "AUSTRIA"},
		{Key: keyA5, Hint: "canal country", Answer: "PANAMA"},
		{Key: keyD1, Hint: "hexagon country", Answer: "FRANCE"},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func snap(cells map[clue.Key]board.Pattern) board.Snapshot {
	return board.Snapshot{Cells: cells}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)

	tests := []struct {
		name     string
		pattern  board.Pattern
		wantHits int
	}{
		{"matching partial fill", "PANAM0", 0},
		{"mismatch at one position", "PANADA", 1},
		{"all empty pattern", "000000", 0},
		{"short pattern matching prefix", "PAN", 0},
		{"short pattern with mismatch", "PAX", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := arbiter.Errors(snap(map[clue.Key]board.Pattern{keyA5: tt.pattern}), tbl)
			if len(got) != tt.wantHits {
				t.Fatalf("Errors(%q): want %d reports, got %v", tt.pattern, tt.wantHits, got)
			}
			if tt.wantHits > 0 {
				if got[0].Key != keyA5 {
					t.Errorf("report key: want A5, got %s", got[0].Key)
				}
				if strings.Contains(got[0].String(), "PANAMA") {
					t.Errorf("report leaks the answer: %s", got[0].String())
				}
				if !strings.Contains(got[0].String(), "canal country") {
					t.Errorf("report missing hint: %s", got[0].String())
				}
			}
		})
	}
}

func TestErrors_RendersPlaceholders(t *testing.T) {
	t.Parallel()

	got := arbiter.Errors(snap(map[clue.Key]board.Pattern{keyA5: "PAXA00"}), newTable(t))
	if len(got) != 1 {
		t.Fatalf("Errors: want 1 report, got %v", got)
	}
	if got[0].Pattern != "PAXA__" {
		t.Errorf("rendered pattern: want PAXA__, got %q", got[0].Pattern)
	}
	if strings.Contains(got[0].Pattern, "0") {
		t.Errorf("raw empty marker leaked into %q", got[0].Pattern)
	}
}

func TestFocal(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)

	t.Run("override wins", func(t *testing.T) {
		t.Parallel()
		s := snap(map[clue.Key]board.Pattern{keyA2: "0000000", keyD1: "FRANC0"})
		s.Focal = &keyD1
		if got := arbiter.Focal(s, tbl); got != keyD1 {
			t.Errorf("focal: want D1, got %s", got)
		}
	})

	t.Run("first blank clue across before down", func(t *testing.T) {
		t.Parallel()
		s := snap(map[clue.Key]board.Pattern{
			keyA2: "AUSTRIA",
			keyA5: "PANAM0",
			keyD1: "000000",
		})
		if got := arbiter.Focal(s, tbl); got != keyA5 {
			t.Errorf("focal: want A5, got %s", got)
		}
	})

	t.Run("fully filled board falls back to first clue", func(t *testing.T) {
		t.Parallel()
		s := snap(map[clue.Key]board.Pattern{
			keyA2: "AUSTRIA",
			keyA5: "PANAMA",
			keyD1: "FRANCE",
		})
		if got := arbiter.Focal(s, tbl); got != keyA2 {
			t.Errorf("focal: want A2, got %s", got)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		s := snap(map[clue.Key]board.Pattern{keyA5: "00000", keyD1: "000000", keyA2: "0000000"})
		first := arbiter.Focal(s, tbl)
		for i := 0; i < 10; i++ {
			if got := arbiter.Focal(s, tbl); got != first {
				t.Fatalf("focal changed between calls: %s then %s", first, got)
			}
		}
	})
}

func TestInteresting(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)
	// A2 has 5 of 7 letters, D1 has 2 of 6, A5 is focal and excluded.
	s := snap(map[clue.Key]board.Pattern{
		keyA2: "AUSTR00",
		keyA5: "PAN000",
		keyD1: "FR0000",
	})

	got := arbiter.Interesting(s, tbl, keyA5, 2)
	if len(got) != 2 {
		t.Fatalf("Interesting: want 2 candidates, got %v", got)
	}
	if got[0].Key != keyA2 || got[0].Filled != 5 {
		t.Errorf("first candidate: want A2 with 5 filled, got %+v", got[0])
	}
	if got[1].Key != keyD1 || got[1].Filled != 2 {
		t.Errorf("second candidate: want D1 with 2 filled, got %+v", got[1])
	}
}

func TestInteresting_TiesKeepTableOrder(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)
	s := snap(map[clue.Key]board.Pattern{
		keyA2: "AU00000",
		keyD1: "FR0000",
	})

	got := arbiter.Interesting(s, tbl, keyA5, 3)
	if len(got) != 2 || got[0].Key != keyA2 || got[1].Key != keyD1 {
		t.Errorf("tie order: want [A2 D1], got %v", got)
	}
}

func TestInteresting_TieBreakFollowsDeclarationOrder(t *testing.T) {
	t.Parallel()

	// Down declared before across; a directional sort would flip the tie.
	tbl, err := clue.NewTable([]clue.Record{
		{Key: keyD1, Hint: "hexagon country", Answer: "FRANCE"},
		{Key: keyA2, Hint: "former empire partner", Answer: "AUSTRIA"},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	// Both clues have exactly two filled letters.
	s := snap(map[clue.Key]board.Pattern{
		keyD1: "FR0000",
		keyA2: "AU00000",
	})

	got := arbiter.Interesting(s, tbl, keyA5, 3)
	if len(got) != 2 || got[0].Key != keyD1 || got[1].Key != keyA2 {
		t.Errorf("tie order: want declaration order [D1 A2], got %v", got)
	}
}

func TestInteresting_ExcludesSolvedAndFocal(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)
	s := snap(map[clue.Key]board.Pattern{
		keyA2: "AUSTRIA", // solved, no blanks
		keyA5: "PANAM0",  // focal
		keyD1: "FRA000",
	})

	got := arbiter.Interesting(s, tbl, keyA5, 3)
	if len(got) != 1 || got[0].Key != keyD1 {
		t.Errorf("candidates: want [D1], got %v", got)
	}
}

func TestRestSummary(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)
	s := snap(map[clue.Key]board.Pattern{
		keyA2: "AUSTR00",
		keyA5: "PANAM0",
		keyD1: "FR0000",
	})

	got := arbiter.RestSummary(s, tbl, map[clue.Key]bool{keyA5: true})
	want := "A: 2:AUSTR__ | D: 1:FR____"
	if got != want {
		t.Errorf("RestSummary: want %q, got %q", want, got)
	}
}

func TestRestSummary_AllFilled(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)
	s := snap(map[clue.Key]board.Pattern{
		keyA2: "AUSTRIA",
		keyA5: "PANAMA",
		keyD1: "FRANCE",
	})

	if got := arbiter.RestSummary(s, tbl, nil); got != arbiter.AllFilledSummary {
		t.Errorf("RestSummary: want %q, got %q", arbiter.AllFilledSummary, got)
	}
}

func TestSolved(t *testing.T) {
	t.Parallel()

	tbl := newTable(t)
	s := snap(map[clue.Key]board.Pattern{
		keyA2: "AUSTRIA", // complete and correct
		keyA5: "PANADA",  // complete but wrong
		keyD1: "FRANC0",  // incomplete
	})

	got := arbiter.Solved(s, tbl)
	if len(got) != 1 || got[0] != keyA2 {
		t.Errorf("Solved: want [A2], got %v", got)
	}
}
