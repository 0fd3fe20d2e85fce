// Package board synchronises the externally-owned puzzle grid into the turn
// pipeline.
//
// The grid itself lives in the user's browser. The session loop never shares
// mutable state with it: the browser connects to the [Hub] over a websocket,
// the hub forwards one-shot "request_state" events, and the board answers by
// publishing a point-in-time serialisation of itself. Published states are
// decoded into immutable [Snapshot] values and stored in a single-slot
// [StateCell] that the session loop reads with a bounded wait.
package board

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MrWong99/lexibot/internal/clue"
)

// EmptyCell is the wire marker for a cell the user has not filled in.
const EmptyCell = '0'

// placeholderGlyph replaces empty cells whenever a pattern is rendered for
// humans or the language model; the raw marker never leaks into output.
const placeholderGlyph = '_'

// Pattern is the user-entered state of a single clue: one character per cell,
// [EmptyCell] for blanks. A pattern may be shorter than its answer; the
// missing tail cells are treated as empty.
type Pattern string

// Filled returns the number of non-empty cells.
func (p Pattern) Filled() int {
	n := 0
	for _, ch := range p {
		if ch != EmptyCell {
			n++
		}
	}
	return n
}

// HasBlank reports whether the pattern, padded to answerLen, contains at
// least one empty cell.
func (p Pattern) HasBlank(answerLen int) bool {
	if len(p) < answerLen {
		return true
	}
	return strings.ContainsRune(string(p), EmptyCell)
}

// PadTo returns the pattern extended to length n with empty cells. Patterns
// already at least n long are returned unchanged.
func (p Pattern) PadTo(n int) Pattern {
	if len(p) >= n {
		return p
	}
	return p + Pattern(strings.Repeat(string(EmptyCell), n-len(p)))
}

// Pretty renders the pattern for display, one placeholder glyph per empty cell.
func (p Pattern) Pretty() string {
	var sb strings.Builder
	sb.Grow(len(p))
	for _, ch := range p {
		if ch == EmptyCell {
			sb.WriteRune(placeholderGlyph)
		} else {
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

// Snapshot is an immutable point-in-time copy of the puzzle grid, keyed by
// validated clue keys. The session loop and the arbitration engine only ever
// read snapshots; the publishing board retains no reference to them.
type Snapshot struct {
	// Cells maps each clue present in the published state to its pattern.
	Cells map[clue.Key]Pattern

	// Focal is the clue the user's cursor is on, when the board reported one.
	Focal *clue.Key
}

// Pattern returns the pattern for key, or the empty pattern if the snapshot
// has no entry for it.
func (s Snapshot) Pattern(key clue.Key) Pattern {
	return s.Cells[key]
}

// RawSnapshot is the wire shape published by the browser board: clue numbers
// as strings (the UI occasionally emits "undefined" for unset slots), one map
// per direction, plus the optional cursor context.
type RawSnapshot struct {
	Across      map[string]string `json:"across"`
	Down        map[string]string `json:"down"`
	ClueContext *RawClueContext   `json:"clue_context,omitempty"`
}

// RawClueContext carries the board cursor position.
type RawClueContext struct {
	Direction string `json:"direction"`
	ClueLabel string `json:"clueLabel"`
}

// UnknownRef records a snapshot entry whose (direction, number) pair is not
// in the clue table. Such entries are a protocol fault of the publishing
// board: they are skipped for arbitration and reported for logging, never
// silently dropped.
type UnknownRef struct {
	Direction clue.Direction
	RawNumber string
}

func (u UnknownRef) String() string {
	return fmt.Sprintf("%s/%s", u.Direction, u.RawNumber)
}

// Decode validates raw against table and builds a typed [Snapshot]. Entries
// with the UI's "undefined" placeholder key are skipped silently; entries
// whose number does not parse or does not exist in the table are returned as
// unknown references. A cursor context referencing an unknown clue is
// likewise demoted to an unknown reference rather than a focal selection.
func Decode(raw RawSnapshot, table *clue.Table) (Snapshot, []UnknownRef) {
	snap := Snapshot{Cells: make(map[clue.Key]Pattern, len(raw.Across)+len(raw.Down))}
	var unknown []UnknownRef

	decodeDir := func(dir clue.Direction, entries map[string]string) {
		for numStr, pattern := range entries {
			if numStr == "undefined" {
				continue
			}
			key, ok := parseKey(dir, numStr, table)
			if !ok {
				unknown = append(unknown, UnknownRef{Direction: dir, RawNumber: numStr})
				continue
			}
			snap.Cells[key] = Pattern(pattern)
		}
	}
	decodeDir(clue.Across, raw.Across)
	decodeDir(clue.Down, raw.Down)

	if ctx := raw.ClueContext; ctx != nil && ctx.ClueLabel != "" {
		dir, err := clue.ParseDirection(ctx.Direction)
		if err != nil {
			unknown = append(unknown, UnknownRef{Direction: clue.Direction(ctx.Direction), RawNumber: ctx.ClueLabel})
		} else if key, ok := parseKey(dir, ctx.ClueLabel, table); ok {
			snap.Focal = &key
		} else {
			unknown = append(unknown, UnknownRef{Direction: dir, RawNumber: ctx.ClueLabel})
		}
	}

	return snap, unknown
}

// parseKey converts a direction and a wire-format number into a table-backed
// key. Returns false when the number does not parse or the key is absent.
func parseKey(dir clue.Direction, numStr string, table *clue.Table) (clue.Key, bool) {
	num, err := strconv.Atoi(numStr)
	if err != nil || num <= 0 {
		return clue.Key{}, false
	}
	key := clue.Key{Direction: dir, Number: num}
	if _, ok := table.Lookup(key); !ok {
		return clue.Key{}, false
	}
	return key, true
}
