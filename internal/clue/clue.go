// Package clue defines the static clue table for a crossword puzzle.
//
// The table is loaded once at startup from an exolve-style text file (see
// [ParseFile]) and is read-only afterwards. It is the single source of truth
// for valid (direction, number) pairs: any board state referencing a pair
// outside the table is a data-integrity fault, not a lookup miss to be
// silently ignored.
package clue

import (
	"fmt"
	"strings"
)

// Direction identifies the orientation of a clue on the grid.
type Direction string

const (
	Across Direction = "across"
	Down   Direction = "down"
)

// IsValid reports whether d is a recognised direction.
func (d Direction) IsValid() bool {
	return d == Across || d == Down
}

// Letter returns the single uppercase letter used in log and journal output
// ("A" for across, "D" for down).
func (d Direction) Letter() string {
	if d == Down {
		return "D"
	}
	return "A"
}

// ParseDirection converts a wire-format direction string into a [Direction].
// Both the full word ("across") and the single letter ("a"/"A") are accepted.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "across", "a":
		return Across, nil
	case "down", "d":
		return Down, nil
	}
	return "", fmt.Errorf("clue: unknown direction %q", s)
}

// Key uniquely identifies a clue within a puzzle. Keys are comparable and
// valid as map keys.
type Key struct {
	Direction Direction
	Number    int
}

// String renders the key in the compact "A5" / "D12" form used throughout
// logs and journals.
func (k Key) String() string {
	return fmt.Sprintf("%s%d", k.Direction.Letter(), k.Number)
}

// Record is a single clue: its key, the hint shown to the user, and the
// answer in uppercase letters. Records are immutable after table construction.
type Record struct {
	Key    Key
	Hint   string
	Answer string
}

// Table holds all clues of a puzzle in declaration order (across before down,
// ascending numbers within each direction) with an index for O(1) lookup.
type Table struct {
	records []Record
	index   map[Key]int
}

// NewTable builds a Table from records. The declaration order of records is
// preserved and becomes the tiebreak order for arbitration. Duplicate keys
// and invalid records are rejected.
func NewTable(records []Record) (*Table, error) {
	t := &Table{
		records: make([]Record, 0, len(records)),
		index:   make(map[Key]int, len(records)),
	}
	for i, r := range records {
		if !r.Key.Direction.IsValid() {
			return nil, fmt.Errorf("clue: record %d: invalid direction %q", i, r.Key.Direction)
		}
		if r.Key.Number <= 0 {
			return nil, fmt.Errorf("clue: record %d: clue number must be positive, got %d", i, r.Key.Number)
		}
		if r.Answer != strings.ToUpper(r.Answer) {
			return nil, fmt.Errorf("clue: record %d (%s): answer %q is not uppercase", i, r.Key, r.Answer)
		}
		if _, dup := t.index[r.Key]; dup {
			return nil, fmt.Errorf("clue: duplicate key %s", r.Key)
		}
		t.index[r.Key] = len(t.records)
		t.records = append(t.records, r)
	}
	return t, nil
}

// Len returns the number of clues in the table.
func (t *Table) Len() int { return len(t.records) }

// Records returns all clues in declaration order. The returned slice is
// shared; callers must not mutate it.
func (t *Table) Records() []Record { return t.records }

// Lookup returns the record for key and whether it exists.
func (t *Table) Lookup(key Key) (Record, bool) {
	i, ok := t.index[key]
	if !ok {
		return Record{}, false
	}
	return t.records[i], true
}

// OrderOf returns the declaration-order position of key, or -1 if the key is
// not in the table. Used as a stable tiebreak in arbitration.
func (t *Table) OrderOf(key Key) int {
	i, ok := t.index[key]
	if !ok {
		return -1
	}
	return i
}

// First returns the first clue in declaration order. It panics on an empty
// table; tables are validated to be non-empty at load time.
func (t *Table) First() Record {
	return t.records[0]
}
