// Package arbiter decides what is worth talking about on a crossword board.
//
// Every function here is a pure function of a point-in-time snapshot and the
// static clue table: error detection, focal-clue selection, interest ranking,
// rest-of-board summaries and solved-entry detection. No internal state,
// deterministic, safe to call from any goroutine.
package arbiter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrWong99/lexibot/internal/board"
	"github.com/MrWong99/lexibot/internal/clue"
)

// AllFilledSummary is returned by RestSummary when no unsolved clue remains
// outside the exclusion set.
const AllFilledSummary = "(all filled!)"

// ErrorReport describes one clue whose typed letters contradict the stored
// answer. The answer itself is never part of the report.
type ErrorReport struct {
	Key     clue.Key
	Hint    string
	Pattern string // rendered with '_' placeholders
}

// String renders the report as a user-facing bullet line.
func (r ErrorReport) String() string {
	return fmt.Sprintf("- (%s) %q - you typed %q, but one or more letters don't fit.",
		r.Key, r.Hint, r.Pattern)
}

// Candidate is a partially filled clue eligible for the interest ranking.
type Candidate struct {
	Key     clue.Key
	Hint    string
	Pattern string // rendered with '_' placeholders
	Filled  int
}

// orderedKeys returns the table's clue keys sorted across-then-down with
// ascending numbers, so every scan below is deterministic regardless of the
// snapshot's map iteration order.
func orderedKeys(table *clue.Table) []clue.Key {
	records := table.Records()
	keys := make([]clue.Key, len(records))
	for i, rec := range records {
		keys[i] = rec.Key
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Direction != keys[j].Direction {
			return keys[i].Direction == clue.Across
		}
		return keys[i].Number < keys[j].Number
	})
	return keys
}

// Errors reports every clue whose snapshot pattern mismatches the stored
// answer. A pattern shorter than the answer is padded on the right with
// empty cells before comparing; only positions where a typed letter differs
// from the answer count as mismatches. Clues absent from the snapshot or
// with all-empty patterns never appear.
func Errors(snap board.Snapshot, table *clue.Table) []ErrorReport {
	var reports []ErrorReport
	for _, key := range orderedKeys(table) {
		pattern, ok := snap.Cells[key]
		if !ok || pattern == "" {
			continue
		}
		rec, _ := table.Lookup(key)
		padded := pattern.PadTo(len(rec.Answer))
		for i := 0; i < len(rec.Answer); i++ {
			ch := padded[i]
			if ch != board.EmptyCell && ch != rec.Answer[i] {
				reports = append(reports, ErrorReport{
					Key:     key,
					Hint:    rec.Hint,
					Pattern: pattern.Pretty(),
				})
				break
			}
		}
	}
	return reports
}

// Focal selects the clue the user is currently engaged with. An explicit
// override carried in the snapshot wins; otherwise the first clue with an
// empty cell is chosen scanning across before down in ascending number
// order. On a fully filled board the first table clue is the fallback.
func Focal(snap board.Snapshot, table *clue.Table) clue.Key {
	if snap.Focal != nil {
		return *snap.Focal
	}
	for _, key := range orderedKeys(table) {
		pattern, ok := snap.Cells[key]
		if !ok {
			continue
		}
		rec, _ := table.Lookup(key)
		if pattern.HasBlank(len(rec.Answer)) {
			return key
		}
	}
	return table.First().Key
}

// Interesting ranks every unsolved clue other than exclude by descending
// count of already-filled letters and returns the top k. Ties keep the
// table's declaration order.
func Interesting(snap board.Snapshot, table *clue.Table, exclude clue.Key, k int) []Candidate {
	var candidates []Candidate
	for _, rec := range table.Records() {
		if rec.Key == exclude {
			continue
		}
		pattern, ok := snap.Cells[rec.Key]
		if !ok {
			continue
		}
		if !pattern.HasBlank(len(rec.Answer)) {
			continue
		}
		candidates = append(candidates, Candidate{
			Key:     rec.Key,
			Hint:    rec.Hint,
			Pattern: pattern.Pretty(),
			Filled:  pattern.Filled(),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Filled > candidates[j].Filled
	})
	if k >= 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// RestSummary renders a compact "number:pattern" glance over every unsolved
// clue outside the exclusion set, grouped by direction. Returns
// [AllFilledSummary] when nothing remains.
func RestSummary(snap board.Snapshot, table *clue.Table, exclude map[clue.Key]bool) string {
	var lines []string
	for _, dir := range []clue.Direction{clue.Across, clue.Down} {
		var group []string
		for _, key := range orderedKeys(table) {
			if key.Direction != dir || exclude[key] {
				continue
			}
			pattern, ok := snap.Cells[key]
			if !ok {
				continue
			}
			rec, _ := table.Lookup(key)
			if !pattern.HasBlank(len(rec.Answer)) {
				continue
			}
			group = append(group, fmt.Sprintf("%d:%s", key.Number, pattern.Pretty()))
		}
		if len(group) > 0 {
			lines = append(lines, fmt.Sprintf("%s: %s", dir.Letter(), strings.Join(group, ", ")))
		}
	}
	if len(lines) == 0 {
		return AllFilledSummary
	}
	return strings.Join(lines, " | ")
}

// Solved returns every clue whose snapshot pattern is complete and matches
// the stored answer exactly, in across-then-down order. Callers filter the
// result against their completed set to detect *newly* solved entries.
func Solved(snap board.Snapshot, table *clue.Table) []clue.Key {
	var solved []clue.Key
	for _, key := range orderedKeys(table) {
		pattern, ok := snap.Cells[key]
		if !ok {
			continue
		}
		rec, _ := table.Lookup(key)
		if pattern.HasBlank(len(rec.Answer)) {
			continue
		}
		if string(pattern) == rec.Answer {
			solved = append(solved, key)
		}
	}
	return solved
}
