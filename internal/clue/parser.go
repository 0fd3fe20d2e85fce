package clue

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// The puzzle definition format is a plain text file with four sections, in
// order: across hints, down hints, across answers, down answers. Each section
// starts with an "exolve-across:" or "exolve-down:" header line — the first
// occurrence of each header opens the hints block, the second occurrence the
// answers block. Section bodies are "<number> <text>" lines; blank and
// malformed lines are skipped.

type sectionKind int

const (
	sectionHint sectionKind = iota
	sectionAnswer
)

// ParseFile reads the puzzle definition at path and returns the clue table.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("clue: open %q: %w", path, err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("clue: parse %q: %w", path, err)
	}
	return t, nil
}

// Parse reads an exolve-style puzzle definition from r and returns the clue
// table, ordered across-then-down with ascending numbers in each direction.
func Parse(r io.Reader) (*Table, error) {
	hints := map[Key]string{}
	answers := map[Key]string{}
	seenHints := map[Direction]bool{}

	var (
		kind sectionKind
		dir  Direction
		open bool
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		low := strings.ToLower(line)
		switch {
		case strings.HasPrefix(low, "exolve-across"):
			dir, open = Across, true
		case strings.HasPrefix(low, "exolve-down"):
			dir, open = Down, true
		default:
			if !open {
				continue
			}
			num, text, ok := splitClueLine(line)
			if !ok {
				continue
			}
			key := Key{Direction: dir, Number: num}
			if kind == sectionHint {
				hints[key] = text
			} else {
				answers[key] = strings.ToUpper(text)
			}
			continue
		}

		// Header line: the second sighting of a direction header switches
		// that direction (and the rest of the file) to the answers pass.
		if seenHints[dir] {
			kind = sectionAnswer
		} else {
			seenHints[dir] = true
			kind = sectionHint
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(hints) == 0 {
		return nil, fmt.Errorf("no clues found")
	}

	records := make([]Record, 0, len(hints))
	for key, hint := range hints {
		records = append(records, Record{
			Key:    key,
			Hint:   hint,
			Answer: answers[key],
		})
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Key, records[j].Key
		if a.Direction != b.Direction {
			return a.Direction == Across
		}
		return a.Number < b.Number
	})

	return NewTable(records)
}

// splitClueLine parses a "<number> <text>" body line. Lines that do not start
// with an integer are not clue lines and are skipped by the caller.
func splitClueLine(line string) (int, string, bool) {
	numStr, rest, found := strings.Cut(line, " ")
	if !found {
		return 0, "", false
	}
	num, err := strconv.Atoi(numStr)
	if err != nil || num <= 0 {
		return 0, "", false
	}
	return num, strings.TrimSpace(rest), true
}
