// Package voicecmd detects spoken control commands in final transcripts.
//
// Transcription mangles short commands easily ("quit" becomes "quid" or
// "quit."), so detection is fuzzy: exact match on a normalized transcript
// first, then Double Metaphone phonetic overlap ranked by Jaro-Winkler
// similarity against the configured trigger phrases.
//
// Commands are intercepted before the utterance reaches the reply pipeline.
package voicecmd

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Command identifies a recognized control command.
type Command string

// Built-in commands.
const (
	// CommandQuit ends the session.
	CommandQuit Command = "quit"
)

const defaultThreshold = 0.85

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithThreshold sets the minimum Jaro-Winkler score required for a fuzzy
// phrase match. Default: 0.85.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) { d.threshold = threshold }
}

// WithPhrases replaces the trigger phrases for a command. Phrases are
// compared case-insensitively with punctuation stripped.
func WithPhrases(cmd Command, phrases ...string) Option {
	return func(d *Detector) { d.phrases[cmd] = phrases }
}

// Detector matches transcripts against trigger phrases. Read-only after
// construction, so safe for concurrent use.
type Detector struct {
	phrases   map[Command][]string
	threshold float64
}

// New returns a Detector with the built-in phrase set: "quit", "exit",
// "stop playing", and "goodbye" all trigger CommandQuit.
func New(opts ...Option) *Detector {
	d := &Detector{
		phrases: map[Command][]string{
			CommandQuit: {"quit", "exit", "stop playing", "goodbye"},
		},
		threshold: defaultThreshold,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect reports whether text is a control command. Only whole-transcript
// matches count: a command embedded in a longer sentence ("I want to quit
// smoking") is conversation, not a command.
func (d *Detector) Detect(text string) (Command, bool) {
	norm := normalize(text)
	if norm == "" {
		return "", false
	}

	for cmd, phrases := range d.phrases {
		for _, phrase := range phrases {
			if d.matches(norm, normalize(phrase)) {
				return cmd, true
			}
		}
	}
	return "", false
}

// matches tests a normalized transcript against one normalized phrase.
func (d *Detector) matches(transcript, phrase string) bool {
	if phrase == "" {
		return false
	}
	if transcript == phrase {
		return true
	}

	// Phonetic gate: some metaphone code of the transcript must overlap a
	// code of the phrase before the similarity score is consulted.
	if !codesOverlap(codesFor(transcript), codesFor(phrase)) {
		return false
	}
	return matchr.JaroWinkler(transcript, phrase, false) >= d.threshold
}

// normalize lowercases text and strips everything but letters, digits, and
// single spaces.
func normalize(text string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) && !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// codesFor returns the union of Double Metaphone codes for each token.
func codesFor(text string) map[string]struct{} {
	codes := make(map[string]struct{}, 4)
	for _, token := range strings.Fields(text) {
		p, s := matchr.DoubleMetaphone(token)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share a code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
