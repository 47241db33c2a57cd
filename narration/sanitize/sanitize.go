// Package sanitize normalizes document text into a form a speech-synthesis
// engine will accept: markup stripped, whitespace collapsed, terminal
// punctuation guaranteed, degenerate input rejected.
package sanitize

import (
	"regexp"
	"strings"
)

// DefaultMinLength is the minimum number of characters a text must have,
// both before and after cleaning, to be considered narratable. Very short
// inputs (stray whitespace, bare headings) are rejected because several
// engines reject or mishandle them.
const DefaultMinLength = 3

// Options configure a Sanitizer.
type Options struct {
	// MinLength is the narratable-length threshold. Zero means
	// DefaultMinLength.
	MinLength int

	// StripNonASCII removes non-ASCII runes before narration. Appropriate
	// for engines that mishandle non-Latin script; leave false for
	// multilingual voices.
	StripNonASCII bool
}

// Sanitizer cleans raw document text for narration. It is a pure,
// deterministic transformer; the same input always yields the same output.
type Sanitizer struct {
	minLength     int
	stripNonASCII bool

	imageRegex       *regexp.Regexp
	linkRegex        *regexp.Regexp
	headingRegex     *regexp.Regexp
	listItemRegex    *regexp.Regexp
	blockquoteRegex  *regexp.Regexp
	markupRegex      *regexp.Regexp
	newlineRegex     *regexp.Regexp
	doublePauseRegex *regexp.Regexp
	spaceRegex       *regexp.Regexp
}

// New creates a Sanitizer with the given options.
func New(opts Options) *Sanitizer {
	minLength := opts.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Sanitizer{
		minLength:     minLength,
		stripNonASCII: opts.StripNonASCII,

		// Images before links: the bang would otherwise survive as noise.
		imageRegex:       regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`),
		linkRegex:        regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`),
		headingRegex:     regexp.MustCompile(`(?m)^\s*#{1,6}\s*`),
		listItemRegex:    regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`),
		blockquoteRegex:  regexp.MustCompile(`(?m)^\s*>\s?`),
		markupRegex:      regexp.MustCompile("[*_`~#]"),
		newlineRegex:     regexp.MustCompile(`\s*\n+\s*`),
		doublePauseRegex: regexp.MustCompile(`([.!?,;:])\.+`),
		spaceRegex:       regexp.MustCompile(`\s+`),
	}
}

// Clean normalizes raw text for a speech-synthesis call. The second return
// value is false when the input has no narratable content; callers must
// skip such items silently rather than surface an error.
func (s *Sanitizer) Clean(raw string) (string, bool) {
	if len(strings.TrimSpace(raw)) < s.minLength {
		return "", false
	}

	text := raw

	// Line-level markers first, while newlines still delimit lines.
	text = s.headingRegex.ReplaceAllString(text, "")
	text = s.blockquoteRegex.ReplaceAllString(text, "")
	text = s.listItemRegex.ReplaceAllString(text, "")

	// Collapse link syntax to its visible label.
	text = s.imageRegex.ReplaceAllString(text, "$1")
	text = s.linkRegex.ReplaceAllString(text, "$1")

	// Inline markup characters carry no speech value.
	text = s.markupRegex.ReplaceAllString(text, "")

	// Newlines become sentence pauses, then "?." / "!." / ".." artifacts
	// from lines that already ended in punctuation are collapsed.
	text = s.newlineRegex.ReplaceAllString(text, ". ")
	text = s.doublePauseRegex.ReplaceAllString(text, "$1")

	if s.stripNonASCII {
		text = stripNonASCII(text)
	}

	text = s.spaceRegex.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if len(text) < s.minLength {
		return "", false
	}

	if !endsInTerminalPunctuation(text) {
		text += "."
	}
	return text, true
}

// MinLength reports the configured narratable-length threshold.
func (s *Sanitizer) MinLength() int {
	return s.minLength
}

func stripNonASCII(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r < 128 {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func endsInTerminalPunctuation(text string) bool {
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
