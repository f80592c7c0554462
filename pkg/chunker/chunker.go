// Package chunker splits long markdown reports into pieces that fit a
// length-limited chat message.
//
// Split points are tried coarse to fine: markdown headings, blank-line
// paragraphs, sentence ends, and finally a hard cut. Units keep their
// separators, so joining the chunks in order gives back the input.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MessageLimit is the hard size limit of a Discord message.
	MessageLimit = 2000
	// DefaultLimit leaves room for a header on the first message.
	DefaultLimit = 1800
)

var (
	headingRe   = regexp.MustCompile(`(?m)^#{1,6} `)
	paragraphRe = regexp.MustCompile(`\n\n+`)
	sentenceRe  = regexp.MustCompile(`[.!?]\s+`)
)

// splitter cuts text into ordered units whose concatenation is the text.
type splitter func(text string) []string

// levels runs coarse to fine. Anything still too big after the last level is
// hard cut.
var levels = []splitter{
	SplitHeadings,
	SplitParagraphs,
	SplitSentences,
}

// Split returns the ordered chunks of report, each at most limit runes long.
// A non-positive limit means DefaultLimit.
func Split(report string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if report == "" {
		return nil
	}

	chunks := pack(report, limit, 0)
	for i, c := range chunks {
		chunks[i] = Truncate(c, limit)
	}
	return chunks
}

// pack greedily fills chunks with the units of the given level, descending a
// level only for units that are too big on their own.
func pack(text string, limit, level int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	if level >= len(levels) {
		return HardCut(text, limit)
	}

	units := levels[level](text)
	if len(units) <= 1 {
		return pack(text, limit, level+1)
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, unit := range units {
		n := utf8.RuneCountInString(unit)
		if curLen+n <= limit {
			cur.WriteString(unit)
			curLen += n
			continue
		}
		flush()
		if n <= limit {
			cur.WriteString(unit)
			curLen = n
			continue
		}

		// The tail of an oversized unit stays open so following units can
		// join it.
		sub := pack(unit, limit, level+1)
		chunks = append(chunks, sub[:len(sub)-1]...)
		last := sub[len(sub)-1]
		cur.WriteString(last)
		curLen = utf8.RuneCountInString(last)
	}
	flush()

	return chunks
}

// SplitHeadings cuts before every markdown heading line.
func SplitHeadings(text string) []string {
	var starts []int
	for _, loc := range headingRe.FindAllStringIndex(text, -1) {
		if loc[0] > 0 {
			starts = append(starts, loc[0])
		}
	}
	return cutBefore(text, starts)
}

// SplitParagraphs cuts after every run of blank lines.
func SplitParagraphs(text string) []string {
	return cutAfter(text, paragraphRe)
}

// SplitSentences cuts after sentence-ending punctuation and its whitespace.
func SplitSentences(text string) []string {
	return cutAfter(text, sentenceRe)
}

// HardCut slices text into pieces of at most limit runes.
func HardCut(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	var pieces []string
	for text != "" {
		head := Truncate(text, limit)
		pieces = append(pieces, head)
		text = text[len(head):]
	}
	return pieces
}

// Truncate returns the longest prefix of s with at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func cutBefore(text string, starts []int) []string {
	units := make([]string, 0, len(starts)+1)
	prev := 0
	for _, s := range starts {
		units = append(units, text[prev:s])
		prev = s
	}
	return append(units, text[prev:])
}

func cutAfter(text string, re *regexp.Regexp) []string {
	var units []string
	prev := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		units = append(units, text[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		units = append(units, text[prev:])
	}
	return units
}
