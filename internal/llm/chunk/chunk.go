// Package chunk splits long material text into paragraph-aligned segments.
package chunk

import (
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxLen is the chunk size used when the caller passes a non-positive limit.
	DefaultMaxLen = 4000
	// Separator divides paragraphs. Joining chunks with it restores the input.
	Separator = "\n\n"
)

var sepLen = utf8.RuneCountInString(Separator)

// All returns a single-use sequence of chunks of text. Whole paragraphs are
// accumulated greedily while the chunk stays within maxLen characters; a
// paragraph longer than maxLen is emitted alone and never split.
func All(text string, maxLen int) iter.Seq[string] {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return func(yield func(string) bool) {
		if text == "" {
			return
		}
		var cur strings.Builder
		curLen := 0
		open := false
		for _, p := range strings.Split(text, Separator) {
			pLen := utf8.RuneCountInString(p)
			if open && curLen+sepLen+pLen > maxLen {
				if !yield(cur.String()) {
					return
				}
				cur.Reset()
				curLen = 0
				open = false
			}
			if open {
				cur.WriteString(Separator)
				curLen += sepLen
			}
			cur.WriteString(p)
			curLen += pLen
			open = true
		}
		if open {
			yield(cur.String())
		}
	}
}

// Split collects All into a slice.
func Split(text string, maxLen int) []string {
	return slices.Collect(All(text, maxLen))
}
