// Package respond assembles streamed model output into the text that is spoken.
package respond

import (
	"regexp"
	"strings"
)

// DefaultStripChars are markup characters removed from replies.
const DefaultStripChars = "*_[]()\"#@"

var reasoningSpanPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Normalize removes reasoning spans, drops stripChars, and collapses whitespace.
//
// It runs on the fully concatenated reply so spans crossing fragment boundaries are
// removed. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string, stripChars string) string {
	for {
		next := normalizePass(text, stripChars)
		if next == text {
			return next
		}
		text = next
	}
}

func normalizePass(text string, stripChars string) string {
	text = reasoningSpanPattern.ReplaceAllString(text, "")
	if stripChars != "" {
		text = strings.Map(func(r rune) rune {
			if strings.ContainsRune(stripChars, r) {
				return -1
			}
			return r
		}, text)
	}
	return strings.Join(strings.Fields(text), " ")
}
