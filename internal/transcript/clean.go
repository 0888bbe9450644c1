// Package transcript normalizes recognized utterance text before it becomes a user turn.
package transcript

import (
	"strings"
	"unicode"
)

// DefaultFillers are the interjections dropped from recognized speech.
var DefaultFillers = []string{"uhm", "ah", "hum"}

// Clean removes filler tokens and collapses whitespace.
//
// Fillers match whole tokens only, case-insensitively, ignoring surrounding punctuation.
// An utterance made only of fillers cleans to "".
func Clean(text string, fillers []string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	denied := make(map[string]struct{}, len(fillers))
	for _, filler := range fillers {
		filler = strings.ToLower(strings.TrimSpace(filler))
		if filler != "" {
			denied[filler] = struct{}{}
		}
	}

	kept := fields[:0]
	for _, field := range fields {
		core := strings.ToLower(strings.TrimFunc(field, isEdgePunct))
		if _, drop := denied[core]; drop {
			continue
		}
		kept = append(kept, field)
	}
	return strings.Join(kept, " ")
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
