// Package speech turns reply text into audible output.
package speech

import (
	"strings"
	"unicode"
)

// AddPauses expands punctuation into pause markers the synthesizer renders as silence.
//
// Period becomes a long pause, comma a short one, and ? ! : ; a medium one. Periods and
// commas between digits are left alone so numbers read correctly.
func AddPauses(text string) string {
	runes := []rune(text)
	var sb strings.Builder
	sb.Grow(len(text) + len(text)/4)

	for i, r := range runes {
		switch r {
		case '.', ',':
			if betweenDigits(runes, i) {
				sb.WriteRune(r)
				continue
			}
			if r == '.' {
				sb.WriteString(". ... ")
			} else {
				sb.WriteString(", ")
			}
		case '?', '!', ':', ';':
			sb.WriteRune(r)
			sb.WriteString(". ")
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Sanitize keeps letters, digits, whitespace and .,!?;: and drops everything else.
func Sanitize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return r
		case strings.ContainsRune(".,!?;:", r):
			return r
		default:
			return -1
		}
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Prepare applies the pause pass (when enabled) and then sanitizes.
func Prepare(text string, prosody bool) string {
	if prosody {
		text = AddPauses(text)
	}
	return Sanitize(text)
}

func betweenDigits(runes []rune, i int) bool {
	return i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}
