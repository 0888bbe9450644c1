package config

import (
	"fmt"
	"strings"
	"unicode"
)

// parseArgv splits a command line with POSIX shell quoting: single quotes are literal,
// double quotes honor \" and \\, and a backslash outside quotes escapes the next rune.
// Quoted empty strings survive as empty arguments. No expansion is performed.
func parseArgv(input string) ([]string, error) {
	var (
		argv    []string
		word    strings.Builder
		inWord  bool
		pending rune // open quote, or 0
		escaped bool
	)

	for _, r := range input {
		switch {
		case escaped:
			if pending == '"' && r != '"' && r != '\\' {
				word.WriteRune('\\')
			}
			word.WriteRune(r)
			escaped = false
		case pending == '\'':
			if r == '\'' {
				pending = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\\':
			escaped, inWord = true, true
		case pending == '"':
			if r == '"' {
				pending = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\'' || r == '"':
			pending, inWord = r, true
		case unicode.IsSpace(r):
			if inWord {
				argv = append(argv, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	switch {
	case escaped:
		return nil, fmt.Errorf("trailing backslash in command %q", input)
	case pending != 0:
		return nil, fmt.Errorf("unterminated %c quote in command %q", pending, input)
	}
	if inWord {
		argv = append(argv, word.String())
	}
	return argv, nil
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
