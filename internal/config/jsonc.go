package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// decodeJSONC strictly decodes one JSONC document into v. Unknown keys are rejected and
// decode errors carry the line and column of the offending byte.
func decodeJSONC(content string, v any) error {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return wrapJSONDecodeError(normalized, err)
	}
	return nil
}

// normalizeJSONC blanks comments and trailing commas in place so byte offsets of the
// result still map to the original text.
func normalizeJSONC(content string) (string, error) {
	out := make([]byte, 0, len(content))
	comma := -1
	inString, escape := false, false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out = append(out, ch)
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		if ch == '/' && i+1 < len(content) {
			switch content[i+1] {
			case '/':
				end := strings.IndexAny(content[i:], "\r\n")
				if end < 0 {
					end = len(content) - i
				}
				out = appendBlank(out, content[i:i+end])
				i += end - 1
				continue
			case '*':
				end := strings.Index(content[i+2:], "*/")
				if end < 0 {
					return "", fmt.Errorf("unterminated block comment in JSONC")
				}
				span := content[i : i+2+end+2]
				out = appendBlank(out, span)
				i += len(span) - 1
				continue
			}
		}

		if isJSONWhitespace(ch) {
			out = append(out, ch)
			continue
		}

		if comma >= 0 && (ch == '}' || ch == ']') {
			out[comma] = ' '
		}
		comma = -1

		switch ch {
		case ',':
			comma = len(out)
		case '"':
			inString = true
		}
		out = append(out, ch)
	}

	return string(out), nil
}

func appendBlank(out []byte, span string) []byte {
	for i := 0; i < len(span); i++ {
		switch span[i] {
		case '\n', '\r', '\t':
			out = append(out, span[i])
		default:
			out = append(out, ' ')
		}
	}
	return out
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
