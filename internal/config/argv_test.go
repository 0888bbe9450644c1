package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "  ", want: nil},
		{name: "words", input: "espeak-ng  -v\tpt-br", want: []string{"espeak-ng", "-v", "pt-br"}},
		{name: "double quoted path", input: `piper --model "/opt/voices/pt br.onnx"`, want: []string{"piper", "--model", "/opt/voices/pt br.onnx"}},
		{name: "single quotes are literal", input: `espeak-ng --punct='\"'`, want: []string{"espeak-ng", `--punct=\"`}},
		{name: "escapes inside double quotes", input: `say "a \"b\" \\ \n"`, want: []string{"say", `a "b" \ \n`}},
		{name: "escaped space", input: `espeak-ng voz\ alta`, want: []string{"espeak-ng", "voz alta"}},
		{name: "empty quoted argument", input: `cmd "" ''`, want: []string{"cmd", "", ""}},
		{name: "adjacent quotes join", input: `cmd a"b c"'d'`, want: []string{"cmd", "ab cd"}},
		{name: "utf8", input: `espeak-ng "olá mundo"`, want: []string{"espeak-ng", "olá mundo"}},
		{name: "unterminated double", input: `espeak-ng "oops`, wantErr: `unterminated " quote`},
		{name: "unterminated single", input: `espeak-ng 'oops`, wantErr: `unterminated ' quote`},
		{name: "trailing backslash", input: `espeak-ng fim\`, wantErr: "trailing backslash"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMustParseArgvPanicsOnInvalidInput(t *testing.T) {
	require.Panics(t, func() {
		_ = mustParseArgv(`espeak-ng "unterminated`)
	})
}
