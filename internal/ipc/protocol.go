// Package ipc carries newline-delimited JSON commands between the CLI and a running ari loop.
//
// Each connection carries exactly one request and one response.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	CommandStatus = "status"
	CommandStop   = "stop"
)

// maxMessageBytes bounds a single request or response line.
const maxMessageBytes = 64 << 10

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// Turns counts conversation turns, excluding the system instruction.
	Turns  int `json:"turns,omitempty"`
	Cycles int `json:"cycles,omitempty"`
}

// Failure builds a refused response.
func Failure(state string, format string, args ...any) Response {
	return Response{OK: false, State: state, Error: fmt.Sprintf(format, args...)}
}

func writeMessage(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func readMessage(r io.Reader, v any) error {
	return json.NewDecoder(io.LimitReader(r, maxMessageBytes)).Decode(v)
}

func readRequest(r io.Reader) (Request, error) {
	var req Request
	if err := readMessage(r, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		return Request{}, errors.New("decode request: command is empty")
	}
	return req, nil
}

// isDecodeError separates malformed payloads from transport failures.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
