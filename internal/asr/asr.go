// Package asr adapts streaming speech recognition engines to a frame-by-frame contract.
package asr

import (
	"context"
	"errors"
)

// ErrTranscription marks engine-level I/O or recognition failures.
var ErrTranscription = errors.New("transcription failed")

// Recognizer consumes PCM frames and reports utterance boundaries.
//
// Feed returns true when the frame completed an utterance; FinalResult then returns the
// recognized text for that utterance (possibly empty).
type Recognizer interface {
	Feed(ctx context.Context, frame []byte) (bool, error)
	FinalResult() string
	Close() error
}
