package listen

import (
	"context"

	"github.com/rbright/ari/internal/asr"
)

// Blocking runs recognition on the caller's goroutine, one utterance per call.
type Blocking struct {
	source FrameSource
	rec    recognizer
}

// NewBlocking builds the synchronous listening model.
func NewBlocking(source FrameSource, rec asr.Recognizer, opts Options) *Blocking {
	return &Blocking{source: source, rec: recognizer{rec: rec, opts: opts.withDefaults()}}
}

// NextUtterance blocks until the engine finalizes an utterance and returns its cleaned
// text, which may be empty.
//
// Frames buffered while the caller was busy (responding or speaking) are discarded first.
func (b *Blocking) NextUtterance(ctx context.Context) (string, error) {
	frames := b.source.Frames()
	discardBuffered(frames)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return "", ErrSourceClosed
			}
			text, done, err := b.rec.feed(ctx, frame)
			if err != nil {
				if b.rec.opts.Observer != nil {
					b.rec.opts.Observer.RecognitionFailed()
				}
				return "", err
			}
			if done {
				return text, nil
			}
		}
	}
}

// Next returns ErrNoSpeech for an empty utterance.
func (b *Blocking) Next(ctx context.Context) (string, error) {
	text, err := b.NextUtterance(ctx)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

func discardBuffered[T any](ch <-chan T) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
