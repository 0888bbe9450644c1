package speech

import (
	"context"
	"errors"
	"time"
)

// ErrSynthesis marks text-to-speech engine failures.
var ErrSynthesis = errors.New("speech synthesis failed")

// PCM is mono signed 16-bit audio at SampleRate.
type PCM struct {
	Samples    []int16
	SampleRate int
}

// Duration reports the playback length.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// Synthesizer renders text to PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (PCM, error)
}

// Player plays PCM to completion or until ctx ends.
type Player interface {
	Play(ctx context.Context, pcm PCM) error
}
