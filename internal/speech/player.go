package speech

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
)

// PulsePlayer plays PCM through a Pulse/PipeWire playback stream.
type PulsePlayer struct {
	MediaName string
}

var _ Player = (*PulsePlayer)(nil)

// Play blocks until the buffer drains. Cancelling ctx ends the stream at the next read.
func (p *PulsePlayer) Play(ctx context.Context, pcm PCM) error {
	if len(pcm.Samples) == 0 || pcm.SampleRate <= 0 {
		return nil
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("ari"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		pcmReader(ctx, pcm.Samples),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(pcm.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(p.mediaName()),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play speech stream: %w", err)
	}
	return ctx.Err()
}

func (p *PulsePlayer) mediaName() string {
	if p.MediaName != "" {
		return p.MediaName
	}
	return "ari speech"
}

// pcmReader feeds samples to Pulse and reports end of data when exhausted or cancelled.
func pcmReader(ctx context.Context, samples []int16) pulse.Reader {
	cursor := 0
	return pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})
}
