package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono s16 frames between two sample rates.
type Resampler struct {
	from  int
	to    int
	inner resampling.Resampler
}

// NewResampler builds a mono resampler from one rate to another.
func NewResampler(from int, to int) (*Resampler, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", from, to)
	}
	inner, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	return &Resampler{from: from, to: to, inner: inner}, nil
}

// Process resamples one frame. Output length follows the rate ratio and the filter delay,
// so callers re-frame the result when fixed sizes matter.
func (r *Resampler) Process(frame Frame) (Frame, error) {
	samples := frame.Samples()
	if len(samples) == 0 {
		return nil, nil
	}
	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s) / 32768.0
	}

	output, err := r.inner.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample %d->%d: %w", r.from, r.to, err)
	}

	out := make([]int16, len(output))
	for i, v := range output {
		out[i] = floatToSample(v)
	}
	return FrameFromSamples(out), nil
}
