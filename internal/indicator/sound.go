package indicator

import (
	"math"
	"time"

	"github.com/rbright/ari/internal/speech"
)

type cueKind int

const (
	cueHeard cueKind = iota + 1
	cueError
)

const (
	cueSampleRate = 16000
	// edge is the raised-cosine fade applied to both ends of every sweep.
	edge = 6 * time.Millisecond
)

// sweep glides linearly from one frequency to another. A zero volume is a rest.
type sweep struct {
	fromHz   float64
	toHz     float64
	duration time.Duration
	volume   float64
}

var (
	// heard: one short rising glide, "got it".
	heardCuePCM = render(
		sweep{fromHz: 700, toHz: 1050, duration: 110 * time.Millisecond, volume: 0.16},
	)
	// error: two falling notes with a rest between them.
	errorCuePCM = render(
		sweep{fromHz: 520, toHz: 470, duration: 90 * time.Millisecond, volume: 0.18},
		sweep{duration: 30 * time.Millisecond},
		sweep{fromHz: 400, toHz: 330, duration: 130 * time.Millisecond, volume: 0.18},
	)
)

func cuePCM(kind cueKind) speech.PCM {
	var samples []int16
	switch kind {
	case cueHeard:
		samples = heardCuePCM
	case cueError:
		samples = errorCuePCM
	}
	return speech.PCM{Samples: samples, SampleRate: cueSampleRate}
}

func render(parts ...sweep) []int16 {
	var pcm []int16
	for _, part := range parts {
		pcm = append(pcm, part.samples()...)
	}
	return pcm
}

func (s sweep) samples() []int16 {
	n := sampleCount(s.duration)
	if n == 0 {
		return nil
	}
	pcm := make([]int16, n)
	if s.volume <= 0 || s.fromHz <= 0 || s.toHz <= 0 {
		return pcm
	}

	ramp := min(sampleCount(edge), n/2)
	phase := 0.0
	for i := range pcm {
		progress := float64(i) / float64(n)
		freq := s.fromHz + (s.toHz-s.fromHz)*progress
		phase += 2 * math.Pi * freq / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * s.volume * fade(i, n, ramp) * math.MaxInt16))
	}
	return pcm
}

// fade is a raised-cosine gain that is 0 at both ends and 1 after ramp samples.
func fade(i, n, ramp int) float64 {
	if ramp <= 0 {
		return 1
	}
	distance := min(i, n-1-i)
	if distance >= ramp {
		return 1
	}
	return 0.5 - 0.5*math.Cos(math.Pi*float64(distance)/float64(ramp))
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
