package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// TargetSampleRate is the mono s16 rate every downstream consumer expects.
const TargetSampleRate = 16000

// Frame is one block of little-endian signed 16-bit mono PCM.
type Frame []byte

// FrameBytes returns the byte length of a frame of duration d at sampleRate.
func FrameBytes(sampleRate int, d time.Duration) int {
	samples := int(math.Round(d.Seconds() * float64(sampleRate)))
	if samples < 1 {
		samples = 1
	}
	return samples * 2
}

// Samples decodes the frame into int16 samples. A trailing odd byte is ignored.
func (f Frame) Samples() []int16 {
	out := make([]int16, len(f)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(f[i*2:]))
	}
	return out
}

// FrameFromSamples encodes int16 samples as a little-endian frame.
func FrameFromSamples(samples []int16) Frame {
	out := make(Frame, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// ApplyGain scales a frame in the normalized [-1, 1) domain and clamps the result.
// The returned frame has the same length; gain 1 returns an identical copy.
func ApplyGain(frame Frame, gain float64) Frame {
	samples := frame.Samples()
	for i, s := range samples {
		v := float64(s) / 32768.0 * gain
		samples[i] = floatToSample(v)
	}
	out := FrameFromSamples(samples)
	if len(frame)%2 == 1 {
		out = append(out, frame[len(frame)-1])
	}
	return out
}

func floatToSample(v float64) int16 {
	scaled := math.Round(v * 32768.0)
	switch {
	case scaled > math.MaxInt16:
		return math.MaxInt16
	case scaled < math.MinInt16:
		return math.MinInt16
	default:
		return int16(scaled)
	}
}

// framer accumulates arbitrary PCM writes and cuts them into fixed-size frames.
type framer struct {
	size    int
	pending []byte
}

func (f *framer) push(buffer []byte) []Frame {
	f.pending = append(f.pending, buffer...)
	frames := make([]Frame, 0, len(f.pending)/f.size)
	for len(f.pending) >= f.size {
		frame := make(Frame, f.size)
		copy(frame, f.pending[:f.size])
		f.pending = f.pending[f.size:]
		frames = append(frames, frame)
	}
	return frames
}

// flush returns the residual partial frame, if any.
func (f *framer) flush() Frame {
	if len(f.pending) == 0 {
		return nil
	}
	frame := make(Frame, len(f.pending))
	copy(frame, f.pending)
	f.pending = nil
	return frame
}
