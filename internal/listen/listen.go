// Package listen turns a capture frame stream into filtered user utterances.
package listen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/ari/internal/asr"
	"github.com/rbright/ari/internal/audio"
	"github.com/rbright/ari/internal/transcript"
)

var (
	// ErrNoSpeech reports that no utterance arrived this cycle. It is not a failure.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrSourceClosed reports that the frame stream ended.
	ErrSourceClosed = errors.New("audio source closed")
)

// FrameSource delivers fixed-size PCM frames.
type FrameSource interface {
	Frames() <-chan audio.Frame
}

// Observer receives recognition outcomes.
type Observer interface {
	UtteranceDropped()
	RecognitionFailed()
}

// Options are shared by both listening models.
type Options struct {
	Gain    float64
	Fillers []string
	// DumpDir, when set, receives one WAV file per finalized utterance.
	DumpDir    string
	SampleRate int
	Logger     *slog.Logger
	Observer   Observer
}

func (o Options) withDefaults() Options {
	if o.Gain <= 0 {
		o.Gain = 1
	}
	if o.SampleRate <= 0 {
		o.SampleRate = audio.TargetSampleRate
	}
	return o
}

// recognizer feeds frames until the engine reports an utterance boundary.
type recognizer struct {
	rec  asr.Recognizer
	opts Options
	pcm  []byte
}

// feed processes one frame and returns the cleaned utterance when a boundary was reached.
func (r *recognizer) feed(ctx context.Context, frame audio.Frame) (string, bool, error) {
	if r.opts.Gain != 1 {
		frame = audio.ApplyGain(frame, r.opts.Gain)
	}
	if r.opts.DumpDir != "" {
		r.pcm = append(r.pcm, frame...)
	}

	accepted, err := r.rec.Feed(ctx, frame)
	if err != nil {
		r.pcm = r.pcm[:0]
		return "", false, err
	}
	if !accepted {
		return "", false, nil
	}

	raw := r.rec.FinalResult()
	text := transcript.Clean(raw, r.opts.Fillers)
	r.dump(raw)
	if r.opts.Logger != nil {
		r.opts.Logger.Debug("utterance finalized", "raw_chars", len(raw), "chars", len(text))
	}
	return text, true, nil
}

func (r *recognizer) dump(raw string) {
	if r.opts.DumpDir == "" || len(r.pcm) == 0 {
		return
	}
	defer func() { r.pcm = r.pcm[:0] }()

	if err := writeDump(r.opts.DumpDir, r.pcm, r.opts.SampleRate); err != nil && r.opts.Logger != nil {
		r.opts.Logger.Warn("unable to write utterance dump", "error", err.Error(), "text", raw)
	}
}

func writeDump(dir string, pcm []byte, sampleRate int) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	name := fmt.Sprintf("utterance-%s.wav", time.Now().Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open dump file %q: %w", path, err)
	}
	defer file.Close()
	return audio.WritePCM16WAV(file, pcm, sampleRate, 1)
}

// DescribeDevice formats device metadata for logs and status output.
func DescribeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}
