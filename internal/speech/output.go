package speech

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives synthesis outcomes.
type Observer interface {
	SynthesisDone(latency time.Duration)
	SynthesisFailed()
}

// OutputOptions configures Output.
type OutputOptions struct {
	Prosody  bool
	Logger   *slog.Logger
	Observer Observer
}

// Output is the best-effort speak stage of the turn loop.
type Output struct {
	synth  Synthesizer
	player Player
	opts   OutputOptions
}

// NewOutput binds a synthesizer to a player.
func NewOutput(synth Synthesizer, player Player, opts OutputOptions) *Output {
	return &Output{synth: synth, player: player, opts: opts}
}

// Speak synthesizes and plays text. Failures are logged and reported as false; they never
// reach the caller as errors.
func (o *Output) Speak(ctx context.Context, text string) bool {
	prepared := Prepare(text, o.opts.Prosody)
	if prepared == "" {
		return true
	}

	started := time.Now()
	pcm, err := o.synth.Synthesize(ctx, prepared)
	if err != nil {
		o.fail("synthesize reply failed", err)
		return false
	}
	if o.opts.Observer != nil {
		o.opts.Observer.SynthesisDone(time.Since(started))
	}

	if err := o.player.Play(ctx, pcm); err != nil {
		o.fail("play reply failed", err)
		return false
	}
	return true
}

func (o *Output) fail(msg string, err error) {
	if o.opts.Observer != nil {
		o.opts.Observer.SynthesisFailed()
	}
	if o.opts.Logger != nil {
		o.opts.Logger.Warn(msg, "error", err.Error())
	}
}
