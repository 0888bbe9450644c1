// Package indicator plays short synthesized tones at turn loop milestones.
package indicator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/ari/internal/speech"
)

// Cues plays the heard and error tones through a speech player.
type Cues struct {
	player  speech.Player
	enabled bool
	logger  *slog.Logger

	soundMu  sync.Mutex
	inflight sync.WaitGroup
}

// New builds a cue player. A nil player or enabled=false makes every cue a no-op.
func New(player speech.Player, enabled bool, logger *slog.Logger) *Cues {
	return &Cues{player: player, enabled: enabled && player != nil, logger: logger}
}

// CueHeard signals that an utterance was accepted.
func (c *Cues) CueHeard(ctx context.Context) {
	c.playCue(ctx, cueHeard)
}

// CueError signals a failed cycle.
func (c *Cues) CueError(ctx context.Context) {
	c.playCue(ctx, cueError)
}

// Wait blocks until queued cues have finished playing.
func (c *Cues) Wait() {
	c.inflight.Wait()
}

// playCue serializes cue playback and emits audio asynchronously.
func (c *Cues) playCue(ctx context.Context, kind cueKind) {
	if !c.enabled {
		return
	}
	pcm := cuePCM(kind)
	if len(pcm.Samples) == 0 {
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.soundMu.Lock()
		defer c.soundMu.Unlock()

		playCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := c.player.Play(playCtx, pcm); err != nil {
			c.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (c *Cues) log(message string, err error) {
	if c.logger == nil || err == nil {
		return
	}
	c.logger.Debug(message, "error", err.Error())
}
