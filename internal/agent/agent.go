// Package agent runs the listen, respond, speak turn loop with per-cycle failure containment.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/ari/internal/conversation"
	"github.com/rbright/ari/internal/fsm"
	"github.com/rbright/ari/internal/ipc"
	"github.com/rbright/ari/internal/listen"
	"github.com/rbright/ari/internal/respond"
	"github.com/rbright/ari/internal/speech"
)

// DefaultErrorNotice is spoken when a cycle fails before a reply exists.
const DefaultErrorNotice = "Desculpe, não consegui entender. Pode repetir?"

// Source yields one cleaned utterance per call, or listen.ErrNoSpeech.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// Responder produces a reply and records both turns in the conversation.
type Responder interface {
	Generate(ctx context.Context, conv *conversation.Conversation, utterance string) (respond.Reply, error)
}

// Speaker speaks text best-effort and reports whether it was played.
type Speaker interface {
	Speak(ctx context.Context, text string) bool
}

// Indicator gives audible feedback at cycle milestones.
type Indicator interface {
	CueHeard(context.Context)
	CueError(context.Context)
}

// Recorder receives one call per finished cycle.
type Recorder interface {
	ObserveCycle(outcome string, modelLatency time.Duration)
}

type noopIndicator struct{}

func (noopIndicator) CueHeard(context.Context) {}
func (noopIndicator) CueError(context.Context) {}

type noopRecorder struct{}

func (noopRecorder) ObserveCycle(string, time.Duration) {}

// Options configures a Controller.
type Options struct {
	Logger    *slog.Logger
	Indicator Indicator
	Recorder  Recorder
	// Console receives user, assistant, and ERRO lines.
	Console     io.Writer
	ErrorNotice string
	// Gap is the pause between cycles.
	Gap time.Duration
}

// Result is the outcome of one ProcessCycle call.
type Result struct {
	ID        string
	State     fsm.State
	Utterance string
	Reply     respond.Reply
	NoSpeech  bool
	// Interrupted is set when Stop or ctx ended the cycle while listening.
	Interrupted bool
	Spoken      bool
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Outcome labels the result for metrics and logs.
func (r Result) Outcome() string {
	switch {
	case r.Interrupted:
		return "interrupted"
	case r.NoSpeech:
		return "no_speech"
	case r.Err != nil:
		return "failed"
	case r.Reply.Fallback:
		return "fallback"
	default:
		return "ok"
	}
}

// Controller owns the conversation and drives cycles over it.
type Controller struct {
	logger    *slog.Logger
	source    Source
	responder Responder
	speaker   Speaker
	indicator Indicator
	recorder  Recorder
	console   io.Writer
	notice    string
	gap       time.Duration

	conv *conversation.Conversation

	mu    sync.RWMutex
	state fsm.State

	turns  atomic.Int64
	cycles atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewController wires collaborators with safe fallbacks for optional ones.
func NewController(
	conv *conversation.Conversation,
	source Source,
	responder Responder,
	speaker Speaker,
	opts Options,
) *Controller {
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Console == nil {
		opts.Console = io.Discard
	}
	if opts.ErrorNotice == "" {
		opts.ErrorNotice = DefaultErrorNotice
	}

	c := &Controller{
		logger:    opts.Logger,
		source:    source,
		responder: responder,
		speaker:   speaker,
		indicator: opts.Indicator,
		recorder:  opts.Recorder,
		console:   opts.Console,
		notice:    opts.ErrorNotice,
		gap:       opts.Gap,
		conv:      conv,
		state:     fsm.StateIdle,
		stopCh:    make(chan struct{}),
	}
	c.turns.Store(int64(conv.Len() - 1))
	return c
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// ProcessCycle runs one Idle to Idle cycle. It never panics and always ends in Idle.
func (c *Controller) ProcessCycle(ctx context.Context) (result Result) {
	result = Result{ID: uuid.NewString(), StartedAt: time.Now()}

	defer func() {
		if recovered := recover(); recovered != nil {
			result.Err = fmt.Errorf("cycle panic: %v", recovered)
			c.toErrorAndReset()
		}
		c.turns.Store(int64(c.conv.Len() - 1))
		c.cycles.Add(1)
		result.State = c.State()
		result.FinishedAt = time.Now()
	}()

	if err := c.transition(fsm.EventListen); err != nil {
		result.Err = err
		return result
	}

	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()
	go func() {
		select {
		case <-c.stopCh:
			cancelListen()
		case <-listenCtx.Done():
		}
	}()
	utterance, err := c.source.Next(listenCtx)
	interrupted := listenCtx.Err() != nil
	cancelListen()
	if err != nil {
		if errors.Is(err, listen.ErrNoSpeech) || interrupted {
			_ = c.transition(fsm.EventSilence)
			result.NoSpeech = errors.Is(err, listen.ErrNoSpeech)
			result.Interrupted = !result.NoSpeech
			return result
		}
		result.Err = err
		if errors.Is(err, listen.ErrSourceClosed) {
			c.toErrorAndReset()
			return result
		}
		c.fail(ctx, "falha na transcrição", err, c.notice)
		return result
	}
	if err := c.transition(fsm.EventHeard); err != nil {
		result.Err = err
		return result
	}

	utterance = strings.TrimSpace(utterance)
	result.Utterance = utterance
	if utterance == "" {
		result.NoSpeech = true
		_ = c.transition(fsm.EventEmpty)
		return result
	}
	if err := c.transition(fsm.EventAccepted); err != nil {
		result.Err = err
		return result
	}
	c.indicator.CueHeard(ctx)
	fmt.Fprintf(c.console, "Você: %s\n", utterance)

	reply, err := c.responder.Generate(ctx, c.conv, utterance)
	result.Reply = reply
	if err != nil {
		result.Err = err
		notice := reply.Text
		if notice == "" {
			notice = c.notice
		}
		c.fail(ctx, "falha ao gerar resposta", err, notice)
		return result
	}
	if err := c.transition(fsm.EventReplied); err != nil {
		result.Err = err
		return result
	}
	fmt.Fprintf(c.console, "ARI: %s\n", reply.Text)

	result.Spoken = c.speaker.Speak(ctx, reply.Text)
	if !result.Spoken {
		// The reply stays in the conversation and no spoken notice follows.
		result.Err = speech.ErrSynthesis
		c.fail(ctx, "falha na síntese de voz", speech.ErrSynthesis, "")
		return result
	}
	if err := c.transition(fsm.EventSpoken); err != nil {
		result.Err = err
	}
	return result
}

// fail moves through Error back to Idle after printing and speaking a notice.
func (c *Controller) fail(ctx context.Context, what string, err error, notice string) {
	_ = c.transition(fsm.EventFail)
	fmt.Fprintf(c.console, "ERRO: %s: %v\n", what, err)
	c.indicator.CueError(ctx)
	if notice != "" && ctx.Err() == nil {
		c.speaker.Speak(ctx, notice)
	}
	_ = c.transition(fsm.EventReset)
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

// Run executes cycles until ctx ends, Stop is called, or the audio source closes.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if c.stopRequested(ctx) {
			return nil
		}

		result := c.ProcessCycle(ctx)
		c.record(result)

		if errors.Is(result.Err, listen.ErrSourceClosed) {
			return result.Err
		}
		if result.Interrupted {
			return nil
		}
		if result.NoSpeech || c.gap <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.stopCh:
			return nil
		case <-time.After(c.gap):
		}
	}
}

func (c *Controller) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Stop asks Run to return at the next cycle boundary. A cycle still waiting for speech
// is abandoned; one already responding or speaking runs to completion.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Stopped is closed once Stop has been called.
func (c *Controller) Stopped() <-chan struct{} {
	return c.stopCh
}

func (c *Controller) record(result Result) {
	c.recorder.ObserveCycle(result.Outcome(), result.Reply.ModelLatency)
	if c.logger == nil {
		return
	}

	attrs := []any{
		"cycle_id", result.ID,
		"outcome", result.Outcome(),
		"state", string(result.State),
		"utterance_chars", len(result.Utterance),
		"reply_chars", len(result.Reply.Text),
		"fragments", result.Reply.Fragments,
		"model_latency_ms", result.Reply.ModelLatency.Milliseconds(),
		"fallback", result.Reply.Fallback,
		"spoken", result.Spoken,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}
	switch {
	case result.Err != nil:
		c.logger.Error("cycle failed", append(attrs, "error", result.Err.Error())...)
	case result.NoSpeech, result.Interrupted:
		c.logger.Debug("cycle idle", attrs...)
	default:
		c.logger.Info("cycle complete", attrs...)
	}
}

// Handle serves IPC commands for the running loop.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	state := string(c.State())
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{
			OK:      true,
			State:   state,
			Message: "status",
			Turns:   int(c.turns.Load()),
			Cycles:  int(c.cycles.Load()),
		}
	case ipc.CommandStop:
		select {
		case <-c.stopCh:
			return ipc.Response{OK: true, State: state, Message: "stop already requested"}
		default:
		}
		c.Stop()
		return ipc.Response{OK: true, State: state, Message: "stop requested"}
	default:
		return ipc.Failure(state, "unknown command: %s", req.Command)
	}
}
