package respond

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/ari/internal/conversation"
	"github.com/rbright/ari/internal/llm"
)

const (
	// DefaultEmptyFallback replaces a reply that normalizes to nothing.
	DefaultEmptyFallback = "Olá! Posso ajudar?"
	// DefaultErrorFallback is returned when the model call fails.
	DefaultErrorFallback = "Houve um problema ao processar sua solicitação"
)

// Options controls normalization and fallback text.
type Options struct {
	StripChars    string
	EmptyFallback string
	ErrorFallback string
	// Echo receives each fragment as it arrives.
	Echo   io.Writer
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.StripChars == "" {
		o.StripChars = DefaultStripChars
	}
	if o.EmptyFallback == "" {
		o.EmptyFallback = DefaultEmptyFallback
	}
	if o.ErrorFallback == "" {
		o.ErrorFallback = DefaultErrorFallback
	}
	return o
}

// Reply is the outcome of one Generate call.
type Reply struct {
	Text         string
	Raw          string
	Fallback     bool
	Fragments    int
	ModelLatency time.Duration
}

// Assembler drives one model call per user utterance.
type Assembler struct {
	model llm.Model
	opts  Options
}

// NewAssembler binds a model to assembly options.
func NewAssembler(model llm.Model, opts Options) *Assembler {
	return &Assembler{model: model, opts: opts.withDefaults()}
}

// Generate appends utterance as a user turn, streams the reply, and appends the normalized
// text as an assistant turn.
//
// When the model fails no assistant turn is appended; the reply carries the error fallback
// text, Raw holds any partial output, and the error is returned for logging.
func (a *Assembler) Generate(ctx context.Context, conv *conversation.Conversation, utterance string) (Reply, error) {
	if err := conv.AppendUser(utterance); err != nil {
		return Reply{}, err
	}

	started := time.Now()
	seq, err := a.model.Stream(ctx, conv.Snapshot())
	if err == nil && seq == nil {
		err = &llm.Error{Provider: "unknown", Kind: llm.KindUnavailable, Err: errors.New("nil stream")}
	}
	if err != nil {
		return a.failed("", 0, time.Since(started), err), err
	}

	var (
		raw       strings.Builder
		fragments int
	)
	for fragment, ferr := range seq {
		if ferr != nil {
			err = ferr
			break
		}
		fragments++
		raw.WriteString(fragment)
		if a.opts.Echo != nil {
			_, _ = io.WriteString(a.opts.Echo, fragment)
		}
	}
	latency := time.Since(started)
	if a.opts.Echo != nil && fragments > 0 {
		_, _ = io.WriteString(a.opts.Echo, "\n")
	}
	if err != nil {
		if !errors.Is(err, llm.ErrModelError) && !errors.Is(err, llm.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", llm.ErrModelError, err)
		}
		return a.failed(raw.String(), fragments, latency, err), err
	}

	reply := Reply{
		Raw:          raw.String(),
		Text:         Normalize(raw.String(), a.opts.StripChars),
		Fragments:    fragments,
		ModelLatency: latency,
	}
	if reply.Text == "" {
		reply.Text = a.opts.EmptyFallback
		reply.Fallback = true
	}

	if err := conv.AppendAssistant(reply.Text); err != nil {
		return reply, err
	}
	return reply, nil
}

func (a *Assembler) failed(raw string, fragments int, latency time.Duration, err error) Reply {
	if a.opts.Logger != nil {
		a.opts.Logger.Warn("model call failed", "error", err.Error(), "partial_chars", len(raw))
	}
	return Reply{
		Text:         a.opts.ErrorFallback,
		Raw:          raw,
		Fallback:     true,
		Fragments:    fragments,
		ModelLatency: latency,
	}
}
