package listen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rbright/ari/internal/asr"
	"github.com/rbright/ari/internal/queue"
)

// Queued runs recognition on a background task that pushes utterances into a bounded queue.
type Queued struct {
	source  FrameSource
	rec     recognizer
	queue   *queue.Bounded[string]
	timeout time.Duration

	startOnce sync.Once
	done      chan struct{}
}

// NewQueued builds the producer/consumer listening model.
func NewQueued(source FrameSource, rec asr.Recognizer, capacity int, pullTimeout time.Duration, opts Options) *Queued {
	if pullTimeout <= 0 {
		pullTimeout = 5 * time.Second
	}
	return &Queued{
		source:  source,
		rec:     recognizer{rec: rec, opts: opts.withDefaults()},
		queue:   queue.NewBounded[string](capacity),
		timeout: pullTimeout,
		done:    make(chan struct{}),
	}
}

// Start launches the recognition task. It runs until ctx ends or the source closes.
func (q *Queued) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		go q.run(ctx)
	})
}

// Done is closed when the recognition task exits.
func (q *Queued) Done() <-chan struct{} {
	return q.done
}

func (q *Queued) run(ctx context.Context) {
	defer close(q.done)
	defer q.queue.Close()

	frames := q.source.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			text, done, err := q.rec.feed(ctx, frame)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				q.recognitionFailed(err)
				continue
			}
			if !done || text == "" {
				continue
			}
			if !q.queue.TryPush(text) {
				q.dropped(text)
			}
		}
	}
}

// Pull waits up to the pull timeout for the next utterance.
func (q *Queued) Pull(ctx context.Context) (string, error) {
	text, ok := q.queue.Pull(ctx, q.timeout)
	if ok {
		return text, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case <-q.done:
		if q.queue.Len() == 0 {
			return "", ErrSourceClosed
		}
	default:
	}
	return "", ErrNoSpeech
}

// Next implements the turn loop's utterance source.
func (q *Queued) Next(ctx context.Context) (string, error) {
	return q.Pull(ctx)
}

// Pending reports queued utterances.
func (q *Queued) Pending() int {
	return q.queue.Len()
}

func (q *Queued) recognitionFailed(err error) {
	if q.rec.opts.Observer != nil {
		q.rec.opts.Observer.RecognitionFailed()
	}
	if q.rec.opts.Logger != nil {
		q.rec.opts.Logger.Warn("recognition failed", "error", err.Error())
	}
}

func (q *Queued) dropped(text string) {
	if q.rec.opts.Observer != nil {
		q.rec.opts.Observer.UtteranceDropped()
	}
	if q.rec.opts.Logger != nil {
		q.rec.opts.Logger.Warn("utterance queue full, dropping utterance", "chars", len(text))
	}
}
