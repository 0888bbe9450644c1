package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// CaptureOptions controls frame size, delivered rate, and frame queue depth.
type CaptureOptions struct {
	SampleRate    int
	FrameDuration time.Duration
	QueueSize     int
	Logger        *slog.Logger
}

func (o CaptureOptions) withDefaults() CaptureOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = TargetSampleRate
	}
	if o.FrameDuration <= 0 {
		o.FrameDuration = 256 * time.Millisecond
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	return o
}

// Capture streams fixed-size PCM frames from one selected Pulse source.
//
// The Pulse writer callback only slices and enqueues. When the frame queue is full the
// frame is dropped and counted; the callback never waits on consumers.
type Capture struct {
	device Device
	logger *slog.Logger

	client *pulse.Client
	stream *pulse.RecordStream

	raw    chan Frame
	frames chan Frame
	stopCh chan struct{}

	mu      sync.Mutex
	native  framer
	stopped bool

	resampler *Resampler
	output    framer

	inflight sync.WaitGroup
	bytes    atomic.Int64
	dropped  atomic.Int64
}

// connectPulse is swapped in tests to simulate an unreachable server.
var connectPulse = newPulseClient

// StartCapture creates and starts a mono s16 record stream for the selected device.
func StartCapture(ctx context.Context, selection Selection, opts CaptureOptions) (*Capture, error) {
	opts = opts.withDefaults()

	nativeRate := opts.SampleRate
	if selection.Resample {
		nativeRate = selection.Device.SampleRate
	}

	client, err := connectPulse()
	if err != nil {
		return nil, err
	}

	capture, err := newCapture(selection.Device, nativeRate, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	capture.client = client

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selection.Device.ID, err)
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(nativeRate),
		pulse.RecordBufferFragmentSize(uint32(capture.native.size)),
		pulse.RecordMediaName("ari voice input"),
	)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// newCapture builds the framing/queue half of a capture without a Pulse connection.
func newCapture(device Device, nativeRate int, opts CaptureOptions) (*Capture, error) {
	opts = opts.withDefaults()

	c := &Capture{
		device: device,
		logger: opts.Logger,
		raw:    make(chan Frame, opts.QueueSize),
		stopCh: make(chan struct{}),
		native: framer{size: FrameBytes(nativeRate, opts.FrameDuration)},
	}

	if nativeRate == opts.SampleRate {
		c.frames = c.raw
		return c, nil
	}

	resampler, err := NewResampler(nativeRate, opts.SampleRate)
	if err != nil {
		return nil, err
	}
	c.resampler = resampler
	c.output = framer{size: FrameBytes(opts.SampleRate, opts.FrameDuration)}
	c.frames = make(chan Frame, opts.QueueSize)
	go c.convertLoop()
	return c, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Frames returns the PCM stream as fixed-size frames at the delivered rate.
func (c *Capture) Frames() <-chan Frame {
	return c.frames
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// FramesDropped reports frames discarded because the queue was full.
func (c *Capture) FramesDropped() int64 {
	return c.dropped.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Frames exactly once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	tail := c.native.flush()
	c.mu.Unlock()

	if tail != nil {
		c.enqueue(c.raw, tail)
	}

	close(c.raw)
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

// onPCM receives raw Pulse buffers and emits fixed-size frames to the raw queue.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)
	frames := c.native.push(buffer)
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, frame := range frames {
		c.enqueue(c.raw, frame)
	}
	return len(buffer), nil
}

// convertLoop resamples native-rate frames, re-frames them, and closes Frames when done.
func (c *Capture) convertLoop() {
	defer close(c.frames)

	for frame := range c.raw {
		converted, err := c.resampler.Process(frame)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("resample frame failed", "error", err.Error())
			}
			continue
		}
		for _, out := range c.output.push(converted) {
			c.enqueue(c.frames, out)
		}
	}
	if tail := c.output.flush(); tail != nil {
		c.enqueue(c.frames, tail)
	}
}

func (c *Capture) enqueue(ch chan Frame, frame Frame) {
	select {
	case ch <- frame:
	default:
		c.dropped.Add(1)
	}
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
