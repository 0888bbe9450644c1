//go:build integration

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Requires a running Pulse or PipeWire-pulse server with at least one microphone.
func TestCaptureFromDefaultSourceIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	selection, err := SelectDevice(ctx, "auto", TargetSampleRate)
	require.NoError(t, err)

	capture, err := StartCapture(ctx, selection, CaptureOptions{FrameDuration: 64 * time.Millisecond})
	require.NoError(t, err)

	select {
	case frame := <-capture.Frames():
		require.Len(t, frame, 2*TargetSampleRate*64/1000)
	case <-ctx.Done():
		t.Fatal("no frame captured")
	}
	require.NoError(t, capture.Stop())

	for range capture.Frames() {
	}
}
