package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeVoskServer answers partial results until a frame starting with 0xff arrives, which
// completes the utterance with the configured text.
type fakeVoskServer struct {
	finalText string

	mu         sync.Mutex
	sampleRate int
	frames     int
	gotEOF     bool
}

func (f *fakeVoskServer) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if kind == websocket.TextMessage {
				var msg map[string]json.RawMessage
				if err := json.Unmarshal(payload, &msg); err != nil {
					return
				}
				if raw, ok := msg["config"]; ok {
					var cfg struct {
						SampleRate int `json:"sample_rate"`
					}
					_ = json.Unmarshal(raw, &cfg)
					f.mu.Lock()
					f.sampleRate = cfg.SampleRate
					f.mu.Unlock()
					continue
				}
				if _, ok := msg["eof"]; ok {
					f.mu.Lock()
					f.gotEOF = true
					f.mu.Unlock()
					_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"text": ""}`))
					continue
				}
				continue
			}

			f.mu.Lock()
			f.frames++
			f.mu.Unlock()

			if len(payload) > 0 && payload[0] == 0xff {
				_ = conn.WriteJSON(map[string]any{"text": f.finalText, "result": []any{}})
				continue
			}
			_ = conn.WriteJSON(map[string]any{"partial": "ola"})
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestVoskFeedReportsUtteranceBoundary(t *testing.T) {
	fake := &fakeVoskServer{finalText: "  olá mundo "}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	var debug bytes.Buffer
	recognizer, err := NewVosk(VoskConfig{URL: wsURL(server), SampleRate: 16000, DebugResponseJSON: &debug})
	require.NoError(t, err)

	ctx := context.Background()
	accepted, err := recognizer.Feed(ctx, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.False(t, accepted)
	require.Empty(t, recognizer.FinalResult())

	accepted, err = recognizer.Feed(ctx, []byte{0xff, 0, 0, 0})
	require.NoError(t, err)
	require.True(t, accepted)
	require.Equal(t, "olá mundo", recognizer.FinalResult())

	require.NoError(t, recognizer.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, 16000, fake.sampleRate)
	require.Equal(t, 2, fake.frames)
	require.True(t, fake.gotEOF)
	require.Contains(t, debug.String(), `"partial"`)
}

func TestVoskFeedSkipsEmptyFrames(t *testing.T) {
	recognizer, err := NewVosk(VoskConfig{URL: "ws://127.0.0.1:1"})
	require.NoError(t, err)

	accepted, err := recognizer.Feed(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, accepted)
}

func TestVoskDialFailureIsTranscriptionError(t *testing.T) {
	recognizer, err := NewVosk(VoskConfig{URL: "ws://127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.NoError(t, err)

	_, err = recognizer.Feed(context.Background(), []byte{1, 2})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTranscription)
}

func TestVoskRedialsAfterServerDrop(t *testing.T) {
	var connections int
	var mu sync.Mutex
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mu.Lock()
		connections++
		first := connections == 1
		mu.Unlock()

		if _, _, err := conn.ReadMessage(); err != nil { // config
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if first {
			return
		}
		_ = conn.WriteJSON(map[string]any{"text": "de novo"})
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	recognizer, err := NewVosk(VoskConfig{URL: wsURL(server)})
	require.NoError(t, err)
	defer recognizer.Close()

	_, err = recognizer.Feed(context.Background(), []byte{1, 2})
	require.ErrorIs(t, err, ErrTranscription)

	accepted, err := recognizer.Feed(context.Background(), []byte{1, 2})
	require.NoError(t, err)
	require.True(t, accepted)
	require.Equal(t, "de novo", recognizer.FinalResult())
}

func TestVoskFeedHonorsCancelledContext(t *testing.T) {
	recognizer, err := NewVosk(VoskConfig{URL: "ws://127.0.0.1:1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = recognizer.Feed(ctx, []byte{1, 2})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewVoskRequiresURL(t *testing.T) {
	_, err := NewVosk(VoskConfig{URL: "  "})
	require.Error(t, err)
}
