package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// VoskConfig controls the vosk-server websocket session.
type VoskConfig struct {
	URL               string
	SampleRate        int
	DialTimeout       time.Duration
	DebugResponseJSON io.Writer
	Logger            *slog.Logger
}

// Vosk is a Recognizer backed by a vosk-server websocket.
//
// The connection is dialed lazily on the first Feed and re-dialed after an I/O failure.
type Vosk struct {
	cfg VoskConfig

	mu      sync.Mutex
	conn    *websocket.Conn
	final   string
	partial string
}

type voskResult struct {
	Partial *string `json:"partial"`
	Text    *string `json:"text"`
}

// NewVosk validates config and returns an undialed recognizer.
func NewVosk(cfg VoskConfig) (*Vosk, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, errors.New("vosk url is empty")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	return &Vosk{cfg: cfg}, nil
}

// Dial opens the websocket and sends the recognizer config if not already connected.
func (v *Vosk) Dial(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dialLocked(ctx)
}

func (v *Vosk) dialLocked(ctx context.Context) error {
	if v.conn != nil {
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, v.cfg.DialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: v.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(dctx, v.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: dial vosk %q: %v", ErrTranscription, v.cfg.URL, err)
	}

	config := map[string]any{"config": map[string]any{"sample_rate": v.cfg.SampleRate}}
	if err := conn.WriteJSON(config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: send vosk config: %v", ErrTranscription, err)
	}

	v.conn = conn
	return nil
}

// Feed sends one frame and reads the engine's reply for it.
func (v *Vosk) Feed(ctx context.Context, frame []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(frame) == 0 {
		return false, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.dialLocked(ctx); err != nil {
		return false, err
	}

	conn := v.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		v.dropLocked()
		return false, fmt.Errorf("%w: send frame: %v", ErrTranscription, err)
	}

	result, err := v.readResultLocked()
	if err != nil {
		v.dropLocked()
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}

	if result.Text != nil {
		v.final = strings.TrimSpace(*result.Text)
		v.partial = ""
		return true, nil
	}
	if result.Partial != nil {
		v.partial = *result.Partial
		if v.cfg.Logger != nil && v.partial != "" {
			v.cfg.Logger.Debug("asr partial", "text", v.partial)
		}
	}
	return false, nil
}

// FinalResult returns the text of the last completed utterance.
func (v *Vosk) FinalResult() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.final
}

// Close sends end-of-stream and closes the websocket.
func (v *Vosk) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.conn == nil {
		return nil
	}
	_ = v.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`))
	_ = v.conn.SetReadDeadline(time.Now().Add(time.Second))
	if result, err := v.readResultLocked(); err == nil && result.Text != nil {
		v.final = strings.TrimSpace(*result.Text)
	}
	_ = v.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	err := v.conn.Close()
	v.conn = nil
	return err
}

func (v *Vosk) readResultLocked() (voskResult, error) {
	_, payload, err := v.conn.ReadMessage()
	if err != nil {
		return voskResult{}, fmt.Errorf("%w: read result: %v", ErrTranscription, err)
	}
	if sink := v.cfg.DebugResponseJSON; sink != nil {
		_, _ = sink.Write(append(append([]byte(nil), payload...), '\n'))
	}

	var result voskResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return voskResult{}, fmt.Errorf("%w: decode result: %v", ErrTranscription, err)
	}
	return result, nil
}

func (v *Vosk) dropLocked() {
	if v.conn != nil {
		_ = v.conn.Close()
		v.conn = nil
	}
}
