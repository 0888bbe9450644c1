package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rbright/ari/internal/audio"
	"github.com/sashabaranov/go-openai"
)

// openAIPCMRate is the fixed rate of the pcm response format.
const openAIPCMRate = 24000

// OpenAIConfig configures the OpenAI speech endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Speed   float64
}

// OpenAISynth synthesizes through the OpenAI audio/speech endpoint.
type OpenAISynth struct {
	client *openai.Client
	cfg    OpenAIConfig
}

var _ Synthesizer = (*OpenAISynth)(nil)

// NewOpenAISynth builds a speech client.
func NewOpenAISynth(cfg OpenAIConfig) (*OpenAISynth, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai tts api key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	return &OpenAISynth{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Synthesize implements Synthesizer.
func (o *OpenAISynth) Synthesize(ctx context.Context, text string) (PCM, error) {
	if strings.TrimSpace(text) == "" {
		return PCM{}, nil
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.cfg.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          o.cfg.Speed,
	})
	if err != nil {
		return PCM{}, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: read speech body: %v", ErrSynthesis, err)
	}
	return PCM{Samples: audio.Frame(raw).Samples(), SampleRate: openAIPCMRate}, nil
}
