// Package config resolves, parses, validates, and defaults ari configuration.
package config

import (
	"os"
	"strings"
	"time"
)

const (
	ModeQueued   = "queued"
	ModeBlocking = "blocking"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	TTSCommand = "command"
	TTSOpenAI  = "openai"
	TTSNone    = "none"
)

// DefaultSystemPrompt is the instruction turn that opens every conversation.
const DefaultSystemPrompt = "Você é ARI, uma assistente virtual brasileira. " +
	"Responda de forma clara e concisa em português do Brasil, com no máximo 300 caracteres, " +
	"em linguagem natural, sem termos técnicos, sem emojis e sem caracteres especiais."

// Config is the fully materialized runtime configuration used by ari.
type Config struct {
	EnvFile   string
	Audio     AudioConfig
	ASR       ASRConfig
	LLM       LLMConfig
	Reply     ReplyConfig
	TTS       TTSConfig
	Indicator IndicatorConfig
	Metrics   MetricsConfig
	Debug     DebugConfig
}

// AudioConfig controls input-source selection, framing, and the listening model.
type AudioConfig struct {
	Input         string
	SampleRate    int
	FrameMS       int
	Gain          float64
	Mode          string
	QueueSize     int
	PullTimeoutMS int
	FrameQueue    int
	CycleGapMS    int
}

func (a AudioConfig) FrameDuration() time.Duration {
	return time.Duration(a.FrameMS) * time.Millisecond
}

func (a AudioConfig) PullTimeout() time.Duration {
	return time.Duration(a.PullTimeoutMS) * time.Millisecond
}

// CycleGap is the pause between two conversation cycles.
func (a AudioConfig) CycleGap() time.Duration {
	return time.Duration(a.CycleGapMS) * time.Millisecond
}

// ASRConfig points at the Vosk server and lists words stripped from utterances.
type ASRConfig struct {
	VoskURL       string
	FillerWords   []string
	DialTimeoutMS int
}

func (a ASRConfig) DialTimeout() time.Duration {
	return time.Duration(a.DialTimeoutMS) * time.Millisecond
}

// LLMConfig selects the chat backend and its sampling parameters.
type LLMConfig struct {
	Provider      string
	BaseURL       string
	Model         string
	APIKeyEnv     string
	Temperature   float64
	MaxTokens     int
	SystemPrompt  string
	KnowledgeFile string
	MaxTurns      int
	// Knowledge is the contents of KnowledgeFile, filled in by Load.
	Knowledge string
}

// knowledgeHeader introduces the knowledge base inside the system turn.
const knowledgeHeader = "Use a base de conhecimento abaixo para responder de forma clara e concisa."

// SystemTurn is the opening instruction: the prompt followed by the knowledge base, if any.
func (l LLMConfig) SystemTurn() string {
	prompt := strings.TrimSpace(l.SystemPrompt)
	knowledge := strings.TrimSpace(l.Knowledge)
	if knowledge == "" {
		return prompt
	}
	block := knowledgeHeader + "\n\n" + knowledge
	if prompt == "" {
		return block
	}
	return prompt + "\n\n" + block
}

// APIKey reads the credential from the environment. Gemini falls back to the SDK's
// conventional variables.
func (l LLMConfig) APIKey() string {
	if l.APIKeyEnv != "" {
		if key := strings.TrimSpace(os.Getenv(l.APIKeyEnv)); key != "" {
			return key
		}
	}
	if l.Provider == ProviderGemini {
		for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if key := strings.TrimSpace(os.Getenv(name)); key != "" {
				return key
			}
		}
	}
	return ""
}

// ReplyConfig controls reply normalization and fallback text.
type ReplyConfig struct {
	EmptyFallback string
	ErrorFallback string
	StripChars    string
	// StreamEcho writes raw model fragments to stdout as they arrive.
	StreamEcho bool
}

// TTSConfig selects the synthesis backend and voice parameters.
type TTSConfig struct {
	Backend     string
	Command     CommandConfig
	VoiceMatch  string
	Rate        int
	Volume      float64
	Prosody     bool
	APIKeyEnv   string
	OpenAIModel string
	OpenAIVoice string
	OpenAISpeed float64
}

// APIKey reads the OpenAI speech credential from APIKeyEnv.
func (t TTSConfig) APIKey() string {
	if t.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(t.APIKeyEnv))
}

// IndicatorConfig controls audible cues and the spoken error notice.
type IndicatorConfig struct {
	SoundEnable bool
	ErrorNotice string
}

// MetricsConfig enables the Prometheus listener when Listen is set.
type MetricsConfig struct {
	Listen string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
	DumpDir         string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	tts := "espeak-ng"

	return Config{
		EnvFile: ".env",
		Audio: AudioConfig{
			Input:         "auto",
			SampleRate:    16000,
			FrameMS:       256,
			Gain:          1.0,
			Mode:          ModeQueued,
			QueueSize:     8,
			PullTimeoutMS: 5000,
			FrameQueue:    64,
			CycleGapMS:    100,
		},
		ASR: ASRConfig{
			VoskURL:       "ws://127.0.0.1:2700",
			FillerWords:   []string{"uhm", "ah", "hum"},
			DialTimeoutMS: 3000,
		},
		LLM: LLMConfig{
			Provider:     ProviderOpenAI,
			BaseURL:      "http://127.0.0.1:11434/v1",
			Model:        "llama3.2:latest",
			APIKeyEnv:    "OPENAI_API_KEY",
			Temperature:  0.7,
			SystemPrompt: DefaultSystemPrompt,
		},
		Reply: ReplyConfig{
			EmptyFallback: "Olá! Posso ajudar?",
			ErrorFallback: "Houve um problema ao processar sua solicitação",
			StripChars:    "*_[]()\"#@",
		},
		TTS: TTSConfig{
			Backend:     TTSCommand,
			Command:     CommandConfig{Raw: tts, Argv: mustParseArgv(tts)},
			VoiceMatch:  "portug",
			Rate:        160,
			Volume:      1.0,
			Prosody:     true,
			APIKeyEnv:   "OPENAI_API_KEY",
			OpenAIModel: "tts-1",
			OpenAIVoice: "alloy",
			OpenAISpeed: 1.0,
		},
		Indicator: IndicatorConfig{
			SoundEnable: true,
			ErrorNotice: "Desculpe, não consegui entender. Pode repetir?",
		},
	}
}
