package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsoncConfig struct {
	EnvFile   *string         `json:"env_file"`
	Audio     *jsoncAudio     `json:"audio"`
	ASR       *jsoncASR       `json:"asr"`
	LLM       *jsoncLLM       `json:"llm"`
	Reply     *jsoncReply     `json:"reply"`
	TTS       *jsoncTTS       `json:"tts"`
	Indicator *jsoncIndicator `json:"indicator"`
	Metrics   *jsoncMetrics   `json:"metrics"`
	Debug     *jsoncDebug     `json:"debug"`
}

type jsoncAudio struct {
	Input         *string  `json:"input"`
	SampleRate    *int     `json:"sample_rate"`
	FrameMS       *int     `json:"frame_ms"`
	Gain          *float64 `json:"gain"`
	Mode          *string  `json:"mode"`
	QueueSize     *int     `json:"queue_size"`
	PullTimeoutMS *int     `json:"pull_timeout_ms"`
	FrameQueue    *int     `json:"frame_queue"`
	CycleGapMS    *int     `json:"cycle_gap_ms"`
}

type jsoncASR struct {
	VoskURL       *string          `json:"vosk_url"`
	FillerWords   *jsoncStringList `json:"filler_words"`
	DialTimeoutMS *int             `json:"dial_timeout_ms"`
}

type jsoncLLM struct {
	Provider      *string  `json:"provider"`
	BaseURL       *string  `json:"base_url"`
	Model         *string  `json:"model"`
	APIKeyEnv     *string  `json:"api_key_env"`
	Temperature   *float64 `json:"temperature"`
	MaxTokens     *int     `json:"max_tokens"`
	SystemPrompt  *string  `json:"system_prompt"`
	KnowledgeFile *string  `json:"knowledge_file"`
	MaxTurns      *int     `json:"max_turns"`
}

type jsoncReply struct {
	EmptyFallback *string `json:"empty_fallback"`
	ErrorFallback *string `json:"error_fallback"`
	StripChars    *string `json:"strip_chars"`
	StreamEcho    *bool   `json:"stream_echo"`
}

type jsoncTTS struct {
	Backend     *string  `json:"backend"`
	Command     *string  `json:"command"`
	VoiceMatch  *string  `json:"voice_match"`
	Rate        *int     `json:"rate"`
	Volume      *float64 `json:"volume"`
	Prosody     *bool    `json:"prosody"`
	APIKeyEnv   *string  `json:"api_key_env"`
	OpenAIModel *string  `json:"openai_model"`
	OpenAIVoice *string  `json:"openai_voice"`
	OpenAISpeed *float64 `json:"openai_speed"`
}

type jsoncIndicator struct {
	SoundEnable *bool   `json:"sound_enable"`
	ErrorNotice *string `json:"error_notice"`
}

type jsoncMetrics struct {
	Listen *string `json:"listen"`
}

type jsoncDebug struct {
	AudioDump *bool   `json:"audio_dump"`
	DumpDir   *string `json:"dump_dir"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	setTrimmed(&cfg.EnvFile, payload.EnvFile)

	if a := payload.Audio; a != nil {
		setTrimmed(&cfg.Audio.Input, a.Input)
		set(&cfg.Audio.SampleRate, a.SampleRate)
		set(&cfg.Audio.FrameMS, a.FrameMS)
		set(&cfg.Audio.Gain, a.Gain)
		if a.Mode != nil {
			cfg.Audio.Mode = strings.ToLower(strings.TrimSpace(*a.Mode))
		}
		set(&cfg.Audio.QueueSize, a.QueueSize)
		set(&cfg.Audio.PullTimeoutMS, a.PullTimeoutMS)
		set(&cfg.Audio.FrameQueue, a.FrameQueue)
		set(&cfg.Audio.CycleGapMS, a.CycleGapMS)
	}

	if a := payload.ASR; a != nil {
		setTrimmed(&cfg.ASR.VoskURL, a.VoskURL)
		if a.FillerWords != nil {
			words := make([]string, 0, len(*a.FillerWords))
			for _, word := range *a.FillerWords {
				word = strings.ToLower(strings.TrimSpace(word))
				if word == "" {
					continue
				}
				words = append(words, word)
			}
			cfg.ASR.FillerWords = words
		}
		set(&cfg.ASR.DialTimeoutMS, a.DialTimeoutMS)
	}

	if l := payload.LLM; l != nil {
		if l.Provider != nil {
			cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(*l.Provider))
		}
		setTrimmed(&cfg.LLM.BaseURL, l.BaseURL)
		setTrimmed(&cfg.LLM.Model, l.Model)
		setTrimmed(&cfg.LLM.APIKeyEnv, l.APIKeyEnv)
		set(&cfg.LLM.Temperature, l.Temperature)
		set(&cfg.LLM.MaxTokens, l.MaxTokens)
		set(&cfg.LLM.SystemPrompt, l.SystemPrompt)
		setTrimmed(&cfg.LLM.KnowledgeFile, l.KnowledgeFile)
		set(&cfg.LLM.MaxTurns, l.MaxTurns)
	}

	if r := payload.Reply; r != nil {
		setTrimmed(&cfg.Reply.EmptyFallback, r.EmptyFallback)
		setTrimmed(&cfg.Reply.ErrorFallback, r.ErrorFallback)
		set(&cfg.Reply.StripChars, r.StripChars)
		set(&cfg.Reply.StreamEcho, r.StreamEcho)
	}

	if t := payload.TTS; t != nil {
		if t.Backend != nil {
			cfg.TTS.Backend = strings.ToLower(strings.TrimSpace(*t.Backend))
		}
		if t.Command != nil {
			raw := *t.Command
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid tts.command: %w", err)
			}
			cfg.TTS.Command = CommandConfig{Raw: raw, Argv: argv}
		}
		setTrimmed(&cfg.TTS.VoiceMatch, t.VoiceMatch)
		set(&cfg.TTS.Rate, t.Rate)
		set(&cfg.TTS.Volume, t.Volume)
		set(&cfg.TTS.Prosody, t.Prosody)
		setTrimmed(&cfg.TTS.APIKeyEnv, t.APIKeyEnv)
		setTrimmed(&cfg.TTS.OpenAIModel, t.OpenAIModel)
		setTrimmed(&cfg.TTS.OpenAIVoice, t.OpenAIVoice)
		set(&cfg.TTS.OpenAISpeed, t.OpenAISpeed)
	}

	if i := payload.Indicator; i != nil {
		set(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setTrimmed(&cfg.Indicator.ErrorNotice, i.ErrorNotice)
	}

	if m := payload.Metrics; m != nil {
		setTrimmed(&cfg.Metrics.Listen, m.Listen)
	}

	if d := payload.Debug; d != nil {
		set(&cfg.Debug.EnableAudioDump, d.AudioDump)
		setTrimmed(&cfg.Debug.DumpDir, d.DumpDir)
		if cfg.Debug.DumpDir != "" && !cfg.Debug.EnableAudioDump {
			warnings = append(warnings, Warning{Message: "debug.dump_dir is set but debug.audio_dump=false; no audio will be written"})
		}
	}

	return warnings, nil
}
