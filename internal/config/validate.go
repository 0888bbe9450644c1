package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.FrameMS <= 0 {
		return nil, fmt.Errorf("audio.frame_ms must be > 0")
	}
	if cfg.Audio.Gain <= 0 {
		return nil, fmt.Errorf("audio.gain must be > 0")
	}
	if cfg.Audio.Gain > 4 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.gain %.2f is high; loud input will clip", cfg.Audio.Gain)})
	}
	if cfg.Audio.Mode != ModeQueued && cfg.Audio.Mode != ModeBlocking {
		return nil, fmt.Errorf("audio.mode must be one of: %s, %s", ModeQueued, ModeBlocking)
	}
	if cfg.Audio.QueueSize < 1 {
		return nil, fmt.Errorf("audio.queue_size must be >= 1")
	}
	if cfg.Audio.PullTimeoutMS <= 0 {
		return nil, fmt.Errorf("audio.pull_timeout_ms must be > 0")
	}
	if cfg.Audio.FrameQueue < 1 {
		return nil, fmt.Errorf("audio.frame_queue must be >= 1")
	}
	if cfg.Audio.CycleGapMS < 0 {
		return nil, fmt.Errorf("audio.cycle_gap_ms must be >= 0")
	}

	if err := validateURL("asr.vosk_url", cfg.ASR.VoskURL, "ws", "wss"); err != nil {
		return nil, err
	}
	if cfg.ASR.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("asr.dial_timeout_ms must be > 0")
	}

	switch cfg.LLM.Provider {
	case ProviderOpenAI:
		if err := validateURL("llm.base_url", cfg.LLM.BaseURL, "http", "https"); err != nil {
			return nil, err
		}
	case ProviderGemini:
	default:
		return nil, fmt.Errorf("llm.provider must be one of: %s, %s", ProviderOpenAI, ProviderGemini)
	}
	if cfg.LLM.Model == "" {
		return nil, fmt.Errorf("llm.model must not be empty")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return nil, fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	if cfg.LLM.MaxTokens < 0 {
		return nil, fmt.Errorf("llm.max_tokens must be >= 0")
	}
	if cfg.LLM.MaxTurns < 0 {
		return nil, fmt.Errorf("llm.max_turns must be >= 0")
	}
	if strings.TrimSpace(cfg.LLM.SystemPrompt) == "" {
		warnings = append(warnings, Warning{Message: "llm.system_prompt is empty; replies will not be steered"})
	}

	if cfg.Reply.StripChars == "" {
		return nil, fmt.Errorf("reply.strip_chars must not be empty")
	}
	if cfg.Reply.EmptyFallback == "" {
		return nil, fmt.Errorf("reply.empty_fallback must not be empty")
	}
	if cfg.Reply.ErrorFallback == "" {
		return nil, fmt.Errorf("reply.error_fallback must not be empty")
	}

	switch cfg.TTS.Backend {
	case TTSCommand:
		if len(cfg.TTS.Command.Argv) == 0 {
			return nil, fmt.Errorf("tts.command must not be empty when tts.backend=%s", TTSCommand)
		}
		if cfg.TTS.Rate <= 0 {
			return nil, fmt.Errorf("tts.rate must be > 0")
		}
		if cfg.TTS.Rate < 155 || cfg.TTS.Rate > 195 {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("tts.rate %d is outside the natural 155-195 range", cfg.TTS.Rate)})
		}
		if cfg.TTS.Volume < 0 || cfg.TTS.Volume > 1 {
			return nil, fmt.Errorf("tts.volume must be within [0, 1]")
		}
	case TTSOpenAI:
		if cfg.TTS.OpenAIModel == "" || cfg.TTS.OpenAIVoice == "" {
			return nil, fmt.Errorf("tts.openai_model and tts.openai_voice must not be empty when tts.backend=%s", TTSOpenAI)
		}
		if cfg.TTS.APIKeyEnv == "" {
			return nil, fmt.Errorf("tts.api_key_env must not be empty when tts.backend=%s", TTSOpenAI)
		}
		if cfg.TTS.OpenAISpeed < 0.25 || cfg.TTS.OpenAISpeed > 4 {
			return nil, fmt.Errorf("tts.openai_speed must be within [0.25, 4]")
		}
	case TTSNone:
		warnings = append(warnings, Warning{Message: "tts.backend=none; replies are printed only"})
	default:
		return nil, fmt.Errorf("tts.backend must be one of: %s, %s, %s", TTSCommand, TTSOpenAI, TTSNone)
	}

	return warnings, nil
}

func validateURL(field string, raw string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme && parsed.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL with a host", field, strings.Join(schemes, "/"))
}
