// Package doctor runs runtime readiness diagnostics for config, audio, and model backends.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/ari/internal/asr"
	"github.com/rbright/ari/internal/audio"
	"github.com/rbright/ari/internal/config"
	"github.com/rbright/ari/internal/ipc"
	"github.com/rbright/ari/internal/llm"
)

const probeTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket can be created", "XDG_RUNTIME_DIR is empty; status/stop will not work"))
	checks = append(checks, checkRunning(ctx))

	checks = append(checks, checkAudioSelection(ctx, cfg))
	checks = append(checks, checkVosk(ctx, cfg))
	checks = append(checks, checkLLM(ctx, cfg))
	checks = append(checks, checkTTS(cfg))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	if loaded.EnvPath != "" {
		message += fmt.Sprintf(", env from %q", loaded.EnvPath)
	}
	if n := len(loaded.Warnings); n > 0 && loaded.Exists {
		message += fmt.Sprintf(" with %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.SampleRate)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q at %d Hz", selection.Device.ID, selection.Device.SampleRate)
	if selection.Resample {
		message += fmt.Sprintf(", resampled to %d Hz", cfg.Audio.SampleRate)
	}
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkVosk opens and closes one recognizer session.
func checkVosk(ctx context.Context, cfg config.Config) Check {
	rec, err := asr.NewVosk(asr.VoskConfig{
		URL:         cfg.ASR.VoskURL,
		SampleRate:  cfg.Audio.SampleRate,
		DialTimeout: cfg.ASR.DialTimeout(),
	})
	if err != nil {
		return Check{Name: "asr.vosk", Pass: false, Message: err.Error()}
	}

	dialCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := rec.Dial(dialCtx); err != nil {
		return Check{Name: "asr.vosk", Pass: false, Message: err.Error()}
	}
	_ = rec.Close()
	return Check{Name: "asr.vosk", Pass: true, Message: fmt.Sprintf("connected to %s", cfg.ASR.VoskURL)}
}

// checkLLM confirms the chat endpoint answers, or that a Gemini key is present.
func checkLLM(ctx context.Context, cfg config.Config) Check {
	name := "llm." + cfg.LLM.Provider
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		if cfg.LLM.APIKey() == "" {
			return Check{Name: name, Pass: false, Message: "no API key in " + geminiKeyVars(cfg.LLM)}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("API key present for model %q", cfg.LLM.Model)}
	default:
		model, err := llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey(),
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return Check{Name: name, Pass: false, Message: err.Error()}
		}
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := model.Ping(pingCtx); err != nil {
			return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s: %v", cfg.LLM.BaseURL, err)}
		}
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s", cfg.LLM.BaseURL)}
	}
}

func geminiKeyVars(cfg config.LLMConfig) string {
	vars := []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	if cfg.APIKeyEnv != "" {
		vars = append([]string{cfg.APIKeyEnv}, vars...)
	}
	return strings.Join(vars, ", ")
}

// checkTTS validates the configured synthesis backend can run.
func checkTTS(cfg config.Config) Check {
	switch cfg.TTS.Backend {
	case config.TTSCommand:
		return checkCommand(cfg.TTS.Command.Argv, "tts.command")
	case config.TTSOpenAI:
		if cfg.TTS.APIKey() == "" {
			return Check{Name: "tts.openai", Pass: false, Message: fmt.Sprintf("%s is empty", cfg.TTS.APIKeyEnv)}
		}
		return Check{Name: "tts.openai", Pass: true, Message: fmt.Sprintf("API key present for voice %q", cfg.TTS.OpenAIVoice)}
	default:
		return Check{Name: "tts", Pass: true, Message: "speech output disabled"}
	}
}

// checkRunning reports whether another ari loop already owns the control socket.
func checkRunning(ctx context.Context) Check {
	resp, err := ipc.Call(ctx, ipc.CommandStatus, 300*time.Millisecond)
	if err != nil {
		return Check{Name: "ari.loop", Pass: true, Message: "no running loop"}
	}
	return Check{Name: "ari.loop", Pass: true, Message: fmt.Sprintf("running (state=%s, turns=%d)", resp.State, resp.Turns)}
}
