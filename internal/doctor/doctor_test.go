package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rbright/ari/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.HasPrefix(v, "/run/user") },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckConfigMessages(t *testing.T) {
	check := checkConfig(config.Loaded{Path: "/etc/ari.jsonc", Exists: false})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "using defaults")

	check = checkConfig(config.Loaded{
		Path:     "/etc/ari.jsonc",
		Exists:   true,
		EnvPath:  "/etc/.env",
		Warnings: []config.Warning{{Message: "x"}},
	})
	require.Contains(t, check.Message, `env from "/etc/.env"`)
	require.Contains(t, check.Message, "1 warning(s)")
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "tts.command")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckTTSUsesCommandFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-espeak")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	cfg := config.Default()
	cfg.TTS.Command = config.CommandConfig{Raw: "fake-espeak", Argv: []string{"fake-espeak", "-q"}}

	check := checkTTS(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "tts.command command is available")
}

func TestCheckTTSOpenAIAndNone(t *testing.T) {
	cfg := config.Default()
	cfg.TTS.Backend = config.TTSOpenAI

	t.Setenv("OPENAI_API_KEY", "")
	require.False(t, checkTTS(cfg).Pass)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	check := checkTTS(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, `"alloy"`)

	cfg.TTS.APIKeyEnv = "ARI_SPEECH_KEY"
	t.Setenv("ARI_SPEECH_KEY", "")
	check = checkTTS(cfg)
	require.False(t, check.Pass)
	require.Equal(t, "ARI_SPEECH_KEY is empty", check.Message)

	cfg.TTS.Backend = config.TTSNone
	require.Contains(t, checkTTS(cfg).Message, "disabled")
}

func TestCheckLLMOpenAIReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"llama3.2:latest","object":"model"}]}`))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.LLM.BaseURL = server.URL + "/v1"

	check := checkLLM(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Equal(t, "llm.openai", check.Name)
	require.Contains(t, check.Message, "reachable at")
}

func TestCheckLLMOpenAIFailureStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.LLM.BaseURL = server.URL + "/v1"

	check := checkLLM(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "model unavailable")
}

func TestCheckLLMGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg := config.Default()
	cfg.LLM.Provider = config.ProviderGemini
	cfg.LLM.APIKeyEnv = "ARI_DOCTOR_GEMINI"
	t.Setenv("ARI_DOCTOR_GEMINI", "")

	check := checkLLM(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "ARI_DOCTOR_GEMINI, GEMINI_API_KEY, GOOGLE_API_KEY")

	t.Setenv("GOOGLE_API_KEY", "g-key")
	require.True(t, checkLLM(context.Background(), cfg).Pass)
}

func TestCheckVoskDialsServer(t *testing.T) {
	configured := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		configured <- string(payload)
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"text": ""}`))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.ASR.VoskURL = "ws" + strings.TrimPrefix(server.URL, "http")

	check := checkVosk(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, <-configured, `"sample_rate":16000`)
}

func TestCheckVoskFailure(t *testing.T) {
	cfg := config.Default()
	cfg.ASR.VoskURL = "ws://127.0.0.1:1"

	check := checkVosk(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Equal(t, "asr.vosk", check.Name)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestRunReportsEveryCheck(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.Default()
	cfg.ASR.VoskURL = "ws://127.0.0.1:1"
	cfg.LLM.BaseURL = "http://127.0.0.1:1/v1"
	cfg.TTS.Backend = config.TTSNone

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	require.False(t, report.OK())

	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"config", "XDG_RUNTIME_DIR", "ari.loop", "audio.device", "asr.vosk", "llm.openai", "tts"}, names)
	require.Contains(t, report.String(), "[OK] ari.loop: no running loop")
}
