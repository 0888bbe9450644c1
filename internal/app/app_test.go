package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/ari/internal/audio"
	"github.com/rbright/ari/internal/config"
	"github.com/rbright/ari/internal/ipc"
	"github.com/rbright/ari/internal/llm"
	"github.com/rbright/ari/internal/logging"
	"github.com/rbright/ari/internal/speech"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"help"}} {
		var stdout bytes.Buffer
		var stderr bytes.Buffer

		exitCode := Execute(context.Background(), args, &stdout, &stderr)
		require.Equal(t, 0, exitCode, args)
		require.Contains(t, stdout.String(), "Usage:")
		require.Empty(t, stderr.String())
	}
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "ari")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteRejectsInvalidConfig(t *testing.T) {
	paths := setupRunnerEnv(t, `{"audio": {"gain": -1}}`)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "audio.gain")
}

func TestRunnerPrintsConfigWarnings(t *testing.T) {
	paths := setupRunnerEnv(t, `{"tts": {"backend": "none"}}`)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stderr.String(), "warning:")
}

func TestRunnerStatusReportsNotRunning(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "not running\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerStopFailsWhenNotRunning(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), ipc.ErrNotRunning.Error())
}

func TestRunnerForwardsStatusAndStopToRunningLoop(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	commands := make(chan string, 4)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "ari.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, State: "listening", Turns: 4, Cycles: 3}
		case ipc.CommandStop:
			return ipc.Response{OK: true, State: "listening", Message: "stop requested"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"}))
	require.Equal(t, "listening turns=4 cycles=3\n", stdout.String())

	stdout.Reset()
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"stop", "--config", paths.configPath}))
	require.Equal(t, "stop requested\n", stdout.String())
	require.Empty(t, stderr.String())

	require.Equal(t, []string{ipc.CommandStatus, ipc.CommandStop}, []string{<-commands, <-commands})
}

func TestRunnerStatusReportsRemoteError(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "ari.sock"), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: "busy"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "busy")
}

func TestRunnerRunRefusesSecondInstance(t *testing.T) {
	paths := setupRunnerEnv(t, `{"tts": {"backend": "none"}}`)
	socketPath := filepath.Join(paths.runtimeDir, "ari.sock")

	shutdown := startIPCServerForRunnerTest(t, socketPath, func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "listening"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "run"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), ipc.ErrAlreadyRunning.Error())

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestRunnerRunReleasesSocketWhenAudioStartupFails(t *testing.T) {
	paths := setupRunnerEnv(t, `{"tts": {"backend": "none"}, "indicator": {"sound_enable": false}}`)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "ari.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t, `{"asr": {"vosk_url": "ws://127.0.0.1:1"}, "llm": {"base_url": "http://127.0.0.1:1/v1"}}`)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "[OK] config:")
	require.Contains(t, stdout.String(), "[FAIL] asr.vosk:")
}

func TestFormatDevice(t *testing.T) {
	line := formatDevice(audio.Device{
		ID:          "alsa_input.usb",
		Description: "USB Mic",
		State:       "running",
		SampleRate:  48000,
		Available:   true,
		Default:     true,
	})
	require.Equal(t, `* id=alsa_input.usb | description="USB Mic" | state=running | rate=48000 | available=yes | muted=no | monitor=no`, line)

	line = formatDevice(audio.Device{ID: "monitor", Muted: true, Monitor: true})
	require.Contains(t, line, "  id=monitor")
	require.Contains(t, line, "muted=yes | monitor=yes")
}

type fakeVoices struct {
	voices []speech.Voice
	err    error
	used   string
}

func (f *fakeVoices) ListVoices(context.Context) ([]speech.Voice, error) { return f.voices, f.err }
func (f *fakeVoices) UseVoice(voice string)                               { f.used = voice }

func TestApplyVoiceMatch(t *testing.T) {
	logger := logging.Discard().Logger
	voices := []speech.Voice{
		{Language: "en-us", Name: "English_(America)", File: "gmw/en-US"},
		{Language: "pt-br", Name: "Portuguese_(Brazil)", File: "roa/pt-BR"},
		{Name: "Portuguese_Custom"},
	}

	tests := []struct {
		name   string
		engine *fakeVoices
		marker string
		want   string
	}{
		{name: "language preferred", engine: &fakeVoices{voices: voices}, marker: "portug", want: "pt-br"},
		{name: "name when no language", engine: &fakeVoices{voices: voices[2:]}, marker: "custom", want: "Portuguese_Custom"},
		{name: "no match keeps default", engine: &fakeVoices{voices: voices}, marker: "klingon", want: ""},
		{name: "listing failure keeps default", engine: &fakeVoices{err: errors.New("no engine")}, marker: "portug", want: ""},
		{name: "empty marker skips listing", engine: &fakeVoices{voices: voices}, marker: " ", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			applyVoiceMatch(context.Background(), tc.engine, tc.marker, logger)
			require.Equal(t, tc.want, tc.engine.used)
		})
	}
}

func TestBuildSpeakerBackends(t *testing.T) {
	logger := logging.Discard().Logger
	cfg := config.Default().TTS

	cfg.Backend = config.TTSNone
	speaker, err := buildSpeaker(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	require.IsType(t, silentSpeaker{}, speaker)
	require.True(t, speaker.Speak(context.Background(), "olá"))

	cfg.Backend = config.TTSCommand
	cfg.Command.Argv = nil
	_, err = buildSpeaker(context.Background(), cfg, nil, logger)
	require.Error(t, err)
}

func TestBuildSpeakerOpenAIReadsConfiguredKeyVariable(t *testing.T) {
	logger := logging.Discard().Logger
	cfg := config.Default().TTS
	cfg.Backend = config.TTSOpenAI
	cfg.APIKeyEnv = "ARI_SPEECH_KEY"
	t.Setenv("OPENAI_API_KEY", "sk-chat")
	t.Setenv("ARI_SPEECH_KEY", "")

	_, err := buildSpeaker(context.Background(), cfg, nil, logger)
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key is empty")

	t.Setenv("ARI_SPEECH_KEY", "sk-speech")
	speaker, err := buildSpeaker(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	require.IsType(t, &speech.Output{}, speaker)
}

func TestBuildModelProviders(t *testing.T) {
	cfg := config.Default().LLM
	model, err := buildModel(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &llm.OpenAI{}, model)

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg.Provider = config.ProviderGemini
	cfg.Model = "gemini-2.5-flash"
	_, err = buildModel(context.Background(), cfg)
	require.ErrorIs(t, err, llm.ErrModelUnavailable)
}

func TestDebugDirDefaultsUnderStateHome(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	dir, err := debugDir(config.DebugConfig{})
	require.NoError(t, err)
	require.Empty(t, dir)

	dir, err = debugDir(config.DebugConfig{EnableAudioDump: true})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(state, "ari", "debug"), dir)

	file, err := createDebugFile(dir, "vosk", "jsonl")
	require.NoError(t, err)
	require.NoError(t, file.Close())
	require.FileExists(t, file.Name())

	custom := filepath.Join(t.TempDir(), "dumps")
	dir, err = debugDir(config.DebugConfig{EnableAudioDump: true, DumpDir: custom})
	require.NoError(t, err)
	require.Equal(t, custom, dir)
	require.DirExists(t, custom)
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T, content string) runnerPaths {
	t.Helper()

	xdgStateHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte(content+"\n"), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
