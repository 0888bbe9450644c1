package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rbright/ari/internal/agent"
	"github.com/rbright/ari/internal/asr"
	"github.com/rbright/ari/internal/audio"
	"github.com/rbright/ari/internal/config"
	"github.com/rbright/ari/internal/conversation"
	"github.com/rbright/ari/internal/indicator"
	"github.com/rbright/ari/internal/ipc"
	"github.com/rbright/ari/internal/listen"
	"github.com/rbright/ari/internal/llm"
	"github.com/rbright/ari/internal/logging"
	"github.com/rbright/ari/internal/metrics"
	"github.com/rbright/ari/internal/respond"
	"github.com/rbright/ari/internal/speech"
)

// loop is one assembled runtime: capture, recognition, model, speech, and the controller.
type loop struct {
	controller *agent.Controller
	capture    *audio.Capture
	recognizer *asr.Vosk
	queued     *listen.Queued
	cues       *indicator.Cues
	voskDump   *os.File
}

// close releases resources in dependency order. Closing the capture ends the frame
// channel, which lets a queued recognition task drain before the recognizer goes away.
func (l *loop) close() {
	if l.capture != nil {
		l.capture.Close()
	}
	if l.queued != nil {
		<-l.queued.Done()
	}
	if l.recognizer != nil {
		_ = l.recognizer.Close()
	}
	if l.cues != nil {
		l.cues.Wait()
	}
	if l.voskDump != nil {
		_ = l.voskDump.Close()
	}
}

func (r Runner) commandRun(ctx context.Context, cfg config.Config, blocking bool, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	recorder := metrics.New()
	l, err := buildLoop(runCtx, cfg, blocking, recorder, r.Stdout, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("start loop failed", "error", err.Error())
		return 1
	}
	defer l.close()

	var wg sync.WaitGroup
	if addr := cfg.Metrics.Listen; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Serve(runCtx, addr, logger); err != nil {
				logger.Error("metrics server failed", "error", err.Error())
			}
		}()
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(runCtx, listener, l.controller)
	}()

	device := listen.DescribeDevice(l.capture.Device())
	fmt.Fprintf(r.Stdout, "ARI ouvindo em %s\n", device)
	logger.Info("loop start",
		"device", device,
		"mode", listeningMode(cfg, blocking),
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"tts", cfg.TTS.Backend,
	)

	runErr := l.controller.Run(runCtx)
	cancel()
	serverErr := <-serverErrCh
	wg.Wait()

	logger.Info("loop stopped",
		"state", string(l.controller.State()),
		"frames_dropped", l.capture.FramesDropped(),
		"bytes_captured", l.capture.BytesCaptured(),
	)

	if runErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		logger.Error("loop failed", "error", runErr.Error())
		return 1
	}
	if serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	return 0
}

func listeningMode(cfg config.Config, blocking bool) string {
	if blocking {
		return config.ModeBlocking
	}
	return cfg.Audio.Mode
}

// buildLoop constructs every stage. The model and speech stages come first so that
// no failure can occur after the background recognition task has started.
func buildLoop(
	ctx context.Context,
	cfg config.Config,
	blocking bool,
	recorder *metrics.Metrics,
	console io.Writer,
	logger *slog.Logger,
) (_ *loop, err error) {
	l := &loop{}
	defer func() {
		if err != nil {
			l.close()
		}
	}()

	model, err := buildModel(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	speaker, err := buildSpeaker(ctx, cfg.TTS, recorder, logger)
	if err != nil {
		return nil, err
	}

	l.cues = indicator.New(&speech.PulsePlayer{MediaName: "ari cue"}, cfg.Indicator.SoundEnable, logger)

	var echo io.Writer
	if cfg.Reply.StreamEcho {
		echo = console
	}
	assembler := respond.NewAssembler(model, respond.Options{
		StripChars:    cfg.Reply.StripChars,
		EmptyFallback: cfg.Reply.EmptyFallback,
		ErrorFallback: cfg.Reply.ErrorFallback,
		Echo:          echo,
		Logger:        logger,
	})

	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.SampleRate)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		logger.Warn("audio device fallback", "warning", selection.Warning, "device", selection.Device.ID)
	}

	dumpDir, err := debugDir(cfg.Debug)
	if err != nil {
		return nil, err
	}
	if dumpDir != "" {
		l.voskDump, err = createDebugFile(dumpDir, "vosk", "jsonl")
		if err != nil {
			return nil, err
		}
	}

	voskCfg := asr.VoskConfig{
		URL:         cfg.ASR.VoskURL,
		SampleRate:  cfg.Audio.SampleRate,
		DialTimeout: cfg.ASR.DialTimeout(),
		Logger:      logger,
	}
	if l.voskDump != nil {
		voskCfg.DebugResponseJSON = l.voskDump
	}
	l.recognizer, err = asr.NewVosk(voskCfg)
	if err != nil {
		return nil, err
	}
	if err := l.recognizer.Dial(ctx); err != nil {
		// Feed re-dials lazily; a server that starts late is not fatal.
		logger.Warn("vosk dial failed", "url", cfg.ASR.VoskURL, "error", err.Error())
	}

	l.capture, err = audio.StartCapture(ctx, selection, audio.CaptureOptions{
		SampleRate:    cfg.Audio.SampleRate,
		FrameDuration: cfg.Audio.FrameDuration(),
		QueueSize:     cfg.Audio.FrameQueue,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	recorder.WatchFramesDropped(l.capture.FramesDropped)

	listenOpts := listen.Options{
		Gain:       cfg.Audio.Gain,
		Fillers:    cfg.ASR.FillerWords,
		DumpDir:    dumpDir,
		SampleRate: cfg.Audio.SampleRate,
		Logger:     logger,
		Observer:   recorder,
	}

	var source agent.Source
	if listeningMode(cfg, blocking) == config.ModeBlocking {
		source = listen.NewBlocking(l.capture, l.recognizer, listenOpts)
	} else {
		queued := listen.NewQueued(l.capture, l.recognizer, cfg.Audio.QueueSize, cfg.Audio.PullTimeout(), listenOpts)
		queued.Start(ctx)
		l.queued = queued
		source = queued
	}

	conv := conversation.New(cfg.LLM.SystemTurn(), conversation.WithWindow(cfg.LLM.MaxTurns))
	l.controller = agent.NewController(conv, source, assembler, speaker, agent.Options{
		Logger:      logger,
		Indicator:   l.cues,
		Recorder:    recorder,
		Console:     console,
		ErrorNotice: cfg.Indicator.ErrorNotice,
		Gap:         cfg.Audio.CycleGap(),
	})
	return l, nil
}

func buildModel(ctx context.Context, cfg config.LLMConfig) (llm.Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		model, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:      cfg.APIKey(),
			Model:       cfg.Model,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return model, nil
	default:
		model, err := llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey(),
			Model:       cfg.Model,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return model, nil
	}
}

// silentSpeaker stands in for speech output when tts.backend is none.
type silentSpeaker struct{}

func (silentSpeaker) Speak(context.Context, string) bool { return true }

// voiceLister is the part of an engine that can enumerate and pick voices.
type voiceLister interface {
	ListVoices(ctx context.Context) ([]speech.Voice, error)
	UseVoice(voice string)
}

func buildSpeaker(ctx context.Context, cfg config.TTSConfig, observer speech.Observer, logger *slog.Logger) (agent.Speaker, error) {
	var synth speech.Synthesizer
	switch cfg.Backend {
	case config.TTSNone:
		return silentSpeaker{}, nil
	case config.TTSOpenAI:
		openAISynth, err := speech.NewOpenAISynth(speech.OpenAIConfig{
			APIKey: cfg.APIKey(),
			Model:  cfg.OpenAIModel,
			Voice:  cfg.OpenAIVoice,
			Speed:  cfg.OpenAISpeed,
		})
		if err != nil {
			return nil, err
		}
		synth = openAISynth
	default:
		command, err := speech.NewCommand(speech.CommandConfig{
			Argv:   cfg.Command.Argv,
			Rate:   cfg.Rate,
			Volume: cfg.Volume,
		})
		if err != nil {
			return nil, err
		}
		applyVoiceMatch(ctx, command, cfg.VoiceMatch, logger)
		synth = command
	}

	return speech.NewOutput(synth, &speech.PulsePlayer{MediaName: "ari reply"}, speech.OutputOptions{
		Prosody:  cfg.Prosody,
		Logger:   logger,
		Observer: observer,
	}), nil
}

// applyVoiceMatch keeps the engine default voice when the listing fails or nothing matches.
func applyVoiceMatch(ctx context.Context, engine voiceLister, marker string, logger *slog.Logger) {
	if strings.TrimSpace(marker) == "" {
		return
	}
	voices, err := engine.ListVoices(ctx)
	if err != nil {
		logger.Warn("list voices failed", "error", err.Error())
		return
	}
	voice, ok := speech.SelectVoice(voices, marker)
	if !ok {
		logger.Warn("no voice matched; using engine default", "voice_match", marker, "voices", len(voices))
		return
	}

	id := voice.Language
	if id == "" {
		id = voice.Name
	}
	engine.UseVoice(id)
	logger.Info("voice selected", "voice", id, "name", voice.Name)
}

// debugDir returns the directory for debug artifacts, or "" when audio dumps are off.
func debugDir(cfg config.DebugConfig) (string, error) {
	if !cfg.EnableAudioDump {
		return "", nil
	}
	dir := cfg.DumpDir
	if dir == "" {
		stateDir, err := logging.StateDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(stateDir, "debug")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	return dir, nil
}

func createDebugFile(dir string, prefix string, extension string) (*os.File, error) {
	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}
