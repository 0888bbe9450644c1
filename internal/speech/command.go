package speech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rbright/ari/internal/audio"
)

// Voice is one voice reported by an espeak-compatible engine.
type Voice struct {
	Language string
	Name     string
	File     string
}

// SelectVoice returns the first voice whose language, name, or file contains marker,
// case-insensitively.
func SelectVoice(voices []Voice, marker string) (Voice, bool) {
	marker = strings.ToLower(strings.TrimSpace(marker))
	if marker == "" {
		return Voice{}, false
	}
	for _, v := range voices {
		for _, id := range []string{v.Language, v.Name, v.File} {
			if strings.Contains(strings.ToLower(id), marker) {
				return v, true
			}
		}
	}
	return Voice{}, false
}

// ParseVoices reads the table printed by `espeak-ng --voices`.
func ParseVoices(listing []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, Voice{Language: fields[1], Name: fields[3], File: fields[4]})
	}
	return voices
}

// CommandConfig configures an espeak-compatible synthesizer process.
type CommandConfig struct {
	Argv []string
	// Voice is passed to -v; empty leaves the engine default.
	Voice string
	// Rate is words per minute.
	Rate int
	// Volume is a 0..2 multiplier mapped onto the engine amplitude.
	Volume float64
}

// Command synthesizes by running an espeak-compatible binary with --stdout WAV output.
type Command struct {
	cfg CommandConfig
	run func(ctx context.Context, argv []string) ([]byte, error)
}

var _ Synthesizer = (*Command)(nil)

// NewCommand validates argv and returns a command synthesizer.
func NewCommand(cfg CommandConfig) (*Command, error) {
	if len(cfg.Argv) == 0 || strings.TrimSpace(cfg.Argv[0]) == "" {
		return nil, errors.New("tts command is empty")
	}
	return &Command{cfg: cfg, run: runCommand}, nil
}

// ListVoices asks the engine for its voice table.
func (c *Command) ListVoices(ctx context.Context) ([]Voice, error) {
	argv := append(append([]string(nil), c.cfg.Argv...), "--voices")
	out, err := c.run(ctx, argv)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return ParseVoices(out), nil
}

// UseVoice sets the voice passed to the engine.
func (c *Command) UseVoice(voice string) {
	c.cfg.Voice = voice
}

// Synthesize implements Synthesizer.
func (c *Command) Synthesize(ctx context.Context, text string) (PCM, error) {
	if strings.TrimSpace(text) == "" {
		return PCM{}, nil
	}

	out, err := c.run(ctx, c.argv(text))
	if err != nil {
		return PCM{}, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	samples, info, err := audio.ReadPCM16WAV(bytes.NewReader(out))
	if err != nil {
		return PCM{}, fmt.Errorf("%w: decode engine output: %v", ErrSynthesis, err)
	}
	return PCM{Samples: samples, SampleRate: info.SampleRate}, nil
}

func (c *Command) argv(text string) []string {
	argv := append([]string(nil), c.cfg.Argv...)
	if c.cfg.Voice != "" {
		argv = append(argv, "-v", c.cfg.Voice)
	}
	if c.cfg.Rate > 0 {
		argv = append(argv, "-s", strconv.Itoa(c.cfg.Rate))
	}
	if c.cfg.Volume > 0 {
		amplitude := int(math.Round(math.Min(c.cfg.Volume, 2) * 100))
		argv = append(argv, "-a", strconv.Itoa(amplitude))
	}
	return append(argv, "--stdout", text)
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", argv[0], err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return stdout.Bytes(), nil
}
