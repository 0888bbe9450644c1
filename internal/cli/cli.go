// Package cli parses ari command lines.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandStatus  Command = "status"
	CommandStop    Command = "stop"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandStatus:  {},
	CommandStop:    {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	// Blocking selects the synchronous listening model regardless of audio.mode.
	Blocking bool
	ShowHelp bool
}

// Parse accepts flags before or after a single command. With no command it runs the loop.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandRun}
	sawCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
			sawCommand = true
		case "--version":
			parsed.Command = CommandVersion
			sawCommand = true
		case "--blocking":
			parsed.Blocking = true
		case "--config":
			i++
			if i >= len(args) || strings.HasPrefix(args[i], "-") {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if value, ok := strings.CutPrefix(arg, "--config="); ok {
				if value == "" {
					return Parsed{}, errors.New("--config requires a path")
				}
				parsed.ConfigPath = value
				continue
			}
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			if sawCommand {
				return Parsed{}, fmt.Errorf("unexpected argument %q after command %q", arg, parsed.Command)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			sawCommand = true
		}
	}

	if parsed.Blocking && parsed.Command != CommandRun {
		return Parsed{}, fmt.Errorf("--blocking only applies to %q", CommandRun)
	}
	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--blocking] [command]

Commands:
  run       Listen, answer, and speak until stopped (default)
  status    Print the running loop's state and turn count
  stop      Ask the running loop to exit after the current cycle
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/ari/config.jsonc)
  --blocking      Recognize in the foreground instead of a background queue
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
