package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun        Command = "run"
	CommandStart      Command = "start"
	CommandStop       Command = "stop"
	CommandToggle     Command = "toggle"
	CommandReport     Command = "report"
	CommandExportJSON Command = "export-json"
	CommandExportText Command = "export-text"
	CommandCopy       Command = "copy"
	CommandStatus     Command = "status"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:        {},
	CommandStart:      {},
	CommandStop:       {},
	CommandToggle:     {},
	CommandReport:     {},
	CommandExportJSON: {},
	CommandExportText: {},
	CommandCopy:       {},
	CommandStatus:     {},
	CommandDevices:    {},
	CommandDoctor:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

// forwarded commands are executed by the owner process over IPC.
var forwarded = map[Command]struct{}{
	CommandStart:      {},
	CommandStop:       {},
	CommandToggle:     {},
	CommandReport:     {},
	CommandExportJSON: {},
	CommandExportText: {},
	CommandCopy:       {},
	CommandStatus:     {},
}

// Forwarded reports whether c is sent to the running owner instead of
// being handled locally.
func (c Command) Forwarded() bool {
	_, ok := forwarded[c]
	return ok
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Headless   bool
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--headless":
			parsed.Headless = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	if parsed.Headless && parsed.Command != CommandRun && !parsed.ShowHelp {
		return Parsed{}, fmt.Errorf("--headless only applies to %q", CommandRun)
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--headless] <command>

Owner:
  run           Start the session owner (terminal UI, or headless when not a TTY)

Session commands (sent to the running owner):
  start         Start recording
  stop          Stop recording and transcribe
  toggle        Start recording, or stop when already recording
  report        Generate a structured report from the transcription
  export-json   Write the structured data to the export directory
  export-text   Write the discharge summary to the export directory
  copy          Copy the discharge summary to the clipboard
  status        Print the current session snapshot

Local commands:
  devices       List available input devices
  doctor        Run configuration, audio, and service checks
  version       Print version information
  help          Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/scribe/config.conf)
  --headless      Run the owner without the terminal UI
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
