package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rbright/scribe/internal/audio"
	"github.com/rbright/scribe/internal/cli"
	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/doctor"
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/logging"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/timer"
	"github.com/rbright/scribe/internal/version"
)

const binaryName = "scribe"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		// Client commands stay quiet; the owner and doctor surface warnings.
		if !parsed.Command.Forwarded() {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"config_source", cfgLoaded.Source,
		"log", logRuntime.Path,
	)

	switch {
	case parsed.Command == cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case parsed.Command == cli.CommandDevices:
		return r.commandDevices(ctx)
	case parsed.Command == cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, parsed.Headless, logger)
	case parsed.Command == cli.CommandStatus:
		return r.commandStatus(ctx)
	case parsed.Command.Forwarded():
		return r.forwardOrFail(ctx, string(parsed.Command))
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

// commandStatus prints the owner's snapshot, or "idle" when no owner runs.
func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, err := ipc.Forward(ctx, socketPath, ipc.CommandStatus, 0)
	if errors.Is(err, ipc.ErrNoOwner) {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprint(r.Stdout, formatStatus(resp))
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, err := ipc.Forward(ctx, socketPath, command, 0)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	switch {
	case resp.Path != "":
		fmt.Fprintln(r.Stdout, resp.Path)
	case resp.Message != "":
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// formatStatus renders a status response as "key: value" lines.
func formatStatus(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		state = "idle"
	}

	var b strings.Builder
	fmt.Fprintln(&b, state)
	if len(resp.Snapshot) == 0 {
		return b.String()
	}

	var snap session.Snapshot
	if err := json.Unmarshal(resp.Snapshot, &snap); err != nil {
		return b.String()
	}

	fmt.Fprintf(&b, "session: %s\n", snap.SessionID)
	fmt.Fprintf(&b, "elapsed: %s\n", timer.FormatElapsed(snap.Elapsed))
	if snap.Format != "" {
		fmt.Fprintf(&b, "format: %s\n", snap.Format)
	}
	if snap.HasText {
		fmt.Fprintf(&b, "transcription: %s\n", snap.Transcription)
	}
	fmt.Fprintf(&b, "report: %s\n", yesNo(snap.Controls.Export))
	fmt.Fprintf(&b, "controls: %s\n", controlList(snap.Controls))
	if snap.EnvError != "" {
		fmt.Fprintf(&b, "environment: %s\n", snap.EnvError)
	}
	return b.String()
}

func controlList(c session.Controls) string {
	var enabled []string
	if c.Start {
		enabled = append(enabled, "start")
	}
	if c.Stop {
		enabled = append(enabled, "stop")
	}
	if c.Generate {
		enabled = append(enabled, "report")
	}
	if c.Export {
		enabled = append(enabled, "export")
	}
	if len(enabled) == 0 {
		return "none"
	}
	return strings.Join(enabled, " ")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
