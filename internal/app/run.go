package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/rbright/scribe/internal/audio"
	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/errreport"
	"github.com/rbright/scribe/internal/export"
	"github.com/rbright/scribe/internal/indicator"
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/service"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/tui"
	"github.com/rbright/scribe/internal/version"
)

const shutdownTimeout = 5 * time.Second

// commandRun becomes the owner: it holds the socket and the controller until
// ctx is cancelled or the TUI quits.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, headless bool, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	sessionID := uuid.NewString()
	timeout := time.Duration(cfg.Service.TimeoutMS) * time.Millisecond

	client, err := service.New(service.Options{
		BaseURL:        cfg.Service.BaseURL,
		TranscribePath: cfg.Service.TranscribePath,
		ReportPath:     cfg.Service.ReportPath,
		LogErrorPath:   cfg.Service.LogErrorPath,
		HealthPath:     cfg.Service.HealthPath,
		Timeout:        timeout,
		SessionID:      sessionID,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	reporter := errreport.New(errreport.Options{
		Forwarder: client,
		Logger:    logger.With("session_id", sessionID),
		URL:       client.BaseURL(),
		UserAgent: version.UserAgent(),
	})

	interactive := !headless && isTerminal(r.Stdout)

	var (
		observers session.Observers
		bridge    *tui.Bridge
		desktop   *indicator.Desktop
	)
	if interactive {
		bridge = tui.NewBridge()
		observers = append(observers, bridge)
	} else {
		observers = append(observers, newTextObserver(r.Stdout, r.Stderr))
	}
	if cfg.Indicator.Enable || cfg.Indicator.SoundEnable {
		desktop = indicator.NewDesktop(cfg.Indicator, logger)
		observers = append(observers, desktop)
	}

	recorder := audio.NewRecorder(cfg.Audio.Input, cfg.Audio.Fallback, logger)
	controller, err := session.NewController(session.Options{
		Capturer:        recorder,
		Query:           recorder,
		Transcriber:     client,
		ReportGenerator: client,
		Reporter:        reporter,
		Observer:        observers,
		Logger:          logger,
		SessionID:       sessionID,
		ServiceURL:      client.BaseURL(),
		Formats:         cfg.Audio.Formats,
		Params: audio.Params{
			SampleRate:       cfg.Audio.SampleRate,
			Channels:         1,
			EchoCancellation: cfg.Audio.EchoCancellation,
			NoiseSuppression: cfg.Audio.NoiseSuppression,
		},
		Timeout: timeout,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	exportDir, err := config.ExportDir(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	exports := export.NewManager(controller, export.Options{
		Dir:       exportDir,
		Clipboard: cfg.Export.Clipboard.Argv,
		Logger:    logger,
	})
	owner := newOwner(controller, exports, logger)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, owner, logger)
	}()

	if bridge != nil {
		// Init publishes through the bridge; messages wait there until the
		// program's event loop starts.
		program := tea.NewProgram(
			tui.New(owner, controller.Snapshot()),
			tea.WithAltScreen(),
			tea.WithContext(ctx),
		)
		go bridge.Run(program.Send)
		_ = controller.Init(ctx)
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error("terminal ui failed", "error", err.Error())
			fmt.Fprintf(r.Stderr, "error: terminal ui: %v\n", err)
		}
	} else {
		_ = controller.Init(ctx)
		fmt.Fprintf(r.Stdout, "scribe owner ready (session %s, socket %s)\n", sessionID, socketPath)
		<-ctx.Done()
	}

	serverCancel()
	serverErr := <-serverErrCh

	r.shutdown(controller, reporter, logger)
	if bridge != nil {
		bridge.Close()
	}
	if desktop != nil {
		desktop.Close()
	}

	if serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	return 0
}

// shutdown releases the microphone and gives in-flight service calls and
// error forwards a bounded window to finish.
func (r Runner) shutdown(controller *session.Controller, reporter *errreport.Reporter, logger *slog.Logger) {
	controller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := controller.Wait(ctx); err != nil {
		logger.Warn("in-flight requests abandoned on shutdown", "error", err.Error())
	}
	if err := reporter.Flush(ctx); err != nil {
		logger.Warn("error forwards abandoned on shutdown", "error", err.Error())
	}

	snap := controller.Snapshot()
	logger.Info("owner stopped", "session_id", snap.SessionID, "state", snap.State, "has_transcription", snap.HasText)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
