// Package indicator mirrors session progress as desktop notifications and
// audio cues for headless owners.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/timer"
)

const (
	dispatchTimeout = 400 * time.Millisecond
	queueSize       = 32
	// Persistent notifications stay up until replaced or dismissed.
	persistentTimeoutMS = 300000
	infoTimeoutMS       = 2500
)

type notifyFunc func(ctx context.Context, appName string, replaceID uint32, summary string, body string, timeoutMS int) (uint32, error)

type dismissFunc func(ctx context.Context, id uint32) error

type cueFunc func(ctx context.Context, kind cueKind) error

// Desktop implements session.Observer. Callbacks only enqueue work; one
// worker goroutine performs notification and cue I/O in order.
type Desktop struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	notify  notifyFunc
	dismiss dismissFunc
	cue     cueFunc

	mu             sync.Mutex
	lastState      fsm.State
	notificationID uint32
	closed         bool

	queue chan func(context.Context)
	done  chan struct{}
}

// NewDesktop creates an indicator observer from config and starts its worker.
func NewDesktop(cfg config.IndicatorConfig, logger *slog.Logger) *Desktop {
	return newDesktop(cfg, logger, desktopNotify, desktopDismiss, emitCue)
}

func newDesktop(cfg config.IndicatorConfig, logger *slog.Logger, notify notifyFunc, dismiss dismissFunc, cue cueFunc) *Desktop {
	d := &Desktop{
		cfg:       cfg,
		logger:    logger,
		messages:  indicatorMessagesFromEnv(),
		notify:    notify,
		dismiss:   dismiss,
		cue:       cue,
		lastState: fsm.StateIdle,
		queue:     make(chan func(context.Context), queueSize),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

// Close drains queued work, dismisses any persistent notification and stops
// the worker.
func (d *Desktop) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.queue)
	<-d.done

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	d.hide(ctx)
}

func (d *Desktop) StateChanged(s session.Snapshot) {
	d.mu.Lock()
	prev := d.lastState
	d.lastState = s.State
	d.mu.Unlock()

	if prev == s.State {
		return
	}

	switch s.State {
	case fsm.StateRecording:
		d.enqueue(func(ctx context.Context) {
			d.playCue(ctx, cueStart)
			d.show(ctx, d.messages.recording, "", persistentTimeoutMS)
		})
	case fsm.StateProcessing:
		d.enqueue(func(ctx context.Context) {
			d.playCue(ctx, cueStop)
			d.show(ctx, d.messages.processing, "", persistentTimeoutMS)
		})
	case fsm.StateReporting:
		d.enqueue(func(ctx context.Context) {
			d.show(ctx, d.messages.reporting, "", persistentTimeoutMS)
		})
	case fsm.StateReady:
		summary := ""
		switch prev {
		case fsm.StateProcessing:
			summary = d.messages.transcribed
		case fsm.StateReporting:
			summary = d.messages.reported
		}
		if summary == "" {
			return
		}
		d.enqueue(func(ctx context.Context) {
			d.playCue(ctx, cueComplete)
			d.show(ctx, summary, "", infoTimeoutMS)
		})
	case fsm.StateIdle:
		if prev == fsm.StateError {
			return
		}
		d.enqueue(d.hide)
	}
}

func (d *Desktop) Ticked(t timer.Tick) {
	if t.Crossed != timer.MarkerWarning {
		return
	}
	d.enqueue(func(ctx context.Context) {
		d.playCue(ctx, cueWarning)
		d.show(ctx, d.messages.recording, d.messages.capWarning, persistentTimeoutMS)
	})
}

func (d *Desktop) Notice(n session.Notice) {
	timeout := d.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	summary := strings.TrimSpace(n.Context)
	if summary == "" {
		summary = d.messages.errorText
	}
	d.enqueue(func(ctx context.Context) {
		d.playCue(ctx, cueError)
		d.show(ctx, summary, n.Message, timeout)
	})
}

func (*Desktop) Level(float64) {}

// enqueue drops work once closed or when the worker is saturated.
func (d *Desktop) enqueue(fn func(context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- fn:
	default:
		d.log("indicator queue full; update dropped", nil)
	}
}

func (d *Desktop) loop() {
	defer close(d.done)
	for fn := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		fn(ctx)
		cancel()
	}
}

// show sends a replaceable desktop notification and stores its ID.
func (d *Desktop) show(ctx context.Context, summary string, body string, timeoutMS int) {
	if !d.cfg.Enable {
		return
	}

	d.mu.Lock()
	replaceID := d.notificationID
	d.mu.Unlock()

	appName := strings.TrimSpace(d.cfg.DesktopAppName)
	if appName == "" {
		appName = "scribe"
	}

	id, err := d.notify(ctx, appName, replaceID, summary, body, timeoutMS)
	if err != nil {
		d.log("indicator dispatch failed", err)
		return
	}

	d.mu.Lock()
	d.notificationID = id
	d.mu.Unlock()
}

// hide closes the current desktop notification ID when present.
func (d *Desktop) hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}

	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()

	if id == 0 {
		return
	}
	if err := d.dismiss(ctx, id); err != nil {
		d.log("indicator dismiss failed", err)
	}
}

func (d *Desktop) playCue(ctx context.Context, kind cueKind) {
	if !d.cfg.SoundEnable {
		return
	}
	if err := d.cue(ctx, kind); err != nil {
		d.log("indicator audio cue failed", err)
	}
}

// log emits debug-only indicator failures to the runtime logger.
func (d *Desktop) log(message string, err error) {
	if d.logger == nil {
		return
	}
	if err == nil {
		d.logger.Debug(message)
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
