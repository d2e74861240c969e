// Package session owns the single dictation session: capture, elapsed-time
// policy, and the transcription and report orchestration built on top of it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/scribe/internal/audio"
	"github.com/rbright/scribe/internal/capability"
	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/timer"
)

const (
	defaultTimeout = 2 * time.Minute

	capNotice     = "Recording automatically stopped at 5 minutes. For longer dictations, please record in segments."
	capWarningLog = "recording will auto-stop in 30 seconds"
)

// Capturer opens the microphone.
type Capturer interface {
	Open(ctx context.Context, params audio.Params) (audio.Stream, error)
}

// Transcriber converts one finalized audio artifact into text.
type Transcriber interface {
	Transcribe(ctx context.Context, payload domain.Audio) (string, error)
}

// ReportGenerator turns transcription text into a structured result.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, transcription string) (domain.Report, error)
}

// Reporter records stage failures. It must not block.
type Reporter interface {
	Report(err error, context string) domain.ErrorRecord
}

// Options wires a Controller. Capturer, Transcriber, and ReportGenerator are required.
type Options struct {
	Capturer        Capturer
	Query           capability.Query
	Transcriber     Transcriber
	ReportGenerator ReportGenerator
	Reporter        Reporter
	Observer        Observer
	Logger          *slog.Logger

	SessionID  string
	ServiceURL string
	Formats    []string
	Params     audio.Params
	Timeout    time.Duration
	NewTicker  timer.TickerFunc
}

// Controller serializes every mutation of the one Session it owns.
type Controller struct {
	capturer    Capturer
	query       capability.Query
	transcriber Transcriber
	reports     ReportGenerator
	reporter    Reporter
	observer    Observer
	logger      *slog.Logger

	sessionID  string
	serviceURL string
	formats    []string
	params     audio.Params
	timeout    time.Duration
	tracker    *timer.Tracker

	// startMu spans device acquisition so two starts cannot race.
	startMu sync.Mutex

	mu       sync.Mutex
	state    fsm.State
	starting bool // microphone acquisition in flight; blocks GenerateReport
	guardErr error
	format   string
	active   audio.Params
	marker   timer.Marker
	chunks   [][]byte
	text     string
	hasText  bool
	report   *domain.Report
	stream   audio.Stream
	pumpDone chan struct{}

	inflight sync.WaitGroup
}

// NewController builds an idle controller with safe defaults for optional collaborators.
func NewController(opts Options) (*Controller, error) {
	if opts.Capturer == nil {
		return nil, errors.New("session: capturer is required")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("session: transcriber is required")
	}
	if opts.ReportGenerator == nil {
		return nil, errors.New("session: report generator is required")
	}

	c := &Controller{
		capturer:    opts.Capturer,
		query:       opts.Query,
		transcriber: opts.Transcriber,
		reports:     opts.ReportGenerator,
		reporter:    opts.Reporter,
		observer:    opts.Observer,
		logger:      opts.Logger,
		sessionID:   opts.SessionID,
		serviceURL:  opts.ServiceURL,
		formats:     opts.Formats,
		params:      opts.Params,
		timeout:     opts.Timeout,
		state:       fsm.StateIdle,
	}
	if c.observer == nil {
		c.observer = noopObserver{}
	}
	if c.reporter == nil {
		c.reporter = logOnlyReporter{logger: opts.Logger}
	}
	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}
	if len(c.formats) == 0 {
		c.formats = capability.DefaultFormats
	}
	if c.params.SampleRate == 0 {
		c.params = audio.DefaultParams()
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	c.tracker = timer.NewTracker(c.onTick, opts.NewTicker)
	return c, nil
}

// SessionID identifies this session in logs and service requests.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Init runs the capability guard. A failure disables Start for the lifetime
// of the controller; everything else stays usable.
func (c *Controller) Init(ctx context.Context) error {
	err := capability.Check(ctx, c.query, c.serviceURL)

	c.mu.Lock()
	c.guardErr = err
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.surface(err, domain.ContextEnvironment, noticeMessage(err))
	} else {
		c.logInfo("capability check passed", "format", capability.SelectFormat(c.query, c.formats))
	}
	c.observer.StateChanged(snap)
	return err
}

// Start acquires the microphone and moves Idle/Ready to Recording.
func (c *Controller) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.guardErr != nil {
		err := c.guardErr
		c.mu.Unlock()
		return err
	}
	if _, err := fsm.Transition(c.state, fsm.EventStart); err != nil {
		c.mu.Unlock()
		return err
	}
	c.starting = true
	c.mu.Unlock()
	defer c.clearStarting()

	params := c.params
	params.Format = capability.SelectFormat(c.query, c.formats)

	stream, err := c.capturer.Open(context.WithoutCancel(ctx), params)
	if err != nil {
		c.clearStarting()
		failure := domain.NewError(domain.ErrCaptureAcquisitionFailed, domain.ContextMicrophone, err)
		c.surface(failure, domain.ContextMicrophone, "Error accessing microphone: "+failure.Cause())
		return failure
	}

	c.mu.Lock()
	if err := c.transitionLocked(fsm.EventStart); err != nil {
		c.mu.Unlock()
		_ = stream.Stop()
		return err
	}
	c.starting = false
	done := make(chan struct{})
	c.chunks = nil
	c.stream = stream
	c.pumpDone = done
	c.format = params.Format
	c.active = params
	c.marker = timer.MarkerNone
	c.tracker.Start()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	go c.pump(stream, done)

	c.logInfo("recording started", "device", stream.Device().ID, "format", params.Format)
	c.observer.StateChanged(snap)
	return nil
}

func (c *Controller) clearStarting() {
	c.mu.Lock()
	c.starting = false
	c.mu.Unlock()
}

// Stop ends capture and dispatches transcription in the background.
func (c *Controller) Stop(ctx context.Context) error {
	return c.stop(ctx, "manual")
}

func (c *Controller) stop(ctx context.Context, reason string) error {
	c.mu.Lock()
	if err := c.transitionLocked(fsm.EventStop); err != nil {
		c.mu.Unlock()
		return err
	}
	stream := c.stream
	done := c.pumpDone
	params := c.active
	c.stream = nil
	c.pumpDone = nil
	c.mu.Unlock()

	c.tracker.Stop()
	if err := stream.Stop(); err != nil {
		c.logWarn("stop capture stream failed", "error", err.Error())
	}
	<-done

	c.mu.Lock()
	payload := audio.Finalize(c.chunks, params)
	chunkCount := len(c.chunks)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logInfo("recording stopped",
		"reason", reason,
		"elapsed_s", c.tracker.Elapsed(),
		"chunks", chunkCount,
		"bytes", len(payload.Data),
	)
	c.observer.StateChanged(snap)

	c.inflight.Add(1)
	go c.runTranscription(context.WithoutCancel(ctx), payload)
	return nil
}

// Toggle starts when idle or ready and stops when recording.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == fsm.StateRecording {
		return c.Stop(ctx)
	}
	return c.Start(ctx)
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LastReport returns a copy of the last successful report, if any.
func (c *Controller) LastReport() (domain.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.report == nil {
		return domain.Report{}, false
	}
	return c.report.Clone(), true
}

// Wait blocks until background orchestration finishes or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the microphone if a capture is still running.
func (c *Controller) Close() {
	c.mu.Lock()
	stream := c.stream
	done := c.pumpDone
	if stream != nil {
		_ = c.transitionLocked(fsm.EventFail)
		c.stream = nil
		c.pumpDone = nil
		c.chunks = nil
	}
	c.mu.Unlock()

	c.tracker.Stop()
	if stream == nil {
		return
	}
	_ = stream.Stop()
	<-done
	c.logInfo("capture released on shutdown")
}

func (c *Controller) pump(stream audio.Stream, done chan<- struct{}) {
	defer close(done)
	for chunk := range stream.Chunks() {
		c.mu.Lock()
		c.chunks = append(c.chunks, chunk)
		c.mu.Unlock()
		c.observer.Level(audio.Level(chunk))
	}
}

func (c *Controller) onTick(tick timer.Tick) {
	c.mu.Lock()
	if c.state != fsm.StateRecording {
		c.mu.Unlock()
		return
	}
	c.marker = tick.Marker
	c.mu.Unlock()

	c.observer.Ticked(tick)

	switch tick.Crossed {
	case timer.MarkerWarning:
		c.logWarn(capWarningLog, "elapsed_s", tick.Elapsed)
	case timer.MarkerCap:
		if err := c.stop(context.Background(), "hard cap"); err != nil {
			c.logWarn("automatic stop rejected", "error", err.Error())
			return
		}
		c.observer.Notice(Notice{Context: "Recording", Message: capNotice})
	}
}

// transitionLocked applies one FSM event. Callers hold c.mu.
func (c *Controller) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.logInfo("state transition", "from", string(c.state), "event", string(event), "to", string(next))
	c.state = next
	return nil
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:     c.sessionID,
		State:         c.state,
		Elapsed:       c.tracker.Elapsed(),
		Marker:        c.marker,
		Format:        c.format,
		Chunks:        len(c.chunks),
		Transcription: c.text,
		HasText:       c.hasText,
		Controls: Controls{
			Start:    c.guardErr == nil && !c.starting && (c.state == fsm.StateIdle || c.state == fsm.StateReady),
			Stop:     c.state == fsm.StateRecording,
			Generate: c.state == fsm.StateReady && !c.starting,
			Export:   c.report != nil,
		},
	}
	if c.report != nil {
		report := c.report.Clone()
		snap.Report = &report
	}
	if c.guardErr != nil {
		snap.EnvError = noticeMessage(c.guardErr)
	}
	return snap
}

// surface reports a failure and shows exactly one notice for it.
func (c *Controller) surface(err error, stage string, message string) {
	c.reporter.Report(err, stage)

	snap := c.Snapshot()
	snap.State = fsm.StateError
	snap.LastError = message
	c.observer.StateChanged(snap)
	c.observer.Notice(Notice{Context: stage, Message: message})
}

func noticeMessage(err error) string {
	var failure *domain.Error
	if errors.As(err, &failure) {
		return failure.Cause()
	}
	return err.Error()
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, append(args, "session_id", c.sessionID)...)
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, append(args, "session_id", c.sessionID)...)
}

// logOnlyReporter keeps failures in the local log when no Reporter is wired.
type logOnlyReporter struct {
	logger *slog.Logger
}

func (r logOnlyReporter) Report(err error, stage string) domain.ErrorRecord {
	record := domain.ErrorRecord{Message: err.Error(), Context: stage}
	if r.logger != nil {
		r.logger.Error("stage failed", "context", stage, "error", err.Error())
	}
	return record
}
