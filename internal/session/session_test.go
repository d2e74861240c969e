package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rbright/scribe/internal/audio"
	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/timer"
	"github.com/stretchr/testify/require"
)

func TestNewControllerRequiresCollaborators(t *testing.T) {
	_, err := NewController(Options{})
	require.ErrorContains(t, err, "capturer")

	_, err = NewController(Options{Capturer: &fakeCapturer{}})
	require.ErrorContains(t, err, "transcriber")

	_, err = NewController(Options{Capturer: &fakeCapturer{}, Transcriber: &fakeService{}})
	require.ErrorContains(t, err, "report generator")
}

func TestNewControllerDefaults(t *testing.T) {
	ctrl, err := NewController(Options{Capturer: &fakeCapturer{}, Transcriber: &fakeService{}, ReportGenerator: &fakeService{}})
	require.NoError(t, err)
	require.Len(t, ctrl.SessionID(), 36)

	snap := ctrl.Snapshot()
	require.Equal(t, fsm.StateIdle, snap.State)
	require.Zero(t, snap.Elapsed)
	require.False(t, snap.HasText)
	require.Nil(t, snap.Report)
	require.Equal(t, Controls{Start: true}, snap.Controls)
}

func TestInitGuardFailureDisablesStart(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Query = fakeQuery{captureErr: errors.New("connect pulse server: refused")}
	})

	err := h.ctrl.Init(context.Background())
	require.ErrorIs(t, err, domain.ErrEnvironmentUnsupported)

	snap := h.ctrl.Snapshot()
	require.False(t, snap.Controls.Start)
	require.Contains(t, snap.EnvError, "does not support audio recording")

	records := h.reporter.all()
	require.Len(t, records, 1)
	require.Equal(t, domain.ContextEnvironment, records[0].context)

	notices := h.observer.allNotices()
	require.Len(t, notices, 1)
	require.Equal(t, domain.ContextEnvironment, notices[0].Context)

	require.ErrorIs(t, h.ctrl.Start(context.Background()), domain.ErrEnvironmentUnsupported)
	require.Zero(t, h.capturer.opens())
	require.Len(t, h.observer.allNotices(), 1)
}

func TestInitRejectsInsecureOrigin(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.ServiceURL = "http://dictation.example.com"
	})

	err := h.ctrl.Init(context.Background())
	require.ErrorIs(t, err, domain.ErrEnvironmentUnsupported)
	require.Contains(t, h.ctrl.Snapshot().EnvError, "HTTPS or localhost")
}

func TestStartAcquisitionFailureStaysIdle(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.capturer.err = errors.New("permission denied")

	err := h.ctrl.Start(context.Background())
	require.ErrorIs(t, err, domain.ErrCaptureAcquisitionFailed)

	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateIdle, snap.State)
	require.True(t, snap.Controls.Start)

	records := h.reporter.all()
	require.Len(t, records, 1)
	require.Equal(t, domain.ContextMicrophone, records[0].context)

	notices := h.observer.allNotices()
	require.Len(t, notices, 1)
	require.Equal(t, "Error accessing microphone: permission denied", notices[0].Message)
}

func TestStartRequestsCaptureParamsAndSelectsFormat(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Query = fakeQuery{supported: map[string]bool{audio.FormatWebMOpus: true, audio.FormatWebM: true}}
	})
	h.init(t)

	require.NoError(t, h.ctrl.Start(context.Background()))

	require.Len(t, h.capturer.params, 1)
	params := h.capturer.params[0]
	require.Equal(t, 44100, params.SampleRate)
	require.Equal(t, 1, params.Channels)
	require.True(t, params.EchoCancellation)
	require.True(t, params.NoiseSuppression)
	require.Equal(t, audio.FormatWebMOpus, params.Format)

	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateRecording, snap.State)
	require.Equal(t, audio.FormatWebMOpus, snap.Format)
	require.Equal(t, Controls{Stop: true}, snap.Controls)
}

func TestStartFallsBackToContainerDefault(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Query = fakeQuery{}
	})
	h.init(t)

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.Equal(t, audio.FormatWebM, h.ctrl.Snapshot().Format)
}

func TestStartRejectedWhileRecording(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	require.NoError(t, h.ctrl.Start(context.Background()))
	err := h.ctrl.Start(context.Background())
	require.ErrorContains(t, err, "invalid transition")
	require.Equal(t, 1, h.capturer.opens())
}

func TestGenerateRejectedWhileMicrophoneIsBeingAcquired(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.report = headacheReport()
	h.record(t, []byte{1, 0})
	require.True(t, h.ctrl.Snapshot().Controls.Generate)

	h.capturer.hold = make(chan struct{})
	h.capturer.entered = make(chan struct{})
	started := make(chan error, 1)
	go func() { started <- h.ctrl.Start(context.Background()) }()
	<-h.capturer.entered

	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateReady, snap.State)
	require.False(t, snap.Controls.Generate)
	require.False(t, snap.Controls.Start)
	require.ErrorIs(t, h.ctrl.GenerateReport(context.Background()), ErrStartInProgress)

	close(h.capturer.hold)
	require.NoError(t, <-started)
	require.Equal(t, fsm.StateRecording, h.ctrl.Snapshot().State)
	require.Zero(t, h.service.reportCalls.Load())
	_, ok := h.ctrl.LastReport()
	require.False(t, ok)
}

func TestFailedAcquisitionReenablesGenerate(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.record(t, []byte{1, 0})

	h.capturer.err = errors.New("device busy")
	require.Error(t, h.ctrl.Start(context.Background()))

	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateReady, snap.State)
	require.True(t, snap.Controls.Generate)
	require.True(t, snap.Controls.Start)
}

func TestStopFromIdleIsRejected(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	require.ErrorContains(t, h.ctrl.Stop(context.Background()), "invalid transition: idle --(stop)--> ?")
}

func TestRecordTranscribeAndGenerate(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.report = headacheReport()

	h.record(t, []byte{1, 0, 2, 0}, []byte{3, 0})

	stream := h.capturer.latest()
	require.True(t, stream.stopped.Load())

	require.Len(t, h.service.payloads, 1)
	payload := h.service.payloads[0]
	require.Equal(t, audio.FormatWAV, payload.Format)
	require.Equal(t, "RIFF", string(payload.Data[:4]))
	require.Equal(t, uint32(44100), binary.LittleEndian.Uint32(payload.Data[24:28]))
	require.Equal(t, []byte{1, 0, 2, 0, 3, 0}, payload.Data[44:])

	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateReady, snap.State)
	require.Equal(t, "patient reports headache", snap.Transcription)
	require.Zero(t, snap.Chunks)
	require.Equal(t, Controls{Start: true, Generate: true}, snap.Controls)

	h.generate(t)

	snap = h.ctrl.Snapshot()
	require.Equal(t, fsm.StateReady, snap.State)
	require.Equal(t, Controls{Start: true, Generate: true, Export: true}, snap.Controls)

	report, ok := h.ctrl.LastReport()
	require.True(t, ok)
	require.Equal(t, headacheReport(), report)
	require.Empty(t, h.reporter.all())
	require.Empty(t, h.observer.allNotices())
}

func TestProcessingDisablesGenerate(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.gate = make(chan struct{})

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.Stop(context.Background()))

	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateProcessing, snap.State)
	require.Equal(t, Controls{}, snap.Controls)
	require.ErrorContains(t, h.ctrl.GenerateReport(context.Background()), "invalid transition")
	require.ErrorContains(t, h.ctrl.Start(context.Background()), "invalid transition")

	close(h.service.gate)
	h.wait(t)
	require.Equal(t, fsm.StateReady, h.ctrl.Snapshot().State)
}

func TestStartResetsElapsedAndChunks(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.transErr = errBoom

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.capturer.latest().chunks <- []byte{1, 2}
	h.ticks.fire(7)
	require.Eventually(t, func() bool {
		snap := h.ctrl.Snapshot()
		return snap.Elapsed == 7 && snap.Chunks == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.ctrl.Stop(context.Background()))
	h.wait(t)
	require.Equal(t, fsm.StateIdle, h.ctrl.Snapshot().State)

	require.NoError(t, h.ctrl.Start(context.Background()))
	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateRecording, snap.State)
	require.Zero(t, snap.Elapsed)
	require.Zero(t, snap.Chunks)
}

func TestEmptyTranscriptionRejectedWithoutNetworkCall(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.text = ""

	h.record(t)
	require.Equal(t, fsm.StateReady, h.ctrl.Snapshot().State)

	err := h.ctrl.GenerateReport(context.Background())
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	require.Zero(t, h.service.reportCalls.Load())

	require.Equal(t, fsm.StateReady, h.ctrl.Snapshot().State)
	records := h.reporter.all()
	require.Len(t, records, 1)
	require.Equal(t, domain.ContextValidation, records[0].context)

	notices := h.observer.allNotices()
	require.Len(t, notices, 1)
	require.Equal(t, "No transcription available to generate report.", notices[0].Message)
}

func TestWhitespaceTranscriptionIsSentForReport(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.text = "  "
	h.service.report = headacheReport()

	h.record(t)
	require.Equal(t, "  ", h.ctrl.Snapshot().Transcription)

	h.generate(t)
	require.EqualValues(t, 1, h.service.reportCalls.Load())
	require.Equal(t, fsm.StateReady, h.ctrl.Snapshot().State)
	require.True(t, h.ctrl.Snapshot().Controls.Export)
	require.Empty(t, h.observer.allNotices())
}

func TestFailedTranscriptionLeavesReportAndExportAsIs(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.report = headacheReport()

	h.record(t, []byte{1, 0})
	h.generate(t)
	before := h.ctrl.Snapshot()
	require.True(t, before.Controls.Export)

	h.service.set(func(f *fakeService) {
		f.transErr = errors.New("/api/transcribe returned HTTP 500: model offline")
	})
	h.record(t, []byte{2, 0})

	after := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateIdle, after.State)
	require.Equal(t, before.Controls.Export, after.Controls.Export)
	require.Equal(t, before.Report, after.Report)
	require.Equal(t, "patient reports headache", after.Transcription)
	require.Zero(t, after.Chunks)

	report, ok := h.ctrl.LastReport()
	require.True(t, ok)
	require.Equal(t, headacheReport(), report)

	records := h.reporter.all()
	require.Len(t, records, 1)
	require.ErrorIs(t, records[0].err, domain.ErrTranscriptionFailed)
	require.Equal(t, domain.ContextTranscription, records[0].context)

	notices := h.observer.allNotices()
	require.Len(t, notices, 1)
	require.Equal(t, "Error transcribing audio: /api/transcribe returned HTTP 500: model offline", notices[0].Message)
}

func TestReportFailureLeavesLastReportUndefined(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.reportErr = errors.New("/api/generate-report returned HTTP 500: upstream")

	h.record(t, []byte{1, 0})
	h.generate(t)

	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateReady, snap.State)
	require.False(t, snap.Controls.Export)
	_, ok := h.ctrl.LastReport()
	require.False(t, ok)

	records := h.reporter.all()
	require.Len(t, records, 1)
	require.ErrorIs(t, records[0].err, domain.ErrReportGenerationFailed)
	require.Equal(t, "Report Generation", records[0].context)

	var sawError bool
	for _, s := range h.observer.allSnapshots() {
		if s.State == fsm.StateError {
			sawError = true
			require.Contains(t, s.LastError, "Error generating report")
		}
	}
	require.True(t, sawError)
}

func TestReportFailureKeepsPreviousReport(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.report = headacheReport()

	h.record(t, []byte{1, 0})
	h.generate(t)

	h.service.set(func(f *fakeService) { f.reportErr = errBoom })
	h.generate(t)

	report, ok := h.ctrl.LastReport()
	require.True(t, ok)
	require.Equal(t, headacheReport(), report)
	require.True(t, h.ctrl.Snapshot().Controls.Export)
}

func TestReportReplacementIsAtomic(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	first := headacheReport()
	second := domain.Report{
		StructuredData: []byte(`{"symptom":"fever"}`),
		NarrativeText:  "Pt. presented with fever.",
	}
	h.service.report = first

	h.record(t, []byte{1, 0})
	h.generate(t)
	h.service.set(func(f *fakeService) { f.report = second })
	h.generate(t)

	report, ok := h.ctrl.LastReport()
	require.True(t, ok)
	require.Equal(t, second, report)

	for _, s := range h.observer.allSnapshots() {
		if s.Report == nil {
			continue
		}
		switch string(s.Report.StructuredData) {
		case string(first.StructuredData):
			require.Equal(t, first.NarrativeText, s.Report.NarrativeText)
		case string(second.StructuredData):
			require.Equal(t, second.NarrativeText, s.Report.NarrativeText)
		default:
			t.Fatalf("unexpected structured data %s", s.Report.StructuredData)
		}
	}
}

func TestLastReportIsACopy(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.report = headacheReport()
	h.record(t, []byte{1, 0})
	h.generate(t)

	report, _ := h.ctrl.LastReport()
	report.StructuredData[2] = 'X'

	again, _ := h.ctrl.LastReport()
	require.Equal(t, headacheReport(), again)
}

func TestReRecordingKeepsStaleResultsUntilSuperseded(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.report = headacheReport()

	h.record(t, []byte{1, 0})
	h.generate(t)

	h.service.set(func(f *fakeService) {
		f.text = "patient reports fever"
		f.gate = make(chan struct{})
	})
	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.Stop(context.Background()))

	mid := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateProcessing, mid.State)
	require.Equal(t, "patient reports headache", mid.Transcription)
	require.NotNil(t, mid.Report)
	require.True(t, mid.Controls.Export)

	close(h.service.gate)
	h.wait(t)

	done := h.ctrl.Snapshot()
	require.Equal(t, "patient reports fever", done.Transcription)
	require.Nil(t, done.Report)
	require.False(t, done.Controls.Export)
}

func TestHardCapStopsOnceAtThreeHundredSeconds(t *testing.T) {
	var logs bytes.Buffer
	h := newHarness(t, func(o *Options) {
		o.Logger = slog.New(slog.NewJSONHandler(&logs, nil))
	})
	h.init(t)
	h.service.gate = make(chan struct{})

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ticks.fire(301)

	waitForState(t, h.ctrl, fsm.StateProcessing)
	require.Eventually(t, func() bool {
		return len(h.observer.allNotices()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Give a stray 301st tick the chance to land.
	time.Sleep(20 * time.Millisecond)

	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateProcessing, snap.State)
	require.Equal(t, 300, snap.Elapsed)
	require.Equal(t, timer.MarkerCap, snap.Marker)
	require.True(t, h.capturer.latest().stopped.Load())

	notices := h.observer.allNotices()
	require.Len(t, notices, 1)
	require.Equal(t, capNotice, notices[0].Message)

	require.Equal(t, []timer.Marker{timer.MarkerInfo, timer.MarkerWarning, timer.MarkerCap}, h.observer.crossed())
	require.Equal(t, 1, strings.Count(logs.String(), capWarningLog))

	close(h.service.gate)
	h.wait(t)
	require.Equal(t, fsm.StateReady, h.ctrl.Snapshot().State)
	require.Equal(t, 300, h.ctrl.Snapshot().Elapsed)
}

func TestThresholdsDoNotFireAfterManualStop(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ticks.fire(119)
	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().Elapsed == 119
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.ctrl.Stop(context.Background()))
	h.wait(t)
	h.ticks.fire(5)
	time.Sleep(20 * time.Millisecond)

	require.Empty(t, h.observer.crossed())
	require.Equal(t, 119, h.ctrl.Snapshot().Elapsed)
}

func TestPumpPublishesLevels(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	h.record(t, []byte{0, 64}, []byte{0, 0})
	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	require.Equal(t, 2, h.observer.levels)
}

func TestToggle(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	require.NoError(t, h.ctrl.Toggle(context.Background()))
	require.Equal(t, fsm.StateRecording, h.ctrl.Snapshot().State)

	require.NoError(t, h.ctrl.Toggle(context.Background()))
	h.wait(t)
	require.Equal(t, fsm.StateReady, h.ctrl.Snapshot().State)
}

func TestCloseReleasesCapture(t *testing.T) {
	h := newHarness(t)
	h.init(t)

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.Close()

	require.True(t, h.capturer.latest().stopped.Load())
	snap := h.ctrl.Snapshot()
	require.Equal(t, fsm.StateIdle, snap.State)
	require.Zero(t, snap.Chunks)
}

func TestCallerCancellationDoesNotAbortTranscription(t *testing.T) {
	h := newHarness(t)
	h.init(t)
	h.service.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.ctrl.Start(ctx))
	require.NoError(t, h.ctrl.Stop(ctx))
	cancel()

	close(h.service.gate)
	h.wait(t)
	require.Equal(t, fsm.StateReady, h.ctrl.Snapshot().State)
}

func TestObserversFanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := Observers{a, b}

	obs.StateChanged(Snapshot{State: fsm.StateIdle})
	obs.Ticked(timer.Tick{Elapsed: 1})
	obs.Notice(Notice{Message: "hi"})
	obs.Level(0.5)

	for _, o := range []*recordingObserver{a, b} {
		require.Len(t, o.allSnapshots(), 1)
		require.Len(t, o.allNotices(), 1)
		require.Equal(t, 1, o.levels)
	}
}
