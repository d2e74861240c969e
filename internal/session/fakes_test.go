package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/scribe/internal/audio"
	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/timer"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	chunks  chan []byte
	once    sync.Once
	stopped atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 64)}
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }
func (s *fakeStream) Device() audio.Device  { return audio.Device{ID: "test-mic"} }

func (s *fakeStream) Stop() error {
	s.once.Do(func() {
		s.stopped.Store(true)
		close(s.chunks)
	})
	return nil
}

type fakeCapturer struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
	params  []audio.Params

	// When hold is set, Open signals entered and then blocks until hold closes.
	hold    chan struct{}
	entered chan struct{}
}

func (f *fakeCapturer) Open(_ context.Context, params audio.Params) (audio.Stream, error) {
	if f.hold != nil {
		f.entered <- struct{}{}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	stream := newFakeStream()
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeCapturer) latest() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

func (f *fakeCapturer) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.params)
}

type fakeQuery struct {
	captureErr error
	supported  map[string]bool
}

func (q fakeQuery) CaptureAvailable(context.Context) error { return q.captureErr }
func (q fakeQuery) SupportsFormat(f string) bool           { return q.supported[f] }

// fakeService answers both orchestrators. A non-nil gate holds each call
// until the test releases it.
type fakeService struct {
	mu          sync.Mutex
	text        string
	transErr    error
	report      domain.Report
	reportErr   error
	gate        chan struct{}
	payloads    []domain.Audio
	reportCalls atomic.Int32
}

func (f *fakeService) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) Transcribe(ctx context.Context, payload domain.Audio) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.text, f.transErr
}

func (f *fakeService) GenerateReport(ctx context.Context, _ string) (domain.Report, error) {
	f.reportCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return domain.Report{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report, f.reportErr
}

func (f *fakeService) set(fn func(*fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type reportedError struct {
	err     error
	context string
}

type fakeReporter struct {
	mu      sync.Mutex
	records []reportedError
}

func (f *fakeReporter) Report(err error, stage string) domain.ErrorRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, reportedError{err: err, context: stage})
	return domain.ErrorRecord{Message: err.Error(), Context: stage}
}

func (f *fakeReporter) all() []reportedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reportedError(nil), f.records...)
}

type recordingObserver struct {
	mu        sync.Mutex
	snapshots []Snapshot
	ticks     []timer.Tick
	notices   []Notice
	levels    int
}

func (o *recordingObserver) StateChanged(s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots = append(o.snapshots, s)
}

func (o *recordingObserver) Ticked(t timer.Tick) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks = append(o.ticks, t)
}

func (o *recordingObserver) Notice(n Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, n)
}

func (o *recordingObserver) Level(float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.levels++
}

func (o *recordingObserver) allNotices() []Notice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Notice(nil), o.notices...)
}

func (o *recordingObserver) allSnapshots() []Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Snapshot(nil), o.snapshots...)
}

func (o *recordingObserver) crossed() []timer.Marker {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []timer.Marker
	for _, t := range o.ticks {
		if t.Crossed != timer.MarkerNone {
			out = append(out, t.Crossed)
		}
	}
	return out
}

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type tickerSource struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (s *tickerSource) New(time.Duration) timer.Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	ft := &fakeTicker{ch: make(chan time.Time, 512)}
	s.tickers = append(s.tickers, ft)
	return ft
}

func (s *tickerSource) fire(n int) {
	s.mu.Lock()
	ft := s.tickers[len(s.tickers)-1]
	s.mu.Unlock()
	for i := 0; i < n; i++ {
		ft.ch <- time.Time{}
	}
}

type harness struct {
	ctrl     *Controller
	capturer *fakeCapturer
	service  *fakeService
	reporter *fakeReporter
	observer *recordingObserver
	ticks    *tickerSource
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	h := &harness{
		capturer: &fakeCapturer{},
		service:  &fakeService{text: "patient reports headache"},
		reporter: &fakeReporter{},
		observer: &recordingObserver{},
		ticks:    &tickerSource{},
	}
	opts := Options{
		Capturer:        h.capturer,
		Query:           fakeQuery{supported: map[string]bool{audio.FormatWAV: true}},
		Transcriber:     h.service,
		ReportGenerator: h.service,
		Reporter:        h.reporter,
		Observer:        h.observer,
		SessionID:       "session-test",
		ServiceURL:      "http://localhost:5000",
		Timeout:         5 * time.Second,
		NewTicker:       h.ticks.New,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	ctrl, err := NewController(opts)
	require.NoError(t, err)
	h.ctrl = ctrl
	t.Cleanup(ctrl.Close)
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Init(context.Background()))
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.ctrl.Wait(ctx))
}

// record runs one capture with the given fragments through to Ready.
func (h *harness) record(t *testing.T, fragments ...[]byte) {
	t.Helper()
	require.NoError(t, h.ctrl.Start(context.Background()))
	stream := h.capturer.latest()
	for _, f := range fragments {
		stream.chunks <- f
	}
	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().Chunks == len(fragments)
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, h.ctrl.Stop(context.Background()))
	h.wait(t)
}

func (h *harness) generate(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.GenerateReport(context.Background()))
	h.wait(t)
}

func waitForState(t *testing.T, ctrl *Controller, want fsm.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ctrl.Snapshot().State == want
	}, 2*time.Second, 5*time.Millisecond, "state never reached %s", want)
}

var errBoom = errors.New("boom")

func headacheReport() domain.Report {
	return domain.Report{
		StructuredData: []byte(`{"symptom":"headache"}`),
		NarrativeText:  "Pt. presented with headache.",
	}
}
