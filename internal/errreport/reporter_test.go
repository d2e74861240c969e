package errreport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rbright/scribe/internal/domain"
	"github.com/stretchr/testify/require"
)

type recordingForwarder struct {
	mu      sync.Mutex
	records []domain.ErrorRecord
	err     error
	block   chan struct{}
}

func (f *recordingForwarder) LogError(ctx context.Context, record domain.ErrorRecord) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return f.err
}

func (f *recordingForwarder) Records() []domain.ErrorRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ErrorRecord(nil), f.records...)
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("x", 3600))
}

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestReportBuildsRecordAndForwards(t *testing.T) {
	forwarder := &recordingForwarder{}
	logger, logs := newBufferLogger()
	reporter := New(Options{
		Forwarder: forwarder,
		Logger:    logger,
		URL:       "http://127.0.0.1:5000",
		UserAgent: "scribe/test (linux/amd64)",
		Now:       fixedNow,
	})

	cause := errors.New("HTTP 500")
	err := domain.NewError(domain.ErrReportGenerationFailed, domain.ContextReport, cause)
	record := reporter.Report(err, domain.ContextReport)
	require.NoError(t, reporter.Flush(context.Background()))

	require.Equal(t, "report generation failed: HTTP 500", record.Message)
	require.Equal(t, "caused by: HTTP 500", record.Stack)
	require.Equal(t, "Report Generation", record.Context)
	require.Equal(t, "2026-03-04T04:06:07.890Z", record.Timestamp)
	require.Equal(t, "scribe/test (linux/amd64)", record.UserAgent)
	require.Equal(t, "http://127.0.0.1:5000", record.URL)

	require.Equal(t, []domain.ErrorRecord{record}, forwarder.Records())
	require.Contains(t, logs.String(), `"level":"ERROR"`)
	require.Contains(t, logs.String(), `"context":"Report Generation"`)
}

func TestReportSwallowsForwardFailure(t *testing.T) {
	forwarder := &recordingForwarder{err: errors.New("connection refused")}
	logger, logs := newBufferLogger()
	reporter := New(Options{Forwarder: forwarder, Logger: logger, Now: fixedNow})

	reporter.Report(errors.New("boom"), domain.ContextTranscription)
	require.NoError(t, reporter.Flush(context.Background()))

	require.Len(t, forwarder.Records(), 1)
	require.Contains(t, logs.String(), `"level":"WARN"`)
	require.Contains(t, logs.String(), "error forward failed")
}

func TestReportDoesNotBlockOnSlowForwarder(t *testing.T) {
	forwarder := &recordingForwarder{block: make(chan struct{})}
	reporter := New(Options{Forwarder: forwarder, Timeout: time.Minute})

	done := make(chan struct{})
	go func() {
		reporter.Report(errors.New("boom"), domain.ContextMicrophone)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report blocked on forwarder")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, reporter.Flush(ctx), context.DeadlineExceeded)

	close(forwarder.block)
	require.NoError(t, reporter.Flush(context.Background()))
}

func TestReportWithoutForwarderOrLogger(t *testing.T) {
	reporter := New(Options{Now: fixedNow})
	record := reporter.Report(nil, domain.ContextValidation)
	require.Equal(t, "unknown error", record.Message)
	require.Equal(t, "No stack trace", record.Stack)
	require.Contains(t, record.UserAgent, "scribe/")
	require.NoError(t, reporter.Flush(context.Background()))
}

func TestStackOf(t *testing.T) {
	require.Equal(t, "No stack trace", stackOf(errors.New("flat")))

	inner := errors.New("dial tcp: refused")
	mid := fmt.Errorf("POST /api/transcribe: %w", inner)
	outer := fmt.Errorf("transcribe: %w", mid)
	require.Equal(t, "caused by: POST /api/transcribe: dial tcp: refused\ncaused by: dial tcp: refused", stackOf(outer))
}
