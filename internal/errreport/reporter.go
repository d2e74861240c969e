// Package errreport records stage failures locally and forwards them to the
// service's error log without ever failing the caller.
package errreport

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/version"
)

const (
	noStackTrace   = "No stack trace"
	defaultTimeout = 5 * time.Second
	timestampFmt   = "2006-01-02T15:04:05.000Z"
)

// Forwarder delivers one record to a remote sink.
type Forwarder interface {
	LogError(ctx context.Context, record domain.ErrorRecord) error
}

// Options configures a Reporter.
type Options struct {
	Forwarder Forwarder
	Logger    *slog.Logger
	URL       string
	UserAgent string
	Timeout   time.Duration
	Now       func() time.Time
}

// Reporter builds ErrorRecords, logs them, and forwards them asynchronously.
type Reporter struct {
	forwarder Forwarder
	logger    *slog.Logger
	url       string
	userAgent string
	timeout   time.Duration
	now       func() time.Time

	pending sync.WaitGroup
}

// New returns a Reporter. A nil Forwarder keeps reporting local only.
func New(opts Options) *Reporter {
	r := &Reporter{
		forwarder: opts.Forwarder,
		logger:    opts.Logger,
		url:       opts.URL,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		now:       opts.Now,
	}
	if r.userAgent == "" {
		r.userAgent = version.UserAgent()
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Report records err under the given stage label and returns the record.
// It never blocks on the network and never returns an error.
func (r *Reporter) Report(err error, stage string) domain.ErrorRecord {
	record := r.Record(err, stage)

	if r.logger != nil {
		r.logger.Error("stage failed",
			"context", record.Context,
			"error", record.Message,
			"stack", record.Stack,
			"timestamp", record.Timestamp,
		)
	}

	if r.forwarder != nil {
		r.pending.Add(1)
		go r.forward(record)
	}
	return record
}

// Record builds the ErrorRecord for err without side effects.
func (r *Reporter) Record(err error, stage string) domain.ErrorRecord {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	return domain.ErrorRecord{
		Message:   message,
		Stack:     stackOf(err),
		Context:   stage,
		Timestamp: r.now().UTC().Format(timestampFmt),
		UserAgent: r.userAgent,
		URL:       r.url,
	}
}

// Flush waits for in-flight forwards or until ctx is done.
func (r *Reporter) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) forward(record domain.ErrorRecord) {
	defer r.pending.Done()
	defer func() {
		if rec := recover(); rec != nil && r.logger != nil {
			r.logger.Warn("error forward panicked", "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.forwarder.LogError(ctx, record); err != nil && r.logger != nil {
		r.logger.Warn("error forward failed", "context", record.Context, "error", err.Error())
	}
}

// stackOf renders the cause chain below err, one cause per line.
func stackOf(err error) string {
	if err == nil {
		return noStackTrace
	}
	var lines []string
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		lines = append(lines, "caused by: "+cause.Error())
	}
	if len(lines) == 0 {
		return noStackTrace
	}
	return strings.Join(lines, "\n")
}
