package session

import (
	"context"
	"errors"

	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/fsm"
)

const noTranscriptionMessage = "No transcription available to generate report."

// ErrStartInProgress rejects report generation while Start is acquiring the
// microphone; the session is about to leave Ready.
var ErrStartInProgress = errors.New("recording is starting; report generation is unavailable")

// GenerateReport validates the current transcription and dispatches report
// generation in the background.
func (c *Controller) GenerateReport(ctx context.Context) error {
	c.mu.Lock()
	if _, err := fsm.Transition(c.state, fsm.EventGenerate); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.starting {
		c.mu.Unlock()
		return ErrStartInProgress
	}
	text := c.text
	if text == "" {
		c.mu.Unlock()
		failure := domain.NewError(domain.ErrValidationFailed, domain.ContextValidation, errors.New("transcription is empty"))
		c.surface(failure, domain.ContextValidation, noTranscriptionMessage)
		c.observer.StateChanged(c.Snapshot())
		return failure
	}
	_ = c.transitionLocked(fsm.EventGenerate)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.observer.StateChanged(snap)

	c.inflight.Add(1)
	go c.runReport(context.WithoutCancel(ctx), text)
	return nil
}

// runReport owns the Reporting state. lastReport changes only on success,
// and both of its fields change together.
func (c *Controller) runReport(ctx context.Context, text string) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report, err := c.reports.GenerateReport(ctx, text)

	c.mu.Lock()
	if err != nil {
		_ = c.transitionLocked(fsm.EventFail)
		c.mu.Unlock()

		failure := domain.NewError(domain.ErrReportGenerationFailed, domain.ContextReport, err)
		c.surface(failure, domain.ContextReport, "Error generating report: "+failure.Cause())
		c.observer.StateChanged(c.Snapshot())
		return
	}

	if terr := c.transitionLocked(fsm.EventReported); terr != nil {
		c.mu.Unlock()
		c.logWarn("report result dropped", "error", terr.Error())
		return
	}
	stored := report.Clone()
	c.report = &stored
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logInfo("report generated", "narrative_chars", len(report.NarrativeText))
	c.observer.StateChanged(snap)
}
