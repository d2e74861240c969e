package session

import (
	"context"

	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/fsm"
)

// runTranscription owns the Processing state for one finalized capture.
func (c *Controller) runTranscription(ctx context.Context, payload domain.Audio) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.transcriber.Transcribe(ctx, payload)

	c.mu.Lock()
	c.chunks = nil
	if err != nil {
		_ = c.transitionLocked(fsm.EventFail)
		c.mu.Unlock()

		failure := domain.NewError(domain.ErrTranscriptionFailed, domain.ContextTranscription, err)
		c.surface(failure, domain.ContextTranscription, "Error transcribing audio: "+failure.Cause())
		c.observer.StateChanged(c.Snapshot())
		return
	}

	if terr := c.transitionLocked(fsm.EventTranscribed); terr != nil {
		c.mu.Unlock()
		c.logWarn("transcription result dropped", "error", terr.Error())
		return
	}
	c.text = text
	c.hasText = true
	// The new transcription supersedes any report generated from the old one.
	c.report = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logInfo("transcription complete", "chars", len(text))
	c.observer.StateChanged(snap)
}
