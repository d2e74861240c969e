package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/timer"
)

// textObserver prints session progress as plain lines for headless owners.
// Notices go to errOut so scripts can separate them.
type textObserver struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	last   fsm.State
}

func newTextObserver(out io.Writer, errOut io.Writer) *textObserver {
	return &textObserver{out: out, errOut: errOut, last: fsm.StateIdle}
}

func (o *textObserver) StateChanged(s session.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.last
	o.last = s.State
	if prev == s.State || s.State == fsm.StateError {
		return
	}

	fmt.Fprintf(o.out, "state: %s\n", s.State)
	if s.State != fsm.StateReady {
		return
	}
	switch prev {
	case fsm.StateProcessing:
		fmt.Fprintf(o.out, "transcription: %s\n", s.Transcription)
	case fsm.StateReporting:
		if s.Report != nil {
			fmt.Fprintf(o.out, "report: %s\n", s.Report.NarrativeText)
		}
	}
}

func (o *textObserver) Ticked(t timer.Tick) {
	if t.Crossed == timer.MarkerNone {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, "elapsed: %s (%s)\n", timer.FormatElapsed(t.Elapsed), t.Crossed)
}

func (o *textObserver) Notice(n session.Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.errOut, "notice [%s]: %s\n", n.Context, n.Message)
}

func (*textObserver) Level(float64) {}
