package session

import (
	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/timer"
)

// Controls mirrors which user actions are currently accepted.
type Controls struct {
	Start    bool `json:"start"`
	Stop     bool `json:"stop"`
	Generate bool `json:"generate"`
	Export   bool `json:"export"`
}

// Snapshot is a read-only copy of the session published to observers.
type Snapshot struct {
	SessionID     string         `json:"session_id"`
	State         fsm.State      `json:"state"`
	Elapsed       int            `json:"elapsed_s"`
	Marker        timer.Marker   `json:"-"`
	Format        string         `json:"format,omitempty"`
	Chunks        int            `json:"chunks"`
	Transcription string         `json:"transcription,omitempty"`
	HasText       bool           `json:"has_transcription"`
	Report        *domain.Report `json:"-"`
	Controls      Controls       `json:"controls"`
	EnvError      string         `json:"environment_error,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
}

// Notice is a blocking user-facing message naming the stage it came from.
type Notice struct {
	Context string
	Message string
}

// Observer receives session updates. Callbacks must not block and must not
// call back into the Controller synchronously.
type Observer interface {
	StateChanged(Snapshot)
	Ticked(timer.Tick)
	Notice(Notice)
	Level(float64)
}

// Observers fans every callback out to each member in order.
type Observers []Observer

func (o Observers) StateChanged(s Snapshot) {
	for _, obs := range o {
		obs.StateChanged(s)
	}
}

func (o Observers) Ticked(t timer.Tick) {
	for _, obs := range o {
		obs.Ticked(t)
	}
}

func (o Observers) Notice(n Notice) {
	for _, obs := range o {
		obs.Notice(n)
	}
}

func (o Observers) Level(v float64) {
	for _, obs := range o {
		obs.Level(v)
	}
}

// noopObserver preserves controller flow when no presentation is wired.
type noopObserver struct{}

func (noopObserver) StateChanged(Snapshot) {}
func (noopObserver) Ticked(timer.Tick)     {}
func (noopObserver) Notice(Notice)         {}
func (noopObserver) Level(float64)         {}
