package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/timer"
)

const bridgeBuffer = 256

// Bridge adapts session.Observer callbacks into bubbletea messages. Callbacks
// never block: messages are buffered and forwarded in order by Run. Level
// samples are dropped when the buffer is full; everything else waits.
type Bridge struct {
	msgs chan tea.Msg

	mu     sync.Mutex
	closed bool
}

func NewBridge() *Bridge {
	return &Bridge{msgs: make(chan tea.Msg, bridgeBuffer)}
}

// Run forwards buffered messages to send until Close.
func (b *Bridge) Run(send func(tea.Msg)) {
	for msg := range b.msgs {
		send(msg)
	}
}

func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.msgs)
}

func (b *Bridge) StateChanged(s session.Snapshot) { b.push(SnapshotMsg{Snapshot: s}, true) }
func (b *Bridge) Ticked(t timer.Tick)             { b.push(TickMsg{Tick: t}, true) }
func (b *Bridge) Notice(n session.Notice)         { b.push(NoticeMsg{Notice: n}, true) }
func (b *Bridge) Level(v float64)                 { b.push(LevelMsg{Level: v}, false) }

func (b *Bridge) push(msg tea.Msg, important bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if important {
		b.msgs <- msg
		return
	}
	select {
	case b.msgs <- msg:
	default:
	}
}
