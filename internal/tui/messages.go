package tui

import (
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/timer"
)

// SnapshotMsg carries a published session snapshot.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// TickMsg carries one elapsed-time tick.
type TickMsg struct {
	Tick timer.Tick
}

// NoticeMsg opens the blocking notice modal.
type NoticeMsg struct {
	Notice session.Notice
}

// LevelMsg carries the latest normalized input level.
type LevelMsg struct {
	Level float64
}

// ActionResultMsg is the owner's reply to a key-driven command.
type ActionResultMsg struct {
	Command  string
	Response ipc.Response
}
