package tui

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/timer"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	commands []string
	resp     ipc.Response
}

func (h *recordingHandler) Handle(_ context.Context, req ipc.Request) ipc.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, req.Command)
	return h.resp
}

func idleSnapshot() session.Snapshot {
	return session.Snapshot{
		SessionID: "0f8fad5b-d9cb-469f-a165-70867728950e",
		State:     fsm.StateIdle,
		Controls:  session.Controls{Start: true},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case KeySpace:
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case KeyEnter:
		return tea.KeyMsg{Type: tea.KeyEnter}
	case KeyEsc:
		return tea.KeyMsg{Type: tea.KeyEsc}
	case KeyCtrlC:
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(key(k))
	return updated.(Model), cmd
}

func TestKeysDispatchOnlyEnabledCommands(t *testing.T) {
	handler := &recordingHandler{resp: ipc.Response{OK: true}}
	m := New(handler, idleSnapshot())

	m, cmd := press(t, m, KeyStop)
	require.Nil(t, cmd)
	m, cmd = press(t, m, KeyGenerate)
	require.Nil(t, cmd)
	m, cmd = press(t, m, KeyExportJSON)
	require.Nil(t, cmd)

	_, cmd = press(t, m, KeyRecord)
	require.NotNil(t, cmd)
	msg := cmd()
	require.Equal(t, ActionResultMsg{Command: ipc.CommandStart, Response: ipc.Response{OK: true}}, msg)
	require.Equal(t, []string{ipc.CommandStart}, handler.commands)
}

func TestSpaceTogglesWhileRecording(t *testing.T) {
	handler := &recordingHandler{resp: ipc.Response{OK: true}}
	m := New(handler, idleSnapshot())

	updated, _ := m.Update(SnapshotMsg{Snapshot: session.Snapshot{State: fsm.StateRecording, Controls: session.Controls{Stop: true}}})
	m = updated.(Model)

	_, cmd := press(t, m, KeySpace)
	require.NotNil(t, cmd)
	cmd()
	require.Equal(t, []string{ipc.CommandToggle}, handler.commands)
}

func TestNoticeBlocksUntilDismissed(t *testing.T) {
	handler := &recordingHandler{resp: ipc.Response{OK: true}}
	m := New(handler, idleSnapshot())

	updated, _ := m.Update(NoticeMsg{Notice: session.Notice{Context: "Microphone Access", Message: "Error accessing microphone: busy"}})
	m = updated.(Model)
	m.width = 80
	require.Contains(t, m.View(), "Error accessing microphone: busy")

	m, cmd := press(t, m, KeyRecord)
	require.Nil(t, cmd)
	require.NotNil(t, m.notice)

	m, _ = press(t, m, KeyEsc)
	require.Nil(t, m.notice)

	_, cmd = press(t, m, KeyRecord)
	require.NotNil(t, cmd)
}

func TestQuitAlwaysAvailable(t *testing.T) {
	m := New(&recordingHandler{}, idleSnapshot())
	m.notice = &session.Notice{Message: "x"}

	_, cmd := press(t, m, KeyQuit)
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTickUpdatesTimerAndResetsOnNewRecording(t *testing.T) {
	m := New(&recordingHandler{}, idleSnapshot())

	updated, _ := m.Update(TickMsg{Tick: timer.Tick{Elapsed: 271, Marker: timer.MarkerWarning}})
	m = updated.(Model)
	require.Equal(t, 271, m.elapsed)
	require.Equal(t, timer.MarkerWarning, m.marker)

	updated, _ = m.Update(SnapshotMsg{Snapshot: session.Snapshot{State: fsm.StateRecording}})
	m = updated.(Model)
	require.Equal(t, 0, m.elapsed)
	require.Equal(t, timer.MarkerNone, m.marker)
}

func TestTimerStyleByMarker(t *testing.T) {
	require.Equal(t, ColorInfo, timerStyle(timer.MarkerInfo).GetForeground())
	require.Equal(t, ColorWarning, timerStyle(timer.MarkerWarning).GetForeground())
	require.Equal(t, ColorCap, timerStyle(timer.MarkerCap).GetForeground())
	require.Equal(t, ColorWhite, timerStyle(timer.MarkerNone).GetForeground())
}

func TestViewRendersReportAndExportResult(t *testing.T) {
	m := New(&recordingHandler{}, idleSnapshot())
	m.width = 100

	report := domain.Report{
		StructuredData: json.RawMessage(`{"patient":{"name":"Doe"},"diagnosis":"migraine"}`),
		NarrativeText:  "Patient discharged in stable condition.",
	}
	updated, _ := m.Update(SnapshotMsg{Snapshot: session.Snapshot{
		State:         fsm.StateReady,
		Transcription: "patient doe headache",
		HasText:       true,
		Report:        &report,
		Controls:      session.Controls{Start: true, Generate: true, Export: true},
	}})
	m = updated.(Model)

	updated, _ = m.Update(ActionResultMsg{Command: ipc.CommandExportJSON, Response: ipc.Response{OK: true, Path: "/tmp/medical-report-2026-10-19.json"}})
	m = updated.(Model)

	view := m.View()
	require.Contains(t, view, "patient doe headache")
	require.Contains(t, view, "Patient discharged in stable condition.")
	require.Contains(t, view, `"diagnosis": "migraine"`)
	require.Contains(t, view, "Saved /tmp/medical-report-2026-10-19.json")
}

func TestViewShowsFailedAction(t *testing.T) {
	m := New(&recordingHandler{}, idleSnapshot())
	m.width = 80

	updated, _ := m.Update(ActionResultMsg{Command: ipc.CommandReport, Response: ipc.Response{OK: false, Error: "invalid transition: idle --(generate)--> ?"}})
	m = updated.(Model)
	require.True(t, m.failed)
	require.Contains(t, m.View(), "report failed: invalid transition")
}

func TestViewBeforeWindowSize(t *testing.T) {
	m := New(&recordingHandler{}, idleSnapshot())
	require.Equal(t, "Initializing...", m.View())
}

func TestWrapText(t *testing.T) {
	require.Equal(t, []string{"one two", "three"}, wrapText("one two three", 8))
	require.Equal(t, []string{"a", "", "b"}, wrapText("a\n\nb", 10))
	require.Equal(t, []string{"x"}, wrapText("x", 0))
}

func TestRenderLevelMeterClamps(t *testing.T) {
	full := renderLevelMeter(2)
	require.Equal(t, 10, strings.Count(full, "█"))
	empty := renderLevelMeter(0)
	require.Equal(t, 10, strings.Count(empty, "░"))
}

func TestBridgeForwardsInOrderAndDropsAfterClose(t *testing.T) {
	b := NewBridge()
	b.StateChanged(session.Snapshot{State: fsm.StateRecording})
	b.Ticked(timer.Tick{Elapsed: 1})
	b.Level(0.3)
	b.Notice(session.Notice{Message: "n"})
	b.Close()
	b.Close()
	b.Level(0.9)

	var got []tea.Msg
	b.Run(func(msg tea.Msg) { got = append(got, msg) })

	require.Len(t, got, 4)
	require.IsType(t, SnapshotMsg{}, got[0])
	require.IsType(t, TickMsg{}, got[1])
	require.IsType(t, LevelMsg{}, got[2])
	require.IsType(t, NoticeMsg{}, got[3])
}
