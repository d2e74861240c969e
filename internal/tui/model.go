// Package tui renders the owner's session in an interactive terminal UI.
package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/timer"
)

const maxStructuredLines = 12

// Model is the root bubbletea model for the scribe TUI. Key presses are
// routed through the same handler that serves IPC clients.
type Model struct {
	handler ipc.Handler

	snapshot session.Snapshot
	elapsed  int
	marker   timer.Marker
	level    float64

	notice *session.Notice
	status string
	failed bool

	width  int
	height int
}

// New creates a Model seeded with the controller's current snapshot.
func New(handler ipc.Handler, initial session.Snapshot) Model {
	return Model{
		handler:  handler,
		snapshot: initial,
		elapsed:  initial.Elapsed,
		marker:   initial.Marker,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// commandCmd runs command against the owner handler off the UI goroutine.
func commandCmd(handler ipc.Handler, command string) tea.Cmd {
	return func() tea.Msg {
		resp := handler.Handle(context.Background(), ipc.Request{Command: command})
		return ActionResultMsg{Command: command, Response: resp}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		if msg.Snapshot.State == fsm.StateRecording && msg.Snapshot.Elapsed == 0 {
			m.elapsed = 0
			m.marker = timer.MarkerNone
		}
		if msg.Snapshot.State != fsm.StateRecording {
			m.level = 0
		}
		return m, nil

	case TickMsg:
		m.elapsed = msg.Tick.Elapsed
		m.marker = msg.Tick.Marker
		return m, nil

	case LevelMsg:
		m.level = msg.Level
		return m, nil

	case NoticeMsg:
		notice := msg.Notice
		m.notice = &notice
		return m, nil

	case ActionResultMsg:
		m.status, m.failed = describeResult(msg)
		return m, nil
	}

	return m, nil
}

// handleKey processes key presses. An open notice swallows everything but
// dismiss and quit.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit
	}

	if m.notice != nil {
		if key == KeyEnter || key == KeyEsc {
			m.notice = nil
		}
		return m, nil
	}

	controls := m.snapshot.Controls
	switch key {
	case KeySpace:
		if controls.Start || controls.Stop {
			return m, commandCmd(m.handler, ipc.CommandToggle)
		}
	case KeyRecord:
		if controls.Start {
			return m, commandCmd(m.handler, ipc.CommandStart)
		}
	case KeyStop:
		if controls.Stop {
			return m, commandCmd(m.handler, ipc.CommandStop)
		}
	case KeyGenerate:
		if controls.Generate {
			return m, commandCmd(m.handler, ipc.CommandReport)
		}
	case KeyExportJSON:
		if controls.Export {
			return m, commandCmd(m.handler, ipc.CommandExportJSON)
		}
	case KeyExportText:
		if controls.Export {
			return m, commandCmd(m.handler, ipc.CommandExportText)
		}
	case KeyCopy:
		if controls.Export {
			return m, commandCmd(m.handler, ipc.CommandCopy)
		}
	}

	return m, nil
}

func describeResult(msg ActionResultMsg) (string, bool) {
	resp := msg.Response
	if !resp.OK {
		return fmt.Sprintf("%s failed: %s", msg.Command, resp.Error), true
	}
	switch {
	case resp.Path != "":
		return "Saved " + resp.Path, false
	case resp.Message != "":
		return resp.Message, false
	default:
		return "", false
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderTranscription())
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderReport())
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", m.width)))

	if bar := m.renderErrorBar(); bar != "" {
		sections = append(sections, bar)
	}
	if m.status != "" {
		style := DimStyle
		if m.failed {
			style = ErrorTextStyle
		}
		sections = append(sections, style.Render(m.status))
	}
	if m.notice != nil {
		sections = append(sections, m.renderNotice())
	}

	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("SCRIBE")
	var id string
	if m.snapshot.SessionID != "" {
		id = DimStyle.Render(" · session " + shortID(m.snapshot.SessionID))
	}
	var format string
	if m.snapshot.Format != "" {
		format = DimStyle.Render(" [" + m.snapshot.Format + "]")
	}
	return title + id + format
}

func (m Model) renderStatusBar() string {
	var badge string
	switch m.snapshot.State {
	case fsm.StateRecording:
		badge = RecordingDotStyle.Render("● REC")
	case fsm.StateProcessing:
		badge = BusyStyle.Render("⟳ TRANSCRIBING")
	case fsm.StateReporting:
		badge = BusyStyle.Render("⟳ GENERATING REPORT")
	case fsm.StateReady:
		badge = ReadyStyle.Render("✓ READY")
	case fsm.StateError:
		badge = ErrorStyle.Render("✗ ERROR")
	default:
		badge = IdleDotStyle.Render("○ IDLE")
	}

	line := badge + "  " + timerStyle(m.marker).Render(timer.FormatElapsed(m.elapsed))
	if m.snapshot.State == fsm.StateRecording {
		line += "  " + renderLevelMeter(m.level)
		line += DimStyle.Render(fmt.Sprintf("  %d chunks", m.snapshot.Chunks))
	}
	return line
}

// timerStyle colors the elapsed time by threshold band.
func timerStyle(marker timer.Marker) lipgloss.Style {
	switch marker {
	case timer.MarkerInfo:
		return TimerInfoStyle
	case timer.MarkerWarning:
		return TimerWarningStyle
	case timer.MarkerCap:
		return TimerCapStyle
	default:
		return TimerStyle
	}
}

func renderLevelMeter(level float64) string {
	const barLen = 10
	filled := int(level * barLen)
	if filled > barLen {
		filled = barLen
	}

	var bar strings.Builder
	for i := 0; i < barLen; i++ {
		if i < filled {
			if float64(i)/barLen > 0.6 {
				bar.WriteString(LevelYellowStyle.Render("█"))
			} else {
				bar.WriteString(LevelGreenStyle.Render("█"))
			}
		} else {
			bar.WriteString(LevelGrayStyle.Render("░"))
		}
	}
	return DimStyle.Render("MIC ") + bar.String()
}

func (m Model) renderTranscription() string {
	lines := []string{PanelTitleStyle.Render("Transcription")}
	if !m.snapshot.HasText {
		lines = append(lines, DimStyle.Render("Press r or space to dictate."))
		return strings.Join(lines, "\n")
	}
	text := m.snapshot.Transcription
	if strings.TrimSpace(text) == "" {
		lines = append(lines, DimStyle.Render("(empty transcription)"))
		return strings.Join(lines, "\n")
	}
	lines = append(lines, wrapText(text, m.width)...)
	return strings.Join(lines, "\n")
}

func (m Model) renderReport() string {
	lines := []string{PanelTitleStyle.Render("Discharge Summary")}
	report := m.snapshot.Report
	if report == nil {
		lines = append(lines, DimStyle.Render("No report yet. Press g to generate one."))
		return strings.Join(lines, "\n")
	}

	lines = append(lines, wrapText(report.NarrativeText, m.width)...)
	lines = append(lines, "", PanelTitleStyle.Render("Structured Data"))

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, report.StructuredData, "", "  "); err != nil {
		lines = append(lines, ErrorTextStyle.Render("unreadable structured data"))
		return strings.Join(lines, "\n")
	}
	structured := strings.Split(pretty.String(), "\n")
	if len(structured) > maxStructuredLines {
		hidden := len(structured) - maxStructuredLines
		structured = append(structured[:maxStructuredLines], DimStyle.Render(fmt.Sprintf("… %d more lines (press j to export)", hidden)))
	}
	for _, line := range structured {
		lines = append(lines, truncateToWidth(line, m.width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderErrorBar() string {
	switch {
	case m.snapshot.EnvError != "":
		return ErrorStyle.Render("Unsupported: ") + ErrorTextStyle.Render(m.snapshot.EnvError)
	case m.snapshot.LastError != "":
		return ErrorStyle.Render("Error: ") + ErrorTextStyle.Render(m.snapshot.LastError)
	default:
		return ""
	}
}

func (m Model) renderNotice() string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	title := ErrorStyle.Render(m.notice.Context)
	body := strings.Join(wrapText(m.notice.Message, width-4), "\n")
	hint := DimStyle.Render("enter/esc to dismiss")
	return ModalStyle.Width(width).Render(title + "\n" + body + "\n" + hint)
}

func (m Model) renderFooter() string {
	if m.notice != nil {
		return footerKey("Enter", "Dismiss", true) + "  " + footerKey("q", "Quit", true)
	}

	c := m.snapshot.Controls
	toggle := "Record"
	if c.Stop {
		toggle = "Stop"
	}
	parts := []string{
		footerKey("Space", toggle, c.Start || c.Stop),
		footerKey("r", "Record", c.Start),
		footerKey("s", "Stop", c.Stop),
		footerKey("g", "Report", c.Generate),
		footerKey("j", "JSON", c.Export),
		footerKey("t", "Text", c.Export),
		footerKey("c", "Copy", c.Export),
		footerKey("q", "Quit", true),
	}
	return strings.Join(parts, "  ")
}

func footerKey(key string, desc string, enabled bool) string {
	if !enabled {
		return DimStyle.Render(key + " " + desc)
	}
	return FooterKeyStyle.Render(key) + FooterDescStyle.Render(" "+desc)
}

// Helpers

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncateToWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
