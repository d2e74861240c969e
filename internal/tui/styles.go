package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorInfo    = lipgloss.Color("#ffc107")
	ColorWarning = lipgloss.Color("#ff8c00")
	ColorCap     = lipgloss.Color("#dc3545")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	RecordingDotStyle = lipgloss.NewStyle().
				Foreground(ColorCap).
				Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	BusyStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	ReadyStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	TimerStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	TimerInfoStyle = TimerStyle.Foreground(ColorInfo)

	TimerWarningStyle = TimerStyle.Foreground(ColorWarning)

	TimerCapStyle = TimerStyle.Foreground(ColorCap)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorCap).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorCap)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	LevelGreenStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	LevelYellowStyle = lipgloss.NewStyle().
				Foreground(ColorInfo)

	LevelGrayStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorCap).
			Padding(0, 1)
)
