package tui

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyQuitUpper  = "Q"
	KeyCtrlC      = "ctrl+c"
	KeySpace      = " "
	KeyRecord     = "r"
	KeyStop       = "s"
	KeyGenerate   = "g"
	KeyExportJSON = "j"
	KeyExportText = "t"
	KeyCopy       = "c"
	KeyEnter      = "enter"
	KeyEsc        = "esc"
)
