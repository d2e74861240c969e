// Package config resolves, parses, validates, and defaults scribe configuration.
package config

// Config is the fully materialized runtime configuration used by scribe.
type Config struct {
	Service   ServiceConfig
	Audio     AudioConfig
	Export    ExportConfig
	Indicator IndicatorConfig
}

// ServiceConfig locates the dictation backend and bounds each call.
type ServiceConfig struct {
	BaseURL        string
	TranscribePath string
	ReportPath     string
	LogErrorPath   string
	HealthPath     string
	TimeoutMS      int
}

// AudioConfig controls input-source selection and capture parameters.
type AudioConfig struct {
	Input            string
	Fallback         string
	SampleRate       int
	EchoCancellation bool
	NoiseSuppression bool
	Formats          []string
}

// ExportConfig controls where artifacts land and how the narrative is copied.
type ExportConfig struct {
	Dir       string
	Clipboard CommandConfig
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable         bool
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
