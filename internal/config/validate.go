package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rbright/scribe/internal/capability"
)

var knownFormats = map[string]struct{}{
	"audio/wav":              {},
	"audio/webm;codecs=opus": {},
	"audio/webm":             {},
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	base := strings.TrimSpace(cfg.Service.BaseURL)
	if base == "" {
		return nil, errors.New("service.base_url must not be empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("service.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("service.base_url must use http or https")
	}
	if u.Host == "" {
		return nil, errors.New("service.base_url must include a host")
	}

	paths := []struct {
		key   string
		value string
	}{
		{"service.transcribe_path", cfg.Service.TranscribePath},
		{"service.report_path", cfg.Service.ReportPath},
		{"service.log_error_path", cfg.Service.LogErrorPath},
		{"service.health_path", cfg.Service.HealthPath},
	}
	for _, p := range paths {
		value := strings.TrimSpace(p.value)
		if value == "" {
			return nil, fmt.Errorf("%s must not be empty", p.key)
		}
		if !strings.HasPrefix(value, "/") {
			return nil, fmt.Errorf("%s must start with '/'", p.key)
		}
	}
	if cfg.Service.TimeoutMS <= 0 {
		return nil, errors.New("service.timeout_ms must be > 0")
	}

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		return nil, errors.New("audio.sample_rate must be between 8000 and 192000")
	}
	if len(cfg.Audio.Formats) == 0 {
		return nil, errors.New("audio.formats must not be empty")
	}
	for _, format := range cfg.Audio.Formats {
		if _, ok := knownFormats[format]; !ok {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.formats entry %q is not a known container; it will only be used as the fallback default", format)})
		}
	}
	if cfg.Audio.SampleRate != 44100 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.sample_rate=%d differs from the 44100 Hz the service expects", cfg.Audio.SampleRate)})
	}

	if len(cfg.Export.Clipboard.Argv) == 0 {
		return nil, errors.New("export.clipboard_cmd must not be empty")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, errors.New("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, errors.New("indicator.error_timeout_ms must be >= 0")
	}

	if secure, _ := capability.SecureOrigin(base); !secure {
		warnings = append(warnings, Warning{Message: "service.base_url is plain http on a non-local host; recording will be disabled"})
	}

	return warnings, nil
}
