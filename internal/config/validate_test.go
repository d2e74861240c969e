package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty base url", func(c *Config) { c.Service.BaseURL = " " }, "service.base_url must not be empty"},
		{"bad scheme", func(c *Config) { c.Service.BaseURL = "ws://localhost" }, "must use http or https"},
		{"missing host", func(c *Config) { c.Service.BaseURL = "https://" }, "must include a host"},
		{"empty report path", func(c *Config) { c.Service.ReportPath = "" }, "service.report_path must not be empty"},
		{"relative health path", func(c *Config) { c.Service.HealthPath = "health" }, "service.health_path must start with '/'"},
		{"zero timeout", func(c *Config) { c.Service.TimeoutMS = 0 }, "service.timeout_ms must be > 0"},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "audio.sample_rate"},
		{"no formats", func(c *Config) { c.Audio.Formats = nil }, "audio.formats must not be empty"},
		{"no clipboard", func(c *Config) { c.Export.Clipboard = CommandConfig{} }, "export.clipboard_cmd must not be empty"},
		{"no app name", func(c *Config) { c.Indicator.DesktopAppName = "" }, "indicator.desktop_app_name"},
		{"negative timeout", func(c *Config) { c.Indicator.ErrorTimeoutMS = -1 }, "indicator.error_timeout_ms"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Service.BaseURL = "http://dictation.example.com"
	cfg.Audio.SampleRate = 48000
	cfg.Audio.Formats = []string{"audio/ogg"}

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
}

func TestValidateAllowsDisabledIndicatorWithoutAppName(t *testing.T) {
	cfg := Default()
	cfg.Indicator.Enable = false
	cfg.Indicator.DesktopAppName = ""

	_, err := Validate(cfg)
	require.NoError(t, err)
}
