package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

type legacySetter func(cfg *Config, key *ini.Key) error

// legacyKeys maps "section.key" names to setters. Keys may live in an INI
// section or be written dotted at the top level.
var legacyKeys = map[string]legacySetter{
	"service.base_url":        stringKey(func(c *Config) *string { return &c.Service.BaseURL }),
	"service.transcribe_path": stringKey(func(c *Config) *string { return &c.Service.TranscribePath }),
	"service.report_path":     stringKey(func(c *Config) *string { return &c.Service.ReportPath }),
	"service.log_error_path":  stringKey(func(c *Config) *string { return &c.Service.LogErrorPath }),
	"service.health_path":     stringKey(func(c *Config) *string { return &c.Service.HealthPath }),
	"service.timeout_ms":      intKey(func(c *Config) *int { return &c.Service.TimeoutMS }),

	"audio.input":             stringKey(func(c *Config) *string { return &c.Audio.Input }),
	"audio.fallback":          stringKey(func(c *Config) *string { return &c.Audio.Fallback }),
	"audio.sample_rate":       intKey(func(c *Config) *int { return &c.Audio.SampleRate }),
	"audio.echo_cancellation": boolKey(func(c *Config) *bool { return &c.Audio.EchoCancellation }),
	"audio.noise_suppression": boolKey(func(c *Config) *bool { return &c.Audio.NoiseSuppression }),
	"audio.formats": func(cfg *Config, key *ini.Key) error {
		cfg.Audio.Formats = trimList(strings.Split(key.String(), ","))
		return nil
	},

	"export.dir": stringKey(func(c *Config) *string { return &c.Export.Dir }),
	"export.clipboard_cmd": func(cfg *Config, key *ini.Key) error {
		clipboard, err := ParseCommand("export.clipboard_cmd", key.String())
		if err != nil {
			return err
		}
		cfg.Export.Clipboard = clipboard
		return nil
	},

	"indicator.enable":           boolKey(func(c *Config) *bool { return &c.Indicator.Enable }),
	"indicator.desktop_app_name": stringKey(func(c *Config) *string { return &c.Indicator.DesktopAppName }),
	"indicator.sound_enable":     boolKey(func(c *Config) *bool { return &c.Indicator.SoundEnable }),
	"indicator.error_timeout_ms": intKey(func(c *Config) *int { return &c.Indicator.ErrorTimeoutMS }),
}

func parseLegacy(content string, base Config) (Config, []Warning, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		SpaceBeforeInlineComment: true,
	}, []byte(content))
	if err != nil {
		return Config{}, nil, fmt.Errorf("parse legacy config: %w", err)
	}

	cfg := base
	warnings := make([]Warning, 0)

	for _, section := range file.Sections() {
		prefix := ""
		if section.Name() != ini.DefaultSection {
			prefix = strings.ToLower(section.Name()) + "."
		}
		for _, key := range section.Keys() {
			name := prefix + strings.ToLower(key.Name())
			setter, ok := legacyKeys[name]
			if !ok {
				warnings = append(warnings, Warning{
					Line:    lineOf(content, key.Name()),
					Message: fmt.Sprintf("unknown key %q ignored", name),
				})
				continue
			}
			if err := setter(&cfg, key); err != nil {
				return Config{}, nil, fmt.Errorf("line %d: %s: %w", lineOf(content, key.Name()), name, err)
			}
		}
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func stringKey(field func(*Config) *string) legacySetter {
	return func(cfg *Config, key *ini.Key) error {
		*field(cfg) = strings.TrimSpace(key.String())
		return nil
	}
}

func intKey(field func(*Config) *int) legacySetter {
	return func(cfg *Config, key *ini.Key) error {
		v, err := strconv.Atoi(strings.TrimSpace(key.String()))
		if err != nil {
			return fmt.Errorf("expected integer, got %q", key.String())
		}
		*field(cfg) = v
		return nil
	}
}

func boolKey(field func(*Config) *bool) legacySetter {
	return func(cfg *Config, key *ini.Key) error {
		v, err := key.Bool()
		if err != nil {
			return fmt.Errorf("expected boolean, got %q", key.String())
		}
		*field(cfg) = v
		return nil
	}
}

// lineOf returns the 1-based line declaring key, or 0 when it cannot be found.
func lineOf(content string, key string) int {
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, key) {
			continue
		}
		rest := strings.TrimSpace(trimmed[len(key):])
		if strings.HasPrefix(rest, "=") || strings.HasPrefix(rest, ":") {
			return i + 1
		}
	}
	return 0
}
