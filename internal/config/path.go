package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.conf location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "scribe", "config.conf"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "scribe", "config.conf"), nil
}

// ExportDir resolves export.dir, expanding a leading "~/". An empty value
// falls back to $XDG_DATA_HOME/scribe/exports, then ~/.local/share/scribe/exports.
func ExportDir(cfg Config) (string, error) {
	dir := strings.TrimSpace(cfg.Export.Dir)

	if dir == "" {
		if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
			return filepath.Join(xdg, "scribe", "exports"), nil
		}
		dir = "~/.local/share/scribe/exports"
	}

	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("unable to resolve user home for export dir")
		}
		return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
	}
	return dir, nil
}
