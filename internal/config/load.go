package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Source names where the effective configuration came from.
type Source string

const (
	// SourceDefaults means no file (or an empty one) was found and built-in values apply.
	SourceDefaults Source = "defaults"
	SourceJSONC    Source = "jsonc"
	SourceLegacy   Source = "legacy"
)

// detectSource picks the parser for file content. JSONC is selected when the
// first non-whitespace character is `{`.
func detectSource(content string) Source {
	trimmed := strings.TrimSpace(content)
	switch {
	case trimmed == "":
		return SourceDefaults
	case strings.HasPrefix(trimmed, "{"):
		return SourceJSONC
	default:
		return SourceLegacy
	}
}

// Loaded is the outcome of Load: the resolved path, the validated config, and
// any warnings the owner and doctor should surface.
type Loaded struct {
	Path     string
	Source   Source
	Config   Config
	Warnings []Warning
}

// Load resolves the config path and parses whatever is there. A missing file is
// not an error; the owner starts on defaults and says so in a warning.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Loaded{
			Path:     path,
			Source:   SourceDefaults,
			Config:   Default(),
			Warnings: []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}},
		}, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return Loaded{Path: path, Source: detectSource(string(content)), Config: cfg, Warnings: warnings}, nil
}
