// Package doctor runs readiness diagnostics for config, tools, audio capture,
// and the dictation service.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/scribe/internal/audio"
	"github.com/rbright/scribe/internal/capability"
	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/service"
)

const healthTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	message := fmt.Sprintf("loaded %q", cfg.Path)
	switch cfg.Source {
	case config.SourceDefaults:
		message = fmt.Sprintf("no config at %q; using defaults", cfg.Path)
	case config.SourceLegacy:
		message += " (legacy INI)"
	}
	if n := len(cfg.Warnings); n > 0 {
		message = fmt.Sprintf("%s (%d warnings)", message, n)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: message})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "owner socket directory is set", "XDG_RUNTIME_DIR is empty; client commands cannot reach an owner"))

	checks = append(checks, checkCommand(cfg.Config.Export.Clipboard.Argv, "clipboard_cmd"))
	checks = append(checks, checkExportDir(cfg.Config))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkOrigin(cfg.Config))
	checks = append(checks, checkServiceHealth(ctx, cfg.Config))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkExportDir creates the export directory and proves it accepts files.
func checkExportDir(cfg config.Config) Check {
	dir, err := config.ExportDir(cfg)
	if err != nil {
		return Check{Name: "export.dir", Pass: false, Message: err.Error()}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: "export.dir", Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".scribe-doctor-*")
	if err != nil {
		return Check{Name: "export.dir", Pass: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return Check{Name: "export.dir", Pass: true, Message: fmt.Sprintf("writable at %s", dir)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio", Pass: false, Message: err.Error()}
	}

	recorder := audio.NewRecorder(cfg.Audio.Input, cfg.Audio.Fallback, nil)
	format := capability.SelectFormat(recorder, cfg.Audio.Formats)
	message := fmt.Sprintf("selected %q, recording as %s", selection.Device.ID, format)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio", Pass: true, Message: message}
}

func checkOrigin(cfg config.Config) Check {
	secure, err := capability.SecureOrigin(cfg.Service.BaseURL)
	if err != nil {
		return Check{Name: "service.origin", Pass: false, Message: fmt.Sprintf("invalid base_url %q: %v", cfg.Service.BaseURL, err)}
	}
	if !secure {
		return Check{Name: "service.origin", Pass: false, Message: "base_url must use https or a localhost address"}
	}
	return Check{Name: "service.origin", Pass: true, Message: cfg.Service.BaseURL}
}

// checkServiceHealth probes the configured health endpoint.
func checkServiceHealth(ctx context.Context, cfg config.Config) Check {
	client, err := service.New(service.Options{
		BaseURL:    cfg.Service.BaseURL,
		HealthPath: cfg.Service.HealthPath,
		Timeout:    healthTimeout,
	})
	if err != nil {
		return Check{Name: "service.health", Pass: false, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	url := strings.TrimRight(client.BaseURL(), "/") + cfg.Service.HealthPath
	if err := client.Health(ctx); err != nil {
		var statusErr *service.StatusError
		if errors.As(err, &statusErr) {
			return Check{Name: "service.health", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", statusErr.Status, url)}
		}
		return Check{Name: "service.health", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	return Check{Name: "service.health", Pass: true, Message: fmt.Sprintf("ready at %s", url)}
}
