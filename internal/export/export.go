// Package export projects the last generated report into local artifacts.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/scribe/internal/domain"
)

const (
	jsonPrefix = "medical-report-"
	textPrefix = "discharge-summary-"
	dateLayout = "2006-01-02"
)

// ErrNoReport is returned when no report has been generated yet.
var ErrNoReport = errors.New("no report available to export")

// Artifact is one exportable file.
type Artifact struct {
	Name string
	Data []byte
}

// JSON renders the structured data pretty-printed with two-space indentation.
// Key order from the service is preserved.
func JSON(report domain.Report, now time.Time) (Artifact, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, report.StructuredData); err != nil {
		return Artifact{}, fmt.Errorf("compact structured data: %w", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact.Bytes(), "", "  "); err != nil {
		return Artifact{}, fmt.Errorf("indent structured data: %w", err)
	}
	return Artifact{Name: jsonPrefix + dateStamp(now) + ".json", Data: pretty.Bytes()}, nil
}

// Text renders the narrative as-is.
func Text(report domain.Report, now time.Time) Artifact {
	return Artifact{Name: textPrefix + dateStamp(now) + ".txt", Data: []byte(report.NarrativeText)}
}

func dateStamp(now time.Time) string {
	return now.UTC().Format(dateLayout)
}

// ReportSource exposes the last successful report.
type ReportSource interface {
	LastReport() (domain.Report, bool)
}

// Options configures a Manager.
type Options struct {
	Dir       string
	Clipboard []string
	Now       func() time.Time
	Logger    *slog.Logger
}

// Manager writes artifacts for the current last report. It holds no state of
// its own beyond configuration.
type Manager struct {
	source    ReportSource
	dir       string
	clipboard []string
	now       func() time.Time
	logger    *slog.Logger
}

// NewManager builds a Manager reading from source.
func NewManager(source ReportSource, opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		source:    source,
		dir:       opts.Dir,
		clipboard: opts.Clipboard,
		now:       now,
		logger:    opts.Logger,
	}
}

// ExportJSON writes medical-report-<date>.json and returns its path.
func (m *Manager) ExportJSON() (string, error) {
	report, ok := m.source.LastReport()
	if !ok {
		return "", ErrNoReport
	}
	artifact, err := JSON(report, m.now())
	if err != nil {
		return "", err
	}
	return m.write(artifact)
}

// ExportText writes discharge-summary-<date>.txt and returns its path.
func (m *Manager) ExportText() (string, error) {
	report, ok := m.source.LastReport()
	if !ok {
		return "", ErrNoReport
	}
	return m.write(Text(report, m.now()))
}

func (m *Manager) write(artifact Artifact) (string, error) {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(m.dir, artifact.Name)
	if err := os.WriteFile(path, artifact.Data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", artifact.Name, err)
	}
	if m.logger != nil {
		m.logger.Info("report exported", "path", path, "bytes", len(artifact.Data))
	}
	return path, nil
}
