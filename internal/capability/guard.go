// Package capability gates capture on runtime support and a secure service origin.
package capability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rbright/scribe/internal/domain"
)

// Query reports what the capture runtime supports.
type Query interface {
	CaptureAvailable(context.Context) error
	SupportsFormat(mimeType string) bool
}

// DefaultFormats is the encoding preference order; the last entry is the
// container default used when nothing else is supported.
var DefaultFormats = []string{"audio/wav", "audio/webm;codecs=opus", "audio/webm"}

// SelectFormat returns the first supported preference.
func SelectFormat(q Query, preferences []string) string {
	if len(preferences) == 0 {
		preferences = DefaultFormats
	}
	if q != nil {
		for _, format := range preferences {
			if q.SupportsFormat(format) {
				return format
			}
		}
	}
	return preferences[len(preferences)-1]
}

// Check verifies capture capability and a secure origin. Failures are
// returned as EnvironmentUnsupported errors with user-facing messages.
func Check(ctx context.Context, q Query, serviceURL string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = unsupported(fmt.Errorf("capability probe panicked: %v", r))
		}
	}()

	if q == nil {
		return unsupported(errors.New("your system does not support audio recording: no capture backend is configured"))
	}
	if probeErr := q.CaptureAvailable(ctx); probeErr != nil {
		return unsupported(fmt.Errorf("your system does not support audio recording (%v); check that PulseAudio or PipeWire is running", probeErr))
	}

	secure, parseErr := SecureOrigin(serviceURL)
	if parseErr != nil {
		return unsupported(fmt.Errorf("invalid service URL %q: %w", serviceURL, parseErr))
	}
	if !secure {
		return unsupported(errors.New("voice recording requires HTTPS or localhost; set service.base_url to an https:// or localhost address"))
	}
	return nil
}

// SecureOrigin reports whether raw uses https or points at a loopback host.
func SecureOrigin(raw string) (bool, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false, err
	}
	if u.Scheme == "" || u.Host == "" {
		return false, errors.New("URL must include scheme and host")
	}
	if strings.EqualFold(u.Scheme, "https") {
		return true, nil
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" {
		return true, nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true, nil
	}
	return false, nil
}

func unsupported(cause error) error {
	return domain.NewError(domain.ErrEnvironmentUnsupported, domain.ContextEnvironment, cause)
}
