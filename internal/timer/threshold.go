// Package timer tracks elapsed capture time and its threshold markers.
package timer

import "fmt"

// Marker is the threshold band an elapsed duration falls into.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerInfo
	MarkerWarning
	MarkerCap
)

// Threshold seconds. CapSeconds is the hard cap on one capture.
const (
	InfoSeconds    = 120
	WarningSeconds = 270
	CapSeconds     = 300
)

func (m Marker) String() string {
	switch m {
	case MarkerNone:
		return "none"
	case MarkerInfo:
		return "info"
	case MarkerWarning:
		return "warning"
	case MarkerCap:
		return "cap"
	default:
		return fmt.Sprintf("marker(%d)", int(m))
	}
}

// MarkerAt returns the band for elapsed seconds.
func MarkerAt(elapsed int) Marker {
	switch {
	case elapsed >= CapSeconds:
		return MarkerCap
	case elapsed >= WarningSeconds:
		return MarkerWarning
	case elapsed >= InfoSeconds:
		return MarkerInfo
	default:
		return MarkerNone
	}
}

// CrossedAt returns the marker first reached at exactly elapsed, or MarkerNone.
func CrossedAt(elapsed int) Marker {
	switch elapsed {
	case InfoSeconds:
		return MarkerInfo
	case WarningSeconds:
		return MarkerWarning
	case CapSeconds:
		return MarkerCap
	default:
		return MarkerNone
	}
}

// FormatElapsed renders seconds as MM:SS.
func FormatElapsed(elapsed int) string {
	if elapsed < 0 {
		elapsed = 0
	}
	return fmt.Sprintf("%02d:%02d", elapsed/60, elapsed%60)
}
