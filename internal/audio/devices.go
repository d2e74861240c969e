// Package audio finds Pulse input sources, captures PCM from them, and
// packages the captured fragments for upload.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const echoCancelMarker = "echo-cancel"

// Device is one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

func (d Device) usable() bool {
	return d.Available && !d.Muted
}

func (d Device) unusableReason() string {
	if d.Muted {
		return "muted"
	}
	return "unavailable"
}

// Selection is the device capture will use. Warning is set when the
// configured input was unusable and the fallback was taken instead.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("scribe"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns every Pulse input source, marking the server default.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(reply))
	for _, info := range reply {
		if info != nil {
			devices = append(devices, deviceFromSource(info, def.ID()))
		}
	}
	return devices, nil
}

func deviceFromSource(info *pulseproto.GetSourceInfoReply, defaultID string) Device {
	return Device{
		ID:          info.SourceName,
		Description: info.Device,
		State:       sourceStateString(info.State),
		Available:   sourceAvailable(info),
		Muted:       info.Mute,
		Default:     info.SourceName == defaultID,
	}
}

// SelectDevice lists live sources and applies the input/fallback policy.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList resolves input first; only when that device is muted
// or unavailable does fallback come into play. "default" (or empty) names the
// server's default source.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	primary, err := lookup(devices, input, "audio.input")
	if err != nil {
		return Selection{}, err
	}
	if primary.usable() {
		return Selection{Device: primary}, nil
	}

	reason := primary.unusableReason()
	backup, err := lookup(devices, fallback, "audio.fallback")
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input %q is %s; %w", primary.ID, reason, err)
	}
	if !backup.usable() {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", backup.ID, backup.unusableReason())
	}

	return Selection{
		Device:   backup,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, backup.ID),
		Fallback: primary.ID != backup.ID,
	}, nil
}

func lookup(devices []Device, term string, key string) (Device, error) {
	term = normalizeTerm(term)
	if isDefaultTerm(term) {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, errors.New("default audio source is unavailable")
	}
	for _, dev := range devices {
		if deviceMatches(dev, term) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("%s %q did not match any device", key, term)
}

// preferEchoCancel picks a usable echo-cancel source when input is left at
// default and the recording asked for echo cancellation or noise suppression.
func preferEchoCancel(devices []Device, input string) (Device, bool) {
	if !isDefaultTerm(normalizeTerm(input)) {
		return Device{}, false
	}
	for _, dev := range devices {
		if dev.usable() && strings.Contains(strings.ToLower(dev.ID), echoCancelMarker) {
			return dev, true
		}
	}
	return Device{}, false
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func isDefaultTerm(term string) bool {
	return term == "" || term == "default"
}

// deviceMatches is a case-insensitive substring match on id or description.
func deviceMatches(dev Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(dev.ID), term) ||
		strings.Contains(strings.ToLower(dev.Description), term)
}

var sourceStates = [...]string{"running", "idle", "suspended"}

func sourceStateString(state uint32) string {
	if int(state) < len(sourceStates) {
		return sourceStates[state]
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// Port availability as reported by PulseAudio.
const (
	portAvailableUnknown = 0
	portAvailableYes     = 2
)

// sourceAvailable is true unless the active port reports itself unplugged.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available == portAvailableUnknown || port.Available == portAvailableYes
		}
	}
	return true
}
