package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Stream is an open capture producing PCM fragments until stopped.
type Stream interface {
	Chunks() <-chan []byte
	Stop() error
	Device() Device
}

// Recorder opens capture streams against the live Pulse server using the
// configured input/fallback preferences.
type Recorder struct {
	input    string
	fallback string
	logger   *slog.Logger

	listDevices  func(context.Context) ([]Device, error)
	startCapture func(context.Context, Device, Params) (Stream, error)
}

// NewRecorder builds a Recorder for the given input and fallback device terms.
func NewRecorder(input string, fallback string, logger *slog.Logger) *Recorder {
	return &Recorder{
		input:       input,
		fallback:    fallback,
		logger:      logger,
		listDevices: ListDevices,
		startCapture: func(ctx context.Context, dev Device, params Params) (Stream, error) {
			return StartCapture(ctx, dev, params)
		},
	}
}

// CaptureAvailable reports whether the Pulse server is reachable and exposes an input source.
func (r *Recorder) CaptureAvailable(ctx context.Context) error {
	devices, err := r.listDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("no audio input devices found")
	}
	return nil
}

// SupportsFormat reports whether captured PCM can be packaged as mimeType.
// Only WAV is encoded locally; WebM needs an encoder scribe does not carry.
func (r *Recorder) SupportsFormat(mimeType string) bool {
	return strings.EqualFold(strings.TrimSpace(mimeType), FormatWAV)
}

// Open resolves a device and starts a capture stream.
func (r *Recorder) Open(ctx context.Context, params Params) (Stream, error) {
	devices, err := r.listDevices(ctx)
	if err != nil {
		return nil, err
	}

	device, err := r.resolve(devices, params)
	if err != nil {
		return nil, err
	}

	stream, err := r.startCapture(ctx, device, params)
	if err != nil {
		return nil, fmt.Errorf("start capture on %q: %w", device.ID, err)
	}
	return stream, nil
}

func (r *Recorder) resolve(devices []Device, params Params) (Device, error) {
	if params.EchoCancellation || params.NoiseSuppression {
		if dev, ok := preferEchoCancel(devices, r.input); ok {
			r.logInfo("using echo-cancel source", "device", dev.ID)
			return dev, nil
		}
	}

	selection, err := selectDeviceFromList(devices, r.input, r.fallback)
	if err != nil {
		return Device{}, err
	}
	if selection.Warning != "" {
		r.logWarn("audio device fallback", "warning", selection.Warning)
	}
	return selection.Device, nil
}

func (r *Recorder) logInfo(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Info(msg, args...)
}

func (r *Recorder) logWarn(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(msg, args...)
}
