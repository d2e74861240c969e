package indicator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"gonum.org/v1/gonum/floats"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueWarning
	cueError
)

func (k cueKind) String() string {
	switch k {
	case cueStart:
		return "start"
	case cueStop:
		return "stop"
	case cueComplete:
		return "complete"
	case cueWarning:
		return "warning"
	case cueError:
		return "error"
	default:
		return fmt.Sprintf("cue(%d)", int(k))
	}
}

const (
	cueSampleRate = 16000
	// cueGap separates consecutive tones of one cue.
	cueGap = 22 * time.Millisecond
	// cueRamp is the longest fade in/out applied to each tone to avoid clicks.
	cueRamp = 5 * time.Millisecond
)

type tone struct {
	hz     float64
	length time.Duration
	gain   float64
}

// cueTones: rising pair when recording starts, one low tone when it stops,
// a brighter pair once a transcript or report lands, three short beeps for
// warnings, and a falling pair on failure.
var cueTones = map[cueKind][]tone{
	cueStart:    {{hz: 880, length: 70 * time.Millisecond, gain: 0.18}, {hz: 1175, length: 70 * time.Millisecond, gain: 0.18}},
	cueStop:     {{hz: 620, length: 120 * time.Millisecond, gain: 0.18}},
	cueComplete: {{hz: 740, length: 65 * time.Millisecond, gain: 0.18}, {hz: 988, length: 90 * time.Millisecond, gain: 0.18}},
	cueWarning:  {{hz: 988, length: 60 * time.Millisecond, gain: 0.16}, {hz: 988, length: 60 * time.Millisecond, gain: 0.16}, {hz: 988, length: 60 * time.Millisecond, gain: 0.16}},
	cueError:    {{hz: 480, length: 75 * time.Millisecond, gain: 0.18}, {hz: 360, length: 90 * time.Millisecond, gain: 0.18}},
}

// cuePCM renders every cue once, on first playback.
var cuePCM = sync.OnceValue(func() map[cueKind][]int16 {
	rendered := make(map[cueKind][]int16, len(cueTones))
	for kind, tones := range cueTones {
		rendered[kind] = renderCue(tones)
	}
	return rendered
})

// emitCue plays the cue for kind on the default pulse sink and blocks until
// it has drained.
func emitCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cuePCM()[kind]
	if len(samples) == 0 {
		return nil
	}
	if err := playPCM(samples); err != nil {
		return fmt.Errorf("play %s cue: %w", kind, err)
	}
	return nil
}

func playPCM(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("scribe"),
		pulse.ClientApplicationIconName("accessories-text-editor"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	src := &pcmSource{samples: samples}
	stream, err := client.NewPlayback(
		pulse.Int16Reader(src.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("scribe indicator cue"),
	)
	if err != nil {
		return fmt.Errorf("open playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	return stream.Error()
}

// pcmSource feeds a fixed buffer to a playback stream.
type pcmSource struct {
	samples []int16
	pos     int
}

func (s *pcmSource) read(buf []int16) (int, error) {
	n := copy(buf, s.samples[s.pos:])
	s.pos += n
	if s.pos >= len(s.samples) {
		return n, pulse.EndOfData
	}
	return n, nil
}

// renderCue concatenates tones with a silent gap between each pair.
func renderCue(tones []tone) []int16 {
	gap := sampleCount(cueGap)
	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, renderTone(t)...)
	}
	return pcm
}

func renderTone(t tone) []int16 {
	n := sampleCount(t.length)
	if n <= 0 || t.hz <= 0 || t.gain <= 0 {
		return nil
	}

	wave := make([]float64, n)
	if n > 1 {
		floats.Span(wave, 0, float64(n-1)/cueSampleRate)
	}
	for i, at := range wave {
		wave[i] = math.Sin(2 * math.Pi * t.hz * at)
	}
	floats.Scale(t.gain*math.MaxInt16, wave)

	ramp := max(1, min(n/10, sampleCount(cueRamp)))
	pcm := make([]int16, n)
	for i, v := range wave {
		pcm[i] = int16(math.Round(v * fade(i, n, ramp)))
	}
	return pcm
}

// fade is the linear attack/release envelope at sample i of n.
func fade(i, n, ramp int) float64 {
	edge := min(i, n-1-i)
	if edge >= ramp {
		return 1
	}
	return float64(edge) / float64(ramp)
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
