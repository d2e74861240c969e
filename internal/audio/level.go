package audio

import (
	"encoding/binary"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Level returns the RMS level of s16le PCM normalized to [0, 1].
func Level(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	samples := make([]float64, n)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float64(v) / math.MaxInt16
	}
	rms := floats.Norm(samples, 2) / math.Sqrt(float64(n))
	return math.Min(rms, 1)
}
