package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/rbright/scribe/internal/domain"
)

// Container formats in preference order. The last entry is the container default.
const (
	FormatWAV      = "audio/wav"
	FormatWebMOpus = "audio/webm;codecs=opus"
	FormatWebM     = "audio/webm"
)

// Params describes the requested capture stream.
type Params struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	Format           string
}

// DefaultParams returns 44.1kHz mono with echo cancellation and noise suppression requested.
func DefaultParams() Params {
	return Params{
		SampleRate:       44100,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		Format:           FormatWAV,
	}
}

// withDefaults fills zero fields. Capture is always mono.
func (p Params) withDefaults() Params {
	if p.SampleRate <= 0 {
		p.SampleRate = 44100
	}
	p.Channels = 1
	if strings.TrimSpace(p.Format) == "" {
		p.Format = FormatWAV
	}
	return p
}

// ChunkSize is the byte length of 20ms of s16 audio.
func (p Params) ChunkSize() int {
	p = p.withDefaults()
	size := p.SampleRate * 2 * p.Channels / 50
	if size <= 0 {
		return defaultChunkSize
	}
	return size
}

// Finalize concatenates captured fragments in order into one audio payload.
// WAV payloads get a PCM header; other formats are passed through as-is.
func Finalize(chunks [][]byte, params Params) domain.Audio {
	params = params.withDefaults()

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	pcm := make([]byte, 0, total)
	for _, chunk := range chunks {
		pcm = append(pcm, chunk...)
	}

	if params.Format != FormatWAV {
		return domain.Audio{Data: pcm, Format: params.Format}
	}

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	// bytes.Buffer writes never fail.
	_ = EncodeWAV(&buf, pcm, params.SampleRate, params.Channels)
	return domain.Audio{Data: buf.Bytes(), Format: params.Format}
}

const wavHeaderSize = 44

// EncodeWAV writes raw little-endian s16 PCM with a minimal WAV header.
func EncodeWAV(w io.Writer, pcm []byte, sampleRate int, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
