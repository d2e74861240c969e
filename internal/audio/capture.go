package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// defaultChunkSize is 20ms of 44.1kHz mono s16.
	defaultChunkSize = 1764
	// captureBacklog is how many fragments may queue before Pulse callbacks block.
	captureBacklog = 256
)

// Capture is a running record stream on one Pulse source. Fragments arrive on
// Chunks in capture order; Chunks closes once Stop has flushed the remainder.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex // guards split and release; done is closed under it
	split    chunker
	release  func() bool
	inflight sync.WaitGroup
	bytes    atomic.Int64
}

func newCapture(device Device, chunkSize int) *Capture {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Capture{
		device: device,
		split:  chunker{size: chunkSize},
		chunks: make(chan []byte, captureBacklog),
		done:   make(chan struct{}),
	}
}

// StartCapture opens a mono s16le record stream on selected. Cancelling ctx
// stops the capture.
func StartCapture(ctx context.Context, selected Device, params Params) (*Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params = params.withDefaults()

	client, err := newClient()
	if err != nil {
		return nil, err
	}
	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	c := newCapture(selected, params.ChunkSize())
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(params.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(params.ChunkSize())),
		pulse.RecordMediaName("scribe encounter recording"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("open record stream on %q: %w", selected.ID, err)
	}
	c.stream = stream
	stream.Start()

	c.mu.Lock()
	c.release = context.AfterFunc(ctx, func() { _ = c.Stop() })
	c.mu.Unlock()
	return c, nil
}

// Device is the source this capture records from.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks delivers fixed-size PCM fragments. The last one may be shorter.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured is the total PCM accepted from Pulse so far.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Stop ends the stream, flushes any partial fragment, and closes Chunks. It is
// safe to call more than once.
func (c *Capture) Stop() error {
	c.once.Do(c.shutdown)
	return nil
}

func (c *Capture) shutdown() {
	c.mu.Lock()
	close(c.done)
	release := c.release
	c.mu.Unlock()

	if release != nil {
		release()
	}
	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	tail := c.split.flush()
	c.mu.Unlock()
	if len(tail) > 0 {
		select {
		case c.chunks <- tail:
		default:
		}
	}
	close(c.chunks)
}

func (c *Capture) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// write is the Pulse record callback.
func (c *Capture) write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped() {
		c.mu.Unlock()
		return 0, io.EOF
	}
	c.inflight.Add(1)
	ready := c.split.push(buf)
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buf)))
	for _, chunk := range ready {
		select {
		case <-c.done:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}
	return len(buf), nil
}

// chunker re-slices an arbitrary byte stream into size-byte fragments.
type chunker struct {
	size    int
	pending []byte
}

func (k *chunker) push(b []byte) [][]byte {
	k.pending = append(k.pending, b...)
	var out [][]byte
	for len(k.pending) >= k.size {
		out = append(out, bytes.Clone(k.pending[:k.size]))
		k.pending = k.pending[k.size:]
	}
	return out
}

func (k *chunker) flush() []byte {
	tail := k.pending
	k.pending = nil
	return tail
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
