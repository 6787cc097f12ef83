// Package audio connects a sample source to a platform output device.
// Three backends are available behind one Output interface: ebiten's audio
// context (the default), oto, and portaudio when built with the portaudio
// tag. Device init failures surface as errors from Open before any render
// callback exists; after that the backend pulls samples until stopped.
package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// SampleSource produces interleaved float32 samples. Process is called
// from the backend's render goroutine and must not block.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to io.Reader, encoding samples as
// little-endian float32 bytes the way both ebiten and oto consume them.
type StreamReader struct {
	mu       sync.Mutex
	source   SampleSource
	channels int
	buf      []float32
}

func NewStreamReader(source SampleSource, channels int) *StreamReader {
	if channels <= 0 {
		channels = 2
	}
	return &StreamReader{source: source, channels: channels}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bytesPerFrame := 4 * r.channels
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	need := frames * r.channels
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * bytesPerFrame, nil
}

func (r *StreamReader) Close() error { return nil }
