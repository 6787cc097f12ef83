// Package mixer owns the per-track synthesis engines and combines their
// output into one interleaved sample stream. Control flows in through a
// bounded message channel drained once per render block; audio flows out
// through Process, which the audio backend calls from its render goroutine.
package mixer

import (
	"math"
	"sync"
	"sync/atomic"

	"seqsynth/internal/synth"
)

const (
	// blockFrames is the render granularity. Messages are drained and
	// engines rendered once per block.
	blockFrames = 512

	// msgBuffer bounds the control channel. Producers drop the oldest
	// pending message instead of blocking when the buffer is full.
	msgBuffer = 256

	// maxTracks caps lazy engine growth so a corrupt track index cannot
	// make the render goroutine allocate without bound.
	maxTracks = 1024
)

// Mixer routes control messages to track engines and renders their summed
// output. Send is safe from any goroutine; Process and everything it calls
// run on the render goroutine only, which is also the only place engines
// are created or touched.
type Mixer struct {
	sampleRate int
	channels   int

	msgs       chan Msg
	newEngine  EngineFactory
	engines    []TrackEngine
	params     synth.Params
	pitchShift float64
	masterGain uint64

	block    []float32
	blockPos int
	scratch  []float32
	peaks    []float32

	meterMu sync.Mutex
	levels  []float32
	voices  int
}

func New(sampleRate, channels int, params synth.Params, factory EngineFactory) *Mixer {
	if channels <= 0 {
		channels = 2
	}
	return &Mixer{
		sampleRate: sampleRate,
		channels:   channels,
		msgs:       make(chan Msg, msgBuffer),
		newEngine:  factory,
		params:     params,
		masterGain: math.Float64bits(1),
	}
}

// Send queues msg for the render goroutine without blocking. When the
// channel is full the oldest pending message is dropped to make room; the
// return value reports whether msg was accepted.
func (m *Mixer) Send(msg Msg) bool {
	select {
	case m.msgs <- msg:
		return true
	default:
	}
	select {
	case <-m.msgs:
	default:
	}
	select {
	case m.msgs <- msg:
		return true
	default:
		return false
	}
}

// SetMasterVolume sets the post-mix gain, clamped to [0,1]. Safe to call
// from any goroutine.
func (m *Mixer) SetMasterVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	atomic.StoreUint64(&m.masterGain, math.Float64bits(v))
}

func (m *Mixer) MasterVolume() float64 {
	return math.Float64frombits(atomic.LoadUint64(&m.masterGain))
}

// Process fills dst with interleaved samples, rendering a fresh block
// whenever the internal buffer runs dry.
func (m *Mixer) Process(dst []float32) {
	for n := 0; n < len(dst); {
		if m.blockPos >= len(m.block) {
			m.renderBlock()
		}
		c := copy(dst[n:], m.block[m.blockPos:])
		n += c
		m.blockPos += c
	}
}

func (m *Mixer) renderBlock() {
	m.drain()

	need := blockFrames * m.channels
	if cap(m.block) < need {
		m.block = make([]float32, need)
		m.scratch = make([]float32, need)
	}
	m.block = m.block[:need]
	m.scratch = m.scratch[:need]
	for i := range m.block {
		m.block[i] = 0
	}

	if cap(m.peaks) < len(m.engines) {
		m.peaks = make([]float32, len(m.engines))
	}
	m.peaks = m.peaks[:len(m.engines)]
	voices := 0
	for t, e := range m.engines {
		e.ProcessAudio(m.scratch, m.sampleRate, m.channels)
		var peak float32
		for i, s := range m.scratch {
			m.block[i] += s
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
		m.peaks[t] = peak
		if vc, ok := e.(interface{ ActiveVoiceCount() int }); ok {
			voices += vc.ActiveVoiceCount()
		}
	}

	master := float32(m.MasterVolume())
	for i, s := range m.block {
		s *= master
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		m.block[i] = s
	}

	m.publishMeters(voices)
	m.blockPos = 0
}

func (m *Mixer) drain() {
	for {
		select {
		case msg := <-m.msgs:
			m.dispatch(msg)
		default:
			return
		}
	}
}

func (m *Mixer) dispatch(msg Msg) {
	if msg.Track < 0 {
		m.broadcast(msg)
		return
	}
	e := m.engine(msg.Track)
	if e == nil {
		return
	}
	switch msg.Kind {
	case MsgNoteOn:
		e.NoteOn(msg.Key, msg.Velocity)
	case MsgNoteOff:
		e.NoteOff(msg.Key)
	case MsgAllNotesOff:
		e.AllNotesOff()
	case MsgSetVolume:
		e.SetVolume(msg.Value)
	case MsgSetPan:
		e.SetPan(msg.Value)
	case MsgSetPitchShift:
		if ps, ok := e.(interface{ SetPitchShift(float64) }); ok {
			ps.SetPitchShift(msg.Value)
		}
	case MsgSetParams:
		if sp, ok := e.(interface{ SetParams(synth.Params) }); ok {
			sp.SetParams(msg.Params)
		}
	}
}

func (m *Mixer) broadcast(msg Msg) {
	switch msg.Kind {
	case MsgSetPitchShift:
		m.pitchShift = msg.Value
	case MsgSetParams:
		m.params = msg.Params
	}
	for _, e := range m.engines {
		switch msg.Kind {
		case MsgAllNotesOff:
			e.AllNotesOff()
		case MsgSetPitchShift:
			if ps, ok := e.(interface{ SetPitchShift(float64) }); ok {
				ps.SetPitchShift(msg.Value)
			}
		case MsgSetParams:
			if sp, ok := e.(interface{ SetParams(synth.Params) }); ok {
				sp.SetParams(msg.Params)
			}
		}
	}
}

// engine returns the engine for track, extending the collection with
// freshly built engines for every index up to and including track.
func (m *Mixer) engine(track int) TrackEngine {
	if track >= maxTracks {
		return nil
	}
	for track >= len(m.engines) {
		e := m.newEngine(m.sampleRate, m.params)
		if m.pitchShift != 0 {
			if ps, ok := e.(interface{ SetPitchShift(float64) }); ok {
				ps.SetPitchShift(m.pitchShift)
			}
		}
		m.engines = append(m.engines, e)
	}
	return m.engines[track]
}
