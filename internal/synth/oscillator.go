package synth

import (
	"fmt"
	"math"
	"strings"
)

const twoPi = math.Pi * 2

// Waveform selects the oscillator shape. Sine is the reference voice model;
// the other shapes are parametrizations of the same single oscillator,
// chosen per engine.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveTriangle
	WaveSaw
)

func (w Waveform) String() string {
	switch w {
	case WaveSquare:
		return "square"
	case WaveTriangle:
		return "triangle"
	case WaveSaw:
		return "saw"
	default:
		return "sine"
	}
}

func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sine", "sin":
		return WaveSine, nil
	case "square", "pulse":
		return WaveSquare, nil
	case "triangle", "tri":
		return WaveTriangle, nil
	case "saw", "sawtooth":
		return WaveSaw, nil
	default:
		return WaveSine, fmt.Errorf("unknown waveform %q (expected sine|square|triangle|saw)", name)
	}
}

// Oscillator produces one periodic waveform at a frequency fixed at
// construction, scaled by a velocity-derived gain. Phase lives in [0,1).
type Oscillator struct {
	freq  float64
	phase float64
	gain  float64
	wave  Waveform
}

func newOscillator(key int, velocity int, pitchRatio float64, wave Waveform) Oscillator {
	freq := midiToFreq(key)
	if pitchRatio > 0 {
		freq *= pitchRatio
	}
	return Oscillator{
		freq: freq,
		gain: clamp(float64(velocity)/127.0, 0, 1),
		wave: wave,
	}
}

// Sample advances the phase by freq/sampleRate, wraps it into [0,1) and
// returns the waveform value times the velocity gain.
func (o *Oscillator) Sample(sampleRate float64) float64 {
	o.phase += o.freq / sampleRate
	if o.phase >= 1 {
		o.phase = math.Mod(o.phase, 1)
	}
	var s float64
	switch o.wave {
	case WaveSquare:
		if o.phase < 0.5 {
			s = 1
		} else {
			s = -1
		}
	case WaveTriangle:
		s = 2*math.Abs(2*o.phase-1) - 1
	case WaveSaw:
		s = 2*o.phase - 1
	default:
		s = math.Sin(twoPi * o.phase)
	}
	return s * o.gain
}

func midiToFreq(key int) float64 {
	return 440 * math.Pow(2, float64(key-69)/12)
}

// PitchRatio converts a shift in semitones to a frequency multiplier.
func PitchRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
