package synth

import "math"

// Params configures the voice model shared by every voice of an engine.
type Params struct {
	MaxVoices    int
	Waveform     Waveform
	AttackMs     float64
	DecayMs      float64
	SustainLevel float64
	ReleaseMs    float64
}

func DefaultParams() Params {
	return Params{
		MaxVoices:    16,
		Waveform:     WaveSine,
		AttackMs:     10,
		DecayMs:      80,
		SustainLevel: 0.7,
		ReleaseMs:    200,
	}
}

// Engine is the synthesis engine for one track: a bounded pool of voices
// keyed by MIDI note, with per-track volume, pan and tanh soft limiting.
// All methods run on the render goroutine; the engine itself takes no locks.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []Voice // insertion order; index 0 is the oldest
	volume     float64
	pan        float64
	pitchRatio float64
}

func NewEngine(sampleRate int, params Params) *Engine {
	if params.MaxVoices <= 0 {
		params.MaxVoices = DefaultParams().MaxVoices
	}
	return &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]Voice, 0, params.MaxVoices),
		volume:     1,
		pitchRatio: 1,
	}
}

// NoteOn starts a voice for key, replacing any voice already sounding on the
// same key. When the pool is full the oldest-inserted voice is evicted so
// stuck or overlapping notes cannot grow CPU cost without bound.
func (e *Engine) NoteOn(key, velocity int) {
	key = clampInt(key, 0, 127)
	velocity = clampInt(velocity, 0, 127)
	e.removeVoice(key)
	if len(e.voices) >= e.params.MaxVoices {
		copy(e.voices, e.voices[1:])
		e.voices = e.voices[:len(e.voices)-1]
	}
	e.voices = append(e.voices, newVoice(key, velocity, e.pitchRatio, e.params, e.sampleRate))
}

// NoteOff releases the voice for key. A missing voice is a normal race with
// scheduling jitter and is ignored.
func (e *Engine) NoteOff(key int) {
	for i := range e.voices {
		if e.voices[i].key == key {
			e.voices[i].Release()
			return
		}
	}
}

// AllNotesOff clears every voice unconditionally. Used on stop and seek to
// avoid stuck tones.
func (e *Engine) AllNotesOff() {
	e.voices = e.voices[:0]
}

func (e *Engine) SetVolume(v float64) { e.volume = clamp(v, 0, 1) }

func (e *Engine) SetPan(p float64) { e.pan = clamp(p, -1, 1) }

// SetPitchShift sets the global pitch shift in semitones. It applies to
// voices started afterwards; sounding voices keep their frequency.
func (e *Engine) SetPitchShift(semitones float64) {
	e.pitchRatio = PitchRatio(semitones)
}

// SetParams replaces the voice parameters. Sounding voices keep the envelope
// they started with; new voices pick up the change. If the pool cap shrank,
// the oldest voices beyond it are evicted.
func (e *Engine) SetParams(p Params) {
	if p.MaxVoices <= 0 {
		p.MaxVoices = DefaultParams().MaxVoices
	}
	e.params = p
	if len(e.voices) > p.MaxVoices {
		drop := len(e.voices) - p.MaxVoices
		copy(e.voices, e.voices[drop:])
		e.voices = e.voices[:p.MaxVoices]
	}
}

func (e *Engine) Params() Params { return e.params }

// ActiveVoiceCount returns the number of voices still sounding, release
// tails included.
func (e *Engine) ActiveVoiceCount() int {
	return len(e.voices)
}

// ProcessAudio renders one block into dst, overwriting it. dst holds
// len(dst)/channels interleaved frames. Per frame: sum all live voices,
// drop finished ones, scale by volume, soft-limit with tanh(x)*0.7, then
// fan out by channel count. Stereo uses the linear pan law
// left = s*max(0,1-pan), right = s*max(0,1+pan); the law is intentionally
// not equal-power and downstream output depends on these exact values.
func (e *Engine) ProcessAudio(dst []float32, sampleRate, channels int) {
	if channels <= 0 || len(dst) == 0 {
		return
	}
	rate := float64(sampleRate)
	frames := len(dst) / channels
	for f := 0; f < frames; f++ {
		var sum float64
		for i := 0; i < len(e.voices); {
			v := &e.voices[i]
			sum += v.NextSample(rate)
			if v.Finished() {
				e.voices = append(e.voices[:i], e.voices[i+1:]...)
				continue
			}
			i++
		}
		s := math.Tanh(sum*e.volume) * 0.7
		switch channels {
		case 1:
			dst[f] = float32(s)
		case 2:
			dst[f*2] = float32(s * math.Max(0, 1-e.pan))
			dst[f*2+1] = float32(s * math.Max(0, 1+e.pan))
		default:
			for c := 0; c < channels; c++ {
				dst[f*channels+c] = float32(s)
			}
		}
	}
}

func (e *Engine) removeVoice(key int) {
	for i := range e.voices {
		if e.voices[i].key == key {
			e.voices = append(e.voices[:i], e.voices[i+1:]...)
			return
		}
	}
}
