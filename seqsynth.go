// Package seqsynth is the real-time playback core of a multi-track MIDI
// sequencer: per-track polyphonic synthesis engines behind a message-passing
// mixer, and a lookahead scheduler that turns editable note lists into timed
// note events. The Engine facade wires both to an audio output device.
//
// The host owns the arrangement. Each UI frame (or loop iteration) it hands
// the current track snapshots and tempo to Update, which advances the
// playhead and dispatches everything that has come due. Preview methods
// bypass the scheduler entirely and talk straight to the mixer.
package seqsynth

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"seqsynth/internal/audio"
	"seqsynth/internal/mixer"
	"seqsynth/internal/schedule"
	"seqsynth/internal/synth"
	"seqsynth/score"
)

const stereoChannels = 2

// SynthParams selects the voice model for every track engine. The zero
// value means "defaults": sine waveform, 16 voices, the standard envelope.
type SynthParams struct {
	Waveform     string
	MaxVoices    int
	AttackMs     float64
	DecayMs      float64
	SustainLevel float64
	ReleaseMs    float64
}

func DefaultSynthParams() SynthParams {
	p := synth.DefaultParams()
	return SynthParams{
		Waveform:     p.Waveform.String(),
		MaxVoices:    p.MaxVoices,
		AttackMs:     p.AttackMs,
		DecayMs:      p.DecayMs,
		SustainLevel: p.SustainLevel,
		ReleaseMs:    p.ReleaseMs,
	}
}

func (p SynthParams) toParams() (synth.Params, error) {
	if p == (SynthParams{}) {
		return synth.DefaultParams(), nil
	}
	w, err := synth.ParseWaveform(p.Waveform)
	if err != nil {
		return synth.Params{}, err
	}
	out := synth.Params{
		MaxVoices:    p.MaxVoices,
		Waveform:     w,
		AttackMs:     p.AttackMs,
		DecayMs:      p.DecayMs,
		SustainLevel: p.SustainLevel,
		ReleaseMs:    p.ReleaseMs,
	}
	if out.MaxVoices < 1 {
		out.MaxVoices = synth.DefaultParams().MaxVoices
	}
	return out, nil
}

type Option func(*engineConfig)

type engineConfig struct {
	driver   string
	synth    SynthParams
	master   float64
	tap      func([]float32)
	noDevice bool
}

func defaultEngineConfig() engineConfig {
	return engineConfig{master: 1}
}

// WithDriver selects the output backend: "ebiten" (default), "oto" or
// "portaudio" (requires building with -tags portaudio).
func WithDriver(name string) Option {
	return func(cfg *engineConfig) {
		cfg.driver = name
	}
}

// WithSynth sets the voice model used by every track engine.
func WithSynth(p SynthParams) Option {
	return func(cfg *engineConfig) {
		cfg.synth = p
	}
}

// WithMasterVolume sets the initial master volume in [0,1].
func WithMasterVolume(v float64) Option {
	return func(cfg *engineConfig) {
		cfg.master = v
	}
}

// WithSampleTap installs a callback invoked with every rendered stereo
// buffer on its way to the device. The callback runs on the audio thread;
// keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *engineConfig) {
		cfg.tap = tap
	}
}

// WithoutDevice skips opening an audio output. Rendering then only happens
// when the caller pulls samples itself, as the offline renderer does.
func WithoutDevice() Option {
	return func(cfg *engineConfig) {
		cfg.noDevice = true
	}
}

// Engine is the playback facade: transport control, scheduled playback of
// host-owned track snapshots, direct note preview and metering.
//
// Transport and Update calls are safe from any goroutine but are expected
// from one control goroutine; Position and IsPlaying are poll-safe from
// anywhere.
type Engine struct {
	mu         sync.Mutex
	sampleRate int
	mix        *mixer.Mixer
	sched      *schedule.Scheduler
	out        audio.Output
	now        func() float64
	finished   bool

	posBits atomic.Uint64
	playing atomic.Bool

	eventMu sync.Mutex
	events  chan PlaybackEvent
}

// New builds an Engine and opens the audio device. A device that cannot be
// opened is a startup error; nothing renders before this returns.
func New(sampleRate int, opts ...Option) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	params, err := cfg.synth.toParams()
	if err != nil {
		return nil, err
	}

	e := &Engine{sampleRate: sampleRate}
	e.mix = mixer.New(sampleRate, stereoChannels, params, func(rate int, p synth.Params) mixer.TrackEngine {
		return synth.NewEngine(rate, p)
	})
	e.mix.SetMasterVolume(cfg.master)
	e.sched = schedule.New(e.dispatch)

	epoch := time.Now()
	e.now = func() float64 { return time.Since(epoch).Seconds() }

	if !cfg.noDevice {
		var source audio.SampleSource = e.mix
		if cfg.tap != nil {
			source = &tapSource{source: e.mix, tap: cfg.tap}
		}
		out, err := audio.Open(cfg.driver, sampleRate, source)
		if err != nil {
			return nil, err
		}
		e.out = out
		// The device runs for the Engine's whole life so preview notes
		// sound even while the transport is stopped.
		e.out.Play()
	}
	return e, nil
}

// tapSource hands each rendered buffer to an observer on its way to the
// device.
type tapSource struct {
	source audio.SampleSource
	tap    func([]float32)
}

func (t *tapSource) Process(dst []float32) {
	t.source.Process(dst)
	t.tap(dst)
}

// Close stops the audio device and silences every track.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched.Stop()
	e.playing.Store(false)
	if e.out == nil {
		return nil
	}
	err := e.out.Stop()
	e.out = nil
	return err
}

// dispatch is the scheduler sink: forward to the mixer and mirror note
// boundaries onto the watch channel. Runs under e.mu.
func (e *Engine) dispatch(m mixer.Msg) {
	e.mix.Send(m)
	switch m.Kind {
	case mixer.MsgNoteOn:
		e.sendEvent(PlaybackEvent{Kind: EventNoteOn, Position: e.sched.Position(), Track: m.Track, Key: m.Key, Velocity: m.Velocity})
	case mixer.MsgNoteOff:
		e.sendEvent(PlaybackEvent{Kind: EventNoteOff, Position: e.sched.Position(), Track: m.Track, Key: m.Key})
	}
}

// Play starts playback at the given position in seconds.
func (e *Engine) Play(position float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched.Start(e.now(), position)
	e.finished = false
	e.mirrorTransport()
	e.sendEvent(PlaybackEvent{Kind: EventStarted, Position: e.sched.Position()})
}

// Stop halts playback and silences everything. The playhead stays put.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched.State() == schedule.Stopped {
		return
	}
	e.sched.Stop()
	e.finished = false
	e.mirrorTransport()
	e.sendEvent(PlaybackEvent{Kind: EventStopped, Position: e.sched.Position()})
}

// Pause freezes the playhead. Sounding notes keep sounding.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched.State() != schedule.Playing {
		return
	}
	e.sched.Pause()
	e.mirrorTransport()
	e.sendEvent(PlaybackEvent{Kind: EventPaused, Position: e.sched.Position()})
}

// Resume continues a paused playback from the frozen position.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched.State() != schedule.Paused {
		return
	}
	e.sched.Resume(e.now())
	e.mirrorTransport()
	e.sendEvent(PlaybackEvent{Kind: EventResumed, Position: e.sched.Position()})
}

// Seek jumps the playhead, cutting everything that is sounding so no note
// leaks across the jump. Valid in every transport state.
func (e *Engine) Seek(position float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched.Seek(position)
	e.finished = false
	e.mirrorTransport()
	e.sendEvent(PlaybackEvent{Kind: EventSeeked, Position: e.sched.Position()})
}

// Update advances playback against the current arrangement snapshot. Call
// it once per UI frame or loop iteration; the scheduler's lookahead absorbs
// the jitter. A no-op unless playing.
func (e *Engine) Update(tracks []score.Track, tempo score.Tempo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched.Update(e.now(), tracks, tempo)
	e.mirrorTransport()

	if !e.sched.IsPlaying() || e.finished {
		return
	}
	end := score.TotalDuration(tracks, tempo)
	if end > 0 && e.sched.Position() >= end && e.mix.ActiveVoices() == 0 {
		e.finished = true
		e.sendEvent(PlaybackEvent{Kind: EventFinished, Position: e.sched.Position()})
	}
}

// mirrorTransport publishes position and state for lock-free polling.
// Callers hold e.mu.
func (e *Engine) mirrorTransport() {
	e.posBits.Store(math.Float64bits(e.sched.Position()))
	e.playing.Store(e.sched.IsPlaying())
}

// Position returns the playhead in seconds. Safe from any goroutine.
func (e *Engine) Position() float64 { return math.Float64frombits(e.posBits.Load()) }

// IsPlaying reports whether the transport is running. Safe from any goroutine.
func (e *Engine) IsPlaying() bool { return e.playing.Load() }

// NoteOn previews a note on a track immediately, bypassing the scheduler.
func (e *Engine) NoteOn(track, key, velocity int) {
	e.mix.Send(mixer.Msg{Kind: mixer.MsgNoteOn, Track: track, Key: key, Velocity: velocity})
}

// NoteOff releases a previewed note.
func (e *Engine) NoteOff(track, key int) {
	e.mix.Send(mixer.Msg{Kind: mixer.MsgNoteOff, Track: track, Key: key})
}

// AllNotesOff silences one track, or every track when track is negative.
func (e *Engine) AllNotesOff(track int) {
	e.mix.Send(mixer.Msg{Kind: mixer.MsgAllNotesOff, Track: track})
}

// SetTrackVolume applies a track volume immediately. During playback the
// scheduler re-forwards volumes from the snapshots, so hosts should mutate
// their snapshot too or the value will revert on the next Update.
func (e *Engine) SetTrackVolume(track int, v float64) {
	e.mix.Send(mixer.Msg{Kind: mixer.MsgSetVolume, Track: track, Value: v})
}

// SetTrackPan applies a track pan immediately. See SetTrackVolume.
func (e *Engine) SetTrackPan(track int, p float64) {
	e.mix.Send(mixer.Msg{Kind: mixer.MsgSetPan, Track: track, Value: p})
}

// SetMasterVolume sets the post-mix master volume in [0,1]. Takes effect on
// the next render block.
func (e *Engine) SetMasterVolume(v float64) { e.mix.SetMasterVolume(v) }

func (e *Engine) MasterVolume() float64 { return e.mix.MasterVolume() }

// SetPitchShift transposes new notes on every track by the given number of
// semitones. Already sounding voices keep their pitch.
func (e *Engine) SetPitchShift(semitones float64) {
	e.mix.Send(mixer.Msg{Kind: mixer.MsgSetPitchShift, Track: -1, Value: semitones})
}

// SetSynth swaps the voice model on every track engine. Sounding voices
// are released first so no note hangs across the change.
func (e *Engine) SetSynth(p SynthParams) error {
	params, err := p.toParams()
	if err != nil {
		return err
	}
	e.mix.Send(mixer.Msg{Kind: mixer.MsgAllNotesOff, Track: -1})
	e.mix.Send(mixer.Msg{Kind: mixer.MsgSetParams, Track: -1, Params: params})
	return nil
}

// TrackLevels returns the most recent per-track peak levels.
func (e *Engine) TrackLevels() []float32 { return e.mix.TrackLevels() }

// ActiveVoices returns the number of voices sounding across all tracks.
func (e *Engine) ActiveVoices() int { return e.mix.ActiveVoices() }

// Watch returns a channel of playback events: transport changes, the
// end-of-arrangement signal and every dispatched note boundary. The channel
// is buffered and events are dropped rather than ever blocking playback;
// receive promptly. Only the most recent Watch channel receives events.
func (e *Engine) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 64)
	e.eventMu.Lock()
	e.events = ch
	e.eventMu.Unlock()
	return ch
}

func (e *Engine) sendEvent(ev PlaybackEvent) {
	e.eventMu.Lock()
	ch := e.events
	e.eventMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
