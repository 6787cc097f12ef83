package mixer

import "seqsynth/internal/synth"

// MsgKind identifies a control message routed through the mixer channel.
type MsgKind uint8

const (
	MsgNoteOn MsgKind = iota
	MsgNoteOff
	MsgAllNotesOff
	MsgSetVolume
	MsgSetPan
	MsgSetPitchShift
	MsgSetParams
)

// Msg is one control message from a control goroutine to the render
// goroutine. Track addresses a single engine; a negative Track broadcasts
// to every engine and, for MsgSetPitchShift and MsgSetParams, also updates
// the value applied to engines created later.
type Msg struct {
	Kind     MsgKind
	Track    int
	Key      int
	Velocity int
	Value    float64
	Params   synth.Params
}

// TrackEngine is the capability contract a synthesis engine exposes to the
// mixer. All methods are called from the render goroutine only. Engines may
// additionally implement SetPitchShift(float64), SetParams(synth.Params)
// and ActiveVoiceCount() int; the mixer discovers those by assertion.
type TrackEngine interface {
	NoteOn(key, velocity int)
	NoteOff(key int)
	AllNotesOff()
	SetVolume(v float64)
	SetPan(p float64)
	ProcessAudio(dst []float32, sampleRate, channels int)
}

// EngineFactory builds the engine for a track index on first reference.
type EngineFactory func(sampleRate int, params synth.Params) TrackEngine
