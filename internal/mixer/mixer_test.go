package mixer

import (
	"fmt"
	"math"
	"testing"

	"seqsynth/internal/synth"
)

// recordEngine logs every control call in order and renders a constant
// sample value, which makes summing and clamping assertions exact.
type recordEngine struct {
	ops    []string
	value  float32
	voices int
}

func (e *recordEngine) NoteOn(key, velocity int) {
	e.ops = append(e.ops, fmt.Sprintf("on %d %d", key, velocity))
}
func (e *recordEngine) NoteOff(key int)         { e.ops = append(e.ops, fmt.Sprintf("off %d", key)) }
func (e *recordEngine) AllNotesOff()            { e.ops = append(e.ops, "alloff") }
func (e *recordEngine) SetVolume(v float64)     { e.ops = append(e.ops, fmt.Sprintf("vol %g", v)) }
func (e *recordEngine) SetPan(p float64)        { e.ops = append(e.ops, fmt.Sprintf("pan %g", p)) }
func (e *recordEngine) SetPitchShift(s float64) { e.ops = append(e.ops, fmt.Sprintf("pitch %g", s)) }
func (e *recordEngine) SetParams(p synth.Params) {
	e.ops = append(e.ops, fmt.Sprintf("params %d", p.MaxVoices))
}
func (e *recordEngine) ActiveVoiceCount() int { return e.voices }
func (e *recordEngine) ProcessAudio(dst []float32, sampleRate, channels int) {
	for i := range dst {
		dst[i] = e.value
	}
}

func recordMixer(value float32) (*Mixer, *[]*recordEngine) {
	made := &[]*recordEngine{}
	m := New(48000, 2, synth.DefaultParams(), func(sampleRate int, params synth.Params) TrackEngine {
		e := &recordEngine{value: value}
		*made = append(*made, e)
		return e
	})
	return m, made
}

// oneBlock consumes at least one full render block so that queued
// messages are guaranteed to have been drained.
func oneBlock(m *Mixer) {
	m.Process(make([]float32, blockFrames*m.channels))
}

func TestMixerLazyEngineGrowth(t *testing.T) {
	m, made := recordMixer(0)
	buf := make([]float32, blockFrames*2)
	m.Process(buf)
	if len(*made) != 0 {
		t.Fatalf("engines created with no messages: %d", len(*made))
	}
	m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: 60, Velocity: 100})
	m.Process(buf)
	if len(*made) != 1 {
		t.Fatalf("engines after track 0 = %d, want 1", len(*made))
	}
	// Referencing track 4 fills in the gap so indices stay positional.
	m.Send(Msg{Kind: MsgNoteOn, Track: 4, Key: 62, Velocity: 100})
	m.Process(buf)
	if len(*made) != 5 {
		t.Fatalf("engines after track 4 = %d, want 5", len(*made))
	}
	if got := (*made)[4].ops; len(got) != 1 || got[0] != "on 62 100" {
		t.Fatalf("track 4 ops = %v", got)
	}
	if got := (*made)[2].ops; len(got) != 0 {
		t.Fatalf("gap engine received ops: %v", got)
	}
}

func TestMixerDrainsPendingInOrder(t *testing.T) {
	m, made := recordMixer(0)
	m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: 60, Velocity: 100})
	m.Send(Msg{Kind: MsgSetVolume, Track: 0, Value: 0.5})
	m.Send(Msg{Kind: MsgSetPan, Track: 0, Value: -1})
	m.Send(Msg{Kind: MsgNoteOff, Track: 0, Key: 60})
	// A single Process drains everything queued before rendering.
	m.Process(make([]float32, 8))
	want := []string{"on 60 100", "vol 0.5", "pan -1", "off 60"}
	got := (*made)[0].ops
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMixerSendDropsOldestWhenFull(t *testing.T) {
	m, made := recordMixer(0)
	for i := 0; i < msgBuffer; i++ {
		if !m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: i, Velocity: 1}) {
			t.Fatalf("send %d rejected before buffer full", i)
		}
	}
	if !m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: 9999, Velocity: 1}) {
		t.Fatalf("send on full buffer not accepted after dropping oldest")
	}
	m.Process(make([]float32, 8))
	ops := (*made)[0].ops
	if len(ops) != msgBuffer {
		t.Fatalf("dispatched %d messages, want %d", len(ops), msgBuffer)
	}
	if ops[0] != "on 1 1" {
		t.Fatalf("first dispatched = %q, want the key-0 message dropped", ops[0])
	}
	if ops[len(ops)-1] != "on 9999 1" {
		t.Fatalf("last dispatched = %q, want the late message kept", ops[len(ops)-1])
	}
}

func TestMixerSumsAndHardClamps(t *testing.T) {
	m, _ := recordMixer(0.8)
	m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: 60, Velocity: 100})
	m.Send(Msg{Kind: MsgNoteOn, Track: 1, Key: 64, Velocity: 100})
	buf := make([]float32, blockFrames*2)
	m.Process(buf)
	for i, s := range buf {
		if s != 1 {
			t.Fatalf("sample %d = %v, want hard clamp to 1 (two tracks at 0.8)", i, s)
		}
	}
	m.SetMasterVolume(0.5)
	m.Process(buf)
	for i, s := range buf {
		if math.Abs(float64(s)-0.8) > 1e-6 {
			t.Fatalf("sample %d = %v, want 1.6 scaled to 0.8", i, s)
		}
	}
}

func TestMixerMasterVolumeClamps(t *testing.T) {
	m, _ := recordMixer(0)
	m.SetMasterVolume(1.7)
	if got := m.MasterVolume(); got != 1 {
		t.Fatalf("master volume = %v, want clamp to 1", got)
	}
	m.SetMasterVolume(-0.2)
	if got := m.MasterVolume(); got != 0 {
		t.Fatalf("master volume = %v, want clamp to 0", got)
	}
}

func TestMixerProcessSpansBlocks(t *testing.T) {
	m, _ := recordMixer(0.25)
	m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: 60, Velocity: 100})
	buf := make([]float32, blockFrames*2+10)
	m.Process(buf)
	for i, s := range buf {
		if s != 0.25 {
			t.Fatalf("sample %d = %v across block boundary, want 0.25", i, s)
		}
	}
	// The next read continues from the partially consumed second block.
	rest := make([]float32, 50)
	m.Process(rest)
	for i, s := range rest {
		if s != 0.25 {
			t.Fatalf("buffered sample %d = %v, want 0.25", i, s)
		}
	}
}

func TestMixerBroadcastReachesEveryEngine(t *testing.T) {
	m, made := recordMixer(0)
	for track := 0; track < 3; track++ {
		m.Send(Msg{Kind: MsgNoteOn, Track: track, Key: 60, Velocity: 100})
	}
	oneBlock(m)
	m.Send(Msg{Kind: MsgAllNotesOff, Track: -1})
	oneBlock(m)
	for i, e := range *made {
		last := e.ops[len(e.ops)-1]
		if last != "alloff" {
			t.Fatalf("engine %d last op = %q, want alloff", i, last)
		}
	}
}

func TestMixerPitchShiftAppliesToLaterEngines(t *testing.T) {
	m, made := recordMixer(0)
	m.Send(Msg{Kind: MsgSetPitchShift, Track: -1, Value: 12})
	oneBlock(m)
	m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: 60, Velocity: 100})
	oneBlock(m)
	ops := (*made)[0].ops
	if len(ops) != 2 || ops[0] != "pitch 12" {
		t.Fatalf("engine created after global pitch shift got ops %v", ops)
	}
}

func TestMixerParamsBroadcastAndDefault(t *testing.T) {
	m, made := recordMixer(0)
	m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: 60, Velocity: 100})
	oneBlock(m)
	p := synth.DefaultParams()
	p.MaxVoices = 3
	m.Send(Msg{Kind: MsgSetParams, Track: -1, Params: p})
	oneBlock(m)
	if got := (*made)[0].ops[len((*made)[0].ops)-1]; got != "params 3" {
		t.Fatalf("existing engine last op = %q, want params 3", got)
	}
	if m.params.MaxVoices != 3 {
		t.Fatalf("default params not updated, MaxVoices = %d", m.params.MaxVoices)
	}
}

func TestMixerTrackBeyondCapIsDropped(t *testing.T) {
	m, made := recordMixer(0)
	m.Send(Msg{Kind: MsgNoteOn, Track: maxTracks + 5, Key: 60, Velocity: 100})
	m.Process(make([]float32, 8))
	if len(*made) != 0 {
		t.Fatalf("engines created for out-of-range track: %d", len(*made))
	}
}

func TestMixerMeters(t *testing.T) {
	made := []*recordEngine{}
	values := []float32{0.5, 0}
	m := New(48000, 2, synth.DefaultParams(), func(sampleRate int, params synth.Params) TrackEngine {
		e := &recordEngine{value: values[len(made)], voices: len(made) + 2}
		made = append(made, e)
		return e
	})
	m.Send(Msg{Kind: MsgNoteOn, Track: 1, Key: 60, Velocity: 100})
	m.Process(make([]float32, blockFrames*2))
	levels := m.TrackLevels()
	if len(levels) != 2 {
		t.Fatalf("levels = %v, want one entry per track", levels)
	}
	if levels[0] != 0.5 || levels[1] != 0 {
		t.Fatalf("levels = %v, want [0.5 0]", levels)
	}
	// Engine 0 reports 2 voices, engine 1 reports 3.
	if got := m.ActiveVoices(); got != 5 {
		t.Fatalf("active voices = %d, want 5", got)
	}
}

func TestMixerRendersSynthEngines(t *testing.T) {
	m := New(48000, 2, synth.DefaultParams(), func(sampleRate int, params synth.Params) TrackEngine {
		return synth.NewEngine(sampleRate, params)
	})
	m.Send(Msg{Kind: MsgNoteOn, Track: 0, Key: 69, Velocity: 127})
	buf := make([]float32, 4096)
	m.Process(buf)
	var energy float64
	for _, s := range buf {
		energy += math.Abs(float64(s))
	}
	if energy == 0 {
		t.Fatalf("note-on produced no audio")
	}
	if got := m.ActiveVoices(); got != 1 {
		t.Fatalf("active voices = %d, want 1", got)
	}
	m.Send(Msg{Kind: MsgAllNotesOff, Track: -1})
	m.Process(buf)
	for i, s := range buf {
		if s != 0 {
			t.Fatalf("sample %d = %v after all notes off, want 0", i, s)
		}
	}
}

func BenchmarkMixerProcess(b *testing.B) {
	m := New(48000, 2, synth.DefaultParams(), func(sampleRate int, params synth.Params) TrackEngine {
		return synth.NewEngine(sampleRate, params)
	})
	for track := 0; track < 8; track++ {
		for n := 0; n < 4; n++ {
			m.Send(Msg{Kind: MsgNoteOn, Track: track, Key: 36 + track*4 + n, Velocity: 100})
		}
	}
	buf := make([]float32, 2048*2)
	m.Process(buf)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Process(buf)
	}
}
