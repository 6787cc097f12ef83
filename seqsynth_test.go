package seqsynth

import (
	"testing"

	"seqsynth/score"
)

func drainEvents(ch <-chan PlaybackEvent) []PlaybackEvent {
	var evs []PlaybackEvent
	for {
		select {
		case ev := <-ch:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func hasKind(evs []PlaybackEvent, kind EventKind) bool {
	for _, ev := range evs {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T) (*Engine, *float64) {
	t.Helper()
	e, err := New(48000, WithoutDevice())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	clock := 0.0
	e.now = func() float64 { return clock }
	return e, &clock
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(0, WithoutDevice()); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if _, err := New(48000, WithoutDevice(), WithSynth(SynthParams{Waveform: "theremin"})); err == nil {
		t.Fatalf("expected error for unknown waveform")
	}
}

func TestTransportLifecycle(t *testing.T) {
	e, clock := newTestEngine(t)
	ch := e.Watch()

	e.Play(0)
	if !e.IsPlaying() {
		t.Fatalf("expected playing after Play")
	}
	e.Pause()
	if e.IsPlaying() {
		t.Fatalf("expected not playing while paused")
	}
	*clock = 1
	e.Resume()
	if !e.IsPlaying() {
		t.Fatalf("expected playing after Resume")
	}
	e.Seek(1.5)
	if got := e.Position(); got != 1.5 {
		t.Fatalf("position after seek = %v, want 1.5", got)
	}
	e.Stop()
	if e.IsPlaying() {
		t.Fatalf("expected stopped")
	}
	if got := e.Position(); got != 1.5 {
		t.Fatalf("stop moved the playhead to %v, want 1.5", got)
	}

	evs := drainEvents(ch)
	for _, kind := range []EventKind{EventStarted, EventPaused, EventResumed, EventSeeked, EventStopped} {
		if !hasKind(evs, kind) {
			t.Fatalf("missing %v event in %v", kind, evs)
		}
	}

	// A second Stop is a no-op and emits nothing.
	e.Stop()
	if evs := drainEvents(ch); len(evs) != 0 {
		t.Fatalf("double stop emitted %v", evs)
	}
}

func TestUpdateDispatchesNotesAndReportsFinish(t *testing.T) {
	e, clock := newTestEngine(t)
	ch := e.Watch()
	tracks := []score.Track{{
		ID:     0,
		Volume: 1,
		Notes:  []score.Note{{Start: 0, Duration: 480, Key: 60, Velocity: 100}},
	}}
	tempo := score.DefaultTempo() // 480 ticks = 0.5s

	e.Play(0)
	*clock = 0.001
	e.Update(tracks, tempo)

	evs := drainEvents(ch)
	var on *PlaybackEvent
	for i := range evs {
		if evs[i].Kind == EventNoteOn {
			on = &evs[i]
		}
	}
	if on == nil {
		t.Fatalf("no note-on dispatched: %v", evs)
	}
	if on.Track != 0 || on.Key != 60 || on.Velocity != 100 {
		t.Fatalf("note-on = %+v", *on)
	}

	*clock = 0.7
	e.Update(tracks, tempo)
	evs = drainEvents(ch)
	if !hasKind(evs, EventNoteOff) {
		t.Fatalf("no note-off after the note ended: %v", evs)
	}
	if !hasKind(evs, EventFinished) {
		t.Fatalf("no finished event past the last note: %v", evs)
	}
	if !e.IsPlaying() {
		t.Fatalf("finish must not stop the transport")
	}

	// Finished fires once; further updates stay quiet.
	*clock = 1.0
	e.Update(tracks, tempo)
	if evs := drainEvents(ch); hasKind(evs, EventFinished) {
		t.Fatalf("finished reported twice")
	}
}

func TestPreviewNotesBypassScheduler(t *testing.T) {
	e, _ := newTestEngine(t)
	buf := make([]float32, 4096)

	e.NoteOn(0, 69, 127)
	e.mix.Process(buf)
	energy := 0.0
	for _, s := range buf {
		if s < 0 {
			energy -= float64(s)
		} else {
			energy += float64(s)
		}
	}
	if energy == 0 {
		t.Fatalf("previewed note rendered silence")
	}
	if got := e.ActiveVoices(); got != 1 {
		t.Fatalf("active voices = %d, want 1", got)
	}
	if lv := e.TrackLevels(); len(lv) == 0 || lv[0] <= 0 {
		t.Fatalf("track levels = %v, want a nonzero first track", lv)
	}

	e.AllNotesOff(-1)
	e.mix.Process(buf)
	for i, s := range buf {
		if s != 0 {
			t.Fatalf("sample %d = %v after all-notes-off, want 0", i, s)
		}
	}
	if got := e.ActiveVoices(); got != 0 {
		t.Fatalf("active voices after all-notes-off = %d, want 0", got)
	}
}

func TestSampleTapObservesRenderedBuffers(t *testing.T) {
	e, _ := newTestEngine(t)
	var tapped int
	src := &tapSource{source: e.mix, tap: func(buf []float32) { tapped += len(buf) }}

	e.NoteOn(0, 69, 127)
	buf := make([]float32, 4096)
	src.Process(buf)
	if tapped != len(buf) {
		t.Fatalf("tap observed %d samples, want %d", tapped, len(buf))
	}
	energy := 0.0
	for _, s := range buf {
		if s < 0 {
			energy -= float64(s)
		} else {
			energy += float64(s)
		}
	}
	if energy == 0 {
		t.Fatalf("tap ran on a silent buffer, want rendered audio")
	}
}

func TestMasterVolumeRuntimeAPI(t *testing.T) {
	e, _ := newTestEngine(t)
	if got := e.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	e.SetMasterVolume(0.35)
	if got := e.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	e.SetMasterVolume(-2)
	if got := e.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestSetSynthValidatesWaveform(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.SetSynth(SynthParams{Waveform: "square", MaxVoices: 8}); err != nil {
		t.Fatalf("set synth: %v", err)
	}
	if err := e.SetSynth(SynthParams{Waveform: "theremin"}); err == nil {
		t.Fatalf("expected unknown waveform error")
	}
}

func TestCloseSilencesAndStops(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Play(0)
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if e.IsPlaying() {
		t.Fatalf("expected stopped after close")
	}
}
