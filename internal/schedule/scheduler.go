// Package schedule turns a score into timed note events. The scheduler is
// driven by host ticks: each Update advances the playhead by wall-clock
// time, scans the score for note boundaries near the playhead and emits
// control messages through its sink. It owns no goroutine and no clock;
// callers pass absolute time in, which also makes playback fully
// reproducible offline.
package schedule

import (
	"math"

	"seqsynth/internal/mixer"
	"seqsynth/score"
)

// Sink receives the control messages the scheduler emits. It must not
// block; the mixer's Send satisfies it.
type Sink func(mixer.Msg)

// State is the transport state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

const (
	// lookahead is the window, in seconds, on either side of the playhead
	// within which note boundaries are scheduled.
	lookahead = 0.5

	// retention is how long, in seconds, dispatched boundaries stay in the
	// dedup set. Must exceed lookahead or pruned boundaries could re-enter
	// the window and fire twice.
	retention = 1.0
)

type boundaryKind uint8

const (
	boundaryOn boundaryKind = iota
	boundaryOff
)

// eventKey identifies one note boundary. Tick rather than seconds keeps
// the identity stable under tempo changes; kind keeps a note-off at tick T
// distinct from a note-on at tick T for back-to-back notes on one key.
type eventKey struct {
	track int
	key   int
	tick  int
	kind  boundaryKind
}

// liveKey identifies a note the scheduler has started and not yet ended.
// Unlike the dedup set it is never pruned by age, so notes longer than the
// retention horizon are not retriggered and never left stuck.
type liveKey struct {
	track int
	key   int
	start int
}

type pendingEvent struct {
	time      float64
	key       eventKey
	velocity  int
	noteStart int
}

// Scheduler tracks transport state and the playhead, and schedules note
// boundaries inside the lookahead window. It is not safe for concurrent
// use; callers drive it from a single control goroutine.
type Scheduler struct {
	sink Sink

	state    State
	position float64
	lastNow  float64

	dispatched map[eventKey]float64
	live       map[liveKey]struct{}
	pending    []pendingEvent

	audible []bool
	volumes []float64
	pans    []float64
}

func New(sink Sink) *Scheduler {
	return &Scheduler{
		sink:       sink,
		dispatched: make(map[eventKey]float64),
		live:       make(map[liveKey]struct{}),
	}
}

func (s *Scheduler) State() State      { return s.state }
func (s *Scheduler) IsPlaying() bool   { return s.state == Playing }
func (s *Scheduler) Position() float64 { return s.position }

// Start begins playback at position. Everything sounding is silenced and
// all scheduled state is discarded so the new pass starts clean.
func (s *Scheduler) Start(now, position float64) {
	if position < 0 {
		position = 0
	}
	s.state = Playing
	s.position = position
	s.lastNow = now
	s.silenceAll()
	s.clearTransient()
}

// Stop halts playback and silences all tracks. The playhead is left where
// it was; callers that want rewind-on-stop seek to 0 themselves.
func (s *Scheduler) Stop() {
	s.state = Stopped
	s.silenceAll()
	s.clearTransient()
}

// Pause freezes the playhead without clearing scheduled state, so notes
// that are sounding keep sounding and Resume continues mid-note.
func (s *Scheduler) Pause() {
	if s.state == Playing {
		s.state = Paused
	}
}

func (s *Scheduler) Resume(now float64) {
	if s.state != Paused {
		return
	}
	s.state = Playing
	s.lastNow = now
}

// Seek moves the playhead, silencing all tracks and discarding scheduled
// state so that no event from the old position leaks across the jump.
func (s *Scheduler) Seek(position float64) {
	if position < 0 {
		position = 0
	}
	s.position = position
	s.silenceAll()
	s.clearTransient()
}

func (s *Scheduler) silenceAll() {
	s.sink(mixer.Msg{Kind: mixer.MsgAllNotesOff, Track: -1})
}

func (s *Scheduler) clearTransient() {
	clear(s.dispatched)
	clear(s.live)
	s.pending = s.pending[:0]
}

// Update advances the playhead by the wall-clock time elapsed since the
// previous call, schedules every note boundary that has entered the
// lookahead window, dispatches queued events that have come due and prunes
// dedup entries that have aged out. No-op unless Playing.
func (s *Scheduler) Update(now float64, tracks []score.Track, tempo score.Tempo) {
	if s.state != Playing {
		return
	}
	elapsed := now - s.lastNow
	if elapsed < 0 {
		elapsed = 0
	}
	s.lastNow = now
	s.position += elapsed

	anySolo := false
	for i := range tracks {
		if tracks[i].Solo {
			anySolo = true
			break
		}
	}
	s.syncTracks(tracks, anySolo)

	for ti := range tracks {
		t := &tracks[ti]
		if !trackAudible(t, anySolo) {
			continue
		}
		for _, n := range t.Notes {
			if n.Duration <= 0 {
				continue
			}
			start := tempo.TicksToSeconds(n.Start)
			end := tempo.TicksToSeconds(n.End())
			if start > s.position+lookahead || end < s.position-lookahead {
				continue
			}
			s.scheduleOn(ti, n, start, end)
			if end <= s.position+lookahead {
				s.scheduleOff(ti, n, end)
			}
		}
	}

	s.drainDue(tracks, anySolo)
	s.prune()
}

// scheduleOn handles the note-on boundary of a note overlapping the
// window. A boundary already behind the playhead fires immediately so a
// note entered mid-way still sounds, unless the note has fully elapsed or
// is already live.
func (s *Scheduler) scheduleOn(track int, n score.Note, start, end float64) {
	k := eventKey{track: track, key: n.Key, tick: n.Start, kind: boundaryOn}
	if _, seen := s.dispatched[k]; seen {
		return
	}
	ev := pendingEvent{time: start, key: k, velocity: n.Velocity, noteStart: n.Start}
	if start > s.position {
		s.dispatched[k] = start
		s.enqueue(ev)
		return
	}
	s.dispatched[k] = s.position
	if end <= s.position {
		return
	}
	if _, sounding := s.live[liveKey{track, n.Key, n.Start}]; sounding {
		return
	}
	s.dispatchOn(ev)
}

// scheduleOff handles the note-off boundary. A stale note-off (already
// behind the playhead) is only emitted when this scheduler started the
// note and has not ended it, which ends notes straddling a host stall
// without violating the post-seek quiet guarantee.
func (s *Scheduler) scheduleOff(track int, n score.Note, end float64) {
	k := eventKey{track: track, key: n.Key, tick: n.End(), kind: boundaryOff}
	if _, seen := s.dispatched[k]; seen {
		return
	}
	ev := pendingEvent{time: end, key: k, noteStart: n.Start}
	if end > s.position {
		s.dispatched[k] = end
		s.enqueue(ev)
		return
	}
	s.dispatched[k] = s.position
	if _, sounding := s.live[liveKey{track, n.Key, n.Start}]; sounding {
		s.dispatchOff(ev)
	}
}

// enqueue inserts ev keeping pending sorted by time, note-offs before
// note-ons at equal times so a back-to-back note on the same key is not
// cut by its predecessor's note-off.
func (s *Scheduler) enqueue(ev pendingEvent) {
	i := len(s.pending)
	s.pending = append(s.pending, ev)
	for i > 0 && after(s.pending[i-1], ev) {
		s.pending[i] = s.pending[i-1]
		i--
	}
	s.pending[i] = ev
}

func after(a, b pendingEvent) bool {
	if a.time != b.time {
		return a.time > b.time
	}
	return a.key.kind == boundaryOn && b.key.kind == boundaryOff
}

func (s *Scheduler) drainDue(tracks []score.Track, anySolo bool) {
	n := 0
	for n < len(s.pending) && s.pending[n].time <= s.position {
		n++
	}
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		ev := s.pending[i]
		switch ev.key.kind {
		case boundaryOn:
			// Audibility is rechecked at dispatch time: a track muted
			// after its notes were queued stays quiet.
			if ev.key.track < len(tracks) && !trackAudible(&tracks[ev.key.track], anySolo) {
				continue
			}
			s.dispatchOn(ev)
		case boundaryOff:
			s.dispatchOff(ev)
		}
	}
	s.pending = append(s.pending[:0], s.pending[n:]...)
}

func (s *Scheduler) dispatchOn(ev pendingEvent) {
	s.sink(mixer.Msg{
		Kind:     mixer.MsgNoteOn,
		Track:    ev.key.track,
		Key:      clamp127(ev.key.key),
		Velocity: clamp127(ev.velocity),
	})
	s.live[liveKey{ev.key.track, ev.key.key, ev.noteStart}] = struct{}{}
}

func (s *Scheduler) dispatchOff(ev pendingEvent) {
	s.sink(mixer.Msg{
		Kind:  mixer.MsgNoteOff,
		Track: ev.key.track,
		Key:   clamp127(ev.key.key),
	})
	delete(s.live, liveKey{ev.key.track, ev.key.key, ev.noteStart})
}

func (s *Scheduler) prune() {
	horizon := s.position - retention
	for k, at := range s.dispatched {
		if at < horizon {
			delete(s.dispatched, k)
		}
	}
}

// syncTracks forwards volume and pan changes and silences tracks on the
// audible-to-inaudible edge. Values are cached per track so an unchanged
// control does not flood the message channel every tick.
func (s *Scheduler) syncTracks(tracks []score.Track, anySolo bool) {
	for ti := range tracks {
		for len(s.audible) <= ti {
			s.audible = append(s.audible, true)
			s.volumes = append(s.volumes, math.NaN())
			s.pans = append(s.pans, math.NaN())
		}
		t := &tracks[ti]
		if t.Volume != s.volumes[ti] {
			s.sink(mixer.Msg{Kind: mixer.MsgSetVolume, Track: ti, Value: t.Volume})
			s.volumes[ti] = t.Volume
		}
		if t.Pan != s.pans[ti] {
			s.sink(mixer.Msg{Kind: mixer.MsgSetPan, Track: ti, Value: t.Pan})
			s.pans[ti] = t.Pan
		}
		aud := trackAudible(t, anySolo)
		if s.audible[ti] && !aud {
			s.sink(mixer.Msg{Kind: mixer.MsgAllNotesOff, Track: ti})
			for k := range s.live {
				if k.track == ti {
					delete(s.live, k)
				}
			}
		}
		s.audible[ti] = aud
	}
}

// trackAudible applies the solo-overrides-mute policy: if any track is
// soloed only soloed tracks sound, otherwise every unmuted track sounds.
func trackAudible(t *score.Track, anySolo bool) bool {
	if anySolo {
		return t.Solo
	}
	return !t.Muted
}

func clamp127(v int) int {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}
