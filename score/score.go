// Package score holds the note/track/tempo snapshot types exchanged between
// the sequencer core and its collaborators (editor, file importers, UIs).
// The core never mutates these; it receives fresh read-only snapshots each
// update cycle.
package score

// Note is one time-stamped note event. Start and Duration are in ticks.
type Note struct {
	Start    int
	Duration int
	Key      int
	Velocity int
}

// End returns the tick at which the note stops sounding.
func (n Note) End() int {
	return n.Start + n.Duration
}

// Track is the runtime view of one sequencer track. Notes are ordered by
// Start and unique within the track.
type Track struct {
	ID     int
	Name   string
	Muted  bool
	Solo   bool
	Volume float64 // 0..1
	Pan    float64 // -1..1
	Notes  []Note
}

// Tempo carries the global tempo and meter.
type Tempo struct {
	BPM          float64
	TicksPerBeat int
	TimeSigNum   int
	TimeSigDen   int
}

func DefaultTempo() Tempo {
	return Tempo{BPM: 120, TicksPerBeat: 480, TimeSigNum: 4, TimeSigDen: 4}
}

// TicksToSeconds converts a tick count to seconds at this tempo.
// Non-positive BPM or resolution fall back to 120 BPM / 480 TPB so a
// half-initialized tempo can never divide by zero.
func (t Tempo) TicksToSeconds(ticks int) float64 {
	bpm := t.BPM
	if bpm <= 0 {
		bpm = 120
	}
	tpb := t.TicksPerBeat
	if tpb <= 0 {
		tpb = 480
	}
	return float64(ticks) / float64(tpb) * (60.0 / bpm)
}

// BeatsAt returns the (fractional) beat count at the given playback time.
func (t Tempo) BeatsAt(seconds float64) float64 {
	bpm := t.BPM
	if bpm <= 0 {
		bpm = 120
	}
	return seconds * bpm / 60.0
}

// TotalDuration returns the time in seconds at which the last note of any
// track ends. Returns 0 for an empty arrangement.
func TotalDuration(tracks []Track, tempo Tempo) float64 {
	endTick := 0
	for _, tr := range tracks {
		for _, n := range tr.Notes {
			if n.End() > endTick {
				endTick = n.End()
			}
		}
	}
	return tempo.TicksToSeconds(endTick)
}
