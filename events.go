package seqsynth

import "fmt"

// EventKind labels a PlaybackEvent from Watch().
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventPaused
	EventResumed
	EventSeeked
	EventFinished
	EventNoteOn
	EventNoteOff
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventSeeked:
		return "seeked"
	case EventFinished:
		return "finished"
	case EventNoteOn:
		return "note-on"
	case EventNoteOff:
		return "note-off"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// PlaybackEvent reports a transport change or a dispatched note boundary.
// Track, Key and Velocity are meaningful for note events only.
type PlaybackEvent struct {
	Kind     EventKind
	Position float64
	Track    int
	Key      int
	Velocity int
}
