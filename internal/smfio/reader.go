// Package smfio decodes Standard MIDI Files into score snapshots. It is
// the editor-side collaborator that feeds the playback core: only note
// boundaries, track names and the global tempo map survive the import,
// everything else in the file is skipped.
package smfio

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"seqsynth/score"
)

// ReadFile decodes the SMF at path into tracks plus the global tempo.
func ReadFile(path string) ([]score.Track, score.Tempo, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, score.Tempo{}, fmt.Errorf("read smf: %w", err)
	}
	return fromSMF(s)
}

// Read decodes an SMF from r.
func Read(r io.Reader) ([]score.Track, score.Tempo, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, score.Tempo{}, fmt.Errorf("read smf: %w", err)
	}
	return fromSMF(s)
}

type openNote struct {
	start    int
	velocity int
}

type noteID struct {
	channel uint8
	key     uint8
}

func fromSMF(s *smf.SMF) ([]score.Track, score.Tempo, error) {
	metric, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, score.Tempo{}, fmt.Errorf("unsupported SMF time format %v", s.TimeFormat)
	}
	tempo := score.DefaultTempo()
	tempo.TicksPerBeat = int(metric.Resolution())

	var (
		tracks   []score.Track
		tempoSet bool
		meterSet bool
	)
	for _, tr := range s.Tracks {
		var (
			notes []score.Note
			name  string
			abs   int
			open  = map[noteID]openNote{}
		)
		closeNote := func(id noteID, end int) {
			on, ok := open[id]
			if !ok {
				return
			}
			delete(open, id)
			if d := end - on.start; d > 0 {
				notes = append(notes, score.Note{
					Start:    on.start,
					Duration: d,
					Key:      int(id.key),
					Velocity: on.velocity,
				})
			}
		}
		for _, ev := range tr {
			abs += int(ev.Delta)
			var (
				ch, key, vel uint8
				bpm          float64
				num, denom   uint8
				text         string
			)
			switch {
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				id := noteID{ch, key}
				// A restart on an already-open key ends the first note.
				closeNote(id, abs)
				open[id] = openNote{start: abs, velocity: int(vel)}
			case ev.Message.GetNoteEnd(&ch, &key):
				closeNote(noteID{ch, key}, abs)
			case ev.Message.GetMetaTempo(&bpm):
				if !tempoSet && bpm > 0 {
					tempo.BPM = bpm
					tempoSet = true
				}
			case ev.Message.GetMetaMeter(&num, &denom):
				if !meterSet && num > 0 && denom > 0 {
					tempo.TimeSigNum = int(num)
					tempo.TimeSigDen = int(denom)
					meterSet = true
				}
			case ev.Message.GetMetaTrackName(&text):
				if name == "" {
					name = text
				}
			}
		}
		// Notes left open at end of track run to the last event.
		for id := range open {
			closeNote(id, abs)
		}
		if len(notes) == 0 {
			continue
		}
		sort.Slice(notes, func(i, j int) bool {
			if notes[i].Start != notes[j].Start {
				return notes[i].Start < notes[j].Start
			}
			return notes[i].Key < notes[j].Key
		})
		id := len(tracks)
		if name == "" {
			name = fmt.Sprintf("Track %d", id+1)
		}
		tracks = append(tracks, score.Track{
			ID:     id,
			Name:   name,
			Volume: 1,
			Notes:  notes,
		})
	}
	return tracks, tempo, nil
}
