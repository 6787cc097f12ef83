package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"seqsynth"
	"seqsynth/internal/debug"
	"seqsynth/score"
)

// pianoKeys maps the home row to semitone offsets from the current octave's C.
var pianoKeys = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12,
}

const previewHold = 300 * time.Millisecond

type tickMsg time.Time

type playbackEventMsg seqsynth.PlaybackEvent

type previewOffMsg struct {
	track int
	key   int
}

type midiNoteMsg struct {
	key      int
	velocity int
	on       bool
}

type model struct {
	eng    *seqsynth.Engine
	tracks []score.Track
	tempo  score.Tempo
	title  string

	events   <-chan seqsynth.PlaybackEvent
	selected int
	octave   int
	midiLive map[int]int // MIDI key -> track it was previewed on
	lastLine string
	quitting bool
}

func newModel(eng *seqsynth.Engine, tracks []score.Track, tempo score.Tempo, title string) model {
	return model{
		eng:      eng,
		tracks:   tracks,
		tempo:    tempo,
		title:    title,
		events:   eng.Watch(),
		octave:   4,
		midiLive: make(map[int]int),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func listenEvents(ch <-chan seqsynth.PlaybackEvent) tea.Cmd {
	return func() tea.Msg { return playbackEventMsg(<-ch) }
}

func previewOffCmd(track, key int) tea.Cmd {
	return tea.Tick(previewHold, func(time.Time) tea.Msg { return previewOffMsg{track: track, key: key} })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), listenEvents(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		// The model is the host loop: every frame hands the current
		// arrangement snapshot to the engine.
		m.eng.Update(m.tracks, m.tempo)
		return m, tickCmd()

	case playbackEventMsg:
		ev := seqsynth.PlaybackEvent(msg)
		m.lastLine = formatEvent(ev)
		if ev.Kind == seqsynth.EventFinished {
			// Park the playhead back at the start so space replays the song.
			m.eng.Stop()
			m.eng.Seek(0)
		}
		return m, listenEvents(m.events)

	case previewOffMsg:
		m.eng.NoteOff(msg.track, msg.key)
		return m, nil

	case midiNoteMsg:
		if msg.on {
			m.midiLive[msg.key] = m.selected
			m.eng.NoteOn(m.selected, msg.key, msg.velocity)
		} else if track, ok := m.midiLive[msg.key]; ok {
			delete(m.midiLive, msg.key)
			m.eng.NoteOff(track, msg.key)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if off, ok := pianoKeys[key]; ok {
		note := (m.octave+1)*12 + off
		debug.Log("preview", "note %d on track %d", note, m.selected)
		m.eng.NoteOn(m.selected, note, 100)
		return m, previewOffCmd(m.selected, note)
	}

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.eng.Stop()
		return m, tea.Quit

	case " ":
		switch {
		case m.eng.IsPlaying():
			m.eng.Pause()
		case m.eng.Position() > 0: // paused or stopped mid-song
			m.eng.Resume()
			if !m.eng.IsPlaying() {
				m.eng.Play(m.eng.Position())
			}
		default:
			m.eng.Play(0)
		}

	case "esc":
		m.eng.Stop()

	case "r":
		m.eng.Seek(0)

	case "left":
		m.eng.Seek(m.eng.Position() - 1)

	case "right":
		m.eng.Seek(m.eng.Position() + 1)

	case "up":
		if m.selected > 0 {
			m.selected--
		}

	case "down":
		if m.selected < len(m.tracks)-1 {
			m.selected++
		}

	case "m":
		if t := m.track(); t != nil {
			t.Muted = !t.Muted
		}

	case "o":
		if t := m.track(); t != nil {
			t.Solo = !t.Solo
		}

	case "c":
		if t := m.track(); t != nil {
			t.Volume = clamp(t.Volume-0.05, 0, 1)
			m.eng.SetTrackVolume(m.selected, t.Volume)
		}

	case "v":
		if t := m.track(); t != nil {
			t.Volume = clamp(t.Volume+0.05, 0, 1)
			m.eng.SetTrackVolume(m.selected, t.Volume)
		}

	case "b":
		if t := m.track(); t != nil {
			t.Pan = clamp(t.Pan-0.1, -1, 1)
			m.eng.SetTrackPan(m.selected, t.Pan)
		}

	case "n":
		if t := m.track(); t != nil {
			t.Pan = clamp(t.Pan+0.1, -1, 1)
			m.eng.SetTrackPan(m.selected, t.Pan)
		}

	case "+", "=":
		m.eng.SetMasterVolume(m.eng.MasterVolume() + 0.05)

	case "-", "_":
		m.eng.SetMasterVolume(m.eng.MasterVolume() - 0.05)

	case "z":
		if m.octave > 0 {
			m.octave--
		}

	case "x":
		if m.octave < 8 {
			m.octave++
		}
	}
	return m, nil
}

func (m *model) track() *score.Track {
	if m.selected < 0 || m.selected >= len(m.tracks) {
		return nil
	}
	return &m.tracks[m.selected]
}

func formatEvent(ev seqsynth.PlaybackEvent) string {
	switch ev.Kind {
	case seqsynth.EventNoteOn:
		return fmt.Sprintf("%7.3fs  note-on  track=%d key=%d vel=%d", ev.Position, ev.Track, ev.Key, ev.Velocity)
	case seqsynth.EventNoteOff:
		return fmt.Sprintf("%7.3fs  note-off track=%d key=%d", ev.Position, ev.Track, ev.Key)
	default:
		return fmt.Sprintf("%7.3fs  %s", ev.Position, ev.Kind)
	}
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

func (m model) View() string {
	if m.quitting {
		return ""
	}

	accent := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selected := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	meterOn := lipgloss.NewStyle().Foreground(lipgloss.Color("114"))

	pos := m.eng.Position()
	total := score.TotalDuration(m.tracks, m.tempo)
	state := "STOP"
	switch {
	case m.eng.IsPlaying():
		state = "PLAY"
	case pos > 0:
		state = "PAUSE"
	}
	beats := m.tempo.BeatsAt(pos)
	num := m.tempo.TimeSigNum
	if num <= 0 {
		num = 4
	}
	bar := int(beats)/num + 1
	beat := int(beats)%num + 1

	header := accent.Render(fmt.Sprintf("seqtui  %s", m.title))
	status := fmt.Sprintf("%s  %6.2fs / %.2fs  bar %d.%d  %gbpm  master %3.0f%%  oct %d  voices %d",
		state, pos, total, bar, beat, m.tempo.BPM, m.eng.MasterVolume()*100, m.octave, m.eng.ActiveVoices())

	levels := m.eng.TrackLevels()

	var rows strings.Builder
	for i := range m.tracks {
		t := &m.tracks[i]
		flags := [2]byte{'-', '-'}
		if t.Muted {
			flags[0] = 'M'
		}
		if t.Solo {
			flags[1] = 'S'
		}
		level := float32(0)
		if i < len(levels) {
			level = levels[i]
		}
		row := fmt.Sprintf(" %2d %-14s %c %c  vol %s  pan %s  %s",
			t.ID, truncate(t.Name, 14), flags[0], flags[1],
			volumeBar(t.Volume), panDial(t.Pan), meterOn.Render(meterBar(level)))
		if i == m.selected {
			row = selected.Render(row)
		}
		rows.WriteString(row)
		rows.WriteString("\n")
	}

	help := dim.Render("space:play/pause  esc:stop  r:rewind  ←/→:seek  ↑/↓:track  m:mute  o:solo  c/v:vol  b/n:pan  +/-:master  a..k:notes  z/x:octave  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(status)
	out.WriteString("\n\n")
	out.WriteString(rows.String())
	out.WriteString("\n")
	if m.lastLine != "" {
		out.WriteString(dim.Render(m.lastLine))
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(help)
	return out.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func volumeBar(v float64) string {
	filled := int(v*8 + 0.5)
	if filled > 8 {
		filled = 8
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 8-filled)
}

func panDial(p float64) string {
	cells := 7
	idx := int((p + 1) / 2 * float64(cells-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= cells {
		idx = cells - 1
	}
	dial := []rune(strings.Repeat("─", cells))
	dial[idx] = '●'
	return string(dial)
}

func meterBar(level float32) string {
	filled := int(level * 12)
	if filled > 12 {
		filled = 12
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("▮", filled) + strings.Repeat(" ", 12-filled)
}
