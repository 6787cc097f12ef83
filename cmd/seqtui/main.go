// Command seqtui is a terminal transport for the synthesis engine: play,
// pause and seek an SMF arrangement, mute/solo/mix its tracks live, watch
// per-track meters, and preview notes from the computer keyboard or an
// attached MIDI input.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"seqsynth"
	"seqsynth/internal/config"
	"seqsynth/internal/debug"
	"seqsynth/internal/smfio"
)

func main() {
	var (
		driver  = flag.String("driver", "", "audio driver: ebiten|oto|portaudio (default from config)")
		cfgPath = flag.String("config", "", "config file (default ~/.config/seqsynth/config.json)")
		midiIn  = flag.Bool("midi", false, "preview notes from the first MIDI input port")
		dbg     = flag.Bool("debug", false, "write a debug log to ~/.config/seqsynth/debug.log")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: seqtui [flags] song.mid")
	}
	path := flag.Arg(0)

	if *dbg {
		if err := debug.Enable(); err != nil {
			log.Fatal(err)
		}
		defer debug.Disable()
	}

	cfgFile := *cfgPath
	if cfgFile == "" {
		var err error
		cfgFile, err = config.DefaultPath()
		if err != nil {
			log.Fatal(err)
		}
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal(err)
	}
	if *driver != "" {
		cfg.AudioDriver = *driver
	}

	tracks, tempo, err := smfio.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	eng, err := seqsynth.New(cfg.SampleRate,
		seqsynth.WithDriver(cfg.AudioDriver),
		seqsynth.WithSynth(seqsynth.SynthParams{
			Waveform:     cfg.Synth.Waveform,
			MaxVoices:    cfg.Synth.MaxVoices,
			AttackMs:     cfg.Synth.AttackMs,
			DecayMs:      cfg.Synth.DecayMs,
			SustainLevel: cfg.Synth.SustainLevel,
			ReleaseMs:    cfg.Synth.ReleaseMs,
		}),
		seqsynth.WithMasterVolume(cfg.MasterVolume))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()
	debug.Log("main", "loaded %s: %d tracks", path, len(tracks))

	m := newModel(eng, tracks, tempo, filepath.Base(path))
	p := tea.NewProgram(m, tea.WithAltScreen())

	if *midiIn {
		stop, err := listenMIDI(p)
		if err != nil {
			log.Fatal(err)
		}
		defer stop()
	}

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// listenMIDI forwards note events from the first MIDI input port into the
// running program.
func listenMIDI(p *tea.Program) (func(), error) {
	ins := gomidi.GetInPorts()
	if len(ins) == 0 {
		return nil, errors.New("no MIDI input ports found")
	}
	in := ins[0]
	debug.Log("midi", "listening on %s", in.String())
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			p.Send(midiNoteMsg{key: int(key), velocity: int(vel), on: true})
		case msg.GetNoteEnd(&ch, &key):
			p.Send(midiNoteMsg{key: int(key)})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("open MIDI input: %w", err)
	}
	return stop, nil
}
