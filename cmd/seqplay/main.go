// Command seqplay plays a Standard MIDI File through the synthesis engine,
// or bounces it to a WAV file with -wav.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"seqsynth"
	"seqsynth/internal/config"
	"seqsynth/internal/smfio"
	"seqsynth/score"
)

func main() {
	var (
		driver  = flag.String("driver", "", "audio driver: ebiten|oto|portaudio (default from config)")
		wavPath = flag.String("wav", "", "render to a WAV file instead of playing")
		cfgPath = flag.String("config", "", "config file (default ~/.config/seqsynth/config.json)")
		watch   = flag.Bool("watch", false, "hot-apply config file edits during playback")
		from    = flag.Float64("from", 0, "start position in seconds")
		volume  = flag.Float64("volume", -1, "master volume 0..1 (overrides config)")
		verbose = flag.Bool("verbose", false, "print every dispatched note event")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: seqplay [flags] song.mid")
	}
	path := flag.Arg(0)

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
	if *volume >= 0 {
		cfg.MasterVolume = *volume
	}

	tracks, tempo, err := smfio.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	total := score.TotalDuration(tracks, tempo)

	if *wavPath != "" {
		bounce(*wavPath, tracks, tempo, cfg)
		return
	}

	eng, err := seqsynth.New(cfg.SampleRate,
		seqsynth.WithDriver(cfg.AudioDriver),
		seqsynth.WithSynth(synthParams(cfg.Synth)),
		seqsynth.WithMasterVolume(cfg.MasterVolume))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	var (
		cfgCh   chan config.Config
		cfgErrs chan error
	)
	if *watch {
		cfgCh = make(chan config.Config, 1)
		cfgErrs = make(chan error, 1)
		done := make(chan struct{})
		defer close(done)
		if err := config.Watch(cfgFile, cfgCh, cfgErrs, done); err != nil {
			log.Fatal(err)
		}
	}

	events := eng.Watch()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	eng.Play(*from)
	log.Printf("playing %s: %d tracks, %.1fs", path, len(tracks), total)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			eng.Update(tracks, tempo)
		case ev := <-events:
			switch ev.Kind {
			case seqsynth.EventFinished:
				fmt.Println("playback completed")
				return
			case seqsynth.EventNoteOn:
				if *verbose {
					fmt.Printf("%7.3fs note-on  track=%d key=%d vel=%d\n", ev.Position, ev.Track, ev.Key, ev.Velocity)
				}
			case seqsynth.EventNoteOff:
				if *verbose {
					fmt.Printf("%7.3fs note-off track=%d key=%d\n", ev.Position, ev.Track, ev.Key)
				}
			}
		case c := <-cfgCh:
			applyConfig(eng, c)
			log.Printf("config reloaded")
		case err := <-cfgErrs:
			log.Printf("config watch: %v", err)
		case <-sig:
			eng.Stop()
			return
		}
	}
}

func bounce(path string, tracks []score.Track, tempo score.Tempo, cfg config.Config) {
	samples, err := seqsynth.RenderTracks(tracks, tempo, synthParams(cfg.Synth), cfg.SampleRate)
	if err != nil {
		log.Fatal(err)
	}
	wav := seqsynth.EncodeWAVFloat32LE(samples, cfg.SampleRate, 2)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s: %.1fs at %d Hz", path, float64(len(samples)/2)/float64(cfg.SampleRate), cfg.SampleRate)
}

func synthParams(s config.Synth) seqsynth.SynthParams {
	return seqsynth.SynthParams{
		Waveform:     s.Waveform,
		MaxVoices:    s.MaxVoices,
		AttackMs:     s.AttackMs,
		DecayMs:      s.DecayMs,
		SustainLevel: s.SustainLevel,
		ReleaseMs:    s.ReleaseMs,
	}
}

func applyConfig(eng *seqsynth.Engine, c config.Config) {
	eng.SetMasterVolume(c.MasterVolume)
	if err := eng.SetSynth(synthParams(c.Synth)); err != nil {
		log.Printf("config: %v", err)
	}
}
