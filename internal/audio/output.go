package audio

import "fmt"

// Output is a running audio device that feeds itself from a SampleSource.
type Output interface {
	Play()
	Pause()
	IsPlaying() bool
	Stop() error
}

// Open starts the named backend pulling from source. The empty name
// selects ebiten. Playback output is stereo; source must interleave two
// channels per frame.
func Open(driver string, sampleRate int, source SampleSource) (Output, error) {
	switch driver {
	case "", "ebiten":
		return newEbitenOutput(sampleRate, source)
	case "oto":
		return newOtoOutput(sampleRate, source)
	case "portaudio":
		return newPortAudioOutput(sampleRate, source)
	default:
		return nil, fmt.Errorf("unknown audio driver %q", driver)
	}
}
