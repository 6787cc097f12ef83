//go:build portaudio

package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paOnce    sync.Once
	paInitErr error
)

type portAudioOutput struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	playing bool
}

func newPortAudioOutput(sampleRate int, source SampleSource) (Output, error) {
	paOnce.Do(func() { paInitErr = portaudio.Initialize() })
	if paInitErr != nil {
		return nil, paInitErr
	}
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), portaudio.FramesPerBufferUnspecified, func(out []float32) {
		source.Process(out)
	})
	if err != nil {
		return nil, err
	}
	return &portAudioOutput{stream: stream}, nil
}

func (o *portAudioOutput) Play() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playing {
		return
	}
	if err := o.stream.Start(); err == nil {
		o.playing = true
	}
}

func (o *portAudioOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.playing {
		return
	}
	if err := o.stream.Stop(); err == nil {
		o.playing = false
	}
}

func (o *portAudioOutput) IsPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

func (o *portAudioOutput) Stop() error {
	o.Pause()
	return o.stream.Close()
}
