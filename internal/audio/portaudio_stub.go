//go:build !portaudio

package audio

import "errors"

func newPortAudioOutput(sampleRate int, source SampleSource) (Output, error) {
	return nil, errors.New("portaudio driver requires building with -tags portaudio")
}
