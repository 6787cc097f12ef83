package audio

import (
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ebiten allows exactly one audio context per process, so it is created
// once and later opens verify the sample rate matches.
var (
	ebitenOnce sync.Once
	ebitenCtx  *ebitaudio.Context
	ebitenRate int
)

func sharedEbitenContext(sampleRate int) (*ebitaudio.Context, error) {
	ebitenOnce.Do(func() {
		ebitenRate = sampleRate
		ebitenCtx = ebitaudio.NewContext(sampleRate)
	})
	if ebitenRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", ebitenRate, sampleRate)
	}
	return ebitenCtx, nil
}

type ebitenOutput struct {
	player *ebitaudio.Player
	reader *StreamReader
}

func newEbitenOutput(sampleRate int, source SampleSource) (Output, error) {
	ctx, err := sharedEbitenContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, 2)
	player, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &ebitenOutput{player: player, reader: reader}, nil
}

func (o *ebitenOutput) Play()           { o.player.Play() }
func (o *ebitenOutput) Pause()          { o.player.Pause() }
func (o *ebitenOutput) IsPlaying() bool { return o.player.IsPlaying() }

func (o *ebitenOutput) Stop() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.reader.Close()
}
