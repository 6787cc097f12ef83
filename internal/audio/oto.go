package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Like ebiten, oto permits a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
		otoRate = sampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoRate, sampleRate)
	}
	return otoCtx, nil
}

type otoOutput struct {
	player *oto.Player
	reader *StreamReader
}

func newOtoOutput(sampleRate int, source SampleSource) (Output, error) {
	ctx, err := sharedOtoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, 2)
	return &otoOutput{player: ctx.NewPlayer(reader), reader: reader}, nil
}

func (o *otoOutput) Play()           { o.player.Play() }
func (o *otoOutput) Pause()          { o.player.Pause() }
func (o *otoOutput) IsPlaying() bool { return o.player.IsPlaying() }

func (o *otoOutput) Stop() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.reader.Close()
}
