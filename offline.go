package seqsynth

import (
	"encoding/binary"
	"errors"
	"math"

	"seqsynth/internal/mixer"
	"seqsynth/internal/schedule"
	"seqsynth/internal/synth"
	"seqsynth/score"
)

// RenderTracks synthesizes an arrangement offline and returns interleaved
// stereo float32 samples. The scheduler is driven by a synthetic clock at
// render speed, so the result is the same audio a live playback would
// produce, plus a short tail for the final release.
func RenderTracks(tracks []score.Track, tempo score.Tempo, params SynthParams, sampleRate int) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	p, err := params.toParams()
	if err != nil {
		return nil, err
	}
	mix := mixer.New(sampleRate, stereoChannels, p, func(rate int, mp synth.Params) mixer.TrackEngine {
		return synth.NewEngine(rate, mp)
	})
	sched := schedule.New(func(m mixer.Msg) { mix.Send(m) })

	tail := p.ReleaseMs/1000 + 0.2
	totalFrames := int(math.Ceil((score.TotalDuration(tracks, tempo) + tail) * float64(sampleRate)))

	const chunkFrames = 1024
	chunk := make([]float32, chunkFrames*stereoChannels)
	out := make([]float32, 0, (totalFrames+chunkFrames)*stereoChannels)

	sched.Start(0, 0)
	for frames := 0; frames < totalFrames; frames += chunkFrames {
		sched.Update(float64(frames)/float64(sampleRate), tracks, tempo)
		mix.Process(chunk)
		out = append(out, chunk...)
	}
	return out[:totalFrames*stereoChannels], nil
}

// EncodeWAVFloat32LE encodes samples as a float32 little-endian WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
