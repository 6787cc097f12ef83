package synth

// Voice couples one oscillator and one envelope to represent a single
// sounding note. A voice is owned exclusively by its track engine; at most
// one voice exists per (track, key) at any instant.
type Voice struct {
	key int
	osc Oscillator
	env Envelope
}

func newVoice(key, velocity int, pitchRatio float64, p Params, sampleRate float64) Voice {
	return Voice{
		key: key,
		osc: newOscillator(key, velocity, pitchRatio, p.Waveform),
		env: newEnvelope(p, sampleRate),
	}
}

// NextSample advances oscillator and envelope by one sample and returns
// their product.
func (v *Voice) NextSample(sampleRate float64) float64 {
	return v.osc.Sample(sampleRate) * v.env.Advance()
}

// Release moves the voice's envelope into its release stage.
func (v *Voice) Release() {
	v.env.TriggerRelease()
}

// Finished reports whether the envelope has reached idle; the owning engine
// reclaims the slot when it does.
func (v *Voice) Finished() bool {
	return v.env.Idle()
}
