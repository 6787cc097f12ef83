package mixer

// Metering is the only render-side state read directly by control
// goroutines rather than through a message. The render goroutine publishes
// once per block under a mutex held for a single copy.

// publishMeters stores the per-track peaks of the block just rendered and
// the voice count. Runs on the render goroutine.
func (m *Mixer) publishMeters(voices int) {
	m.meterMu.Lock()
	m.levels = append(m.levels[:0], m.peaks...)
	m.voices = voices
	m.meterMu.Unlock()
}

// TrackLevels returns the absolute peak per track from the most recent
// render block. The result is a copy and safe to retain.
func (m *Mixer) TrackLevels() []float32 {
	m.meterMu.Lock()
	defer m.meterMu.Unlock()
	out := make([]float32, len(m.levels))
	copy(out, m.levels)
	return out
}

// ActiveVoices returns the total sounding voice count as of the most
// recent render block.
func (m *Mixer) ActiveVoices() int {
	m.meterMu.Lock()
	defer m.meterMu.Unlock()
	return m.voices
}
