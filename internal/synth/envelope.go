package synth

// EnvStage identifies the amplitude envelope state.
type EnvStage int

const (
	StageAttack EnvStage = iota
	StageDecay
	StageSustain
	StageRelease
	StageIdle
)

// Envelope is a five-stage amplitude shaper driven once per sample.
// Level stays in [0,1]: it only rises during Attack, only falls during
// Decay and Release, holds during Sustain and is pinned to 0 once Idle.
type Envelope struct {
	stage       EnvStage
	level       float64
	sustain     float64
	attackStep  float64
	decayStep   float64
	releaseStep float64
}

// envStep converts a stage duration in milliseconds into a per-sample level
// increment: 1 / max(1, samples). Non-positive durations collapse to a full
// step so the stage finishes on the next sample.
func envStep(ms float64, sampleRate float64) float64 {
	samples := (ms / 1000.0) * sampleRate
	if samples < 1 {
		samples = 1
	}
	return 1 / samples
}

func newEnvelope(p Params, sampleRate float64) Envelope {
	return Envelope{
		stage:       StageAttack,
		sustain:     clamp(p.SustainLevel, 0, 1),
		attackStep:  envStep(p.AttackMs, sampleRate),
		decayStep:   envStep(p.DecayMs, sampleRate),
		releaseStep: envStep(p.ReleaseMs, sampleRate),
	}
}

// Advance applies one per-sample update rule and returns the current level.
func (e *Envelope) Advance() float64 {
	switch e.stage {
	case StageAttack:
		e.level += e.attackStep
		if e.level >= 1 {
			e.level = 1
			e.stage = StageDecay
		}
	case StageDecay:
		e.level -= e.decayStep
		if e.level <= e.sustain {
			e.level = e.sustain
			e.stage = StageSustain
		}
	case StageSustain:
	case StageRelease:
		e.level -= e.releaseStep
		if e.level <= 0 {
			e.level = 0
			e.stage = StageIdle
		}
	case StageIdle:
		e.level = 0
	}
	return e.level
}

// TriggerRelease jumps into Release from any earlier stage. On an already
// releasing or idle envelope it is a no-op; a second note-off is a normal
// scheduling race, not a fault.
func (e *Envelope) TriggerRelease() {
	if e.stage != StageRelease && e.stage != StageIdle {
		e.stage = StageRelease
	}
}

func (e *Envelope) Stage() EnvStage { return e.stage }

func (e *Envelope) Idle() bool { return e.stage == StageIdle }
