package synth

import "testing"

// Drives an envelope to completion and asserts the stage order
// Attack -> Decay -> Sustain -> Release -> Idle with level pinned to [0,1],
// across sample rates and stage durations including zero.
func TestEnvelopeStageOrderAndBounds(t *testing.T) {
	rates := []float64{22050, 44100, 48000}
	durations := []struct{ attack, decay, release float64 }{
		{0, 0, 0},
		{1, 1, 1},
		{10, 80, 200},
		{500, 250, 1000},
	}
	for _, rate := range rates {
		for _, d := range durations {
			p := Params{AttackMs: d.attack, DecayMs: d.decay, SustainLevel: 0.6, ReleaseMs: d.release}
			env := newEnvelope(p, rate)

			var visited []EnvStage
			note := func(s EnvStage) {
				if len(visited) == 0 || visited[len(visited)-1] != s {
					visited = append(visited, s)
				}
			}
			note(env.Stage())

			prev := 0.0
			limit := int(rate * 4)
			for i := 0; i < limit && env.Stage() == StageAttack; i++ {
				lvl := env.Advance()
				if lvl < 0 || lvl > 1 {
					t.Fatalf("rate %v %+v: attack level %v out of range", rate, d, lvl)
				}
				if env.Stage() == StageAttack && lvl < prev {
					t.Fatalf("rate %v %+v: attack level decreased %v -> %v", rate, d, prev, lvl)
				}
				prev = lvl
				note(env.Stage())
			}
			for i := 0; i < limit && env.Stage() == StageDecay; i++ {
				lvl := env.Advance()
				if lvl < 0 || lvl > 1 {
					t.Fatalf("rate %v %+v: decay level %v out of range", rate, d, lvl)
				}
				if env.Stage() == StageDecay && lvl > prev {
					t.Fatalf("rate %v %+v: decay level increased %v -> %v", rate, d, prev, lvl)
				}
				prev = lvl
				note(env.Stage())
			}
			if env.Stage() != StageSustain {
				t.Fatalf("rate %v %+v: stuck in %v before sustain", rate, d, env.Stage())
			}
			for i := 0; i < 100; i++ {
				if lvl := env.Advance(); lvl != prev {
					t.Fatalf("rate %v %+v: sustain level moved %v -> %v", rate, d, prev, lvl)
				}
			}
			env.TriggerRelease()
			note(env.Stage())
			for i := 0; i < limit && env.Stage() == StageRelease; i++ {
				lvl := env.Advance()
				if lvl < 0 || lvl > 1 {
					t.Fatalf("rate %v %+v: release level %v out of range", rate, d, lvl)
				}
				if lvl > prev {
					t.Fatalf("rate %v %+v: release level increased %v -> %v", rate, d, prev, lvl)
				}
				prev = lvl
				note(env.Stage())
			}
			if env.Stage() != StageIdle {
				t.Fatalf("rate %v %+v: never reached idle", rate, d)
			}
			if lvl := env.Advance(); lvl != 0 {
				t.Fatalf("rate %v %+v: idle level = %v, want 0", rate, d, lvl)
			}

			want := []EnvStage{StageAttack, StageDecay, StageSustain, StageRelease, StageIdle}
			if len(visited) != len(want) {
				t.Fatalf("rate %v %+v: visited %v, want %v", rate, d, visited, want)
			}
			for i := range want {
				if visited[i] != want[i] {
					t.Fatalf("rate %v %+v: visited %v, want %v", rate, d, visited, want)
				}
			}
		}
	}
}

func TestEnvelopeZeroDurationsAreImmediate(t *testing.T) {
	p := Params{AttackMs: 0, DecayMs: 0, SustainLevel: 0.5, ReleaseMs: 0}
	env := newEnvelope(p, 48000)
	if lvl := env.Advance(); lvl != 1 {
		t.Fatalf("zero attack first sample = %v, want 1", lvl)
	}
	if env.Stage() != StageDecay {
		t.Fatalf("stage after instant attack = %v, want decay", env.Stage())
	}
	if lvl := env.Advance(); lvl != 0.5 {
		t.Fatalf("zero decay sample = %v, want sustain 0.5", lvl)
	}
	env.TriggerRelease()
	if lvl := env.Advance(); lvl != 0 {
		t.Fatalf("zero release sample = %v, want 0", lvl)
	}
	if !env.Idle() {
		t.Fatalf("expected idle after instant release")
	}
}

func TestEnvelopeReleaseFromAttack(t *testing.T) {
	p := Params{AttackMs: 1000, DecayMs: 100, SustainLevel: 0.7, ReleaseMs: 50}
	env := newEnvelope(p, 44100)
	for i := 0; i < 1000; i++ {
		env.Advance()
	}
	if env.Stage() != StageAttack {
		t.Fatalf("expected mid-attack, got %v", env.Stage())
	}
	env.TriggerRelease()
	if env.Stage() != StageRelease {
		t.Fatalf("release from attack: stage = %v", env.Stage())
	}
	for i := 0; i < 44100 && !env.Idle(); i++ {
		env.Advance()
	}
	if !env.Idle() {
		t.Fatalf("release from mid-attack never reached idle")
	}
}

func TestEnvelopeTriggerReleaseIsIdempotent(t *testing.T) {
	env := newEnvelope(Params{AttackMs: 0, DecayMs: 0, SustainLevel: 0.5, ReleaseMs: 100}, 44100)
	env.Advance()
	env.Advance()
	env.TriggerRelease()
	lvlBefore := env.Advance()
	env.TriggerRelease() // second note-off, must not restart the stage
	if env.Stage() != StageRelease {
		t.Fatalf("stage = %v, want release", env.Stage())
	}
	lvlAfter := env.Advance()
	if lvlAfter >= lvlBefore {
		t.Fatalf("release did not keep falling: %v -> %v", lvlBefore, lvlAfter)
	}
	for !env.Idle() {
		env.Advance()
	}
	env.TriggerRelease()
	if !env.Idle() {
		t.Fatalf("TriggerRelease on idle envelope must stay idle")
	}
}
