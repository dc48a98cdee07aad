package integrator

import (
	"testing"

	"github.com/kestrel-sim/sphgrav/particle"
)

func baseParams() *Params {
	return &Params{Ndim: 3, Nlevels: 8, CourantMult: 0.3, AccelMult: 0.3, EnergyMult: 0.3, DtMax: 1.0}
}

func TestAssignLevelRisesAtMostOnePerCall(t *testing.T) {
	p := baseParams()
	pi := &particle.Particle{H: 1e-6, SoundSpeed: 100, Level: 0, LevelNeib: 0}
	level := AssignLevel(p, pi)
	if level > pi.Level+1 {
		t.Errorf("level rose by more than 1: got %d from %d", level, pi.Level)
	}
}

func TestAssignLevelRespectsLevelNeibFloor(t *testing.T) {
	p := baseParams()
	pi := &particle.Particle{H: 10, SoundSpeed: 0.01, Level: 5, LevelNeib: 3}
	level := AssignLevel(p, pi)
	if level < pi.LevelNeib {
		t.Errorf("level %d fell below levelneib floor %d", level, pi.LevelNeib)
	}
}

func TestAssignLevelZeroForQuietParticle(t *testing.T) {
	p := baseParams()
	pi := &particle.Particle{H: 1.0, SoundSpeed: 0, Level: 0, LevelNeib: 0}
	level := AssignLevel(p, pi)
	if level != 0 {
		t.Errorf("expected level 0 for a particle with no signal speed, got %d", level)
	}
}

func TestAssignLevelNeverExceedsCandidateDt(t *testing.T) {
	// DtMax=8 over 4 levels gives the ladder 8, 4, 2, 1. A candidate
	// that is not an exact rung must round down (finer), never up: the
	// assigned level's dt_level may not exceed the candidate.
	p := &Params{Ndim: 3, Nlevels: 4, CourantMult: 1, AccelMult: 1, EnergyMult: 1, DtMax: 8}
	for _, tc := range []struct {
		h, cs     float64
		wantLevel int
	}{
		{3, 1, 2},    // candidate 3 -> dt_level 2
		{1.01, 1, 3}, // candidate 1.01 -> dt_level 1
		{4, 1, 1},    // exact rung stays on it
	} {
		// Level starts high so the one-per-call rise limit does not
		// mask the rounding direction.
		pi := &particle.Particle{H: tc.h, SoundSpeed: tc.cs, Level: 3, LevelNeib: 0}
		level := AssignLevel(p, pi)
		if level != tc.wantLevel {
			t.Errorf("candidate %v: level = %d, want %d", tc.h/tc.cs, level, tc.wantLevel)
		}
		if dtLev := DtLevel(p.DtMax, level); dtLev > CandidateDt(p, pi) {
			t.Errorf("candidate %v: dt_level %v exceeds the candidate", tc.h/tc.cs, dtLev)
		}
	}
}

func TestDtLevelHalvesPerLevel(t *testing.T) {
	if got := DtLevel(1.0, 3); got != 0.125 {
		t.Errorf("DtLevel(1.0, 3) = %v, want 0.125", got)
	}
}

func TestActiveOnSubstepSchedule(t *testing.T) {
	// Level 0 on a ladder whose finest level is 3 updates every 2^3=8 sub-steps; level
	// 3 (finest) updates every sub-step.
	if !ActiveOnSubstep(0, 3, 0) {
		t.Error("level 0 should be active on sub-step 0")
	}
	if ActiveOnSubstep(0, 3, 4) {
		t.Error("level 0 should not be active on sub-step 4")
	}
	for n := 0; n < 8; n++ {
		if !ActiveOnSubstep(3, 3, n) {
			t.Errorf("finest level should be active every sub-step, failed at n=%d", n)
		}
	}
}

func TestKickHalfThenDriftMovesParticle(t *testing.T) {
	pi := &particle.Particle{V: [3]float64{1, 0, 0}, A: [3]float64{2, 0, 0}}
	KickHalf(pi, 1.0, 3)
	if pi.V[0] != 2 {
		t.Errorf("after half-kick v_x=%v, want 2", pi.V[0])
	}
	Drift(pi, 1.0, 3)
	if pi.R[0] != 2 {
		t.Errorf("after drift r_x=%v, want 2", pi.R[0])
	}
}
