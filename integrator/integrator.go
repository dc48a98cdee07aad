// Package integrator implements block timesteps: per-particle level
// assignment with hysteresis/levelneib discipline, leapfrog KDK/DKD
// kick-drift, and the two-stage Runge-Kutta predictor/corrector used
// by the Meshless-FV dialect.
package integrator

import (
	"math"

	"github.com/kestrel-sim/sphgrav/particle"
)

// Params configures level assignment and the integration scheme.
type Params struct {
	Ndim              int
	Nlevels           int
	CourantMult       float64
	AccelMult         float64
	EnergyMult        float64
	SPHSingleTimestep bool
	DtMax             float64
	Scheme            string // "lfkdk", "lfdkd", "rk"
}

// DtLevel returns dt_max / 2^level.
func DtLevel(dtMax float64, level int) float64 {
	return dtMax / math.Exp2(float64(level))
}

// CandidateDt returns the per-particle candidate timestep
// min(C_Cour*h/v_sig, C_acc*sqrt(h/|a|), C_en*|u|/|du/dt|), or
// MaxFloat64 when no condition constrains the particle.
func CandidateDt(p *Params, pi *particle.Particle) float64 {
	vsig := pi.SoundSpeed
	amag := 0.0
	for a := 0; a < p.Ndim; a++ {
		amag += pi.A[a] * pi.A[a]
	}
	amag = math.Sqrt(amag)

	dtCour := math.MaxFloat64
	if vsig > 0 && pi.H > 0 {
		dtCour = p.CourantMult * pi.H / vsig
	}
	dtAcc := math.MaxFloat64
	if amag > 0 && pi.H > 0 {
		dtAcc = p.AccelMult * math.Sqrt(pi.H/amag)
	}
	dtEn := math.MaxFloat64
	if pi.DuDt != 0 && pi.U > 0 {
		dtEn = p.EnergyMult * math.Abs(pi.U/pi.DuDt)
	}
	return math.Min(dtCour, math.Min(dtAcc, dtEn))
}

// AssignLevel computes the candidate timestep from the Courant,
// acceleration, and energy-rate conditions, rounds it down to the
// coarsest level whose dt_level does not exceed the candidate, and
// applies the hysteresis (+1 level max per call) and levelneib-floor
// (can only fall to levelneib) discipline.
func AssignLevel(p *Params, pi *particle.Particle) int {
	dt := CandidateDt(p, pi)
	if dt >= p.DtMax || math.IsInf(dt, 0) {
		return clampLevel(p, 0, pi)
	}

	// Descend while the current level's dt still exceeds the candidate,
	// so the assigned level never integrates past the particle's own
	// limit.
	level := 0
	for level < p.Nlevels-1 && DtLevel(p.DtMax, level) > dt {
		level++
	}
	return clampLevel(p, level, pi)
}

func clampLevel(p *Params, level int, pi *particle.Particle) int {
	if level > pi.Level+1 {
		level = pi.Level + 1
	}
	if level < pi.LevelNeib {
		level = pi.LevelNeib
	}
	if level < 0 {
		level = 0
	}
	if level > p.Nlevels-1 {
		level = p.Nlevels - 1
	}
	return level
}

// ActiveOnSubstep reports whether a particle on the given level is
// due to update on base sub-step n (0-indexed), under the block
// timestep scheme where level l updates every 2^(maxLevel-l)
// sub-steps.
func ActiveOnSubstep(level, maxLevel, n int) bool {
	period := 1 << (maxLevel - level)
	return n%period == 0
}

// KickHalf applies a half-step velocity kick using the current
// acceleration, the leapfrog KDK predictor/corrector half.
func KickHalf(pi *particle.Particle, dtLevel float64, ndim int) {
	half := 0.5 * dtLevel
	for a := 0; a < ndim; a++ {
		pi.V[a] += half * pi.A[a]
	}
	pi.U += half * pi.DuDt
}

// Kick applies a full-step velocity and internal-energy kick, the K of
// the drift-kick-drift scheme.
func Kick(pi *particle.Particle, dtLevel float64, ndim int) {
	for a := 0; a < ndim; a++ {
		pi.V[a] += dtLevel * pi.A[a]
	}
	pi.U += dtLevel * pi.DuDt
}

// Drift advances position (and, for DKD, velocity was already kicked
// by the caller) by a full level sub-step.
func Drift(pi *particle.Particle, dtLevel float64, ndim int) {
	for a := 0; a < ndim; a++ {
		pi.R[a] += dtLevel * pi.V[a]
	}
}

// RKPredict advances a Meshless-FV particle's conserved quantities by
// half a step using the flux rates dQ supplied by the caller (the
// driver passes the previous sub-step's rates), producing the predictor state fed to
// the face reconstruction at the stage-2 flux evaluation.
func RKPredict(pi *particle.Particle, dQ particle.Conservative, dtLevel float64, ndim int) {
	half := 0.5 * dtLevel
	pi.Q.Mass += half * dQ.Mass
	for a := 0; a < ndim; a++ {
		pi.Q.Mom[a] += half * dQ.Mom[a]
	}
	pi.Q.Energy += half * dQ.Energy
}

// RKCorrect drifts a Meshless-FV particle's position by a full level
// sub-step at its current velocity. It does not touch the conserved
// quantities; the stage-2 flux update is applied by the caller.
func RKCorrect(pi *particle.Particle, dtLevel float64, ndim int) {
	for a := 0; a < ndim; a++ {
		pi.R[a] += dtLevel * pi.V[a]
	}
}
