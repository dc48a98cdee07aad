package diagnostics

import (
	"math"
	"testing"

	"github.com/kestrel-sim/sphgrav/particle"
)

func twoBodyStore() *particle.Store {
	s := particle.New(2, 0)
	s.Particles[0] = particle.Particle{Alive: true, M: 1, V: [3]float64{1, 0, 0}, U: 2}
	s.Particles[1] = particle.Particle{Alive: true, M: 2, V: [3]float64{-0.5, 0, 0}, U: 1, R: [3]float64{1, 0, 0}}
	return s
}

func TestCollectSumsConservedQuantities(t *testing.T) {
	s := twoBodyStore()
	snap := Collect(s, 3, 0.0)
	wantKE := 0.5*1*1 + 0.5*2*0.25
	if diff := math.Abs(snap.Kinetic - wantKE); diff > 1e-9 {
		t.Errorf("kinetic energy = %v, want %v", snap.Kinetic, wantKE)
	}
	wantMom := 1*1 + 2*(-0.5)
	if diff := math.Abs(snap.Momentum[0] - wantMom); diff > 1e-9 {
		t.Errorf("momentum x = %v, want %v", snap.Momentum[0], wantMom)
	}
	if snap.Mass != 3 {
		t.Errorf("mass = %v, want 3", snap.Mass)
	}
}

func TestCollectSkipsDeadParticles(t *testing.T) {
	s := twoBodyStore()
	s.Particles[1].Alive = false
	snap := Collect(s, 3, 0.0)
	if snap.Mass != 1 {
		t.Errorf("expected only the alive particle's mass, got %v", snap.Mass)
	}
}

func TestRelativeEnergyErrorZeroWhenUnchanged(t *testing.T) {
	s := twoBodyStore()
	snap := Collect(s, 3, 0.0)
	if err := RelativeEnergyError(snap, snap); err != 0 {
		t.Errorf("expected zero energy error for identical snapshots, got %v", err)
	}
}

func TestMomentumDriftDetectsChange(t *testing.T) {
	s := twoBodyStore()
	initial := Collect(s, 3, 0.0)
	s.Particles[0].V[0] += 0.1
	later := Collect(s, 3, 1.0)
	if d := MomentumDrift(later, initial); d <= 0 {
		t.Errorf("expected nonzero momentum drift, got %v", d)
	}
}

func TestHistoryEnergyErrorStats(t *testing.T) {
	s := twoBodyStore()
	initial := Collect(s, 3, 0.0)
	h := NewHistory(initial)
	h.Append(initial)
	s.Particles[0].V[0] += 0.01
	h.Append(Collect(s, 3, 1.0))

	mean, stddev := h.EnergyErrorStats()
	if math.IsNaN(mean) || math.IsNaN(stddev) {
		t.Fatalf("stats are NaN: mean=%v stddev=%v", mean, stddev)
	}
}
