package gravity

import (
	"math"
	"testing"

	"github.com/kestrel-sim/sphgrav/kernel"
	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/tree"
)

func TestSmoothedPairMatchesDirectBeyondRange(t *testing.T) {
	k := kernel.New("m4", 3, false)
	p := &Params{Ndim: 3, Ewald: NullEwald{}}

	pi := particle.Particle{H: 0.01, R: [3]float64{0, 0, 0}}
	pj := particle.Particle{H: 0.01, M: 2.0, R: [3]float64{5, 0, 0}}

	SmoothedPair(k, p, &pi, &pj)

	r := 5.0
	want := pj.M / (r * r)
	if diff := math.Abs(pi.A[0] - want); diff > 1e-6 {
		t.Errorf("far-field smoothed gravity a_x=%v, want ~%v", pi.A[0], want)
	}
}

func TestDirectPairNewtonian(t *testing.T) {
	p := &Params{Ndim: 3, Ewald: NullEwald{}}
	pi := particle.Particle{R: [3]float64{0, 0, 0}}
	DirectPair(p, &pi, 1.0, [3]float64{2, 0, 0})
	want := 1.0 / 4.0
	if diff := math.Abs(pi.A[0] - want); diff > 1e-9 {
		t.Errorf("direct gravity a_x=%v, want %v", pi.A[0], want)
	}
}

func TestCellMonopoleMatchesPointMass(t *testing.T) {
	p := &Params{Ndim: 3, Multipole: Monopole, Ewald: NullEwald{}}
	pi := particle.Particle{R: [3]float64{0, 0, 0}}
	node := &tree.Node{Mass: 3.0, COM: [3]float64{4, 0, 0}}
	CellContribution(p, &pi, node)
	want := 3.0 / 16.0
	if diff := math.Abs(pi.A[0] - want); diff > 1e-9 {
		t.Errorf("monopole a_x=%v, want %v", pi.A[0], want)
	}
}

func TestStarPairUsesMeanSoftening(t *testing.T) {
	k := kernel.New("m4", 3, false)
	p := &Params{Ndim: 3, Ewald: NullEwald{}}
	pi := particle.Particle{H: 0.01, R: [3]float64{0, 0, 0}}
	star := &particle.Star{M: 1.0, H: 0.01, R: [3]float64{5, 0, 0}}
	StarPair(k, p, &pi, star)
	if pi.A[0] <= 0 {
		t.Errorf("expected attractive (positive x) acceleration toward star, got %v", pi.A[0])
	}
}

func TestPairOnStarMatchesSoftenedMagnitude(t *testing.T) {
	k := kernel.New("m4", 3, false)
	p := &Params{Ndim: 3, Ewald: NullEwald{}}
	pi := particle.Particle{H: 0.01, M: 2.0, R: [3]float64{0, 0, 0}}
	star := &particle.Star{H: 0.01, R: [3]float64{5, 0, 0}}

	PairOnStar(k, p, star, &pi)

	r := 5.0
	want := -pi.M / (r * r)
	if diff := math.Abs(star.A[0] - want); diff > 1e-6 {
		t.Errorf("star pulled toward gas a_x=%v, want ~%v", star.A[0], want)
	}
}

func TestFastFieldMatchesDirectAtCenter(t *testing.T) {
	p := &Params{Ndim: 3}
	node := &tree.Node{Mass: 2.0, COM: [3]float64{3, 0, 0}}
	center := [3]float64{0, 0, 0}
	f := BuildFastField(p, center, node)

	pi := particle.Particle{R: center}
	ApplyFastField(p, &pi, center, f)

	want := 2.0 / 9.0
	if diff := math.Abs(pi.A[0] - want); diff > 1e-9 {
		t.Errorf("fast field at expansion center a_x=%v, want %v", pi.A[0], want)
	}
}
