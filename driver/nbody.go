package driver

import "github.com/kestrel-sim/sphgrav/particle"

// NBodyIntegrator is the N-body star collaborator: given the
// star array and the hydro/gravity acceleration each star felt this
// step, advance positions and velocities by dt. The core treats this
// as a black box -- it never steps star dynamics itself beyond the
// default fallback below.
type NBodyIntegrator interface {
	AdvanceStars(stars []particle.Star, hydroAccel func(i int) [3]float64, dt float64) error
	Stars() []particle.Star
}

// leapfrogNBody is the Driver's built-in fallback NBodyIntegrator: a
// plain KDK leapfrog over the stars' own accumulated acceleration,
// used when no external N-body collaborator is supplied. It mirrors
// integrator.KickHalf/Drift rather than re-deriving the scheme.
type leapfrogNBody struct {
	ndim  int
	stars []particle.Star
}

func newLeapfrogNBody(ndim int, stars []particle.Star) *leapfrogNBody {
	return &leapfrogNBody{ndim: ndim, stars: stars}
}

func (n *leapfrogNBody) AdvanceStars(stars []particle.Star, hydroAccel func(i int) [3]float64, dt float64) error {
	half := 0.5 * dt
	for i := range stars {
		a := hydroAccel(i)
		for d := 0; d < n.ndim; d++ {
			stars[i].V[d] += half * a[d]
		}
	}
	for i := range stars {
		for d := 0; d < n.ndim; d++ {
			stars[i].R[d] += dt * stars[i].V[d]
		}
	}
	for i := range stars {
		a := hydroAccel(i)
		for d := 0; d < n.ndim; d++ {
			stars[i].V[d] += half * a[d]
		}
	}
	n.stars = stars
	return nil
}

func (n *leapfrogNBody) Stars() []particle.Star { return n.stars }
