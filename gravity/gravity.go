// Package gravity evaluates self-gravity: smoothed pair gravity,
// direct summation, cell multipole expansion, periodic (Ewald)
// correction, and star-particle softened gravity.
package gravity

import (
	"math"

	"github.com/kestrel-sim/sphgrav/kernel"
	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/tree"
)

// EwaldCorrector is the periodic-gravity collaborator: given
// a source mass and the minimum-image displacement vector, returns
// the long-range periodic correction to the acceleration and
// potential on top of the nearest-image direct sum.
type EwaldCorrector interface {
	Correction(mass float64, rvec [3]float64, ndim int) (aPeriodic [3]float64, phiPeriodic float64)
}

// NullEwald applies no correction; used for non-periodic-gravity runs.
type NullEwald struct{}

func (NullEwald) Correction(mass float64, rvec [3]float64, ndim int) ([3]float64, float64) {
	return [3]float64{}, 0
}

// Multipole selects the cell-contribution evaluation scheme.
type Multipole int

const (
	Monopole Multipole = iota
	Quadrupole
	FastMonopole
	FastQuadrupole
)

// Params configures one gravity pass.
type Params struct {
	Ndim      int
	Multipole Multipole
	Ewald     EwaldCorrector
	Periodic  bool
}

// SmoothedPair adds the softened smoothed-pair gravitational
// contribution of particle j (from the hydro/grav neighbor list) to
// particle i's acceleration and potential, using the kernel's W_grav
// and W_pot forms at the mean softening h_mean = 2*h_i*h_j/(h_i+h_j).
func SmoothedPair(k kernel.Kernel, p *Params, pi *particle.Particle, pj *particle.Particle) {
	hMean := particle.MeanSofteningWithStar(pi.H, pj.H)
	addSoftenedPair(k, p, pi, pj.M, pj.R, hMean)
}

// StarPair adds a star particle's softened gravitational contribution
// to a gas particle's acceleration and potential, using the star's
// own smoothing length for the mean-softening blend.
func StarPair(k kernel.Kernel, p *Params, pi *particle.Particle, star *particle.Star) {
	hMean := particle.MeanSofteningWithStar(pi.H, star.H)
	addSoftenedPair(k, p, pi, star.M, star.R, hMean)
}

// PairOnStar adds gas particle pi's softened gravitational pull to a
// star's acceleration accumulator, the reciprocal of StarPair, so the
// NBodyIntegrator collaborator is handed the star's actual
// felt acceleration from the hydro side rather than advancing under
// gas gravity it never experiences.
func PairOnStar(k kernel.Kernel, p *Params, star *particle.Star, pi *particle.Particle) {
	hMean := particle.MeanSofteningWithStar(pi.H, star.H)
	var rij [3]float64
	r2 := 0.0
	for a := 0; a < p.Ndim; a++ {
		rij[a] = star.R[a] - pi.R[a]
		r2 += rij[a] * rij[a]
	}
	r := math.Sqrt(r2)
	if r <= 0 {
		return
	}
	s := r / hMean
	fgrav := pi.M * k.WGrav(s) / (hMean * hMean)
	for a := 0; a < p.Ndim; a++ {
		star.A[a] -= fgrav * rij[a] / r
	}
}

func addSoftenedPair(k kernel.Kernel, p *Params, pi *particle.Particle, mass float64, srcR [3]float64, hMean float64) {
	var rij [3]float64
	r2 := 0.0
	for a := 0; a < p.Ndim; a++ {
		rij[a] = pi.R[a] - srcR[a]
		r2 += rij[a] * rij[a]
	}
	r := math.Sqrt(r2)
	if r <= 0 {
		return
	}
	s := r / hMean
	fgrav := mass * k.WGrav(s) / (hMean * hMean)
	for a := 0; a < p.Ndim; a++ {
		pi.A[a] -= fgrav * rij[a] / r
	}
	pi.Phi -= mass * k.WPot(s) / hMean

	if p.Periodic && p.Ewald != nil {
		aPer, phiPer := p.Ewald.Correction(mass, rij, p.Ndim)
		for a := 0; a < p.Ndim; a++ {
			pi.A[a] += aPer[a]
		}
		pi.Phi += phiPer
	}
}

// DirectPair adds an unsoftened Newtonian point-mass contribution
// for sources beyond kernel reach, optionally Ewald-corrected.
func DirectPair(p *Params, pi *particle.Particle, mass float64, srcR [3]float64) {
	var rij [3]float64
	r2 := 0.0
	for a := 0; a < p.Ndim; a++ {
		rij[a] = pi.R[a] - srcR[a]
		r2 += rij[a] * rij[a]
	}
	r2 = math.Max(r2, 1e-300)
	r := math.Sqrt(r2)
	fgrav := mass / (r2 * r)
	for a := 0; a < p.Ndim; a++ {
		pi.A[a] -= fgrav * rij[a]
	}
	pi.Phi -= mass / r

	if p.Periodic && p.Ewald != nil {
		aPer, phiPer := p.Ewald.Correction(mass, rij, p.Ndim)
		for a := 0; a < p.Ndim; a++ {
			pi.A[a] += aPer[a]
		}
		pi.Phi += phiPer
	}
}

// CellContribution adds the monopole or monopole+quadrupole expansion
// of a tree node's mass distribution about its center of mass to
// particle i's acceleration and potential.
func CellContribution(p *Params, pi *particle.Particle, node *tree.Node) {
	var rij [3]float64
	r2 := 0.0
	for a := 0; a < p.Ndim; a++ {
		rij[a] = pi.R[a] - node.COM[a]
		r2 += rij[a] * rij[a]
	}
	r2 = math.Max(r2, 1e-300)
	r := math.Sqrt(r2)
	r3 := r2 * r

	for a := 0; a < p.Ndim; a++ {
		pi.A[a] -= node.Mass * rij[a] / r3
	}
	pi.Phi -= node.Mass / r

	if p.Multipole == Quadrupole || p.Multipole == FastQuadrupole {
		addQuadrupole(p, pi, node, rij, r, r3)
	}

	if p.Periodic && p.Ewald != nil {
		aPer, phiPer := p.Ewald.Correction(node.Mass, rij, p.Ndim)
		for a := 0; a < p.Ndim; a++ {
			pi.A[a] += aPer[a]
		}
		pi.Phi += phiPer
	}
}

// addQuadrupole adds the standard traceless-quadrupole correction
// term to the monopole force/potential already accumulated.
func addQuadrupole(p *Params, pi *particle.Particle, node *tree.Node, rij [3]float64, r, r3 float64) {
	r5 := r3 * r * r
	qr := [3]float64{}
	trace := 0.0
	for a := 0; a < p.Ndim; a++ {
		trace += node.Quad[a][a]
		for b := 0; b < p.Ndim; b++ {
			qr[a] += node.Quad[a][b] * rij[b]
		}
	}
	qrr := 0.0
	for a := 0; a < p.Ndim; a++ {
		qrr += qr[a] * rij[a]
	}

	pi.Phi -= 0.5 * (qrr/r5 - trace/(3*r3))

	for a := 0; a < p.Ndim; a++ {
		pi.A[a] -= qr[a]/r5 - rij[a]*qrr*2.5/(r5*r*r) - rij[a]*trace/(3*r5)
	}
}

// FastCellField is a single Taylor-expanded field (acceleration and
// potential gradient basis) evaluated once per active cell at an
// expansion center (the driver uses the cell's center of mass), for the fast_monopole/fast_quadrupole variants
// which evaluate the field once per cell instead of once per particle.
type FastCellField struct {
	A0   [3]float64
	Phi0 float64
	// dAdr is the acceleration Jacobian at the expansion center, used
	// to extrapolate to each active particle's actual position.
	DAdr [3][3]float64
}

// BuildFastField evaluates the cell field at center from a source
// node's monopole (and quadrupole, if requested) moments.
func BuildFastField(p *Params, center [3]float64, node *tree.Node) FastCellField {
	var rij [3]float64
	r2 := 0.0
	for a := 0; a < p.Ndim; a++ {
		rij[a] = center[a] - node.COM[a]
		r2 += rij[a] * rij[a]
	}
	r2 = math.Max(r2, 1e-300)
	r := math.Sqrt(r2)
	r3 := r2 * r

	var f FastCellField
	for a := 0; a < p.Ndim; a++ {
		f.A0[a] = -node.Mass * rij[a] / r3
	}
	f.Phi0 = -node.Mass / r

	for a := 0; a < p.Ndim; a++ {
		for b := 0; b < p.Ndim; b++ {
			delta := 0.0
			if a == b {
				delta = 1
			}
			f.DAdr[a][b] = -node.Mass * (delta/r3 - 3*rij[a]*rij[b]/(r3*r2))
		}
	}

	if p.Multipole == FastQuadrupole {
		var q particle.Particle
		addQuadrupole(p, &q, node, rij, r, r3)
		for a := 0; a < p.Ndim; a++ {
			f.A0[a] += q.A[a]
		}
		f.Phi0 += q.Phi
	}
	return f
}

// ApplyFastField extrapolates a cell field evaluated at center to
// particle i's true position via a first-order Taylor expansion of
// the acceleration, adding both the acceleration and potential
// contributions.
func ApplyFastField(p *Params, pi *particle.Particle, center [3]float64, f FastCellField) {
	var dr [3]float64
	for a := 0; a < p.Ndim; a++ {
		dr[a] = pi.R[a] - center[a]
	}
	for a := 0; a < p.Ndim; a++ {
		a_i := f.A0[a]
		for b := 0; b < p.Ndim; b++ {
			a_i += f.DAdr[a][b] * dr[b]
		}
		pi.A[a] += a_i
	}
	pi.Phi += f.Phi0
}
