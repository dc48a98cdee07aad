package hydro

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kestrel-sim/sphgrav/kernel"
	"github.com/kestrel-sim/sphgrav/particle"
)

// PsiFactors computes the E-matrix and its inverse
// B-matrix for particle i from its hydro neighbor snapshot, and the
// per-variable slope-limit extrema used by step 3's limiter.
func PsiFactors(k kernel.Kernel, ndim int, pi *particle.Particle, neighbors []particle.Particle) {
	e := mat.NewDense(ndim, ndim, nil)

	norm := k.DimNorm(pi.H, ndim)
	n := 0.0

	pi.RhoMin, pi.RhoMax = pi.W.Rho, pi.W.Rho
	pi.PMin, pi.PMax = pi.W.P, pi.W.P
	pi.VMin, pi.VMax = pi.W.V, pi.W.V

	for idx := range neighbors {
		pj := &neighbors[idx]
		var rij [3]float64
		r2 := 0.0
		for a := 0; a < ndim; a++ {
			rij[a] = pj.R[a] - pi.R[a]
			r2 += rij[a] * rij[a]
		}
		r := math.Sqrt(r2)
		w := k.W(r/pi.H) * norm
		n += w
		for a := 0; a < ndim; a++ {
			for b := 0; b < ndim; b++ {
				e.Set(a, b, e.At(a, b)+rij[a]*rij[b]*w)
			}
		}

		pi.RhoMin = math.Min(pi.RhoMin, pj.W.Rho)
		pi.RhoMax = math.Max(pi.RhoMax, pj.W.Rho)
		pi.PMin = math.Min(pi.PMin, pj.W.P)
		pi.PMax = math.Max(pi.PMax, pj.W.P)
		for a := 0; a < ndim; a++ {
			pi.VMin[a] = math.Min(pi.VMin[a], pj.W.V[a])
			pi.VMax[a] = math.Max(pi.VMax[a], pj.W.V[a])
		}
	}
	if n <= 0 {
		n = 1
	}
	for a := 0; a < ndim; a++ {
		for b := 0; b < ndim; b++ {
			e.Set(a, b, e.At(a, b)/n)
		}
	}

	binv := mat.NewDense(ndim, ndim, nil)
	if err := binv.Inverse(e); err != nil {
		// Degenerate moment matrix (near-collinear neighbors): fall
		// back to the identity, which reduces the reconstruction to
		// first order locally rather than propagating NaNs.
		for a := 0; a < ndim; a++ {
			for b := 0; b < ndim; b++ {
				if a == b {
					binv.Set(a, b, 1)
				} else {
					binv.Set(a, b, 0)
				}
			}
		}
	}

	for a := 0; a < ndim; a++ {
		for b := 0; b < ndim; b++ {
			pi.Emat[a][b] = e.At(a, b)
			pi.Bmat[a][b] = binv.At(a, b)
		}
	}
	pi.N = n
}

// psiTilde evaluates Psi~_j|_i = B_i . (r_j-r_i) . W(|rij|/h_i)/h_i^d / n_i,
// the reconstruction weight of neighbor j dual to i's moment matrix.
func psiTilde(pi *particle.Particle, rij [3]float64, w float64, ndim int) [3]float64 {
	var psi [3]float64
	if pi.N <= 0 {
		return psi
	}
	for a := 0; a < ndim; a++ {
		acc := 0.0
		for b := 0; b < ndim; b++ {
			acc += pi.Bmat[a][b] * rij[b]
		}
		psi[a] = acc * w / pi.N
	}
	return psi
}

// Gradients computes per-variable gradients at i from its hydro
// neighbors using the Psi-tilde weights.
func Gradients(k kernel.Kernel, ndim int, pi *particle.Particle, neighbors []particle.Particle) {
	norm := k.DimNorm(pi.H, ndim)
	pi.GradRho = [3]float64{}
	pi.GradV = [3][3]float64{}
	pi.GradP = [3]float64{}

	for idx := range neighbors {
		pj := &neighbors[idx]
		var rij [3]float64
		r2 := 0.0
		for a := 0; a < ndim; a++ {
			rij[a] = pj.R[a] - pi.R[a]
			r2 += rij[a] * rij[a]
		}
		r := math.Sqrt(r2)
		w := k.W(r/pi.H) * norm
		psi := psiTilde(pi, rij, w, ndim)

		drho := pj.W.Rho - pi.W.Rho
		dp := pj.W.P - pi.W.P
		for a := 0; a < ndim; a++ {
			pi.GradRho[a] += drho * psi[a]
			pi.GradP[a] += dp * psi[a]
			for c := 0; c < ndim; c++ {
				pi.GradV[c][a] += (pj.W.V[c] - pi.W.V[c]) * psi[a]
			}
		}
	}
}

// slopeLimit applies the Hopkins-style barth-jespersen-type midpoint
// limiter: scales the linear reconstruction at the
// face so the predicted value stays within [min,max] of the
// neighbor-extrema bracket.
func slopeLimit(value, grad, dr, lo, hi float64) float64 {
	delta := grad * dr
	predicted := value + delta
	if predicted > hi {
		if delta == 0 {
			return value
		}
		alpha := (hi - value) / delta
		return value + alpha*delta
	}
	if predicted < lo {
		if delta == 0 {
			return value
		}
		alpha := (lo - value) / delta
		return value + alpha*delta
	}
	return predicted
}

// ReconstructFace linearly reconstructs primitive state alpha at
// r_face from particle i's gradient and slope-limit bracket.
func ReconstructFace(pi *particle.Particle, rFace [3]float64, ndim int) State {
	var dr [3]float64
	for a := 0; a < ndim; a++ {
		dr[a] = rFace[a] - pi.R[a]
	}
	rho := slopeLimitVec(pi.W.Rho, pi.GradRho, dr, pi.RhoMin, pi.RhoMax, ndim)
	p := slopeLimitVec(pi.W.P, pi.GradP, dr, pi.PMin, pi.PMax, ndim)
	var v [3]float64
	for c := 0; c < ndim; c++ {
		grad := pi.GradV[c]
		v[c] = slopeLimitVec(pi.W.V[c], grad, dr, pi.VMin[c], pi.VMax[c], ndim)
	}
	return State{Rho: rho, V: v, P: p}
}

func slopeLimitVec(value float64, grad, dr [3]float64, lo, hi float64, ndim int) float64 {
	proj := 0.0
	for a := 0; a < ndim; a++ {
		proj += grad[a] * dr[a]
	}
	return slopeLimit(value, 1, proj, lo, hi)
}

// PsiTildeJAtI evaluates Psi~_j|_i, neighbor j's reconstruction weight
// dual to particle i's moment matrix -- the same per-pair formula
// Gradients sums over a whole neighbor list, factored out so PairFlux
// can evaluate it for one specific pair.
func PsiTildeJAtI(k kernel.Kernel, ndim int, pi, pj *particle.Particle) [3]float64 {
	norm := k.DimNorm(pi.H, ndim)
	var rij [3]float64
	r2 := 0.0
	for a := 0; a < ndim; a++ {
		rij[a] = pj.R[a] - pi.R[a]
		r2 += rij[a] * rij[a]
	}
	r := math.Sqrt(r2)
	w := k.W(r/pi.H) * norm
	return psiTilde(pi, rij, w, ndim)
}

// PrimToConservative initializes Q from the primitive state W and the
// particle's current volume, used once when a particle's conservative
// vector is out of sync with W (the start of a Meshless-FV sub-step).
func PrimToConservative(pi *particle.Particle, gamma float64, ndim int) {
	mass := pi.W.Rho * pi.Volume
	v2 := 0.0
	for a := 0; a < ndim; a++ {
		v2 += pi.W.V[a] * pi.W.V[a]
	}
	energy := (pi.W.P/(gamma-1) + 0.5*pi.W.Rho*v2) * pi.Volume
	pi.Q.Mass = mass
	for a := 0; a < ndim; a++ {
		pi.Q.Mom[a] = mass * pi.W.V[a]
	}
	pi.Q.Energy = energy
}

// PrimFromConservative derives the primitive state (density, velocity,
// pressure) from a particle's conservative vector and current volume,
// the inverse of PrimToConservative, run after every conservative
// update (predictor and corrector) to keep W, Rho, and U in sync.
func PrimFromConservative(eos EOS, gamma float64, pi *particle.Particle, ndim int) {
	if pi.Volume <= 0 || pi.Q.Mass <= 0 {
		return
	}
	rho := pi.Q.Mass / pi.Volume
	var v [3]float64
	v2 := 0.0
	for a := 0; a < ndim; a++ {
		v[a] = pi.Q.Mom[a] / pi.Q.Mass
		v2 += v[a] * v[a]
	}
	uInternal := pi.Q.Energy/pi.Q.Mass - 0.5*v2
	if uInternal < 0 {
		uInternal = 0
	}
	p, _ := eos.PressureAndSoundSpeed(rho, uInternal)
	pi.W.Rho, pi.W.V, pi.W.P = rho, v, p
	pi.Rho = rho
	pi.U = uInternal
}

// SyncConservativeVelocity resyncs Q.Mom after an external (gravity)
// kick changes V directly, without re-deriving Energy from scratch --
// the small kinetic-energy term the kick itself adds is absorbed into
// the next step's flux accounting rather than corrected here.
func SyncConservativeVelocity(pi *particle.Particle, ndim int) {
	for a := 0; a < ndim; a++ {
		pi.Q.Mom[a] = pi.Q.Mass * pi.V[a]
	}
}

// PairFlux returns particle i's dQ/dt contribution from neighbor j.
// The pair is always evaluated in a canonical orientation (lower IOrig
// on the left), so i's and j's own accumulation loops compute
// bit-identical flux values and receive exactly opposite-signed
// contributions: the pair's exchange conserves mass, momentum, and
// energy to the last bit regardless of which side evaluates first.
func PairFlux(solver RiemannSolver, k kernel.Kernel, gamma float64, ndim int, pi, pj *particle.Particle) (Flux, bool) {
	a, b := pi, pj
	sign := -1.0
	if pj.IOrig < pi.IOrig {
		a, b = pj, pi
		sign = 1.0
	}
	psiBAtA := PsiTildeJAtI(k, ndim, a, b)
	psiAAtB := PsiTildeJAtI(k, ndim, b, a)
	f, ok := MFVFlux(solver, gamma, ndim, a, b, psiBAtA, psiAAtB)
	if !ok {
		return Flux{}, false
	}
	f.Mass *= sign
	f.Energy *= sign
	for d := 0; d < ndim; d++ {
		f.Mom[d] *= sign
	}
	return f, true
}

// MFVFlux runs step 4 of the Meshless-FV dialect for a single pair
// (i,j): it builds the pseudo-area vector, reconstructs left/right
// states at the face, boosts to the face frame, calls the Riemann
// solver, and returns the flux contribution to apply to both
// particles with opposite sign (Newton's third law conservation).
// ok=false reports a non-positive reconstructed density or pressure,
// which the caller surfaces as NonPositiveState rather than clamping.
func MFVFlux(solver RiemannSolver, gamma float64, ndim int, pi, pj *particle.Particle, psiJAtI, psiIAtJ [3]float64) (Flux, bool) {
	var aij [3]float64
	for a := 0; a < ndim; a++ {
		aij[a] = pi.Volume*psiJAtI[a] - pj.Volume*psiIAtJ[a]
	}
	area := 0.0
	for a := 0; a < ndim; a++ {
		area += aij[a] * aij[a]
	}
	area = math.Sqrt(area)
	if area <= 0 {
		return Flux{}, true
	}
	var normal [3]float64
	for a := 0; a < ndim; a++ {
		normal[a] = aij[a] / area
	}

	hi, hj := pi.H, pj.H
	var rFace [3]float64
	var vFace [3]float64
	for a := 0; a < ndim; a++ {
		rFace[a] = pi.R[a] + hi*(pj.R[a]-pi.R[a])/(hi+hj)
	}
	for a := 0; a < ndim; a++ {
		vFace[a] = 0.5 * (pi.V[a] + pj.V[a])
	}

	wl := ReconstructFace(pi, rFace, ndim)
	wr := ReconstructFace(pj, rFace, ndim)
	if wl.Rho <= 0 || wl.P <= 0 || wr.Rho <= 0 || wr.P <= 0 {
		return Flux{}, false
	}
	for a := 0; a < ndim; a++ {
		wl.V[a] -= vFace[a]
		wr.V[a] -= vFace[a]
	}

	f := solver.Solve(wl, wr, normal, ndim)
	for a := 0; a < ndim; a++ {
		f.Mom[a] *= area
	}
	f.Mass *= area
	f.Energy *= area

	// Boost the energy flux back into the lab frame.
	vdotf := 0.0
	for a := 0; a < ndim; a++ {
		vdotf += vFace[a] * f.Mom[a]
	}
	f.Energy += vdotf

	return f, true
}
