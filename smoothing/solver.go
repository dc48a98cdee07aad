// Package smoothing solves the per-particle h<->density fixed-point
// relation with a bisection fallback, expanding the gather radius
// whenever the trial kernel sphere outgrows the neighbor set.
package smoothing

import (
	"math"

	"github.com/kestrel-sim/sphgrav/kernel"
	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/simerr"
	"github.com/kestrel-sim/sphgrav/tree"
)

// K1 is the fixed-point iteration budget before switching to
// bisection.
const K1 = 30

// Params are the solver's tunables, taken from config.
type Params struct {
	HFac       float64 // h_fac in h = h_fac*(m/rho)^(1/d)
	HConverge  float64
	Ndim       int
	Kernrange  float64
	HminSink   float64
}

// Scratch is reused across SolveOne calls by one worker to avoid
// reallocating the gather buffer every particle.
type Scratch struct {
	raw []int
}

func NewScratch() *Scratch { return &Scratch{raw: make([]int, 128)} }

// SolveOne iterates particle i's smoothing length to the target
// relation h = h_fac*(m/rho)^(1/d), expanding the tree-query radius by
// 1.05x and retrying whenever the trial kernel sphere reaches the edge
// of the gathered set. hHi bounds the bisection bracket; it starts at
// the cell's gather radius and grows alongside the query radius.
func SolveOne(step int, store *particle.Store, tr *tree.Tree, k kernel.Kernel, p *Params, s *Scratch, i int, hHi float64) error {
	pi := &store.Particles[i]
	isSink := pi.SinkID >= 0
	hLo := 0.0
	if isSink {
		hLo = p.HminSink
	}
	h := pi.H
	if h <= 0 {
		h = hHi * 0.5
	}

	for attempt := 0; attempt < 64; attempt++ {
		n, ok := tr.ComputeGatherNeighborListAroundPoint(store, pi.R, p.Kernrange*hHi, s.raw)
		if !ok {
			s.raw = make([]int, 2*len(s.raw))
			continue
		}
		ids := s.raw[:n]

		converged, reachedBoundary, err := iterate(store, p, k, i, ids, hLo, hHi, &h)
		if err != nil {
			return err
		}
		if converged {
			finalize(store, p, k, i, ids, h)
			return nil
		}
		if reachedBoundary {
			hHi *= 1.05
			continue
		}
		// Bisection bracket exhausted without the boundary-reach
		// signal: the solver genuinely diverged.
		return simerr.New(simerr.KindHIterationDiverged, step, i, "smoothing length solver exceeded iteration budget")
	}
	return simerr.New(simerr.KindHIterationDiverged, step, i, "exceeded gather-expansion retry budget")
}

// iterate runs the fixed-point -> bisection ladder for a single fixed
// neighbor set ids, mutating *h in place. It reports reachedBoundary=true if, at the final h tried, the
// kernel sphere would reach past the gather radius Kernrange*hHi that
// ids was collected with (signaling the caller should widen the query and retry).
func iterate(store *particle.Store, p *Params, k kernel.Kernel, i int, ids []int, hLo, hHi float64, h *float64) (converged, reachedBoundary bool, err error) {
	pi := &store.Particles[i]
	maxDist := p.Kernrange * hHi

	for iter := 0; iter < 5*K1; iter++ {
		rho, _ := density(store, k, pi.R, ids, *h, p.Ndim)
		if rho <= 0 {
			rho = pi.M * k.DimNorm(*h, p.Ndim)
		}
		hTarget := p.HFac * math.Pow(pi.M/rho, 1.0/float64(p.Ndim))

		if iter < K1 {
			diff := math.Abs(*h - hTarget)
			if diff < p.HConverge**h {
				*h = hTarget
				if k.Range()**h > maxDist {
					return false, true, nil
				}
				return true, false, nil
			}
			*h = hTarget
			continue
		}

		if iter == K1 {
			*h = 0.5 * (hLo + hHi)
			continue
		}

		_, nEff := density(store, k, pi.R, ids, *h, p.Ndim)
		overDense := nEff*math.Pow(*h, float64(p.Ndim)) > math.Pow(p.HFac, float64(p.Ndim))
		if overDense {
			hHi = *h
		} else {
			hLo = *h
		}
		*h = 0.5 * (hLo + hHi)

		diff := math.Abs(*h - hTarget)
		if diff < p.HConverge**h {
			if k.Range()**h > maxDist {
				return false, true, nil
			}
			return true, false, nil
		}
	}
	return false, false, nil
}

func farthestDistance(store *particle.Store, r [3]float64, ids []int, ndim int) float64 {
	max := 0.0
	for _, j := range ids {
		d2 := 0.0
		for a := 0; a < ndim; a++ {
			dx := r[a] - store.Particles[j].R[a]
			d2 += dx * dx
		}
		if d2 > max {
			max = d2
		}
	}
	return math.Sqrt(max)
}

// density evaluates rho_i = sum_j m_j W(r_ij/h)/h^ndim and the raw
// number density n_i = sum_j W(r_ij/h)/h^ndim (self term included, as
// is conventional for SPH density sums: a particle always contributes
// to its own density).
func density(store *particle.Store, k kernel.Kernel, r [3]float64, ids []int, h float64, ndim int) (rho, n float64) {
	norm := k.DimNorm(h, ndim)
	for _, j := range ids {
		pj := &store.Particles[j]
		d2 := 0.0
		for a := 0; a < ndim; a++ {
			dx := r[a] - pj.R[a]
			d2 += dx * dx
		}
		s := math.Sqrt(d2) / h
		w := k.W(s) * norm
		rho += pj.M * w
		n += w
	}
	return rho, n
}

// finalize writes the converged h, density, number density, grad-h
// Omega^-1 correction, and the potmin flag for particle i.
func finalize(store *particle.Store, p *Params, k kernel.Kernel, i int, ids []int, h float64) {
	pi := &store.Particles[i]
	rho, n := density(store, k, pi.R, ids, h, p.Ndim)
	if rho <= 0 {
		rho = pi.M * k.DimNorm(h, p.Ndim)
	}
	pi.H = h
	pi.Rho = rho
	pi.N = n

	norm := k.DimNorm(h, p.Ndim)
	domegadh := 0.0
	for _, j := range ids {
		pj := &store.Particles[j]
		d2 := 0.0
		for a := 0; a < p.Ndim; a++ {
			dx := pi.R[a] - pj.R[a]
			d2 += dx * dx
		}
		s := math.Sqrt(d2) / h
		domegadh += pj.M * k.Omega(s) * norm / h
	}
	omega := 1 + (h/(float64(p.Ndim)*rho))*domegadh
	if omega == 0 {
		omega = 1
	}
	pi.OmegaInv = 1.0 / omega

	// Zeta is the grad-h correction to the smoothed gravitational
	// force: (dh/drho) * sum_j m_j dphi/dh, with phi = -W_pot(s)/h so
	// dphi/dh = (W_pot(s) - s*W_grav(s))/h^2 and dh/drho = -h/(d*rho).
	dphidh := 0.0
	for _, j := range ids {
		pj := &store.Particles[j]
		d2 := 0.0
		for a := 0; a < p.Ndim; a++ {
			dx := pi.R[a] - pj.R[a]
			d2 += dx * dx
		}
		s := math.Sqrt(d2) / h
		dphidh += pj.M * (k.WPot(s) - s*k.WGrav(s))
	}
	pi.Zeta = -dphidh / (float64(p.Ndim) * rho * h)

	pi.PotMin = true
	for _, j := range ids {
		if store.Particles[j].Phi > pi.Phi {
			pi.PotMin = false
			break
		}
	}
}
