package hydro

import (
	"math"

	"github.com/kestrel-sim/sphgrav/kernel"
	"github.com/kestrel-sim/sphgrav/particle"
)

// AviscParams holds the artificial viscosity/conductivity tunables.
type AviscParams struct {
	Scheme    string // "none" or "mon97"
	Alpha     float64
	Beta      float64
	Eta2      float64 // softening in mu = h*(v.r)/(r^2+eta^2)
	Acond     string  // "none" or "wadsley"
	AlphaCond float64
}

// GradH runs the grad-h SPH dialect for one active
// particle i against its already-snapshotted hydro neighbor set.
// Density must already have been computed by the smoothing solver;
// this pass evaluates pressure, the momentum/energy rates, and
// levelneib.
func GradH(k kernel.Kernel, eos EOS, av AviscParams, ndim int, pi *particle.Particle, neighbors []particle.Particle) {
	pi.Rho = math.Max(pi.Rho, 0)
	p, cs := eos.PressureAndSoundSpeed(pi.Rho, pi.U)
	pi.SoundSpeed = cs

	omegaI := pi.OmegaInv
	if omegaI <= 0 {
		omegaI = 1
	}

	var accel [3]float64
	var dudt float64
	levelNeib := pi.Level

	for idx := range neighbors {
		pj := &neighbors[idx]
		if !pj.Alive {
			continue
		}
		pjPress, pjCs := eos.PressureAndSoundSpeed(pj.Rho, pj.U)
		omegaJ := pj.OmegaInv
		if omegaJ <= 0 {
			omegaJ = 1
		}

		var rij, vij [3]float64
		r2 := 0.0
		for a := 0; a < ndim; a++ {
			rij[a] = pi.R[a] - pj.R[a]
			vij[a] = pi.V[a] - pj.V[a]
			r2 += rij[a] * rij[a]
		}
		if r2 <= 0 {
			continue
		}
		r := math.Sqrt(r2)

		gradWi := gradWVector(k, rij, r, pi.H, ndim)
		gradWj := gradWVector(k, rij, r, pj.H, ndim)

		vdotr := 0.0
		for a := 0; a < ndim; a++ {
			vdotr += vij[a] * rij[a]
		}

		visc := 0.0
		if av.Scheme == "mon97" && vdotr < 0 {
			hbar := 0.5 * (pi.H + pj.H)
			rhobar := 0.5 * (pi.Rho + pj.Rho)
			cbar := 0.5 * (cs + pjCs)
			mu := hbar * vdotr / (r2 + av.Eta2)
			visc = (-av.Alpha*cbar*mu + av.Beta*mu*mu) / rhobar
		}

		presI := p / (omegaI * pi.Rho * pi.Rho)
		presJ := pjPress / (omegaJ * pj.Rho * pj.Rho)

		for a := 0; a < ndim; a++ {
			fi := presI*gradWi[a] + presJ*gradWj[a] + visc*0.5*(gradWi[a]+gradWj[a])
			accel[a] -= pj.M * fi
		}

		dvdotgradWi := 0.0
		for a := 0; a < ndim; a++ {
			dvdotgradWi += vij[a] * gradWi[a]
		}
		dudt += presI * pj.M * dvdotgradWi
		if visc != 0 {
			dudt += 0.5 * visc * pj.M * dvdotgradWi
		}

		// Wadsley (2008) artificial conductivity: smooth internal-energy
		// contrasts across contact discontinuities using |v_ij.r^| as
		// the signal speed.
		if av.Acond == "wadsley" {
			vsigU := math.Abs(vdotr) / r
			rhobar := 0.5 * (pi.Rho + pj.Rho)
			gradMeanMag := 0.0
			for a := 0; a < ndim; a++ {
				gm := 0.5 * (gradWi[a] + gradWj[a])
				gradMeanMag += gm * rij[a] / r
			}
			dudt += av.AlphaCond * pj.M * vsigU * (pi.U - pj.U) * gradMeanMag / rhobar
		}

		if pj.Level > levelNeib {
			levelNeib = pj.Level
		}
	}

	for a := 0; a < ndim; a++ {
		pi.A[a] = accel[a]
	}
	pi.DuDt = dudt
	pi.LevelNeib = levelNeib
}

// gradWVector evaluates nabla_i W_ij(h) = dimNorm(h)/h * GradW(s) *
// rij/r, the vector gradient of the kernel with respect to particle
// i's position, at smoothing length h.
func gradWVector(k kernel.Kernel, rij [3]float64, r, h float64, ndim int) [3]float64 {
	s := r / h
	dWds := k.GradW(s) * k.DimNorm(h, ndim) / h
	var g [3]float64
	if r <= 0 {
		return g
	}
	for a := 0; a < ndim; a++ {
		g[a] = dWds * rij[a] / r
	}
	return g
}
