// Package ic provides initial-condition generators: each builds a
// populated ParticleStore and star array from a loaded Config and
// hands control back to the caller, never touching the core itself.
package ic

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/kestrel-sim/sphgrav/config"
	"github.com/kestrel-sim/sphgrav/particle"
)

// Generator builds the initial particle and star population for a run.
// It satisfies driver.ICGenerator structurally.
type Generator interface {
	Generate(cfg *config.Config) (*particle.Store, []particle.Star, error)
}

// New resolves a named generator (cfg.IC) seeded from seed.
func New(name string, seed int64) (Generator, error) {
	rng := rand.New(rand.NewSource(seed))
	switch name {
	case "uniform_box":
		return &UniformBox{rng: rng}, nil
	case "random_sphere":
		return &RandomSphere{rng: rng}, nil
	default:
		return nil, fmt.Errorf("unknown ic generator %q", name)
	}
}

// UniformBox scatters Nhydro gas particles uniformly at random in the
// unit cube [0,1]^ndim at uniform density, plus Nstar point masses
// placed the same way: homogeneous random initial conditions.
type UniformBox struct {
	rng *rand.Rand
}

func (g *UniformBox) Generate(cfg *config.Config) (*particle.Store, []particle.Star, error) {
	if cfg.Nhydro <= 0 {
		return nil, nil, fmt.Errorf("uniform_box: Nhydro must be positive, got %d", cfg.Nhydro)
	}
	store := particle.New(cfg.Nhydro, cfg.Nghostmax)

	volume := 1.0
	rho0 := 1.0
	mass := rho0 * volume / float64(cfg.Nhydro)
	u0 := isothermalU(cfg)

	for i := 0; i < cfg.Nhydro; i++ {
		pi := &store.Particles[i]
		for a := 0; a < cfg.Ndim; a++ {
			pi.R[a] = g.rng.Float64()
		}
		pi.M = mass
		pi.U = u0
		pi.H = 0.1
		pi.Type = particle.Gas
	}

	stars := make([]particle.Star, cfg.Nstar)
	for i := range stars {
		for a := 0; a < cfg.Ndim; a++ {
			stars[i].R[a] = g.rng.Float64()
		}
		stars[i].M = mass * 10
		stars[i].H = 0.1
		stars[i].ID = i
	}
	return store, stars, nil
}

// RandomSphere scatters Nhydro gas particles uniformly by volume
// inside a unit sphere (rejection sampling of the enclosing cube),
// giving a uniform-density sphere useful for self-gravity collapse
// tests.
type RandomSphere struct {
	rng *rand.Rand
}

func (g *RandomSphere) Generate(cfg *config.Config) (*particle.Store, []particle.Star, error) {
	if cfg.Nhydro <= 0 {
		return nil, nil, fmt.Errorf("random_sphere: Nhydro must be positive, got %d", cfg.Nhydro)
	}
	store := particle.New(cfg.Nhydro, cfg.Nghostmax)

	volume := 4.0 / 3.0 * math.Pi
	rho0 := 1.0
	mass := rho0 * volume / float64(cfg.Nhydro)
	u0 := isothermalU(cfg)

	for i := 0; i < cfg.Nhydro; i++ {
		pi := &store.Particles[i]
		pi.R = g.sampleInSphere(cfg.Ndim)
		pi.M = mass
		pi.U = u0
		pi.H = 0.1
		pi.Type = particle.Gas
	}

	stars := make([]particle.Star, cfg.Nstar)
	for i := range stars {
		stars[i].R = g.sampleInSphere(cfg.Ndim)
		stars[i].M = mass * 10
		stars[i].H = 0.1
		stars[i].ID = i
	}
	return store, stars, nil
}

func (g *RandomSphere) sampleInSphere(ndim int) [3]float64 {
	for {
		var r [3]float64
		r2 := 0.0
		for a := 0; a < ndim; a++ {
			r[a] = 2*g.rng.Float64() - 1
			r2 += r[a] * r[a]
		}
		if r2 <= 1 {
			return r
		}
	}
}

func isothermalU(cfg *config.Config) float64 {
	if cfg.GasEOS == "isothermal" {
		return 0
	}
	return 1.0 / (cfg.GammaEOS - 1)
}
