// Package diagnostics tracks conserved quantities (energy, momentum)
// and the relative energy error across a run.
package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kestrel-sim/sphgrav/particle"
)

// Snapshot holds the aggregate conserved quantities at one instant.
type Snapshot struct {
	Time       float64
	Kinetic    float64
	Thermal    float64
	Gravity    float64
	Total      float64
	Momentum   [3]float64
	AngMomMag  float64
	Mass       float64
}

// Collect sums the conserved quantities over every live, non-ghost
// particle in the store.
func Collect(store *particle.Store, ndim int, time float64) Snapshot {
	var s Snapshot
	s.Time = time
	var angMom [3]float64

	for i := 0; i < store.Nreal; i++ {
		pi := &store.Particles[i]
		if !pi.Alive {
			continue
		}
		v2 := 0.0
		for a := 0; a < ndim; a++ {
			v2 += pi.V[a] * pi.V[a]
			s.Momentum[a] += pi.M * pi.V[a]
		}
		s.Kinetic += 0.5 * pi.M * v2
		s.Thermal += pi.M * pi.U
		s.Gravity += 0.5 * pi.M * pi.Phi
		s.Mass += pi.M

		if ndim == 3 {
			angMom[0] += pi.M * (pi.R[1]*pi.V[2] - pi.R[2]*pi.V[1])
			angMom[1] += pi.M * (pi.R[2]*pi.V[0] - pi.R[0]*pi.V[2])
			angMom[2] += pi.M * (pi.R[0]*pi.V[1] - pi.R[1]*pi.V[0])
		}
	}
	s.Total = s.Kinetic + s.Thermal + s.Gravity
	s.AngMomMag = math.Sqrt(angMom[0]*angMom[0] + angMom[1]*angMom[1] + angMom[2]*angMom[2])
	return s
}

// RelativeEnergyError computes E_err(t)/|E_tot(0)|, the quantity
// bounded by the energy-error testable property for closed isolated
// runs without artificial viscosity.
func RelativeEnergyError(current, initial Snapshot) float64 {
	denom := math.Abs(initial.Total)
	if denom == 0 {
		return 0
	}
	return math.Abs(current.Total-initial.Total) / denom
}

// MomentumDrift returns ||sum m_i v_i - sum m_i v_i(0)||, the quantity
// bounded by the momentum-conservation testable property.
func MomentumDrift(current, initial Snapshot) float64 {
	d2 := 0.0
	for a := 0; a < 3; a++ {
		d := current.Momentum[a] - initial.Momentum[a]
		d2 += d * d
	}
	return math.Sqrt(d2)
}

// History accumulates a rolling series of snapshots for run-level
// statistics (mean and standard deviation of the energy error over the
// run, e.g. for reporting in the performance log).
type History struct {
	Initial Snapshot
	Series  []Snapshot
}

func NewHistory(initial Snapshot) *History {
	return &History{Initial: initial}
}

func (h *History) Append(s Snapshot) {
	h.Series = append(h.Series, s)
}

// EnergyErrorStats returns the mean and standard deviation of the
// relative energy error across the accumulated history, using
// gonum/stat so a long-running diagnostic log can report drift
// statistics cheaply instead of just the instantaneous value.
func (h *History) EnergyErrorStats() (mean, stddev float64) {
	if len(h.Series) == 0 {
		return 0, 0
	}
	errs := make([]float64, len(h.Series))
	for i, s := range h.Series {
		errs[i] = RelativeEnergyError(s, h.Initial)
	}
	mean, stddevVal := stat.MeanStdDev(errs, nil)
	return mean, stddevVal
}
