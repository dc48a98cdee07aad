package particle

// Star is a point-mass N-body particle belonging to the
// NBodyIntegrator collaborator: the hydro/gravity core only ever
// reads its kinematic state through this struct, never advances it
// directly.
type Star struct {
	ID int
	R  [3]float64
	V  [3]float64
	M  float64
	H  float64

	// A accumulates the softened gravitational acceleration felt from
	// gas particles each step, reset before every gravity phase and
	// handed to the NBodyIntegrator collaborator as its hydro
	// acceleration input.
	A [3]float64
}

// MeanSofteningWithStar returns h_mean = 2*h_i*h_*/(h_i+h_*), the
// harmonic-mean softening blend for mixed-resolution pairs.
func MeanSofteningWithStar(hGas, hStar float64) float64 {
	if hGas+hStar == 0 {
		return 0
	}
	return 2 * hGas * hStar / (hGas + hStar)
}
