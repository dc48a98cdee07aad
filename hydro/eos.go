// Package hydro implements the grad-h SPH dialect and the Meshless-FV
// dialect, plus the EOS and Riemann-solver collaborators they depend
// on.
package hydro

import "math"

// EOS is the equation-of-state collaborator: given density
// and internal energy (or temperature, for the isothermal/barotropic
// variants) it returns pressure and sound speed.
type EOS interface {
	PressureAndSoundSpeed(rho, u float64) (p, cs float64)
}

// NewEOS constructs the named equation of state ("energy_eqn",
// "isothermal", "barotropic"), per the config key `gas_eos`.
func NewEOS(name string, gamma, isothermalTemp, isothermalCs float64) EOS {
	switch name {
	case "isothermal":
		return IsothermalEOS{SoundSpeed: isothermalCs}
	case "barotropic":
		return BarotropicEOS{Gamma: gamma, Cs0: isothermalCs, RhoCrit: 1.0}
	default:
		return EnergyEqnEOS{Gamma: gamma}
	}
}

// EnergyEqnEOS is the default ideal gamma-law EOS driven by the
// particle's own internal energy.
type EnergyEqnEOS struct{ Gamma float64 }

func (e EnergyEqnEOS) PressureAndSoundSpeed(rho, u float64) (p, cs float64) {
	if rho <= 0 || u <= 0 {
		return 0, 0
	}
	p = (e.Gamma - 1) * rho * u
	cs = math.Sqrt(e.Gamma * p / rho)
	return p, cs
}

// IsothermalEOS holds the sound speed fixed; pressure follows
// p = rho*cs^2.
type IsothermalEOS struct{ SoundSpeed float64 }

func (e IsothermalEOS) PressureAndSoundSpeed(rho, u float64) (p, cs float64) {
	if rho <= 0 {
		return 0, e.SoundSpeed
	}
	return rho * e.SoundSpeed * e.SoundSpeed, e.SoundSpeed
}

// BarotropicEOS stiffens from an isothermal sound speed toward an
// adiabatic gamma-law once density exceeds RhoCrit, the standard
// barotropic approximation for collapse calculations that skip an
// explicit energy equation.
type BarotropicEOS struct {
	Gamma   float64
	Cs0     float64
	RhoCrit float64
}

func (e BarotropicEOS) PressureAndSoundSpeed(rho, u float64) (p, cs float64) {
	if rho <= 0 {
		return 0, e.Cs0
	}
	factor := math.Pow(1+math.Pow(rho/e.RhoCrit, e.Gamma-1), 1.0/2.0)
	cs = e.Cs0 * factor
	p = rho * cs * cs / e.Gamma
	return p, cs
}
