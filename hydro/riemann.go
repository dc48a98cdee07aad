package hydro

import "math"

// RiemannSolver is the Meshless-FV collaborator: given left
// and right states and the unit normal direction, return the flux of
// (mass, momentum, energy) across the face in the face frame.
type RiemannSolver interface {
	Solve(wl, wr State, normal [3]float64, ndim int) Flux
}

// State is a reconstructed primitive state at a face, already boosted
// into the face's rest frame.
type State struct {
	Rho float64
	V   [3]float64
	P   float64
}

// Flux is the conservative flux (mass, momentum, energy) through a
// unit-area face with the given outward normal.
type Flux struct {
	Mass   float64
	Mom    [3]float64
	Energy float64
}

// HLLCSolver is an approximate Riemann solver (Toro's HLLC) used for
// the Meshless-FV Godunov flux.
type HLLCSolver struct{ Gamma float64 }

func (s HLLCSolver) Solve(wl, wr State, normal [3]float64, ndim int) Flux {
	gamma := s.Gamma
	if wl.Rho <= 0 || wr.Rho <= 0 {
		return Flux{}
	}

	un := func(v [3]float64) float64 {
		d := 0.0
		for a := 0; a < ndim; a++ {
			d += v[a] * normal[a]
		}
		return d
	}
	ul, ur := un(wl.V), un(wr.V)
	cl := math.Sqrt(gamma * wl.P / wl.Rho)
	cr := math.Sqrt(gamma * wr.P / wr.Rho)

	sl := math.Min(ul-cl, ur-cr)
	sr := math.Max(ul+cl, ur+cr)

	fl := primToFlux(wl, ul, gamma, normal, ndim)
	fr := primToFlux(wr, ur, gamma, normal, ndim)
	ql := primToCons(wl, gamma)
	qr := primToCons(wr, gamma)

	if sl >= 0 {
		return fl
	}
	if sr <= 0 {
		return fr
	}

	rhoStarL := wl.Rho * (sl - ul)
	rhoStarR := wr.Rho * (sr - ur)
	sStarNum := wr.P - wl.P + rhoStarL*ul - rhoStarR*ur
	sStarDen := rhoStarL - rhoStarR
	sStar := ul
	if sStarDen != 0 {
		sStar = sStarNum / sStarDen
	}

	if sStar >= 0 {
		qStar := hllcStar(wl, ul, sl, sStar, gamma, normal, ndim, ql)
		return addFlux(fl, scaleCons(subCons(qStar, ql), sl))
	}
	qStar := hllcStar(wr, ur, sr, sStar, gamma, normal, ndim, qr)
	return addFlux(fr, scaleCons(subCons(qStar, qr), sr))
}

type cons struct {
	mass   float64
	mom    [3]float64
	energy float64
}

func primToCons(w State, gamma float64) cons {
	var c cons
	c.mass = w.Rho
	for a := range w.V {
		c.mom[a] = w.Rho * w.V[a]
	}
	v2 := 0.0
	for a := range w.V {
		v2 += w.V[a] * w.V[a]
	}
	c.energy = w.P/(gamma-1) + 0.5*w.Rho*v2
	return c
}

func primToFlux(w State, un, gamma float64, normal [3]float64, ndim int) Flux {
	var f Flux
	f.Mass = w.Rho * un
	v2 := 0.0
	for a := 0; a < ndim; a++ {
		f.Mom[a] = w.Rho*w.V[a]*un + w.P*normal[a]
		v2 += w.V[a] * w.V[a]
	}
	e := w.P/(gamma-1) + 0.5*w.Rho*v2
	f.Energy = (e + w.P) * un
	return f
}

func hllcStar(w State, un, s, sStar, gamma float64, normal [3]float64, ndim int, q cons) cons {
	var out cons
	factor := w.Rho * (s - un) / (s - sStar)
	out.mass = factor
	e := q.energy / q.mass
	for a := 0; a < ndim; a++ {
		vi := w.V[a] + (sStar-un)*normal[a]
		out.mom[a] = factor * vi
	}
	eStar := e + (sStar-un)*(sStar-un+w.P/(w.Rho*(s-un)))
	out.energy = factor * eStar
	return out
}

func addFlux(f Flux, c cons) Flux {
	f.Mass += c.mass
	for a := range f.Mom {
		f.Mom[a] += c.mom[a]
	}
	f.Energy += c.energy
	return f
}

func subCons(a, b cons) cons {
	var c cons
	c.mass = a.mass - b.mass
	for i := range c.mom {
		c.mom[i] = a.mom[i] - b.mom[i]
	}
	c.energy = a.energy - b.energy
	return c
}

func scaleCons(c cons, s float64) cons {
	c.mass *= s
	for i := range c.mom {
		c.mom[i] *= s
	}
	c.energy *= s
	return c
}
