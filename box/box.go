// Package box holds the domain geometry and boundary policy: per-face
// boundary kind and the WrapOrReflect sweep applied after every
// position update.
package box

import "github.com/kestrel-sim/sphgrav/config"

// Kind re-exports config.BoundaryKind under a shorter name for callers
// that only deal with boxes, not the full Config.
type Kind = config.BoundaryKind

const (
	Open     = config.Open
	Periodic = config.Periodic
	Mirror   = config.Mirror
)

// DomainBox is the simulation's bounding box and boundary policy.
type DomainBox struct {
	Ndim   int
	Min    [3]float64
	Max    [3]float64
	Size   [3]float64
	LHS    [3]Kind
	RHS    [3]Kind
	PeriodicGravity bool
}

// New builds a DomainBox from explicit bounds and the boundary
// assignment already validated by config.Config.Validate.
func New(ndim int, min, max [3]float64, lhs, rhs [3]Kind, periodicGravity bool) *DomainBox {
	b := &DomainBox{Ndim: ndim, Min: min, Max: max, LHS: lhs, RHS: rhs, PeriodicGravity: periodicGravity}
	for d := 0; d < 3; d++ {
		b.Size[d] = max[d] - min[d]
	}
	return b
}

// Closed reports whether dimension d has at least one non-open face.
func (b *DomainBox) Closed(d int) bool {
	return b.LHS[d] != Open || b.RHS[d] != Open
}

// WrapOrReflect applies the boundary transform in-place to a single
// particle's position and velocity, for every spatial dimension, in a
// single sweep. Positions are wrapped/reflected independently per axis
// so a particle that is simultaneously outside two closed faces (a
// corner case) is corrected on both axes in the same call.
func (b *DomainBox) WrapOrReflect(r, v *[3]float64) {
	for d := 0; d < b.Ndim; d++ {
		switch b.LHS[d] {
		case Periodic:
			for r[d] < b.Min[d] {
				r[d] += b.Size[d]
			}
		case Mirror:
			if r[d] < b.Min[d] {
				r[d] = 2*b.Min[d] - r[d]
				v[d] = -v[d]
			}
		}
		switch b.RHS[d] {
		case Periodic:
			for r[d] > b.Max[d] {
				r[d] -= b.Size[d]
			}
		case Mirror:
			if r[d] > b.Max[d] {
				r[d] = 2*b.Max[d] - r[d]
				v[d] = -v[d]
			}
		}
	}
}

// Contained reports whether r satisfies the containment invariant for
// every closed dimension: Min[d] <= r[d] <= Max[d].
func (b *DomainBox) Contained(r [3]float64) bool {
	for d := 0; d < b.Ndim; d++ {
		if !b.Closed(d) {
			continue
		}
		if r[d] < b.Min[d]-1e-9 || r[d] > b.Max[d]+1e-9 {
			return false
		}
	}
	return true
}

// NearestImage returns the displacement a-b using the minimum-image
// convention on every periodic axis (used by gravity's Ewald path and
// by ghost-free neighbor distance checks inside a periodic box).
func (b *DomainBox) NearestImage(a, bb [3]float64) [3]float64 {
	d := [3]float64{}
	for i := 0; i < b.Ndim; i++ {
		d[i] = a[i] - bb[i]
		if b.LHS[i] == Periodic && b.RHS[i] == Periodic {
			for d[i] > 0.5*b.Size[i] {
				d[i] -= b.Size[i]
			}
			for d[i] < -0.5*b.Size[i] {
				d[i] += b.Size[i]
			}
		}
	}
	return d
}
