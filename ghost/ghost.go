// Package ghost replicates particles within kernel reach of a closed
// boundary face and refreshes ghost state from the originals.
package ghost

import (
	"fmt"

	"github.com/kestrel-sim/sphgrav/box"
	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/simerr"
)

// Engine holds only its sizing knobs; it operates on a particle.Store
// and a box.DomainBox handed in each call rather than caching either.
type Engine struct {
	// GhostRangeFactor multiplies kernrange*h to decide how close to a
	// face a particle must be to require a ghost.
	GhostRangeFactor float64
	Kernrange        float64
}

// RefreshGhosts rebuilds the entire ghost tail of store from scratch.
// It must run single-threaded: ghost creation appends to a shared
// tail.
func (e *Engine) RefreshGhosts(step int, store *particle.Store, b *box.DomainBox) error {
	store.ResetGhosts()
	ntot := store.Nreal

	for d := 0; d < b.Ndim; d++ {
		if !b.Closed(d) {
			continue
		}
		// Snapshot the current upper bound: newly created ghosts in
		// this dimension's pass may themselves be eligible for a
		// ghost on an orthogonal face, producing corner/edge copies.
		for i := 0; i < ntot; i++ {
			p := &store.Particles[i]
			if !p.Alive {
				continue
			}
			reach := e.GhostRangeFactor * e.Kernrange * p.H

			if b.LHS[d] != box.Open && p.R[d]-b.Min[d] < reach {
				if err := e.createGhostFace(step, store, i, d, true, b); err != nil {
					return err
				}
			}
			if b.RHS[d] != box.Open && b.Max[d]-p.R[d] < reach {
				if err := e.createGhostFace(step, store, i, d, false, b); err != nil {
					return err
				}
			}
		}
		ntot = store.Ntot()
	}
	return nil
}

// createGhostFace creates one ghost of particle i across face
// (d, lhs), choosing the periodic or mirror transform per the box's
// boundary kind for that face.
func (e *Engine) createGhostFace(step int, store *particle.Store, i, d int, lhs bool, b *box.DomainBox) error {
	var kind particle.GhostKind
	switch {
	case lhs && b.LHS[d] == box.Periodic, !lhs && b.RHS[d] == box.Periodic:
		kind = particle.PeriodicKind(d, lhs)
	case lhs && b.LHS[d] == box.Mirror, !lhs && b.RHS[d] == box.Mirror:
		kind = particle.MirrorKind(d, lhs)
	default:
		return nil
	}
	r, v := transform(store.Particles[i].R, store.Particles[i].V, kind, d, b)
	return e.createGhost(step, store, i, r, v, kind)
}

// createGhost copies the parent's full state, overwrites R/V with the
// already-transformed values, marks the copy inactive, and chases
// iorig to the true original.
func (e *Engine) createGhost(step int, store *particle.Store, i int, r, v [3]float64, kind particle.GhostKind) error {
	parent := store.Particles[i]
	g := parent
	g.R = r
	g.V = v
	g.Active = false
	g.Ghost = kind
	g.Parent = i
	if parent.Ghost == particle.GhostNone {
		g.IOrig = i
	} else {
		g.IOrig = parent.IOrig
	}
	if _, ok := store.AppendGhost(g); !ok {
		return simerr.New(simerr.KindGhostOverflow, step, g.IOrig,
			fmt.Sprintf("ghost tail exceeded Nghostmax=%d; increase Nghostmax", store.Nghostmax))
	}
	return nil
}

// transform applies the position/velocity transform implied by kind:
// periodic shifts position by +-boxsize[d]; mirror reflects position
// about the face and flips the velocity component on that axis.
func transform(r, v [3]float64, kind particle.GhostKind, d int, b *box.DomainBox) ([3]float64, [3]float64) {
	switch {
	case kind.IsMirror():
		if kind.IsLHS() {
			r[d] = 2*b.Min[d] - r[d]
		} else {
			r[d] = 2*b.Max[d] - r[d]
		}
		v[d] = -v[d]
	default: // periodic
		if kind.IsLHS() {
			r[d] += b.Size[d]
		} else {
			r[d] -= b.Size[d]
		}
	}
	return r, v
}

// CopyStateToGhosts reloads every ghost's non-positional state from
// its immediate parent and reapplies the position/velocity transform
// implied by its Ghost kind. Called at every sub-step where parent
// state changed and before any neighbor query. Ghosts were
// appended in dependency order, so a corner ghost's parent ghost is
// always refreshed earlier in the same ascending sweep; the loop must
// therefore run in index order and is parallelizable only in
// prefix-ordered shards.
func (e *Engine) CopyStateToGhosts(store *particle.Store, b *box.DomainBox) {
	for i := store.Nreal; i < store.Ntot(); i++ {
		e.CopyOne(store, i, b)
	}
}

// CopyOne refreshes a single ghost at index i from its immediate
// parent. A mirror ghost flips the velocity component on its own axis;
// transforms on other axes arrive through the parent chain.
func (e *Engine) CopyOne(store *particle.Store, i int, b *box.DomainBox) {
	g := &store.Particles[i]
	kind, iorig, parentIdx, id := g.Ghost, g.IOrig, g.Parent, g.ID
	parent := &store.Particles[parentIdx]
	d := kind.Dim()
	if d < 0 {
		return
	}
	r, v := transform(parent.R, parent.V, kind, d, b)
	*g = *parent
	g.ID = id
	g.Ghost = kind
	g.IOrig = iorig
	g.Parent = parentIdx
	g.Active = false
	g.R = r
	g.V = v
}
