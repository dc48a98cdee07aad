// Package neighbor provides per-thread scratch buffers for
// hydro/gravity/direct/cell neighbor lists, filled from Tree queries
// and trimmed by EndSearch, growing by doubling on overflow.
package neighbor

import (
	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/simerr"
	"github.com/kestrel-sim/sphgrav/tree"
)

// maxDoublings bounds the overflow-doubling loop.
const maxDoublings = 20

// Buffer is one worker's scratch space. It is never shared and never
// shrinks within a step.
type Buffer struct {
	raw    []int
	Hydro  []int
	Grav   []int
	Direct []int
	Cell   []int
	// Snapshots holds a contiguous copy of the neighbor particles'
	// state for cache locality while iterating hydro kernels,
	// addressed by the same positions as Hydro.
	Snapshots []particle.Particle
}

// NewBuffer creates a buffer with an initial small capacity.
func NewBuffer() *Buffer {
	return &Buffer{raw: make([]int, 64)}
}

// growRaw doubles the raw scratch capacity, preserving no content
// (the caller always re-queries after a grow).
func (b *Buffer) growRaw() bool {
	if len(b.raw) >= (1 << maxDoublings) {
		return false
	}
	b.raw = make([]int, 2*len(b.raw))
	return true
}

// GetParticleNeib fills b.Hydro with particle i's symmetric hydro
// neighbors, doubling the scratch buffer and retrying on
// overflow. doPairOnce, when true, additionally enforces the
// neighbor-symmetry invariant (only include j>i so each pair is
// visited by exactly one of i or j).
func (b *Buffer) GetParticleNeib(step int, store *particle.Store, tr *tree.Tree, cell, i int, kernrange float64, doPairOnce bool) error {
	for {
		n, ok := tr.ComputeNeighborAndGhostList(store, cell, kernrange, b.raw)
		if ok {
			trimmed := tree.EndSearch(store, i, b.raw[:n], kernrange, tr.Ndim)
			b.Hydro = b.Hydro[:0]
			for _, j := range trimmed {
				if j == i {
					continue
				}
				if doPairOnce && j < i {
					continue
				}
				b.Hydro = append(b.Hydro, j)
			}
			b.snapshot(store, b.Hydro)
			return nil
		}
		if !b.growRaw() {
			return simerr.New(simerr.KindNeighborBufferExhausted, step, i, "raw scratch buffer exceeded doubling cap")
		}
	}
}

// GetParticleNeibGravity partitions the near-field candidate set for
// particle i (the tree walk's overlapping-leaf particles) into Hydro,
// Grav, and Direct sublists: neighbors within symmetric kernel reach
// get smoothed pair gravity, the rest fall through to unsoftened
// direct summation. gravmask lets callers exclude e.g. dead particles.
func (b *Buffer) GetParticleNeibGravity(store *particle.Store, i int, candidates []int, kernrange float64, ndim int, gravmask func(*particle.Particle) bool) (nHydro, nGrav, nDirect int) {
	pi := &store.Particles[i]
	b.Hydro, b.Grav, b.Direct = b.Hydro[:0], b.Grav[:0], b.Direct[:0]
	for _, j := range candidates {
		if j == i {
			continue
		}
		pj := &store.Particles[j]
		if gravmask != nil && !gravmask(pj) {
			continue
		}
		rcut := kernrange * pi.H
		if hj := kernrange * pj.H; hj > rcut {
			rcut = hj
		}
		d2 := 0.0
		for a := 0; a < ndim; a++ {
			dx := pi.R[a] - pj.R[a]
			d2 += dx * dx
		}
		if d2 <= rcut*rcut {
			b.Hydro = append(b.Hydro, j)
			b.Grav = append(b.Grav, j)
		} else {
			b.Direct = append(b.Direct, j)
		}
	}
	b.snapshot(store, b.Hydro)
	return len(b.Hydro), len(b.Grav), len(b.Direct)
}

// GetGravityCellList fills b.Cell via
// ComputeGravityInteractionAndGhostList and returns the full classification
// for the given active cell (called once per cell, not per particle).
func (b *Buffer) GetGravityCellList(store *particle.Store, tr *tree.Tree, cell int, macfactor, thetamaxsqd, kernrange float64) tree.GravLists {
	gl := tr.ComputeGravityInteractionAndGhostList(store, cell, macfactor, thetamaxsqd, kernrange)
	b.Cell = gl.Cell
	return gl
}

// snapshot copies the particle state for ids into b.Snapshots, in the
// same order as ids, for cache-local iteration in the hydro kernels.
func (b *Buffer) snapshot(store *particle.Store, ids []int) {
	b.Snapshots = b.Snapshots[:0]
	for _, j := range ids {
		b.Snapshots = append(b.Snapshots, store.Particles[j])
	}
}

// Pool is a set of per-worker Buffers, indexed by worker id, never
// shared across workers.
type Pool struct {
	buffers []*Buffer
}

func NewPool(numWorkers int) *Pool {
	p := &Pool{buffers: make([]*Buffer, numWorkers)}
	for i := range p.buffers {
		p.buffers[i] = NewBuffer()
	}
	return p
}

func (p *Pool) Buffer(worker int) *Buffer { return p.buffers[worker] }
