package tree

import (
	"math"

	"github.com/kestrel-sim/sphgrav/particle"
)

// ComputeActiveCellList returns the ids of leaf nodes containing at
// least one active particle.
func (t *Tree) ComputeActiveCellList() []int {
	var out []int
	for id := range t.Nodes {
		n := &t.Nodes[id]
		if n.IsLeaf() && n.Nactive > 0 {
			out = append(out, id)
		}
	}
	return out
}

// ComputeActiveParticleList returns the particle-array indices of the
// alive, active particles inside the given leaf cell.
func (t *Tree) ComputeActiveParticleList(store *particle.Store, cell int) []int {
	n := &t.Nodes[cell]
	out := make([]int, 0, n.Nactive)
	for k := n.Start; k < n.End; k++ {
		idx := t.Index[k]
		p := &store.Particles[idx]
		if p.Alive && p.Active {
			out = append(out, idx)
		}
	}
	return out
}

// overlapsSphere reports whether node n's bbox intersects a sphere of
// radius rad centered at c, using the box-to-point distance. A node
// whose bbox overlaps the query sphere is always recursed into.
func overlapsSphere(n *Node, c [3]float64, rad float64, ndim int) bool {
	d2 := 0.0
	for a := 0; a < ndim; a++ {
		v := 0.0
		if c[a] < n.BoundMin[a] {
			v = n.BoundMin[a] - c[a]
		} else if c[a] > n.BoundMax[a] {
			v = c[a] - n.BoundMax[a]
		}
		d2 += v * v
	}
	return d2 <= rad*rad
}

// cellCenter returns the midpoint of the node's bbox, used as the
// query center for gather/neighbor searches over a whole cell.
func cellCenter(n *Node, ndim int) [3]float64 {
	var c [3]float64
	for a := 0; a < ndim; a++ {
		c[a] = 0.5 * (n.BoundMin[a] + n.BoundMax[a])
	}
	return c
}

func cellRadius(n *Node, ndim int) float64 {
	d2 := 0.0
	for a := 0; a < ndim; a++ {
		half := 0.5 * (n.BoundMax[a] - n.BoundMin[a])
		d2 += half * half
	}
	return math.Sqrt(d2)
}

// ComputeGatherNeighborList fills dst (up to cap(dst)) with every live
// particle index j such that |r_j - cellCenter| <= kernrange*hmax +
// cellExtent. Returns ok=false when dst was too small so the caller
// can double its buffer and retry.
func (t *Tree) ComputeGatherNeighborList(store *particle.Store, cell int, hmax, kernrange float64, dst []int) (n int, ok bool) {
	node := &t.Nodes[cell]
	center := cellCenter(node, t.Ndim)
	radius := kernrange*hmax + cellRadius(node, t.Ndim)
	n = 0
	ok = true
	t.walkGather(store, t.RootID, center, radius, &dst, &n, &ok)
	return n, ok
}

// ComputeGatherNeighborListAroundPoint is ComputeGatherNeighborList
// without a cell context, used by the smoothing solver which queries
// around a single particle's position with its own trial radius.
func (t *Tree) ComputeGatherNeighborListAroundPoint(store *particle.Store, center [3]float64, radius float64, dst []int) (n int, ok bool) {
	n = 0
	ok = true
	t.walkGather(store, t.RootID, center, radius, &dst, &n, &ok)
	return n, ok
}

func (t *Tree) walkGather(store *particle.Store, id int, center [3]float64, radius float64, dst *[]int, n *int, ok *bool) {
	if !*ok {
		return
	}
	node := &t.Nodes[id]
	if !overlapsSphere(node, center, radius, t.Ndim) {
		return
	}
	if node.IsLeaf() {
		for k := node.Start; k < node.End; k++ {
			idx := t.Index[k]
			if !store.Particles[idx].Alive {
				continue
			}
			if *n >= len(*dst) {
				*ok = false
				return
			}
			(*dst)[*n] = idx
			*n++
		}
		return
	}
	t.walkGather(store, node.Left, center, radius, dst, n, ok)
	t.walkGather(store, node.Right, center, radius, dst, n, ok)
}

// EndSearch filters a raw gather-list (superset) down to the symmetric
// hydro neighbor set: retains j iff |r_i-r_j|^2 <= max(kernrange*h_i,
// kernrange*h_j)^2.
func EndSearch(store *particle.Store, i int, raw []int, kernrange float64, ndim int) []int {
	pi := &store.Particles[i]
	out := raw[:0]
	for _, j := range raw {
		pj := &store.Particles[j]
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
			out = append(out, j)
		}
	}
	return out
}

// ComputeNeighborAndGhostList fills dst with the raw gather-list for a
// whole cell, real and ghost particles alike, since both live in the
// same tree.
// Callers run EndSearch per-particle afterward to trim to the
// symmetric kernel-range criterion.
func (t *Tree) ComputeNeighborAndGhostList(store *particle.Store, cell int, kernrange float64, dst []int) (n int, ok bool) {
	return t.ComputeGatherNeighborList(store, cell, t.Nodes[cell].Hmax, kernrange, dst)
}

// MAC kinds accepted by ComputeGravityInteractionAndGhostList.
type MAC int

const (
	MACGeometric MAC = iota
	MACEigen
)

// GravLists is the partition of a cell's opposite-side contacts into
// near (hydro-range, handled by smoothed pair gravity), direct
// (point-point Newtonian), and cell (multipole-accepted) groups.
type GravLists struct {
	Near   []int
	Direct []int
	Cell   []int // node ids accepted by the MAC
}

// ComputeGravityInteractionAndGhostList walks the tree from the root,
// splitting contacts with the active cell into near/direct/cell groups
// using the opening-angle MAC: a node is accepted as a cell
// contribution iff (size/dist)^2 * macfactor < thetamaxsqd; otherwise
// it is recursed into. Ties (bbox overlaps the active cell, or two
// children straddle the boundary) always recurse rather than accept.
func (t *Tree) ComputeGravityInteractionAndGhostList(store *particle.Store, cell int, macfactor, thetamaxsqd, kernrange float64) GravLists {
	var out GravLists
	active := &t.Nodes[cell]
	center := cellCenter(active, t.Ndim)
	t.walkGravity(store, t.RootID, cell, center, macfactor, thetamaxsqd, kernrange, &out)
	return out
}

func (t *Tree) walkGravity(store *particle.Store, id, activeCell int, activeCenter [3]float64, macfactor, thetamaxsqd, kernrange float64, out *GravLists) {
	node := &t.Nodes[id]
	active := &t.Nodes[activeCell]

	// A node overlapping the active cell's bbox always recurses or,
	// if it's a leaf, contributes via direct/near particle pairs.
	overlapping := boxesOverlap(node, active, t.Ndim)

	if node.IsLeaf() {
		for k := node.Start; k < node.End; k++ {
			idx := t.Index[k]
			if !store.Particles[idx].Alive {
				continue
			}
			if overlapping {
				// Near-field: the whole leaf is classified by bbox
				// overlap with the active cell; the per-particle
				// kernel-reach split happens later, in
				// neighbor.GetParticleNeibGravity.
				out.Near = append(out.Near, idx)
			} else {
				out.Direct = append(out.Direct, idx)
			}
		}
		return
	}

	if !overlapping {
		dist2 := 0.0
		for a := 0; a < t.Ndim; a++ {
			dx := node.COM[a] - activeCenter[a]
			dist2 += dx * dx
		}
		size := 2 * node.Extent(t.Ndim)
		if dist2 > 0 && size*size*macfactor < thetamaxsqd*dist2 {
			out.Cell = append(out.Cell, id)
			return
		}
	}
	// Tie-break: when the two children straddle the acceptance
	// boundary, neither is accepted here — both are visited, and each
	// makes its own accept/recurse decision independently.
	t.walkGravity(store, node.Left, activeCell, activeCenter, macfactor, thetamaxsqd, kernrange, out)
	t.walkGravity(store, node.Right, activeCell, activeCenter, macfactor, thetamaxsqd, kernrange, out)
}

func boxesOverlap(a, b *Node, ndim int) bool {
	for d := 0; d < ndim; d++ {
		if a.BoundMax[d] < b.BoundMin[d] || a.BoundMin[d] > b.BoundMax[d] {
			return false
		}
	}
	return true
}
