// Package tree builds and stocks a balanced spatial (KD) tree over
// the particle store, with cell multipole moments and active-cell
// enumeration.
//
// Ghosts live in the tail of particle.Store's own slice, so
// a single tree built over [0, Ntot) already contains both real and
// ghost particles as first-class members of whichever leaf their
// position puts them in — there is no separate "ghost tree" to merge
// at query time.
package tree

import (
	"sort"

	"github.com/kestrel-sim/sphgrav/particle"
)

// Node is one axis-aligned box in the tree: either an internal node
// (Left/Right >= 0) or a leaf (Left == Right == -1, particles in
// Index[Start:End]).
type Node struct {
	BoundMin, BoundMax [3]float64
	COM                [3]float64
	Mass               float64
	Hmax               float64
	Quad               [3][3]float64 // traceless quadrupole about COM
	Start, End         int           // range into Tree.Index
	Left, Right        int           // child node ids, -1 for leaf
	Nactive            int
}

func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Extent returns half the length of the node's widest bounding-box
// side, the "cell size" measure used by the opening-angle MAC.
func (n *Node) Extent(ndim int) float64 {
	max := 0.0
	for d := 0; d < ndim; d++ {
		if s := n.BoundMax[d] - n.BoundMin[d]; s > max {
			max = s
		}
	}
	return 0.5 * max
}

// Tree is a KD-tree over particle indices [0, Ntot). Index holds those
// indices reordered by the build partition; Node.Start/End slice into
// Index, not into the particle array directly; the tree never owns
// particle data.
type Tree struct {
	Ndim     int
	Nleafmax int
	Index    []int
	Nodes    []Node
	RootID   int
}

// Build partitions particles [0, n) of store along the widest axis at
// each level, splitting so that leaf sizes are balanced within a
// factor of 2, stopping at Nleafmax particles per leaf.
func Build(store *particle.Store, ndim, nleafmax int) *Tree {
	n := store.Ntot()
	t := &Tree{Ndim: ndim, Nleafmax: nleafmax, Index: make([]int, n)}
	for i := range t.Index {
		t.Index[i] = i
	}
	t.Nodes = make([]Node, 0, 2*n/nleafmax+2)
	t.RootID = t.build(store, 0, n)
	t.Stock(store)
	return t
}

// build recursively partitions Index[lo:hi), returning the id of the
// node it allocates.
func (t *Tree) build(store *particle.Store, lo, hi int) int {
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Start: lo, End: hi, Left: -1, Right: -1})

	if hi-lo <= t.Nleafmax {
		return id
	}

	axis := t.widestAxis(store, lo, hi)
	mid := lo + (hi-lo)/2
	idx := t.Index[lo:hi]
	sort.Slice(idx, func(i, j int) bool {
		return store.Particles[idx[i]].R[axis] < store.Particles[idx[j]].R[axis]
	})

	left := t.build(store, lo, mid)
	right := t.build(store, mid, hi)
	t.Nodes[id].Left = left
	t.Nodes[id].Right = right
	return id
}

func (t *Tree) widestAxis(store *particle.Store, lo, hi int) int {
	var min, max [3]float64
	for d := 0; d < t.Ndim; d++ {
		min[d], max[d] = 1e300, -1e300
	}
	for k := lo; k < hi; k++ {
		r := store.Particles[t.Index[k]].R
		for d := 0; d < t.Ndim; d++ {
			if r[d] < min[d] {
				min[d] = r[d]
			}
			if r[d] > max[d] {
				max[d] = r[d]
			}
		}
	}
	best, bestSpan := 0, -1.0
	for d := 0; d < t.Ndim; d++ {
		if span := max[d] - min[d]; span > bestSpan {
			bestSpan, best = span, d
		}
	}
	return best
}

// Stock recomputes bbox, mass, COM, hmax, and quadrupole moments
// bottom-up for every node.
func (t *Tree) Stock(store *particle.Store) {
	t.stockNode(store, t.RootID)
}

func (t *Tree) stockNode(store *particle.Store, id int) {
	n := &t.Nodes[id]
	if n.IsLeaf() {
		t.stockLeaf(store, n)
		return
	}
	t.stockNode(store, n.Left)
	t.stockNode(store, n.Right)
	l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]

	for d := 0; d < t.Ndim; d++ {
		n.BoundMin[d] = min(l.BoundMin[d], r.BoundMin[d])
		n.BoundMax[d] = max(l.BoundMax[d], r.BoundMax[d])
	}
	n.Mass = l.Mass + r.Mass
	n.Hmax = max(l.Hmax, r.Hmax)
	n.Nactive = l.Nactive + r.Nactive
	if n.Mass > 0 {
		for d := 0; d < t.Ndim; d++ {
			n.COM[d] = (l.COM[d]*l.Mass + r.COM[d]*r.Mass) / n.Mass
		}
	}
	n.Quad = combineQuadrupole(l, r, n.COM, t.Ndim)
}

func (t *Tree) stockLeaf(store *particle.Store, n *Node) {
	for d := 0; d < t.Ndim; d++ {
		n.BoundMin[d], n.BoundMax[d] = 1e300, -1e300
	}
	n.Mass, n.Hmax, n.Nactive = 0, 0, 0
	var com [3]float64
	for k := n.Start; k < n.End; k++ {
		p := &store.Particles[t.Index[k]]
		if !p.Alive {
			continue
		}
		for d := 0; d < t.Ndim; d++ {
			if p.R[d] < n.BoundMin[d] {
				n.BoundMin[d] = p.R[d]
			}
			if p.R[d] > n.BoundMax[d] {
				n.BoundMax[d] = p.R[d]
			}
			com[d] += p.M * p.R[d]
		}
		n.Mass += p.M
		if p.H > n.Hmax {
			n.Hmax = p.H
		}
		if p.Active {
			n.Nactive++
		}
	}
	if n.Mass > 0 {
		for d := 0; d < t.Ndim; d++ {
			n.COM[d] = com[d] / n.Mass
		}
	}
	var quad [3][3]float64
	for k := n.Start; k < n.End; k++ {
		p := &store.Particles[t.Index[k]]
		if !p.Alive {
			continue
		}
		var d [3]float64
		for a := 0; a < t.Ndim; a++ {
			d[a] = p.R[a] - n.COM[a]
		}
		r2 := 0.0
		for a := 0; a < t.Ndim; a++ {
			r2 += d[a] * d[a]
		}
		for a := 0; a < t.Ndim; a++ {
			for bb := 0; bb < t.Ndim; bb++ {
				term := 3 * d[a] * d[bb]
				if a == bb {
					term -= r2
				}
				quad[a][bb] += p.M * term
			}
		}
	}
	n.Quad = quad
}

// combineQuadrupole shifts the children's quadrupole moments to the
// parent's COM (parallel-axis theorem) and sums them.
func combineQuadrupole(l, r *Node, parentCOM [3]float64, ndim int) [3][3]float64 {
	var out [3][3]float64
	for _, c := range []*Node{l, r} {
		var d [3]float64
		for a := 0; a < ndim; a++ {
			d[a] = c.COM[a] - parentCOM[a]
		}
		r2 := 0.0
		for a := 0; a < ndim; a++ {
			r2 += d[a] * d[a]
		}
		for a := 0; a < ndim; a++ {
			for bb := 0; bb < ndim; bb++ {
				shift := c.Mass * (3*d[a]*d[bb] - boolf(a == bb)*r2)
				out[a][bb] += c.Quad[a][bb] + shift
			}
		}
	}
	return out
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
