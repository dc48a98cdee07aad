package neighbor

import (
	"math/rand"
	"testing"

	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/tree"
)

func setup(n int) (*particle.Store, *tree.Tree) {
	rng := rand.New(rand.NewSource(42))
	s := particle.New(n, 0)
	for i := range s.Particles {
		s.Particles[i].R = [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
		s.Particles[i].M = 1.0 / float64(n)
		s.Particles[i].H = 0.08
		s.Particles[i].Active = true
	}
	tr := tree.Build(s, 3, 8)
	return s, tr
}

func TestGetParticleNeibExcludesSelf(t *testing.T) {
	store, tr := setup(200)
	b := NewBuffer()
	cells := tr.ComputeActiveCellList()
	i := tr.ComputeActiveParticleList(store, cells[0])[0]
	if err := b.GetParticleNeib(0, store, tr, cells[0], i, 2.0, false); err != nil {
		t.Fatalf("GetParticleNeib: %v", err)
	}
	for _, j := range b.Hydro {
		if j == i {
			t.Errorf("neighbor list includes self")
		}
	}
	if len(b.Snapshots) != len(b.Hydro) {
		t.Errorf("snapshot length %d != hydro length %d", len(b.Snapshots), len(b.Hydro))
	}
}

func TestDoPairOnceSymmetry(t *testing.T) {
	store, tr := setup(150)
	b := NewBuffer()
	cells := tr.ComputeActiveCellList()
	pairSeen := map[[2]int]int{}
	for _, cell := range cells {
		for _, i := range tr.ComputeActiveParticleList(store, cell) {
			if err := b.GetParticleNeib(0, store, tr, cell, i, 2.0, true); err != nil {
				t.Fatalf("GetParticleNeib: %v", err)
			}
			for _, j := range b.Hydro {
				key := [2]int{i, j}
				if i > j {
					key = [2]int{j, i}
				}
				pairSeen[key]++
			}
		}
	}
	for pair, count := range pairSeen {
		if count != 1 {
			t.Errorf("pair %v visited %d times with do_pair_once, want 1", pair, count)
		}
	}
}

func TestGravityPartitionIsDisjoint(t *testing.T) {
	store, tr := setup(100)
	b := NewBuffer()
	cells := tr.ComputeActiveCellList()
	i := tr.ComputeActiveParticleList(store, cells[0])[0]
	gl := tr.ComputeGravityInteractionAndGhostList(store, cells[0], 1.0, 0.04, 2.0)
	nh, ng, nd := b.GetParticleNeibGravity(store, i, gl.Near, 2.0, 3, nil)
	if nh != ng {
		t.Errorf("hydro count %d should equal grav count %d (hydro neighbors always get smoothed gravity)", nh, ng)
	}
	if nh+nd != len(gl.Near)-1 {
		t.Errorf("partition lost candidates: %d + %d != %d", nh, nd, len(gl.Near)-1)
	}
	seen := map[int]bool{}
	for _, j := range b.Hydro {
		seen[j] = true
	}
	for _, j := range b.Direct {
		if seen[j] {
			t.Errorf("particle %d appears in both Hydro and Direct", j)
		}
	}
}
