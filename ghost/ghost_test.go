package ghost

import (
	"testing"

	"github.com/kestrel-sim/sphgrav/box"
	"github.com/kestrel-sim/sphgrav/particle"
)

func testBox() *box.DomainBox {
	return box.New(2, [3]float64{0, 0, 0}, [3]float64{1, 1, 0},
		[3]box.Kind{box.Periodic, box.Open, box.Open},
		[3]box.Kind{box.Periodic, box.Open, box.Open}, false)
}

func TestRefreshGhostsCreatesNearBoundary(t *testing.T) {
	store := particle.New(2, 16)
	store.Particles[0].R = [3]float64{0.02, 0.5, 0}
	store.Particles[0].H = 0.1
	store.Particles[1].R = [3]float64{0.5, 0.5, 0}
	store.Particles[1].H = 0.1

	e := &Engine{GhostRangeFactor: 1.1, Kernrange: 2.0}
	if err := e.RefreshGhosts(0, store, testBox()); err != nil {
		t.Fatalf("RefreshGhosts: %v", err)
	}
	if store.Nghost != 1 {
		t.Fatalf("Nghost = %d, want 1 (only particle 0 is near the periodic face)", store.Nghost)
	}
	g := store.Particles[store.Nreal]
	if g.IOrig != 0 {
		t.Errorf("ghost IOrig = %d, want 0", g.IOrig)
	}
	if g.R[0] < 0.9 {
		t.Errorf("periodic ghost should be shifted to the far side, got R[0]=%v", g.R[0])
	}
}

func TestRefreshGhostsIsIdempotentAcrossCalls(t *testing.T) {
	store := particle.New(1, 16)
	store.Particles[0].R = [3]float64{0.01, 0.5, 0}
	store.Particles[0].H = 0.1
	e := &Engine{GhostRangeFactor: 1.1, Kernrange: 2.0}

	if err := e.RefreshGhosts(0, store, testBox()); err != nil {
		t.Fatal(err)
	}
	n1, r1 := store.Nghost, store.Particles[store.Nreal].R

	if err := e.RefreshGhosts(1, store, testBox()); err != nil {
		t.Fatal(err)
	}
	n2, r2 := store.Nghost, store.Particles[store.Nreal].R

	if n1 != n2 || r1 != r2 {
		t.Errorf("ghost count/position not bit-identical across calls: (%d,%v) vs (%d,%v)", n1, r1, n2, r2)
	}
}

func TestCreateGhostOverflowReturnsError(t *testing.T) {
	store := particle.New(1, 0)
	store.Particles[0].R = [3]float64{0.01, 0.5, 0}
	store.Particles[0].H = 0.1
	e := &Engine{GhostRangeFactor: 1.1, Kernrange: 2.0}
	if err := e.RefreshGhosts(0, store, testBox()); err == nil {
		t.Fatal("expected GhostOverflow error")
	}
}

func TestCornerGhostRefreshFollowsParentChain(t *testing.T) {
	b := box.New(2, [3]float64{0, 0, 0}, [3]float64{1, 1, 0},
		[3]box.Kind{box.Periodic, box.Periodic, box.Open},
		[3]box.Kind{box.Periodic, box.Periodic, box.Open}, false)
	store := particle.New(1, 16)
	store.Particles[0].R = [3]float64{0.01, 0.02, 0}
	store.Particles[0].H = 0.1

	e := &Engine{GhostRangeFactor: 1.1, Kernrange: 2.0}
	if err := e.RefreshGhosts(0, store, b); err != nil {
		t.Fatal(err)
	}
	if store.Nghost != 3 {
		t.Fatalf("Nghost = %d, want 3 (x image, y image, corner image)", store.Nghost)
	}

	// Find the corner ghost: shifted on both axes.
	corner := -1
	for i := store.Nreal; i < store.Ntot(); i++ {
		g := &store.Particles[i]
		if g.R[0] > 0.5 && g.R[1] > 0.5 {
			corner = i
		}
	}
	if corner < 0 {
		t.Fatal("no corner ghost found")
	}
	if store.Particles[corner].IOrig != 0 {
		t.Errorf("corner ghost IOrig = %d, want 0 (the true original)", store.Particles[corner].IOrig)
	}

	// Moving the parent and refreshing must keep the corner ghost
	// shifted on both axes, not just its own transform axis.
	store.Particles[0].R = [3]float64{0.03, 0.04, 0}
	e.CopyStateToGhosts(store, b)
	g := store.Particles[corner]
	wantX := store.Particles[0].R[0] + b.Size[0]
	wantY := store.Particles[0].R[1] + b.Size[1]
	if g.R[0] != wantX || g.R[1] != wantY {
		t.Errorf("corner ghost after refresh at %v, want (%v, %v)", g.R, wantX, wantY)
	}
}

func TestCopyStateToGhostsMirrorsVelocity(t *testing.T) {
	b := box.New(2, [3]float64{0, 0, 0}, [3]float64{1, 1, 0},
		[3]box.Kind{box.Mirror, box.Open, box.Open},
		[3]box.Kind{box.Mirror, box.Open, box.Open}, false)
	store := particle.New(1, 4)
	store.Particles[0].R = [3]float64{0.01, 0.5, 0}
	store.Particles[0].V = [3]float64{2, 3, 0}
	store.Particles[0].H = 0.1

	e := &Engine{GhostRangeFactor: 1.1, Kernrange: 2.0}
	if err := e.RefreshGhosts(0, store, b); err != nil {
		t.Fatal(err)
	}
	store.Particles[0].V = [3]float64{5, 3, 0}
	e.CopyStateToGhosts(store, b)
	g := store.Particles[store.Nreal]
	if g.V[0] != -5 {
		t.Errorf("mirror ghost V[0] = %v, want -5 after refresh", g.V[0])
	}
	if g.V[1] != 3 {
		t.Errorf("mirror ghost V[1] = %v, want 3 (unaffected axis)", g.V[1])
	}
}
