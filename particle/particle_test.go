package particle

import "testing"

func TestStoreGhostLifecycle(t *testing.T) {
	s := New(4, 8)
	if s.Ntot() != 4 {
		t.Fatalf("Ntot = %d, want 4", s.Ntot())
	}
	idx, ok := s.AppendGhost(Particle{IOrig: 0, Ghost: GhostXRHSPeriodic, Alive: true})
	if !ok {
		t.Fatal("AppendGhost failed unexpectedly")
	}
	if idx != 4 || s.Nghost != 1 || s.Ntot() != 5 {
		t.Errorf("idx=%d nghost=%d ntot=%d", idx, s.Nghost, s.Ntot())
	}
	s.ResetGhosts()
	if s.Nghost != 0 || s.Ntot() != 4 {
		t.Errorf("ResetGhosts left nghost=%d ntot=%d", s.Nghost, s.Ntot())
	}
}

func TestAppendGhostOverflow(t *testing.T) {
	s := New(1, 1)
	if _, ok := s.AppendGhost(Particle{}); !ok {
		t.Fatal("first ghost should succeed")
	}
	if _, ok := s.AppendGhost(Particle{}); ok {
		t.Fatal("second ghost should overflow Nghostmax=1")
	}
}

func TestRealChasesGhostParent(t *testing.T) {
	s := New(2, 4)
	s.Particles[0].M = 7
	idx, _ := s.AppendGhost(Particle{IOrig: 0, Ghost: GhostXRHSPeriodic})
	real := s.Real(idx)
	if real.M != 7 {
		t.Errorf("Real(ghost).M = %v, want 7", real.M)
	}
}

func TestActiveIndicesExcludesGhostsAndDead(t *testing.T) {
	s := New(3, 2)
	s.Particles[0].Active = true
	s.Particles[1].Active = false
	s.Particles[2].Active = true
	s.Particles[2].Alive = false
	idx := s.ActiveIndices()
	if len(idx) != 1 || idx[0] != 0 {
		t.Errorf("ActiveIndices = %v, want [0]", idx)
	}
}
