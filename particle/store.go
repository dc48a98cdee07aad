package particle

// Store owns the particle array: real particles in [0, Nreal), ghosts
// in [Nreal, Nreal+Nghost). The Tree holds non-owning int indices into
// this slice; the ghost engine writes into the tail.
type Store struct {
	Particles []Particle
	Nreal     int
	Nghost    int
	Nghostmax int
}

// New allocates a Store with room for nreal real particles and up to
// nghostmax ghosts in the tail.
func New(nreal, nghostmax int) *Store {
	s := &Store{
		Particles: make([]Particle, nreal, nreal+nghostmax),
		Nreal:     nreal,
		Nghostmax: nghostmax,
	}
	for i := range s.Particles {
		s.Particles[i].ID = i
		s.Particles[i].IOrig = i
		s.Particles[i].Parent = i
		s.Particles[i].Alive = true
	}
	return s
}

// Ntot is the number of live slots currently in use (real + ghost).
func (s *Store) Ntot() int { return s.Nreal + s.Nghost }

// ResetGhosts truncates the ghost tail to zero length, keeping
// capacity. Called at the start of every RefreshGhosts cycle.
func (s *Store) ResetGhosts() {
	s.Particles = s.Particles[:s.Nreal]
	s.Nghost = 0
}

// AppendGhost appends one ghost particle to the tail, failing with
// ok=false if doing so would exceed Nghostmax.
func (s *Store) AppendGhost(g Particle) (index int, ok bool) {
	if s.Nghost >= s.Nghostmax {
		return -1, false
	}
	g.ID = len(s.Particles)
	s.Particles = append(s.Particles, g)
	s.Nghost++
	return g.ID, true
}

// Real returns the true originating particle for index i. A ghost
// created from another ghost always records the true original's
// index, so this is a direct lookup, not a recursive chase.
func (s *Store) Real(i int) *Particle {
	p := &s.Particles[i]
	if p.Ghost == GhostNone {
		return p
	}
	return &s.Particles[p.IOrig]
}

// ActiveIndices returns the indices of particles with Active=true and
// Alive=true among the real particles (ghosts are never "active").
func (s *Store) ActiveIndices() []int {
	out := make([]int, 0, s.Nreal)
	for i := 0; i < s.Nreal; i++ {
		p := &s.Particles[i]
		if p.Alive && p.Active {
			out = append(out, i)
		}
	}
	return out
}

// MarkAllActive sets Active=true for every alive real particle; used
// by sph_single_timestep=1 and by the first step of a run.
func (s *Store) MarkAllActive() {
	for i := 0; i < s.Nreal; i++ {
		if s.Particles[i].Alive {
			s.Particles[i].Active = true
		}
	}
}
