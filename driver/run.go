package driver

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-sim/sphgrav/box"
	"github.com/kestrel-sim/sphgrav/config"
	"github.com/kestrel-sim/sphgrav/diagnostics"
	"github.com/kestrel-sim/sphgrav/ghost"
	"github.com/kestrel-sim/sphgrav/gravity"
	"github.com/kestrel-sim/sphgrav/hydro"
	"github.com/kestrel-sim/sphgrav/integrator"
	"github.com/kestrel-sim/sphgrav/kernel"
	"github.com/kestrel-sim/sphgrav/neighbor"
	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/simerr"
	"github.com/kestrel-sim/sphgrav/smoothing"
	"github.com/kestrel-sim/sphgrav/snapshot"
	"github.com/kestrel-sim/sphgrav/tree"
)

// ICGenerator is the initial-condition collaborator: given the loaded
// config, populate and return a fresh particle store plus any star
// particles, deferring parameter-file parsing and unit conversion to
// the caller.
type ICGenerator interface {
	Generate(cfg *config.Config) (*particle.Store, []particle.Star, error)
}

// Options configures one Run invocation.
type Options struct {
	Config      *config.Config
	IC          ICGenerator
	NumWorkers  int
	OutputDir   string
	SnapshotDir string
	// SnapshotFormat selects "binary" (default) or "column" snapshots.
	SnapshotFormat string
	Logger         *slog.Logger
	// NBody overrides the star collaborator. When nil, the
	// Driver falls back to a built-in leapfrog integrator.
	NBody NBodyIntegrator
	// Ewald overrides the periodic-gravity correction collaborator.
	// When nil and periodic gravity is enabled, the nearest-image sum
	// runs uncorrected.
	Ewald gravity.EwaldCorrector
	// MaxSteps stops Run after this many sub-steps, even if Tend has
	// not been reached yet. Zero means unlimited.
	MaxSteps int
}

// isMFV reports whether the configured SPH dialect is one of the
// Meshless-FV variants, as opposed to grad-h SPH.
func isMFV(sph string) bool { return strings.HasPrefix(sph, "mfv") }

// Driver owns the run's mutable state across sub-steps: the particle
// store, tree, ghost engine, worker pool, and the cooperative
// interrupt flag.
type Driver struct {
	cfg     *config.Config
	box     *box.DomainBox
	store   *particle.Store
	stars   []particle.Star
	tr      *tree.Tree
	ghosts  *ghost.Engine
	pool    *Pool
	k       kernel.Kernel
	eos     hydro.EOS
	avisc   hydro.AviscParams
	grav    *gravity.Params
	neibs   *neighbor.Pool
	hscr    []*smoothing.Scratch
	hpar    smoothing.Params
	iprm    integrator.Params
	riemann hydro.RiemannSolver
	nbody   NBodyIntegrator
	perf    *PerfStats
	out     *snapshot.OutputManager
	snapDir string
	snapFmt string
	log     *slog.Logger
	hist    *diagnostics.History

	// prevDt is the previous sub-step's base timestep, used by the
	// Meshless-FV dialect's two-stage Runge-Kutta half-step predictor;
	// zero on the first sub-step, when the predictor is skipped.
	prevDt float64

	interrupt atomic.Bool

	maxSteps int
	step     int
	// maxLevel is the finest block-timestep level currently populated;
	// nsub counts base sub-steps for the level synchronization
	// schedule.
	maxLevel  int
	nsub      int
	t         float64
	tsnapnext float64
	initial   diagnostics.Snapshot
	haveInit  bool
}

// New constructs a Driver from Options, generating initial conditions
// via opts.IC and building the domain box, kernel, EOS, and other
// per-run parameter blocks from config.
func New(opts Options) (*Driver, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, stars, err := opts.IC.Generate(cfg)
	if err != nil {
		return nil, simerr.Wrap(simerr.KindConfig, 0, -1, "generating initial conditions", err)
	}
	store.Nghostmax = cfg.Nghostmax

	var min, max [3]float64
	for a := 0; a < cfg.Ndim; a++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < store.Nreal; i++ {
			r := store.Particles[i].R[a]
			if r < lo {
				lo = r
			}
			if r > hi {
				hi = r
			}
		}
		min[a], max[a] = lo, hi
	}
	b := box.New(cfg.Ndim, min, max, cfg.Derived.BoundaryLHS, cfg.Derived.BoundaryRHS, cfg.PeriodicGravity)

	out, err := snapshot.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, simerr.Wrap(simerr.KindIOFailure, 0, -1, "opening output directory", err)
	}

	pool := NewPool(opts.NumWorkers)
	hscr := make([]*smoothing.Scratch, pool.NumWorkers())
	for i := range hscr {
		hscr[i] = smoothing.NewScratch()
	}

	d := &Driver{
		cfg:    cfg,
		box:    b,
		store:  store,
		stars:  stars,
		ghosts: &ghost.Engine{GhostRangeFactor: cfg.GhostRange, Kernrange: cfg.Kernrange},
		pool:   pool,
		k:      kernel.New(cfg.KernelName, cfg.Ndim, cfg.TabulatedKernel),
		eos:    hydro.NewEOS(cfg.GasEOS, cfg.GammaEOS, 0, 1.0),
		avisc:  hydro.AviscParams{Scheme: cfg.Avisc, Alpha: cfg.AlphaVisc, Beta: cfg.BetaVisc, Eta2: 0.01, Acond: cfg.Acond, AlphaCond: 1.0},
		neibs:  neighbor.NewPool(pool.NumWorkers()),
		hscr:   hscr,
		hpar:   smoothing.Params{HFac: 1.2, HConverge: cfg.HConverge, Ndim: cfg.Ndim, Kernrange: cfg.Kernrange},
		iprm: integrator.Params{
			Ndim: cfg.Ndim, Nlevels: cfg.Nlevels,
			CourantMult: cfg.CourantMult, AccelMult: cfg.AccelMult, EnergyMult: cfg.EnergyMult,
			SPHSingleTimestep: cfg.SPHSingleTimestep, DtMax: cfg.Tend, Scheme: cfg.SPHIntegration,
		},
		riemann:   hydro.HLLCSolver{Gamma: cfg.GammaEOS},
		perf:      NewPerfStats(120),
		out:       out,
		snapDir:   opts.SnapshotDir,
		snapFmt:   opts.SnapshotFormat,
		log:       logger,
		tsnapnext: cfg.TsnapFirst,
		maxSteps:  opts.MaxSteps,
	}
	if d.snapFmt == "" {
		d.snapFmt = "binary"
	}
	d.grav = &gravity.Params{
		Ndim:     cfg.Ndim,
		Periodic: b.PeriodicGravity,
		Ewald:    gravity.NullEwald{},
	}
	if opts.Ewald != nil {
		d.grav.Ewald = opts.Ewald
	}
	switch cfg.Multipole {
	case "quadrupole":
		d.grav.Multipole = gravity.Quadrupole
	case "fast_monopole":
		d.grav.Multipole = gravity.FastMonopole
	case "fast_quadrupole":
		d.grav.Multipole = gravity.FastQuadrupole
	default:
		d.grav.Multipole = gravity.Monopole
	}

	if opts.NBody != nil {
		d.nbody = opts.NBody
	} else {
		d.nbody = newLeapfrogNBody(cfg.Ndim, d.stars)
	}

	store.MarkAllActive()
	return d, nil
}

// Interrupt flips the cooperative stop flag the main loop checks
// between sub-steps.
func (d *Driver) Interrupt() { d.interrupt.Store(true) }

// Run executes sub-steps until t reaches Tend or the interrupt flag
// is set, refreshing ghosts and the tree, updating smoothing lengths
// and forces for the active set, integrating, and scheduling
// diagnostics/snapshot output each sub-step.
func (d *Driver) Run() error {
	defer d.pool.Stop()
	defer d.out.Close()

	for d.t < d.cfg.Tend {
		if d.interrupt.Load() {
			return simerr.New(simerr.KindUserInterrupt, d.step, -1, "user interrupt")
		}
		if d.maxSteps > 0 && d.step >= d.maxSteps {
			return nil
		}
		if err := d.subStep(); err != nil {
			return err
		}
		d.step++
	}
	return nil
}

func (d *Driver) subStep() error {
	done := d.perf.Timer("ghost")
	if err := d.ghosts.RefreshGhosts(d.step, d.store, d.box); err != nil {
		done()
		return err
	}
	done()

	done = d.perf.Timer("tree")
	d.tr = tree.Build(d.store, d.cfg.Ndim, d.cfg.Nleafmax)
	done()

	cells := d.tr.ComputeActiveCellList()
	d.resetActive()

	done = d.perf.Timer("smoothing")
	if err := d.updateSmoothing(cells); err != nil {
		done()
		return err
	}
	done()

	done = d.perf.Timer("hydro")
	if d.cfg.HydroForces {
		if err := d.computeHydroForces(cells); err != nil {
			done()
			return err
		}
	}
	done()

	done = d.perf.Timer("gravity")
	if d.cfg.SelfGravity {
		d.computeGravityForces(cells)
	}
	done()

	done = d.perf.Timer("integrator")
	dtBase := d.computeDtBase()
	if d.cfg.SelfGravity && len(d.stars) > 0 {
		hydroAccel := func(i int) [3]float64 { return d.stars[i].A }
		if err := d.nbody.AdvanceStars(d.stars, hydroAccel, dtBase); err == nil {
			d.stars = d.nbody.Stars()
		}
	}
	if isMFV(d.cfg.SPH) {
		d.integrateMFVStageTwo(cells, dtBase)
	} else {
		d.integrate(dtBase)
	}
	d.prevDt = dtBase
	done()

	d.t += dtBase
	d.updateDiagnostics()
	d.logPerfStats()
	return d.maybeSnapshot()
}

// resetActive clears derived per-step fields on every active real
// particle before the smoothing/force passes recompute them.
func (d *Driver) resetActive() {
	for i := 0; i < d.store.Nreal; i++ {
		pi := &d.store.Particles[i]
		if pi.Alive && pi.Active {
			pi.Reset()
		}
	}
}

func (d *Driver) updateSmoothing(cells []int) error {
	err := d.pool.RunPhaseErr(cells, func(worker, cell int) error {
		for _, i := range d.tr.ComputeActiveParticleList(d.store, cell) {
			pi := &d.store.Particles[i]
			if !pi.Alive || !pi.Active {
				continue
			}
			hHi := d.cfg.Kernrange * d.tr.Nodes[cell].Hmax
			if hHi <= 0 {
				hHi = pi.H
			}
			if hHi <= 0 {
				hHi = 1.0
			}
			if err := smoothing.SolveOne(d.step, d.store, d.tr, d.k, &d.hpar, d.hscr[worker], i, hHi); err != nil {
				return err
			}
		}
		return nil
	})
	d.ghosts.CopyStateToGhosts(d.store, d.box)
	return err
}

// computeHydroForces dispatches to the configured SPH dialect: grad-h
// SPH's momentum/energy equations or the Meshless-FV
// reconstruct-and-flux pipeline.
func (d *Driver) computeHydroForces(cells []int) error {
	if isMFV(d.cfg.SPH) {
		d.mfvPrepare(cells)
		return d.mfvAccumulateFluxes(cells)
	}
	d.computeGradHForces(cells)
	return nil
}

func (d *Driver) computeGradHForces(cells []int) {
	d.pool.RunPhase(cells, func(worker, cell int) {
		buf := d.neibs.Buffer(worker)
		for _, i := range d.tr.ComputeActiveParticleList(d.store, cell) {
			pi := &d.store.Particles[i]
			if !pi.Alive || !pi.Active {
				continue
			}
			if err := buf.GetParticleNeib(d.step, d.store, d.tr, cell, i, d.cfg.Kernrange, false); err != nil {
				continue
			}
			hydro.GradH(d.k, d.eos, d.avisc, d.cfg.Ndim, pi, buf.Snapshots)
		}
	})
}

// mfvPrepare derives each active particle's volume and baseline
// primitive state from the freshly smoothed density volume
// partition, then advances its conservative state by a
// half-step predictor using the previous sub-step's flux rate, the
// first stage of the two-stage Runge-Kutta scheme.
func (d *Driver) mfvPrepare(cells []int) {
	ndim := d.cfg.Ndim
	gamma := d.cfg.GammaEOS
	d.pool.RunPhase(cells, func(worker, cell int) {
		for _, i := range d.tr.ComputeActiveParticleList(d.store, cell) {
			pi := &d.store.Particles[i]
			if !pi.Alive || !pi.Active || pi.Rho <= 0 {
				continue
			}
			pi.Volume = pi.M / pi.Rho
			p, cs := d.eos.PressureAndSoundSpeed(pi.Rho, pi.U)
			pi.SoundSpeed = cs
			pi.W = particle.Primitive{Rho: pi.Rho, V: pi.V, P: p}
			hydro.PrimToConservative(pi, gamma, ndim)
			pi.Q0 = pi.Q
			if d.prevDt > 0 {
				integrator.RKPredict(pi, pi.DQ, d.prevDt, ndim)
				hydro.PrimFromConservative(d.eos, gamma, pi, ndim)
			}
		}
	})
	d.ghosts.CopyStateToGhosts(d.store, d.box)
}

// mfvAccumulateFluxes runs steps 1-4 of the Meshless-FV dialect for
// every active particle: the moment matrix and its inverse, the
// gradient estimate, and the face-by-face Riemann flux against each
// neighbor, summed into DQ. A non-positive reconstructed
// density or pressure surfaces as NonPositiveState rather than being
// clamped.
func (d *Driver) mfvAccumulateFluxes(cells []int) error {
	ndim := d.cfg.Ndim
	gamma := d.cfg.GammaEOS
	d.pool.RunPhase(cells, func(worker, cell int) {
		buf := d.neibs.Buffer(worker)
		for _, i := range d.tr.ComputeActiveParticleList(d.store, cell) {
			pi := &d.store.Particles[i]
			if !pi.Alive || !pi.Active {
				continue
			}
			if err := buf.GetParticleNeib(d.step, d.store, d.tr, cell, i, d.cfg.Kernrange, false); err != nil {
				continue
			}
			hydro.PsiFactors(d.k, ndim, pi, buf.Snapshots)
			hydro.Gradients(d.k, ndim, pi, buf.Snapshots)
		}
	})
	// Ghost snapshots in the flux pass must carry the gradients just
	// computed for their parents, not last sub-step's.
	d.ghosts.CopyStateToGhosts(d.store, d.box)
	var stateMu sync.Mutex
	var stateErr error
	d.pool.RunPhase(cells, func(worker, cell int) {
		buf := d.neibs.Buffer(worker)
		for _, i := range d.tr.ComputeActiveParticleList(d.store, cell) {
			pi := &d.store.Particles[i]
			if !pi.Alive || !pi.Active {
				continue
			}
			if err := buf.GetParticleNeib(d.step, d.store, d.tr, cell, i, d.cfg.Kernrange, false); err != nil {
				continue
			}
			pi.DQ = particle.Conservative{}
			for idx := range buf.Snapshots {
				pj := &buf.Snapshots[idx]
				if pj.IOrig == pi.IOrig {
					continue
				}
				// Each pair is evaluated in a canonical orientation
				// (lower IOrig on the left) so that when j runs its own
				// loop it reproduces the identical flux bits and applies
				// the opposite sign: dQ_i += -F, dQ_j += +F exactly.
				f, ok := hydro.PairFlux(d.riemann, d.k, gamma, ndim, pi, pj)
				if !ok {
					stateMu.Lock()
					if stateErr == nil {
						stateErr = simerr.New(simerr.KindNonPositiveState, d.step, pi.ID,
							"reconstructed density or pressure non-positive at face")
					}
					stateMu.Unlock()
					continue
				}
				pi.DQ.Mass += f.Mass
				pi.DQ.Energy += f.Energy
				for a := 0; a < ndim; a++ {
					pi.DQ.Mom[a] += f.Mom[a]
				}
			}
		}
	})
	return stateErr
}

// computeGravityForces accumulates the near/direct/cell gravity
// contributions for every active gas particle, dispatching
// the cell term to the once-per-cell Taylor field for the fast
// multipole variants, and accumulates the reciprocal pull felt by each
// star so the NBodyIntegrator collaborator advances under its true
// felt acceleration.
func (d *Driver) computeGravityForces(cells []int) {
	macfactor := 1.0
	for s := range d.stars {
		d.stars[s].A = [3]float64{}
	}
	fast := d.grav.Multipole == gravity.FastMonopole || d.grav.Multipole == gravity.FastQuadrupole
	var starMu sync.Mutex
	d.pool.RunPhase(cells, func(worker, cell int) {
		buf := d.neibs.Buffer(worker)
		gl := buf.GetGravityCellList(d.store, d.tr, cell, macfactor, d.cfg.ThetaMaxSqd, d.cfg.Kernrange)
		active := d.tr.ComputeActiveParticleList(d.store, cell)

		var fastFields []gravity.FastCellField
		center := d.tr.Nodes[cell].COM
		if fast && len(gl.Cell) > 0 {
			fastFields = make([]gravity.FastCellField, len(gl.Cell))
			for idx, nodeID := range gl.Cell {
				fastFields[idx] = gravity.BuildFastField(d.grav, center, &d.tr.Nodes[nodeID])
			}
		}

		for _, i := range active {
			pi := &d.store.Particles[i]
			if !pi.Alive || !pi.Active {
				continue
			}
			// Split the walk's near-field between smoothed pair gravity
			// (within symmetric kernel reach) and direct summation.
			buf.GetParticleNeibGravity(d.store, i, gl.Near, d.cfg.Kernrange, d.cfg.Ndim, nil)
			for _, j := range buf.Grav {
				gravity.SmoothedPair(d.k, d.grav, pi, &d.store.Particles[j])
			}
			for _, j := range buf.Direct {
				gravity.DirectPair(d.grav, pi, d.store.Particles[j].M, d.store.Particles[j].R)
			}
			for _, j := range gl.Direct {
				gravity.DirectPair(d.grav, pi, d.store.Particles[j].M, d.store.Particles[j].R)
			}
			if fast {
				for _, field := range fastFields {
					gravity.ApplyFastField(d.grav, pi, center, field)
				}
			} else {
				for _, nodeID := range gl.Cell {
					gravity.CellContribution(d.grav, pi, &d.tr.Nodes[nodeID])
				}
			}
			for s := range d.stars {
				gravity.StarPair(d.k, d.grav, pi, &d.stars[s])
				starMu.Lock()
				gravity.PairOnStar(d.k, d.grav, &d.stars[s], pi)
				starMu.Unlock()
			}
		}
	})
}

// computeDtBase builds this sub-step's level ladder: the
// global minimum candidate timestep anchors the finest rung, DtMax is
// set so the ladder spans Nlevels power-of-two rungs above it, and each
// particle is assigned a level on the new ladder (with the hysteresis
// and levelneib clamps AssignLevel applies). Returns dt of the finest
// populated level, which is the base sub-step size.
func (d *Driver) computeDtBase() float64 {
	dtMin := math.Inf(1)
	for i := 0; i < d.store.Nreal; i++ {
		pi := &d.store.Particles[i]
		if !pi.Alive || !pi.Active {
			continue
		}
		if dt := integrator.CandidateDt(&d.iprm, pi); dt < dtMin {
			dtMin = dt
		}
	}
	remaining := d.cfg.Tend - d.t
	if math.IsInf(dtMin, 1) || dtMin > remaining {
		dtMin = remaining
	}
	d.iprm.DtMax = dtMin * math.Exp2(float64(d.cfg.Nlevels-1))

	maxLevel := 0
	for i := 0; i < d.store.Nreal; i++ {
		pi := &d.store.Particles[i]
		if !pi.Alive {
			continue
		}
		pi.Level = integrator.AssignLevel(&d.iprm, pi)
		if pi.Level > maxLevel {
			maxLevel = pi.Level
		}
	}
	if d.cfg.SPHSingleTimestep {
		for i := 0; i < d.store.Nreal; i++ {
			if d.store.Particles[i].Alive {
				d.store.Particles[i].Level = maxLevel
			}
		}
	}
	d.maxLevel = maxLevel
	return integrator.DtLevel(d.iprm.DtMax, maxLevel)
}

// scheduleNextActive advances the sub-step counter and raises the
// active flag on exactly the particles whose level synchronizes at the
// next sub-step boundary. With a single level populated every particle
// stays active, so the schedule degenerates to global timestepping.
func (d *Driver) scheduleNextActive() {
	d.nsub++
	if d.cfg.SPHSingleTimestep || d.cfg.Nlevels <= 1 || d.maxLevel == 0 {
		d.store.MarkAllActive()
		return
	}
	for i := 0; i < d.store.Nreal; i++ {
		pi := &d.store.Particles[i]
		if !pi.Alive {
			continue
		}
		pi.Active = integrator.ActiveOnSubstep(pi.Level, d.maxLevel, d.nsub)
	}
}

// integrate advances the fluid by one base sub-step: every alive
// particle drifts by dt_base, while particles synchronizing at this
// boundary additionally receive their level's kick, as KDK or DKD per
// the configured scheme.
func (d *Driver) integrate(dtBase float64) {
	dkd := d.cfg.SPHIntegration == "lfdkd"
	for i := 0; i < d.store.Nreal; i++ {
		pi := &d.store.Particles[i]
		if !pi.Alive {
			continue
		}
		if !pi.Active {
			integrator.Drift(pi, dtBase, d.cfg.Ndim)
			d.box.WrapOrReflect(&pi.R, &pi.V)
			continue
		}
		// Positions advance by dt_base for everyone; the kick uses the
		// particle's own level dt, applied at its synchronization
		// boundary.
		dtLev := integrator.DtLevel(d.iprm.DtMax, pi.Level)
		if dkd {
			integrator.Drift(pi, 0.5*dtBase, d.cfg.Ndim)
			integrator.Kick(pi, dtLev, d.cfg.Ndim)
			integrator.Drift(pi, 0.5*dtBase, d.cfg.Ndim)
		} else {
			integrator.KickHalf(pi, dtLev, d.cfg.Ndim)
			integrator.Drift(pi, dtBase, d.cfg.Ndim)
			integrator.KickHalf(pi, dtLev, d.cfg.Ndim)
		}
		d.box.WrapOrReflect(&pi.R, &pi.V)
	}
	d.scheduleNextActive()
}

// integrateMFVStageTwo finishes the Meshless-FV dialect's two-stage
// Runge-Kutta step: the corrector conservative update from
// the predictor start state Q0 and the stage-2 flux rate DQ, the
// gravity kick on velocity, and the fluid drift of position.
func (d *Driver) integrateMFVStageTwo(cells []int, dtBase float64) {
	ndim := d.cfg.Ndim
	gamma := d.cfg.GammaEOS
	for i := 0; i < d.store.Nreal; i++ {
		pi := &d.store.Particles[i]
		if !pi.Alive {
			continue
		}
		if !pi.Active {
			integrator.Drift(pi, dtBase, ndim)
			d.box.WrapOrReflect(&pi.R, &pi.V)
			continue
		}
		pi.Q = pi.Q0
		pi.Q.Mass += dtBase * pi.DQ.Mass
		pi.Q.Energy += dtBase * pi.DQ.Energy
		for a := 0; a < ndim; a++ {
			pi.Q.Mom[a] += dtBase * pi.DQ.Mom[a]
		}

		integrator.KickHalf(pi, dtBase, ndim)
		hydro.SyncConservativeVelocity(pi, ndim)
		integrator.RKCorrect(pi, dtBase, ndim)
		d.box.WrapOrReflect(&pi.R, &pi.V)
		integrator.KickHalf(pi, dtBase, ndim)
		hydro.SyncConservativeVelocity(pi, ndim)

		hydro.PrimFromConservative(d.eos, gamma, pi, ndim)
	}
	d.scheduleNextActive()
}

func (d *Driver) updateDiagnostics() {
	snap := diagnostics.Collect(d.store, d.cfg.Ndim, d.t)
	if !d.haveInit {
		d.initial = snap
		d.haveInit = true
		d.hist = diagnostics.NewHistory(snap)
	}
	d.hist.Append(snap)
	rec := snapshot.TelemetryRecord{
		Step: d.step, Time: d.t,
		Nactive: len(d.store.ActiveIndices()), Nghost: d.store.Nghost,
		KineticEnergy: snap.Kinetic, ThermalEnergy: snap.Thermal, GravityEnergy: snap.Gravity,
		TotalEnergy:    snap.Total,
		EnergyErrorRel: diagnostics.RelativeEnergyError(snap, d.initial),
		MomentumDrift:  diagnostics.MomentumDrift(snap, d.initial),
	}
	if err := d.out.WriteTelemetry(rec); err != nil {
		d.log.Warn("telemetry write failed", "error", err)
	}
	d.log.Info("substep complete", "step", d.step, "t", d.t, "energy_err", rec.EnergyErrorRel)
}

// logPerfStats logs the rolling-average phase timings every
// noutputstep sub-steps and appends the matching perf.csv
// row, along with the run-level energy-error drift statistics.
func (d *Driver) logPerfStats() {
	if d.cfg.Noutputstep <= 0 || d.step%d.cfg.Noutputstep != 0 {
		return
	}
	names := d.perf.SortedNames()
	args := make([]any, 0, 2*len(names)+6)
	args = append(args, "step", d.step)
	for _, name := range names {
		args = append(args, name, d.perf.Avg(name))
	}
	errMean, errStddev := d.hist.EnergyErrorStats()
	args = append(args, "energy_err_mean", errMean, "energy_err_stddev", errStddev)
	d.log.Info("phase timing", args...)

	total := d.perf.Total()
	stepsPerSec := 0.0
	if total > 0 {
		stepsPerSec = float64(time.Second) / float64(total)
	}
	rec := snapshot.PerfRecord{
		WindowEnd:    d.step,
		DtBaseUs:     d.prevDt2us(),
		GhostUs:      d.perf.Avg("ghost").Microseconds(),
		TreeUs:       d.perf.Avg("tree").Microseconds(),
		SmoothingUs:  d.perf.Avg("smoothing").Microseconds(),
		HydroUs:      d.perf.Avg("hydro").Microseconds(),
		GravityUs:    d.perf.Avg("gravity").Microseconds(),
		IntegratorUs: d.perf.Avg("integrator").Microseconds(),
		StepsPerSec:  stepsPerSec,
	}
	if err := d.out.WritePerf(rec); err != nil {
		d.log.Warn("perf write failed", "error", err)
	}
}

// prevDt2us reports the previous base sub-step in integer microseconds
// of simulation time, a coarse but monotonic column for perf.csv.
func (d *Driver) prevDt2us() int64 {
	return int64(d.prevDt * 1e6)
}

func (d *Driver) maybeSnapshot() error {
	if d.t < d.tsnapnext {
		return nil
	}
	if d.cfg.DtSnap > 0 {
		d.tsnapnext += d.cfg.DtSnap
	} else {
		d.tsnapnext = d.cfg.Tend + 1
	}
	if d.snapDir == "" {
		return nil
	}
	if err := os.MkdirAll(d.snapDir, 0o755); err != nil {
		return simerr.Wrap(simerr.KindIOFailure, d.step, -1, "creating snapshot directory", err)
	}
	ext := "dat"
	if d.snapFmt == "column" {
		ext = "txt"
	}
	path := filepath.Join(d.snapDir, fmt.Sprintf("snapshot_%06d.%s", d.step, ext))
	f, err := os.Create(path)
	if err != nil {
		return simerr.Wrap(simerr.KindIOFailure, d.step, -1, "creating snapshot file", err)
	}
	defer f.Close()
	if d.snapFmt == "column" {
		err = snapshot.WriteColumn(f, d.store, d.cfg.Ndim, d.t)
	} else {
		err = snapshot.WriteBinary(f, d.store, d.cfg.Ndim, d.t)
	}
	if err != nil {
		return err
	}
	d.log.Info("snapshot written", "path", path, "t", d.t)
	return nil
}
