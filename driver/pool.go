// Package driver owns the main loop: the persistent worker pool that
// runs each phase's active-cell list, the phase-level performance
// tracker, and the sub-step sequencing tying every other package
// together.
package driver

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// cellJob is one unit of work handed to a worker: a cell index plus
// the per-phase function to run on it.
type cellJob struct {
	cell int
	fn   func(worker, cell int)
}

// Pool is a persistent worker pool scheduling cell-indexed jobs inside
// a phase: workers pull cells from a shared queue and a barrier at
// phase end separates consecutive phases.
type Pool struct {
	numWorkers int
	jobs       chan cellJob
	wg         sync.WaitGroup
	stop       chan struct{}
	running    bool
}

// NewPool creates a pool sized to GOMAXPROCS, or the given override if
// positive.
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &Pool{numWorkers: numWorkers}
}

func (p *Pool) NumWorkers() int { return p.numWorkers }

// Start launches the persistent worker goroutines; idempotent.
func (p *Pool) Start() {
	if p.running {
		return
	}
	p.jobs = make(chan cellJob, p.numWorkers*4)
	p.stop = make(chan struct{})
	p.running = true
	for w := 0; w < p.numWorkers; w++ {
		p.wg.Add(1)
		go p.worker(w)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job.fn(id, job.cell)
		}
	}
}

// RunPhase dispatches fn(workerID, cell) for every cell in cells and
// blocks until all have completed — the barrier at phase end. Between
// phases there is no cross-phase concurrency.
func (p *Pool) RunPhase(cells []int, fn func(worker, cell int)) {
	if !p.running {
		p.Start()
	}
	var phaseWG sync.WaitGroup
	phaseWG.Add(len(cells))
	wrapped := func(worker, cell int) {
		defer phaseWG.Done()
		fn(worker, cell)
	}
	for _, c := range cells {
		p.jobs <- cellJob{cell: c, fn: wrapped}
	}
	phaseWG.Wait()
}

// RunPhaseErr runs a fallible phase (currently only the smoothing
// solver, which can return HIterationDiverged per particle) and
// returns the first error across all cells. It bounds concurrency with
// errgroup.SetLimit rather than routing through the persistent job
// channel, since errgroup's Wait already gives the thread-safe
// first-error capture RunPhase's callers would otherwise have to
// synchronize by hand.
func (p *Pool) RunPhaseErr(cells []int, fn func(worker, cell int) error) error {
	var g errgroup.Group
	g.SetLimit(p.numWorkers)
	ids := make(chan int, p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		ids <- i
	}
	for _, c := range cells {
		c := c
		g.Go(func() error {
			id := <-ids
			defer func() { ids <- id }()
			return fn(id, c)
		})
	}
	return g.Wait()
}

// Stop signals every worker to exit and waits for them, releasing the
// scratch each worker held.
func (p *Pool) Stop() {
	if !p.running {
		return
	}
	close(p.stop)
	p.wg.Wait()
	close(p.jobs)
	p.running = false
}
