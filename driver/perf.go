package driver

import (
	"sort"
	"time"
)

// PerfStats tracks a rolling window of execution time for each phase
// of the main loop (ghost refresh, tree build, smoothing, hydro,
// gravity, integrator), grounded on the same ring-buffer-of-samples
// approach used for this repository's other rolling window trackers.
type PerfStats struct {
	samples    map[string][]time.Duration
	maxSamples int
}

func NewPerfStats(maxSamples int) *PerfStats {
	if maxSamples <= 0 {
		maxSamples = 120
	}
	return &PerfStats{samples: make(map[string][]time.Duration), maxSamples: maxSamples}
}

func (p *PerfStats) Record(phase string, d time.Duration) {
	p.samples[phase] = append(p.samples[phase], d)
	if len(p.samples[phase]) > p.maxSamples {
		p.samples[phase] = p.samples[phase][1:]
	}
}

func (p *PerfStats) Avg(phase string) time.Duration {
	s := p.samples[phase]
	if len(s) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s {
		total += d
	}
	return total / time.Duration(len(s))
}

func (p *PerfStats) Total() time.Duration {
	var total time.Duration
	for name := range p.samples {
		total += p.Avg(name)
	}
	return total
}

func (p *PerfStats) SortedNames() []string {
	names := make([]string, 0, len(p.samples))
	for name := range p.samples {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return p.Avg(names[i]) > p.Avg(names[j])
	})
	return names
}

// Timer starts a phase timer; call the returned func when the phase
// completes to record its duration.
func (p *PerfStats) Timer(phase string) func() {
	start := time.Now()
	return func() { p.Record(phase, time.Since(start)) }
}
