/*package openmc implements the cross-worker synchronization core of a Monte
Carlo criticality calculation: deterministic random streams per particle,
per-worker fission banks merged into a canonical source each cycle, and the
cycle loop that drives tracking, synchronization and tallying. Particle
physics lives behind the Tracker interface and is supplied by the caller.
*/
package openmc

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync/atomic"

	"github.com/xfempty/openmc/bank"
	"github.com/xfempty/openmc/comm"
	"github.com/xfempty/openmc/io"
	"github.com/xfempty/openmc/rand"
	"github.com/xfempty/openmc/source"
	"github.com/xfempty/openmc/tally"
)

// State is the phase of the cycle loop.
type State int

const (
	Inactive State = iota
	Active
	Converged
	Aborted
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Converged:
		return "converged"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Tracker runs one particle history. It consumes the particle's private
// random stream and returns the fission sites the history produced, which
// the caller banks. A Tracker error is fatal for the run: histories are not
// idempotent, so there is no retry.
//
// Track is called concurrently from multiple workers and must not share
// mutable state between calls.
type Tracker interface {
	Track(site bank.Site, gen *rand.Generator) ([]bank.Site, error)
}

// ErrRunAborted is the cause reported when Abort stops a run.
var ErrRunAborted = errors.New("run aborted")

// Convergence-based stopping needs at least this many active cycles before
// the standard error is trusted.
const minConvergeCycles = 10

// Manager drives the cycle loop over a fixed set of worker ranks. Workers
// track their slice of the source in parallel; the only synchronization
// points are the cycle-start barrier, the bank exchange and the tally
// reduction, all of which block until every rank arrives.
type Manager struct {
	tracker Tracker

	nTarget   int
	inactive  int
	total     int
	seed      uint64
	stride    uint64
	workers   int
	maxGrowth float64
	tol       float64

	checkpointFile string

	acc   *tally.Accumulator
	trace *tally.Writer

	src        []bank.Site
	startCycle int

	// Written only by rank 0 during Run.
	state      State
	final      []bank.Site
	finalCycle int

	abort atomic.Bool
	log   bool
}

// NewManager validates the configuration, builds the initial source and
// returns a manager ready to Run. Configuration errors are detected here,
// before any cycle runs.
func NewManager(con *io.RunConfig, tracker Tracker) (*Manager, error) {
	if tracker == nil {
		return nil, fmt.Errorf("no tracker supplied")
	}
	if !con.ValidNTarget() {
		return nil, fmt.Errorf("invalid 'NTarget' value %d", con.NTarget)
	}
	if !con.ValidCycles() {
		return nil, fmt.Errorf(
			"invalid cycle counts: %d active, %d inactive",
			con.ActiveCycles, con.InactiveCycles,
		)
	}
	if !con.ValidStride() {
		return nil, fmt.Errorf(
			"invalid 'Stride' value %d: must be at least %d",
			con.Stride, rand.MinStride,
		)
	}
	if !con.ValidWorkers() {
		return nil, fmt.Errorf("invalid 'Workers' value %d", con.Workers)
	}
	if !con.ValidMaxBankGrowth() {
		return nil, fmt.Errorf(
			"invalid 'MaxBankGrowth' value %g", con.MaxBankGrowth,
		)
	}

	man := &Manager{
		tracker:        tracker,
		nTarget:        con.NTarget,
		inactive:       con.InactiveCycles,
		total:          con.InactiveCycles + con.ActiveCycles,
		seed:           uint64(con.BaseSeed),
		stride:         uint64(con.Stride),
		workers:        con.Workers,
		maxGrowth:      con.MaxBankGrowth,
		tol:            con.ConvergeTol,
		checkpointFile: con.CheckpointFile,
		acc:            tally.NewAccumulator(con.InactiveCycles),
	}
	if man.workers == 0 {
		man.workers = runtime.NumCPU()
	}

	var src []bank.Site
	var err error
	if con.SourceFile != "" {
		src, err = source.ReadSites(con.SourceFile)
		if err != nil {
			return nil, err
		}
	} else {
		src = source.Uniform(con.NTarget, man.seed)
	}

	// The starting source must already satisfy the bank-size invariant,
	// so it goes through the same resampling step as every later cycle.
	man.src, _, err = bank.Synchronize(
		[][]bank.Site{src}, man.nTarget, 0,
	)
	if err != nil {
		return nil, fmt.Errorf("initial source: %w", err)
	}

	if con.TraceFile != "" {
		man.trace, err = tally.NewWriter(con.TraceFile)
		if err != nil {
			return nil, err
		}
	}

	return man, nil
}

// Log turns per-cycle log output on or off.
func (man *Manager) Log(flag bool) { man.log = flag }

// Resume replaces the initial source with a checkpointed bank and restarts
// the cycle loop just after the cycle that produced it. The checkpoint's
// RNG parameters must match the configuration, or the resumed run would
// silently diverge from the original.
func (man *Manager) Resume(file string) error {
	hd, sites, err := io.ReadBankAt(file)
	if err != nil {
		return err
	}

	if uint64(hd.BaseSeed) != man.seed {
		return fmt.Errorf(
			"%s: checkpoint seed %d does not match configured seed %d",
			file, hd.BaseSeed, man.seed,
		)
	}
	if int(hd.NTarget) != man.nTarget {
		return fmt.Errorf(
			"%s: checkpoint NTarget %d does not match configured %d",
			file, hd.NTarget, man.nTarget,
		)
	}
	if uint64(hd.Stride) != man.stride {
		return fmt.Errorf(
			"%s: checkpoint stride %d does not match configured %d",
			file, hd.Stride, man.stride,
		)
	}
	if len(sites) != man.nTarget {
		return fmt.Errorf(
			"%s: checkpoint holds %d sites, expected %d",
			file, len(sites), man.nTarget,
		)
	}

	man.src = sites
	man.startCycle = int(hd.Cycle) + 1
	return nil
}

// Abort asks the run to stop. Workers notice between particle histories (a
// history always runs to completion once started) and the abort propagates
// to every rank before the next barrier.
func (man *Manager) Abort() { man.abort.Store(true) }

// State returns the terminal state after Run, or the current cycle phase
// while running (only meaningful to rank 0's goroutine).
func (man *Manager) State() State { return man.state }

// Keff returns the mean k-effective over the active cycles and its
// standard error.
func (man *Manager) Keff() (mean, stdErr float64) {
	return man.acc.Mean(), man.acc.StdErr()
}

// Trace returns the per-cycle records accumulated so far.
func (man *Manager) Trace() []tally.CycleRecord { return man.acc.Records() }

// FinalBank returns the last synchronized bank and the cycle that produced
// it, for external persistence.
func (man *Manager) FinalBank() ([]bank.Site, int) {
	return man.final, man.finalCycle
}

// Run executes the cycle loop to completion. It returns nil once the
// configured cycles finish (state Converged) and the first fatal error
// otherwise (state Aborted), naming the cycle and phase that failed.
func (man *Manager) Run() error {
	c := comm.New(man.workers)
	defer c.Close()

	out := make(chan error, man.workers)
	for id := 1; id < man.workers; id++ {
		go func(id int) { out <- man.worker(id, c) }(id)
	}
	err := man.worker(0, c)

	for i := 1; i < man.workers; i++ {
		if werr := <-out; err == nil {
			err = werr
		}
	}

	if man.trace != nil {
		if cerr := man.trace.Close(); err == nil {
			err = cerr
		}
	}

	if err != nil {
		man.state = Aborted
		return err
	}
	man.state = Converged
	return nil
}

// worker is the per-rank cycle loop. All ranks execute the same sequence of
// collective calls in lockstep; rank 0 additionally owns the merge,
// resample and tally steps.
func (man *Manager) worker(id int, c *comm.Comm) error {
	src := man.src

	for cycle := man.startCycle; cycle < man.total; cycle++ {
		// (a) cycle-start barrier: nobody samples until everyone has
		// finished the previous cycle.
		if err := c.Barrier(id); err != nil {
			return err
		}
		if id == 0 {
			if cycle < man.inactive {
				man.state = Inactive
			} else {
				man.state = Active
			}
		}

		lo, hi := span(len(src), c.Size(), id)
		local := bank.NewLocal(hi - lo)

		for i := lo; i < hi; i++ {
			if man.abort.Load() {
				err := man.fatal(cycle, "tracking", ErrRunAborted)
				c.Abort(id, err)
				return err
			}

			gen := rand.Stream(
				rand.Lcg63, man.seed, cycle, i, man.nTarget, man.stride,
			)
			secs, err := man.tracker.Track(src[i], gen)
			if err != nil {
				err = man.fatal(cycle, "tracking", err)
				c.Abort(id, err)
				return err
			}
			for _, s := range secs {
				s.Parent = int64(i)
				local.Append(s)
			}
		}

		// (b) bank synchronization: gather, canonical sort, resample.
		ranks, err := c.GatherSites(id, local.Sites())
		if err != nil {
			return err
		}

		var next []bank.Site
		var st bank.Stats
		if id == 0 {
			next, st, err = bank.Synchronize(ranks, man.nTarget, man.maxGrowth)
			if err != nil {
				err = man.fatal(cycle, "synchronization", err)
				c.Abort(id, err)
				return err
			}
		}
		next, err = c.BcastSites(id, next)
		if err != nil {
			return err
		}

		// (c) tally reduction.
		sites, err := c.AllreduceInt64(id, int64(local.Len()))
		if err != nil {
			return err
		}

		stop := int64(0)
		if id == 0 {
			// The production weight comes from the canonically ordered
			// pooled bank, so the estimate is bit-identical for any
			// worker count. The source weight sums in index order.
			keff := st.Weight / totalWeight(src)
			rec := man.acc.Add(cycle, sites, keff)

			if man.trace != nil {
				if err := man.trace.Write(rec); err != nil {
					err = man.fatal(cycle, "reduction", err)
					c.Abort(id, err)
					return err
				}
			}
			if man.log {
				log.Printf(
					"cycle %4d (%8s): sites %7d, k = %.5f, "+
						"mean = %.5f +/- %.5f",
					cycle, man.state, sites, rec.Keff,
					rec.MeanKeff, rec.StdErr,
				)
			}

			man.final, man.finalCycle = next, cycle

			if man.tol > 0 && man.acc.Active() >= minConvergeCycles &&
				man.acc.StdErr() < man.tol {
				stop = 1
			}
		}

		stop, err = c.BcastInt64(id, stop)
		if err != nil {
			return err
		}

		src = next
		if stop == 1 {
			break
		}
	}

	if id == 0 && man.checkpointFile != "" {
		hd := &io.RunHeader{
			Cycle:    int64(man.finalCycle),
			BaseSeed: int64(man.seed),
			NTarget:  int64(man.nTarget),
			Stride:   int64(man.stride),
		}
		if err := io.WriteBank(man.checkpointFile, hd, man.final); err != nil {
			return man.fatal(man.finalCycle, "checkpoint", err)
		}
	}
	return nil
}

// fatal wraps a locally detected error with the cycle and phase it was
// raised in. Errors arriving through a collective are already wrapped by
// the rank that raised them and pass through unchanged.
func (man *Manager) fatal(cycle int, phase string, err error) error {
	return fmt.Errorf("cycle %d: %s: %w", cycle, phase, err)
}

// span partitions n particles into contiguous, nearly equal ranges, one
// per rank.
func span(n, parts, id int) (lo, hi int) {
	return n * id / parts, n * (id + 1) / parts
}

func totalWeight(sites []bank.Site) float64 {
	w := 0.0
	for i := range sites {
		w += sites[i].Weight
	}
	return w
}
