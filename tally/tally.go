/*package tally accumulates the per-cycle multiplication factor estimates and
their running statistics over the active cycles of a run.
*/
package tally

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CycleRecord is the per-cycle trace row exposed to external reporting.
type CycleRecord struct {
	Cycle    int     `csv:"cycle"`
	Active   bool    `csv:"active"`
	Sites    int64   `csv:"sites"`
	Keff     float64 `csv:"keff"`
	MeanKeff float64 `csv:"keff_mean"`
	StdErr   float64 `csv:"keff_std_err"`
}

// Accumulator keeps the cycle trace of a run and the running mean and
// variance of k-effective over its active cycles. The first inactive cycles
// drive the source forward but are excluded from the statistics.
type Accumulator struct {
	inactive int
	keffs    []float64
	records  []CycleRecord
}

// NewAccumulator creates an accumulator that treats the first
// inactiveCycles cycles as source-settling cycles.
func NewAccumulator(inactiveCycles int) *Accumulator {
	return &Accumulator{inactive: inactiveCycles}
}

// Add records one completed cycle and returns its trace row, including the
// running statistics as of that cycle.
func (acc *Accumulator) Add(cycle int, sites int64, keff float64) CycleRecord {
	active := cycle >= acc.inactive
	if active {
		acc.keffs = append(acc.keffs, keff)
	}

	rec := CycleRecord{
		Cycle:  cycle,
		Active: active,
		Sites:  sites,
		Keff:   keff,
	}
	if len(acc.keffs) > 0 {
		rec.MeanKeff = acc.Mean()
		rec.StdErr = acc.StdErr()
	}

	acc.records = append(acc.records, rec)
	return rec
}

// Active returns the number of active cycles recorded so far.
func (acc *Accumulator) Active() int { return len(acc.keffs) }

// Records returns the trace rows of every recorded cycle.
func (acc *Accumulator) Records() []CycleRecord { return acc.records }

// Mean returns the mean k-effective over the active cycles.
func (acc *Accumulator) Mean() float64 {
	if len(acc.keffs) == 0 {
		return math.NaN()
	}
	return stat.Mean(acc.keffs, nil)
}

// Variance returns the sample variance of k-effective over the active
// cycles.
func (acc *Accumulator) Variance() float64 {
	if len(acc.keffs) < 2 {
		return 0
	}
	return stat.Variance(acc.keffs, nil)
}

// StdErr returns the standard error of the mean k-effective.
func (acc *Accumulator) StdErr() float64 {
	n := len(acc.keffs)
	if n < 2 {
		return 0
	}
	return math.Sqrt(acc.Variance() / float64(n))
}
