package bank

import (
	"errors"
	"sort"
)

var (
	// ErrCollapse is returned when a cycle produces no fission sites at
	// all. A criticality calculation cannot continue past this point.
	ErrCollapse = errors.New("no fission sites produced")

	// ErrRunaway is returned when the pooled site count exceeds the
	// configured growth bound, which protects against runaway
	// multiplication filling memory.
	ErrRunaway = errors.New("fission site population exceeded growth bound")
)

// SampleOffset is where the systematic sampling comb starts, in units of one
// comb interval. With equidistant comb points and this offset, a point can
// only land on a site boundary through exact float equality, and the site
// with the lower parent index wins.
const SampleOffset = 0.5

// Stats describes one synchronization step. Weight is the total pooled
// weight before any resampling, which is the production tally for the cycle.
type Stats struct {
	Pooled    int
	Weight    float64
	Resampled bool
}

// Offsets returns the prefix sum of the given per-rank site counts: the
// offset of each rank's block in the pooled bank, plus a final element
// holding the total. The offsets are a pure function of the counts in rank
// order and are used only to place blocks in the exchange buffer, never to
// order sites.
func Offsets(counts []int) []int {
	offs := make([]int, len(counts)+1)
	for i, n := range counts {
		offs[i+1] = offs[i] + n
	}
	return offs
}

// Merge pools the local banks of all ranks into a single canonically ordered
// bank. Blocks are placed at their rank offsets and then stably sorted by
// parent index, so the result depends only on the multiset of sites and
// never on which rank produced which block.
func Merge(locals [][]Site) []Site {
	counts := make([]int, len(locals))
	for i := range locals {
		counts[i] = len(locals[i])
	}
	offs := Offsets(counts)

	pooled := make([]Site, offs[len(locals)])
	for i := range locals {
		copy(pooled[offs[i]:offs[i+1]], locals[i])
	}

	// Stable, so sites sharing a parent keep their emission order.
	sort.SliceStable(pooled, func(i, j int) bool {
		return pooled[i].Parent < pooled[j].Parent
	})
	return pooled
}

// Resample selects exactly nTarget sites from a canonically ordered bank
// using systematic weight-stratified sampling: nTarget equidistant points
// are placed over the cumulative weight, and each point selects the site
// whose weight interval contains it. Expected representation of a site is
// proportional to its weight, sites may be duplicated when the pool is
// smaller than nTarget, and the output is a pure function of the input
// order and weights. Selected sites are given unit weight, so the total
// source weight of the next cycle is nTarget.
func Resample(sites []Site, nTarget int) []Site {
	total := totalWeight(sites)
	step := total / float64(nTarget)

	out := make([]Site, 0, nTarget)
	cum := 0.0
	j := 0
	for i := 0; i < nTarget; i++ {
		pt := (float64(i) + SampleOffset) * step
		for j < len(sites)-1 && cum+sites[j].Weight < pt {
			cum += sites[j].Weight
			j++
		}
		s := sites[j]
		s.Weight = 1.0
		out = append(out, s)
	}
	return out
}

// Reindex assigns fresh sequential parent indices, starting at 0, in the
// current order. This is the last step of synchronization: the indices
// become the global particle indices of the next cycle.
func Reindex(sites []Site) {
	for i := range sites {
		sites[i].Parent = int64(i)
	}
}

// Synchronize transforms the per-rank local banks of one cycle into the
// next cycle's source bank of exactly nTarget sites. If the pooled count
// already equals nTarget the pooled bank passes through unchanged apart
// from reindexing. maxGrowth bounds the pooled count at
// maxGrowth*nTarget; zero disables the bound.
func Synchronize(locals [][]Site, nTarget int, maxGrowth float64) ([]Site, Stats, error) {
	pooled := Merge(locals)
	st := Stats{Pooled: len(pooled), Weight: totalWeight(pooled)}

	if len(pooled) == 0 {
		return nil, st, ErrCollapse
	}
	if maxGrowth > 0 && float64(len(pooled)) > maxGrowth*float64(nTarget) {
		return nil, st, ErrRunaway
	}

	next := pooled
	if len(pooled) != nTarget {
		next = Resample(pooled, nTarget)
		st.Resampled = true
	}
	Reindex(next)
	return next, st, nil
}

func totalWeight(sites []Site) float64 {
	w := 0.0
	for i := range sites {
		w += sites[i].Weight
	}
	return w
}
