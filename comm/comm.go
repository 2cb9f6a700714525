/*package comm provides the collective operations that join the worker ranks
of a run: barriers, variable-size site gathers, broadcasts and scalar
all-reduces. Every collective is a blocking barrier over all ranks, built on
channels to a per-communicator coordinator goroutine rather than on shared
memory, and every result is a pure function of the inputs in rank order, not
of arrival order.
*/
package comm

import (
	"fmt"

	"github.com/xfempty/openmc/bank"
)

type opKind int

const (
	opBarrier opKind = iota
	opGatherSites
	opBcastSites
	opBcastInt64
	opSumFloat64
	opSumInt64
	opAbort
)

var opNames = []string{
	"Barrier", "GatherSites", "BcastSites", "BcastInt64",
	"AllreduceFloat64", "AllreduceInt64", "Abort",
}

func (k opKind) String() string { return opNames[k] }

type request struct {
	rank  int
	kind  opKind
	sites []bank.Site
	f     float64
	n     int64
	err   error
	reply chan response
}

type response struct {
	ranks [][]bank.Site
	sites []bank.Site
	f     float64
	n     int64
	err   error
}

// Comm coordinates a fixed set of ranks within one process. Rank 0 is the
// root of rooted collectives. Once any collective returns an error the
// communicator is dead: the error is sticky and every later call fails with
// it, so no rank can hang waiting for a rank that has already aborted.
type Comm struct {
	size int
	reqs chan request
	quit chan struct{}
}

// New creates a communicator for the given number of ranks and starts its
// coordinator.
func New(size int) *Comm {
	if size < 1 {
		size = 1
	}
	c := &Comm{
		size: size,
		reqs: make(chan request, size),
		quit: make(chan struct{}),
	}
	go c.run()
	return c
}

// Size returns the number of ranks.
func (c *Comm) Size() int { return c.size }

// Close stops the coordinator. No collective may be in flight.
func (c *Comm) Close() { close(c.quit) }

// Barrier blocks until every rank has arrived.
func (c *Comm) Barrier(rank int) error {
	res := c.call(request{rank: rank, kind: opBarrier})
	return res.err
}

// GatherSites collects every rank's local sites. Rank 0 receives the
// slices in rank order; other ranks receive nil.
func (c *Comm) GatherSites(rank int, sites []bank.Site) ([][]bank.Site, error) {
	res := c.call(request{rank: rank, kind: opGatherSites, sites: sites})
	return res.ranks, res.err
}

// BcastSites distributes rank 0's sites to every rank.
func (c *Comm) BcastSites(rank int, sites []bank.Site) ([]bank.Site, error) {
	res := c.call(request{rank: rank, kind: opBcastSites, sites: sites})
	return res.sites, res.err
}

// BcastInt64 distributes rank 0's value to every rank.
func (c *Comm) BcastInt64(rank int, n int64) (int64, error) {
	res := c.call(request{rank: rank, kind: opBcastInt64, n: n})
	return res.n, res.err
}

// AllreduceFloat64 returns the sum of every rank's value, added in rank
// order so the result doesn't depend on arrival order.
func (c *Comm) AllreduceFloat64(rank int, x float64) (float64, error) {
	res := c.call(request{rank: rank, kind: opSumFloat64, f: x})
	return res.f, res.err
}

// AllreduceInt64 returns the sum of every rank's value.
func (c *Comm) AllreduceInt64(rank int, n int64) (int64, error) {
	res := c.call(request{rank: rank, kind: opSumInt64, n: n})
	return res.n, res.err
}

// Abort marks the communicator as failed with err. Every rank blocked in or
// later entering a collective receives err instead of hanging. The aborting
// rank must make no further collective calls.
func (c *Comm) Abort(rank int, err error) {
	c.reqs <- request{rank: rank, kind: opAbort, err: err}
}

func (c *Comm) call(req request) response {
	req.reply = make(chan response, 1)
	c.reqs <- req
	return <-req.reply
}

// run is the coordinator loop. Each round consumes exactly one message per
// rank, either a collective request or an abort, then answers everyone.
func (c *Comm) run() {
	var sticky error

	for {
		pending := make([]request, 0, c.size)
		roundErr := sticky

		for seen := 0; seen < c.size; seen++ {
			var req request
			select {
			case req = <-c.reqs:
			case <-c.quit:
				return
			}

			if req.kind == opAbort {
				if roundErr == nil {
					roundErr = req.err
					if roundErr == nil {
						roundErr = fmt.Errorf("comm: rank %d aborted", req.rank)
					}
				}
				continue
			}
			pending = append(pending, req)
		}

		if roundErr == nil {
			seen := make([]bool, c.size)
			for _, req := range pending {
				if req.rank < 0 || req.rank >= c.size || seen[req.rank] {
					roundErr = fmt.Errorf(
						"comm: invalid or duplicate rank %d", req.rank)
					break
				}
				seen[req.rank] = true
				if req.kind != pending[0].kind {
					roundErr = fmt.Errorf(
						"comm: collective mismatch: rank %d called %v "+
							"while rank %d called %v",
						req.rank, req.kind,
						pending[0].rank, pending[0].kind,
					)
					break
				}
			}
		}

		if roundErr != nil {
			for _, req := range pending {
				req.reply <- response{err: roundErr}
			}
			sticky = roundErr
			continue
		}

		c.answer(pending)
	}
}

func (c *Comm) answer(pending []request) {
	byRank := make([]*request, c.size)
	for i := range pending {
		byRank[pending[i].rank] = &pending[i]
	}

	var res response
	switch pending[0].kind {
	case opBarrier:
	case opGatherSites:
		ranks := make([][]bank.Site, c.size)
		for r := 0; r < c.size; r++ {
			ranks[r] = byRank[r].sites
		}
		res.ranks = ranks
	case opBcastSites:
		res.sites = byRank[0].sites
	case opBcastInt64:
		res.n = byRank[0].n
	case opSumFloat64:
		for r := 0; r < c.size; r++ {
			res.f += byRank[r].f
		}
	case opSumInt64:
		for r := 0; r < c.size; r++ {
			res.n += byRank[r].n
		}
	}

	for _, req := range pending {
		out := res
		if req.kind == opGatherSites && req.rank != 0 {
			out.ranks = nil
		}
		req.reply <- out
	}
}
