/*package rand supplies the deterministic random number streams used by the
cycle loop. Every particle's stream is derived from the run's base seed by
jumping a linear congruential generator ahead to that particle's private
block of the sequence, so the stream is a pure function of
(seed, cycle, global particle index) and never depends on which worker or
thread tracks the particle.
*/
package rand

import (
	"log"
	"time"
)

type GeneratorType int

const (
	// Lcg63 is a 63-bit linear congruential generator with an O(log n)
	// jump-ahead. It is the only algorithm here with the stream spacing
	// guarantees that reproducible bank synchronization relies on.
	Lcg63 GeneratorType = iota
)

const (
	lcgMult uint64 = 2806196910506780709
	lcgInc  uint64 = 1
	lcgMask uint64 = 1<<63 - 1
	lcgNorm        = 1.0 / float64(1<<63)
)

const (
	// DefaultSeed seeds runs which don't configure one.
	DefaultSeed uint64 = 1

	// DefaultStride is the sequence spacing between the streams of
	// adjacent particle indices. A single history would have to consume
	// this many draws before touching its neighbor's block.
	DefaultStride uint64 = 152917

	// MinStride rejects configurations where even a short history would
	// overrun its block.
	MinStride uint64 = 1 << 10
)

// Generator produces uniform variates from one stream of the underlying
// sequence. It is not safe for concurrent use; each particle history owns
// its own Generator.
type Generator struct {
	state uint64
	// draws consumed and the block size, for overrun detection. A limit
	// of 0 means unbounded.
	draws  uint64
	limit  uint64
	warned bool
}

// New creates a generator of the given type seeded with seed.
func New(t GeneratorType, seed uint64) *Generator {
	if t != Lcg63 {
		panic("Unrecognized generator type.")
	}
	return &Generator{state: seed & lcgMask}
}

// NewTimeSeed creates a generator of the given type seeded with the
// current time. Only useful when reproducibility doesn't matter.
func NewTimeSeed(t GeneratorType) *Generator {
	return New(t, uint64(time.Now().UnixNano()))
}

// Stream returns the generator for global particle index idx of the given
// cycle: the base generator jumped ahead by (cycle*nTarget + idx) * stride
// positions. Indices never collide across cycles because every cycle has
// exactly nTarget particles.
func Stream(t GeneratorType, seed uint64, cycle, idx, nTarget int, stride uint64) *Generator {
	gen := New(t, seed)
	n := uint64(cycle)*uint64(nTarget) + uint64(idx)
	gen.Jump(n * stride)
	gen.limit = stride
	return gen
}

// ValidStride reports whether a configured stream spacing is usable.
func ValidStride(stride uint64) bool {
	return stride >= MinStride
}

// Jump advances the generator by n positions in O(log n) using the doubling
// recurrences for g^n mod 2^63 and c*(g^n - 1)/(g - 1) mod 2^63.
func (gen *Generator) Jump(n uint64) {
	gMult, cMult := uint64(1), uint64(0)
	g, c := lcgMult, lcgInc

	n &= lcgMask
	for n > 0 {
		if n&1 == 1 {
			gMult = gMult * g & lcgMask
			cMult = (cMult*g + c) & lcgMask
		}
		c = (g + 1) * c & lcgMask
		g = g * g & lcgMask
		n >>= 1
	}

	gen.state = (gMult*gen.state + cMult) & lcgMask
}

// Next returns the next variate in [0, 1).
func (gen *Generator) Next() float64 {
	gen.state = (lcgMult*gen.state + lcgInc) & lcgMask

	gen.draws++
	if gen.limit > 0 && gen.draws >= gen.limit && !gen.warned {
		// The history has walked into its neighbor's block. There is no
		// way to recover the run's reproducibility after this point.
		log.Printf(
			"rand: stream consumed %d draws and overran its stride; "+
				"results are no longer reproducible. Increase Stride.",
			gen.draws,
		)
		gen.warned = true
	}

	return float64(gen.state) * lcgNorm
}

// Int63 returns the next variate as a non-negative 63-bit integer.
func (gen *Generator) Int63() int64 {
	gen.Next()
	return int64(gen.state)
}

// Uniform returns a variate distributed uniformly in [low, high).
func (gen *Generator) Uniform(low, high float64) float64 {
	return low + (high-low)*gen.Next()
}

// UniformInt returns an integer distributed uniformly in [low, high).
func (gen *Generator) UniformInt(low, high int) int {
	return low + int(gen.Next()*float64(high-low))
}
