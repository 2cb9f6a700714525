/*package io handles the run configuration file and the binary checkpoint
format for fission banks.
*/
package io

import (
	"github.com/xfempty/openmc/rand"
)

const ExampleRunFile = `[Run]

#######################
# Required Parameters #
#######################

# Number of source sites per cycle. The fission bank is resampled to exactly
# this size at the end of every cycle.
NTarget = 10000

# Cycles contributing to the k-effective statistics.
ActiveCycles = 100

#######################
# Optional Parameters #
#######################

# Source-settling cycles run before the active ones. They drive the source
# forward but are excluded from the statistics. Default is 0.
# InactiveCycles = 20

# Seed of the base random number stream. Runs with the same seed, NTarget
# and Stride are bit-for-bit reproducible for any worker count. Default is 1.
# BaseSeed = 1

# Sequence spacing between the random streams of adjacent particles. A
# particle history must never consume this many draws. Default is 152917.
# Stride = 152917

# Number of parallel workers. Default is the number of logical cores.
# Workers = 8

# A cycle whose pooled fission bank exceeds MaxBankGrowth * NTarget sites
# aborts the run instead of exhausting memory. Default is 3.
# MaxBankGrowth = 3

# Stop early once at least 10 active cycles have run and the standard error
# of mean k-effective drops below this. Default is 0 (run all cycles).
# ConvergeTol = 0.0005

# Initial source site table: one site per line, columns
# x y z u v w energy weight. Without it the run starts from a unit-weight
# isotropic source in the unit cube.
# SourceFile = source.txt

# Per-cycle k-effective trace, as CSV.
# TraceFile = keff.csv

# Final fission bank checkpoint, sufficient to resume the run.
# CheckpointFile = bank.chk

# Mean secondaries per fission and fission probability per collision for the
# built-in infinite-medium test problem.
# NuBar = 2.43
# FissionProb = 0.4115

# Output files which are useful for profiling and debugging.
# ProfileFile = prof.out
# LogFile = log.out`

type RunConfig struct {
	// Required
	NTarget      int
	ActiveCycles int

	// Optional
	InactiveCycles int
	BaseSeed       int64
	Stride         int64
	Workers        int
	MaxBankGrowth  float64
	ConvergeTol    float64
	SourceFile     string
	TraceFile      string
	CheckpointFile string
	NuBar          float64
	FissionProb    float64

	LogFile, ProfileFile string
}

type RunWrapper struct {
	Run RunConfig
}

// DefaultRunWrapper returns a wrapper whose optional fields carry their
// defaults, ready to be filled in by gcfg.
func DefaultRunWrapper() *RunWrapper {
	con := RunConfig{}
	con.BaseSeed = int64(rand.DefaultSeed)
	con.Stride = int64(rand.DefaultStride)
	con.MaxBankGrowth = 3
	con.NuBar = 2.43
	con.FissionProb = 0.4115
	return &RunWrapper{con}
}

func (con *RunConfig) ValidNTarget() bool {
	return con.NTarget > 0
}
func (con *RunConfig) ValidCycles() bool {
	return con.ActiveCycles > 0 && con.InactiveCycles >= 0
}
func (con *RunConfig) ValidStride() bool {
	return con.Stride > 0 && rand.ValidStride(uint64(con.Stride))
}
func (con *RunConfig) ValidWorkers() bool {
	return con.Workers >= 0
}
func (con *RunConfig) ValidMaxBankGrowth() bool {
	return con.MaxBankGrowth >= 0
}
func (con *RunConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *RunConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}
