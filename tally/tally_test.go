package tally

import (
	"math"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInactiveCyclesAreExcluded(t *testing.T) {
	acc := NewAccumulator(2)

	r0 := acc.Add(0, 900, 0.9)
	r1 := acc.Add(1, 950, 0.95)
	assert.False(t, r0.Active)
	assert.False(t, r1.Active)
	assert.Equal(t, 0, acc.Active())
	assert.True(t, math.IsNaN(acc.Mean()))

	r2 := acc.Add(2, 1000, 1.0)
	assert.True(t, r2.Active)
	assert.Equal(t, 1, acc.Active())
	assert.Equal(t, 1.0, acc.Mean())
	assert.Equal(t, 0.0, acc.StdErr())
}

func TestRunningStatistics(t *testing.T) {
	acc := NewAccumulator(0)
	keffs := []float64{0.98, 1.02, 1.0, 1.04}
	for i, k := range keffs {
		acc.Add(i, 1000, k)
	}

	assert.InDelta(t, 1.01, acc.Mean(), 1e-12)
	// Sample variance of {0.98, 1.02, 1.0, 1.04} is 0.000666...
	assert.InDelta(t, 0.02/30.0, acc.Variance(), 1e-12)
	assert.InDelta(t, math.Sqrt(0.02/30.0/4.0), acc.StdErr(), 1e-12)
	assert.Equal(t, 4, len(acc.Records()))
}

func TestTraceRoundTrip(t *testing.T) {
	file := path.Join(t.TempDir(), "keff.csv")

	w, err := NewWriter(file)
	assert.NoError(t, err)

	acc := NewAccumulator(1)
	assert.NoError(t, w.Write(acc.Add(0, 900, 0.9)))
	assert.NoError(t, w.Write(acc.Add(1, 1000, 1.0)))
	assert.NoError(t, w.Write(acc.Add(2, 1100, 1.1)))
	assert.NoError(t, w.Close())

	recs, err := ReadTrace(file)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(recs))
	assert.Equal(t, acc.Records(), recs)
}
