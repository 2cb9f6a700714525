package io

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/gcfg.v1"
)

func TestExampleRunFileParses(t *testing.T) {
	file := path.Join(t.TempDir(), "run.txt")
	assert.NoError(t, os.WriteFile(file, []byte(ExampleRunFile), 0666))

	wrap := DefaultRunWrapper()
	assert.NoError(t, gcfg.ReadFileInto(wrap, file))

	con := &wrap.Run
	assert.Equal(t, 10000, con.NTarget)
	assert.Equal(t, 100, con.ActiveCycles)

	// Commented-out optional parameters keep their defaults.
	assert.Equal(t, int64(1), con.BaseSeed)
	assert.Equal(t, int64(152917), con.Stride)
	assert.Equal(t, 3.0, con.MaxBankGrowth)
	assert.Equal(t, 0, con.Workers)

	assert.True(t, con.ValidNTarget())
	assert.True(t, con.ValidCycles())
	assert.True(t, con.ValidStride())
	assert.True(t, con.ValidWorkers())
	assert.True(t, con.ValidMaxBankGrowth())
}

func TestConfigValidation(t *testing.T) {
	con := &DefaultRunWrapper().Run
	assert.False(t, con.ValidNTarget())
	assert.False(t, con.ValidCycles())

	con.NTarget = 1000
	con.ActiveCycles = 10
	assert.True(t, con.ValidNTarget())
	assert.True(t, con.ValidCycles())

	con.Stride = 10
	assert.False(t, con.ValidStride())
	con.Stride = 152917
	assert.True(t, con.ValidStride())

	con.Workers = -1
	assert.False(t, con.ValidWorkers())
}
