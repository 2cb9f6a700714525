package source

import (
	"math"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xfempty/openmc/rand"
)

func writeTable(t *testing.T, text string) string {
	t.Helper()
	file := path.Join(t.TempDir(), "source.txt")
	assert.NoError(t, os.WriteFile(file, []byte(text), 0666))
	return file
}

func TestReadSites(t *testing.T) {
	file := writeTable(t,
		"# x y z u v w energy weight\n"+
			"0 0 0  0 0 1  2.5 1\n"+
			"1 2 3  3 4 0  1.0 0.5\n",
	)

	sites, err := ReadSites(file)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(sites))

	assert.Equal(t, [3]float64{0, 0, 1}, sites[0].U)
	assert.Equal(t, 2.5, sites[0].Energy)
	assert.Equal(t, int64(0), sites[0].Parent)

	// The second direction is normalized on load.
	assert.InDelta(t, 0.6, sites[1].U[0], 1e-12)
	assert.InDelta(t, 0.8, sites[1].U[1], 1e-12)
	assert.Equal(t, [3]float64{1, 2, 3}, sites[1].X)
	assert.Equal(t, 0.5, sites[1].Weight)
	assert.Equal(t, int64(1), sites[1].Parent)
}

func TestReadSitesRejectsZeroDirection(t *testing.T) {
	file := writeTable(t, "0 0 0  0 0 0  1 1\n")
	_, err := ReadSites(file)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "direction")
}

func TestReadSitesRejectsBadWeight(t *testing.T) {
	file := writeTable(t, "0 0 0  0 0 1  1 -2\n")
	_, err := ReadSites(file)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "weight")
}

func TestUniformIsDeterministic(t *testing.T) {
	a := Uniform(100, 7)
	b := Uniform(100, 7)
	assert.Equal(t, a, b)

	c := Uniform(100, 8)
	assert.NotEqual(t, a, c)
}

func TestUniformSitesAreValid(t *testing.T) {
	sites := Uniform(200, 1)
	for i, s := range sites {
		norm := math.Sqrt(s.U[0]*s.U[0] + s.U[1]*s.U[1] + s.U[2]*s.U[2])
		assert.InDelta(t, 1.0, norm, 1e-12, "site %d", i)
		assert.Equal(t, 1.0, s.Weight)
		assert.Equal(t, int64(i), s.Parent)
		for j := 0; j < 3; j++ {
			assert.True(t, s.X[j] >= -0.5 && s.X[j] < 0.5)
		}
	}
}

func TestIsotropicDirectionUnitNorm(t *testing.T) {
	gen := rand.New(rand.Lcg63, 3)
	for i := 0; i < 1000; i++ {
		u := IsotropicDirection(gen)
		norm := math.Sqrt(u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
		assert.InDelta(t, 1.0, norm, 1e-12, "draw %d", i)
	}
}
