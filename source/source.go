/*package source builds the initial source bank a run starts from, either
from a site table on disk or from a built-in uniform distribution.
*/
package source

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/table"

	"github.com/xfempty/openmc/bank"
	"github.com/xfempty/openmc/rand"
)

// ReadSites reads an initial source from a whitespace-separated site table
// with the columns x y z u v w energy weight. Directions are normalized on
// load and parent indices are assigned in row order.
func ReadSites(file string) ([]bank.Site, error) {
	xCol, yCol, zCol := 0, 1, 2
	uCol, vCol, wCol := 3, 4, 5
	eCol, wtCol := 6, 7

	colIdxs := []int{xCol, yCol, zCol, uCol, vCol, wCol, eCol, wtCol}
	cols, err := table.ReadTable(file, colIdxs, nil)
	if err != nil {
		return nil, err
	}

	sites := make([]bank.Site, len(cols[0]))
	for i := range sites {
		s := &sites[i]
		s.X = [3]float64{cols[0][i], cols[1][i], cols[2][i]}
		s.U = [3]float64{cols[3][i], cols[4][i], cols[5][i]}
		s.Energy = cols[6][i]
		s.Weight = cols[7][i]
		s.Parent = int64(i)

		norm := math.Sqrt(s.U[0]*s.U[0] + s.U[1]*s.U[1] + s.U[2]*s.U[2])
		if norm < 1e-12 {
			return nil, fmt.Errorf(
				"%s: site %d has a zero direction vector", file, i,
			)
		}
		for j := 0; j < 3; j++ {
			s.U[j] /= norm
		}

		if !(s.Weight > 0) {
			return nil, fmt.Errorf(
				"%s: site %d has non-positive weight %g", file, i, s.Weight,
			)
		}
		if !(s.Energy > 0) {
			return nil, fmt.Errorf(
				"%s: site %d has non-positive energy %g", file, i, s.Energy,
			)
		}
	}
	return sites, nil
}

// DefaultEnergy is the energy assigned to built-in source sites, in MeV.
const DefaultEnergy = 1.0

// Uniform returns n unit-weight sites with positions distributed uniformly
// over the unit cube centered on the origin and isotropic directions. The
// same seed always yields the same sites.
func Uniform(n int, seed uint64) []bank.Site {
	gen := rand.New(rand.Lcg63, seed)

	sites := make([]bank.Site, n)
	for i := range sites {
		s := &sites[i]
		s.Weight = 1
		s.Energy = DefaultEnergy
		s.Parent = int64(i)
		for j := 0; j < 3; j++ {
			s.X[j] = gen.Uniform(-0.5, 0.5)
		}
		s.U = IsotropicDirection(gen)
	}
	return sites
}
