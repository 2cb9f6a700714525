package source

import (
	"math"

	"github.com/xfempty/openmc/rand"
)

// IsotropicDirection draws a unit vector distributed isotropically over the
// sphere: uniform polar cosine, uniform azimuth. Two draws per call.
func IsotropicDirection(gen *rand.Generator) [3]float64 {
	mu := gen.Uniform(-1, 1)
	phi := gen.Uniform(0, 2*math.Pi)

	sin := math.Sqrt(1 - mu*mu)
	return [3]float64{sin * math.Cos(phi), sin * math.Sin(phi), mu}
}
