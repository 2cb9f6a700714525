package main

import (
	"flag"
	"log"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/xfempty/openmc/tally"
)

var (
	trace = flag.String("Trace", "keff.csv", "Cycle trace written by a run.")
	out   = flag.String("Out", "keff.png", "Output image.")
)

func main() {
	flag.Parse()

	recs, err := tally.ReadTrace(*trace)
	if err != nil {
		log.Fatal(err.Error())
	}
	if len(recs) == 0 {
		log.Fatalf("Trace %s is empty.", *trace)
	}

	cycles := make([]float64, len(recs))
	keffs := make([]float64, len(recs))
	for i, rec := range recs {
		cycles[i] = float64(rec.Cycle)
		keffs[i] = rec.Keff
	}

	var meanCycles, means []float64
	for _, rec := range recs {
		if !rec.Active {
			continue
		}
		meanCycles = append(meanCycles, float64(rec.Cycle))
		means = append(means, rec.MeanKeff)
	}

	plt.Figure()
	plt.Plot(cycles, keffs, "k", plt.LW(1))
	if len(means) > 0 {
		plt.Plot(meanCycles, means, "r", plt.LW(2))
	}
	plt.Title("k-effective by cycle")
	plt.XLabel("cycle", plt.FontSize(16))
	plt.YLabel(`$k_{\rm eff}$`, plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(*out)
	plt.Execute()
}
