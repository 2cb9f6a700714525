package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"runtime/pprof"

	"gopkg.in/gcfg.v1"

	"github.com/xfempty/openmc"
	"github.com/xfempty/openmc/bank"
	"github.com/xfempty/openmc/io"
	"github.com/xfempty/openmc/rand"
	"github.com/xfempty/openmc/source"
)

func main() {
	var (
		runStr, resumeStr  string
		exampleConfig      bool
		logPath, pprofPath string
	)

	flag.StringVar(&runStr, "Run", "",
		"Configuration file for a criticality run.")
	flag.StringVar(&resumeStr, "Resume", "",
		"Bank checkpoint to resume from. Requires -Run.")
	flag.BoolVar(&exampleConfig, "ExampleConfig", false,
		"Prints an example configuration file to stdout.")
	flag.StringVar(&logPath, "Log", "",
		"Location to write log statements to. Default is stderr.")
	flag.StringVar(&pprofPath, "PProf", "",
		"Location to write profile to. Default is no profiling.")

	flag.Parse()

	if exampleConfig {
		if runStr != "" {
			log.Fatalf("-ExampleConfig cannot be combined with -Run.")
		}
		fmt.Println(io.ExampleRunFile)
		return
	}
	if runStr == "" {
		log.Fatalf("A configuration file is required. See -ExampleConfig.")
	}

	wrap := io.DefaultRunWrapper()
	if err := gcfg.ReadFileInto(wrap, runStr); err != nil {
		log.Fatal(err.Error())
	}
	con := &wrap.Run

	if logPath == "" {
		logPath = con.LogFile
	}
	if pprofPath == "" {
		pprofPath = con.ProfileFile
	}

	if logPath != "" {
		lf, err := os.Create(logPath)
		if err != nil {
			log.Fatalln(err.Error())
		}
		log.SetOutput(lf)
		defer lf.Close()
	}
	if pprofPath != "" {
		f, err := os.Create(pprofPath)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	runMain(con, resumeStr)
}

func runMain(con *io.RunConfig, resume string) {
	tracker := &analogTracker{nuBar: con.NuBar, fissionProb: con.FissionProb}

	man, err := openmc.NewManager(con, tracker)
	if err != nil {
		log.Fatal(err.Error())
	}
	man.Log(true)

	if resume != "" {
		if err := man.Resume(resume); err != nil {
			log.Fatal(err.Error())
		}
	}

	if err := man.Run(); err != nil {
		log.Fatalf("Run failed: %s", err.Error())
	}

	mean, stdErr := man.Keff()
	log.Printf("Run %s: k-effective = %.5f +/- %.5f", man.State(), mean, stdErr)
	fmt.Printf("k-effective = %.5f +/- %.5f\n", mean, stdErr)
}

// analogTracker is a stand-in for a real transport kernel: an
// infinite-medium analog game where every history flies one free path and
// has a single collision, which fissions with probability fissionProb and
// emits a number of secondaries with mean nuBar. Its expected k equals
// nuBar * fissionProb, which makes determinism and tally checks easy to
// reason about.
type analogTracker struct {
	nuBar, fissionProb float64
}

func (t *analogTracker) Track(
	site bank.Site, gen *rand.Generator,
) ([]bank.Site, error) {
	d := -math.Log(1 - gen.Next())
	for j := 0; j < 3; j++ {
		site.X[j] += d * site.U[j]
	}

	if gen.Next() >= t.fissionProb {
		return nil, nil
	}

	nu := int(t.nuBar)
	if gen.Next() < t.nuBar-float64(nu) {
		nu++
	}

	secs := make([]bank.Site, nu)
	for i := range secs {
		secs[i] = bank.Site{
			Weight: site.Weight,
			X:      site.X,
			U:      source.IsotropicDirection(gen),
			Energy: source.DefaultEnergy,
		}
	}
	return secs, nil
}
