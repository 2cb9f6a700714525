package openmc

import (
	"errors"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xfempty/openmc/bank"
	"github.com/xfempty/openmc/io"
	"github.com/xfempty/openmc/rand"
	"github.com/xfempty/openmc/tally"
)

// splitTracker emits 0-2 secondaries per history, decided by the particle's
// own stream, so its output is a pure function of the global particle index.
// Mean multiplication is 1, which keeps the population stable.
type splitTracker struct{}

func (splitTracker) Track(
	site bank.Site, gen *rand.Generator,
) ([]bank.Site, error) {
	nu := gen.UniformInt(0, 3)
	secs := make([]bank.Site, nu)
	for i := range secs {
		s := site
		s.Energy = gen.Uniform(0.1, 2)
		secs[i] = s
	}
	return secs, nil
}

// fixedTracker emits exactly n copies of its input site.
type fixedTracker struct{ n int }

func (t fixedTracker) Track(
	site bank.Site, gen *rand.Generator,
) ([]bank.Site, error) {
	secs := make([]bank.Site, t.n)
	for i := range secs {
		secs[i] = site
	}
	return secs, nil
}

type failTracker struct{ err error }

func (t failTracker) Track(
	site bank.Site, gen *rand.Generator,
) ([]bank.Site, error) {
	return nil, t.err
}

func testConfig(nTarget, inactive, active, workers int) *io.RunConfig {
	con := &io.DefaultRunWrapper().Run
	con.NTarget = nTarget
	con.InactiveCycles = inactive
	con.ActiveCycles = active
	con.Workers = workers
	return con
}

func TestDeterminismAcrossWorkerCounts(t *testing.T) {
	run := func(workers int) ([]tally.CycleRecord, []bank.Site) {
		con := testConfig(300, 1, 5, workers)
		man, err := NewManager(con, splitTracker{})
		assert.NoError(t, err)
		assert.NoError(t, man.Run())
		final, _ := man.FinalBank()
		return man.Trace(), final
	}

	recs1, bank1 := run(1)
	recs4, bank4 := run(4)
	recs7, bank7 := run(7)

	assert.Equal(t, recs1, recs4)
	assert.Equal(t, recs1, recs7)
	assert.Equal(t, bank1, bank4)
	assert.Equal(t, bank1, bank7)
}

func TestBankSizeInvariant(t *testing.T) {
	con := testConfig(250, 0, 4, 3)
	man, err := NewManager(con, splitTracker{})
	assert.NoError(t, err)
	assert.NoError(t, man.Run())

	final, cycle := man.FinalBank()
	assert.Equal(t, 250, len(final))
	assert.Equal(t, 3, cycle)
	for i := range final {
		assert.Equal(t, int64(i), final[i].Parent)
	}
}

func TestExactlyCriticalScenario(t *testing.T) {
	// Every history produces exactly one site: the pooled bank already
	// has NTarget sites, no resampling happens, and k is exactly 1.
	con := testConfig(1000, 0, 1, 4)
	man, err := NewManager(con, fixedTracker{1})
	assert.NoError(t, err)
	assert.NoError(t, man.Run())
	assert.Equal(t, Converged, man.State())

	recs := man.Trace()
	assert.Equal(t, 1, len(recs))
	assert.Equal(t, int64(1000), recs[0].Sites)
	assert.Equal(t, 1.0, recs[0].Keff)

	final, _ := man.FinalBank()
	assert.Equal(t, 1000, len(final))
}

func TestCollapseIsFatal(t *testing.T) {
	con := testConfig(100, 0, 5, 2)
	man, err := NewManager(con, fixedTracker{0})
	assert.NoError(t, err)

	err = man.Run()
	assert.True(t, errors.Is(err, bank.ErrCollapse))
	assert.Contains(t, err.Error(), "cycle 0")
	assert.Contains(t, err.Error(), "synchronization")
	assert.Equal(t, Aborted, man.State())
	assert.Equal(t, 0, len(man.Trace()))
}

func TestRunawayGrowthIsFatal(t *testing.T) {
	con := testConfig(100, 0, 5, 2)
	man, err := NewManager(con, fixedTracker{5})
	assert.NoError(t, err)

	err = man.Run()
	assert.True(t, errors.Is(err, bank.ErrRunaway))
	assert.Contains(t, err.Error(), "cycle 0")
	assert.Equal(t, Aborted, man.State())
}

func TestTrackerErrorIsFatal(t *testing.T) {
	cause := errors.New("lost particle")
	con := testConfig(100, 0, 5, 3)
	man, err := NewManager(con, failTracker{cause})
	assert.NoError(t, err)

	err = man.Run()
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "tracking")
	assert.Equal(t, Aborted, man.State())
}

func TestExternalAbort(t *testing.T) {
	con := testConfig(100, 0, 5, 2)
	man, err := NewManager(con, splitTracker{})
	assert.NoError(t, err)

	man.Abort()
	err = man.Run()
	assert.True(t, errors.Is(err, ErrRunAborted))
	assert.Equal(t, Aborted, man.State())
}

func TestConvergenceStopsEarly(t *testing.T) {
	con := testConfig(100, 0, 50, 2)
	con.ConvergeTol = 0.5 // k is exactly 1 every cycle, so stderr is 0
	man, err := NewManager(con, fixedTracker{1})
	assert.NoError(t, err)

	assert.NoError(t, man.Run())
	assert.Equal(t, Converged, man.State())
	assert.Equal(t, minConvergeCycles, len(man.Trace()))
}

func TestResumeMatchesContinuousRun(t *testing.T) {
	chk := path.Join(t.TempDir(), "bank.chk")

	// Short run that checkpoints after cycle 2.
	conA := testConfig(200, 0, 3, 2)
	conA.CheckpointFile = chk
	manA, err := NewManager(conA, splitTracker{})
	assert.NoError(t, err)
	assert.NoError(t, manA.Run())

	// Continuous 6-cycle run, different worker count.
	conB := testConfig(200, 0, 6, 3)
	manB, err := NewManager(conB, splitTracker{})
	assert.NoError(t, err)
	assert.NoError(t, manB.Run())

	// Resumed run picks up at cycle 3 and must reproduce the continuous
	// run's remaining cycles exactly.
	conC := testConfig(200, 0, 6, 1)
	manC, err := NewManager(conC, splitTracker{})
	assert.NoError(t, err)
	assert.NoError(t, manC.Resume(chk))
	assert.NoError(t, manC.Run())

	recsB := manB.Trace()
	recsC := manC.Trace()
	assert.Equal(t, 3, len(recsC))
	for i, rec := range recsC {
		assert.Equal(t, recsB[3+i].Cycle, rec.Cycle)
		assert.Equal(t, recsB[3+i].Sites, rec.Sites)
		assert.Equal(t, recsB[3+i].Keff, rec.Keff)
	}

	finalB, _ := manB.FinalBank()
	finalC, _ := manC.FinalBank()
	assert.Equal(t, finalB, finalC)
}

func TestResumeRejectsMismatchedParameters(t *testing.T) {
	chk := path.Join(t.TempDir(), "bank.chk")

	conA := testConfig(100, 0, 1, 1)
	conA.CheckpointFile = chk
	manA, err := NewManager(conA, fixedTracker{1})
	assert.NoError(t, err)
	assert.NoError(t, manA.Run())

	conB := testConfig(100, 0, 1, 1)
	conB.BaseSeed = 99
	manB, err := NewManager(conB, fixedTracker{1})
	assert.NoError(t, err)
	assert.Error(t, manB.Resume(chk))
}

func TestTraceFileMatchesRecords(t *testing.T) {
	file := path.Join(t.TempDir(), "keff.csv")
	con := testConfig(100, 1, 3, 2)
	con.TraceFile = file

	man, err := NewManager(con, splitTracker{})
	assert.NoError(t, err)
	assert.NoError(t, man.Run())

	recs, err := tally.ReadTrace(file)
	assert.NoError(t, err)
	assert.Equal(t, man.Trace(), recs)
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	good := func() *io.RunConfig { return testConfig(100, 0, 5, 1) }

	con := good()
	con.NTarget = 0
	_, err := NewManager(con, splitTracker{})
	assert.Error(t, err)

	con = good()
	con.ActiveCycles = 0
	_, err = NewManager(con, splitTracker{})
	assert.Error(t, err)

	con = good()
	con.Stride = 7
	_, err = NewManager(con, splitTracker{})
	assert.Error(t, err)

	con = good()
	con.Workers = -2
	_, err = NewManager(con, splitTracker{})
	assert.Error(t, err)

	_, err = NewManager(good(), nil)
	assert.Error(t, err)
}

func TestSpan(t *testing.T) {
	n, parts := 1000, 7
	prev := 0
	total := 0
	for id := 0; id < parts; id++ {
		lo, hi := span(n, parts, id)
		assert.Equal(t, prev, lo)
		assert.True(t, hi >= lo)
		prev = hi
		total += hi - lo
	}
	assert.Equal(t, n, total)
}
