package sampler

import (
	"testing"

	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tpeSpace(t *testing.T) *space.SearchSpace {
	t.Helper()
	sp, err := space.New(space.Float{NameValue: "x", Low: -10, High: 10})
	require.NoError(t, err)
	return sp
}

// TestTPEFallsBackToRandomDuringStartup checks that before NStartupTrials
// completed trials exist, Sample behaves like uniform random sampling.
func TestTPEFallsBackToRandomDuringStartup(t *testing.T) {
	sp := tpeSpace(t)
	tpe := NewTPE(1)
	tpe.NStartupTrials = 5

	vals, err := tpe.Sample(nil, []space.Direction{space.Minimize}, sp)
	require.NoError(t, err)
	x := vals["x"].(float64)
	assert.GreaterOrEqual(t, x, -10.0)
	assert.LessOrEqual(t, x, 10.0)
}

// TestTPEConcentratesAroundGoodRegionAfterStartup drives TPE with completed
// trials on (x-2)^2 and checks that the average of 30 suggestions lies
// within 6 of the optimum at 2.
func TestTPEConcentratesAroundGoodRegionAfterStartup(t *testing.T) {
	sp := tpeSpace(t)
	tpe := NewTPE(3)
	tpe.NStartupTrials = 10

	var history []*trial.Trial
	xs := []float64{-9, -7, -5, -3, -1, 1, 2, 2.1, 1.9, 2.2, 8, 9}
	for i, x := range xs {
		tr := trial.New(i, map[string]interface{}{"x": x})
		tr.SetComplete((x - 2) * (x - 2))
		history = append(history, tr)
	}

	sum := 0.0
	n := 30
	for i := 0; i < n; i++ {
		vals, err := tpe.Sample(history, []space.Direction{space.Minimize}, sp)
		require.NoError(t, err)
		sum += vals["x"].(float64)
	}
	avg := sum / float64(n)
	assert.InDelta(t, 2.0, avg, 6.0)
}

func TestTPESampleBatchReturnsNIndependentValues(t *testing.T) {
	sp := tpeSpace(t)
	tpe := NewTPE(5)
	tpe.NStartupTrials = 3

	var history []*trial.Trial
	for i, x := range []float64{-1, 0, 1, 2} {
		tr := trial.New(i, map[string]interface{}{"x": x})
		tr.SetComplete(x * x)
		history = append(history, tr)
	}

	out, err := tpe.SampleBatch(history, []space.Direction{space.Minimize}, sp, 4, nil)
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestTPESplitPutsConstraintInfeasibleTrialsAboveWhenEnoughFeasible(t *testing.T) {
	var completed []*trial.Trial
	for i, x := range []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10} {
		tr := trial.New(i, map[string]interface{}{"x": x})
		tr.SetComplete(x)
		completed = append(completed, tr)
	}
	infeasible := trial.New(100, map[string]interface{}{"x": -1.0})
	infeasible.SetComplete(-1.0)
	infeasible.SetConstraintValues([]float64{1})
	completed = append(completed, infeasible)

	below, above := split(completed, space.Minimize, 10)
	require.NotEmpty(t, below)
	found := false
	for _, tr := range above {
		if tr.Number() == 100 {
			found = true
		}
	}
	assert.True(t, found)
}
