package study

import (
	"testing"

	"github.com/pa-m/hyperopt/pruner"
	"github.com/pa-m/hyperopt/sampler"
	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatSpace(t *testing.T) *space.SearchSpace {
	t.Helper()
	sp, err := space.New(space.Float{NameValue: "x", Low: -10, High: 10})
	require.NoError(t, err)
	return sp
}

// TestStudyScenarioS1ConvergesOnSquaredError drives a random sampler on
// (x-3)^2 for 100 trials (S1: "something in the right neighborhood").
func TestStudyScenarioS1ConvergesOnSquaredError(t *testing.T) {
	sp := floatSpace(t)
	s := New("s1", sp, []space.Direction{space.Minimize}, sampler.NewRandom(7), pruner.Nop{}, false, nil)

	for i := 0; i < 100; i++ {
		tr, err := s.Ask()
		require.NoError(t, err)
		x := tr.Parameters()["x"].(float64)
		require.NoError(t, s.Tell(tr.Number(), (x-3)*(x-3)))
	}

	best, ok := s.BestTrial()
	require.True(t, ok)
	x := best.Parameters()["x"].(float64)
	assert.InDelta(t, 3.0, x, 3.0)
}

// TestStudyTrialNumberingIsGapless checks the universal invariant that
// trial numbers are 0..n-1 in ask order (§8).
func TestStudyTrialNumberingIsGapless(t *testing.T) {
	sp := floatSpace(t)
	s := New("numbering", sp, []space.Direction{space.Minimize}, sampler.NewRandom(1), nil, false, nil)
	for i := 0; i < 10; i++ {
		tr, err := s.Ask()
		require.NoError(t, err)
		assert.Equal(t, i, tr.Number())
	}
}

// TestStudyTellUnknownNumberErrors covers the §7 contract-violation:
// unknown trial numbers fail tell.
func TestStudyTellUnknownNumberErrors(t *testing.T) {
	sp := floatSpace(t)
	s := New("unknown", sp, []space.Direction{space.Minimize}, sampler.NewRandom(1), nil, false, nil)
	err := s.Tell(0, 1.0)
	assert.ErrorIs(t, err, ErrUnknownTrial)
}

// TestStudyDoubleTellErrors covers the §7 contract-violation: telling a
// terminal trial again is an error, and the original state survives.
func TestStudyDoubleTellErrors(t *testing.T) {
	sp := floatSpace(t)
	s := New("double-tell", sp, []space.Direction{space.Minimize}, sampler.NewRandom(1), nil, false, nil)
	tr, err := s.Ask()
	require.NoError(t, err)
	require.NoError(t, s.Tell(tr.Number(), 1.0))

	err = s.Tell(tr.Number(), 2.0)
	assert.ErrorIs(t, err, ErrNotRunning)
	v, ok := tr.Value()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

// TestStudyScenarioS4ConstraintFeasibility exercises set_constraint_function
// and is_feasible (S4): the constraint is a function of the objective
// value itself (value - 5), so a trial told a value above threshold comes
// back infeasible.
func TestStudyScenarioS4ConstraintFeasibility(t *testing.T) {
	sp := floatSpace(t)
	s := New("s4", sp, []space.Direction{space.Minimize}, sampler.NewRandom(3), nil, false, nil)
	s.SetConstraintFunction(func(tr *trial.Trial) ([]float64, error) {
		v, _ := tr.Value()
		return []float64{v - 5}, nil // feasible iff value <= 5
	})

	ok, err := s.Ask()
	require.NoError(t, err)
	require.NoError(t, s.Tell(ok.Number(), 1.0))
	assert.True(t, IsFeasible(ok))

	bad, err := s.Ask()
	require.NoError(t, err)
	require.NoError(t, s.Tell(bad.Number(), 10.0))
	assert.False(t, IsFeasible(bad))
}

// TestStudyConstraintFunctionErrorLeavesTrialRunning checks the
// deliberate §7 design choice: a failing constraint function leaves the
// trial Running so the caller can retry.
func TestStudyConstraintFunctionErrorLeavesTrialRunning(t *testing.T) {
	sp := floatSpace(t)
	s := New("constraint-error", sp, []space.Direction{space.Minimize}, sampler.NewRandom(2), nil, false, nil)
	boom := assertError("boom")
	s.SetConstraintFunction(func(tr *trial.Trial) ([]float64, error) {
		return nil, boom
	})

	tr, err := s.Ask()
	require.NoError(t, err)
	err = s.Tell(tr.Number(), 1.0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, trial.Running, tr.State())
}

type assertError string

func (e assertError) Error() string { return string(e) }

// TestStudyMultiObjectiveParetoFrontMatchesScenarioS3 drives a real
// multi-objective Study through the S3 tells and checks the resulting
// pareto_front size and membership.
func TestStudyMultiObjectiveParetoFrontMatchesScenarioS3(t *testing.T) {
	sp := floatSpace(t)
	dirs := []space.Direction{space.Minimize, space.Minimize}
	s := New("s3", sp, dirs, sampler.NewRandom(9), nil, true, nil)

	values := [][]float64{{1, 5}, {2, 3}, {4, 1}}
	for _, v := range values {
		tr, err := s.Ask()
		require.NoError(t, err)
		require.NoError(t, s.TellVector(tr.Number(), v))
	}

	front := s.ParetoFront()
	assert.Len(t, front, 3)
}

// TestStudyShouldPruneDispatchesToPruner exercises should_prune end to
// end through a real Study (mirroring S5's median-pruner shape).
func TestStudyShouldPruneDispatchesToPruner(t *testing.T) {
	sp := floatSpace(t)
	med := pruner.NewMedian(5, 0, 1)
	s := New("s5", sp, []space.Direction{space.Minimize}, sampler.NewRandom(4), med, false, nil)

	var peers []*trial.Trial
	for i := 0; i < 5; i++ {
		tr, err := s.Ask()
		require.NoError(t, err)
		require.NoError(t, s.Report(tr.Number(), 3, 1.0))
		require.NoError(t, s.Tell(tr.Number(), 1.0))
		peers = append(peers, tr)
	}
	_ = peers

	worse, err := s.Ask()
	require.NoError(t, err)
	require.NoError(t, s.Report(worse.Number(), 3, 100.0))
	prune, err := s.ShouldPrune(worse.Number())
	require.NoError(t, err)
	assert.True(t, prune)
}

// TestStudyWarmStartImportsOnlyCompleteRenumbered covers §4.11 "Warm
// start": only Complete trials import, renumbered 0..k-1.
func TestStudyWarmStartImportsOnlyCompleteRenumbered(t *testing.T) {
	sp := floatSpace(t)
	done := trial.New(5, map[string]interface{}{"x": 1.0})
	done.SetComplete(2.0)
	running := trial.New(6, map[string]interface{}{"x": 2.0})
	warm := []*trial.Trial{done, running}

	s := New("warm", sp, []space.Direction{space.Minimize}, sampler.NewRandom(1), nil, false, warm)
	trials := s.Trials()
	require.Len(t, trials, 1)
	assert.Equal(t, 0, trials[0].Number())
	v, ok := trials[0].Value()
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestStudyDisposeIsIdempotent(t *testing.T) {
	sp := floatSpace(t)
	s := New("dispose", sp, []space.Direction{space.Minimize}, sampler.NewRandom(1), nil, false, nil)
	require.NoError(t, s.Dispose())
	require.NoError(t, s.Dispose())
	_, err := s.Ask()
	assert.ErrorIs(t, err, ErrStudyDisposed)
}

func TestStudyConstructorPanicsOnDirectionCountMismatch(t *testing.T) {
	sp := floatSpace(t)
	assert.Panics(t, func() {
		New("bad", sp, []space.Direction{space.Minimize, space.Maximize}, sampler.NewRandom(1), nil, false, nil)
	})
}
