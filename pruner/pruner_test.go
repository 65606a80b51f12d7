package pruner

import (
	"testing"

	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completePeerAt(number int, step int, value float64) *trial.Trial {
	tr := trial.New(number, nil)
	tr.Report(step, value)
	tr.SetComplete(value)
	return tr
}

func TestNopNeverPrunes(t *testing.T) {
	n := Nop{}
	running := trial.New(0, nil)
	running.Report(3, 100)
	assert.False(t, n.ShouldPrune(running, nil, space.Minimize))
}

func TestMedianScenarioS5(t *testing.T) {
	m := NewMedian(5, 0, 1)
	peers := []*trial.Trial{
		completePeerAt(0, 3, 1.0),
		completePeerAt(1, 3, 1.0),
		completePeerAt(2, 3, 1.0),
		completePeerAt(3, 3, 1.0),
		completePeerAt(4, 3, 1.0),
	}

	worse := trial.New(5, nil)
	worse.Report(3, 100.0)
	all := append(append([]*trial.Trial{}, peers...), worse)
	assert.True(t, m.ShouldPrune(worse, all, space.Minimize))

	better := trial.New(6, nil)
	better.Report(3, 0.5)
	all2 := append(append([]*trial.Trial{}, peers...), better)
	assert.False(t, m.ShouldPrune(better, all2, space.Minimize))
}

func TestMedianSkipsBeforeStartupThreshold(t *testing.T) {
	m := NewMedian(5, 0, 1)
	running := trial.New(0, nil)
	running.Report(1, 1000.0)
	assert.False(t, m.ShouldPrune(running, []*trial.Trial{running}, space.Minimize))
}

// TestMedianHonorsMaximizeDirection mirrors TestMedianScenarioS5 but under
// Maximize: the trial with the *lower* raw value is now the worse one and
// should be pruned, while the higher raw value survives.
func TestMedianHonorsMaximizeDirection(t *testing.T) {
	m := NewMedian(5, 0, 1)
	peers := []*trial.Trial{
		completePeerAt(0, 3, 10.0),
		completePeerAt(1, 3, 10.0),
		completePeerAt(2, 3, 10.0),
		completePeerAt(3, 3, 10.0),
		completePeerAt(4, 3, 10.0),
	}

	worse := trial.New(5, nil)
	worse.Report(3, 0.1)
	all := append(append([]*trial.Trial{}, peers...), worse)
	assert.True(t, m.ShouldPrune(worse, all, space.Maximize))

	better := trial.New(6, nil)
	better.Report(3, 20.0)
	all2 := append(append([]*trial.Trial{}, peers...), better)
	assert.False(t, m.ShouldPrune(better, all2, space.Maximize))
}

func TestPercentileRejectsOutOfRange(t *testing.T) {
	_, err := NewPercentile(1, 0, 1, 150)
	require.Error(t, err)
	_, err = NewPercentile(1, 0, 1, -1)
	require.Error(t, err)
}

func TestSuccessiveHalvingRejectsBadConfig(t *testing.T) {
	_, err := NewSuccessiveHalving(0, 2)
	require.Error(t, err)
	_, err = NewSuccessiveHalving(1, 1)
	require.Error(t, err)
}

func TestSuccessiveHalvingScenarioS16(t *testing.T) {
	sh, err := NewSuccessiveHalving(1, 2)
	require.NoError(t, err)

	peers := []*trial.Trial{
		completePeerAt(0, 1, 0.0),
		completePeerAt(1, 1, 0.5),
		completePeerAt(2, 1, 1.0),
	}

	fourth := trial.New(3, nil)
	fourth.Report(1, 1.5)
	all := append(append([]*trial.Trial{}, peers...), fourth)
	assert.True(t, sh.ShouldPrune(fourth, all, space.Minimize))
	fourth.SetPruned()

	fifth := trial.New(4, nil)
	fifth.Report(1, 0.0)
	all2 := append(append([]*trial.Trial{}, peers...), fourth, fifth)
	assert.False(t, sh.ShouldPrune(fifth, all2, space.Minimize))
}
