package pruner

import (
	"sort"

	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
)

// Median prunes a Running trial whose latest reported value exceeds the
// median of its peers' values at the same step.
type Median struct {
	NStartupTrials int
	NWarmupSteps   int
	IntervalSteps  int
}

// NewMedian constructs a Median pruner, defaulting IntervalSteps to 1 if
// unset (interval_steps <= 0 would otherwise divide every step out).
func NewMedian(nStartupTrials, nWarmupSteps, intervalSteps int) *Median {
	if intervalSteps <= 0 {
		intervalSteps = 1
	}
	return &Median{NStartupTrials: nStartupTrials, NWarmupSteps: nWarmupSteps, IntervalSteps: intervalSteps}
}

// ShouldPrune implements Pruner.
func (m *Median) ShouldPrune(t *trial.Trial, trials []*trial.Trial, direction space.Direction) bool {
	if t.State() != trial.Running {
		return false
	}
	step, ok := t.LatestStep()
	if !ok {
		return false
	}
	if step <= m.NWarmupSteps {
		return false
	}
	if step%m.IntervalSteps != 0 {
		return false
	}
	peers := completedPeersAtStep(t, trials, step, direction)
	if len(peers) < m.NStartupTrials {
		return false
	}
	med := median(peers)
	iv := t.IntermediateValues()
	cur := normalize(iv[step], direction)
	return cur > med
}

func median(xs []float64) float64 {
	cp := make([]float64, len(xs))
	copy(cp, xs)
	sort.Float64s(cp)
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}
