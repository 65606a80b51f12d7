package pruner

import (
	"fmt"
	"math"
	"sort"

	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
)

// Percentile prunes a Running trial whose latest reported value exceeds
// the Percentile-th quantile of its peers' values at the same step. The
// quantile is an observed peer value (no interpolation), so with
// Percentile=50 and an even peer count it is the lower middle value,
// where Median averages the two middle values.
type Percentile struct {
	NStartupTrials int
	NWarmupSteps   int
	IntervalSteps  int
	Pct            float64 // in [0, 100]
}

// NewPercentile constructs a Percentile pruner; pct outside [0, 100] is
// rejected at construction (§4.9, §7 "Construction errors").
func NewPercentile(nStartupTrials, nWarmupSteps, intervalSteps int, pct float64) (*Percentile, error) {
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("hyperopt: percentile pruner: pct must be in [0, 100], got %v", pct)
	}
	if intervalSteps <= 0 {
		intervalSteps = 1
	}
	return &Percentile{NStartupTrials: nStartupTrials, NWarmupSteps: nWarmupSteps, IntervalSteps: intervalSteps, Pct: pct}, nil
}

// ShouldPrune implements Pruner.
func (p *Percentile) ShouldPrune(t *trial.Trial, trials []*trial.Trial, direction space.Direction) bool {
	if t.State() != trial.Running {
		return false
	}
	step, ok := t.LatestStep()
	if !ok {
		return false
	}
	if step <= p.NWarmupSteps {
		return false
	}
	if step%p.IntervalSteps != 0 {
		return false
	}
	peers := completedPeersAtStep(t, trials, step, direction)
	if len(peers) < p.NStartupTrials {
		return false
	}
	q := quantile(peers, p.Pct)
	iv := t.IntermediateValues()
	cur := normalize(iv[step], direction)
	return cur > q
}

func quantile(xs []float64, pct float64) float64 {
	cp := make([]float64, len(xs))
	copy(cp, xs)
	sort.Float64s(cp)
	m := len(cp)
	idx := int(math.Ceil(pct/100*float64(m))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= m {
		idx = m - 1
	}
	return cp[idx]
}
