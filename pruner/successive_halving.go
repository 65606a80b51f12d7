package pruner

import (
	"fmt"
	"math"
	"sort"

	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
)

// SuccessiveHalving implements an asynchronous successive-halving /
// Hyperband-style rung schedule: at resource level min_resource * eta^k,
// only the top 1/eta fraction of the cohort that reached that rung
// survives.
type SuccessiveHalving struct {
	MinResource     int
	ReductionFactor float64
}

// NewSuccessiveHalving constructs the pruner; reductionFactor <= 1 is
// rejected at construction (§4.9, §7).
func NewSuccessiveHalving(minResource int, reductionFactor float64) (*SuccessiveHalving, error) {
	if minResource < 1 {
		return nil, fmt.Errorf("hyperopt: successive halving: min_resource must be >= 1, got %v", minResource)
	}
	if reductionFactor <= 1 {
		return nil, fmt.Errorf("hyperopt: successive halving: reduction_factor must be > 1, got %v", reductionFactor)
	}
	return &SuccessiveHalving{MinResource: minResource, ReductionFactor: reductionFactor}, nil
}

// rung returns the rung index for resource step s.
func (sh *SuccessiveHalving) rung(s int) int {
	if s <= sh.MinResource {
		return 0
	}
	return int(math.Log(float64(s)/float64(sh.MinResource)) / math.Log(sh.ReductionFactor))
}

// rungResource returns the resource level of rung k.
func (sh *SuccessiveHalving) rungResource(k int) int {
	return int(math.Round(float64(sh.MinResource) * math.Pow(sh.ReductionFactor, float64(k))))
}

// ShouldPrune implements Pruner.
func (sh *SuccessiveHalving) ShouldPrune(t *trial.Trial, trials []*trial.Trial, direction space.Direction) bool {
	if t.State() != trial.Running {
		return false
	}
	step, ok := t.LatestStep()
	if !ok {
		return false
	}
	k := sh.rung(step)
	rk := sh.rungResource(k)
	iv := t.IntermediateValues()
	rawCurVal, ok := iv[rk]
	if !ok {
		return false
	}
	curVal := normalize(rawCurVal, direction)

	type entry struct {
		value float64
		self  bool
	}
	var cohort []entry
	for _, other := range trials {
		if other.State() != trial.Complete {
			continue
		}
		oLatest, ok := other.LatestStep()
		if !ok {
			continue
		}
		if sh.rung(oLatest) < k {
			continue
		}
		oiv := other.IntermediateValues()
		v, ok := oiv[rk]
		if !ok {
			continue
		}
		cohort = append(cohort, entry{value: normalize(v, direction), self: other == t})
	}
	cohort = append(cohort, entry{value: curVal, self: true})

	sort.SliceStable(cohort, func(i, j int) bool { return cohort[i].value < cohort[j].value })
	survivors := int(math.Ceil(float64(len(cohort)) / sh.ReductionFactor))

	for i, e := range cohort {
		if e.self {
			return i >= survivors
		}
	}
	return false
}
