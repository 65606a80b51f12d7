package sampler

import (
	"math"

	"github.com/pa-m/hyperopt/estimator"
	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
	"golang.org/x/exp/rand"
)

// TPE is the Tree-structured Parzen Estimator sampler (L7): splits
// completed trials into "good"/"bad" groups, fits a Parzen or Categorical
// estimator per dimension per group, and picks the candidate maximizing
// the log-density ratio l(x)/g(x). TPE optimizes a single scalar
// objective; for multi-objective studies it is driven against the first
// objective/direction, matching the teacher's practice of scalarizing
// onto a single comparable value (Trial.Value()) wherever a single
// ranking is required.
type TPE struct {
	NStartupTrials int
	NEICandidates  int
	PriorWeight    float64
	ConstantLiar   bool
	MagicClip      bool
	MaxAboveTrials int

	rnd    *rand.Rand
	random *Random
}

// NewTPE constructs a TPE sampler with the defaults from §4.7 and the
// given seed.
func NewTPE(seed uint64) *TPE {
	return &TPE{
		NStartupTrials: 10,
		NEICandidates:  24,
		PriorWeight:    1.0,
		ConstantLiar:   true,
		MagicClip:      true,
		MaxAboveTrials: 200,
		rnd:            rand.New(rand.NewSource(seed)),
		random:         NewRandom(seed + 1),
	}
}

func isFeasible(t *trial.Trial) bool {
	cv := t.ConstraintValues()
	if cv == nil {
		return true
	}
	for _, v := range cv {
		if v > 0 {
			return false
		}
	}
	return true
}

func violationSum(t *trial.Trial) float64 {
	sum := 0.0
	for _, v := range t.ConstraintValues() {
		if v > 0 {
			sum += v
		}
	}
	return sum
}

func gamma(f int) int {
	g := int(math.Ceil(0.1 * float64(f)))
	if g > 25 {
		g = 25
	}
	if g < 1 {
		g = 1
	}
	if g > f {
		g = f
	}
	return g
}

// split partitions completed trials into below ("good") and above ("bad")
// groups per §4.7 step 4.
func split(completed []*trial.Trial, direction space.Direction, nStartup int) (below, above []*trial.Trial) {
	feasible := make([]*trial.Trial, 0, len(completed))
	infeasible := make([]*trial.Trial, 0)
	for _, t := range completed {
		if isFeasible(t) {
			feasible = append(feasible, t)
		} else {
			infeasible = append(infeasible, t)
		}
	}

	sortByValue := func(ts []*trial.Trial) {
		sortTrials(ts, func(a, b *trial.Trial) bool {
			va, _ := a.Value()
			vb, _ := b.Value()
			if direction == space.Maximize {
				return va > vb
			}
			return va < vb
		})
	}

	if len(feasible) >= nStartup {
		sortByValue(feasible)
		g := gamma(len(feasible))
		below = feasible[:g]
		above = append(append([]*trial.Trial{}, feasible[g:]...), infeasible...)
		return below, above
	}

	all := append([]*trial.Trial{}, completed...)
	sortTrials(all, func(a, b *trial.Trial) bool { return violationSum(a) < violationSum(b) })
	g := gamma(len(all))
	below = all[:g]
	above = all[g:]
	return below, above
}

func sortTrials(ts []*trial.Trial, less func(a, b *trial.Trial) bool) {
	// insertion sort keeps the dependency surface to what trial/space
	// already expose and is plenty fast at TPE's history sizes.
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && less(ts[j], ts[j-1]); j-- {
			ts[j], ts[j-1] = ts[j-1], ts[j]
		}
	}
}

func reservoirSample(rnd *rand.Rand, ts []*trial.Trial, k int) []*trial.Trial {
	if len(ts) <= k {
		return ts
	}
	out := make([]*trial.Trial, k)
	copy(out, ts[:k])
	for i := k; i < len(ts); i++ {
		j := rnd.Intn(i + 1)
		if j < k {
			out[j] = ts[i]
		}
	}
	return out
}

// dimObservations extracts the transformed-space observations of a
// dimension from a trial group: log(x) for log-float ranges, x for
// float/int ranges, choice index for categorical ranges.
func dimObservations(ts []*trial.Trial, rng space.ParameterRange) (floats []float64, indices []int) {
	for _, t := range ts {
		params := t.Parameters()
		v, ok := params[rng.Name()]
		if !ok {
			continue
		}
		switch r := rng.(type) {
		case space.Float:
			x := v.(float64)
			if r.Log {
				x = math.Log(x)
			}
			floats = append(floats, x)
		case space.Int:
			floats = append(floats, float64(v.(int)))
		case space.Categorical:
			indices = append(indices, r.IndexOf(v))
		}
	}
	return floats, indices
}

// Sample implements Sampler.
func (tpe *TPE) Sample(history []*trial.Trial, directions []space.Direction, sp *space.SearchSpace) (Values, error) {
	out, err := tpe.sampleN(history, directions, sp, 1, nil)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// SampleBatch implements BatchSampler: the sort/split/estimator-build
// happens once and n independent EI optimizations are drawn from the same
// estimator pair, with in-flight trials folded into the above group when
// ConstantLiar is set (§4.7 "Batch optimization").
func (tpe *TPE) SampleBatch(history []*trial.Trial, directions []space.Direction, sp *space.SearchSpace, n int, inFlight []*trial.Trial) ([]Values, error) {
	return tpe.sampleN(history, directions, sp, n, inFlight)
}

func (tpe *TPE) sampleN(history []*trial.Trial, directions []space.Direction, sp *space.SearchSpace, n int, inFlight []*trial.Trial) ([]Values, error) {
	direction := space.Minimize
	if len(directions) > 0 {
		direction = directions[0]
	}

	var completed []*trial.Trial
	for _, t := range history {
		if t.State() == trial.Complete {
			if _, ok := t.Value(); ok {
				completed = append(completed, t)
			}
		}
	}

	if len(completed) < tpe.NStartupTrials {
		out := make([]Values, n)
		for i := range out {
			out[i] = tpe.random.sampleSpace(sp)
		}
		return out, nil
	}

	below, above := split(completed, direction, tpe.NStartupTrials)

	if tpe.ConstantLiar {
		for _, t := range history {
			if t.State() == trial.Running {
				above = append(above, t)
			}
		}
		above = append(above, inFlight...)
	}

	if tpe.MaxAboveTrials > 0 && len(above) > tpe.MaxAboveTrials {
		above = reservoirSample(tpe.rnd, above, tpe.MaxAboveTrials)
	}

	type dimEstimator struct {
		rng    space.ParameterRange
		belowP *estimator.Parzen
		aboveP *estimator.Parzen
		belowC *estimator.Categorical
		aboveC *estimator.Categorical
	}
	dims := make([]dimEstimator, sp.Len())
	for i := 0; i < sp.Len(); i++ {
		rng := sp.ByIndex(i)
		de := dimEstimator{rng: rng}
		switch r := rng.(type) {
		case space.Float:
			low, high := r.Low, r.High
			if r.Log {
				low, high = math.Log(low), math.Log(high)
			}
			bf, _ := dimObservations(below, rng)
			af, _ := dimObservations(above, rng)
			de.belowP = estimator.NewParzen(bf, low, high, tpe.PriorWeight, tpe.MagicClip)
			de.aboveP = estimator.NewParzen(af, low, high, tpe.PriorWeight, tpe.MagicClip)
		case space.Int:
			bf, _ := dimObservations(below, rng)
			af, _ := dimObservations(above, rng)
			de.belowP = estimator.NewParzen(bf, float64(r.Low), float64(r.High), tpe.PriorWeight, tpe.MagicClip)
			de.aboveP = estimator.NewParzen(af, float64(r.Low), float64(r.High), tpe.PriorWeight, tpe.MagicClip)
		case space.Categorical:
			_, bi := dimObservations(below, rng)
			_, ai := dimObservations(above, rng)
			de.belowC = estimator.NewCategorical(bi, len(r.Choices), tpe.PriorWeight)
			de.aboveC = estimator.NewCategorical(ai, len(r.Choices), tpe.PriorWeight)
		}
		dims[i] = de
	}

	out := make([]Values, n)
	for trialIdx := range out {
		vals := make(Values, sp.Len())
		for i := 0; i < sp.Len(); i++ {
			de := dims[i]
			switch r := de.rng.(type) {
			case space.Float:
				x := tpe.bestEICandidate(de.belowP, de.aboveP)
				if r.Log {
					x = math.Exp(x)
				}
				vals[r.Name()] = x
			case space.Int:
				x := tpe.bestEICandidate(de.belowP, de.aboveP)
				vals[r.Name()] = r.ClampStep(x)
			case space.Categorical:
				k := tpe.bestEICandidateCategorical(de.belowC, de.aboveC)
				vals[r.Name()] = r.Choices[k]
			}
		}
		out[trialIdx] = vals
	}
	return out, nil
}

func (tpe *TPE) bestEICandidate(below, above *estimator.Parzen) float64 {
	candidates := below.Sample(tpe.rnd, tpe.NEICandidates)
	bestScore := math.Inf(-1)
	best := candidates[0]
	for _, x := range candidates {
		score := below.LogPdf([]float64{x})[0] - above.LogPdf([]float64{x})[0]
		if score > bestScore {
			bestScore = score
			best = x
		}
	}
	return best
}

func (tpe *TPE) bestEICandidateCategorical(below, above *estimator.Categorical) int {
	bestScore := math.Inf(-1)
	best := 0
	for i := 0; i < tpe.NEICandidates; i++ {
		c := below.Sample(tpe.rnd)
		score := below.LogPdf(c) - above.LogPdf(c)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}
