package estimator

import (
	"math"

	"golang.org/x/exp/rand"
)

// Categorical is a smoothed-frequency model over K choices: each count is
// Laplace-smoothed by priorWeight/K before normalizing, so no category
// ever has zero probability (§4.5).
type Categorical struct {
	logWeights []float64 // log P(k), length K
	cumulative []float64 // cumulative P(0..k), length K, last entry == 1
}

// NewCategorical builds the estimator from observed category indices in
// [0, k) and a Laplace smoothing priorWeight.
func NewCategorical(observed []int, k int, priorWeight float64) *Categorical {
	counts := make([]float64, k)
	for _, idx := range observed {
		counts[idx] += 1
	}
	total := float64(len(observed)) + priorWeight
	smooth := priorWeight / float64(k)
	logWeights := make([]float64, k)
	cumulative := make([]float64, k)
	cum := 0.0
	for i := range counts {
		p := (counts[i] + smooth) / total
		logWeights[i] = math.Log(p)
		cum += p
		cumulative[i] = cum
	}
	// Force the final cumulative weight to exactly 1 to absorb floating
	// point drift so inverse-CDF sampling never falls through.
	if k > 0 {
		cumulative[k-1] = 1
	}
	return &Categorical{logWeights: logWeights, cumulative: cumulative}
}

// Sample draws one category index via inverse-CDF lookup over the
// cumulative weights.
func (c *Categorical) Sample(rnd *rand.Rand) int {
	u := rnd.Float64()
	for i, cum := range c.cumulative {
		if u <= cum {
			return i
		}
	}
	return len(c.cumulative) - 1
}

// LogPdf returns the precomputed log-weight of category k.
func (c *Categorical) LogPdf(k int) float64 {
	return c.logWeights[k]
}
