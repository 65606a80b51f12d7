// Package estimator implements the two density estimators the TPE sampler
// fits per search-space dimension: a Parzen (mixture-of-truncated-Gaussians)
// estimator over continuous dimensions (§4.4) and a smoothed-frequency
// categorical estimator (§4.5).
package estimator

import (
	"math"
	"sort"

	"github.com/pa-m/hyperopt/numerics"
	"golang.org/x/exp/rand"
)

// minBandwidth is the absolute floor every component bandwidth is raised
// to, regardless of magicClip, to avoid singular (zero-width) components.
const minBandwidth = 1e-12

// Parzen is a mixture of truncated-Gaussian kernels (one per observation)
// plus a uniform prior component, over an interval [Low, High]. It is the
// KDE Bergstra et al. (2011) use for TPE's "below"/"above" groups, with
// Optuna's magic-clip minimum-bandwidth rule.
type Parzen struct {
	Low, High float64

	mus      []float64
	sigmas   []float64
	weights  []float64 // len(mus)+1; last entry is the uniform prior's weight
	logPrior float64   // log(w_prior) - log(high-low), precomputed
}

// NewParzen builds the mixture over observations (not required to be
// sorted; they are sorted internally so bandwidths can use nearest
// neighbors). priorWeight must be > 0 for LogPdf to stay finite everywhere
// on [low, high] (property 7 in §8).
func NewParzen(observations []float64, low, high, priorWeight float64, magicClip bool) *Parzen {
	n := len(observations)
	obs := make([]float64, n)
	copy(obs, observations)
	sort.Float64s(obs)

	sigmas := make([]float64, n)
	for i := range obs {
		left := low
		if i > 0 {
			left = obs[i-1]
		}
		right := high
		if i < n-1 {
			right = obs[i+1]
		}
		d := math.Max(obs[i]-left, right-obs[i])
		if n == 1 {
			d = high - low
		}
		sigmas[i] = d
	}
	if magicClip {
		floor := (high - low) / math.Min(100, float64(1+n))
		for i := range sigmas {
			if sigmas[i] < floor {
				sigmas[i] = floor
			}
		}
	}
	for i := range sigmas {
		if sigmas[i] < minBandwidth {
			sigmas[i] = minBandwidth
		}
	}

	weights := make([]float64, n+1)
	total := float64(n) + priorWeight
	for i := range obs {
		weights[i] = 1 / total
	}
	priorW := priorWeight / total
	weights[n] = priorW

	return &Parzen{
		Low: low, High: high,
		mus: obs, sigmas: sigmas, weights: weights,
		logPrior: math.Log(priorW) - math.Log(high-low),
	}
}

// Sample draws count values from the mixture using rnd. Each draw first
// picks a component by cumulative weight, then samples from it: a
// truncated normal for an observation component, uniform for the prior.
func (p *Parzen) Sample(rnd *rand.Rand, count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = p.sampleOne(rnd)
	}
	return out
}

func (p *Parzen) sampleOne(rnd *rand.Rand) float64 {
	u := rnd.Float64()
	cum := 0.0
	for i, w := range p.weights {
		cum += w
		if u <= cum || i == len(p.weights)-1 {
			if i == len(p.mus) {
				return p.Low + rnd.Float64()*(p.High-p.Low)
			}
			return numerics.TruncatedNormalSample(rnd.Float64(), p.mus[i], p.sigmas[i], p.Low, p.High)
		}
	}
	// Unreachable given weights sum to 1, but keep a safe fallback.
	return p.Low + rnd.Float64()*(p.High-p.Low)
}

// LogPdf returns the mixture's log-density at each value in xs.
func (p *Parzen) LogPdf(xs []float64) []float64 {
	out := make([]float64, len(xs))
	comps := make([]float64, len(p.mus)+1)
	for i, x := range xs {
		for j := range p.mus {
			comps[j] = math.Log(p.weights[j]) + numerics.TruncatedNormalLogPDF(x, p.mus[j], p.sigmas[j], p.Low, p.High)
		}
		if x < p.Low || x > p.High {
			comps[len(p.mus)] = math.Inf(-1)
		} else {
			comps[len(p.mus)] = p.logPrior
		}
		out[i] = numerics.LogSumExp(comps)
	}
	return out
}
