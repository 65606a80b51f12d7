package sampler

import (
	"math"

	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
	"golang.org/x/exp/rand"
)

// Random draws each dimension independently and uniformly, ignoring
// history and direction entirely (L6).
type Random struct {
	rnd *rand.Rand
}

// NewRandom constructs a Random sampler seeded by seed.
func NewRandom(seed uint64) *Random {
	return &Random{rnd: rand.New(rand.NewSource(seed))}
}

// Sample implements Sampler.
func (r *Random) Sample(_ []*trial.Trial, _ []space.Direction, sp *space.SearchSpace) (Values, error) {
	return r.sampleSpace(sp), nil
}

func (r *Random) sampleSpace(sp *space.SearchSpace) Values {
	out := make(Values, sp.Len())
	for i := 0; i < sp.Len(); i++ {
		rng := sp.ByIndex(i)
		out[rng.Name()] = r.sampleOne(rng)
	}
	return out
}

func (r *Random) sampleOne(rng space.ParameterRange) interface{} {
	switch v := rng.(type) {
	case space.Float:
		if v.Log {
			lo, hi := math.Log(v.Low), math.Log(v.High)
			return math.Exp(lo + r.rnd.Float64()*(hi-lo))
		}
		return v.Low + r.rnd.Float64()*(v.High-v.Low)
	case space.Int:
		nSteps := (v.High-v.Low)/v.Step + 1
		k := r.rnd.Intn(nSteps)
		val := v.Low + k*v.Step
		if val > v.High {
			val = v.High
		}
		return val
	case space.Categorical:
		return v.Choices[r.rnd.Intn(len(v.Choices))]
	default:
		panic("hyperopt: unknown parameter range variant")
	}
}
