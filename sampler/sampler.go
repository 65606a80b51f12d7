// Package sampler implements the three search algorithms the study
// coordinator can drive: uniform Random (L6), TPE (L7) and CMA-ES (L8).
//
// Every Sampler owns its own random generator (§5: "each sampler owns its
// own [RNG]; seeded for determinism") and is stateful — it is an error to
// share one Sampler instance across multiple Studies.
package sampler

import (
	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
)

// Values is the concrete parameter assignment a Sampler proposes: range
// name to a value matching that range's variant (float64, int, or one of
// a Categorical range's choices).
type Values map[string]interface{}

// Sampler proposes the next parameter assignment given trial history, the
// per-objective optimization directions and the search space.
type Sampler interface {
	Sample(history []*trial.Trial, directions []space.Direction, sp *space.SearchSpace) (Values, error)
}

// BatchSampler is an optional extension a Sampler may implement to amortize
// shared work (e.g. TPE's sort/split/estimator-build) across N suggestions
// requested at once. inFlight holds trials already asked in this batch but
// not yet told, for samplers implementing constant-liar-style logic.
type BatchSampler interface {
	SampleBatch(history []*trial.Trial, directions []space.Direction, sp *space.SearchSpace, n int, inFlight []*trial.Trial) ([]Values, error)
}

// Disposer is implemented by samplers that own external resources (e.g. a
// GPU-backed compute Backend) that must be released when a Study is
// disposed. Dispose must be idempotent.
type Disposer interface {
	Dispose() error
}
