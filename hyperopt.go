// Package hyperopt is the thin facade matching §6's Library API:
// CreateStudy, CreateMultiObjectiveStudy and LoadStudy, plus re-exports
// of the leaf types (Direction, the ParameterRange variants, trial
// State) so a caller driving the ask/tell loop never needs to import
// every subpackage directly.
package hyperopt

import (
	"github.com/pa-m/hyperopt/pruner"
	"github.com/pa-m/hyperopt/sampler"
	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/study"
	"github.com/pa-m/hyperopt/trial"
)

// Re-exported leaf types, so `import "github.com/pa-m/hyperopt"` alone
// covers the common ask/tell loop.
type (
	Direction       = space.Direction
	ParameterRange  = space.ParameterRange
	Float           = space.Float
	Int             = space.Int
	Categorical     = space.Categorical
	SearchSpace     = space.SearchSpace
	Trial           = trial.Trial
	State           = trial.State
	Values          = sampler.Values
	Sampler         = sampler.Sampler
	Pruner          = pruner.Pruner
	ConstraintFunc  = study.ConstraintFunc
	Study           = study.Study
	Option          = study.Option
)

const (
	Minimize = space.Minimize
	Maximize = space.Maximize
)

const (
	Running  = trial.Running
	Complete = trial.Complete
	Fail     = trial.Fail
	Pruned   = trial.Pruned
)

// NewSearchSpace validates and constructs a SearchSpace from ranges.
func NewSearchSpace(ranges ...ParameterRange) (*SearchSpace, error) {
	return space.New(ranges...)
}

// CreateStudy constructs a single-objective Study (§6 "create_study").
// direction defaults to Minimize when unset; smp defaults to a
// freshly-seeded sampler.Random; pr defaults to pruner.Nop. warmStart, if
// given, supplies pre-existing Complete trials to import (§4.11 "Warm
// start").
func CreateStudy(name string, sp *SearchSpace, direction *Direction, smp Sampler, pr Pruner, warmStart []*Trial, opts ...Option) (st *Study, err error) {
	d := space.Minimize
	if direction != nil {
		d = *direction
	}
	if smp == nil {
		smp = sampler.NewRandom(defaultSeed(name))
	}
	return safeNew(func() *Study {
		return study.New(name, sp, []space.Direction{d}, smp, pr, false, warmStart, opts...)
	})
}

// CreateMultiObjectiveStudy constructs a multi-objective Study (§6
// "create_multi_objective_study"). directions must be non-empty.
func CreateMultiObjectiveStudy(name string, sp *SearchSpace, directions []Direction, smp Sampler, pr Pruner, warmStart []*Trial, opts ...Option) (st *Study, err error) {
	if smp == nil {
		smp = sampler.NewRandom(defaultSeed(name))
	}
	return safeNew(func() *Study {
		return study.New(name, sp, directions, smp, pr, true, warmStart, opts...)
	})
}

// LoadStudy reconstructs a study previously written by Study.Save,
// replaying its Complete/Pruned trials against sp and smp (§6
// "load_study(path, space, sampler)").
func LoadStudy(path string, sp *SearchSpace, smp Sampler, opts ...Option) (*Study, error) {
	return study.LoadStudy(path, sp, smp, opts...)
}

// defaultSeed derives a stable seed from the study name so CreateStudy
// without an explicit sampler is still deterministic run-to-run, per the
// Determinism contract (§6) — callers wanting a different seed should
// construct their own sampler.Random/TPE/CMAES and pass it in.
func defaultSeed(name string) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return h
}

// safeNew turns study.New's construction-time panics (§7 "Construction
// errors ... surface immediately at construction time") into an error,
// the shape CreateStudy/CreateMultiObjectiveStudy expose.
func safeNew(fn func() *Study) (st *Study, err error) {
	defer func() {
		if r := recover(); r != nil {
			st = nil
			err = &ConstructionError{Reason: r}
		}
	}()
	return fn(), nil
}

// ConstructionError wraps a study.New construction-time panic as an
// error value for CreateStudy/CreateMultiObjectiveStudy's callers.
type ConstructionError struct {
	Reason interface{}
}

func (e *ConstructionError) Error() string {
	return "hyperopt: study construction failed: " + errString(e.Reason)
}

func errString(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown error"
}
