// Package study implements the Study coordinator (L11): thread-safe
// ask/tell, trial numbering, constraint evaluation, best-trial and
// Pareto-front queries, pruning dispatch, and (via persistence.go) YAML
// save/load (L12). The best trial and the Pareto front are not cached:
// BestTrial and ParetoFront scan the trial list on every call.
package study

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pa-m/hyperopt/moo"
	"github.com/pa-m/hyperopt/pruner"
	"github.com/pa-m/hyperopt/sampler"
	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/telemetry"
	"github.com/pa-m/hyperopt/trial"
	"go.opentelemetry.io/otel/attribute"
)

// Sentinel errors for the §7 "contract violations" category. Construction
// errors (empty space, contradictory directions) panic instead, matching
// the teacher's own construction-time panics (cmaesbounded.go, powellmethod.go).
var (
	ErrUnknownTrial  = errors.New("hyperopt: unknown trial number")
	ErrNotRunning    = errors.New("hyperopt: trial is not running")
	ErrStudyDisposed = errors.New("hyperopt: study is disposed")
)

// ConstraintFunc computes a trial's constraint vector once its value is
// known. Negative/zero coordinates are feasible. An error leaves the
// trial Running (§7: "a deliberate design choice, not a bug").
type ConstraintFunc func(t *trial.Trial) ([]float64, error)

// Study coordinates the ask/tell loop described in §4.11.
type Study struct {
	name           string
	sp             *space.SearchSpace
	directions     []space.Direction
	multiObjective bool

	mu           sync.Mutex
	smp          sampler.Sampler
	pr           pruner.Pruner
	constraintFn ConstraintFunc
	trials       []*trial.Trial
	disposed     bool

	logger   *log.Logger
	counters *telemetry.StudyCounters
	tracer   *telemetry.Tracer
}

// Option configures ambient, purely-additive behavior of a Study
// (logging, metrics, tracing). None of them are required for correctness.
type Option func(*Study)

// WithLogger attaches a diagnostic logger, which receives one line per
// asked trial and one per trial told Complete, matching the teacher's
// ambient choice of plain *log.Logger over a third-party logging framework.
func WithLogger(l *log.Logger) Option { return func(s *Study) { s.logger = l } }

// WithCounters attaches Prometheus ask/tell/fail/prune counters.
func WithCounters(c *telemetry.StudyCounters) Option { return func(s *Study) { s.counters = c } }

// WithTracer attaches an OpenTelemetry tracer wrapping Ask/AskBatch/Tell.
func WithTracer(t *telemetry.Tracer) Option { return func(s *Study) { s.tracer = t } }

// New constructs a Study. direction must have exactly one element unless
// multiObjective is true. warmStart, if non-nil, supplies pre-existing
// trials; only their Complete records are imported, renumbered 0..k-1
// preserving order (§4.11 "Warm start"). New panics on construction
// errors (empty direction vector, sampler/space mismatch is deferred to
// first Ask since the sampler only learns the space then).
func New(name string, sp *space.SearchSpace, directions []space.Direction, smp sampler.Sampler, pr pruner.Pruner, multiObjective bool, warmStart []*trial.Trial, opts ...Option) *Study {
	if sp == nil {
		panic("hyperopt: study requires a non-nil search space")
	}
	if len(directions) == 0 {
		panic("hyperopt: study requires at least one direction")
	}
	if !multiObjective && len(directions) != 1 {
		panic("hyperopt: single-objective study requires exactly one direction")
	}
	if pr == nil {
		pr = pruner.Nop{}
	}
	s := &Study{
		name:           name,
		sp:             sp,
		directions:     append([]space.Direction{}, directions...),
		multiObjective: multiObjective,
		smp:            smp,
		pr:             pr,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, src := range warmStart {
		if src.State() != trial.Complete {
			continue
		}
		s.trials = append(s.trials, importCompleted(len(s.trials), src))
	}
	return s
}

// importCompleted rebuilds a Complete trial under a fresh number, copying
// its parameters, value(s), intermediate values and constraint values
// verbatim (§4.11 "Warm start", and reused by persistence Load).
func importCompleted(number int, src *trial.Trial) *trial.Trial {
	t := trial.New(number, src.Parameters())
	for step, v := range src.IntermediateValues() {
		t.Report(step, v)
	}
	if vs := src.Values(); vs != nil {
		t.SetCompleteVector(vs)
	} else if v, ok := src.Value(); ok {
		t.SetComplete(v)
	}
	if cv := src.ConstraintValues(); cv != nil {
		t.SetConstraintValues(cv)
	}
	return t
}

func (s *Study) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func()) {
	if s.tracer == nil {
		return ctx, func() {}
	}
	ctx, sp := s.tracer.StartSpan(ctx, op, attrs...)
	return ctx, func() { sp.End() }
}

// Ask is AskContext(context.Background()).
func (s *Study) Ask() (*trial.Trial, error) { return s.AskContext(context.Background()) }

// AskContext acquires the lock, invokes the sampler's single-sample
// method with a snapshot of the trial list, constructs and appends a new
// Running trial numbered len(trials), and returns it (§4.11 "ask()").
func (s *Study) AskContext(ctx context.Context) (*trial.Trial, error) {
	_, end := s.span(ctx, "ask", attribute.String("study", s.name))
	defer end()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrStudyDisposed
	}
	history := s.snapshotLocked()
	values, err := s.smp.Sample(history, s.directions, s.sp)
	if err != nil {
		return nil, fmt.Errorf("hyperopt: sampler failed to propose trial %d: %w", len(s.trials), err)
	}
	t := trial.New(len(s.trials), values)
	s.trials = append(s.trials, t)
	if s.counters != nil {
		s.counters.Asks.Inc()
	}
	if s.logger != nil {
		s.logger.Printf("hyperopt: study %q asked trial %d", s.name, t.Number())
	}
	return t, nil
}

// AskBatch allocates n contiguous trial numbers in one critical section,
// using the sampler's BatchSampler entry point when available (§4.11
// "ask_batch(n)"). A batch sampler draws all n candidates from the same
// below/above estimator snapshot rather than rebuilding it per call; the
// inFlight parameter it exposes is left empty here since every candidate
// in a single AskBatch call is drawn from that one static snapshot, not
// revealed to the sampler incrementally.
func (s *Study) AskBatch(n int) ([]*trial.Trial, error) {
	if n <= 0 {
		return nil, nil
	}
	_, end := s.span(context.Background(), "ask_batch", attribute.String("study", s.name), attribute.Int("n", n))
	defer end()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrStudyDisposed
	}

	var out []*trial.Trial
	if bs, ok := s.smp.(sampler.BatchSampler); ok {
		history := s.snapshotLocked()
		values, err := bs.SampleBatch(history, s.directions, s.sp, n, nil)
		if err != nil {
			return nil, fmt.Errorf("hyperopt: batch sampler failed: %w", err)
		}
		out = make([]*trial.Trial, 0, len(values))
		for _, v := range values {
			t := trial.New(len(s.trials), v)
			s.trials = append(s.trials, t)
			out = append(out, t)
		}
	} else {
		out = make([]*trial.Trial, 0, n)
		for i := 0; i < n; i++ {
			// Each successive Sample call sees prior members of this batch
			// as Running, so the new trial is appended before the next call.
			v, err := s.smp.Sample(s.snapshotLocked(), s.directions, s.sp)
			if err != nil {
				if len(out) == 0 {
					return nil, fmt.Errorf("hyperopt: sampler failed to propose trial %d: %w", len(s.trials), err)
				}
				break
			}
			t := trial.New(len(s.trials), v)
			s.trials = append(s.trials, t)
			out = append(out, t)
		}
	}

	if s.counters != nil {
		s.counters.Asks.Add(float64(len(out)))
	}
	return out, nil
}

func (s *Study) snapshotLocked() []*trial.Trial {
	cp := make([]*trial.Trial, len(s.trials))
	copy(cp, s.trials)
	return cp
}

func (s *Study) trialByNumberLocked(number int) (*trial.Trial, error) {
	if number < 0 || number >= len(s.trials) {
		return nil, fmt.Errorf("hyperopt: %w: %d", ErrUnknownTrial, number)
	}
	return s.trials[number], nil
}

// Tell transitions trial number from Running to Complete with a scalar
// value and applies the constraint function (if any) (§4.11
// "tell(number, scalar_value)"). No best/Pareto cache is kept; later
// BestTrial/ParetoFront calls see the new value by scanning the trials.
func (s *Study) Tell(number int, value float64) error {
	return s.tell(number, func(t *trial.Trial) { t.SetComplete(value) })
}

// TellVector is Tell for multi-objective studies; values[0] also becomes
// the trial's scalar value (§4.11 "tell(number, value_vector)").
func (s *Study) TellVector(number int, values []float64) error {
	return s.tell(number, func(t *trial.Trial) { t.SetCompleteVector(values) })
}

func (s *Study) tell(number int, setComplete func(*trial.Trial)) error {
	_, end := s.span(context.Background(), "tell", attribute.String("study", s.name), attribute.Int("number", number))
	defer end()

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.trialByNumberLocked(number)
	if err != nil {
		return err
	}
	if t.State() != trial.Running {
		return fmt.Errorf("hyperopt: %w: trial %d is %s", ErrNotRunning, number, t.State())
	}
	setComplete(t)
	if s.constraintFn != nil {
		cv, err := s.constraintFn(t)
		if err != nil {
			t.SetRunning()
			return fmt.Errorf("hyperopt: constraint function failed for trial %d: %w", number, err)
		}
		t.SetConstraintValues(cv)
	}
	if s.counters != nil {
		s.counters.Completes.Inc()
	}
	if s.logger != nil {
		s.logger.Printf("hyperopt: study %q completed trial %d", s.name, number)
	}
	return nil
}

// TellFail transitions trial number to Fail (§4.11 "tell(number, Fail)").
func (s *Study) TellFail(number int) error {
	return s.tellTerminal(number, trial.Fail, func(t *trial.Trial) { t.SetFail() })
}

// TellPruned transitions trial number to Pruned (§4.11 "tell(number, Pruned)").
func (s *Study) TellPruned(number int) error {
	return s.tellTerminal(number, trial.Pruned, func(t *trial.Trial) { t.SetPruned() })
}

func (s *Study) tellTerminal(number int, target trial.State, apply func(*trial.Trial)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.trialByNumberLocked(number)
	if err != nil {
		return err
	}
	if t.State() != trial.Running {
		return fmt.Errorf("hyperopt: %w: trial %d is %s", ErrNotRunning, number, t.State())
	}
	apply(t)
	if s.counters != nil {
		if target == trial.Fail {
			s.counters.Fails.Inc()
		} else {
			s.counters.Pruned.Inc()
		}
	}
	return nil
}

// TellResult is one entry of a TellBatch call.
type TellResult struct {
	Number int
	Value  *float64
	Values []float64
	State  trial.State // trial.Fail or trial.Pruned when Value/Values are nil
}

// TellBatch applies results best-effort: unknown trial numbers are
// silently skipped, an empty batch is a no-op, matching §4.11's batch
// semantics. It returns one error per input entry (nil on success).
func (s *Study) TellBatch(results []TellResult) []error {
	errs := make([]error, len(results))
	for i, r := range results {
		switch {
		case r.Values != nil:
			errs[i] = s.TellVector(r.Number, r.Values)
		case r.Value != nil:
			errs[i] = s.Tell(r.Number, *r.Value)
		case r.State == trial.Fail:
			errs[i] = s.TellFail(r.Number)
		case r.State == trial.Pruned:
			errs[i] = s.TellPruned(r.Number)
		default:
			errs[i] = fmt.Errorf("hyperopt: tell_batch entry %d has neither a value nor Fail/Pruned state", i)
		}
		if errors.Is(errs[i], ErrUnknownTrial) {
			errs[i] = nil // silently skipped, per §4.11
		}
	}
	return errs
}

// Report appends an intermediate value to trialNumber's history, a no-op
// if the trial is not Running (§4.3). It holds the Study's lock only to
// look the trial up; the append itself is guarded by the Trial's own
// mutex (§5).
func (s *Study) Report(trialNumber int, step int, value float64) error {
	s.mu.Lock()
	t, err := s.trialByNumberLocked(trialNumber)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	t.Report(step, value)
	return nil
}

// ShouldPrune snapshots the trial list under the lock and asks the
// configured Pruner, normalizing on the study's first direction so every
// pruner can assume "larger = worse" regardless of Minimize/Maximize
// (§4.9, §4.11 "should_prune(trial)").
func (s *Study) ShouldPrune(trialNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.trialByNumberLocked(trialNumber)
	if err != nil {
		return false, err
	}
	return s.pr.ShouldPrune(t, s.snapshotLocked(), s.directions[0]), nil
}

// SetConstraintFunction stores fn, replacing any previously-set function
// (§4.11 "set_constraint_function(fn)").
func (s *Study) SetConstraintFunction(fn ConstraintFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.constraintFn = fn
}

// IsFeasible reports whether t's constraint_values are absent or every
// coordinate is <= 0 (§4.11 "is_feasible(trial)").
func IsFeasible(t *trial.Trial) bool {
	for _, v := range t.ConstraintValues() {
		if v > 0 {
			return false
		}
	}
	return true
}

// BestTrial returns the Complete trial extremal under the study's
// direction (first objective for multi-objective studies), ignoring
// Failed/Pruned/Running trials (§4.11 "best_trial").
func (s *Study) BestTrial() (*trial.Trial, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	direction := s.directions[0]
	var best *trial.Trial
	var bestValue float64
	for _, t := range s.trials {
		if t.State() != trial.Complete {
			continue
		}
		v, ok := t.Value()
		if !ok {
			continue
		}
		if best == nil || direction.Better(v, bestValue) {
			best, bestValue = t, v
		}
	}
	return best, best != nil
}

// ParetoFront returns, for single-objective studies, the single best
// trial; for multi-objective studies, the non-dominated Complete trials
// (§4.10, §4.11 "pareto_front").
func (s *Study) ParetoFront() []*trial.Trial {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.multiObjective {
		direction := s.directions[0]
		var best *trial.Trial
		var bestValue float64
		for _, t := range s.trials {
			if t.State() != trial.Complete {
				continue
			}
			v, ok := t.Value()
			if !ok {
				continue
			}
			if best == nil || direction.Better(v, bestValue) {
				best, bestValue = t, v
			}
		}
		if best == nil {
			return nil
		}
		return []*trial.Trial{best}
	}

	var completed []*trial.Trial
	var values [][]float64
	for _, t := range s.trials {
		if t.State() != trial.Complete {
			continue
		}
		vs := t.Values()
		if vs == nil {
			continue
		}
		completed = append(completed, t)
		values = append(values, vs)
	}
	nondominated := moo.Front(values, s.directions)
	var front []*trial.Trial
	for i, ok := range nondominated {
		if ok {
			front = append(front, completed[i])
		}
	}
	return front
}

// Trials returns a snapshot copy of the study's trial list.
func (s *Study) Trials() []*trial.Trial {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Name returns the study's name.
func (s *Study) Name() string { return s.name }

// SearchSpace returns the study's search space.
func (s *Study) SearchSpace() *space.SearchSpace { return s.sp }

// Directions returns the study's direction vector.
func (s *Study) Directions() []space.Direction {
	cp := make([]space.Direction, len(s.directions))
	copy(cp, s.directions)
	return cp
}

// MultiObjective reports whether the study was created via
// CreateMultiObjectiveStudy.
func (s *Study) MultiObjective() bool { return s.multiObjective }

// Dispose releases any sampler-owned resources. Idempotent (§4.11 "Dispose").
func (s *Study) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	if d, ok := s.smp.(sampler.Disposer); ok {
		return d.Dispose()
	}
	return nil
}
