package study

import (
	"fmt"
	"os"
	"sort"

	"github.com/pa-m/hyperopt/pruner"
	"github.com/pa-m/hyperopt/sampler"
	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
	"gopkg.in/yaml.v3"
)

// trialRecord is the on-disk shape of one Complete or Pruned trial (§4.12).
type trialRecord struct {
	Number             int                    `yaml:"number"`
	State              string                 `yaml:"state"`
	Parameters         map[string]interface{} `yaml:"parameters"`
	Value              *float64               `yaml:"value,omitempty"`
	Values             []float64              `yaml:"values,omitempty"`
	ConstraintValues   []float64              `yaml:"constraint_values,omitempty"`
	IntermediateValues [][2]float64           `yaml:"intermediate_values,omitempty"`
}

// studyFile is the top-level on-disk document (§4.12, §6 "Persistence
// file format"): name, direction(s), and the trial records.
type studyFile struct {
	Name       string        `yaml:"name"`
	Direction  string        `yaml:"direction,omitempty"`
	Directions []string      `yaml:"directions,omitempty"`
	Trials     []trialRecord `yaml:"trials"`
}

func directionName(d space.Direction) string {
	if d == space.Maximize {
		return "maximize"
	}
	return "minimize"
}

func parseDirection(s string) (space.Direction, error) {
	switch s {
	case "minimize":
		return space.Minimize, nil
	case "maximize":
		return space.Maximize, nil
	default:
		return 0, fmt.Errorf("hyperopt: unknown direction %q", s)
	}
}

// Save writes the study's metadata and all Complete/Pruned trials to
// path (Running and Failed are omitted), per §4.11 "Persistence" and
// §4.12's on-disk shape.
func (s *Study) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := studyFile{Name: s.name}
	if s.multiObjective {
		for _, d := range s.directions {
			f.Directions = append(f.Directions, directionName(d))
		}
	} else {
		f.Direction = directionName(s.directions[0])
	}

	for _, t := range s.trials {
		st := t.State()
		if st != trial.Complete && st != trial.Pruned {
			continue
		}
		f.Trials = append(f.Trials, toRecord(t))
	}

	out, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("hyperopt: marshal study %q: %w", s.name, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("hyperopt: write study file %q: %w", path, err)
	}
	return nil
}

func toRecord(t *trial.Trial) trialRecord {
	r := trialRecord{
		Number:           t.Number(),
		State:            t.State().String(),
		Parameters:       t.Parameters(),
		Values:           t.Values(),
		ConstraintValues: t.ConstraintValues(),
	}
	if v, ok := t.Value(); ok {
		r.Value = &v
	}
	iv := t.IntermediateValues()
	if len(iv) > 0 {
		steps := make([]int, 0, len(iv))
		for step := range iv {
			steps = append(steps, step)
		}
		sort.Ints(steps)
		for _, step := range steps {
			r.IntermediateValues = append(r.IntermediateValues, [2]float64{float64(step), iv[step]})
		}
	}
	return r
}

// LoadStudy reconstructs a study from path, replaying its Complete/Pruned
// trials against sp and smp (§4.11 "load(path, space, sampler)"). Loading
// rejects inputs missing the study name, direction(s), or trials array
// (§6).
func LoadStudy(path string, sp *space.SearchSpace, smp sampler.Sampler, opts ...Option) (*Study, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hyperopt: read study file %q: %w", path, err)
	}

	var f studyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("hyperopt: malformed study file %q: %w", path, err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("hyperopt: study file %q is missing its name", path)
	}
	if f.Direction == "" && len(f.Directions) == 0 {
		return nil, fmt.Errorf("hyperopt: study file %q is missing its direction(s)", path)
	}
	if f.Trials == nil {
		return nil, fmt.Errorf("hyperopt: study file %q is missing its trials array", path)
	}

	multiObjective := len(f.Directions) > 0
	var directions []space.Direction
	if multiObjective {
		for _, name := range f.Directions {
			d, err := parseDirection(name)
			if err != nil {
				return nil, fmt.Errorf("hyperopt: study file %q: %w", path, err)
			}
			directions = append(directions, d)
		}
	} else {
		d, err := parseDirection(f.Direction)
		if err != nil {
			return nil, fmt.Errorf("hyperopt: study file %q: %w", path, err)
		}
		directions = []space.Direction{d}
	}

	// Save omits Running/Failed trials, so persisted rec.Number values have
	// gaps; renumber 0..k-1 in file order on load, same as warm-start's
	// importCompleted, to preserve the universal trials[i].number==i
	// invariant.
	trials := make([]*trial.Trial, 0, len(f.Trials))
	for _, rec := range f.Trials {
		t, err := fromRecord(len(trials), rec, sp)
		if err != nil {
			return nil, fmt.Errorf("hyperopt: study file %q: %w", path, err)
		}
		trials = append(trials, t)
	}

	st := New(f.Name, sp, directions, smp, pruner.Nop{}, multiObjective, nil, opts...)
	st.trials = trials
	return st, nil
}

// fromRecord rebuilds a Trial from its on-disk record under the given
// (renumbered) number, coercing each parameter value to the type its
// search-space range expects (YAML decodes untyped numbers loosely; a
// declared Int range must come back as a Go int, not a float64). number
// is the trial's position in the reloaded, gap-free 0..k-1 sequence, not
// necessarily rec.Number — Save omits Running/Failed trials, so the
// persisted numbers can have gaps.
func fromRecord(number int, rec trialRecord, sp *space.SearchSpace) (*trial.Trial, error) {
	params := make(map[string]interface{}, len(rec.Parameters))
	for name, v := range rec.Parameters {
		rng, ok := sp.ByName(name)
		if !ok {
			params[name] = v
			continue
		}
		coerced, err := coerceParam(rng, v)
		if err != nil {
			return nil, fmt.Errorf("trial %d parameter %q: %w", rec.Number, name, err)
		}
		params[name] = coerced
	}

	t := trial.New(number, params)
	for _, pair := range rec.IntermediateValues {
		t.Report(int(pair[0]), pair[1])
	}
	switch rec.State {
	case trial.Complete.String():
		if len(rec.Values) > 0 {
			t.SetCompleteVector(rec.Values)
		} else if rec.Value != nil {
			t.SetComplete(*rec.Value)
		}
	case trial.Pruned.String():
		t.SetPruned()
	default:
		return nil, fmt.Errorf("trial %d has unexpected persisted state %q", rec.Number, rec.State)
	}
	if rec.ConstraintValues != nil {
		t.SetConstraintValues(rec.ConstraintValues)
	}
	return t, nil
}

func coerceParam(rng space.ParameterRange, v interface{}) (interface{}, error) {
	switch rng.Kind() {
	case space.KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
		return nil, fmt.Errorf("expected a number, got %T", v)
	case space.KindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case float64:
			return int(n), nil
		}
		return nil, fmt.Errorf("expected a number, got %T", v)
	default: // KindCategorical: the decoded value is used as-is.
		return v, nil
	}
}
