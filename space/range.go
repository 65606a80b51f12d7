package space

import "fmt"

// Kind distinguishes the three ParameterRange variants.
type Kind int

const (
	// KindFloat identifies a Float range.
	KindFloat Kind = iota
	// KindInt identifies an Int range.
	KindInt
	// KindCategorical identifies a Categorical range.
	KindCategorical
)

// ParameterRange is a tagged variant over exactly three cases (Float, Int,
// Categorical). Every case carries a unique Name, used as the key inside a
// trial's parameter map.
type ParameterRange interface {
	Name() string
	Kind() Kind
	validate() error
}

// Float is a continuous range [Low, High]. If Log is true the range is
// searched on a log scale and Low must be strictly positive.
type Float struct {
	NameValue string
	Low, High float64
	Log       bool
}

// Name implements ParameterRange.
func (f Float) Name() string { return f.NameValue }

// Kind implements ParameterRange.
func (Float) Kind() Kind { return KindFloat }

func (f Float) validate() error {
	if f.NameValue == "" {
		return fmt.Errorf("hyperopt: float range has empty name")
	}
	if !(f.Low < f.High) {
		return fmt.Errorf("hyperopt: float range %q: low (%v) must be < high (%v)", f.NameValue, f.Low, f.High)
	}
	if f.Log && f.Low <= 0 {
		return fmt.Errorf("hyperopt: float range %q: log range requires low > 0, got %v", f.NameValue, f.Low)
	}
	return nil
}

// Int is a stepped integer range. Generated values are low + k*step,
// clamped to [Low, High]; (High-Low) need not be divisible by Step.
type Int struct {
	NameValue string
	Low, High int
	Step      int
}

// Name implements ParameterRange.
func (r Int) Name() string { return r.NameValue }

// Kind implements ParameterRange.
func (Int) Kind() Kind { return KindInt }

func (r Int) validate() error {
	if r.NameValue == "" {
		return fmt.Errorf("hyperopt: int range has empty name")
	}
	if r.Low > r.High {
		return fmt.Errorf("hyperopt: int range %q: low (%v) must be <= high (%v)", r.NameValue, r.Low, r.High)
	}
	if r.Step < 1 {
		return fmt.Errorf("hyperopt: int range %q: step must be >= 1, got %v", r.NameValue, r.Step)
	}
	return nil
}

// ClampStep rounds x onto the nearest valid grid point low + k*step and
// clamps it to [Low, High], keeping it on the grid: above the range it
// returns the largest grid point not exceeding High.
func (r Int) ClampStep(x float64) int {
	k := round((x - float64(r.Low)) / float64(r.Step))
	v := r.Low + k*r.Step
	if v < r.Low {
		v = r.Low
	}
	if maxV := r.Low + ((r.High-r.Low)/r.Step)*r.Step; v > maxV {
		v = maxV
	}
	return v
}

func round(x float64) int {
	if x < 0 {
		return -int(-x + 0.5)
	}
	return int(x + 0.5)
}

// Categorical is an unordered-choice range; equality between choices is by
// value (using Go's == via interface comparison, so choices must be
// comparable: strings, numbers, bools).
type Categorical struct {
	NameValue string
	Choices   []interface{}
}

// Name implements ParameterRange.
func (c Categorical) Name() string { return c.NameValue }

// Kind implements ParameterRange.
func (Categorical) Kind() Kind { return KindCategorical }

func (c Categorical) validate() error {
	if c.NameValue == "" {
		return fmt.Errorf("hyperopt: categorical range has empty name")
	}
	if len(c.Choices) == 0 {
		return fmt.Errorf("hyperopt: categorical range %q: choices must be non-empty", c.NameValue)
	}
	return nil
}

// IndexOf returns the index of value within Choices, or -1 if absent.
func (c Categorical) IndexOf(value interface{}) int {
	for i, v := range c.Choices {
		if v == value {
			return i
		}
	}
	return -1
}
