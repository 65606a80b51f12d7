package sampler

import (
	"testing"

	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sphereSpace(t *testing.T, n int) *space.SearchSpace {
	t.Helper()
	ranges := make([]space.ParameterRange, n)
	for i := range ranges {
		ranges[i] = space.Float{NameValue: string(rune('a' + i)), Low: -5, High: 5}
	}
	sp, err := space.New(ranges...)
	require.NoError(t, err)
	return sp
}

func sphere(values Values, sp *space.SearchSpace) float64 {
	sum := 0.0
	for i := 0; i < sp.Len(); i++ {
		x := values[sp.ByIndex(i).Name()].(float64)
		sum += x * x
	}
	return sum
}

// runGenerations drives CMA-ES for g full generations against objective,
// telling every member of each generation before asking for the next.
// The first Sample call lazily initializes c (and c.lambda), so the
// per-generation loop below only needs that value after it.
func runGenerations(t *testing.T, c *CMAES, sp *space.SearchSpace, objective func(Values, *space.SearchSpace) float64, generations int) []*trial.Trial {
	t.Helper()
	var history []*trial.Trial
	directions := []space.Direction{space.Minimize}
	for g := 0; g < generations; g++ {
		genStart := len(history)
		for {
			vals, err := c.Sample(history, directions, sp)
			require.NoError(t, err)
			tr := trial.New(len(history), vals)
			history = append(history, tr)
			if len(history)-genStart >= c.lambda {
				break
			}
		}
		for i := genStart; i < len(history); i++ {
			v := objective(history[i].Parameters(), sp)
			history[i].SetComplete(v)
		}
	}
	return history
}

func TestCMAESGenerationSigmaConditionAfterFullGeneration(t *testing.T) {
	sp := sphereSpace(t, 3)
	c := NewCMAES(1)
	history := runGenerations(t, c, sp, sphere, 2)
	require.NotEmpty(t, history)

	// One more ask triggers the pending Update for the just-completed
	// generation (property 11: generation>=1, sigma>0, condition_number>=1).
	_, err := c.Sample(history, []space.Direction{space.Minimize}, sp)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, c.generation, 1)
	assert.Greater(t, c.sigma, 0.0)
	c.ensureEigen()
	minD, maxD := c.D[0], c.D[0]
	for _, d := range c.D {
		if d < minD {
			minD = d
		}
		if d > maxD {
			maxD = d
		}
	}
	condition := (maxD * maxD) / (minD * minD)
	assert.GreaterOrEqual(t, condition, 1.0)
}

func TestCMAESRejectsSpaceWithNoContinuousDimension(t *testing.T) {
	sp, err := space.New(space.Categorical{NameValue: "choice", Choices: []interface{}{"a", "b"}})
	require.NoError(t, err)
	c := NewCMAES(1)
	_, err = c.Sample(nil, []space.Direction{space.Minimize}, sp)
	assert.ErrorIs(t, err, ErrNoContinuousDimensions)
}

func TestCMAESMirrorReflectionStaysInBounds(t *testing.T) {
	low := []float64{0, 0}
	high := []float64{1, 1}
	x := []float64{-0.3, 1.7}
	mirrorReflect(x, low, high)
	for i := range x {
		assert.GreaterOrEqual(t, x[i], low[i])
		assert.LessOrEqual(t, x[i], high[i])
	}
}

// TestCMAESConvergesOnSphere is a best-effort comparative-performance
// check (property 12): average objective of the last generation should
// be smaller than that of the first.
func TestCMAESConvergesOnSphere(t *testing.T) {
	sp := sphereSpace(t, 5)
	c := NewCMAES(42)
	history := runGenerations(t, c, sp, sphere, 15)

	lambda := c.lambda
	firstGen := history[:lambda]
	lastGen := history[len(history)-lambda:]

	avg := func(ts []*trial.Trial) float64 {
		sum := 0.0
		for _, tr := range ts {
			v, _ := tr.Value()
			sum += v
		}
		return sum / float64(len(ts))
	}

	assert.Less(t, avg(lastGen), avg(firstGen))
}
