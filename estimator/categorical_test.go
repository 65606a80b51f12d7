package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoricalLogPdfSumsToOne(t *testing.T) {
	c := NewCategorical([]int{0, 0, 1, 2, 2, 2}, 3, 1.0)
	sum := 0.0
	for k := 0; k < 3; k++ {
		sum += math.Exp(c.LogPdf(k))
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestCategoricalNoZeroProbabilityCategory(t *testing.T) {
	c := NewCategorical([]int{0, 0, 0, 0}, 4, 1.0)
	for k := 0; k < 4; k++ {
		assert.Greater(t, math.Exp(c.LogPdf(k)), 0.0)
	}
}
