package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func TestParzenLogPdfFiniteEverywhereWithPositivePrior(t *testing.T) {
	p := NewParzen([]float64{1, 2, 3}, 0, 10, 1.0, true)
	for x := 0.0; x <= 10; x += 0.37 {
		lp := p.LogPdf([]float64{x})[0]
		assert.False(t, math.IsInf(lp, -1), "x=%v", x)
		assert.False(t, math.IsNaN(lp), "x=%v", x)
	}
}

func TestParzenZeroObservationsIsUniformPrior(t *testing.T) {
	p := NewParzen(nil, 0, 10, 1.0, true)
	lp0 := p.LogPdf([]float64{2})[0]
	lp1 := p.LogPdf([]float64{8})[0]
	assert.InDelta(t, lp0, lp1, 1e-9)
}

func TestParzenSingleObservationBandwidthSpansRange(t *testing.T) {
	p := NewParzen([]float64{5}, 0, 10, 1e-9, false)
	assert.InDelta(t, 10.0, p.sigmas[0], 1e-9)
}

func TestParzenConcentratesNearSingleObservation(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	p := NewParzen([]float64{5}, 0, 10, 1e-6, true)
	samples := p.Sample(rnd, 1000)
	within := 0
	for _, x := range samples {
		if math.Abs(x-5) <= 3 { // ±30% of the [0,10] range
			within++
		}
	}
	assert.GreaterOrEqual(t, within, 500)
}

func TestParzenMagicClipRaisesSmallBandwidths(t *testing.T) {
	obs := make([]float64, 50)
	for i := range obs {
		obs[i] = 5 // all duplicate observations collapse neighbor distances to 0
	}
	p := NewParzen(obs, 0, 10, 1.0, true)
	floor := 10.0 / math.Min(100, float64(1+len(obs)))
	for _, s := range p.sigmas {
		assert.GreaterOrEqual(t, s, floor-1e-9)
	}
}
