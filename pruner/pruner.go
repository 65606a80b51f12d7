// Package pruner implements the early-stopping policies a Study consults
// via ShouldPrune: Nop, Median, Percentile and SuccessiveHalving (§4.9).
//
// Every pruner assumes "larger reported value is worse" — direction is
// passed into ShouldPrune and each pruner normalizes the values it reads
// accordingly, per the REDESIGN FLAGS note resolving the reference
// implementation's inconsistent direction handling.
package pruner

import (
	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
)

// Pruner decides whether a Running trial should be stopped early, given
// its own history, the full trial list seen so far, and the direction the
// study is optimizing in (so "larger = worse" can be normalized without
// mutating any trial's stored values).
type Pruner interface {
	ShouldPrune(t *trial.Trial, trials []*trial.Trial, direction space.Direction) bool
}

// Nop never prunes.
type Nop struct{}

// ShouldPrune always returns false.
func (Nop) ShouldPrune(*trial.Trial, []*trial.Trial, space.Direction) bool { return false }

// normalize flips the sign of a reported value for a Maximize study, so
// every pruner's "larger = worse" comparisons hold regardless of
// direction (§4.9). Minimize values pass through unchanged.
func normalize(v float64, direction space.Direction) float64 {
	if direction == space.Maximize {
		return -v
	}
	return v
}

// completedPeersAtStep returns, for every Complete trial other than self
// that has an intermediate value recorded at exactly step, that value
// normalized for direction.
func completedPeersAtStep(self *trial.Trial, trials []*trial.Trial, step int, direction space.Direction) []float64 {
	var peers []float64
	for _, other := range trials {
		if other == self || other.State() != trial.Complete {
			continue
		}
		iv := other.IntermediateValues()
		if v, ok := iv[step]; ok {
			peers = append(peers, normalize(v, direction))
		}
	}
	return peers
}
