// Package moo implements the multi-objective utilities the study
// coordinator uses to maintain its Pareto-front cache: dominance, the
// non-dominated front, and NSGA-II crowding distance (§4.10).
package moo

import "github.com/pa-m/hyperopt/space"

// Dominates reports whether vector a dominates vector b under directions:
// a is at least as good as b in every coordinate and strictly better in at
// least one. Equal vectors never dominate each other.
func Dominates(a, b []float64, directions []space.Direction) bool {
	betterSomewhere := false
	for i := range a {
		d := directions[i]
		if d.Better(b[i], a[i]) {
			// b strictly better than a in coordinate i: a cannot dominate b.
			return false
		}
		if d.Better(a[i], b[i]) {
			betterSomewhere = true
		}
	}
	return betterSomewhere
}

// Front returns, for each index i, whether values[i] is non-dominated by
// any other entry in values.
func Front(values [][]float64, directions []space.Direction) []bool {
	nondominated := make([]bool, len(values))
	for i := range values {
		nondominated[i] = true
		for j := range values {
			if i == j {
				continue
			}
			if Dominates(values[j], values[i], directions) {
				nondominated[i] = false
				break
			}
		}
	}
	return nondominated
}
