package moo

import (
	"math"
	"sort"

	"github.com/pa-m/hyperopt/space"
)

// CrowdingDistance computes the NSGA-II crowding distance of each entry in
// front (a set of objective vectors all assumed non-dominated w.r.t. each
// other). Boundary solutions for each objective get +Inf; interior
// solutions accumulate the normalized gap between their neighbors.
//
// directions must have one entry per objective (len(front[0])). Per the
// REDESIGN FLAGS note, the full direction vector is required here rather
// than a single direction, unlike some reference implementations that
// pass only the first objective's direction: sort order per objective is
// independent of direction (boundary points get +Inf regardless, and the
// interior gap is symmetric), but every dimension must still be present
// in directions or a length mismatch is a caller bug.
func CrowdingDistance(front [][]float64, directions []space.Direction) []float64 {
	n := len(front)
	distances := make([]float64, n)
	if n == 0 {
		return distances
	}
	numObjectives := len(front[0])
	if len(directions) != numObjectives {
		panic("moo: CrowdingDistance requires one direction per objective")
	}

	for obj := 0; obj < numObjectives; obj++ {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool {
			return front[order[i]][obj] < front[order[j]][obj]
		})

		min := front[order[0]][obj]
		max := front[order[n-1]][obj]
		denom := max - min

		distances[order[0]] = math.Inf(1)
		distances[order[n-1]] = math.Inf(1)
		if n <= 2 {
			continue
		}
		for k := 1; k < n-1; k++ {
			if math.IsInf(distances[order[k]], 1) {
				continue
			}
			if denom == 0 {
				continue
			}
			gap := front[order[k+1]][obj] - front[order[k-1]][obj]
			distances[order[k]] += gap / denom
		}
	}
	return distances
}
