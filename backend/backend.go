// Package backend defines the compute-backend extension point CMA-ES uses
// to offload its two batched linear-algebra routines (§6), plus a default
// in-process dense implementation built on gonum/mat. GPU acceleration of
// these routines is explicitly out of this module's scope (spec.md §1);
// this package only defines the interface the core consumes.
package backend

import "gonum.org/v1/gonum/mat"

// Backend implements the two batched routines CMA-ES's population
// generation and covariance rank-mu update can delegate to. Eigendecomposition
// always runs in-process (numerics.EigenSymmetric) regardless of backend.
type Backend interface {
	// SamplePopulation computes out[i,:] = m + sigma*BD*z[i,:] for every
	// row i of z (a lambda x n matrix of i.i.d. standard normals), writing
	// into out (also lambda x n).
	SamplePopulation(bd *mat.Dense, z *mat.Dense, m []float64, sigma float64, out *mat.Dense)

	// RankMu computes out = sum_i w[i] * artmp[i,:] (x) artmp[i,:]^T, the
	// weighted outer-product sum CMA-ES's rank-mu covariance update needs.
	RankMu(artmp *mat.Dense, w []float64, out *mat.SymDense)
}

// Dense is the default in-process backend: straightforward gonum/mat
// dense-matrix operations, no external compute device. It is used
// whenever a CMAES sampler's Backend field is nil or left at the
// NewCMAES default.
type Dense struct{}

// SamplePopulation implements Backend.
func (Dense) SamplePopulation(bd *mat.Dense, z *mat.Dense, m []float64, sigma float64, out *mat.Dense) {
	lambda, n := z.Dims()
	var y mat.VecDense
	for i := 0; i < lambda; i++ {
		zi := mat.NewVecDense(n, mat.Row(nil, i, z))
		y.MulVec(bd, zi)
		row := out.RawRowView(i)
		for j := 0; j < n; j++ {
			row[j] = m[j] + sigma*y.AtVec(j)
		}
	}
}

// RankMu implements Backend. out must already be zero-valued (e.g. freshly
// built with mat.NewSymDense(n, nil)); RankMu only accumulates into it.
func (Dense) RankMu(artmp *mat.Dense, w []float64, out *mat.SymDense) {
	mu, n := artmp.Dims()
	for i := 0; i < mu; i++ {
		xi := mat.NewVecDense(n, mat.Row(nil, i, artmp))
		out.SymRankOne(out, w[i], xi)
	}
}
