package numerics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// EigenSymmetric factorizes the symmetric matrix c and returns its
// orthonormal eigenvectors (columns of b) and the square roots of its
// eigenvalues, each eigenvalue first raised to at least minEigenvalue so
// the roots stay finite and invertible. This is
// the refresh step CMA-ES runs whenever its covariance matrix is marked
// dirty (§4.8 "Eigendecomposition refresh").
func EigenSymmetric(c *mat.SymDense, minEigenvalue float64) (b *mat.Dense, values []float64) {
	n := c.SymmetricDim()

	// Symmetrize defensively: C may have drifted from exact symmetry after
	// repeated rank-one/rank-mu updates.
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (c.At(i, j) + c.At(j, i)) / 2
			sym.SetSym(i, j, v)
		}
	}

	var eig mat.EigenSym
	ok := eig.Factorize(sym, true)
	if !ok {
		// Factorization failure leaves the distribution isotropic rather
		// than propagating a panic into the sampler's hot path.
		vecs := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			vecs.Set(i, i, 1)
		}
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.Sqrt(minEigenvalue)
		}
		return vecs, vals
	}

	raw := eig.Values(nil)
	values = make([]float64, n)
	for i, v := range raw {
		if v < minEigenvalue {
			v = minEigenvalue
		}
		values[i] = math.Sqrt(v)
	}

	var vecs mat.Dense
	vecs.EigenvectorsSym(&eig)
	return &vecs, values
}
