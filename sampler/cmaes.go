package sampler

import (
	"fmt"
	"math"

	"github.com/pa-m/hyperopt/backend"
	"github.com/pa-m/hyperopt/numerics"
	"github.com/pa-m/hyperopt/space"
	"github.com/pa-m/hyperopt/trial"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// CMAESMetricsSink receives the "Observability metrics" §4.8 calls for
// after every generation update. A nil sink is valid; the sampler simply
// skips reporting. telemetry.CMAESMetrics satisfies this via its
// ReportCMAES method, but any recorder works (kept as a narrow interface here so
// sampler does not need to import telemetry).
type CMAESMetricsSink interface {
	ReportCMAES(generation int, sigma, conditionNumber, bestFitness float64, completedTrials int)
}

// CMAES is the (mu/mu_w, lambda)-CMA-ES sampler (L8): adapts a mean,
// covariance matrix and global step size from ranked generations of
// lambda candidates (Hansen & Ostermeier 2001). Only continuous
// (Float/Int) coordinates are adapted; Categorical coordinates are drawn
// uniformly at random for each emitted candidate, independent of the
// strategy state.
type CMAES struct {
	PopulationSize int // lambda; 0 = default 4 + floor(3*ln(n))
	InitialSigma   float64 // fraction of avg(high-low); 0 = default 0.3
	Seed           uint64
	Backend        backend.Backend // nil = backend.Dense{}
	Metrics        CMAESMetricsSink

	rnd *rand.Rand

	initialized bool
	n           int
	contRanges  []space.ParameterRange
	contLow     []float64
	contHigh    []float64
	catRanges   []space.ParameterRange

	mean  []float64
	C     *mat.SymDense
	sigma float64
	pc    []float64
	ps    []float64

	eigenDirty bool
	B          *mat.Dense
	D          []float64 // sqrt(eigenvalues)
	zDist      *distmv.Normal // standard n-variate normal, draws the per-candidate z

	lambda  int
	mu      int
	weights []float64
	muEff   float64
	cc, cs  float64
	c1, cmu float64
	dSigma  float64
	chiN    float64

	generation      int
	generationStart int
	population      [][]float64
	issued          int
}

// NewCMAES constructs a CMA-ES sampler seeded by seed, with the defaults
// from §4.8.
func NewCMAES(seed uint64) *CMAES {
	return &CMAES{
		Seed:    seed,
		rnd:     rand.New(rand.NewSource(seed)),
		Backend: backend.Dense{},
	}
}

// ErrNoContinuousDimensions is returned when CMA-ES is asked to sample
// over a search space with no Float/Int ranges (§4.8, §7).
var ErrNoContinuousDimensions = fmt.Errorf("hyperopt: cma-es requires at least one continuous (Float/Int) parameter range")

func (c *CMAES) ensureInitialized(sp *space.SearchSpace) error {
	if c.initialized {
		return nil
	}
	for i := 0; i < sp.Len(); i++ {
		rng := sp.ByIndex(i)
		switch r := rng.(type) {
		case space.Float:
			c.contRanges = append(c.contRanges, rng)
			if r.Log {
				c.contLow = append(c.contLow, math.Log(r.Low))
				c.contHigh = append(c.contHigh, math.Log(r.High))
			} else {
				c.contLow = append(c.contLow, r.Low)
				c.contHigh = append(c.contHigh, r.High)
			}
		case space.Int:
			c.contRanges = append(c.contRanges, rng)
			c.contLow = append(c.contLow, float64(r.Low))
			c.contHigh = append(c.contHigh, float64(r.High))
		case space.Categorical:
			c.catRanges = append(c.catRanges, rng)
		}
	}
	if len(c.contRanges) == 0 {
		return ErrNoContinuousDimensions
	}
	n := len(c.contRanges)
	c.n = n

	c.mean = make([]float64, n)
	avgRange := 0.0
	for i := 0; i < n; i++ {
		c.mean[i] = (c.contLow[i] + c.contHigh[i]) / 2
		avgRange += c.contHigh[i] - c.contLow[i]
	}
	avgRange /= float64(n)

	initSigma := c.InitialSigma
	if initSigma == 0 {
		initSigma = 0.3
	}
	c.sigma = initSigma * avgRange

	c.C = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		c.C.SetSym(i, i, 1)
	}
	c.pc = make([]float64, n)
	c.ps = make([]float64, n)
	c.eigenDirty = true

	identity := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		identity.SetSym(i, i, 1)
	}
	zDist, ok := distmv.NewNormal(make([]float64, n), identity, c.rnd)
	if !ok {
		panic("hyperopt: cma-es standard normal construction failed")
	}
	c.zDist = zDist

	lambda := c.PopulationSize
	if lambda == 0 {
		lambda = 4 + int(3*math.Log(float64(n)))
	}
	c.lambda = lambda
	c.mu = lambda / 2

	weights := make([]float64, c.mu)
	sum := 0.0
	for i := range weights {
		weights[i] = math.Log(float64(c.mu)+0.5) - math.Log(float64(i)+1)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	c.weights = weights
	sqSum := 0.0
	for _, w := range weights {
		sqSum += w * w
	}
	c.muEff = 1 / sqSum

	nf := float64(n)
	c.cc = (4 + c.muEff/nf) / (nf + 4 + 2*c.muEff/nf)
	c.cs = (c.muEff + 2) / (nf + c.muEff + 5)
	c.c1 = 2 / ((nf+1.3)*(nf+1.3) + c.muEff)
	c.cmu = math.Min(1-c.c1, 2*(c.muEff-2+1/c.muEff)/((nf+2)*(nf+2)+c.muEff))
	c.dSigma = 1 + 2*math.Max(0, math.Sqrt((c.muEff-1)/(nf+1))-1) + c.cs
	c.chiN = math.Sqrt(nf) * (1 - 1/(4*nf) + 1/(21*nf*nf))

	c.initialized = true
	return nil
}

func (c *CMAES) ensureEigen() {
	if !c.eigenDirty {
		return
	}
	c.B, c.D = numerics.EigenSymmetric(c.C, 1e-20)
	c.eigenDirty = false
}

// Sample implements Sampler.
func (c *CMAES) Sample(history []*trial.Trial, directions []space.Direction, sp *space.SearchSpace) (Values, error) {
	if err := c.ensureInitialized(sp); err != nil {
		return nil, err
	}
	direction := space.Minimize
	if len(directions) > 0 {
		direction = directions[0]
	}

	if c.population != nil && c.issued >= len(c.population) && c.generationTerminal(history) {
		c.update(history, direction)
	}
	if c.population == nil {
		c.generationStart = len(history)
		c.generatePopulation()
	}

	idx := c.issued % len(c.population)
	x := c.population[idx]
	c.issued++
	return c.toValues(sp, x), nil
}

func (c *CMAES) generationTerminal(history []*trial.Trial) bool {
	for i := 0; i < len(c.population); i++ {
		idx := c.generationStart + i
		if idx >= len(history) {
			return false
		}
		if history[idx].State() == trial.Running {
			return false
		}
	}
	return true
}

func (c *CMAES) generatePopulation() {
	c.ensureEigen()
	n := c.n

	bd := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		col := mat.Col(nil, j, c.B)
		for i := 0; i < n; i++ {
			bd.Set(i, j, col[i]*c.D[j])
		}
	}

	z := mat.NewDense(c.lambda, n, nil)
	for i := 0; i < c.lambda; i++ {
		row := c.zDist.Rand(nil)
		z.SetRow(i, row)
	}

	out := mat.NewDense(c.lambda, n, nil)
	be := c.Backend
	if be == nil {
		be = backend.Dense{}
	}
	be.SamplePopulation(bd, z, c.mean, c.sigma, out)

	population := make([][]float64, c.lambda)
	for i := 0; i < c.lambda; i++ {
		row := make([]float64, n)
		copy(row, out.RawRowView(i))
		mirrorReflect(row, c.contLow, c.contHigh)
		population[i] = row
	}
	c.population = population
	c.issued = 0
}

// mirrorReflect reflects x into [low, high] coordinatewise, preserving
// density shape near the boundary, unlike hard clipping (§4.8).
func mirrorReflect(x, low, high []float64) {
	for i := range x {
		for r := 0; r < 10 && (x[i] < low[i] || x[i] > high[i]); r++ {
			if x[i] < low[i] {
				x[i] = low[i] + (low[i] - x[i])
			}
			if x[i] > high[i] {
				x[i] = high[i] - (x[i] - high[i])
			}
		}
		if x[i] < low[i] {
			x[i] = low[i]
		}
		if x[i] > high[i] {
			x[i] = high[i]
		}
	}
}

func (c *CMAES) toValues(sp *space.SearchSpace, x []float64) Values {
	out := make(Values, sp.Len())
	for i, rng := range c.contRanges {
		switch r := rng.(type) {
		case space.Float:
			v := x[i]
			if r.Log {
				v = math.Exp(v)
			}
			out[r.Name()] = v
		case space.Int:
			out[r.Name()] = r.ClampStep(x[i])
		}
	}
	for _, rng := range c.catRanges {
		cat := rng.(space.Categorical)
		out[cat.Name()] = cat.Choices[c.rnd.Intn(len(cat.Choices))]
	}
	return out
}

func worstFitness(direction space.Direction) float64 {
	if direction == space.Maximize {
		return -math.MaxFloat64
	}
	return math.MaxFloat64
}

func (c *CMAES) update(history []*trial.Trial, direction space.Direction) {
	n := c.n
	lambda := len(c.population)

	fitness := make([]float64, lambda)
	completed := 0
	for i := 0; i < lambda; i++ {
		t := history[c.generationStart+i]
		switch t.State() {
		case trial.Complete:
			v, _ := t.Value()
			fitness[i] = v
			completed++
		default: // Fail or Pruned
			fitness[i] = worstFitness(direction)
		}
	}

	order := make([]int, lambda)
	for i := range order {
		order[i] = i
	}
	sign := direction.Sign()
	for i := 1; i < lambda; i++ {
		for j := i; j > 0 && sign*fitness[order[j]] < sign*fitness[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	meanOld := make([]float64, n)
	copy(meanOld, c.mean)

	meanNew := make([]float64, n)
	for i := 0; i < c.mu; i++ {
		xi := c.population[order[i]]
		w := c.weights[i]
		for j := 0; j < n; j++ {
			meanNew[j] += w * xi[j]
		}
	}

	meanDiff := make([]float64, n)
	floats.SubTo(meanDiff, meanNew, meanOld)

	// C^{-1/2} = B diag(1/D) B^T, from the cached eigendecomposition (D
	// already holds sqrt(eigenvalues), per numerics.EigenSymmetric).
	normalizedDiff := make([]float64, n)
	copy(normalizedDiff, meanDiff)
	floats.Scale(1/c.sigma, normalizedDiff)
	cInvSqrtDiff := make([]float64, n)
	{
		// t = B^T * normalizedDiff
		t := make([]float64, n)
		for k := 0; k < n; k++ {
			col := mat.Col(nil, k, c.B)
			t[k] = floats.Dot(col, normalizedDiff) / c.D[k]
		}
		// result = B * t
		for i := 0; i < n; i++ {
			row := mat.Row(nil, i, c.B)
			cInvSqrtDiff[i] = floats.Dot(row, t)
		}
	}

	scaleS := math.Sqrt(c.cs * (2 - c.cs) * c.muEff)
	for j := 0; j < n; j++ {
		c.ps[j] = (1-c.cs)*c.ps[j] + scaleS*cInvSqrtDiff[j]
	}
	normPs := floats.Norm(c.ps, 2)

	hSigmaThresh := (1.4 + 2/(float64(n)+1)) * c.chiN * math.Sqrt(1-math.Pow(1-c.cs, 2*float64(c.generation+1)))
	hSigma := 0.0
	if normPs < hSigmaThresh {
		hSigma = 1
	}

	scaleC := math.Sqrt(c.cc * (2 - c.cc) * c.muEff)
	for j := 0; j < n; j++ {
		c.pc[j] = (1-c.cc)*c.pc[j] + hSigma*scaleC*meanDiff[j]/c.sigma
	}

	correction := (1 - hSigma) * c.cc * (2 - c.cc)

	rankOne := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			rankOne.SetSym(i, j, c.pc[i]*c.pc[j])
		}
	}

	rankMu := mat.NewSymDense(n, nil)
	artmp := mat.NewDense(c.mu, n, nil)
	for i := 0; i < c.mu; i++ {
		xi := c.population[order[i]]
		for j := 0; j < n; j++ {
			artmp.Set(i, j, (xi[j]-meanOld[j])/c.sigma)
		}
	}
	be := c.Backend
	if be == nil {
		be = backend.Dense{}
	}
	be.RankMu(artmp, c.weights, rankMu)

	newC := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (1-c.c1-c.cmu)*c.C.At(i, j) +
				c.c1*(rankOne.At(i, j)+correction*c.C.At(i, j)) +
				c.cmu*rankMu.At(i, j)
			newC.SetSym(i, j, v)
		}
	}
	c.C = newC

	c.sigma *= math.Exp((c.cs / c.dSigma) * (normPs/c.chiN - 1))
	if c.sigma < 1e-20 {
		c.sigma = 1e-20
	}
	if c.sigma > 1e10 {
		c.sigma = 1e10
	}

	c.mean = meanNew
	c.eigenDirty = true
	c.generation++
	c.population = nil
	c.issued = 0

	if c.Metrics != nil {
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
		cond := 1.0
		if minD > 0 {
			cond = maxD / minD // D holds sqrt-eigenvalues, per §4.8's max(D)/min(D)
		}
		bestIdx := order[0]
		c.Metrics.ReportCMAES(c.generation, c.sigma, cond, fitness[bestIdx], completed)
	}
}
