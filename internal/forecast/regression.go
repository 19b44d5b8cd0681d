package forecast

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

const (
	minLinearPoints = 2
	minMultiPoints  = 10

	testFraction = 0.2
	splitSeed    = 42

	// Singular values below rcond times the largest are treated as zero.
	rcond = 1e-10
)

// SimpleRegression is closed-form least squares over one variable.
type SimpleRegression struct {
	Slope     float64
	Intercept float64
}

// Fit computes slope and intercept. A zero denominator (all x equal) yields a
// flat line through mean(y).
func (r *SimpleRegression) Fit(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("fit: %d x values for %d y values", len(x), len(y))
	}
	if len(x) < minLinearPoints {
		return fmt.Errorf("fit %d points: %w", len(x), ErrInsufficientData)
	}
	r.Slope, r.Intercept = olsLine(x, y)
	return nil
}

func (r *SimpleRegression) Predict(x float64) float64 {
	return r.Slope*x + r.Intercept
}

func (r *SimpleRegression) PredictAll(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = r.Predict(v)
	}
	return out
}

func olsLine(x, y []float64) (slope, intercept float64) {
	n := float64(len(x))
	if n == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
	}
	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denominator
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// MultiRegression is ordinary least squares with an intercept over several
// features. The centred system is solved through an SVD so rank-deficient
// designs get the minimum-norm solution instead of failing.
type MultiRegression struct {
	Coef      []float64
	Intercept float64
}

func (r *MultiRegression) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n != len(y) {
		return fmt.Errorf("fit: %d rows for %d targets", n, len(y))
	}
	if n == 0 {
		return fmt.Errorf("fit 0 rows: %w", ErrInsufficientData)
	}
	p := len(x[0])

	xMean := make([]float64, p)
	var yMean float64
	for i, row := range x {
		if len(row) != p {
			return fmt.Errorf("fit: row %d has %d features, want %d", i, len(row), p)
		}
		for j, v := range row {
			xMean[j] += v
		}
		yMean += y[i]
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, row := range x {
		for j, v := range row {
			a.Set(i, j, v-xMean[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	coef := make([]float64, p)
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return errors.New("fit: svd factorization failed")
	}
	if rank := svd.Rank(rcond); rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, b, rank)
		for j := range coef {
			coef[j] = beta.AtVec(j)
		}
	}

	intercept := yMean
	for j, c := range coef {
		intercept -= c * xMean[j]
	}
	for _, c := range coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("fit: non-finite coefficient")
		}
	}

	r.Coef = coef
	r.Intercept = intercept
	return nil
}

func (r *MultiRegression) Predict(features []float64) float64 {
	out := r.Intercept
	for j, c := range r.Coef {
		if j < len(features) {
			out += c * features[j]
		}
	}
	return out
}

func (r *MultiRegression) PredictAll(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = r.Predict(row)
	}
	return out
}

// splitIndices partitions 0..n-1 into train and test sets with a seeded
// shuffle. The test set holds ceil(testFraction*n) rows.
func splitIndices(n int, seed uint64) (train, test []int) {
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest]
}
