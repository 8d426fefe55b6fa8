// Package stats provides the numeric helpers bound into snippets as `stats`.
// Every function ignores NaN entries; paired functions drop a pair when
// either side is NaN. Empty input yields NaN rather than a panic.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrTooFewPoints is returned by fits that do not have enough observations.
var ErrTooFewPoints = errors.New("not enough data points")

func clean(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func cleanPairs(xs, ys []float64) ([]float64, []float64) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	a := make([]float64, 0, n)
	b := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		a = append(a, xs[i])
		b = append(b, ys[i])
	}
	return a, b
}

func Mean(xs []float64) float64 {
	v := clean(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// StdDev is the sample standard deviation.
func StdDev(xs []float64) float64 {
	v := clean(xs)
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdDev(v, nil)
}

// Variance is the sample variance.
func Variance(xs []float64) float64 {
	v := clean(xs)
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.Variance(v, nil)
}

func Min(xs []float64) float64 {
	v := clean(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Min(v)
}

func Max(xs []float64) float64 {
	v := clean(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Max(v)
}

func Sum(xs []float64) float64 { return floats.Sum(clean(xs)) }

func Median(xs []float64) float64 { return Quantile(xs, 0.5) }

// Quantile uses linear interpolation between closest ranks; q is clamped to [0,1].
func Quantile(xs []float64, q float64) float64 {
	v := clean(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	return quantile(v, q)
}

// Correlation is the Pearson correlation coefficient.
func Correlation(xs, ys []float64) float64 {
	a, b := cleanPairs(xs, ys)
	if len(a) < 2 {
		return math.NaN()
	}
	return stat.Correlation(a, b, nil)
}

// Covariance is the sample covariance.
func Covariance(xs, ys []float64) float64 {
	a, b := cleanPairs(xs, ys)
	if len(a) < 2 {
		return math.NaN()
	}
	return stat.Covariance(a, b, nil)
}

func Skew(xs []float64) float64 {
	v := clean(xs)
	if len(v) < 3 {
		return math.NaN()
	}
	return stat.Skew(v, nil)
}

// Kurtosis is the excess kurtosis (0 for a normal distribution).
func Kurtosis(xs []float64) float64 {
	v := clean(xs)
	if len(v) < 4 {
		return math.NaN()
	}
	return stat.ExKurtosis(v, nil)
}

// LinearFit is the result of an ordinary least squares line fit.
type LinearFit struct {
	Slope     float64
	Intercept float64
	R2        float64
	N         int
}

// Predict evaluates the fitted line at x.
func (f LinearFit) Predict(x float64) float64 { return f.Intercept + f.Slope*x }

func (f LinearFit) String() string {
	return fmt.Sprintf("y = %.4g*x + %.4g (R²=%.4f, n=%d)", f.Slope, f.Intercept, f.R2, f.N)
}

// LinearRegression fits y = Intercept + Slope*x by least squares.
func LinearRegression(xs, ys []float64) (LinearFit, error) {
	a, b := cleanPairs(xs, ys)
	if len(a) < 2 {
		return LinearFit{}, fmt.Errorf("linear regression: %w (have %d)", ErrTooFewPoints, len(a))
	}
	alpha, beta := stat.LinearRegression(a, b, nil, false)
	return LinearFit{
		Slope:     beta,
		Intercept: alpha,
		R2:        stat.RSquared(a, b, nil, alpha, beta),
		N:         len(a),
	}, nil
}

// PolyFit holds polynomial coefficients, lowest degree first.
type PolyFit struct {
	Coeffs []float64
	R2     float64
	N      int
}

func (f PolyFit) Predict(x float64) float64 {
	y, p := 0.0, 1.0
	for _, c := range f.Coeffs {
		y += c * p
		p *= x
	}
	return y
}

// PolynomialRegression fits a polynomial of the given degree by least squares.
func PolynomialRegression(xs, ys []float64, degree int) (PolyFit, error) {
	if degree < 1 {
		return PolyFit{}, fmt.Errorf("polynomial regression: degree must be >= 1, got %d", degree)
	}
	a, b := cleanPairs(xs, ys)
	n := len(a)
	if n <= degree {
		return PolyFit{}, fmt.Errorf("polynomial regression: %w (have %d, degree %d)", ErrTooFewPoints, n, degree)
	}
	design := mat.NewDense(n, degree+1, nil)
	for i, x := range a {
		p := 1.0
		for j := 0; j <= degree; j++ {
			design.Set(i, j, p)
			p *= x
		}
	}
	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		return PolyFit{}, fmt.Errorf("polynomial regression: %w", err)
	}
	fit := PolyFit{Coeffs: make([]float64, degree+1), N: n}
	for j := range fit.Coeffs {
		fit.Coeffs[j] = coef.AtVec(j)
	}
	fit.R2 = rSquared(b, func(i int) float64 { return fit.Predict(a[i]) })
	return fit, nil
}

func rSquared(ys []float64, pred func(i int) float64) float64 {
	m := stat.Mean(ys, nil)
	var ssRes, ssTot float64
	for i, y := range ys {
		d := y - pred(i)
		ssRes += d * d
		ssTot += (y - m) * (y - m)
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}

// LogitFit is a single-feature logistic regression model.
type LogitFit struct {
	Intercept float64
	Slope     float64
	Accuracy  float64
	N         int
}

// Prob returns P(y=1 | x).
func (f LogitFit) Prob(x float64) float64 { return sigmoid(f.Intercept + f.Slope*x) }

func (f LogitFit) String() string {
	return fmt.Sprintf("logit(p) = %.4g*x + %.4g (accuracy=%.3f, n=%d)", f.Slope, f.Intercept, f.Accuracy, f.N)
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// LogisticRegression fits P(y=1) = sigmoid(a + b*x) by gradient descent on
// a standardized x. y must be binary: 0/1, or two distinct values where the
// larger maps to 1.
func LogisticRegression(xs, ys []float64) (LogitFit, error) {
	a, b := cleanPairs(xs, ys)
	n := len(a)
	if n < 2 {
		return LogitFit{}, fmt.Errorf("logistic regression: %w (have %d)", ErrTooFewPoints, n)
	}
	labels, err := binarize(b)
	if err != nil {
		return LogitFit{}, err
	}
	mu, sd := stat.MeanStdDev(a, nil)
	if sd == 0 || math.IsNaN(sd) {
		sd = 1
	}
	z := make([]float64, n)
	for i, x := range a {
		z[i] = (x - mu) / sd
	}
	const (
		iterations = 5000
		rate       = 0.1
	)
	var w0, w1 float64
	for it := 0; it < iterations; it++ {
		var g0, g1 float64
		for i := range z {
			d := sigmoid(w0+w1*z[i]) - labels[i]
			g0 += d
			g1 += d * z[i]
		}
		w0 -= rate * g0 / float64(n)
		w1 -= rate * g1 / float64(n)
	}
	fit := LogitFit{Slope: w1 / sd, Intercept: w0 - w1*mu/sd, N: n}
	correct := 0
	for i, x := range a {
		p := 0.0
		if fit.Prob(x) >= 0.5 {
			p = 1
		}
		if p == labels[i] {
			correct++
		}
	}
	fit.Accuracy = float64(correct) / float64(n)
	return fit, nil
}

func binarize(ys []float64) ([]float64, error) {
	distinct := map[float64]struct{}{}
	for _, y := range ys {
		distinct[y] = struct{}{}
	}
	if len(distinct) != 2 {
		return nil, fmt.Errorf("logistic regression: target must have exactly 2 distinct values, got %d", len(distinct))
	}
	hi := math.Inf(-1)
	for y := range distinct {
		if y > hi {
			hi = y
		}
	}
	out := make([]float64, len(ys))
	for i, y := range ys {
		if y == hi {
			out[i] = 1
		}
	}
	return out, nil
}

// Outliers returns the indices of xs whose robust z-score (median/MAD based)
// exceeds threshold in absolute value. A threshold <= 0 uses 3.5.
func Outliers(xs []float64, threshold float64) []int {
	if threshold <= 0 {
		threshold = 3.5
	}
	med, mad := medianMAD(clean(xs))
	if mad == 0 {
		return nil
	}
	var out []int
	for i, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if math.Abs(0.6745*(x-med)/mad) > threshold {
			out = append(out, i)
		}
	}
	return out
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
