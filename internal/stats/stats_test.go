package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

func TestScalarStatsSkipNaN(t *testing.T) {
	xs := []float64{1, 2, math.NaN(), 3, 4}
	assert.InDelta(t, 2.5, Mean(xs), 1e-12)
	assert.InDelta(t, 2.5, Median(xs), 1e-12)
	assert.InDelta(t, 1, Min(xs), 0)
	assert.InDelta(t, 4, Max(xs), 0)
	assert.InDelta(t, 10, Sum(xs), 0)
	assert.InDelta(t, 1.6666666666666667, Variance(xs), 1e-12)
	assert.InDelta(t, math.Sqrt(1.6666666666666667), StdDev(xs), 1e-12)
	assert.InDelta(t, 1.75, Quantile(xs, 0.25), 1e-12)
}

func TestEmptyInputIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(Mean(nil)))
	assert.True(t, math.IsNaN(Min([]float64{math.NaN()})))
	assert.True(t, math.IsNaN(StdDev([]float64{1})))
	assert.True(t, math.IsNaN(Correlation([]float64{1}, []float64{2})))
	assert.Equal(t, 0.0, Sum(nil))
}

func TestCorrelationAndCovariance(t *testing.T) {
	x := []float64{1, 2, 3, 4, math.NaN()}
	y := []float64{2, 4, 6, 8, 100}
	assert.InDelta(t, 1, Correlation(x, y), 1e-12)
	assert.InDelta(t, 3.3333333333333335, Covariance(x, y), 1e-12)
}

func TestShape(t *testing.T) {
	sym := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 0, Skew(sym), 1e-12)
	assert.Greater(t, Skew([]float64{1, 1, 1, 2, 10}), 0.0)
	assert.False(t, math.IsNaN(Kurtosis([]float64{1, 2, 3, 4, 100})))
}

func TestLinearRegression(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{1, 3, 5, 7, 9}
	fit, err := LinearRegression(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 2, fit.Slope, 1e-9)
	assert.InDelta(t, 1, fit.Intercept, 1e-9)
	assert.InDelta(t, 1, fit.R2, 1e-9)
	assert.Equal(t, 5, fit.N)
	assert.InDelta(t, 11, fit.Predict(5), 1e-9)

	_, err = LinearRegression([]float64{1}, []float64{2})
	require.ErrorIs(t, err, ErrTooFewPoints)
}

func TestPolynomialRegression(t *testing.T) {
	var x, y []float64
	for i := -3; i <= 3; i++ {
		v := float64(i)
		x = append(x, v)
		y = append(y, 2*v*v-v+0.5)
	}
	fit, err := PolynomialRegression(x, y, 2)
	require.NoError(t, err)
	require.Len(t, fit.Coeffs, 3)
	assert.InDelta(t, 0.5, fit.Coeffs[0], 1e-8)
	assert.InDelta(t, -1, fit.Coeffs[1], 1e-8)
	assert.InDelta(t, 2, fit.Coeffs[2], 1e-8)
	assert.InDelta(t, 1, fit.R2, 1e-9)

	_, err = PolynomialRegression(x[:2], y[:2], 2)
	require.ErrorIs(t, err, ErrTooFewPoints)
	_, err = PolynomialRegression(x, y, 0)
	require.Error(t, err)
}

func TestLogisticRegressionSeparatesClasses(t *testing.T) {
	x := []float64{1, 2, 3, 4, 6, 7, 8, 9}
	y := []float64{0, 0, 0, 0, 1, 1, 1, 1}
	fit, err := LogisticRegression(x, y)
	require.NoError(t, err)
	assert.Greater(t, fit.Slope, 0.0)
	assert.Equal(t, 1.0, fit.Accuracy)
	assert.Less(t, fit.Prob(1), 0.5)
	assert.Greater(t, fit.Prob(9), 0.5)

	_, err = LogisticRegression(x, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	require.Error(t, err)
}

func TestOutliers(t *testing.T) {
	xs := []float64{10, 11, 9.5, 10.5, 9.8, 10.2, 8.8, 9.7, 50, math.NaN()}
	assert.Equal(t, []int{8}, Outliers(xs, 0))
	assert.Nil(t, Outliers([]float64{1, 1, 1}, 3.5))
}

func TestFrameSummaries(t *testing.T) {
	f := table.New("name", "a", "b")
	f.AddRow("r1", 1, 2)
	f.AddRow("r2", 2, 4)
	f.AddRow("r3", 3, 6)

	d := Describe(f)
	assert.Equal(t, []string{"stat", "a", "b"}, d.Columns())
	assert.Equal(t, []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}, d.Strings("stat"))
	assert.InDelta(t, 2, d.Floats("a")[1], 1e-12)
	assert.InDelta(t, 6, d.Floats("b")[7], 1e-12)

	c := CorrMatrix(f)
	assert.Equal(t, []string{"a", "b"}, c.Strings("column"))
	assert.InDelta(t, 1, c.Floats("b")[0], 1e-12)

	cv := CovMatrix(f)
	assert.InDelta(t, 2, cv.Floats("b")[0], 1e-12)

	assert.Equal(t, map[string]float64{"a": 2, "b": 4}, Summary(f))
}
