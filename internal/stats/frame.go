package stats

import (
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

var describeRows = []struct {
	name string
	fn   func([]float64) float64
}{
	{"count", func(xs []float64) float64 { return float64(len(clean(xs))) }},
	{"mean", Mean},
	{"std", StdDev},
	{"min", Min},
	{"25%", func(xs []float64) float64 { return Quantile(xs, 0.25) }},
	{"50%", Median},
	{"75%", func(xs []float64) float64 { return Quantile(xs, 0.75) }},
	{"max", Max},
}

// Describe summarizes every numeric column: count, mean, std, min, quartiles
// and max. Statistic names form the first column, one column per input column.
func Describe(f *table.Frame) *table.Frame {
	cols := f.NumericColumns()
	out := table.New(append([]string{"stat"}, cols...)...)
	data := make([][]float64, len(cols))
	for i, c := range cols {
		data[i] = f.Floats(c)
	}
	for _, r := range describeRows {
		row := make([]any, 0, len(cols)+1)
		row = append(row, r.name)
		for i := range cols {
			row = append(row, r.fn(data[i]))
		}
		out.AddRow(row...)
	}
	return out
}

// CorrMatrix returns pairwise Pearson correlations of the numeric columns.
func CorrMatrix(f *table.Frame) *table.Frame { return pairMatrix(f, Correlation) }

// CovMatrix returns pairwise sample covariances of the numeric columns.
func CovMatrix(f *table.Frame) *table.Frame { return pairMatrix(f, Covariance) }

func pairMatrix(f *table.Frame, fn func(a, b []float64) float64) *table.Frame {
	cols := f.NumericColumns()
	out := table.New(append([]string{"column"}, cols...)...)
	data := make([][]float64, len(cols))
	for i, c := range cols {
		data[i] = f.Floats(c)
	}
	for i, c := range cols {
		row := make([]any, 0, len(cols)+1)
		row = append(row, c)
		for j := range cols {
			row = append(row, fn(data[i], data[j]))
		}
		out.AddRow(row...)
	}
	return out
}

// Summary maps each numeric column to its mean.
func Summary(f *table.Frame) map[string]float64 {
	out := map[string]float64{}
	for _, c := range f.NumericColumns() {
		out[c] = Mean(f.Floats(c))
	}
	return out
}
