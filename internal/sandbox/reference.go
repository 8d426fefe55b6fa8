package sandbox

// Reference documents the snippet environment. It is embedded in model
// prompts so generated code only uses what is actually bound.
const Reference = `Snippets are Go statements forming the body of a function. Do not write package or import lines.
Already in scope:
- fmt, math, sort, strconv, strings (standard library)
- df *table.Frame: the dataset
- plt *plotting.Session: plotting
- stats: numeric helpers
- result any: assign the final result here

df methods (unknown column names panic):
  df.Columns() []string; df.Len() int; df.Kind(col) table.Kind; df.Has(col) bool
  df.Floats(col) []float64 (NaN for missing); df.Numbers(col) []float64 (non-missing only)
  df.Strings(col) []string; df.Pairs(x, y) (xs, ys []float64) rows where both are numeric
  df.NumericColumns() []string; df.Head(n); df.Select(cols...); df.DropMissing(cols...); df.DropDuplicates()
  df.Where(col, func(string) bool); df.ValueCounts(col); df.GroupMean(by, col) (all return *table.Frame)
  table.New(cols...) *table.Frame then t.AddRow(values...) to build a result table

stats functions (NaN entries are skipped):
  stats.Mean, Median, StdDev, Variance, Min, Max, Sum(xs []float64) float64; stats.Quantile(xs, q)
  stats.Correlation(x, y), stats.Covariance(x, y), stats.Skew(xs), stats.Kurtosis(xs) float64
  stats.LinearRegression(x, y) (stats.LinearFit{Slope, Intercept, R2, N}, error)
  stats.PolynomialRegression(x, y, degree) (stats.PolyFit{Coeffs, R2, N}, error); fit.Predict(x)
  stats.LogisticRegression(x, y) (stats.LogitFit{Intercept, Slope, Accuracy, N}, error); fit.Prob(x)
  stats.Outliers(xs, threshold) []int
  stats.Describe(df), stats.CorrMatrix(df), stats.CovMatrix(df) *table.Frame; stats.Summary(df) map[string]float64

plt usage (drawing calls chain; Save returns the first error):
  fig := plt.Figure(10, 6)
  fig.Title(s).XLabel(s).YLabel(s)
  fig.Hist(values, bins); fig.Scatter(xs, ys); fig.Line(xs, ys); fig.Bar(labels, values)
  fig.FitLine(slope, intercept); fig.Curve(func(x float64) float64)
  if err := fig.Save(path); err != nil { panic(err) }
  fig.Close()

Result contract:
  result = map[string]any{"type": "plot", "value": path}
  result = map[string]any{"type": "dataframe", "value": value}`
