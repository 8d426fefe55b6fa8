package sandbox

import (
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/KaramelBytes/dataloom-cli/internal/plotting"
	"github.com/KaramelBytes/dataloom-cli/internal/stats"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// allowedStdlib is the subset of the standard library visible to snippets.
var allowedStdlib = []string{"fmt/fmt", "math/math", "sort/sort", "strconv/strconv", "strings/strings"}

func stdlibSymbols() interp.Exports {
	out := interp.Exports{}
	for _, k := range allowedStdlib {
		out[k] = stdlib.Symbols[k]
	}
	return out
}

var tableSymbols = map[string]reflect.Value{
	"New":             reflect.ValueOf(table.New),
	"Frame":           reflect.ValueOf((*table.Frame)(nil)),
	"Column":          reflect.ValueOf((*table.Column)(nil)),
	"ColumnInfo":      reflect.ValueOf((*table.ColumnInfo)(nil)),
	"Kind":            reflect.ValueOf((*table.Kind)(nil)),
	"KindNumeric":     reflect.ValueOf(table.KindNumeric),
	"KindTemporal":    reflect.ValueOf(table.KindTemporal),
	"KindCategorical": reflect.ValueOf(table.KindCategorical),
	"KindText":        reflect.ValueOf(table.KindText),
}

var statsSymbols = map[string]reflect.Value{
	"Mean":                 reflect.ValueOf(stats.Mean),
	"Median":               reflect.ValueOf(stats.Median),
	"StdDev":               reflect.ValueOf(stats.StdDev),
	"Variance":             reflect.ValueOf(stats.Variance),
	"Min":                  reflect.ValueOf(stats.Min),
	"Max":                  reflect.ValueOf(stats.Max),
	"Sum":                  reflect.ValueOf(stats.Sum),
	"Quantile":             reflect.ValueOf(stats.Quantile),
	"Correlation":          reflect.ValueOf(stats.Correlation),
	"Covariance":           reflect.ValueOf(stats.Covariance),
	"Skew":                 reflect.ValueOf(stats.Skew),
	"Kurtosis":             reflect.ValueOf(stats.Kurtosis),
	"LinearRegression":     reflect.ValueOf(stats.LinearRegression),
	"PolynomialRegression": reflect.ValueOf(stats.PolynomialRegression),
	"LogisticRegression":   reflect.ValueOf(stats.LogisticRegression),
	"Outliers":             reflect.ValueOf(stats.Outliers),
	"Describe":             reflect.ValueOf(stats.Describe),
	"CorrMatrix":           reflect.ValueOf(stats.CorrMatrix),
	"CovMatrix":            reflect.ValueOf(stats.CovMatrix),
	"Summary":              reflect.ValueOf(stats.Summary),
	"ErrTooFewPoints":      reflect.ValueOf(&stats.ErrTooFewPoints).Elem(),
	"LinearFit":            reflect.ValueOf((*stats.LinearFit)(nil)),
	"PolyFit":              reflect.ValueOf((*stats.PolyFit)(nil)),
	"LogitFit":             reflect.ValueOf((*stats.LogitFit)(nil)),
}

var plottingSymbols = map[string]reflect.Value{
	"Session": reflect.ValueOf((*plotting.Session)(nil)),
	"Figure":  reflect.ValueOf((*plotting.Figure)(nil)),
}

// symbols builds the export table for one execution. env exposes the
// per-execution bindings.
func symbols(df *table.Frame, plt *plotting.Session) interp.Exports {
	out := stdlibSymbols()
	out["dataloom/table/table"] = tableSymbols
	out["dataloom/stats/stats"] = statsSymbols
	out["dataloom/plotting/plotting"] = plottingSymbols
	out["dataloom/env/env"] = map[string]reflect.Value{
		"Table": reflect.ValueOf(func() *table.Frame { return df }),
		"Plot":  reflect.ValueOf(func() *plotting.Session { return plt }),
	}
	return out
}
