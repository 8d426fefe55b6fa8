package result

import (
	"fmt"
	"sort"
	"strings"
)

func fmtValue(v any) string { return fmt.Sprintf("%v", v) }

// Text renders a result for terminal output. Values implementing
// Markdown(int) string (tables) are rendered as Markdown.
func (r Result) Text() string {
	switch r.Type {
	case TypePlot:
		return fmt.Sprintf("Plot saved to %s", r.Path())
	case TypeError:
		return "Error: " + r.Message()
	}
	switch v := r.Value.(type) {
	case interface{ Markdown(int) string }:
		return v.Markdown(0)
	case map[string]float64:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("%s: %.6g\n", k, v[k]))
		}
		return b.String()
	case float64:
		return fmt.Sprintf("%.6g", v)
	case nil:
		return "(no value)"
	default:
		return fmtValue(v)
	}
}
