// Package table holds the in-memory dataset that queries run against.
//
// A Frame is an ordered set of named columns. Every column keeps its raw cell
// text next to a parsed numeric view (NaN where a cell is missing or not a
// number) and an inferred element kind. Accessors that take a column name
// panic with a descriptive message when the column does not exist; generated
// snippets rely on that message to explain what went wrong.
package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind is the statically inferred element kind of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindTemporal    Kind = "temporal"
	KindCategorical Kind = "categorical"
	KindText        Kind = "text"
)

// Column is a single named column.
type Column struct {
	Name string
	Kind Kind
	// Unit is parsed from headers such as "Temp (°F)" or "Mass [mg/L]"; informational only.
	Unit string

	raw   []string
	nums  []float64
	typed bool
}

// ColumnInfo describes a column for schema listings.
type ColumnInfo struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Unit    string `json:"unit,omitempty"`
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
}

// Frame is an ordered, column-oriented table.
type Frame struct {
	Name  string
	cols  []*Column
	index map[string]int
	rows  int
}

// New returns an empty frame with the given column names. Rows are added with AddRow.
func New(names ...string) *Frame {
	f := &Frame{index: make(map[string]int, len(names))}
	for _, n := range names {
		f.addColumn(&Column{Name: n, Kind: KindText})
	}
	return f
}

func (f *Frame) addColumn(c *Column) {
	if f.index == nil {
		f.index = map[string]int{}
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
}

// AddRow appends one row. Values are formatted to text; numbers keep their numeric view.
// Missing trailing values are treated as empty cells.
func (f *Frame) AddRow(values ...any) {
	if len(values) > len(f.cols) {
		panic(fmt.Sprintf("AddRow: got %d values for %d columns", len(values), len(f.cols)))
	}
	for i, c := range f.cols {
		var v any
		if i < len(values) {
			v = values[i]
		}
		s, x, isNum := cellOf(v)
		switch {
		case s == "":
		case !c.typed:
			c.typed = true
			c.Kind = KindText
			if isNum {
				c.Kind = KindNumeric
			}
		case c.Kind == KindNumeric && !isNum:
			c.Kind = KindText
		}
		c.raw = append(c.raw, s)
		c.nums = append(c.nums, x)
	}
	f.rows++
}

func cellOf(v any) (string, float64, bool) {
	switch t := v.(type) {
	case nil:
		return "", math.NaN(), false
	case float64:
		if math.IsNaN(t) {
			return "", t, true
		}
		return strconv.FormatFloat(t, 'g', -1, 64), t, true
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), float64(t), true
	case int:
		return strconv.Itoa(t), float64(t), true
	case int64:
		return strconv.FormatInt(t, 10), float64(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), float64(t), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), float64(t), true
	case bool:
		return strconv.FormatBool(t), math.NaN(), false
	case string:
		if x, ok := parseNumeric(t, 0, 0); ok {
			return t, x, true
		}
		return t, math.NaN(), false
	default:
		return fmt.Sprint(t), math.NaN(), false
	}
}

// Columns returns the column names in stored order, case preserved.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Schema reports name, kind and missingness for every column.
func (f *Frame) Schema() []ColumnInfo {
	out := make([]ColumnInfo, len(f.cols))
	for i, c := range f.cols {
		miss := 0
		for _, s := range c.raw {
			if isMissing(s) {
				miss++
			}
		}
		out[i] = ColumnInfo{Name: c.Name, Kind: c.Kind, Unit: c.Unit, NonNull: len(c.raw) - miss, Missing: miss}
	}
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Has reports whether a column with the exact name exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Lookup returns the named column without panicking.
func (f *Frame) Lookup(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Col returns the named column or panics with the list of available names.
func (f *Frame) Col(name string) *Column {
	c, ok := f.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("column %q not found; available columns: %s", name, strings.Join(f.Columns(), ", ")))
	}
	return c
}

// Kind returns the inferred kind of the named column.
func (f *Frame) Kind(name string) Kind { return f.Col(name).Kind }

// Floats returns the numeric view of a column; missing or non-numeric cells are NaN.
func (f *Frame) Floats(name string) []float64 {
	return append([]float64(nil), f.Col(name).nums...)
}

// Numbers returns only the parseable numeric values of a column.
func (f *Frame) Numbers(name string) []float64 {
	src := f.Col(name).nums
	out := make([]float64, 0, len(src))
	for _, x := range src {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// Strings returns the raw text of a column.
func (f *Frame) Strings(name string) []string {
	return append([]string(nil), f.Col(name).raw...)
}

// Pairs returns aligned numeric values for rows where both columns are numeric.
func (f *Frame) Pairs(x, y string) ([]float64, []float64) {
	cx, cy := f.Col(x), f.Col(y)
	xs := make([]float64, 0, f.rows)
	ys := make([]float64, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		a, b := cx.nums[i], cy.nums[i]
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		xs = append(xs, a)
		ys = append(ys, b)
	}
	return xs, ys
}

// NumericColumns lists the columns inferred as numeric, in stored order.
func (f *Frame) NumericColumns() []string {
	var out []string
	for _, c := range f.cols {
		if c.Kind == KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Value returns the raw cell at row i of the named column.
func (f *Frame) Value(i int, name string) string {
	c := f.Col(name)
	if i < 0 || i >= f.rows {
		panic(fmt.Sprintf("row %d out of range [0,%d)", i, f.rows))
	}
	return c.raw[i]
}

// Rows returns the raw cells row by row.
func (f *Frame) Rows() [][]string {
	out := make([][]string, f.rows)
	for i := range out {
		row := make([]string, len(f.cols))
		for j, c := range f.cols {
			row[j] = c.raw[i]
		}
		out[i] = row
	}
	return out
}

// Copy returns a deep copy that shares no mutable state with f.
func (f *Frame) Copy() *Frame {
	return f.take(nil, nil)
}

// take copies the selected columns (all when names is nil) and rows (all when keep is nil).
func (f *Frame) take(names []string, keep []int) *Frame {
	cols := f.cols
	if names != nil {
		cols = make([]*Column, len(names))
		for i, n := range names {
			cols[i] = f.Col(n)
		}
	}
	out := &Frame{Name: f.Name, index: make(map[string]int, len(cols))}
	for _, c := range cols {
		nc := &Column{Name: c.Name, Kind: c.Kind, Unit: c.Unit, typed: c.typed}
		if keep == nil {
			nc.raw = append([]string(nil), c.raw...)
			nc.nums = append([]float64(nil), c.nums...)
		} else {
			nc.raw = make([]string, len(keep))
			nc.nums = make([]float64, len(keep))
			for i, r := range keep {
				nc.raw[i] = c.raw[r]
				nc.nums[i] = c.nums[r]
			}
		}
		out.addColumn(nc)
	}
	if keep == nil {
		out.rows = f.rows
	} else {
		out.rows = len(keep)
	}
	return out
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > f.rows {
		n = f.rows
	}
	keep := make([]int, n)
	for i := range keep {
		keep[i] = i
	}
	return f.take(nil, keep)
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) *Frame {
	return f.take(names, nil)
}

// DropMissing removes rows with a missing cell in any of the named columns
// (all columns when none are named).
func (f *Frame) DropMissing(names ...string) *Frame {
	cols := f.cols
	if len(names) > 0 {
		cols = make([]*Column, len(names))
		for i, n := range names {
			cols[i] = f.Col(n)
		}
	}
	keep := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		ok := true
		for _, c := range cols {
			if isMissing(c.raw[i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return f.take(nil, keep)
}

// DropDuplicates removes rows whose cells all equal an earlier row.
func (f *Frame) DropDuplicates() *Frame {
	seen := make(map[string]struct{}, f.rows)
	keep := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		var b strings.Builder
		for _, c := range f.cols {
			b.WriteString(c.raw[i])
			b.WriteByte(0)
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	return f.take(nil, keep)
}

// Where keeps the rows whose cell in the named column satisfies keep.
func (f *Frame) Where(name string, keep func(string) bool) *Frame {
	c := f.Col(name)
	idx := make([]int, 0, f.rows)
	for i, s := range c.raw {
		if keep(s) {
			idx = append(idx, i)
		}
	}
	return f.take(nil, idx)
}

// ValueCounts counts occurrences of each non-missing value, most frequent first.
func (f *Frame) ValueCounts(name string) *Frame {
	c := f.Col(name)
	counts := map[string]int{}
	for _, s := range c.raw {
		if isMissing(s) {
			continue
		}
		counts[strings.TrimSpace(s)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] == counts[keys[j]] {
			return keys[i] < keys[j]
		}
		return counts[keys[i]] > counts[keys[j]]
	})
	out := New(name, "count")
	for _, k := range keys {
		out.AddRow(k, counts[k])
	}
	return out
}

// GroupMean averages the numeric column col per distinct value of by.
func (f *Frame) GroupMean(by, col string) *Frame {
	cb, cc := f.Col(by), f.Col(col)
	type acc struct {
		sum float64
		n   int
	}
	groups := map[string]*acc{}
	var order []string
	for i := 0; i < f.rows; i++ {
		k := strings.TrimSpace(cb.raw[i])
		if isMissing(k) {
			continue
		}
		g := groups[k]
		if g == nil {
			g = &acc{}
			groups[k] = g
			order = append(order, k)
		}
		if x := cc.nums[i]; !math.IsNaN(x) {
			g.sum += x
			g.n++
		}
	}
	sort.Strings(order)
	out := New(by, "mean_"+col, "count")
	for _, k := range order {
		g := groups[k]
		m := math.NaN()
		if g.n > 0 {
			m = g.sum / float64(g.n)
		}
		out.AddRow(k, m, g.n)
	}
	return out
}

// String renders the first rows as a Markdown table.
func (f *Frame) String() string { return f.Markdown(20) }

var missingTokens = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "null": {}, "none": {}, "-": {},
}

func isMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
