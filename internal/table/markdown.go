package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Markdown renders up to maxRows rows as a pipe table. maxRows <= 0 renders all rows.
func (f *Frame) Markdown(maxRows int) string {
	var b strings.Builder
	if len(f.cols) == 0 {
		return "(empty table)\n"
	}
	b.WriteString("| ")
	for i, c := range f.cols {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(safeName(c.Name))
	}
	b.WriteString(" |\n| ")
	for i := range f.cols {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString("---")
	}
	b.WriteString(" |\n")
	n := f.rows
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	for r := 0; r < n; r++ {
		b.WriteString("| ")
		for i, c := range f.cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			val := c.raw[r]
			if len(val) > 80 {
				val = val[:77] + "..."
			}
			b.WriteString(safeVal(val))
		}
		b.WriteString(" |\n")
	}
	if n < f.rows {
		b.WriteString(fmt.Sprintf("... %d more rows\n", f.rows-n))
	}
	return b.String()
}

// Preview renders a compact inspection report: size, schema and the first n rows.
func (f *Frame) Preview(n int) string {
	var b strings.Builder
	b.WriteString("[DATASET]\n")
	if f.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", f.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", f.rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(f.cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range f.Schema() {
		name := safeName(c.Name)
		if c.Unit != "" {
			name = fmt.Sprintf("%s [%s]", name, c.Unit)
		}
		missPct := 0.0
		if total := c.NonNull + c.Missing; total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)\n", name, c.Kind, c.NonNull, missPct))
	}
	if n > 0 && f.rows > 0 {
		b.WriteString("\n[HEAD]\n")
		b.WriteString(f.Head(n).Markdown(0))
	}
	return b.String()
}

// MarshalJSON encodes the frame as its schema plus row values. Numeric cells
// are emitted as numbers and missing numeric cells as null.
func (f *Frame) MarshalJSON() ([]byte, error) {
	rows := make([][]any, f.rows)
	for r := range rows {
		row := make([]any, len(f.cols))
		for j, c := range f.cols {
			switch {
			case c.Kind == KindNumeric && math.IsNaN(c.nums[r]):
				row[j] = nil
			case c.Kind == KindNumeric:
				row[j] = c.nums[r]
			case isMissing(c.raw[r]):
				row[j] = nil
			default:
				row[j] = c.raw[r]
			}
		}
		rows[r] = row
	}
	return json.Marshal(struct {
		Name    string       `json:"name,omitempty"`
		Columns []ColumnInfo `json:"columns"`
		Rows    [][]any      `json:"rows"`
	}{Name: f.Name, Columns: f.Schema(), Rows: rows})
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
