package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LoadOptions controls how a dataset file is decoded.
type LoadOptions struct {
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t' from the header line.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// XLSX sheet selection. SheetName wins over SheetIndex; SheetIndex is 1-based.
	SheetName  string
	SheetIndex int
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
}

// ErrUnsupportedFormat is returned for file extensions the loader cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported dataset format (use .csv, .tsv or .xlsx)")

// Load reads a CSV, TSV or XLSX file into a Frame.
func Load(path string, opt LoadOptions) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Decode(filepath.Base(path), data, opt)
}

// Decode parses dataset bytes; name's extension selects the format.
func Decode(name string, data []byte, opt LoadOptions) (*Frame, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		header, rows, err = readDelimited(data, opt.Delimiter, opt.MaxRows)
	case ".tsv":
		d := opt.Delimiter
		if d == 0 {
			d = '\t'
		}
		header, rows, err = readDelimited(data, d, opt.MaxRows)
	case ".xlsx":
		header, rows, err = readWorkbook(data, opt.SheetName, opt.SheetIndex, opt.MaxRows)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	f := fromRecords(header, rows, opt)
	f.Name = name
	return f, nil
}

func readDelimited(data []byte, delim rune, maxRows int) ([]string, [][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if delim == 0 {
		delim = sniffDelimiter(data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		if maxRows > 0 && len(rows) >= maxRows {
			break
		}
		rows = append(rows, append([]string(nil), rec...))
	}
	return header, rows, nil
}

// sniffDelimiter picks the most frequent candidate separator on the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// fromRecords builds columns, fixes up header names and infers kinds.
func fromRecords(header []string, rows [][]string, opt LoadOptions) *Frame {
	f := &Frame{index: make(map[string]int, len(header))}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		base := name
		for n := 2; f.Has(name); n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		_, unit := splitUnits(name)
		f.addColumn(&Column{Name: name, Unit: unit, raw: make([]string, 0, len(rows)), nums: make([]float64, 0, len(rows))})
	}
	for _, rec := range rows {
		for j, c := range f.cols {
			v := ""
			if j < len(rec) {
				v = strings.TrimSpace(rec[j])
			}
			c.raw = append(c.raw, v)
			x := math.NaN()
			if !isMissing(v) {
				if p, ok := parseNumeric(v, opt.DecimalSeparator, opt.ThousandsSeparator); ok {
					x = p
				}
			}
			c.nums = append(c.nums, x)
		}
	}
	f.rows = len(rows)
	for _, c := range f.cols {
		c.Kind = inferKind(c)
		c.typed = true
	}
	return f
}

// inferKind decides a column's kind by its predominant parsed type.
func inferKind(c *Column) Kind {
	var numCnt, dtCnt, txtCnt, nonNull int
	uniq := map[string]struct{}{}
	short := true
	for i, v := range c.raw {
		if isMissing(v) {
			continue
		}
		nonNull++
		if !math.IsNaN(c.nums[i]) {
			numCnt++
			continue
		}
		if _, ok := parseTimeMaybe(v); ok {
			dtCnt++
			continue
		}
		txtCnt++
		if len(v) > 64 {
			short = false
		}
		if len(uniq) <= 10000 {
			uniq[v] = struct{}{}
		}
	}
	switch {
	case numCnt > 0 && numCnt >= dtCnt && numCnt >= txtCnt:
		return KindNumeric
	case dtCnt > 0 && dtCnt >= txtCnt:
		return KindTemporal
	case txtCnt > 0 && short && len(uniq)*2 <= nonNull:
		return KindCategorical
	default:
		return KindText
	}
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumeric parses locale-formatted numbers. A zero dec auto-detects the
// decimal separator from the value itself; '%' signs are ignored.
func parseNumeric(s string, dec, thou rune) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`),  // Alpha (%)
	regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), // Mass [mg/L]
	regexp.MustCompile(`^(.*?)[_\s-]+(mg/L|g/L|ug/L|°[CF]|Brix|%|ppm|ppb)$`),
}

// splitUnits separates a trailing unit annotation from a header.
func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, re := range unitPatterns {
		if m := re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[2])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
