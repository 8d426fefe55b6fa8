package table

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// workbook is the minimal subset of an .xlsx package needed to read cell text.
type workbook struct {
	zr     *zip.Reader
	sheets []sheetRef
	rels   map[string]string
	shared []string
}

type sheetRef struct {
	Name    string
	SheetID int
	RID     string
}

func openWorkbook(data []byte) (*workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb := &workbook{zr: zr}
	wb.sheets = parseSheetRefs(wb.file("xl/workbook.xml"))
	wb.rels = parseRelationships(wb.file("xl/_rels/workbook.xml.rels"))
	wb.shared = parseSharedStrings(wb.file("xl/sharedStrings.xml"))
	return wb, nil
}

// readWorkbook returns the header and data rows of the selected sheet.
func readWorkbook(data []byte, sheetName string, sheetIndex int, maxRows int) ([]string, [][]string, error) {
	wb, err := openWorkbook(data)
	if err != nil {
		return nil, nil, err
	}
	target, err := wb.sheetPath(sheetName, sheetIndex)
	if err != nil {
		return nil, nil, err
	}
	body := wb.file(target)
	if body == nil {
		return nil, nil, fmt.Errorf("xlsx: worksheet %s missing from package", target)
	}
	rr := newRowReader(body, wb.shared)
	header, ok := rr.Next()
	if !ok {
		return nil, nil, nil
	}
	var rows [][]string
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		if maxRows > 0 && len(rows) >= maxRows {
			break
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// SheetNames lists the sheets of an .xlsx file in workbook order.
func SheetNames(data []byte) ([]string, error) {
	wb, err := openWorkbook(data)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		out[i] = s.Name
	}
	return out, nil
}

// sheetPath resolves a sheet by name (case-insensitive) or by 1-based sheetId.
func (wb *workbook) sheetPath(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := wb.rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		avail := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			avail[i] = s.Name
		}
		return "", fmt.Errorf("sheet '%s' not found; available sheets: %s", name, strings.Join(avail, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range wb.sheets {
		if s.SheetID == index {
			if rel, ok := wb.rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", index), nil
}

func (wb *workbook) file(name string) []byte {
	for _, f := range wb.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

// walkStart calls fn for every start element in an XML document.
func walkStart(data []byte, fn func(dec *xml.Decoder, se xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(dec, se)
		}
	}
}

func parseSheetRefs(data []byte) []sheetRef {
	var out []sheetRef
	walkStart(data, func(_ *xml.Decoder, se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		var s sheetRef
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiPrefix(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		out = append(out, s)
	})
	return out
}

// parseRelationships maps relationship ids to their targets.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	walkStart(data, func(_ *xml.Decoder, se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

func parseSharedStrings(data []byte) []string {
	var out []string
	walkStart(data, func(dec *xml.Decoder, se xml.StartElement) {
		if se.Name.Local == "si" {
			out = append(out, collectText(dec, "si"))
		}
	})
	return out
}

// collectText concatenates every <t> run until the closing element named end.
func collectText(dec *xml.Decoder, end string) string {
	var b strings.Builder
	inT := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return b.String()
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inT = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inT = false
			}
			if t.Name.Local == end {
				return b.String()
			}
		case xml.CharData:
			if inT {
				b.Write(t)
			}
		}
	}
}

// rowReader streams rows of a worksheet as dense string slices.
type rowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newRowReader(data []byte, shared []string) *rowReader {
	return &rowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *rowReader) Next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				inRow = true
				row = row[:0]
			case "c":
				if !inRow {
					continue
				}
				var ref, typ string
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				col := len(row)
				if ref != "" {
					col = colIndexFromRef(ref)
				}
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = r.cellValue(typ)
			}
		case xml.EndElement:
			if t.Name.Local == "row" && inRow {
				return append([]string(nil), row...), true
			}
		}
	}
}

// cellValue reads the content of the current <c> element.
func (r *rowReader) cellValue(typ string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "v":
				val = collectChars(r.dec, "v")
			case "is":
				val = collectText(r.dec, "is")
			}
		case xml.EndElement:
			if t.Name.Local != "c" {
				continue
			}
			switch typ {
			case "s":
				idx := atoiPrefix(val)
				if idx >= 0 && idx < len(r.shared) {
					return r.shared[idx]
				}
				return ""
			case "b":
				if val == "1" {
					return "TRUE"
				}
				return "FALSE"
			}
			return val
		}
	}
}

func collectChars(dec *xml.Decoder, end string) string {
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return b.String()
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			if t.Name.Local == end {
				return b.String()
			}
		}
	}
}

// colIndexFromRef converts a cell reference like "C12" to a 0-based column index.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiPrefix(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts a relationship Target into a zip entry name.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
