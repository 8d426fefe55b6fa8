package action

import (
	"strings"
)

// Parse reads the three-line reply grammar. Labels are matched at the start
// of a line, ignoring case and list markers; unknown lines are skipped. A
// value that still looks like a list keeps only its first entry.
func Parse(reply string) (Descriptor, error) {
	var d Descriptor
	seen := false
	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		line = strings.TrimLeft(line, "-*• ")
		line = strings.Trim(line, "`")
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.Trim(strings.TrimSpace(label), "*")) {
		case "action":
			d.Action = strings.ToLower(cleanValue(value))
			seen = true
		case "x":
			d.X = cleanValue(value)
		case "y":
			d.Y = cleanValue(value)
		}
	}
	if !seen || d.Action == "" {
		return Descriptor{}, ErrMalformedDescriptor
	}
	return d, nil
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "*`")
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	if i := strings.Index(v, ","); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	v = strings.Trim(v, `"'`)
	switch strings.ToLower(v) {
	case "", "none", "null", "n/a", "na", "empty", "-":
		return ""
	}
	return v
}

// Normalize rewrites X and Y to the canonical column spelling when they match
// a column case-insensitively. Unmatched values pass through unchanged.
func Normalize(d Descriptor, columns []string) Descriptor {
	canon := make(map[string]string, len(columns))
	for _, c := range columns {
		key := strings.ToLower(c)
		if _, dup := canon[key]; !dup {
			canon[key] = c
		}
	}
	if c, ok := canon[strings.ToLower(d.X)]; ok && d.X != "" {
		d.X = c
	}
	if c, ok := canon[strings.ToLower(d.Y)]; ok && d.Y != "" {
		d.Y = c
	}
	return d
}
