package codegen

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const fence = "```"

// ExtractCode returns the body of the first Go-tagged fenced block, falling
// back to the first fenced block of any language. Unfenced text is returned
// trimmed.
func ExtractCode(reply string) string {
	start := -1
	for _, tag := range []string{fence + "go\n", fence + "golang\n", fence + "go\r\n", fence + "golang\r\n"} {
		if i := strings.Index(reply, tag); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start < 0 {
		start = strings.Index(reply, fence)
	}
	if start < 0 {
		return strings.TrimSpace(reply)
	}
	body := reply[start+len(fence):]
	// The rest of the opening line is the language tag.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// Diff renders a line diff between two snippets with "-", "+" and " " prefixes.
// It returns "" when the snippets are identical.
func Diff(before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out strings.Builder
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range chunk {
			out.WriteString(prefix)
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	return out.String()
}
