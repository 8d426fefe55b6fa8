// Package codegen asks a model for analysis snippets and for repairs of
// snippets that failed in the sandbox.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/dataloom-cli/internal/action"
	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/sandbox"
)

// DefaultRepairErrorMaxChars caps the error text embedded in a repair prompt.
const DefaultRepairErrorMaxChars = 4000

// RepairSystemPrompt is the fixed system instruction for repair requests.
const RepairSystemPrompt = "You are a Go data analysis expert. Fix the code to handle the error."

// Synthesizer generates and repairs snippets through a model runtime.
type Synthesizer struct {
	Runtime     ai.Runtime
	Model       string
	Temperature float64
	MaxTokens   int
	// RepairErrorMaxChars bounds the error text in repair prompts; zero means the default.
	RepairErrorMaxChars int
}

// Synthesize returns the first snippet for a classified query. The user turn
// is the query itself; the system turn carries the action and the output contract.
func (s *Synthesizer) Synthesize(ctx context.Context, d action.Descriptor, query, outputPath string) (string, error) {
	return s.complete(ctx, SynthesisPrompt(d, outputPath), query)
}

// Repair asks for a corrected version of code given the error it produced.
// Only the latest snippet and error are sent, so prompts do not grow across attempts.
func (s *Synthesizer) Repair(ctx context.Context, query, code, execErr, outputPath string) (string, error) {
	return s.complete(ctx, RepairSystemPrompt, RepairPrompt(query, code, execErr, outputPath, s.RepairErrorMaxChars))
}

func (s *Synthesizer) complete(ctx context.Context, system, user string) (string, error) {
	if s.Runtime == nil {
		return "", errors.New("no model runtime configured")
	}
	reply, err := ai.Complete(ctx, s.Runtime, s.Model, system, user, s.Temperature, s.MaxTokens)
	if err != nil {
		return "", err
	}
	return ExtractCode(reply), nil
}

func orNone(v string) string {
	if v == "" {
		return "None"
	}
	return v
}

// SynthesisPrompt renders the system instruction for the first snippet.
func SynthesisPrompt(d action.Descriptor, outputPath string) string {
	var b strings.Builder
	b.WriteString("You are a Go data analysis expert. Generate a snippet for the following task:\n")
	fmt.Fprintf(&b, "Action: %s\n", d.Action)
	fmt.Fprintf(&b, "X column: %s\n", orNone(d.X))
	fmt.Fprintf(&b, "Y column: %s\n\n", orNone(d.Y))
	b.WriteString("Requirements:\n")
	b.WriteString("1. Use the pre-existing table 'df'\n")
	b.WriteString("2. DO NOT include package or import statements\n")
	b.WriteString("3. If the task involves visualization or plotting:\n")
	fmt.Fprintf(&b, "   - Save to %q exactly\n", outputPath)
	fmt.Fprintf(&b, "   - Must set result = map[string]any{\"type\": \"plot\", \"value\": %q}\n", outputPath)
	b.WriteString("   - Use plt.Figure(10, 6) for consistent sizing\n")
	b.WriteString("   - Always call fig.Close() after saving\n")
	b.WriteString("   - Include appropriate titles and labels\n")
	b.WriteString("4. If the task involves data analysis without visualization, like 'summary', 'describe', 'clean data':\n")
	b.WriteString("   - Set result = map[string]any{\"type\": \"dataframe\", \"value\": computed}\n")
	b.WriteString("   - Return relevant statistics or analysis results\n")
	b.WriteString("5. Use exact column names as provided\n")
	b.WriteString("6. Return only ONE result, either a plot or a dataframe, not both\n")
	b.WriteString("7. Choose the most appropriate output type based on the action requested\n\n")
	b.WriteString(sandbox.Reference)
	b.WriteString("\n\nGenerate only the code, no explanations or imports.")
	return b.String()
}

// RepairPrompt renders the user turn of a repair request. The error text is
// truncated to maxChars; the snippet is always embedded verbatim.
func RepairPrompt(query, code, execErr, outputPath string, maxChars int) string {
	var b strings.Builder
	b.WriteString("The user asked the following question:\n### QUERY\n")
	b.WriteString(query)
	b.WriteString("\n\nYou generated this Go code:\n")
	b.WriteString(code)
	b.WriteString("\n\nIt fails with the following error:\n")
	b.WriteString(TruncateMiddle(execErr, maxChars))
	b.WriteString("\n\nRequirements:\n")
	fmt.Fprintf(&b, "1. Use exact filename %q for saving plots\n", outputPath)
	fmt.Fprintf(&b, "2. Set result = map[string]any{\"type\": \"plot\", \"value\": %q} for plots\n", outputPath)
	b.WriteString("3. Set result = map[string]any{\"type\": \"dataframe\", \"value\": computed} for analysis\n")
	b.WriteString("4. Only use the helpers listed below\n\n")
	b.WriteString(sandbox.Reference)
	b.WriteString("\n\nFix the Go code above and return ONLY the corrected code without any explanations or markdown formatting.")
	return b.String()
}

// TruncateMiddle keeps the head and tail of s when it exceeds maxChars runes.
// A non-positive maxChars uses DefaultRepairErrorMaxChars.
func TruncateMiddle(s string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultRepairErrorMaxChars
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	marker := fmt.Sprintf("\n... [%d characters omitted] ...\n", len(r)-maxChars)
	head := maxChars / 2
	tail := maxChars - head
	return string(r[:head]) + marker + string(r[len(r)-tail:])
}
