// Package action turns a natural-language query into a small structured
// descriptor: which analysis to run and on which columns.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
)

// Vocabulary is the closed set of actions the classifier is asked to choose from.
var Vocabulary = []string{
	"linear regression", "logistic regression", "polynomial regression",
	"summary", "describe", "correlation", "scatter plot", "histogram",
	"clean data", "line graph", "bar chart", "covariance", "skew", "kurtosis",
}

// Descriptor is the classifier's answer. Empty X or Y means the field was absent.
type Descriptor struct {
	Action string `json:"action"`
	X      string `json:"x,omitempty"`
	Y      string `json:"y,omitempty"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("action=%q x=%q y=%q", d.Action, d.X, d.Y)
}

// ErrMalformedDescriptor is returned when a reply has no action line.
var ErrMalformedDescriptor = errors.New("response did not contain an action line")

// Classifier asks a model runtime to interpret queries.
type Classifier struct {
	Runtime     ai.Runtime
	Model       string
	Temperature float64
	MaxTokens   int
}

// Classify sends the query and column list to the model and parses the reply.
// Column values are rewritten to the schema's canonical spelling.
func (c *Classifier) Classify(ctx context.Context, query string, columns []string) (Descriptor, error) {
	if c.Runtime == nil {
		return Descriptor{}, errors.New("no model runtime configured")
	}
	reply, err := ai.Complete(ctx, c.Runtime, c.Model, SystemPrompt(), UserPrompt(query, columns), c.Temperature, c.MaxTokens)
	if err != nil {
		return Descriptor{}, err
	}
	d, err := Parse(reply)
	if err != nil {
		return Descriptor{}, err
	}
	return Normalize(d, columns), nil
}

// SystemPrompt returns the fixed classifier instruction.
func SystemPrompt() string {
	quoted := make([]string, len(Vocabulary))
	for i, a := range Vocabulary {
		quoted[i] = "'" + a + "'"
	}
	var b strings.Builder
	b.WriteString("You are an assistant specializing in data analysis tasks.\n")
	b.WriteString("Interpret the user's query and identify the most relevant statistical action or visualization type.\n")
	b.WriteString("Always respond in the following format:\n")
	fmt.Fprintf(&b, "action: [specific action, concise, one of %s]\n", strings.Join(quoted, ", "))
	b.WriteString("x: [single column name for single-variable analysis or x-axis]\n")
	b.WriteString("y: [single column name for y-axis when comparing two variables]\n\n")
	b.WriteString(`Rules:
1. For descriptive statistics (describe, summary):
   - Leave both x and y empty
   - These analyze all numeric columns automatically

2. For single-variable analysis (histogram, distribution):
   - Include only x, leave y empty
   - x must be a single column name

3. For two-variable analysis (scatter plot, regression, correlation):
   - Include both x and y
   - Both must be single column names

4. Column names must be:
   - Exactly as they appear in the data
   - One column per field
   - No lists or multiple columns

5. Never include:
   - Lists of columns
   - Comma-separated values
   - Multiple columns in one field

Respond only with action, x, and y (if applicable) on separate lines.`)
	return b.String()
}

// UserPrompt renders the user turn: the query followed by the available columns.
func UserPrompt(query string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "'" + c + "'"
	}
	return fmt.Sprintf("Query: %s\nAvailable columns: [%s]", query, strings.Join(quoted, ", "))
}
