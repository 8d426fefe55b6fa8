package codegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/KaramelBytes/dataloom-cli/internal/action"
	"github.com/KaramelBytes/dataloom-cli/internal/ai"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedRuntime struct {
	reply string
	err   error
	reqs  []ai.GenerateRequest
}

func (s *scriptedRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: s.reply}}}}, nil
}

func TestExtractCode(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"go fence":       {"Here you go:\n```go\nx := 1\nresult = x\n```\nDone.", "x := 1\nresult = x"},
		"golang fence":   {"```golang\nresult = 2\n```", "result = 2"},
		"bare fence":     {"```\nresult = 3\n```", "result = 3"},
		"other language": {"```python\nresult = 4\n```", "result = 4"},
		"prefers go":     {"```text\nnot code\n```\n```go\nresult = 5\n```", "result = 5"},
		"unclosed":       {"```go\nresult = 6\n", "result = 6"},
		"unfenced":       {"  result = 7 \n", "result = 7"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractCode(tc.in))
		})
	}
}

func TestSynthesizeSendsQueryAndContract(t *testing.T) {
	rt := &scriptedRuntime{reply: "```go\nresult = 1\n```"}
	s := &Synthesizer{Runtime: rt, Model: "m", Temperature: 0.1}
	path := "output_plots/plot_20260101_000000_000000_abcd1234.png"
	code, err := s.Synthesize(context.Background(), action.Descriptor{Action: "histogram", X: "Age"}, "show ages", path)
	require.NoError(t, err)
	assert.Equal(t, "result = 1", code)

	require.Len(t, rt.reqs, 1)
	msgs := rt.reqs[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "show ages", msgs[1].Content)
	sys := msgs[0].Content
	assert.Contains(t, sys, "Action: histogram")
	assert.Contains(t, sys, "X column: Age")
	assert.Contains(t, sys, "Y column: None")
	assert.Contains(t, sys, `"`+path+`"`)
	assert.Contains(t, sys, "df.Floats(col)")
}

func TestSynthesizeTransportError(t *testing.T) {
	boom := errors.New("timeout")
	s := &Synthesizer{Runtime: &scriptedRuntime{err: boom}, Model: "m"}
	_, err := s.Synthesize(context.Background(), action.Descriptor{Action: "summary"}, "q", "p.png")
	assert.ErrorIs(t, err, boom)
}

func TestRepairPromptShape(t *testing.T) {
	rt := &scriptedRuntime{reply: "result = 2"}
	s := &Synthesizer{Runtime: rt, Model: "m"}
	code, err := s.Repair(context.Background(), "plot ages", "xs := df.Floats(\"age\")", `column "age" not found`, "out.png")
	require.NoError(t, err)
	assert.Equal(t, "result = 2", code)

	msgs := rt.reqs[0].Messages
	assert.Equal(t, RepairSystemPrompt, msgs[0].Content)
	user := msgs[1].Content
	assert.True(t, strings.HasPrefix(user, "The user asked the following question:\n### QUERY\nplot ages\n"))
	assert.Contains(t, user, "You generated this Go code:\nxs := df.Floats(\"age\")")
	assert.Contains(t, user, "It fails with the following error:\ncolumn \"age\" not found")
	assert.Contains(t, user, `Use exact filename "out.png"`)
}

func TestRepairPromptTruncatesErrorNotCode(t *testing.T) {
	code := strings.Repeat("x", 50)
	errText := strings.Repeat("a", 30) + strings.Repeat("b", 40) + strings.Repeat("c", 30)
	p := RepairPrompt("q", code, errText, "p.png", 20)
	assert.Contains(t, p, code)
	assert.Contains(t, p, strings.Repeat("a", 10)+"\n... [80 characters omitted] ...\n"+strings.Repeat("c", 10))
	assert.NotContains(t, p, strings.Repeat("b", 5))
}

func TestTruncateMiddle(t *testing.T) {
	assert.Equal(t, "short", TruncateMiddle("short", 10))
	long := strings.Repeat("é", DefaultRepairErrorMaxChars+1)
	out := TruncateMiddle(long, 0)
	assert.Contains(t, out, "[1 characters omitted]")
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff("same", "same"))
	got := Diff("a := 1\nb := df.Floats(\"age\")\nresult = b", "a := 1\nb := df.Floats(\"Age\")\nresult = b")
	assert.Equal(t, " a := 1\n-b := df.Floats(\"age\")\n+b := df.Floats(\"Age\")\n result = b\n", got)
}
