package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

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
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: s.reply}}}}, nil
}

func TestParseThreeLines(t *testing.T) {
	d, err := Parse("action: scatter plot\nx: Age\ny: Sales")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Action: "scatter plot", X: "Age", Y: "Sales"}, d)
}

func TestParseAbsentFields(t *testing.T) {
	d, err := Parse("action: summary\nx:\ny: None")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Action: "summary"}, d)
}

func TestParseToleratesDecoration(t *testing.T) {
	reply := "Sure, here you go:\n- **Action:** Histogram\n- x: [age]\n"
	d, err := Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, "histogram", d.Action)
	assert.Equal(t, "age", d.X)
	assert.Empty(t, d.Y)
}

func TestParseNeverYieldsList(t *testing.T) {
	d, err := Parse("action: correlation\nx: ['Age', 'Sales']\ny: Sales, Region")
	require.NoError(t, err)
	assert.Equal(t, "Age", d.X)
	assert.Equal(t, "Sales", d.Y)
}

func TestParseMalformed(t *testing.T) {
	for _, reply := range []string{"", "I cannot help with that.", "x: Age\ny: Sales", "action:   "} {
		_, err := Parse(reply)
		assert.ErrorIs(t, err, ErrMalformedDescriptor, "reply %q", reply)
	}
}

func TestNormalizeCaseInsensitive(t *testing.T) {
	cols := []string{"Age", "Sales"}
	d := Normalize(Descriptor{Action: "histogram", X: "age"}, cols)
	assert.Equal(t, "Age", d.X)
	assert.Empty(t, d.Y)

	d = Normalize(Descriptor{Action: "scatter plot", X: "SALES", Y: "income"}, cols)
	assert.Equal(t, "Sales", d.X)
	assert.Equal(t, "income", d.Y, "unmatched values pass through")
}

func TestClassifyBuildsPromptAndNormalizes(t *testing.T) {
	rt := &scriptedRuntime{reply: "action: histogram\nx: age\ny:"}
	c := &Classifier{Runtime: rt, Model: "mistral:7b", Temperature: 0.1, MaxTokens: 256}
	d, err := c.Classify(context.Background(), "show the distribution of ages", []string{"Age", "Sales"})
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Action: "histogram", X: "Age"}, d)

	require.Len(t, rt.reqs, 1)
	req := rt.reqs[0]
	assert.Equal(t, "mistral:7b", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, ai.RoleSystem, req.Messages[0].Role)
	for _, a := range Vocabulary {
		assert.Contains(t, req.Messages[0].Content, "'"+a+"'")
	}
	assert.Equal(t, "Query: show the distribution of ages\nAvailable columns: ['Age', 'Sales']", req.Messages[1].Content)
}

func TestClassifyErrors(t *testing.T) {
	boom := errors.New("connection refused")
	c := &Classifier{Runtime: &scriptedRuntime{err: boom}, Model: "m"}
	_, err := c.Classify(context.Background(), "q", nil)
	assert.ErrorIs(t, err, boom)

	c = &Classifier{Runtime: &scriptedRuntime{reply: "no idea"}, Model: "m"}
	_, err = c.Classify(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	_, err = (&Classifier{}).Classify(context.Background(), "q", nil)
	assert.Error(t, err)
}
