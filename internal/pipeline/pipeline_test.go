package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dataloom-cli/internal/action"
	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/artifact"
	"github.com/KaramelBytes/dataloom-cli/internal/codegen"
	"github.com/KaramelBytes/dataloom-cli/internal/result"
	"github.com/KaramelBytes/dataloom-cli/internal/sandbox"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// queueRuntime replies with scripted completions in order.
type queueRuntime struct {
	replies []string
	fail    map[int]error
	calls   int
	reqs    []ai.GenerateRequest
}

func (q *queueRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	q.calls++
	q.reqs = append(q.reqs, req)
	if err := q.fail[q.calls]; err != nil {
		return nil, err
	}
	if len(q.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	r := q.replies[0]
	q.replies = q.replies[1:]
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: r}}}}, nil
}

// fixedPath hands out one known path and removes through the real store helpers.
type fixedPath struct {
	path    string
	removed int
	err     error
}

func (f *fixedPath) NewPath() (string, error) { return f.path, nil }

func (f *fixedPath) Remove(path string) error {
	f.removed++
	if f.err != nil {
		return f.err
	}
	return artifact.Remove(path)
}

func salesFrame() *table.Frame {
	f := table.New("Age", "Sales")
	f.AddRow(23, 100.0)
	f.AddRow(35, 210.0)
	f.AddRow(41, 180.0)
	f.AddRow(29, 150.0)
	f.AddRow(52, 260.0)
	return f
}

func histSnippet(col, path string) string {
	return fmt.Sprintf("```go\nfig := plt.Figure(10, 6)\nfig.Title(\"Distribution\").XLabel(%q).YLabel(\"Count\")\nfig.Hist(df.Floats(%q), 5)\nif err := fig.Save(%q); err != nil {\n\tpanic(err)\n}\nfig.Close()\nresult = map[string]any{\"type\": \"plot\", \"value\": %q}\n```", col, col, path, path)
}

func newRealPipeline(rt ai.Runtime, store Artifacts, maxRetries int, hooks Hooks) *Pipeline {
	cls := &action.Classifier{Runtime: rt, Model: "m"}
	syn := &codegen.Synthesizer{Runtime: rt, Model: "m"}
	return New(cls, syn, sandbox.New(sandbox.Options{}), store, Options{MaxRetries: maxRetries, Hooks: hooks})
}

func TestHistogramSucceedsFirstTry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plot_hist.png")
	rt := &queueRuntime{replies: []string{
		"action: histogram\nx: age\ny:",
		histSnippet("Age", path),
	}}
	var desc action.Descriptor
	var attempts []AttemptRecord
	p := newRealPipeline(rt, &fixedPath{path: path}, 5, Hooks{
		OnDescriptor: func(d action.Descriptor) { desc = d },
		OnAttempt:    func(r AttemptRecord) { attempts = append(attempts, r) },
	})

	res := p.Run(context.Background(), "show the distribution of ages", salesFrame())
	assert.Equal(t, result.Plot(path), res)
	assert.FileExists(t, path)
	assert.Equal(t, 2, rt.calls)
	assert.Equal(t, action.Descriptor{Action: "histogram", X: "Age"}, desc)
	require.Len(t, attempts, 1)
	assert.Equal(t, 1, attempts[0].Attempt)
	assert.Empty(t, attempts[0].Err)
}

func TestBadColumnIsRepaired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plot_fix.png")
	rt := &queueRuntime{replies: []string{
		"action: histogram\nx: Age",
		histSnippet("age", path),
		histSnippet("Age", path),
	}}
	var attempts []AttemptRecord
	var diffs []string
	store := &fixedPath{path: path}
	p := newRealPipeline(rt, store, 5, Hooks{
		OnAttempt: func(r AttemptRecord) { attempts = append(attempts, r) },
		OnRepair:  func(_ int, d string) { diffs = append(diffs, d) },
	})

	res := p.Run(context.Background(), "histogram of age", salesFrame())
	assert.Equal(t, result.Plot(path), res)
	assert.Equal(t, 3, rt.calls)
	assert.Equal(t, 1, store.removed)

	require.Len(t, attempts, 2)
	assert.Contains(t, attempts[0].Err, `column "age" not found`)
	assert.Empty(t, attempts[1].Err)

	repairUser := rt.reqs[2].Messages[1].Content
	assert.Contains(t, repairUser, "### QUERY\nhistogram of age")
	assert.Contains(t, repairUser, `column "age" not found`)
	assert.Contains(t, repairUser, path, "repair keeps the same artifact path")

	require.Len(t, diffs, 1)
	assert.Contains(t, diffs[0], `+fig.Hist(df.Floats("Age"), 5)`)
}

func TestSummaryReturnsDataFrame(t *testing.T) {
	rt := &queueRuntime{replies: []string{
		"action: summary\nx:\ny:",
		"```go\nresult = map[string]any{\"type\": \"dataframe\", \"value\": stats.Describe(df)}\n```",
	}}
	p := newRealPipeline(rt, &fixedPath{path: filepath.Join(t.TempDir(), "unused.png")}, 5, Hooks{})

	res := p.Run(context.Background(), "give me summary statistics", salesFrame())
	require.Equal(t, result.TypeDataFrame, res.Type, "message: %s", res.Message())
	f, ok := res.Value.(*table.Frame)
	require.True(t, ok, "value is %T", res.Value)
	assert.Equal(t, []string{"stat", "Age", "Sales"}, f.Columns())

	sys := rt.reqs[1].Messages[0].Content
	assert.Contains(t, sys, "X column: None")
	assert.Contains(t, sys, "Y column: None")
}

func TestExhaustionStopsModelCalls(t *testing.T) {
	bad := "result = map[string]any{\"type\": \"dataframe\", \"value\": df.Floats(\"nope\")}"
	rt := &queueRuntime{replies: []string{"action: describe", bad, bad, bad, "unused"}}
	var attempts []AttemptRecord
	p := newRealPipeline(rt, &fixedPath{path: filepath.Join(t.TempDir(), "p.png")}, 3, Hooks{
		OnAttempt: func(r AttemptRecord) { attempts = append(attempts, r) },
	})

	res, err := p.RunErr(context.Background(), "describe", salesFrame())
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.Contains(t, ex.Last, `column "nope" not found`)
	assert.Equal(t, result.Result{}, res)
	// classify + synthesize + one repair per failed attempt before the last
	assert.Equal(t, 4, rt.calls)
	assert.Len(t, attempts, 3)

	rt = &queueRuntime{replies: []string{"action: describe", bad, bad, bad}}
	p = newRealPipeline(rt, &fixedPath{path: filepath.Join(t.TempDir(), "p.png")}, 3, Hooks{})
	out := p.Run(context.Background(), "describe", salesFrame())
	assert.True(t, out.IsError())
	assert.True(t, strings.HasPrefix(out.Message(), "could not generate result after 3 attempts; last error: "))
}

func TestFatalStagesBecomeErrorResults(t *testing.T) {
	boom := errors.New("connection refused")
	cases := []struct {
		name   string
		rt     func() *queueRuntime
		prefix string
		target any
	}{
		{"classify", func() *queueRuntime { return &queueRuntime{fail: map[int]error{1: boom}} },
			"action interpretation failed: ", new(*ClassificationError)},
		{"malformed", func() *queueRuntime { return &queueRuntime{replies: []string{"I am not sure."}} },
			"action interpretation failed: ", new(*ClassificationError)},
		{"synthesize", func() *queueRuntime {
			return &queueRuntime{replies: []string{"action: describe"}, fail: map[int]error{2: boom}}
		}, "initial code generation failed: ", new(*SynthesisError)},
		{"repair", func() *queueRuntime {
			return &queueRuntime{replies: []string{"action: describe", "result = 1\nundefinedThing()"}, fail: map[int]error{3: boom}}
		}, "code correction failed: ", new(*RepairError)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newRealPipeline(tc.rt(), &fixedPath{path: filepath.Join(t.TempDir(), "p.png")}, 5, Hooks{})
			_, err := p.RunErr(context.Background(), "q", salesFrame())
			require.Error(t, err)
			assert.ErrorAs(t, err, tc.target)

			p = newRealPipeline(tc.rt(), &fixedPath{path: filepath.Join(t.TempDir(), "p.png")}, 5, Hooks{})
			res := p.Run(context.Background(), "q", salesFrame())
			assert.True(t, res.IsError())
			assert.True(t, strings.HasPrefix(res.Message(), tc.prefix), "message %q", res.Message())
		})
	}
}

func TestStageErrorsCarryRuntimeHint(t *testing.T) {
	down := &ai.UnreachableError{Host: "http://127.0.0.1:11434", Err: errors.New("connection refused")}
	rt := &queueRuntime{fail: map[int]error{1: down}}
	p := newRealPipeline(rt, &fixedPath{path: filepath.Join(t.TempDir(), "p.png")}, 3, Hooks{})

	res := p.Run(context.Background(), "histogram of Age", salesFrame())
	require.True(t, res.IsError())
	assert.True(t, strings.HasPrefix(res.Message(), "action interpretation failed: model runtime unreachable at http://127.0.0.1:11434"), res.Message())
	assert.Contains(t, res.Message(), "(start the model runtime")

	plain := &SynthesisError{Err: errors.New("boom")}
	assert.Equal(t, "initial code generation failed: boom", plain.Error())
}

func TestRepairCallsBoundedByAttempts(t *testing.T) {
	cls := classifierFunc(func(context.Context, string, []string) (action.Descriptor, error) {
		return action.Descriptor{Action: "describe"}, nil
	})
	syn := &countingSynth{}
	exec := executorFunc(func(context.Context, string, *table.Frame) (result.Result, error) {
		return result.Result{}, &sandbox.ExecutionError{Msg: "always fails"}
	})
	store := &fixedPath{path: filepath.Join(t.TempDir(), "p.png")}
	p := New(cls, syn, exec, store, Options{MaxRetries: 4})
	res := p.Run(context.Background(), "q", salesFrame())
	assert.True(t, res.IsError())
	assert.Equal(t, 1, syn.synth)
	assert.Equal(t, 3, syn.repairs)
	assert.Equal(t, 3, store.removed)
	if diff := cmp.Diff([]string{"p.png", "p.png", "p.png"}, syn.paths); diff != "" {
		t.Fatalf("repair paths mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanupFailureIsFatal(t *testing.T) {
	cls := classifierFunc(func(context.Context, string, []string) (action.Descriptor, error) {
		return action.Descriptor{Action: "describe"}, nil
	})
	exec := executorFunc(func(context.Context, string, *table.Frame) (result.Result, error) {
		return result.Result{}, &sandbox.ExecutionError{Msg: "nope"}
	})
	store := &fixedPath{path: "p.png", err: os.ErrPermission}
	_, err := New(cls, &countingSynth{}, exec, store, Options{}).RunErr(context.Background(), "q", salesFrame())
	var ce *CleanupError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.True(t, strings.HasPrefix(err.Error(), "cleanup failed: "))
}

func TestCleanupIsIdempotentOnMissingFile(t *testing.T) {
	store := artifact.Store{Dir: t.TempDir()}
	path, err := store.NewPath()
	require.NoError(t, err)
	assert.NoError(t, store.Remove(path))
	assert.NoError(t, store.Remove(path))
}

func TestNonExecutionErrorIsFatal(t *testing.T) {
	cls := classifierFunc(func(context.Context, string, []string) (action.Descriptor, error) {
		return action.Descriptor{Action: "describe"}, nil
	})
	syn := &countingSynth{}
	exec := executorFunc(func(context.Context, string, *table.Frame) (result.Result, error) {
		return result.Result{}, errors.New("interpreter broke")
	})
	res := New(cls, syn, exec, &fixedPath{path: "p.png"}, Options{}).Run(context.Background(), "q", nil)
	assert.True(t, res.IsError())
	assert.Contains(t, res.Message(), "interpreter broke")
	assert.Zero(t, syn.repairs)
}

func TestPanicInCollaboratorIsContained(t *testing.T) {
	cls := classifierFunc(func(context.Context, string, []string) (action.Descriptor, error) {
		panic("kaboom")
	})
	res := New(cls, &countingSynth{}, nil, &fixedPath{path: "p.png"}, Options{}).Run(context.Background(), "q", salesFrame())
	assert.True(t, res.IsError())
	assert.Contains(t, res.Message(), "kaboom")
}

func TestCancelledContextStopsBeforeExecution(t *testing.T) {
	cls := classifierFunc(func(context.Context, string, []string) (action.Descriptor, error) {
		return action.Descriptor{Action: "describe"}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	exec := executorFunc(func(context.Context, string, *table.Frame) (result.Result, error) {
		called = true
		return result.Data(1), nil
	})
	_, err := New(cls, &countingSynth{}, exec, &fixedPath{path: "p.png"}, Options{}).RunErr(ctx, "q", salesFrame())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

type classifierFunc func(context.Context, string, []string) (action.Descriptor, error)

func (f classifierFunc) Classify(ctx context.Context, q string, cols []string) (action.Descriptor, error) {
	return f(ctx, q, cols)
}

type executorFunc func(context.Context, string, *table.Frame) (result.Result, error)

func (f executorFunc) Execute(ctx context.Context, s string, df *table.Frame) (result.Result, error) {
	return f(ctx, s, df)
}

type countingSynth struct {
	synth   int
	repairs int
	paths   []string
}

func (c *countingSynth) Synthesize(context.Context, action.Descriptor, string, string) (string, error) {
	c.synth++
	return "v0", nil
}

func (c *countingSynth) Repair(_ context.Context, _, _, _, path string) (string, error) {
	c.repairs++
	c.paths = append(c.paths, filepath.Base(path))
	return fmt.Sprintf("v%d", c.repairs), nil
}
