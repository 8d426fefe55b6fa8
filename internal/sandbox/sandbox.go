// Package sandbox executes generated Go snippets with the yaegi interpreter.
//
// A snippet is the body of a function. It sees the table as df, the
// plotting session as plt, the stats and table helper packages and a small
// stdlib whitelist, and must assign result before it returns. Each call gets
// a fresh interpreter, a private copy of the table and its own plotting
// session, which is released before returning.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/artifact"
	"github.com/KaramelBytes/dataloom-cli/internal/plotting"
	"github.com/KaramelBytes/dataloom-cli/internal/result"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// DefaultTimeout bounds a single execution when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ExecutionError is a recoverable snippet failure. Msg is fed back to the
// model verbatim when asking for a repair.
type ExecutionError struct {
	Msg string
}

func (e *ExecutionError) Error() string { return e.Msg }

func failf(format string, args ...any) *ExecutionError {
	return &ExecutionError{Msg: fmt.Sprintf(format, args...)}
}

// Options configures an Executor.
type Options struct {
	Timeout time.Duration
	Logger  *zap.Logger
	// Stdout, when set, also receives anything the snippet prints.
	Stdout io.Writer
}

// Executor runs snippets. It is safe for concurrent use; every call is isolated.
type Executor struct {
	timeout time.Duration
	logger  *zap.Logger
	stdout  io.Writer
}

func New(opts Options) *Executor {
	e := &Executor{timeout: opts.Timeout, logger: opts.Logger, stdout: opts.Stdout}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

const prelude = `package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"dataloom/env"
	"dataloom/plotting"
	"dataloom/stats"
	"dataloom/table"
)

var (
	_ = fmt.Sprint
	_ = math.Abs
	_ = sort.Strings
	_ = strconv.Itoa
	_ = strings.TrimSpace
	_ = stats.Mean
	_ = table.New
	_ = (*plotting.Figure)(nil)
)

var df = env.Table()

var plt = env.Plot()

func Run() (result any) {
`

const epilogue = `
	return result
}
`

// preludeLines is the number of lines before the first snippet line.
var preludeLines = strings.Count(prelude, "\n")

var (
	importLine = regexp.MustCompile(`(?m)^\s*(package\s+\w+|import\s*\(|import\s+("|\w+\s+"|\.\s+"|_\s+"))`)
	posPattern = regexp.MustCompile(`[\w./-]*\.go:(\d+):(\d+):`)
)

// Execute runs snippet against a private copy of df and validates the
// result contract. Snippet failures are returned as *ExecutionError.
func (e *Executor) Execute(ctx context.Context, snippet string, df *table.Frame) (res result.Result, err error) {
	if importLine.MatchString(snippet) {
		return result.Result{}, failf("imports are not allowed in snippets; fmt, math, sort, strconv, strings, stats, table, df and plt are already available")
	}
	if df == nil {
		df = table.New()
	}
	plt := plotting.NewSession()
	plt.CloseAll()
	defer plt.CloseAll()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out bytes.Buffer
	var stdout io.Writer = &out
	if e.stdout != nil {
		stdout = io.MultiWriter(&out, e.stdout)
	}
	i := interp.New(interp.Options{Stdout: stdout, Stderr: stdout})
	if err := i.Use(symbols(df.Copy(), plt)); err != nil {
		return result.Result{}, fmt.Errorf("load sandbox symbols: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = result.Result{}, failf("%s", relocate(fmt.Sprint(r)))
		}
		if out.Len() > 0 {
			e.logger.Debug("snippet output", zap.String("stdout", out.String()))
		}
	}()

	src := prelude + snippet + epilogue
	if _, err := i.EvalWithContext(ctx, src); err != nil {
		return result.Result{}, e.classify(ctx, err)
	}
	v, err := i.EvalWithContext(ctx, "main.Run()")
	if err != nil {
		return result.Result{}, e.classify(ctx, err)
	}
	var raw any
	if v.IsValid() && v.CanInterface() {
		raw = v.Interface()
	}
	return validate(raw)
}

func (e *Executor) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failf("execution timed out after %s", e.timeout)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var p interp.Panic
	if errors.As(err, &p) {
		return failf("%s", relocate(fmt.Sprint(p.Value)))
	}
	return failf("%s", relocate(err.Error()))
}

// relocate rewrites interpreter positions so line numbers count from the
// first snippet line.
func relocate(msg string) string {
	return posPattern.ReplaceAllStringFunc(msg, func(m string) string {
		sub := posPattern.FindStringSubmatch(m)
		line, _ := strconv.Atoi(sub[1])
		line -= preludeLines
		if line < 1 {
			return m
		}
		return fmt.Sprintf("line %d:%s:", line, sub[2])
	})
}

// validate enforces the result contract: a map with string keys "type" and
// "value", type "plot" or "dataframe", and an existing file for plots.
func validate(raw any) (result.Result, error) {
	rv := reflect.ValueOf(raw)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return result.Result{}, failf("invalid result format. got: %s", describe(raw))
	}
	get := func(key string) (any, bool) {
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		if v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, true
			}
			v = v.Elem()
		}
		return v.Interface(), true
	}
	typ, okT := get("type")
	val, okV := get("value")
	if !okT || !okV {
		return result.Result{}, failf("invalid result format. got: %s", describe(raw))
	}
	ts, _ := typ.(string)
	switch result.Type(ts) {
	case result.TypePlot:
		path, ok := val.(string)
		if !ok || path == "" {
			return result.Result{}, failf("invalid result format. got: %s", describe(raw))
		}
		if !artifact.Exists(path) {
			return result.Result{}, failf("plot file %s was not created", path)
		}
		return result.Plot(path), nil
	case result.TypeDataFrame:
		return result.Data(val), nil
	default:
		return result.Result{}, failf("invalid result format. got: %s", describe(raw))
	}
}

func describe(v any) string {
	s := fmt.Sprintf("%v", v)
	if v == nil {
		s = "nil"
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
