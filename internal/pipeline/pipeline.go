// Package pipeline drives one query through classification, snippet
// synthesis, sandboxed execution and bounded repair.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/action"
	"github.com/KaramelBytes/dataloom-cli/internal/codegen"
	"github.com/KaramelBytes/dataloom-cli/internal/result"
	"github.com/KaramelBytes/dataloom-cli/internal/sandbox"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// DefaultMaxRetries bounds the total number of executions per run.
const DefaultMaxRetries = 5

// Classifier interprets a query against the table's columns.
type Classifier interface {
	Classify(ctx context.Context, query string, columns []string) (action.Descriptor, error)
}

// Synthesizer produces the first snippet and its repairs.
type Synthesizer interface {
	Synthesize(ctx context.Context, d action.Descriptor, query, outputPath string) (string, error)
	Repair(ctx context.Context, query, code, execErr, outputPath string) (string, error)
}

// Executor runs a snippet against a table. Recoverable failures are
// *sandbox.ExecutionError; any other error ends the run.
type Executor interface {
	Execute(ctx context.Context, snippet string, df *table.Frame) (result.Result, error)
}

// Artifacts allocates plot paths and removes stale ones.
type Artifacts interface {
	NewPath() (string, error)
	Remove(path string) error
}

// AttemptRecord describes one execution. Err is empty when the attempt succeeded.
type AttemptRecord struct {
	Attempt int
	Snippet string
	Err     string
}

// Hooks are optional observers. They run synchronously on the calling goroutine.
type Hooks struct {
	OnDescriptor func(action.Descriptor)
	OnAttempt    func(AttemptRecord)
	OnRepair     func(attempt int, diff string)
}

// Options configures a Pipeline.
type Options struct {
	MaxRetries int
	Logger     *zap.Logger
	Hooks      Hooks
}

// Pipeline is safe for concurrent runs as long as its collaborators are.
type Pipeline struct {
	classifier Classifier
	synth      Synthesizer
	exec       Executor
	artifacts  Artifacts
	maxRetries int
	logger     *zap.Logger
	hooks      Hooks
}

// New wires a pipeline from its collaborators.
func New(c Classifier, s Synthesizer, e Executor, a Artifacts, opts Options) *Pipeline {
	p := &Pipeline{
		classifier: c,
		synth:      s,
		exec:       e,
		artifacts:  a,
		maxRetries: opts.MaxRetries,
		logger:     opts.Logger,
		hooks:      opts.Hooks,
	}
	if p.maxRetries <= 0 {
		p.maxRetries = DefaultMaxRetries
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// MaxRetries reports the configured attempt bound.
func (p *Pipeline) MaxRetries() int { return p.maxRetries }

// Run answers query over df. It never panics and never returns a Go error:
// fatal outcomes become an error Result with a non-empty message.
func (p *Pipeline) Run(ctx context.Context, query string, df *table.Frame) (res result.Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic", zap.Any("panic", r))
			res = result.Error(fmt.Sprintf("unexpected error: %v", r))
		}
	}()
	out, err := p.run(ctx, query, df)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "unknown error"
		}
		return result.Error(msg)
	}
	return out
}

// RunErr is Run with the fatal error kept typed, for callers that branch on it.
func (p *Pipeline) RunErr(ctx context.Context, query string, df *table.Frame) (result.Result, error) {
	return p.run(ctx, query, df)
}

func (p *Pipeline) run(ctx context.Context, query string, df *table.Frame) (result.Result, error) {
	if df == nil {
		df = table.New()
	}
	log := p.logger.With(zap.String("run_id", uuid.NewString()))
	started := time.Now()

	path, err := p.artifacts.NewPath()
	if err != nil {
		return result.Result{}, fmt.Errorf("prepare artifact path: %w", err)
	}

	log.Debug("classifying query", zap.String("query", query), zap.Int("columns", len(df.Columns())))
	desc, err := p.classifier.Classify(ctx, query, df.Columns())
	if err != nil {
		log.Warn("classification failed", zap.Error(err))
		return result.Result{}, &ClassificationError{Err: err}
	}
	log.Info("interpreted action", zap.String("action", desc.Action), zap.String("x", desc.X), zap.String("y", desc.Y))
	if p.hooks.OnDescriptor != nil {
		p.hooks.OnDescriptor(desc)
	}

	code, err := p.synth.Synthesize(ctx, desc, query, path)
	if err != nil {
		log.Warn("synthesis failed", zap.Error(err))
		return result.Result{}, &SynthesisError{Err: err}
	}

	var last string
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return result.Result{}, fmt.Errorf("run cancelled: %w", err)
		}
		alog := log.With(zap.Int("attempt", attempt), zap.Int("max_attempts", p.maxRetries))
		alog.Debug("executing snippet", zap.Int("snippet_bytes", len(code)))

		out, err := p.exec.Execute(ctx, code, df)
		if err == nil {
			p.observe(AttemptRecord{Attempt: attempt, Snippet: code})
			alog.Info("run succeeded", zap.String("type", string(out.Type)), zap.Duration("elapsed", time.Since(started)))
			return out, nil
		}
		var ee *sandbox.ExecutionError
		if !errors.As(err, &ee) {
			alog.Error("executor failed", zap.Error(err))
			return result.Result{}, fmt.Errorf("execute snippet: %w", err)
		}
		last = ee.Msg
		p.observe(AttemptRecord{Attempt: attempt, Snippet: code, Err: last})
		alog.Warn("attempt failed", zap.String("error", last))

		if attempt == p.maxRetries {
			break
		}

		repaired, err := p.synth.Repair(ctx, query, code, last, path)
		if err != nil {
			alog.Warn("repair failed", zap.Error(err))
			return result.Result{}, &RepairError{Attempt: attempt, Err: err}
		}
		diff := codegen.Diff(code, repaired)
		alog.Debug("snippet repaired", zap.String("diff", diff))
		if p.hooks.OnRepair != nil {
			p.hooks.OnRepair(attempt, diff)
		}
		code = repaired

		if err := p.artifacts.Remove(path); err != nil {
			alog.Error("cleanup failed", zap.String("path", path), zap.Error(err))
			return result.Result{}, &CleanupError{Path: path, Err: err}
		}
	}
	log.Warn("attempts exhausted", zap.Int("attempts", p.maxRetries), zap.Duration("elapsed", time.Since(started)))
	return result.Result{}, &ExhaustedError{Attempts: p.maxRetries, Last: last}
}

func (p *Pipeline) observe(rec AttemptRecord) {
	if p.hooks.OnAttempt != nil {
		p.hooks.OnAttempt(rec)
	}
}
