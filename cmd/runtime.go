package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/action"
	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/artifact"
	"github.com/KaramelBytes/dataloom-cli/internal/codegen"
	cfgpkg "github.com/KaramelBytes/dataloom-cli/internal/config"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
	"github.com/KaramelBytes/dataloom-cli/internal/result"
	"github.com/KaramelBytes/dataloom-cli/internal/sandbox"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

const fallbackModel = "mistral:7b"

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderFlag))
	if providerName == "" && cfg != nil && cfg.DefaultProvider != "" {
		providerName = strings.ToLower(cfg.DefaultProvider)
	}
	if providerName == "" {
		providerName = ai.ProviderOllama
	}

	switch providerName {
	case "local":
		providerName = ai.ProviderOllama
	case "openai-compatible", "vllm", "lmstudio":
		providerName = ai.ProviderOpenAI
	case "google":
		providerName = ai.ProviderGemini
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}

	switch providerName {
	case ai.ProviderOpenRouter:
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.APIKey
		}
	case ai.ProviderOpenAI:
		rc.APIKey = os.Getenv("OPENAI_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.APIKey
		}
		if cfg != nil {
			rc.BaseURL = cfg.OpenAIBaseURL
		}
	case ai.ProviderGemini:
		rc.APIKey = os.Getenv("GEMINI_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.GeminiAPIKey
		}
	case ai.ProviderOllama:
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" {
			if v := os.Getenv("DATALOOM_OLLAMA_HOST"); v != "" {
				host = v
			}
		}
		if host == "" && cfg != nil && cfg.OllamaHost != "" {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		rc.Host = host
		if v := os.Getenv("DATALOOM_OLLAMA_TIMEOUT_SEC"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				rc.HTTPTimeout = time.Duration(n) * time.Second
			}
		}
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (use %s)", providerName, strings.Join(ai.Providers(), ", "))
	}
	if cfg != nil && cfg.RequestTimeoutSec > 0 {
		client = ai.WithTimeout(client, time.Duration(cfg.RequestTimeoutSec)*time.Second)
	}
	return client, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return fallbackModel
}

// effectiveConfig returns the loaded config, or defaults when loading failed.
func effectiveConfig() *cfgpkg.Global {
	if cfg != nil {
		return cfg
	}
	return &cfgpkg.Global{
		DefaultModel:        fallbackModel,
		DefaultProvider:     ai.ProviderOllama,
		MaxTokens:           2048,
		Temperature:         0.1,
		MaxRetries:          pipeline.DefaultMaxRetries,
		OutputDir:           artifact.DefaultDir,
		RepairErrorMaxChars: codegen.DefaultRepairErrorMaxChars,
	}
}

type pipelineOptions struct {
	Runtime   ai.Runtime
	Model     string
	Retries   int
	OutputDir string
	Verbose   io.Writer
}

// newPipeline wires the classifier, synthesizer, sandbox and artifact store
// into one correction loop.
func newPipeline(c *cfgpkg.Global, opts pipelineOptions) (*pipeline.Pipeline, artifact.Store) {
	cls := &action.Classifier{
		Runtime:     opts.Runtime,
		Model:       opts.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	syn := &codegen.Synthesizer{
		Runtime:             opts.Runtime,
		Model:               opts.Model,
		Temperature:         c.Temperature,
		MaxTokens:           c.MaxTokens,
		RepairErrorMaxChars: c.RepairErrorMaxChars,
	}
	exec := sandbox.New(sandbox.Options{
		Timeout: time.Duration(c.ExecTimeoutSec) * time.Second,
		Logger:  logger.Named("sandbox"),
	})
	dir := c.OutputDir
	if opts.OutputDir != "" {
		dir = opts.OutputDir
	}
	store := artifact.Store{Dir: dir}

	retries := c.MaxRetries
	if opts.Retries > 0 {
		retries = opts.Retries
	}
	var hooks pipeline.Hooks
	if w := opts.Verbose; w != nil {
		hooks.OnDescriptor = func(d action.Descriptor) {
			fmt.Fprintf(w, "🔎 Interpreted as: %s\n", interpretation(d))
		}
		hooks.OnAttempt = func(rec pipeline.AttemptRecord) {
			fmt.Fprintf(w, "--- attempt %d ---\n%s\n", rec.Attempt, rec.Snippet)
			if rec.Err != "" {
				fmt.Fprintf(w, "⚠ Attempt %d failed: %s\n", rec.Attempt, rec.Err)
			}
		}
		hooks.OnRepair = func(attempt int, diff string) {
			fmt.Fprintf(w, "🔧 Repair %d:\n%s\n", attempt, diff)
		}
	}
	p := pipeline.New(cls, syn, exec, store, pipeline.Options{
		MaxRetries: retries,
		Logger:     logger.Named("pipeline"),
		Hooks:      hooks,
	})
	return p, store
}

type loadFlags struct {
	Delimiter string
	Decimal   string
	Thousands string
	Sheet     string
	SheetIdx  int
	MaxRows   int
}

func (f loadFlags) options() (table.LoadOptions, error) {
	opt := table.LoadOptions{SheetName: f.Sheet, SheetIndex: f.SheetIdx, MaxRows: f.MaxRows}
	switch strings.ToLower(f.Delimiter) {
	case "":
	case ",", "comma":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";", "semicolon":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.Delimiter)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(f.Decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.Decimal)
	}
	switch strings.ToLower(f.Thousands) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.Thousands)
	}
	return opt, nil
}

func (f loadFlags) load(path string) (*table.Frame, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	df, err := table.Load(path, opt)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return df, nil
}

// interpretation renders a descriptor for the verbose trace: the action
// followed by whichever columns were named.
func interpretation(d action.Descriptor) string {
	var cols []string
	if d.X != "" {
		cols = append(cols, "x="+d.X)
	}
	if d.Y != "" {
		cols = append(cols, "y="+d.Y)
	}
	if len(cols) == 0 {
		return d.Action
	}
	return d.Action + " (" + strings.Join(cols, ", ") + ")"
}

type outputOptions struct {
	JSON       bool
	OutputPath string
	Writer     io.Writer
}

// writeResult prints res as text or JSON and optionally saves the JSON form.
func writeResult(res result.Result, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	b, err := resultJSON(res)
	if err != nil {
		return err
	}
	if opts.JSON {
		fmt.Fprintln(w, string(b))
	} else {
		fmt.Fprintln(w, strings.TrimRight(res.Text(), "\n"))
	}
	if opts.OutputPath == "" {
		return nil
	}
	if err := utils.SafeWriteFile(opts.OutputPath, b); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Debug("saved result", zap.String("path", opts.OutputPath))
	return nil
}

// resultJSON indents the encoded result. Going through Result.JSON keeps
// values that json cannot encode (NaN) printable.
func resultJSON(res result.Result) ([]byte, error) {
	raw, err := res.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return utils.PrettyJSON(v)
}
