package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/dataloom-cli/internal/config"
	"github.com/KaramelBytes/dataloom-cli/internal/history"
	"github.com/KaramelBytes/dataloom-cli/internal/result"
)

// errAnalysisFailed marks a run whose result was an error. The result has
// already been printed, so Execute only sets the exit status.
var errAnalysisFailed = errors.New("analysis failed")

var (
	askLoad       loadFlags
	askRetries    int
	askOutputDir  string
	askJSON       bool
	askOutputPath string
	askVerbose    bool
	askNoHistory  bool
	askSession    string
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <query>",
	Short: "Ask a question about a CSV/TSV/XLSX table",
	Long: `Ask interprets the question, generates an analysis snippet, runs it in the sandbox
and repairs it until it yields a plot or a result value.

Examples:
  dataloom ask sales.csv "histogram of Age"
  dataloom ask report.xlsx --sheet-name Q1 "correlation between Price and Units"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		query := strings.TrimSpace(strings.Join(args[1:], " "))
		if query == "" {
			return fmt.Errorf("query is required")
		}
		df, err := askLoad.load(path)
		if err != nil {
			return err
		}

		c := effectiveConfig()
		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: flagProvider})
		if err != nil {
			return err
		}
		model := selectModel(c, flagModel)
		logger.Debug("runtime selected", zap.String("provider", provider), zap.String("model", model))

		opts := pipelineOptions{Runtime: rt, Model: model, Retries: askRetries, OutputDir: askOutputDir}
		if askVerbose {
			opts.Verbose = cmd.ErrOrStderr()
		}
		p, _ := newPipeline(c, opts)
		res := p.Run(cmd.Context(), query, df)

		if !askNoHistory {
			if err := recordHistory(cmd, c, askSession, query, res); err != nil {
				logger.Warn("failed to record history", zap.Error(err))
			}
		}
		if err := writeResult(res, outputOptions{JSON: askJSON, OutputPath: askOutputPath, Writer: cmd.OutOrStdout()}); err != nil {
			return err
		}
		if res.IsError() {
			return errAnalysisFailed
		}
		return nil
	},
}

func addLoadFlags(cmd *cobra.Command, f *loadFlags) {
	cmd.Flags().StringVar(&f.Delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.Decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.Thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.Sheet, "sheet-name", "", "XLSX: sheet name to load (default: first sheet)")
	cmd.Flags().IntVar(&f.SheetIdx, "sheet-index", 0, "XLSX: 1-based sheet index (overrides --sheet-name)")
	cmd.Flags().IntVar(&f.MaxRows, "max-rows", 0, "limit rows loaded (0 = all)")
}

func init() {
	rootCmd.AddCommand(askCmd)
	addLoadFlags(askCmd, &askLoad)
	askCmd.Flags().IntVar(&askRetries, "max-retries", 0, "maximum attempts before giving up (default from config)")
	askCmd.Flags().StringVar(&askOutputDir, "output-dir", "", "directory for plot files (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	askCmd.Flags().StringVarP(&askOutputPath, "output", "o", "", "also write the result JSON to this file")
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "print the interpreted action and each attempt's snippet")
	askCmd.Flags().BoolVar(&askNoHistory, "no-history", false, "do not record this run in history")
	askCmd.Flags().StringVar(&askSession, "session", "", "record into an existing history session id")
}

// recordHistory appends one run to the history store when history is enabled.
func recordHistory(cmd *cobra.Command, c *cfgpkg.Global, sessionID, query string, res result.Result) error {
	store, err := openHistory(c)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()
	sess := history.NewSession(store)
	if sessionID != "" {
		sess = history.ResumeSession(store, sessionID)
	}
	defer sess.Close()
	_, err = sess.Record(cmd.Context(), query, res)
	return err
}

// openHistory opens the configured history store, or returns nil when
// history is disabled.
func openHistory(c *cfgpkg.Global) (*history.Store, error) {
	if c == nil || !c.HistoryEnabled || c.HistoryPath == "" {
		return nil, nil
	}
	store, err := history.Open(c.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}
