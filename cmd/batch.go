package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/dataloom-cli/internal/history"
	"github.com/KaramelBytes/dataloom-cli/internal/result"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

var (
	batLoad        loadFlags
	batQueriesPath string
	batConcurrency int
	batRetries     int
	batOutputDir   string
	batJSON        bool
	batOutputPath  string
	batNoHistory   bool
	batQuiet       bool
)

type batchItem struct {
	Query  string          `json:"query"`
	Type   result.Type     `json:"type"`
	Value  json.RawMessage `json:"value"`
	result result.Result
}

var batchCmd = &cobra.Command{
	Use:   "batch <file> --queries <queries.txt>",
	Short: "Run many queries over one table concurrently",
	Long: `Batch reads one query per line (blank lines and lines starting with # are skipped)
and answers each against the same table. Results are printed in input order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if batQueriesPath == "" {
			return fmt.Errorf("--queries is required")
		}
		queries, err := readQueries(batQueriesPath)
		if err != nil {
			return err
		}
		if len(queries) == 0 {
			return fmt.Errorf("no queries found in %s", batQueriesPath)
		}
		df, err := batLoad.load(args[0])
		if err != nil {
			return err
		}

		c := effectiveConfig()
		rt, _, err := buildRuntime(c, runtimeOptions{ProviderFlag: flagProvider})
		if err != nil {
			return err
		}
		p, _ := newPipeline(c, pipelineOptions{
			Runtime:   rt,
			Model:     selectModel(c, flagModel),
			Retries:   batRetries,
			OutputDir: batOutputDir,
		})

		limit := batConcurrency
		if limit <= 0 {
			limit = 1
		}
		out := cmd.OutOrStdout()
		results := make([]result.Result, len(queries))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(limit)
		for i, q := range queries {
			g.Go(func() error {
				if !batQuiet {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", i+1, len(queries), q)
				}
				// Each run gets its own copy of the table.
				results[i] = p.Run(ctx, q, df.Copy())
				return nil
			})
		}
		_ = g.Wait()

		items := make([]batchItem, len(queries))
		failed := 0
		for i, res := range results {
			raw, err := res.JSON()
			if err != nil {
				return fmt.Errorf("encode result %d: %w", i+1, err)
			}
			var env struct {
				Value json.RawMessage `json:"value"`
			}
			if err := json.Unmarshal(raw, &env); err != nil {
				return fmt.Errorf("encode result %d: %w", i+1, err)
			}
			items[i] = batchItem{Query: queries[i], Type: res.Type, Value: env.Value, result: res}
			if res.IsError() {
				failed++
			}
		}

		if !batNoHistory {
			if err := recordBatch(cmd, items); err != nil {
				logger.Warn("failed to record history", zap.Error(err))
			}
		}

		if batJSON {
			b, err := utils.PrettyJSON(items)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		} else {
			for i, it := range items {
				fmt.Fprintf(out, "=== [%d] %s ===\n%s\n\n", i+1, it.Query, strings.TrimRight(it.result.Text(), "\n"))
			}
		}
		if batOutputPath != "" {
			b, err := utils.PrettyJSON(items)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(batOutputPath, b); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
		if !batQuiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ %d succeeded, %d failed\n", len(items)-failed, failed)
		}
		if failed > 0 {
			return errAnalysisFailed
		}
		return nil
	},
}

// readQueries returns the non-empty, non-comment lines of path.
func readQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	return out, nil
}

// recordBatch stores every item in one new session, in input order.
func recordBatch(cmd *cobra.Command, items []batchItem) error {
	store, err := openHistory(effectiveConfig())
	if err != nil || store == nil {
		return err
	}
	defer store.Close()
	sess := history.NewSession(store)
	defer sess.Close()
	for _, it := range items {
		if _, err := sess.Record(cmd.Context(), it.Query, it.result); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addLoadFlags(batchCmd, &batLoad)
	batchCmd.Flags().StringVar(&batQueriesPath, "queries", "", "file with one query per line")
	batchCmd.Flags().IntVarP(&batConcurrency, "concurrency", "c", 2, "number of queries run at once")
	batchCmd.Flags().IntVar(&batRetries, "max-retries", 0, "maximum attempts per query (default from config)")
	batchCmd.Flags().StringVar(&batOutputDir, "output-dir", "", "directory for plot files (default from config)")
	batchCmd.Flags().BoolVar(&batJSON, "json", false, "print results as a JSON array")
	batchCmd.Flags().StringVarP(&batOutputPath, "output", "o", "", "also write the results JSON to this file")
	batchCmd.Flags().BoolVar(&batNoHistory, "no-history", false, "do not record these runs in history")
	batchCmd.Flags().BoolVarP(&batQuiet, "quiet", "q", false, "suppress progress output")
}
